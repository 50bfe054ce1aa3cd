// Package telegram implements flatfinder.Notifier with the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/flatfinder"
)

// DefaultBaseURL is the Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// DefaultTimeout bounds a single sendMessage call.
const DefaultTimeout = 10 * time.Second

// ParseMode is the message formatting mode understood by the Bot API.
const ParseMode = "Markdown"

// Ensure Notifier implements flatfinder.Notifier at compile time.
var _ flatfinder.Notifier = (*Notifier)(nil)

// Notifier sends messages to one chat through a bot.
type Notifier struct {
	token          string
	chatID         string
	baseURL        string
	client         *http.Client
	disablePreview bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithBaseURL overrides the Bot API endpoint.
func WithBaseURL(u string) Option {
	return func(n *Notifier) {
		n.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(n *Notifier) {
		n.client = c
	}
}

// WithDisablePreview suppresses link previews below each message.
func WithDisablePreview(disable bool) Option {
	return func(n *Notifier) {
		n.disablePreview = disable
	}
}

// NewNotifier creates a Notifier for the bot token and chat.
func NewNotifier(token, chatID string, opts ...Option) (*Notifier, error) {
	if token == "" {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "telegram bot token required")
	}
	if chatID == "" {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "telegram chat id required")
	}

	n := &Notifier{
		token:   token,
		chatID:  chatID,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// APIError is a request rejected by the Bot API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.StatusCode, e.Description)
}

// Send posts message to the chat with Markdown formatting.
func (n *Notifier) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  message,
		ParseMode:             ParseMode,
		DisableWebPagePreview: n.disablePreview,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of logs.
		return fmt.Errorf("telegram: sendMessage: %w", redact(err, n.token))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var r apiResponse
	if err := json.Unmarshal(data, &r); err != nil {
		if resp.StatusCode/100 != 2 {
			return &APIError{StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("telegram: invalid response: %w", err)
	}
	if resp.StatusCode/100 != 2 || !r.OK {
		return &APIError{StatusCode: resp.StatusCode, Description: r.Description}
	}
	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// redact removes the bot token from err's message while keeping it
// unwrappable.
func redact(err error, token string) error {
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(msg, token, "<token>"), err: err}
}
