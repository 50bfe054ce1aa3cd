package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/flatfinder"
)

// Ensure LoggingNotifier implements flatfinder.Notifier.
var _ flatfinder.Notifier = (*LoggingNotifier)(nil)

// LoggingNotifier wraps a Notifier with debug logging.
type LoggingNotifier struct {
	next   flatfinder.Notifier
	logger *slog.Logger
}

// NewLoggingNotifier creates a new LoggingNotifier.
func NewLoggingNotifier(next flatfinder.Notifier, logger *slog.Logger) *LoggingNotifier {
	return &LoggingNotifier{next: next, logger: logger}
}

// Send delegates to the wrapped notifier and logs the message size.
func (n *LoggingNotifier) Send(ctx context.Context, message string) (err error) {
	defer func(begin time.Time) {
		n.logger.Debug("send notification",
			"bytes", len(message),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return n.next.Send(ctx, message)
}
