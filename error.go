package flatfinder

import (
	"context"
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECONFLICT = "conflict"
	EINTERNAL = "internal"
	EINVALID  = "invalid"
	ENOTFOUND = "not_found"
)

// Error represents an application-specific error. Application errors can be
// unwrapped by the caller to extract out the code & message.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface. Not used by the application otherwise.
func (e *Error) Error() string {
	return fmt.Sprintf("flatfinder error: code=%s message=%s", e.Code, e.Message)
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error"
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrNoNewListings signals that a run found nothing worth reporting.
// It is an expected outcome, not a failure.
var ErrNoNewListings = &Error{Code: ENOTFOUND, Message: "no new listings"}

// FetchError reports a failure to scrape a source: transport errors,
// unexpected HTTP status codes and selectors that match nothing.
type FetchError struct {
	Source string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizeError reports a raw record the source's normalize function
// could not map to a Listing. It points at a source descriptor bug.
type NormalizeError struct {
	Source string
	Index  int
	Err    error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize %s record %d: %v", e.Source, e.Index, e.Err)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// StoreError reports a failure to load or persist known listings.
type StoreError struct {
	Source string
	Op     string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Source, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrorClass groups errors by how an operator should react to them.
type ErrorClass string

// ErrorClass constants returned by Classify.
const (
	ClassNone          ErrorClass = "none"
	ClassNoNewListings ErrorClass = "no_new_listings"
	ClassFetch         ErrorClass = "fetch"
	ClassNormalize     ErrorClass = "normalize"
	ClassConfig        ErrorClass = "config"
	ClassStore         ErrorClass = "store"
	ClassCanceled      ErrorClass = "canceled"
	ClassUnknown       ErrorClass = "unknown"
)

// Classify returns the class of err. Typed errors take precedence over
// context cancellation and over the application error code they may wrap,
// so a fetch that timed out is still a fetch failure.
func Classify(err error) ErrorClass {
	var (
		fetchErr     *FetchError
		normalizeErr *NormalizeError
		storeErr     *StoreError
	)
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrNoNewListings):
		return ClassNoNewListings
	case errors.As(err, &normalizeErr):
		return ClassNormalize
	case errors.As(err, &storeErr):
		return ClassStore
	case errors.As(err, &fetchErr):
		return ClassFetch
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case ErrorCode(err) == EINVALID:
		return ClassConfig
	}
	return ClassUnknown
}
