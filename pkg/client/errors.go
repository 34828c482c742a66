package client

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrInvalidFetch is returned when a Fetch is missing its URL or TTL.
	ErrInvalidFetch = errors.New("invalid fetch")

	// ErrContextCancelled is wrapped when the caller gave up before the upstream answered.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of upstream transport failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents DNS, connect, TLS and body read failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents an upstream attempt exceeding its deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassCancelled represents the inbound request going away.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// UpstreamError is a transport-level failure talking to an upstream origin.
// Non-2xx responses are not errors; they are cached as failure entries.
type UpstreamError struct {
	URL        string
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s error for %s: %v", e.ErrorClass, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err means the caller should stop trying further
// upstream sources. Only cancellation of the inbound request is fatal;
// network failures and timeouts are worth moving on from.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.ErrorClass == ErrorClassCancelled
	}
	return errors.Is(err, context.Canceled)
}

// classifyError categorizes a transport error. parent is the caller's
// context; its cancellation wins over any timeout of the attempt itself.
func classifyError(parent context.Context, err error) ErrorClass {
	switch {
	case parent != nil && parent.Err() != nil:
		return ErrorClassCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorClassTimeout
	case errors.Is(err, context.Canceled):
		return ErrorClassCancelled
	default:
		var timeoutErr interface{ Timeout() bool }
		if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
			return ErrorClassTimeout
		}
		return ErrorClassNetwork
	}
}

func newUpstreamError(parent context.Context, url string, err error) *UpstreamError {
	class := classifyError(parent, err)
	if class == ErrorClassCancelled {
		err = fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}
	return &UpstreamError{
		URL:        url,
		ErrorClass: class,
		Err:        err,
	}
}
