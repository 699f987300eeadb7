package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// RetryConfig bounds [WithRetry]. The wait before attempt i+1 is Backoff*(i+1).
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryConfig is one retry after 500ms, used for catalog authentication.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 1, Backoff: 500 * time.Millisecond}
}

// StatusError carries the HTTP status of a failed upstream call.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// IsRetryableError reports whether err is a network failure or a 5xx response.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 && statusErr.StatusCode < 600
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.ECONNREFUSED, syscall.ECONNABORTED:
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// WithRetry runs fn, retrying only retryable failures with linear backoff.
//
// Non-retryable errors are returned immediately. Context cancellation during a wait returns the context error.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= cfg.MaxRetries || !IsRetryableError(err) {
			break
		}

		wait := cfg.Backoff * time.Duration(attempt+1)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	return zero, lastErr
}
