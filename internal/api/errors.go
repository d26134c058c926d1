package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// RateLimitError is a quota or throttling response. RetryAfter is zero when
// the server did not say how long to wait.
type RateLimitError struct {
	*StatusError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.StatusError.Error())
	}
	return "rate limited: " + e.StatusError.Error()
}

func (e *RateLimitError) Unwrap() error { return e.StatusError }

// 402 is what quota-metered data APIs return once the plan allowance is spent.
func isRateLimitStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusPaymentRequired
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Transient reports whether a retry may succeed. Throttling, 5xx, request
// timeouts and network failures are transient; explicit permanent errors,
// other 4xx responses and caller cancellation are not. Unknown errors are
// treated as transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var perm permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusRequestTimeout
	}
	// network errors and anything unrecognised
	return true
}

// RetryAfter extracts the server-requested delay from a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
