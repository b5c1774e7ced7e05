package exchange

import (
	"errors"
	"fmt"
	"time"
)

// NetworkError is a transient failure: timeouts, connection errors, rate limits, venue 5xx.
// It is safe to retry.
type NetworkError struct {
	Op         string
	Err        error
	RetryAfter time.Duration
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrorKind classifies a venue rejection.
type ErrorKind string

const (
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindInvalidOrder      ErrorKind = "invalid_order"
	KindRejected          ErrorKind = "rejected"
	KindAuth              ErrorKind = "auth"
)

// ExchangeError is a definitive rejection by the venue. It is never retried.
type ExchangeError struct {
	Op      string
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: %s (code %d): %s", e.Op, e.Kind, e.Code, e.Message)
}

// IsRetryable reports whether err wraps a NetworkError.
func IsRetryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// ErrNotSupported is returned by adapters that cannot serve an operation.
var ErrNotSupported = errors.New("operation not supported")
