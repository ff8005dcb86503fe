package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes why a provider call failed.
type ErrorKind string

const (
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindServer     ErrorKind = "server"
	ErrorKindClient     ErrorKind = "client"
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindUnresolved marks a record for which no provider produced a price.
	ErrorKindUnresolved ErrorKind = "unresolved"
)

// FetchError is the structured error returned by providers.
type FetchError struct {
	Kind       ErrorKind
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// NewNetworkError wraps a transport failure. Context deadline errors are
// reported as timeouts instead.
func NewNetworkError(cause error) *FetchError {
	if errors.Is(cause, context.DeadlineExceeded) {
		return NewTimeoutError(cause)
	}
	return &FetchError{Kind: ErrorKindNetwork, Retryable: true, Message: "network request failed", Cause: cause}
}

func NewTimeoutError(cause error) *FetchError {
	return &FetchError{Kind: ErrorKindTimeout, Retryable: true, Message: "request timed out", Cause: cause}
}

// NewValidationError reports a response that arrived but held no usable data.
func NewValidationError(format string, args ...any) *FetchError {
	return &FetchError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

// ClassifyStatus maps a non-success HTTP status to a FetchError.
func ClassifyStatus(statusCode int) *FetchError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &FetchError{Kind: ErrorKindRateLimit, Retryable: true, StatusCode: statusCode, Message: "rate limit exceeded"}
	case statusCode >= 500:
		return &FetchError{Kind: ErrorKindServer, Retryable: true, StatusCode: statusCode, Message: "server returned an error"}
	default:
		return &FetchError{Kind: ErrorKindClient, StatusCode: statusCode, Message: fmt.Sprintf("unexpected status code: %d", statusCode)}
	}
}

// KindOf extracts the ErrorKind carried by err, if any.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	return ErrorKindNetwork
}
