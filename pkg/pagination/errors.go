package pagination

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/scroll-export/pkg/client"
)

// Common errors returned by the pagination package.
var (
	// ErrRetryExhausted is matched by every *FetchError.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a fetch.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMissingScrollID is returned when a response carries no usable cursor id.
	ErrMissingScrollID = errors.New("response has no scroll id")

	// ErrCursorClosed is returned when advancing a cursor that was already released.
	ErrCursorClosed = errors.New("cursor already closed")
)

// ErrorKind classifies export failures for logs, metrics and exit codes.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindTransport     ErrorKind = "transport"
	KindHTTPStatus    ErrorKind = "http_status"
	KindMalformed     ErrorKind = "malformed_response"
	KindFetch         ErrorKind = "fetch_exhausted"
	KindOpen          ErrorKind = "open"
	KindInvalidCursor ErrorKind = "invalid_cursor"
	KindCleanup       ErrorKind = "cleanup"
	KindCancelled     ErrorKind = "cancelled"
	KindUnknown       ErrorKind = "unknown"
)

// HTTPStatusError is a response whose status was not 200.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// MalformedResponseError is a 200 response that did not decode into the
// expected shape.
type MalformedResponseError struct {
	Reason string
	Err    error

	// ScrollID is the id the body carried anyway, if any. The server
	// holds a context for it until it is cleared or expires.
	ScrollID string
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed response: %s", e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// FetchError is returned once every attempt for one request has failed.
type FetchError struct {
	Operation string
	Attempts  int
	Last      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s failed after %d attempts: %v", ErrRetryExhausted, e.Operation, e.Attempts, e.Last)
}

// Unwrap exposes both ErrRetryExhausted and the last attempt's error.
func (e *FetchError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Last}
}

// OpenError means the cursor could not be opened. No cleanup is needed.
type OpenError struct {
	Index string
	Err   error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("open scroll on %q: %v", e.Index, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OpenError) Unwrap() error {
	return e.Err
}

// InvalidCursorError is an accepted page that carried no continuation id.
// It is never retried: the previous id may already be superseded on the server.
type InvalidCursorError struct {
	// Advance is the 1-based advance call that returned no id.
	Advance int
	// ScrollID is the id that was sent with that call.
	ScrollID string
}

// Error implements the error interface.
func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("advance #%d returned no scroll id", e.Advance)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *InvalidCursorError) Unwrap() error {
	return ErrMissingScrollID
}

// CleanupError records a failed cursor release. It is logged, never returned.
type CleanupError struct {
	ScrollID string
	Err      error
}

// Error implements the error interface.
func (e *CleanupError) Error() string {
	return fmt.Sprintf("release scroll: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CleanupError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Cancellation wins over every other kind so that an
// interrupted export is never reported as a server failure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		openErr      *OpenError
		cursorErr    *InvalidCursorError
		fetchErr     *FetchError
		cleanupErr   *CleanupError
		statusErr    *HTTPStatusError
		malformedErr *MalformedResponseError
		transportErr *client.TransportError
	)

	switch {
	// Request timeouts also match context.DeadlineExceeded, so only an
	// explicit caller cancellation counts here.
	case errors.Is(err, ErrContextCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &openErr):
		return KindOpen
	case errors.As(err, &cursorErr):
		return KindInvalidCursor
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &cleanupErr):
		return KindCleanup
	case errors.As(err, &statusErr):
		return KindHTTPStatus
	case errors.As(err, &malformedErr):
		return KindMalformed
	case errors.As(err, &transportErr):
		return KindTransport
	default:
		return KindUnknown
	}
}
