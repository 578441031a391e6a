package combine

import (
	"errors"
	"fmt"
	"net/http"
)

// BadRequestError is returned when caller-supplied parameters are missing or invalid.
type BadRequestError struct {
	Message string
}

// Error implements the error interface.
func (e BadRequestError) Error() string {
	return e.Message
}

// NotFoundError is returned when a repository has no Markdown files or a
// requested file has no usable content.
type NotFoundError struct {
	Message string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return e.Message
}

// RemoteError is a failure reported by the hosting API. Status is 0 when the
// request never got an HTTP response (network failure).
type RemoteError struct {
	Status      int
	Message     string
	RateLimited bool
}

// Error implements the error interface.
func (e RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote request failed: %s", e.Message)
	}
	return fmt.Sprintf("remote request failed with status %d: %s", e.Status, e.Message)
}

// Retryable reports whether repeating the request may succeed: network
// failures, rate limiting and server-side errors. Other 4xx are permanent.
func (e RemoteError) Retryable() bool {
	return e.Status == 0 ||
		e.RateLimited ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= http.StatusInternalServerError
}

// IsRetryable reports whether err carries a retryable RemoteError.
func IsRetryable(err error) bool {
	var remote RemoteError
	return errors.As(err, &remote) && remote.Retryable()
}

// RenderError is returned when converting a document to HTML or PDF fails.
type RenderError struct {
	Format Format
	Err    error
}

// Error implements the error interface.
func (e RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Format, e.Err)
}

// Unwrap returns the converter error.
func (e RenderError) Unwrap() error {
	return e.Err
}

// ExportError records the pipeline stage at which an export failed. It
// unwraps to the originating error so callers can still match its kind.
type ExportError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e ExportError) Error() string {
	return fmt.Sprintf("export failed while %s: %v", e.Stage, e.Err)
}

// Unwrap returns the originating error.
func (e ExportError) Unwrap() error {
	return e.Err
}
