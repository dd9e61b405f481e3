package fetch

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a fetch failure
type Kind string

const (
	KindTimeout    Kind = "TIMEOUT"
	KindNetwork    Kind = "NETWORK_ERROR"
	KindHTTPStatus Kind = "HTTP_STATUS"
	KindRender     Kind = "RENDER_ERROR"
	KindCancelled  Kind = "CANCELLED"
)

// Error is the typed failure surfaced by both backends. Backend-specific
// failures never escape the fetch package undressed.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("%s: %s: status %d", e.Kind, e.URL, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.URL)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches against another *Error by kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Err, target)
}

// NewError creates a typed fetch error
func NewError(kind Kind, url string, err error) *Error {
	return &Error{Kind: kind, URL: url, Err: err}
}

// NewStatusError creates an HTTP status error
func NewStatusError(url string, status int) *Error {
	return &Error{Kind: KindHTTPStatus, URL: url, Status: status}
}

// IsTimeout reports whether err is a fetch timeout
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTimeout
}

// IsStatus reports whether err is an HTTP status error, returning the code
func IsStatus(err error) (int, bool) {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindHTTPStatus {
		return fe.Status, true
	}
	return 0, false
}

// wrapCtxErr maps context termination onto the fetch taxonomy
func wrapCtxErr(url string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, url, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(KindCancelled, url, err)
	}
	return nil
}
