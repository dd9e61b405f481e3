// Package fetch abstracts "get a page's rendered content" over two
// interchangeable backends: a plain HTTP client and a controlled Chrome
// session. Callers see one Session contract regardless of backend.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/law-makers/eventcrawl/pkg/models"
)

// ErrNotInteractive is returned by interaction methods on backends that
// cannot drive a page (the HTTP backend).
var ErrNotInteractive = errors.New("backend does not support page interaction")

// NavigateOptions tune a single navigation
type NavigateOptions struct {
	// WaitSelector is the content-ready condition; the browser backend
	// waits for it to become visible before returning.
	WaitSelector string
	// Timeout bounds the whole navigation. Zero means the site default.
	Timeout time.Duration
	// BypassCache skips the page cache on the HTTP backend.
	BypassCache bool
}

// Backend opens fetch sessions. Any implementation satisfying this contract
// is interchangeable; selection happens at session-open time, by config.
type Backend interface {
	// Open creates a new session. Sessions are not safe for concurrent
	// use; each scrape operation owns exactly one.
	Open(ctx context.Context) (Session, error)

	// Name returns the backend name ("http" or "browser")
	Name() string
}

// Session is one open fetch backend instance
type Session interface {
	// Navigate fetches the URL and returns its rendered content
	Navigate(ctx context.Context, url string, opts NavigateOptions) (*models.PageContent, error)

	// Content returns a snapshot of the current page without navigating.
	// On the HTTP backend this is the last fetched page.
	Content(ctx context.Context) (*models.PageContent, error)

	// Visible reports whether the first element matching the selector is
	// visible. ErrNotInteractive on the HTTP backend.
	Visible(ctx context.Context, selector string) (bool, error)

	// Click performs a human-like click on the first element matching the
	// selector. ErrNotInteractive on the HTTP backend.
	Click(ctx context.Context, selector string) error

	// WaitReady blocks until the selector is visible or the timeout
	// elapses. ErrNotInteractive on the HTTP backend.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error

	// Eval runs a JavaScript expression in the page, decoding the result
	// into out when out is non-nil. ErrNotInteractive on the HTTP backend.
	Eval(ctx context.Context, expr string, out any) error

	// Backend returns the name of the owning backend
	Backend() string

	// Close releases the session. Idempotent.
	Close() error
}
