package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/eventcrawl/internal/auth"
	"github.com/law-makers/eventcrawl/internal/cache"
	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/internal/pacing"
	"github.com/law-makers/eventcrawl/internal/ratelimit"
	"github.com/law-makers/eventcrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// HTTPBackend fetches pages with a plain HTTP client. Fast, but blind to
// client-rendered content.
type HTTPBackend struct {
	cfg     *config.Config
	site    *config.Site
	limiter ratelimit.Limiter
	cache   cache.Cache
	pacer   *pacing.Controller
}

// NewHTTPBackend creates the HTTP backend with dependency injection
func NewHTTPBackend(cfg *config.Config, site *config.Site, lim ratelimit.Limiter, c cache.Cache, pacer *pacing.Controller) *HTTPBackend {
	return &HTTPBackend{cfg: cfg, site: site, limiter: lim, cache: c, pacer: pacer}
}

// Name returns the backend name
func (b *HTTPBackend) Name() string { return string(models.BackendHTTP) }

// Open creates a new HTTP session with its own cookie jar
func (b *HTTPBackend) Open(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	sess := &httpSession{
		backend: b,
		client: &http.Client{
			Jar: jar,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	if b.site.Session != "" {
		if err := sess.loadSession(b.site.Session); err != nil {
			log.Warn().Err(err).Str("session", b.site.Session).Msg("Failed to load stored session")
		}
	}

	return sess, nil
}

type httpSession struct {
	backend  *HTTPBackend
	client   *http.Client
	headers  map[string]string
	uaIndex  int
	lastPage *models.PageContent
	mu       sync.Mutex
	closed   bool
}

func (s *httpSession) loadSession(name string) error {
	stored, err := auth.Load(name)
	if err != nil {
		return err
	}
	if stored.URL == "" {
		return fmt.Errorf("stored session %q has no URL, re-import it with --url", name)
	}
	base, err := url.Parse(stored.URL)
	if err != nil {
		return fmt.Errorf("stored session has bad URL: %w", err)
	}
	var cookies []*http.Cookie
	for _, c := range stored.Cookies {
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		// A zero expiry means a session cookie; a 1970 timestamp would
		// make the jar drop it on arrival
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		cookies = append(cookies, cookie)
	}
	s.client.Jar.SetCookies(base, cookies)
	s.headers = stored.Headers
	log.Debug().Int("cookies", len(cookies)).Str("session", name).Msg("Session cookies injected")
	return nil
}

// nextUserAgent rotates through the configured client signatures to reduce
// fingerprint correlation between calls
func (s *httpSession) nextUserAgent() string {
	uas := s.backend.site.UserAgents
	if len(uas) == 0 {
		return s.backend.cfg.UserAgent
	}
	ua := uas[s.uaIndex%len(uas)]
	s.uaIndex++
	return ua
}

// Navigate fetches the URL with bounded retries on transient errors
func (s *httpSession) Navigate(ctx context.Context, pageURL string, opts NavigateOptions) (*models.PageContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("session is closed")
	}

	if !opts.BypassCache && s.backend.cache != nil {
		if page, ok := s.backend.cache.Get(pageURL); ok {
			log.Debug().Str("url", pageURL).Msg("Page cache hit")
			s.lastPage = page
			return page, nil
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.backend.site.Timeout
	}

	maxAttempts := s.backend.cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr *Error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.backend.limiter.Wait(ctx, pageURL); err != nil {
			return nil, wrapCtxErr(pageURL, err)
		}

		page, ferr := s.fetchOnce(ctx, pageURL, timeout)
		if ferr == nil {
			if s.backend.cache != nil {
				s.backend.cache.Set(pageURL, page, s.backend.cfg.CacheTTL)
			}
			s.lastPage = page
			return page, nil
		}

		lastErr = ferr
		if !retryable(ferr) || attempt == maxAttempts {
			break
		}

		backoff := s.backend.pacer.Backoff(attempt)
		log.Debug().
			Str("url", pageURL).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(ferr).
			Msg("Retrying after backoff")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, wrapCtxErr(pageURL, ctx.Err())
		}
	}

	return nil, lastErr
}

func (s *httpSession) fetchOnce(ctx context.Context, pageURL string, timeout time.Duration) (*models.PageContent, *Error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, NewError(KindNetwork, pageURL, err)
	}

	req.Header.Set("User-Agent", s.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransport(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return nil, NewStatusError(pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, NewError(KindRender, pageURL, err)
	}

	html, _ := doc.Find("html").Html()
	page := &models.PageContent{
		URL:          pageURL,
		FinalURL:     resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		HTML:         html,
		Headers:      make(map[string]string),
		Backend:      s.Backend(),
		FetchedAt:    time.Now(),
		ResponseTime: time.Since(start).Milliseconds(),
	}
	for key, values := range resp.Header {
		if len(values) > 0 {
			page.Headers[key] = values[0]
		}
	}

	log.Debug().
		Str("url", pageURL).
		Int("status", resp.StatusCode).
		Int64("response_time_ms", page.ResponseTime).
		Msg("Fetch completed")

	return page, nil
}

// classifyTransport maps a transport failure onto the fetch taxonomy
func classifyTransport(pageURL string, err error) *Error {
	if fe := wrapCtxErr(pageURL, err); fe != nil {
		return fe
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(KindTimeout, pageURL, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if fe := wrapCtxErr(pageURL, urlErr.Err); fe != nil {
			return fe
		}
	}
	return NewError(KindNetwork, pageURL, err)
}

// retryable reports whether a fetch error is worth another attempt.
// Client errors are final; 429 and 5xx plus transport faults are transient.
func retryable(e *Error) bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.Status == http.StatusTooManyRequests || e.Status >= 500
	default:
		return false
	}
}

// Content returns the most recently fetched page
func (s *httpSession) Content(ctx context.Context) (*models.PageContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPage == nil {
		return nil, fmt.Errorf("no page fetched yet")
	}
	return s.lastPage, nil
}

// Visible is unsupported on the HTTP backend
func (s *httpSession) Visible(ctx context.Context, selector string) (bool, error) {
	return false, ErrNotInteractive
}

// Click is unsupported on the HTTP backend
func (s *httpSession) Click(ctx context.Context, selector string) error {
	return ErrNotInteractive
}

// WaitReady is unsupported on the HTTP backend
func (s *httpSession) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return ErrNotInteractive
}

// Eval is unsupported on the HTTP backend
func (s *httpSession) Eval(ctx context.Context, expr string, out any) error {
	return ErrNotInteractive
}

// Backend returns the backend name
func (s *httpSession) Backend() string { return string(models.BackendHTTP) }

// Close releases idle connections. Safe to call multiple times.
func (s *httpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}
