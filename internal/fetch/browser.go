package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/eventcrawl/internal/auth"
	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/internal/pacing"
	"github.com/law-makers/eventcrawl/internal/ratelimit"
	"github.com/law-makers/eventcrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// BrowserBackend fetches pages through a controlled Chrome session so that
// client-rendered calendars and listings materialize before extraction.
// Browser fetches are expensive, so the backend never auto-retries.
type BrowserBackend struct {
	cfg     *config.Config
	site    *config.Site
	limiter ratelimit.Limiter
	pacer   *pacing.Controller
}

// NewBrowserBackend creates the browser backend with dependency injection
func NewBrowserBackend(cfg *config.Config, site *config.Site, lim ratelimit.Limiter, pacer *pacing.Controller) *BrowserBackend {
	return &BrowserBackend{cfg: cfg, site: site, limiter: lim, pacer: pacer}
}

// Name returns the backend name
func (b *BrowserBackend) Name() string { return string(models.BackendBrowser) }

// Open launches a Chrome context and prepares it for the site
func (b *BrowserBackend) Open(ctx context.Context) (Session, error) {
	userAgent := b.cfg.UserAgent
	if len(b.site.UserAgents) > 0 {
		userAgent = b.site.UserAgents[0]
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.UserAgent(userAgent),
	}

	chromePath := b.cfg.ChromePath
	if chromePath == "" {
		chromePath = FindChrome()
	}
	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}

	if b.cfg.BrowserHeadless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	sess := &browserSession{
		backend:       b,
		ctx:           browserCtx,
		cancelBrowser: browserCancel,
		cancelAlloc:   allocCancel,
	}

	// Warm up and verify Chrome actually starts
	warmCtx, warmCancel := context.WithTimeout(browserCtx, b.site.Timeout)
	defer warmCancel()
	if err := chromedp.Run(warmCtx, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		sess.Close()
		return nil, NewError(KindRender, "about:blank", fmt.Errorf("failed to start browser: %w", err))
	}

	// Track the status of main-document responses for the whole session
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument {
				sess.setStatus(int(resp.Response.Status))
			}
		}
	})

	if b.site.Session != "" {
		if err := sess.loadSession(b.site.Session); err != nil {
			log.Warn().Err(err).Str("session", b.site.Session).Msg("Failed to load stored session")
		}
	}

	log.Debug().Str("site", b.site.Name).Msg("Browser session opened")
	return sess, nil
}

type browserSession struct {
	backend       *BrowserBackend
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	mu         sync.Mutex
	lastStatus int
	currentURL string
	closed     bool
}

func (s *browserSession) setStatus(code int) {
	s.mu.Lock()
	s.lastStatus = code
	s.mu.Unlock()
}

func (s *browserSession) loadSession(name string) error {
	stored, err := auth.Load(name)
	if err != nil {
		return err
	}
	var params []*network.CookieParam
	for _, c := range stored.Cookies {
		cookie := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			cookie.Expires = &t
		}
		params = append(params, cookie)
	}
	if len(params) == 0 {
		return nil
	}
	if err := chromedp.Run(s.ctx, network.SetCookies(params)); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	log.Debug().Int("cookies", len(params)).Str("session", name).Msg("Session cookies injected")
	return nil
}

// run executes chromedp actions under both the caller's context and the
// session's. Either cancellation tears the run down.
func (s *browserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session is closed")
	}
	sessCtx := s.ctx
	s.mu.Unlock()

	done := make(chan error, 1)
	runCtx, cancel := context.WithCancel(sessCtx)
	defer cancel()
	go func() {
		done <- chromedp.Run(runCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads the URL and waits for the content-ready condition
func (s *browserSession) Navigate(ctx context.Context, pageURL string, opts NavigateOptions) (*models.PageContent, error) {
	start := time.Now()

	if err := s.backend.limiter.Wait(ctx, pageURL); err != nil {
		return nil, wrapCtxErr(pageURL, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.backend.site.Timeout
	}
	waitSelector := opts.WaitSelector
	if waitSelector == "" {
		waitSelector = s.backend.site.WaitSelector
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.setStatus(0)

	err := s.run(navCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
	)
	if err != nil {
		if fe := wrapCtxErr(pageURL, err); fe != nil {
			// The ready condition never held within the deadline
			return nil, fe
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(KindTimeout, pageURL, err)
		}
		return nil, NewError(KindRender, pageURL, err)
	}

	s.mu.Lock()
	s.currentURL = pageURL
	s.mu.Unlock()

	page, err := s.snapshot(navCtx, start)
	if err != nil {
		return nil, NewError(KindRender, pageURL, err)
	}

	log.Debug().
		Str("url", pageURL).
		Int("status", page.StatusCode).
		Int64("response_time_ms", page.ResponseTime).
		Msg("Fetch completed")

	return page, nil
}

// Content snapshots the current DOM, including any changes interactions made
func (s *browserSession) Content(ctx context.Context) (*models.PageContent, error) {
	page, err := s.snapshot(ctx, time.Now())
	if err != nil {
		s.mu.Lock()
		u := s.currentURL
		s.mu.Unlock()
		if fe := wrapCtxErr(u, err); fe != nil {
			return nil, fe
		}
		return nil, NewError(KindRender, u, err)
	}
	return page, nil
}

func (s *browserSession) snapshot(ctx context.Context, start time.Time) (*models.PageContent, error) {
	var html, title, finalURL string
	err := s.run(ctx,
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	pageURL := s.currentURL
	status := s.lastStatus
	s.mu.Unlock()
	if pageURL == "" {
		pageURL = finalURL
	}

	return &models.PageContent{
		URL:          pageURL,
		FinalURL:     finalURL,
		StatusCode:   status,
		Title:        strings.TrimSpace(title),
		HTML:         html,
		Backend:      s.Backend(),
		FetchedAt:    time.Now(),
		ResponseTime: time.Since(start).Milliseconds(),
	}, nil
}

const visibleExpr = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return false;
	const r = el.getBoundingClientRect();
	const st = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && st.visibility !== 'hidden' && st.display !== 'none';
})(%q)`

// Visible reports whether the first match for the selector is rendered
func (s *browserSession) Visible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(visibleExpr, selector), &visible))
	if err != nil {
		return false, err
	}
	return visible, nil
}

const centerExpr = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return null;
	const r = el.getBoundingClientRect();
	return [r.left + r.width / 2, r.top + r.height / 2];
})(%q)`

// Click moves the mouse onto the element, pauses briefly, then clicks.
// The movement makes the interaction look less synthetic to bot heuristics.
func (s *browserSession) Click(ctx context.Context, selector string) error {
	var center []float64
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(centerExpr, selector), &center)); err != nil {
		return err
	}
	if len(center) != 2 {
		return fmt.Errorf("selector %q not found", selector)
	}

	x, y := center[0], center[1]
	pause := s.backend.pacer.Delay(pacing.KindCheck)

	return s.run(ctx,
		chromedp.ActionFunc(func(c context.Context) error {
			if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(c); err != nil {
				return err
			}
			select {
			case <-time.After(pause):
				return nil
			case <-c.Done():
				return c.Err()
			}
		}),
		chromedp.MouseClickXY(x, y),
	)
}

// WaitReady blocks until the selector is visible or the timeout elapses
func (s *browserSession) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := s.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		s.mu.Lock()
		u := s.currentURL
		s.mu.Unlock()
		return NewError(KindTimeout, u, err)
	}
	return err
}

// Eval runs a JavaScript expression in the page
func (s *browserSession) Eval(ctx context.Context, expr string, out any) error {
	if out == nil {
		return s.run(ctx, chromedp.Evaluate(expr, nil))
	}
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

// Backend returns the backend name
func (s *browserSession) Backend() string { return string(models.BackendBrowser) }

// Close tears down the browser and allocator. Idempotent, safe to call
// after cancellation mid-navigation.
func (s *browserSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancelBrowser()
	s.cancelAlloc()
	log.Debug().Msg("Browser session closed")
	return nil
}
