// Package scraper composes the fetch adapter, interaction handler,
// extraction chain, and normalizer into the two public scrape operations.
// One Scraper owns at most one session; concurrent scrapes each get their
// own Scraper and share only read-only configuration.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/eventcrawl/internal/browse"
	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/internal/extract"
	"github.com/law-makers/eventcrawl/internal/fetch"
	"github.com/law-makers/eventcrawl/internal/metrics"
	"github.com/law-makers/eventcrawl/internal/normalize"
	"github.com/law-makers/eventcrawl/internal/pacing"
	"github.com/law-makers/eventcrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// Stage identifies where in the pipeline a failure happened
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageInteract  Stage = "interact"
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
)

// Error wraps a pipeline failure with the URL and stage so the caller can
// implement its own retry policy. One failed URL never aborts a batch.
type Error struct {
	Stage Stage
	URL   string
	Err   error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error { return e.Err }

// CrawlParams configure one listing crawl
type CrawlParams struct {
	// URL of the listing/calendar page. Defaults to the site's listing URL.
	URL string
	// Paginate enables the pagination loop (browser backend only)
	Paginate bool
}

// Scraper drives one site with one session
type Scraper struct {
	site    *config.Site
	backend fetch.Backend
	chain   *extract.Chain
	norm    *normalize.Normalizer
	browser *browse.Handler
	pacer   *pacing.Controller
	metrics *metrics.Metrics

	mu      sync.Mutex
	session fetch.Session
}

// New wires a Scraper from its collaborators
func New(site *config.Site, backend fetch.Backend, chain *extract.Chain, norm *normalize.Normalizer, handler *browse.Handler, pacer *pacing.Controller, m *metrics.Metrics) *Scraper {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Scraper{
		site:    site,
		backend: backend,
		chain:   chain,
		norm:    norm,
		browser: handler,
		pacer:   pacer,
		metrics: m,
	}
}

// ensureSession opens the session on first use
func (s *Scraper) ensureSession(ctx context.Context) (fetch.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session, nil
	}
	session, err := s.backend.Open(ctx)
	if err != nil {
		return nil, err
	}
	s.session = session
	log.Debug().Str("site", s.site.Name).Str("backend", s.backend.Name()).Msg("Session opened")
	return session, nil
}

// dropSession tears down a session after an unrecoverable fetch failure so
// the next operation starts fresh
func (s *Scraper) dropSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
}

// ScrapeEvent fetches one detail page and returns one validated record.
// Extraction failures carry a *extract.NoStrategyError with the partial
// field maps for external diagnostics.
func (s *Scraper) ScrapeEvent(ctx context.Context, pageURL string) (*models.EventRecord, error) {
	session, err := s.ensureSession(ctx)
	if err != nil {
		return nil, &Error{Stage: StageFetch, URL: pageURL, Err: err}
	}

	if err := s.pause(ctx, pacing.KindNavigate); err != nil {
		return nil, &Error{Stage: StageFetch, URL: pageURL, Err: err}
	}

	page, err := session.Navigate(ctx, pageURL, fetch.NavigateOptions{
		WaitSelector: s.site.WaitSelector,
		Timeout:      s.site.Timeout,
	})
	if err != nil {
		s.countFetchError(err)
		if isUnrecoverable(err) {
			s.dropSession()
		}
		return nil, &Error{Stage: StageFetch, URL: pageURL, Err: err}
	}
	s.metrics.Fetches.WithLabelValues(session.Backend()).Inc()

	result, err := s.chain.Extract(page)
	if err != nil {
		s.metrics.ExtractionMisses.Inc()
		return nil, &Error{Stage: StageExtract, URL: pageURL, Err: err}
	}
	s.metrics.Extractions.WithLabelValues(result.Method).Inc()

	record, err := s.norm.Normalize(result.Fields, pageURL)
	if err != nil {
		return nil, &Error{Stage: StageNormalize, URL: pageURL, Err: err}
	}
	record.ExtractionMethod = result.Method
	s.metrics.RecordsEmitted.Inc()

	log.Info().
		Str("url", record.URL).
		Str("method", record.ExtractionMethod).
		Str("title", record.Title).
		Msg("Event scraped")

	return record, nil
}

// CrawlListing fetches a listing page, clears overlays, harvests candidate
// detail links, and optionally paginates. It returns the deduplicated set
// of detail URLs; scraping those pages is a separate, composable step.
//
// Pagination exhaustion after at least one page is normal termination. A
// timed-out pagination step returns the links collected so far together
// with the interaction error.
func (s *Scraper) CrawlListing(ctx context.Context, params CrawlParams) ([]string, error) {
	listingURL := params.URL
	if listingURL == "" {
		listingURL = s.site.ListingURL
	}
	if listingURL == "" {
		return nil, fmt.Errorf("no listing URL configured")
	}

	session, err := s.ensureSession(ctx)
	if err != nil {
		return nil, &Error{Stage: StageFetch, URL: listingURL, Err: err}
	}

	if err := s.pause(ctx, pacing.KindNavigate); err != nil {
		return nil, &Error{Stage: StageFetch, URL: listingURL, Err: err}
	}

	page, err := session.Navigate(ctx, listingURL, fetch.NavigateOptions{
		WaitSelector: s.site.WaitSelector,
		Timeout:      s.site.Timeout,
	})
	if err != nil {
		s.countFetchError(err)
		if isUnrecoverable(err) {
			s.dropSession()
		}
		return nil, &Error{Stage: StageFetch, URL: listingURL, Err: err}
	}
	s.metrics.Fetches.WithLabelValues(session.Backend()).Inc()

	interactive := session.Backend() == string(models.BackendBrowser)

	if interactive && len(s.site.OverlaySelectors) > 0 {
		dismissed, derr := s.browser.DismissOverlays(ctx, session)
		if derr != nil {
			return nil, &Error{Stage: StageInteract, URL: listingURL, Err: derr}
		}
		s.metrics.OverlaysDismissed.Add(float64(dismissed))
		if dismissed > 0 {
			// Overlay clicks may have mutated the DOM
			if page, err = session.Content(ctx); err != nil {
				return nil, &Error{Stage: StageInteract, URL: listingURL, Err: err}
			}
		}
	}

	seen := make(map[string]bool)
	var links []string
	collect := func(p *models.PageContent) error {
		found, lerr := s.chain.Links(p)
		if lerr != nil {
			return lerr
		}
		for _, link := range found {
			if !seen[link] {
				seen[link] = true
				links = append(links, link)
			}
		}
		return nil
	}

	if err := collect(page); err != nil {
		return nil, &Error{Stage: StageExtract, URL: listingURL, Err: err}
	}

	if params.Paginate && interactive {
		paginator := browse.NewPaginator(session, s.pacer, s.site.Pagination)
		for {
			perr := paginator.Next(ctx)
			if errors.Is(perr, browse.ErrPaginationExhausted) {
				break
			}
			if perr != nil {
				if errors.Is(perr, browse.ErrInteractionTimeout) && paginator.Steps() > 0 {
					log.Warn().
						Str("url", listingURL).
						Int("pages", paginator.Steps()).
						Msg("Pagination aborted by step timeout, keeping links collected so far")
					return links, &Error{Stage: StageInteract, URL: listingURL, Err: perr}
				}
				return links, &Error{Stage: StageInteract, URL: listingURL, Err: perr}
			}

			next, cerr := session.Content(ctx)
			if cerr != nil {
				return links, &Error{Stage: StageInteract, URL: listingURL, Err: cerr}
			}
			if err := collect(next); err != nil {
				return links, &Error{Stage: StageExtract, URL: listingURL, Err: err}
			}
		}
	}

	log.Info().
		Str("url", listingURL).
		Int("links", len(links)).
		Msg("Listing crawled")

	return links, nil
}

// Close releases the session. Idempotent; the next operation reopens.
func (s *Scraper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

func (s *Scraper) pause(ctx context.Context, kind string) error {
	delay := s.pacer.Delay(kind)
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scraper) countFetchError(err error) {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		s.metrics.FetchErrors.WithLabelValues(string(fe.Kind)).Inc()
	}
}

// isUnrecoverable reports whether the session should be torn down after
// this fetch failure. HTTP status errors leave the session usable; a dead
// renderer does not.
func isUnrecoverable(err error) bool {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return fe.Kind == fetch.KindRender
	}
	return false
}
