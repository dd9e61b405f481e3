// Package app provides application initialization and lifecycle management.
package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/law-makers/eventcrawl/internal/browse"
	"github.com/law-makers/eventcrawl/internal/cache"
	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/internal/extract"
	"github.com/law-makers/eventcrawl/internal/fetch"
	"github.com/law-makers/eventcrawl/internal/metrics"
	"github.com/law-makers/eventcrawl/internal/normalize"
	"github.com/law-makers/eventcrawl/internal/pacing"
	"github.com/law-makers/eventcrawl/internal/ratelimit"
	"github.com/law-makers/eventcrawl/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Application holds the shared dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Per-site scrapers are built on demand with NewScraper.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	RateLimiter ratelimit.Limiter
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics

	scrapers  []*scraper.Scraper
	startTime time.Time
}

// New creates and initializes an Application:
//   - configures logging from the provided config
//   - creates the in-memory page cache
//   - creates the per-domain rate limiter
//   - sets up the metrics registry
//
// Browser processes are not started here; each scraper opens its session
// lazily on first use.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := zerolog.ErrorLevel
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger := log.Output(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	memCache := cache.NewMemoryCache()
	rateLimiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		Cache:       memCache,
		RateLimiter: rateLimiter,
		Registry:    registry,
		Metrics:     m,
		startTime:   time.Now(),
	}

	logger.Debug().Msg("Application initialized")
	return app, nil
}

// NewScraper wires a scraper for one site. The session backend follows the
// site's backend setting; everything else comes from shared state.
func (a *Application) NewScraper(site *config.Site) (*scraper.Scraper, error) {
	if site == nil {
		return nil, fmt.Errorf("site config is required")
	}

	pacer := pacing.New(site.Delays)

	var backend fetch.Backend
	switch site.Backend {
	case config.BackendHTTP:
		backend = fetch.NewHTTPBackend(a.Config, site, a.RateLimiter, a.Cache, pacer)
	case config.BackendBrowser:
		backend = fetch.NewBrowserBackend(a.Config, site, a.RateLimiter, pacer)
	default:
		return nil, fmt.Errorf("unknown backend %q", site.Backend)
	}

	s := scraper.New(
		site,
		backend,
		extract.NewChain(site),
		normalize.New(site),
		browse.NewHandler(site, pacer),
		pacer,
		a.Metrics,
	)
	a.scrapers = append(a.scrapers, s)

	a.Logger.Debug().
		Str("site", site.Name).
		Str("backend", site.Backend).
		Msg("Scraper created")
	return s, nil
}

// Close shuts down every scraper session and clears the cache. Errors during
// shutdown are logged but do not stop the remaining steps.
func (a *Application) Close() error {
	for _, s := range a.scrapers {
		if err := s.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing scraper session")
		}
	}
	a.scrapers = nil

	if a.Cache != nil {
		a.Cache.Clear()
	}

	a.Logger.Debug().Dur("uptime", time.Since(a.startTime)).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
