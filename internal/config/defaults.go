package config

import "time"

// Site backend names
const (
	BackendHTTP    = "http"
	BackendBrowser = "browser"
)

// Default constants for application and site configuration
const (
	DefaultLogLevel        = "info"
	DefaultJSONLog         = false
	DefaultUserAgent       = "EventCrawl/1.0 (https://github.com/law-makers/eventcrawl)"
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultRateLimitRPS    = 2.0
	DefaultRateLimitBurst  = 4
	DefaultBrowserHeadless = true
	DefaultCacheTTL        = 5 * time.Minute

	DefaultSiteBackend           = BackendHTTP
	DefaultOverlayPasses         = 3
	DefaultPaginationStepTimeout = 15 * time.Second

	DefaultNavigateDelayMin = 1.5
	DefaultNavigateDelayMax = 4.0
	DefaultClickDelayMin    = 0.4
	DefaultClickDelayMax    = 1.2
	DefaultCheckDelayMin    = 0.1
	DefaultCheckDelayMax    = 0.3
)
