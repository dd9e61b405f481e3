package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// Config holds application-level configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Fetching
	HTTPTimeout time.Duration
	UserAgent   string
	MaxRetries  int

	// Rate Limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Browser
	BrowserHeadless bool
	ChromePath      string

	// Caching
	CacheTTL time.Duration
}

// Load builds a Config by combining defaults, environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:        DefaultLogLevel,
		JSONLog:         DefaultJSONLog,
		HTTPTimeout:     DefaultHTTPTimeout,
		UserAgent:       DefaultUserAgent,
		MaxRetries:      DefaultMaxRetries,
		RateLimitRPS:    DefaultRateLimitRPS,
		RateLimitBurst:  DefaultRateLimitBurst,
		BrowserHeadless: DefaultBrowserHeadless,
		CacheTTL:        DefaultCacheTTL,
	}

	if v := os.Getenv("EVENTCRAWL_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("EVENTCRAWL_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}

	if cmd != nil {
		if f := cmd.Flags().Lookup("user-agent"); f != nil {
			if s := f.Value.String(); s != "" {
				cfg.UserAgent = s
			}
		}
		if f := cmd.Flags().Lookup("timeout"); f != nil {
			if s := f.Value.String(); s != "" {
				if d, err := time.ParseDuration(s); err == nil {
					cfg.HTTPTimeout = d
				}
			}
		}
		if f := cmd.Flags().Lookup("json"); f != nil {
			if f.Value.String() == "true" {
				cfg.JSONLog = true
			}
		}
		if f := cmd.Flags().Lookup("verbose"); f != nil {
			if f.Value.String() == "true" {
				cfg.LogLevel = "debug"
			}
		}
		if f := cmd.Flags().Lookup("headed"); f != nil {
			if f.Value.String() == "true" {
				cfg.BrowserHeadless = false
			}
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DelayRange bounds a randomized human-like pause, in seconds
type DelayRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Pagination describes how to advance a listing/calendar page
type Pagination struct {
	NextSelector  string        `yaml:"next_selector"`
	ReadySelector string        `yaml:"ready_selector"`
	MaxSteps      int           `yaml:"max_steps"`
	StepTimeout   time.Duration `yaml:"step_timeout"`
}

// Site is the injected per-site configuration: selector catalogs, delay
// bounds, pagination rules. Loaded once per run and read-only thereafter.
type Site struct {
	Name       string `yaml:"name"`
	ListingURL string `yaml:"listing_url"`
	Backend    string `yaml:"backend"` // "http" or "browser"
	Session    string `yaml:"session"` // named auth session, optional

	UserAgents []string `yaml:"user_agents"`

	// Field name -> ordered fallback selector list for the selector strategy
	Selectors map[string][]string `yaml:"selectors"`

	// Detail link harvesting on listing pages
	LinkSelector string `yaml:"link_selector"`
	LinkPattern  string `yaml:"link_pattern"`

	// Obstacle clearing
	OverlaySelectors []string `yaml:"overlay_selectors"`
	OverlayPasses    int      `yaml:"overlay_passes"`

	// Window globals probed by the structured-data strategy when no
	// ld+json block is present
	ScriptGlobals []string `yaml:"script_globals"`

	WaitSelector string        `yaml:"wait_selector"`
	Timeout      time.Duration `yaml:"timeout"`

	Delays     map[string]DelayRange `yaml:"delays"`
	Pagination Pagination            `yaml:"pagination"`

	// Fallback currency when price text carries no recognizable symbol
	Currency string `yaml:"currency"`
}

// LoadSite reads a site configuration from a YAML file and applies defaults
func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site config: %w", err)
	}

	site := &Site{}
	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, fmt.Errorf("failed to parse site config: %w", err)
	}

	site.ApplyDefaults()

	if err := validateSite(site); err != nil {
		return nil, fmt.Errorf("invalid site config %q: %w", site.Name, err)
	}

	return site, nil
}

// ApplyDefaults fills unset site fields with conservative defaults
func (s *Site) ApplyDefaults() {
	if s.Backend == "" {
		s.Backend = DefaultSiteBackend
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultHTTPTimeout
	}
	if s.OverlayPasses <= 0 {
		s.OverlayPasses = DefaultOverlayPasses
	}
	if s.Pagination.StepTimeout <= 0 {
		s.Pagination.StepTimeout = DefaultPaginationStepTimeout
	}
	if s.WaitSelector == "" {
		s.WaitSelector = "body"
	}
	if len(s.Delays) == 0 {
		s.Delays = map[string]DelayRange{
			"navigate": {Min: DefaultNavigateDelayMin, Max: DefaultNavigateDelayMax},
			"click":    {Min: DefaultClickDelayMin, Max: DefaultClickDelayMax},
			"check":    {Min: DefaultCheckDelayMin, Max: DefaultCheckDelayMax},
		}
	}
}
