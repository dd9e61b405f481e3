package config

import "fmt"

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit rps must be > 0")
	}
	return nil
}

func validateSite(s *Site) error {
	if s.Name == "" {
		return fmt.Errorf("site name is required")
	}
	if s.Backend != BackendHTTP && s.Backend != BackendBrowser {
		return fmt.Errorf("backend must be http or browser, got %q", s.Backend)
	}
	if s.Pagination.MaxSteps < 0 {
		return fmt.Errorf("pagination max_steps must be >= 0")
	}
	for kind, r := range s.Delays {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("delay range for %q must satisfy 0 <= min <= max", kind)
		}
	}
	return nil
}
