package models

import "time"

// PageContent represents the rendered content of a fetched page
type PageContent struct {
	URL          string            `json:"url"`
	FinalURL     string            `json:"final_url,omitempty"`
	StatusCode   int               `json:"status_code"`
	Title        string            `json:"title,omitempty"`
	HTML         string            `json:"html,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Backend      string            `json:"backend"`
	FetchedAt    time.Time         `json:"fetched_at"`
	ResponseTime int64             `json:"response_time_ms"`
}

// EventRecord is the canonical output unit of a scrape.
// Only URL is mandatory; every other field degrades to its zero value.
type EventRecord struct {
	URL     string `json:"url"`
	EventID string `json:"event_id"`

	Title       string   `json:"title,omitempty"`
	Venue       string   `json:"venue,omitempty"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Promoter    string   `json:"promoter,omitempty"`

	// Raw date text is retained even when parsing succeeds, for audit.
	DateText  string `json:"date_text,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	PriceText  string   `json:"price_text,omitempty"`
	PriceValue *float64 `json:"price_value,omitempty"`
	Currency   string   `json:"currency,omitempty"`

	Lineup []string `json:"lineup,omitempty"`

	ScrapedAt        time.Time `json:"scraped_at"`
	ExtractionMethod string    `json:"extraction_method"`
}

// BackendKind selects the fetch backend for a session
type BackendKind string

const (
	BackendHTTP    BackendKind = "http"
	BackendBrowser BackendKind = "browser"
)
