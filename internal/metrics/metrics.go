// Package metrics exposes scrape counters. The registry is handed to the
// caller; nothing here serves HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters one scrape run updates
type Metrics struct {
	Fetches           *prometheus.CounterVec
	FetchErrors       *prometheus.CounterVec
	Extractions       *prometheus.CounterVec
	ExtractionMisses  prometheus.Counter
	RecordsEmitted    prometheus.Counter
	OverlaysDismissed prometheus.Counter
}

// New registers the scrape counters on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcrawl_fetches_total",
			Help: "Pages fetched, by backend.",
		}, []string{"backend"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcrawl_fetch_errors_total",
			Help: "Fetch failures, by error kind.",
		}, []string{"kind"}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcrawl_extractions_total",
			Help: "Successful extractions, by primary strategy.",
		}, []string{"method"}),
		ExtractionMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventcrawl_extraction_misses_total",
			Help: "Pages where no strategy met the minimum field set.",
		}),
		RecordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventcrawl_records_emitted_total",
			Help: "Validated event records handed to the caller.",
		}),
		OverlaysDismissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventcrawl_overlays_dismissed_total",
			Help: "Overlays clicked away during crawls.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Fetches, m.FetchErrors, m.Extractions,
			m.ExtractionMisses, m.RecordsEmitted, m.OverlaysDismissed)
	}
	return m
}

// NewUnregistered creates metrics without a registry, for tests
func NewUnregistered() *Metrics {
	return New(nil)
}
