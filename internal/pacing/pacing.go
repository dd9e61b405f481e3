// Package pacing produces randomized, bounded wait intervals that mimic
// human interaction timing, and backoff durations for failed fetches.
// It has no side effects; callers are responsible for actually sleeping.
package pacing

import (
	"math"
	"math/rand"
	"time"

	"github.com/law-makers/eventcrawl/internal/config"
)

// Interaction kinds with configurable delay ranges
const (
	KindNavigate = "navigate"
	KindClick    = "click"
	KindCheck    = "check"
)

// Controller samples delays from per-kind [min, max] ranges and computes
// capped exponential backoff for retry attempts.
type Controller struct {
	ranges     map[string]config.DelayRange
	initial    time.Duration
	maxBackoff time.Duration
	multiplier float64
	rng        *rand.Rand
}

// Option configures a Controller
type Option func(*Controller)

// WithRand sets a deterministic random source, used by tests
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) { c.rng = rng }
}

// New creates a Controller from the site's delay ranges
func New(ranges map[string]config.DelayRange, opts ...Option) *Controller {
	c := &Controller{
		ranges:     ranges,
		initial:    1 * time.Second,
		maxBackoff: 30 * time.Second,
		multiplier: 2.0,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Delay returns a duration sampled uniformly from the configured range for
// the given interaction kind. Unknown kinds get a zero delay.
func (c *Controller) Delay(kind string) time.Duration {
	r, ok := c.ranges[kind]
	if !ok || r.Max <= 0 {
		return 0
	}
	span := r.Max - r.Min
	seconds := r.Min
	if span > 0 {
		seconds += c.rng.Float64() * span
	}
	return time.Duration(seconds * float64(time.Second))
}

// Backoff returns a monotonically increasing duration for attempt >= 1,
// capped at the configured maximum.
func (c *Controller) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(c.initial) * math.Pow(c.multiplier, float64(attempt-1))
	if backoff > float64(c.maxBackoff) {
		backoff = float64(c.maxBackoff)
	}
	return time.Duration(backoff)
}
