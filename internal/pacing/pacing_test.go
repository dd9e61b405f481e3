package pacing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/law-makers/eventcrawl/internal/config"
)

func TestController_Delay_WithinRange(t *testing.T) {
	ranges := map[string]config.DelayRange{
		KindNavigate: {Min: 1.5, Max: 4.0},
		KindClick:    {Min: 0.4, Max: 1.2},
	}
	c := New(ranges, WithRand(rand.New(rand.NewSource(42))))

	for i := 0; i < 100; i++ {
		d := c.Delay(KindNavigate)
		if d < 1500*time.Millisecond || d > 4000*time.Millisecond {
			t.Fatalf("navigate delay %v outside [1.5s, 4s]", d)
		}
		d = c.Delay(KindClick)
		if d < 400*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("click delay %v outside [0.4s, 1.2s]", d)
		}
	}
}

func TestController_Delay_UnknownKindIsZero(t *testing.T) {
	c := New(map[string]config.DelayRange{
		KindClick: {Min: 0.5, Max: 1.0},
	}, WithRand(rand.New(rand.NewSource(1))))

	if d := c.Delay("scroll"); d != 0 {
		t.Errorf("expected zero delay for unconfigured kind, got %v", d)
	}
	if d := c.Delay(KindNavigate); d != 0 {
		t.Errorf("expected zero delay for unconfigured kind, got %v", d)
	}
}

func TestController_Delay_FixedRange(t *testing.T) {
	c := New(map[string]config.DelayRange{
		KindCheck: {Min: 0.2, Max: 0.2},
	}, WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 10; i++ {
		if d := c.Delay(KindCheck); d != 200*time.Millisecond {
			t.Fatalf("expected fixed 200ms delay, got %v", d)
		}
	}
}

func TestController_Backoff_MonotoneAndCapped(t *testing.T) {
	c := New(nil)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		b := c.Backoff(attempt)
		if b < prev {
			t.Fatalf("backoff decreased at attempt %d: %v < %v", attempt, b, prev)
		}
		if b > 30*time.Second {
			t.Fatalf("backoff exceeded cap at attempt %d: %v", attempt, b)
		}
		prev = b
	}

	if got := c.Backoff(1); got != 1*time.Second {
		t.Errorf("first backoff = %v, want 1s", got)
	}
	if got := c.Backoff(2); got != 2*time.Second {
		t.Errorf("second backoff = %v, want 2s", got)
	}
	if got := c.Backoff(100); got != 30*time.Second {
		t.Errorf("capped backoff = %v, want 30s", got)
	}
}

func TestController_Backoff_AttemptFloor(t *testing.T) {
	c := New(nil)
	if got, want := c.Backoff(0), c.Backoff(1); got != want {
		t.Errorf("Backoff(0) = %v, want %v", got, want)
	}
}
