package browse

import (
	"context"
	"errors"
	"testing"

	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/internal/fetch"
	"github.com/law-makers/eventcrawl/internal/pacing"
)

func testRules(maxSteps int) config.Pagination {
	return config.Pagination{
		NextSelector:  "a.next",
		ReadySelector: ".event-list",
		MaxSteps:      maxSteps,
		StepTimeout:   0,
	}
}

func TestPaginator_ZeroStepsExhaustsImmediately(t *testing.T) {
	session := newFakeSession()
	p := NewPaginator(session, pacing.New(nil), testRules(0))

	err := p.Next(context.Background())
	if !errors.Is(err, ErrPaginationExhausted) {
		t.Fatalf("expected ErrPaginationExhausted, got %v", err)
	}
	if session.visChecks != 0 || len(session.clicks) != 0 || len(session.waits) != 0 {
		t.Error("a zero step bound must not touch the session")
	}
}

func TestPaginator_AdvancesOneStep(t *testing.T) {
	session := newFakeSession()
	session.visible["a.next"] = true
	p := NewPaginator(session, pacing.New(nil), testRules(3))

	if err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if p.Steps() != 1 {
		t.Errorf("steps = %d, want 1", p.Steps())
	}
	if p.State() != StateReady {
		t.Errorf("state = %q, want ready", p.State())
	}
	if len(session.clicks) != 1 || session.clicks[0] != "a.next" {
		t.Errorf("clicks = %v", session.clicks)
	}
	if len(session.waits) != 1 || session.waits[0] != ".event-list" {
		t.Errorf("waits = %v", session.waits)
	}
}

func TestPaginator_ExhaustsAtBound(t *testing.T) {
	session := newFakeSession()
	session.visible["a.next"] = true
	p := NewPaginator(session, pacing.New(nil), testRules(2))

	for i := 0; i < 2; i++ {
		if err := p.Next(context.Background()); err != nil {
			t.Fatalf("step %d failed: %v", i+1, err)
		}
	}
	if err := p.Next(context.Background()); !errors.Is(err, ErrPaginationExhausted) {
		t.Fatalf("expected exhaustion after step bound, got %v", err)
	}
	if p.Steps() != 2 {
		t.Errorf("steps = %d, want 2", p.Steps())
	}
}

func TestPaginator_MissingNextControlExhausts(t *testing.T) {
	session := newFakeSession()
	p := NewPaginator(session, pacing.New(nil), testRules(5))

	if err := p.Next(context.Background()); !errors.Is(err, ErrPaginationExhausted) {
		t.Fatalf("expected exhaustion when no next control renders, got %v", err)
	}
	if len(session.clicks) != 0 {
		t.Errorf("expected no clicks, got %v", session.clicks)
	}
}

func TestPaginator_StepTimeout(t *testing.T) {
	session := newFakeSession()
	session.visible["a.next"] = true
	session.waitErr = fetch.NewError(fetch.KindTimeout, "https://example.com/events", context.DeadlineExceeded)
	p := NewPaginator(session, pacing.New(nil), testRules(3))

	err := p.Next(context.Background())
	if !errors.Is(err, ErrInteractionTimeout) {
		t.Fatalf("expected ErrInteractionTimeout, got %v", err)
	}
	if p.Steps() != 0 {
		t.Errorf("a timed-out step must not count, steps = %d", p.Steps())
	}
	if p.State() != StateIdle {
		t.Errorf("state = %q, want idle after abort", p.State())
	}
}

func TestPaginator_MissingNextSelectorErrors(t *testing.T) {
	session := newFakeSession()
	rules := testRules(3)
	rules.NextSelector = ""
	p := NewPaginator(session, pacing.New(nil), rules)

	if err := p.Next(context.Background()); err == nil {
		t.Error("expected error without a next_selector")
	}
}
