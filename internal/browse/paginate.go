package browse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/internal/fetch"
	"github.com/law-makers/eventcrawl/internal/pacing"
	"github.com/rs/zerolog/log"
)

// State tracks where a pagination attempt is in its lifecycle
type State string

const (
	StateIdle            State = "idle"
	StateNavigating      State = "navigating"
	StateAwaitingContent State = "awaiting_content"
	StateReady           State = "ready"
)

// Paginator advances a listing/calendar page step by step. Each Next call
// issues one "next" interaction and awaits the content-ready condition.
type Paginator struct {
	session fetch.Session
	pacer   *pacing.Controller
	rules   config.Pagination
	state   State
	steps   int
}

// NewPaginator creates a paginator bound to one session
func NewPaginator(session fetch.Session, pacer *pacing.Controller, rules config.Pagination) *Paginator {
	return &Paginator{
		session: session,
		pacer:   pacer,
		rules:   rules,
		state:   StateIdle,
	}
}

// State returns the current pagination state
func (p *Paginator) State() State { return p.state }

// Steps returns how many pages have been advanced so far
func (p *Paginator) Steps() int { return p.steps }

// Next advances one page. ErrPaginationExhausted once the configured step
// bound is reached; ErrInteractionTimeout when a step's ready condition
// never holds. A timed-out step aborts the attempt and resets to idle.
func (p *Paginator) Next(ctx context.Context) error {
	if p.steps >= p.rules.MaxSteps {
		p.state = StateIdle
		return ErrPaginationExhausted
	}
	if p.rules.NextSelector == "" {
		return fmt.Errorf("pagination requires a next_selector")
	}

	visible, err := p.session.Visible(ctx, p.rules.NextSelector)
	if err != nil {
		p.state = StateIdle
		return err
	}
	if !visible {
		// No next control rendered: end of data
		p.state = StateIdle
		return ErrPaginationExhausted
	}

	p.state = StateNavigating
	if err := p.pause(ctx, pacing.KindClick); err != nil {
		p.state = StateIdle
		return err
	}
	if err := p.session.Click(ctx, p.rules.NextSelector); err != nil {
		p.state = StateIdle
		return fmt.Errorf("next click failed: %w", err)
	}

	p.state = StateAwaitingContent
	ready := p.rules.ReadySelector
	if ready == "" {
		ready = "body"
	}
	if err := p.session.WaitReady(ctx, ready, p.rules.StepTimeout); err != nil {
		p.state = StateIdle
		if fetch.IsTimeout(err) {
			log.Warn().
				Str("selector", ready).
				Int("step", p.steps+1).
				Msg("Pagination step timed out awaiting content")
			return errors.Join(ErrInteractionTimeout, err)
		}
		return err
	}

	p.steps++
	p.state = StateReady
	log.Debug().Int("step", p.steps).Msg("Pagination step completed")
	return nil
}

func (p *Paginator) pause(ctx context.Context, kind string) error {
	delay := p.pacer.Delay(kind)
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
