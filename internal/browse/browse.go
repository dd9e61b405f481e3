// Package browse drives a browser session through obstacle-clearing
// sequences: cookie banners, modals, and paginated calendars. All actions
// are paced through the delay controller to look human.
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

// Interaction errors
var (
	// ErrPaginationExhausted signals the configured step bound was hit.
	// Callers treat it as "end of data", not a failure.
	ErrPaginationExhausted = errors.New("pagination step limit reached")

	// ErrInteractionTimeout signals one interaction step timed out
	ErrInteractionTimeout = errors.New("interaction step timed out")
)

// Handler clears interactive obstacles using declarative selector lists
type Handler struct {
	site  *config.Site
	pacer *pacing.Controller
}

// NewHandler creates an interaction handler for one site
func NewHandler(site *config.Site, pacer *pacing.Controller) *Handler {
	return &Handler{site: site, pacer: pacer}
}

// frameDismissExpr clicks a consent selector inside same-origin iframes,
// where querySelector on the top document cannot reach.
const frameDismissExpr = `(function(sel) {
	for (const frame of document.querySelectorAll('iframe')) {
		try {
			const doc = frame.contentDocument;
			if (!doc) continue;
			const el = doc.querySelector(sel);
			if (el) { el.click(); return true; }
		} catch (e) { /* cross-origin */ }
	}
	return false;
})(%q)`

// DismissOverlays clicks away cookie banners and modals. Per pass, the
// first visible match from the configured selector list gets a human-like
// click; passes stop early once nothing matches. Absence of any overlay is
// success, not failure.
func (h *Handler) DismissOverlays(ctx context.Context, session fetch.Session) (int, error) {
	dismissed := 0
	for pass := 0; pass < h.site.OverlayPasses; pass++ {
		clicked, err := h.dismissOne(ctx, session)
		if err != nil {
			return dismissed, err
		}
		if !clicked {
			break
		}
		dismissed++
	}
	if dismissed > 0 {
		log.Debug().Int("dismissed", dismissed).Str("site", h.site.Name).Msg("Overlays cleared")
	}
	return dismissed, nil
}

func (h *Handler) dismissOne(ctx context.Context, session fetch.Session) (bool, error) {
	for _, selector := range h.site.OverlaySelectors {
		visible, err := session.Visible(ctx, selector)
		if err != nil {
			return false, err
		}
		if visible {
			if err := h.sleep(ctx, pacing.KindClick); err != nil {
				return false, err
			}
			if err := session.Click(ctx, selector); err != nil {
				log.Warn().Err(err).Str("selector", selector).Msg("Overlay click failed")
				continue
			}
			log.Debug().Str("selector", selector).Msg("Overlay dismissed")
			return true, nil
		}

		// Same-origin embedded frames (consent managers) need the JS path
		var inFrame bool
		if err := session.Eval(ctx, fmt.Sprintf(frameDismissExpr, selector), &inFrame); err == nil && inFrame {
			log.Debug().Str("selector", selector).Msg("Overlay dismissed inside frame")
			return true, nil
		}
	}
	return false, nil
}

func (h *Handler) sleep(ctx context.Context, kind string) error {
	delay := h.pacer.Delay(kind)
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
