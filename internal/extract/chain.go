package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// Strategy names, in priority order
const (
	MethodStructuredData = "structured-data"
	MethodMicrodata      = "microdata"
	MethodSelectors      = "selectors"
)

// Strategy attempts one extraction technique against a parsed page
type Strategy interface {
	// Name identifies the strategy in extraction_method and diagnostics
	Name() string

	// Extract returns a partial field map and whether anything was found
	Extract(doc *goquery.Document, pageURL string) (Fields, bool)
}

// Result is a successful chain run
type Result struct {
	// Fields is the merged field map: the primary strategy's output,
	// backfilled in priority order from later strategies
	Fields Fields

	// Method names the primary strategy: the first whose output met the
	// minimum-required field set. Exactly one, even when several
	// strategies contributed.
	Method string

	// Attempted lists every strategy that ran
	Attempted []string
}

// Diagnostic carries partial extraction state for external logging when no
// strategy qualified
type Diagnostic struct {
	URL       string            `json:"url"`
	Attempted []string          `json:"attempted"`
	Partial   map[string]Fields `json:"partial"`
}

// Union flattens all partial maps in priority order, for callers that want
// to emit a degraded record anyway
func (d *Diagnostic) Union() Fields {
	union := Fields{}
	for _, name := range d.Attempted {
		if partial, ok := d.Partial[name]; ok {
			union.Merge(partial)
		}
	}
	return union
}

// NoStrategyError reports that no strategy met the minimum field set
type NoStrategyError struct {
	Diagnostic *Diagnostic
}

// Error implements the error interface
func (e *NoStrategyError) Error() string {
	return fmt.Sprintf("no extraction strategy succeeded for %s (attempted %s)",
		e.Diagnostic.URL, strings.Join(e.Diagnostic.Attempted, ", "))
}

// Chain tries strategies in a fixed priority order and merges their output
type Chain struct {
	site       *config.Site
	strategies []Strategy
}

// NewChain builds the default chain for a site: structured data, then
// microdata, then the configured selector catalog.
func NewChain(site *config.Site) *Chain {
	return &Chain{
		site: site,
		strategies: []Strategy{
			NewStructuredData(site.ScriptGlobals),
			NewMicrodata(),
			NewSelectorCatalog(site.Selectors),
		},
	}
}

// Extract runs the chain over page content. The first strategy whose output
// satisfies the minimum-required set becomes the primary; fields it left
// missing are backfilled from later strategies without overriding. When no
// strategy qualifies, a *NoStrategyError carries the union of all partials.
func (c *Chain) Extract(page *models.PageContent) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	pageURL := page.URL
	if page.FinalURL != "" {
		pageURL = page.FinalURL
	}

	var attempted []string
	partial := make(map[string]Fields)
	var primary Fields
	method := ""

	for _, strategy := range c.strategies {
		attempted = append(attempted, strategy.Name())
		fields, ok := strategy.Extract(doc, pageURL)
		if !ok || len(fields) == 0 {
			continue
		}
		partial[strategy.Name()] = fields

		if method == "" && fields.HasMinimum() {
			method = strategy.Name()
			primary = fields.Clone()
		} else if method != "" {
			primary.Merge(fields)
		}

		log.Debug().
			Str("strategy", strategy.Name()).
			Int("fields", len(fields)).
			Str("url", pageURL).
			Msg("Strategy produced fields")
	}

	if method == "" {
		return nil, &NoStrategyError{Diagnostic: &Diagnostic{
			URL:       pageURL,
			Attempted: attempted,
			Partial:   partial,
		}}
	}

	return &Result{Fields: primary, Method: method, Attempted: attempted}, nil
}

// Links harvests candidate detail-page URLs from a listing page, resolved
// absolute and deduplicated in first-seen order.
func (c *Chain) Links(page *models.PageContent) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	selector := c.site.LinkSelector
	if selector == "" {
		selector = "a[href]"
	}

	var pattern *regexp.Regexp
	if c.site.LinkPattern != "" {
		pattern, err = regexp.Compile(c.site.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid link_pattern: %w", err)
		}
	}

	base, _ := url.Parse(page.URL)
	seen := make(map[string]bool)
	var links []string

	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || href == "" {
			return
		}
		resolved := resolveURL(base, href)
		if pattern != nil && !pattern.MatchString(resolved) {
			return
		}
		if !seen[resolved] {
			seen[resolved] = true
			links = append(links, resolved)
		}
	})

	return links, nil
}

func resolveURL(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() || base == nil {
		return href
	}
	return base.ResolveReference(u).String()
}
