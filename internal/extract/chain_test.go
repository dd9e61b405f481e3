package extract

import (
	"errors"
	"testing"

	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/pkg/models"
)

func page(url, html string) *models.PageContent {
	return &models.PageContent{URL: url, HTML: html}
}

const ldJSONPage = `<!DOCTYPE html>
<html>
<head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "MusicEvent",
  "name": "Warehouse Night",
  "url": "https://example.com/events/123",
  "startDate": "2025-05-26T23:00:00",
  "endDate": "2025-05-27T06:00:00",
  "location": {"@type": "Place", "name": "Warehouse 9"},
  "organizer": {"@type": "Organization", "name": "Nightshift"},
  "offers": {"@type": "Offer", "price": "25.00", "priceCurrency": "EUR"},
  "performer": [
    {"@type": "MusicGroup", "name": "DJ One"},
    {"@type": "MusicGroup", "name": "DJ Two"}
  ],
  "keywords": "techno, house"
}
</script>
</head>
<body><h1>Warehouse Night</h1></body>
</html>`

func TestChain_StructuredDataPrimary(t *testing.T) {
	site := &config.Site{Name: "test"}
	chain := NewChain(site)

	result, err := chain.Extract(page("https://example.com/events/123", ldJSONPage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Method != MethodStructuredData {
		t.Errorf("method = %q, want structured-data", result.Method)
	}
	if got := result.Fields.Str(FieldTitle); got != "Warehouse Night" {
		t.Errorf("title = %q", got)
	}
	if got := result.Fields.Str(FieldVenue); got != "Warehouse 9" {
		t.Errorf("venue = %q", got)
	}
	if got := result.Fields.Str(FieldPromoter); got != "Nightshift" {
		t.Errorf("promoter = %q", got)
	}
	if got := result.Fields.Str(FieldDateText); got != "2025-05-26T23:00:00" {
		t.Errorf("date_text = %q", got)
	}
	if got := result.Fields.Str(FieldPriceText); got != "25.00" {
		t.Errorf("price_text = %q", got)
	}
	if got := result.Fields.Str(FieldCurrency); got != "EUR" {
		t.Errorf("currency = %q", got)
	}
	lineup := result.Fields.List(FieldLineup)
	if len(lineup) != 2 || lineup[0] != "DJ One" || lineup[1] != "DJ Two" {
		t.Errorf("lineup = %v", lineup)
	}
	categories := result.Fields.List(FieldCategories)
	if len(categories) != 2 {
		t.Errorf("categories = %v", categories)
	}
	if len(result.Attempted) != 3 {
		t.Errorf("attempted = %v, every strategy runs for backfill", result.Attempted)
	}
}

const microdataPage = `<!DOCTYPE html>
<html>
<body>
<div itemscope itemtype="https://schema.org/MusicEvent">
  <h1 itemprop="name">Open Air</h1>
  <a itemprop="url" href="https://example.com/events/open-air">tickets</a>
  <time itemprop="startDate" datetime="2025-07-01T18:00">1 July, 18:00</time>
  <div itemprop="location" itemscope itemtype="https://schema.org/Place">
    <span itemprop="name">Riverside</span>
  </div>
  <span itemprop="performer" itemscope itemtype="https://schema.org/MusicGroup">
    <span itemprop="name">Band A</span>
  </span>
</div>
</body>
</html>`

func TestChain_MicrodataFallback(t *testing.T) {
	site := &config.Site{Name: "test"}
	chain := NewChain(site)

	result, err := chain.Extract(page("https://example.com/events/open-air", microdataPage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Method != MethodMicrodata {
		t.Errorf("method = %q, want microdata", result.Method)
	}
	if got := result.Fields.Str(FieldTitle); got != "Open Air" {
		t.Errorf("title = %q", got)
	}
	if got := result.Fields.Str(FieldURL); got != "https://example.com/events/open-air" {
		t.Errorf("url = %q", got)
	}
	if got := result.Fields.Str(FieldDateText); got != "2025-07-01T18:00" {
		t.Errorf("date_text = %q, machine-readable datetime attribute should win", got)
	}
	if got := result.Fields.Str(FieldVenue); got != "Riverside" {
		t.Errorf("venue = %q", got)
	}
	lineup := result.Fields.List(FieldLineup)
	if len(lineup) != 1 || lineup[0] != "Band A" {
		t.Errorf("lineup = %v", lineup)
	}
}

const selectorPage = `<!DOCTYPE html>
<html>
<body>
  <h1 class="event-title">Basement Session</h1>
  <time class="when">26 May 2025, 23:00</time>
  <div class="venue">Cellar Club</div>
  <ul class="lineup"><li>Act One</li><li>Act Two</li></ul>
</body>
</html>`

func selectorSite() *config.Site {
	return &config.Site{
		Name: "test",
		Selectors: map[string][]string{
			FieldTitle:    {"h1.missing", "h1.event-title"},
			FieldDateText: {"time.when"},
			FieldVenue:    {".venue"},
			FieldLineup:   {".lineup li"},
		},
	}
}

func TestChain_SelectorCatalogFallback(t *testing.T) {
	chain := NewChain(selectorSite())

	result, err := chain.Extract(page("https://example.com/events/basement", selectorPage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Method != MethodSelectors {
		t.Errorf("method = %q, want selectors", result.Method)
	}
	if got := result.Fields.Str(FieldTitle); got != "Basement Session" {
		t.Errorf("title = %q, fallback selector should have matched", got)
	}
	if got := result.Fields.Str(FieldURL); got != "https://example.com/events/basement" {
		t.Errorf("url = %q, want the page URL", got)
	}
	lineup := result.Fields.List(FieldLineup)
	if len(lineup) != 2 {
		t.Errorf("lineup = %v, list fields collect every match", lineup)
	}
}

const sparseLdPage = `<!DOCTYPE html>
<html>
<head>
<script type="application/ld+json">
{"@type": "Event", "name": "Basement Session", "url": "https://example.com/events/basement", "startDate": "2025-05-26"}
</script>
</head>
<body>
  <div class="venue">Cellar Club</div>
  <ul class="lineup"><li>Act One</li><li>Act Two</li></ul>
</body>
</html>`

func TestChain_BackfillNeverOverrides(t *testing.T) {
	site := selectorSite()
	// The catalog would also match a conflicting title if it were allowed to win
	site.Selectors[FieldDateText] = []string{".venue"}
	chain := NewChain(site)

	result, err := chain.Extract(page("https://example.com/events/basement", sparseLdPage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Method != MethodStructuredData {
		t.Errorf("method = %q, the first qualifying strategy stays primary", result.Method)
	}
	// Backfilled from the selector catalog
	if got := result.Fields.Str(FieldVenue); got != "Cellar Club" {
		t.Errorf("venue = %q, want backfill from selectors", got)
	}
	if got := result.Fields.List(FieldLineup); len(got) != 2 {
		t.Errorf("lineup = %v, want backfill from selectors", got)
	}
	// Primary values survive conflicting lower-priority output
	if got := result.Fields.Str(FieldDateText); got != "2025-05-26" {
		t.Errorf("date_text = %q, backfill must not override the primary", got)
	}
	if len(result.Attempted) != 3 {
		t.Errorf("attempted = %v, want all three strategies", result.Attempted)
	}
}

func TestChain_NoStrategySucceeded(t *testing.T) {
	chain := NewChain(&config.Site{Name: "test"})

	_, err := chain.Extract(page("https://example.com/plain", `<html><body><p>nothing here</p></body></html>`))
	if err == nil {
		t.Fatal("expected NoStrategyError")
	}

	var miss *NoStrategyError
	if !errors.As(err, &miss) {
		t.Fatalf("expected *NoStrategyError, got %T", err)
	}
	if miss.Diagnostic.URL != "https://example.com/plain" {
		t.Errorf("diagnostic url = %q", miss.Diagnostic.URL)
	}
	if len(miss.Diagnostic.Attempted) != 3 {
		t.Errorf("attempted = %v, want all three strategies", miss.Diagnostic.Attempted)
	}
}

func TestChain_DiagnosticUnionKeepsPartials(t *testing.T) {
	// A page with venue-only markup qualifies no strategy but still yields
	// partial state worth logging
	site := &config.Site{
		Name:      "test",
		Selectors: map[string][]string{FieldVenue: {".venue"}},
	}
	chain := NewChain(site)

	_, err := chain.Extract(page("https://example.com/partial",
		`<html><body><div class="venue">Cellar Club</div></body></html>`))

	var miss *NoStrategyError
	if !errors.As(err, &miss) {
		t.Fatalf("expected *NoStrategyError, got %v", err)
	}
	union := miss.Diagnostic.Union()
	if got := union.Str(FieldVenue); got != "Cellar Club" {
		t.Errorf("union venue = %q", got)
	}
}

const scriptGlobalPage = `<!DOCTYPE html>
<html>
<head>
<script>
window.__EVENT__ = {
  name: "Secret Show",
  url: "https://example.com/events/secret",
  startDate: "2025-08-09T20:00:00",
  location: {name: "Undisclosed"}
};
</script>
</head>
<body></body>
</html>`

func TestChain_ScriptGlobalFallback(t *testing.T) {
	site := &config.Site{Name: "test", ScriptGlobals: []string{"__EVENT__"}}
	chain := NewChain(site)

	result, err := chain.Extract(page("https://example.com/events/secret", scriptGlobalPage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Method != MethodStructuredData {
		t.Errorf("method = %q, script globals belong to the structured strategy", result.Method)
	}
	if got := result.Fields.Str(FieldTitle); got != "Secret Show" {
		t.Errorf("title = %q", got)
	}
	if got := result.Fields.Str(FieldVenue); got != "Undisclosed" {
		t.Errorf("venue = %q", got)
	}
}

const listingPage = `<!DOCTYPE html>
<html>
<body>
  <a class="event-link" href="/events/1">One</a>
  <a class="event-link" href="/events/2">Two</a>
  <a class="event-link" href="/events/1">One again</a>
  <a class="event-link" href="https://example.com/events/3">Three</a>
  <a class="event-link" href="/about">About</a>
  <a href="/events/4">No class</a>
</body>
</html>`

func TestChain_Links(t *testing.T) {
	site := &config.Site{
		Name:         "test",
		LinkSelector: "a.event-link",
		LinkPattern:  `/events/\d+`,
	}
	chain := NewChain(site)

	links, err := chain.Links(page("https://example.com/calendar", listingPage))
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}

	want := []string{
		"https://example.com/events/1",
		"https://example.com/events/2",
		"https://example.com/events/3",
	}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestChain_LinksDefaultSelector(t *testing.T) {
	chain := NewChain(&config.Site{Name: "test"})

	links, err := chain.Links(page("https://example.com/calendar", listingPage))
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}
	// Every anchor, deduplicated, with relative hrefs resolved
	if len(links) != 5 {
		t.Errorf("links = %v, want 5 unique anchors", links)
	}
}
