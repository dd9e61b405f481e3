package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SelectorCatalog extracts fields with the site's configured CSS selectors.
// The most brittle strategy, but the only fallback when a site ships
// neither structured nor semantic markup. Each field carries an ordered
// list of fallback selectors; the first one that matches wins.
type SelectorCatalog struct {
	selectors map[string][]string
}

// NewSelectorCatalog creates the strategy from a field -> selector-list map
func NewSelectorCatalog(selectors map[string][]string) *SelectorCatalog {
	return &SelectorCatalog{selectors: selectors}
}

// Name returns the strategy name
func (s *SelectorCatalog) Name() string { return MethodSelectors }

// listFields get every match of the winning selector, scalar fields only
// the first
var listFields = map[string]bool{
	FieldLineup:     true,
	FieldCategories: true,
}

// Extract queries the catalog against the parsed page. The page URL itself
// stands in for the url field since the catalog describes a detail page.
func (s *SelectorCatalog) Extract(doc *goquery.Document, pageURL string) (Fields, bool) {
	if len(s.selectors) == 0 {
		return nil, false
	}

	fields := Fields{}
	for field, candidates := range s.selectors {
		for _, selector := range candidates {
			sel := doc.Find(selector)
			if sel.Length() == 0 {
				continue
			}
			if listFields[field] {
				var values []string
				sel.Each(func(_ int, item *goquery.Selection) {
					values = append(values, selectionValue(item))
				})
				fields.SetList(field, values)
			} else {
				fields.Set(field, selectionValue(sel.First()))
			}
			break
		}
	}

	if len(fields) == 0 {
		return nil, false
	}
	if fields.Str(FieldURL) == "" {
		fields.Set(FieldURL, pageURL)
	}
	return fields, true
}

// selectionValue prefers machine-readable attributes over rendered text
func selectionValue(sel *goquery.Selection) string {
	if v, ok := sel.Attr("content"); ok && v != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := sel.Attr("datetime"); ok && v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(sel.Text())
}
