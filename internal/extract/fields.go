// Package extract runs an ordered fallback chain of strategies over fetched
// page content: structured data first, then semantic markup, then the
// site's configured selector catalog.
package extract

import "strings"

// Canonical field keys shared by all strategies
const (
	FieldURL         = "url"
	FieldTitle       = "title"
	FieldVenue       = "venue"
	FieldDescription = "description"
	FieldPromoter    = "promoter"
	FieldDateText    = "date_text"
	FieldEndDateText = "end_date_text"
	FieldPriceText   = "price_text"
	FieldCurrency    = "currency"
	FieldLineup      = "lineup"     // list
	FieldCategories  = "categories" // list
)

// Fields is a partial extraction result keyed by canonical field name.
// Scalar fields hold strings; lineup and categories hold string slices.
type Fields map[string]any

// Str returns the scalar value for key, or ""
func (f Fields) Str(key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

// List returns the list value for key, or nil
func (f Fields) List(key string) []string {
	if v, ok := f[key].([]string); ok {
		return v
	}
	return nil
}

// Set stores a scalar value, ignoring empty strings
func (f Fields) Set(key, val string) {
	val = strings.TrimSpace(val)
	if val != "" {
		f[key] = val
	}
}

// SetList stores a list value, ignoring empty lists
func (f Fields) SetList(key string, vals []string) {
	cleaned := vals[:0:0]
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) > 0 {
		f[key] = cleaned
	}
}

// Merge fills keys missing from f with values from other. Existing keys are
// never overridden, so a lower-priority strategy can only backfill gaps left
// by a higher-priority one.
func (f Fields) Merge(other Fields) {
	for key, val := range other {
		if _, exists := f[key]; !exists {
			f[key] = val
		}
	}
}

// Clone returns a shallow copy
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// HasMinimum reports whether the partial map satisfies the minimum-required
// set for a usable record: a URL plus at least a title or raw date.
func (f Fields) HasMinimum() bool {
	return f.Str(FieldURL) != "" && (f.Str(FieldTitle) != "" || f.Str(FieldDateText) != "")
}
