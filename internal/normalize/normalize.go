// Package normalize converts heterogeneous strategy output into the
// canonical event record, coercing dates, prices, and lists. Only the URL
// is load-bearing: everything else degrades to absent rather than failing
// the record.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/internal/extract"
	"github.com/law-makers/eventcrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// Validation errors
var (
	ErrMissingURL   = errors.New("record has no url")
	ErrMalformedURL = errors.New("record url is malformed")
)

// Candidate date layouts, most specific first. Raw text that matches none
// of them is kept as-is with the parsed fields left empty.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2 January 2006, 15:04",
	"2 Jan 2006, 15:04",
	"2 January 2006 15:04",
	"2 Jan 2006 15:04",
	"Monday 2 January 2006",
	"Monday, 2 January 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02.01.2006",
	"02/01/2006",
}

var (
	timeRe    = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)
	amountRe  = regexp.MustCompile(`\d{1,3}(?:[.,\s]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`)
	codeRe    = regexp.MustCompile(`\b(EUR|USD|GBP|CHF|SEK|NOK|DKK|PLN|JPY|AUD|CAD)\b`)
	freeRe    = regexp.MustCompile(`(?i)\b(free|gratis|kostenlos)\b`)
	rangeSeps = []string{" - ", " – ", " — ", " to ", "–"}
)

var symbolCurrencies = map[string]string{
	"€": "EUR",
	"£": "GBP",
	"$": "USD",
	"¥": "JPY",
}

// Normalizer builds validated EventRecords from raw field maps
type Normalizer struct {
	site      *config.Site
	converter *md.Converter
	now       func() time.Time
}

// New creates a Normalizer for one site
func New(site *config.Site) *Normalizer {
	return &Normalizer{
		site:      site,
		converter: md.NewConverter("", true, nil),
		now:       time.Now,
	}
}

// WithClock overrides the scraped_at clock, used by tests
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize converts a raw field map into a validated record. It fails only
// when no usable URL exists; every other field is best-effort.
func (n *Normalizer) Normalize(fields extract.Fields, sourceURL string) (*models.EventRecord, error) {
	rawURL := fields.Str(extract.FieldURL)
	if rawURL == "" {
		rawURL = sourceURL
	}
	if rawURL == "" {
		return nil, ErrMissingURL
	}
	canonical, err := canonicalURL(rawURL, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	record := &models.EventRecord{
		URL:         canonical,
		EventID:     eventID(canonical),
		Title:       fields.Str(extract.FieldTitle),
		Venue:       fields.Str(extract.FieldVenue),
		Promoter:    fields.Str(extract.FieldPromoter),
		Categories:  fields.List(extract.FieldCategories),
		DateText:    fields.Str(extract.FieldDateText),
		PriceText:   fields.Str(extract.FieldPriceText),
		Lineup:      dedupe(fields.List(extract.FieldLineup)),
		ScrapedAt:   n.now(),
		Description: n.description(fields.Str(extract.FieldDescription)),
	}

	n.parseDates(record, fields.Str(extract.FieldEndDateText))
	n.parsePrice(record, fields.Str(extract.FieldCurrency))

	return record, nil
}

// canonicalURL validates the URL, resolving it against the source page
// when relative
func canonicalURL(rawURL, sourceURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() && sourceURL != "" {
		base, berr := url.Parse(sourceURL)
		if berr == nil {
			u = base.ResolveReference(u)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	return u.String(), nil
}

// eventID derives a stable identifier from the canonical URL
func eventID(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:16]
}

// parseDates fills the structured temporal fields from raw date text.
// Nothing here errors: unparseable text stays raw-only.
func (n *Normalizer) parseDates(record *models.EventRecord, endDateText string) {
	raw := record.DateText
	if raw == "" {
		return
	}

	startText, endText := splitRange(raw)
	if endDateText != "" {
		endText = endDateText
	}

	if t, layout, ok := parseDate(startText); ok {
		record.StartDate = t.Format("2006-01-02")
		if layoutHasClock(layout) {
			record.StartTime = t.Format("15:04")
		}
	} else {
		log.Debug().Str("date_text", raw).Msg("No date layout matched")
	}
	if endText != "" {
		if t, layout, ok := parseDate(endText); ok {
			record.EndDate = t.Format("2006-01-02")
			if layoutHasClock(layout) {
				record.EndTime = t.Format("15:04")
			}
		}
	}

	// Clock times prefer the parsed layout. The regex over the raw text
	// covers free-form leftovers only: ISO datetimes would mis-match on
	// the trailing seconds group. First match is the start, a second one
	// is the end (door close or range end).
	times := timeRe.FindAllString(raw, 2)
	if record.StartTime == "" && len(times) > 0 {
		record.StartTime = padClock(times[0])
	}
	if record.EndTime == "" && len(times) > 1 {
		record.EndTime = padClock(times[1])
	}
}

// splitRange cuts "26 May 2025 - 27 May 2025" style text at the first
// recognized range separator
func splitRange(raw string) (string, string) {
	for _, sep := range rangeSeps {
		if idx := strings.Index(raw, sep); idx > 0 {
			return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(sep):])
		}
	}
	return raw, ""
}

func parseDate(text string) (time.Time, string, bool) {
	text = strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, layout, true
		}
	}
	return time.Time{}, "", false
}

func layoutHasClock(layout string) bool {
	return strings.Contains(layout, "15:04")
}

func padClock(clock string) string {
	if len(clock) == 4 { // "9:30"
		return "0" + clock
	}
	return clock
}

// parsePrice extracts a numeric amount and currency code from free-form
// price text, tolerating thousands separators and currency symbols
func (n *Normalizer) parsePrice(record *models.EventRecord, extractedCurrency string) {
	raw := record.PriceText
	currency := extractedCurrency

	if currency == "" {
		for symbol, code := range symbolCurrencies {
			if strings.Contains(raw, symbol) {
				currency = code
				break
			}
		}
	}
	if currency == "" {
		if m := codeRe.FindString(raw); m != "" {
			currency = m
		}
	}
	if currency == "" {
		currency = n.site.Currency
	}

	if raw == "" {
		return
	}

	if freeRe.MatchString(raw) && !amountRe.MatchString(raw) {
		zero := 0.0
		record.PriceValue = &zero
		record.Currency = currency
		return
	}

	token := amountRe.FindString(raw)
	if token == "" {
		return
	}
	value, ok := parseAmount(token)
	if !ok {
		log.Debug().Str("price_text", raw).Msg("Unparseable price amount")
		return
	}
	record.PriceValue = &value
	record.Currency = currency
}

// parseAmount resolves locale-ambiguous separators: when both appear the
// later one is the decimal mark; a lone separator followed by 1-2 digits
// is decimal, otherwise thousands.
func parseAmount(token string) (float64, bool) {
	token = strings.ReplaceAll(token, " ", "")
	dot := strings.LastIndex(token, ".")
	comma := strings.LastIndex(token, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if dot > comma {
			token = strings.ReplaceAll(token, ",", "")
		} else {
			token = strings.ReplaceAll(token, ".", "")
			token = strings.Replace(token, ",", ".", 1)
		}
	case comma >= 0:
		if len(token)-comma-1 <= 2 && strings.Count(token, ",") == 1 {
			token = strings.Replace(token, ",", ".", 1)
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	case dot >= 0:
		// "1.000.000" or a single 3-digit group is thousands grouping
		if strings.Count(token, ".") > 1 || len(token)-dot-1 == 3 {
			token = strings.ReplaceAll(token, ".", "")
		}
	}

	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// dedupe trims entries and drops repeats, preserving first-seen order
func dedupe(entries []string) []string {
	if len(entries) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(entries))
	var out []string
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key := strings.ToLower(entry)
		if !seen[key] {
			seen[key] = true
			out = append(out, entry)
		}
	}
	return out
}

// description converts HTML descriptions to markdown, passing plain text
// through untouched
func (n *Normalizer) description(raw string) string {
	if raw == "" || !strings.Contains(raw, "<") {
		return raw
	}
	converted, err := n.converter.ConvertString(raw)
	if err != nil {
		log.Debug().Err(err).Msg("Description markdown conversion failed")
		return raw
	}
	return strings.TrimSpace(converted)
}
