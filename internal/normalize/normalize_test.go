package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/law-makers/eventcrawl/internal/extract"
)

func testNormalizer() *Normalizer {
	return New(&config.Site{Name: "test", Currency: "EUR"}).
		WithClock(func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) })
}

func TestNormalize_MissingURL(t *testing.T) {
	_, err := testNormalizer().Normalize(extract.Fields{}, "")
	if !errors.Is(err, ErrMissingURL) {
		t.Errorf("expected ErrMissingURL, got %v", err)
	}
}

func TestNormalize_MalformedURL(t *testing.T) {
	cases := []string{"ftp://example.com/events/1", "https://", "::::"}
	for _, raw := range cases {
		fields := extract.Fields{}
		fields.Set(extract.FieldURL, raw)
		if _, err := testNormalizer().Normalize(fields, ""); !errors.Is(err, ErrMalformedURL) {
			t.Errorf("url %q: expected ErrMalformedURL, got %v", raw, err)
		}
	}
}

func TestNormalize_SourceURLFallback(t *testing.T) {
	record, err := testNormalizer().Normalize(extract.Fields{}, "https://example.com/events/1")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.URL != "https://example.com/events/1" {
		t.Errorf("url = %q", record.URL)
	}
}

func TestNormalize_RelativeURLResolved(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "/events/42")

	record, err := testNormalizer().Normalize(fields, "https://example.com/calendar")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.URL != "https://example.com/events/42" {
		t.Errorf("url = %q, want resolved absolute", record.URL)
	}
}

func TestNormalize_FullRecord(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/123")
	fields.Set(extract.FieldTitle, "Warehouse Night")
	fields.Set(extract.FieldVenue, "Warehouse 9")
	fields.Set(extract.FieldDateText, "26 May 2025, 23:00")
	fields.Set(extract.FieldPriceText, "€25.00")
	fields.SetList(extract.FieldLineup, []string{"DJ One", "dj one", "DJ Two"})

	record, err := testNormalizer().Normalize(fields, "https://example.com/events/123")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if record.StartDate != "2025-05-26" {
		t.Errorf("start_date = %q, want 2025-05-26", record.StartDate)
	}
	if record.StartTime != "23:00" {
		t.Errorf("start_time = %q, want 23:00", record.StartTime)
	}
	if record.PriceValue == nil || *record.PriceValue != 25.0 {
		t.Errorf("price_value = %v, want 25.00", record.PriceValue)
	}
	if record.Currency != "EUR" {
		t.Errorf("currency = %q, want EUR", record.Currency)
	}
	if len(record.EventID) != 16 {
		t.Errorf("event_id = %q, want 16 hex chars", record.EventID)
	}
	if len(record.Lineup) != 2 {
		t.Errorf("lineup = %v, want case-insensitive dedup to 2", record.Lineup)
	}
	if record.DateText != "26 May 2025, 23:00" {
		t.Errorf("date_text = %q, raw text must survive", record.DateText)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/123")
	fields.Set(extract.FieldTitle, "Warehouse Night")
	fields.Set(extract.FieldDateText, "2025-05-26T23:00:00")

	n := testNormalizer()
	first, err := n.Normalize(fields, "")
	if err != nil {
		t.Fatalf("first Normalize failed: %v", err)
	}
	second, err := n.Normalize(fields, "")
	if err != nil {
		t.Fatalf("second Normalize failed: %v", err)
	}

	if first.EventID != second.EventID ||
		first.StartDate != second.StartDate ||
		first.StartTime != second.StartTime ||
		first.URL != second.URL {
		t.Errorf("normalization is not stable: %+v vs %+v", first, second)
	}
}

func TestNormalize_DateRange(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/fest")
	fields.Set(extract.FieldDateText, "26 May 2025 - 28 May 2025")

	record, err := testNormalizer().Normalize(fields, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.StartDate != "2025-05-26" {
		t.Errorf("start_date = %q", record.StartDate)
	}
	if record.EndDate != "2025-05-28" {
		t.Errorf("end_date = %q", record.EndDate)
	}
}

func TestNormalize_StartAndEndTimes(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/1")
	fields.Set(extract.FieldDateText, "2025-05-26 23:00 - 06:00")

	record, err := testNormalizer().Normalize(fields, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.StartTime != "23:00" {
		t.Errorf("start_time = %q", record.StartTime)
	}
	if record.EndTime != "06:00" {
		t.Errorf("end_time = %q", record.EndTime)
	}
}

func TestNormalize_ISODateTimeClock(t *testing.T) {
	cases := []struct {
		text string
		date string
		time string
	}{
		{"2025-05-26T23:00:00", "2025-05-26", "23:00"},
		{"2025-05-26T23:00:00Z", "2025-05-26", "23:00"},
		{"2025-05-26T09:30", "2025-05-26", "09:30"},
	}

	for _, tc := range cases {
		fields := extract.Fields{}
		fields.Set(extract.FieldURL, "https://example.com/events/1")
		fields.Set(extract.FieldDateText, tc.text)

		record, err := testNormalizer().Normalize(fields, "")
		if err != nil {
			t.Fatalf("%q: Normalize failed: %v", tc.text, err)
		}
		if record.StartDate != tc.date {
			t.Errorf("%q: start_date = %q, want %q", tc.text, record.StartDate, tc.date)
		}
		// The clock must come from the parsed layout, not a substring of
		// the seconds group
		if record.StartTime != tc.time {
			t.Errorf("%q: start_time = %q, want %q", tc.text, record.StartTime, tc.time)
		}
		if record.EndTime != "" {
			t.Errorf("%q: end_time = %q, want empty", tc.text, record.EndTime)
		}
	}
}

func TestNormalize_UnparseableDateKeepsRaw(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/1")
	fields.Set(extract.FieldDateText, "every full moon")

	record, err := testNormalizer().Normalize(fields, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.StartDate != "" {
		t.Errorf("start_date = %q, want empty for unparseable text", record.StartDate)
	}
	if record.DateText != "every full moon" {
		t.Errorf("date_text = %q, raw text must survive", record.DateText)
	}
}

func TestNormalize_Prices(t *testing.T) {
	cases := []struct {
		text     string
		value    float64
		currency string
	}{
		{"€25.00", 25.0, "EUR"},
		{"£10", 10.0, "GBP"},
		{"$15.50", 15.5, "USD"},
		{"1.250,50 EUR", 1250.5, "EUR"},
		{"1,250.50 USD", 1250.5, "USD"},
		{"20", 20.0, "EUR"}, // site fallback currency
	}

	for _, tc := range cases {
		fields := extract.Fields{}
		fields.Set(extract.FieldURL, "https://example.com/events/1")
		fields.Set(extract.FieldPriceText, tc.text)

		record, err := testNormalizer().Normalize(fields, "")
		if err != nil {
			t.Fatalf("%q: Normalize failed: %v", tc.text, err)
		}
		if record.PriceValue == nil {
			t.Errorf("%q: price_value is nil", tc.text)
			continue
		}
		if *record.PriceValue != tc.value {
			t.Errorf("%q: price_value = %v, want %v", tc.text, *record.PriceValue, tc.value)
		}
		if record.Currency != tc.currency {
			t.Errorf("%q: currency = %q, want %q", tc.text, record.Currency, tc.currency)
		}
	}
}

func TestNormalize_FreePrice(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/1")
	fields.Set(extract.FieldPriceText, "Free entry")

	record, err := testNormalizer().Normalize(fields, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.PriceValue == nil || *record.PriceValue != 0.0 {
		t.Errorf("price_value = %v, want 0", record.PriceValue)
	}
}

func TestNormalize_UnparseablePriceKeepsRaw(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/1")
	fields.Set(extract.FieldPriceText, "donation at the door")

	record, err := testNormalizer().Normalize(fields, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.PriceValue != nil {
		t.Errorf("price_value = %v, want nil", *record.PriceValue)
	}
	if record.PriceText != "donation at the door" {
		t.Errorf("price_text = %q, raw text must survive", record.PriceText)
	}
}

func TestNormalize_DescriptionMarkdown(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/1")
	fields.Set(extract.FieldDescription, "<p>Doors at <strong>22:00</strong></p>")

	record, err := testNormalizer().Normalize(fields, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.Description != "Doors at **22:00**" {
		t.Errorf("description = %q", record.Description)
	}
}

func TestNormalize_PlainDescriptionUntouched(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/1")
	fields.Set(extract.FieldDescription, "Doors at 22:00")

	record, err := testNormalizer().Normalize(fields, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.Description != "Doors at 22:00" {
		t.Errorf("description = %q", record.Description)
	}
}

func TestNormalize_ScrapedAtUsesClock(t *testing.T) {
	fields := extract.Fields{}
	fields.Set(extract.FieldURL, "https://example.com/events/1")

	record, err := testNormalizer().Normalize(fields, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	if !record.ScrapedAt.Equal(want) {
		t.Errorf("scraped_at = %v, want %v", record.ScrapedAt, want)
	}
}
