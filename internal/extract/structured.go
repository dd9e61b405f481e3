package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// StructuredData parses machine-readable event data embedded in the page:
// ld+json script blocks first, then event-shaped payloads assigned to
// window globals by inline scripts. Structured data is the most robust
// strategy against markup drift, but not always present or complete.
type StructuredData struct {
	scriptGlobals []string
}

// NewStructuredData creates the strategy. scriptGlobals lists window
// globals to probe when no ld+json block yields an event.
func NewStructuredData(scriptGlobals []string) *StructuredData {
	return &StructuredData{scriptGlobals: scriptGlobals}
}

// Name returns the strategy name
func (s *StructuredData) Name() string { return MethodStructuredData }

// Extract scans ld+json blocks for an Event node, falling back to inline
// script globals
func (s *StructuredData) Extract(doc *goquery.Document, pageURL string) (Fields, bool) {
	var fields Fields

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			log.Debug().Err(err).Msg("Skipping malformed ld+json block")
			return true
		}
		if event := findEventNode(payload); event != nil {
			fields = mapEvent(event, pageURL)
			return false
		}
		return true
	})

	if fields == nil && len(s.scriptGlobals) > 0 {
		fields = s.fromScriptGlobals(doc, pageURL)
	}

	return fields, fields != nil
}

// findEventNode walks an ld+json payload (object, array, or @graph) looking
// for the first node typed as an Event
func findEventNode(payload any) map[string]any {
	switch v := payload.(type) {
	case map[string]any:
		if isEventType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findEventNode(graph)
		}
	case []any:
		for _, item := range v {
			if node := findEventNode(item); node != nil {
				return node
			}
		}
	}
	return nil
}

// isEventType accepts Event and its schema.org subtypes (MusicEvent etc.)
func isEventType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.HasSuffix(v, "Event")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.HasSuffix(s, "Event") {
				return true
			}
		}
	}
	return false
}

// mapEvent converts a schema.org Event node into the canonical field map
func mapEvent(event map[string]any, pageURL string) Fields {
	fields := Fields{}

	fields.Set(FieldTitle, str(event["name"]))
	fields.Set(FieldDescription, str(event["description"]))
	fields.Set(FieldDateText, str(event["startDate"]))
	fields.Set(FieldEndDateText, str(event["endDate"]))

	eventURL := str(event["url"])
	if eventURL == "" {
		eventURL = str(event["@id"])
	}
	if eventURL == "" {
		eventURL = pageURL
	}
	fields.Set(FieldURL, eventURL)

	switch loc := event["location"].(type) {
	case map[string]any:
		fields.Set(FieldVenue, str(loc["name"]))
	case string:
		fields.Set(FieldVenue, loc)
	case []any:
		if len(loc) > 0 {
			if m, ok := loc[0].(map[string]any); ok {
				fields.Set(FieldVenue, str(m["name"]))
			}
		}
	}

	if organizer, ok := event["organizer"].(map[string]any); ok {
		fields.Set(FieldPromoter, str(organizer["name"]))
	}

	if price, currency := offerPrice(event["offers"]); price != "" {
		fields.Set(FieldPriceText, price)
		fields.Set(FieldCurrency, currency)
	}

	fields.SetList(FieldLineup, performerNames(event["performer"]))

	switch kw := event["keywords"].(type) {
	case string:
		fields.SetList(FieldCategories, strings.Split(kw, ","))
	case []any:
		fields.SetList(FieldCategories, strSlice(kw))
	}
	if fields.List(FieldCategories) == nil {
		if genre := str(event["genre"]); genre != "" {
			fields.SetList(FieldCategories, strings.Split(genre, ","))
		}
	}

	return fields
}

// offerPrice pulls a price and currency from an offers node (object or list)
func offerPrice(offers any) (string, string) {
	switch v := offers.(type) {
	case map[string]any:
		price := str(v["price"])
		if price == "" {
			price = str(v["lowPrice"])
		}
		return price, str(v["priceCurrency"])
	case []any:
		for _, item := range v {
			if price, currency := offerPrice(item); price != "" {
				return price, currency
			}
		}
	}
	return "", ""
}

// performerNames flattens performer nodes (strings, objects, or lists)
func performerNames(performer any) []string {
	switch v := performer.(type) {
	case string:
		return []string{v}
	case map[string]any:
		if name := str(v["name"]); name != "" {
			return []string{name}
		}
	case []any:
		var names []string
		for _, item := range v {
			names = append(names, performerNames(item)...)
		}
		return names
	}
	return nil
}

// fromScriptGlobals executes inline scripts in a sandboxed JS runtime and
// probes the configured window globals for event-shaped payloads. Most
// scripts fail against the stub DOM; that is expected and ignored.
func (s *StructuredData) fromScriptGlobals(doc *goquery.Document, pageURL string) Fields {
	vm := goja.New()
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("document", map[string]any{"location": map[string]any{"href": pageURL}})
	vm.Set("location", map[string]any{"href": pageURL})
	vm.Set("console", map[string]any{
		"log":   func(call goja.FunctionCall) goja.Value { return nil },
		"error": func(call goja.FunctionCall) goja.Value { return nil },
	})

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		text := sel.Text()
		if text == "" || !s.mentionsGlobal(text) {
			return
		}
		if _, err := vm.RunString(text); err != nil {
			log.Debug().Err(err).Msg("Inline script failed against stub DOM")
		}
	})

	for _, name := range s.scriptGlobals {
		val := vm.Get(name)
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			continue
		}
		exported := val.Export()
		// Round-trip through JSON to get plain maps
		raw, err := json.Marshal(exported)
		if err != nil {
			continue
		}
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}
		if event := findEventNode(payload); event != nil {
			return mapEvent(event, pageURL)
		}
		// Globals often hold the event object directly, without @type
		if m, ok := payload.(map[string]any); ok && (str(m["name"]) != "" || str(m["title"]) != "") {
			if str(m["name"]) == "" {
				m["name"] = m["title"]
			}
			return mapEvent(m, pageURL)
		}
	}

	return nil
}

func (s *StructuredData) mentionsGlobal(script string) bool {
	for _, name := range s.scriptGlobals {
		if strings.Contains(script, name) {
			return true
		}
	}
	return false
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	}
	return ""
}

func strSlice(items []any) []string {
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
