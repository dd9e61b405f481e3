package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Microdata parses item-scoped semantic markup (itemscope/itemprop
// attributes) annotating an Event without a separate data block. Property
// trees nest arbitrarily, so this walks raw HTML nodes rather than running
// CSS queries per property.
type Microdata struct{}

// NewMicrodata creates the strategy
func NewMicrodata() *Microdata {
	return &Microdata{}
}

// Name returns the strategy name
func (m *Microdata) Name() string { return MethodMicrodata }

// Extract locates the first Event item scope and collects its properties
func (m *Microdata) Extract(doc *goquery.Document, pageURL string) (Fields, bool) {
	scope := doc.Find(`[itemscope][itemtype*="Event"]`).First()
	if scope.Length() == 0 || len(scope.Nodes) == 0 {
		return nil, false
	}

	fields := Fields{}
	var lineup []string

	walkProps(scope.Nodes[0], func(prop string, node *html.Node) {
		switch prop {
		case "name":
			fields.Set(FieldTitle, propValue(node))
		case "url":
			fields.Set(FieldURL, propValue(node))
		case "description":
			fields.Set(FieldDescription, propValue(node))
		case "startDate":
			fields.Set(FieldDateText, propValue(node))
		case "endDate":
			fields.Set(FieldEndDateText, propValue(node))
		case "location":
			fields.Set(FieldVenue, nestedProp(node, "name"))
		case "organizer":
			fields.Set(FieldPromoter, nestedProp(node, "name"))
		case "performer":
			if name := nestedProp(node, "name"); name != "" {
				lineup = append(lineup, name)
			} else if name := propValue(node); name != "" {
				lineup = append(lineup, name)
			}
		case "offers":
			fields.Set(FieldPriceText, nestedProp(node, "price"))
			fields.Set(FieldCurrency, nestedProp(node, "priceCurrency"))
		case "price":
			fields.Set(FieldPriceText, propValue(node))
		case "priceCurrency":
			fields.Set(FieldCurrency, propValue(node))
		}
	})

	fields.SetList(FieldLineup, lineup)

	if len(fields) == 0 {
		return nil, false
	}
	if fields.Str(FieldURL) == "" {
		fields.Set(FieldURL, pageURL)
	}
	return fields, true
}

// walkProps visits every direct property of the scope. Nested item scopes
// are handed to the callback whole and not descended into, so sub-item
// properties never leak into the outer event.
func walkProps(scope *html.Node, visit func(prop string, node *html.Node)) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode {
				continue
			}
			prop := attr(child, "itemprop")
			nested := hasAttr(child, "itemscope")
			if prop != "" {
				visit(prop, child)
			}
			if !nested {
				walk(child)
			}
		}
	}
	walk(scope)
}

// nestedProp digs a scalar property out of a nested item scope
func nestedProp(scope *html.Node, prop string) string {
	var found string
	walkProps(scope, func(p string, node *html.Node) {
		if found == "" && p == prop {
			found = propValue(node)
		}
	})
	return found
}

// propValue resolves a property node's value the way microdata defines it:
// content and datetime attributes first, then link targets, then text.
func propValue(n *html.Node) string {
	if v := attr(n, "content"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := attr(n, "datetime"); v != "" {
		return strings.TrimSpace(v)
	}
	switch n.Data {
	case "a", "link", "area":
		if v := attr(n, "href"); v != "" {
			return strings.TrimSpace(v)
		}
	case "img", "audio", "video", "source", "embed", "iframe":
		if v := attr(n, "src"); v != "" {
			return strings.TrimSpace(v)
		}
	case "meta":
		return ""
	case "time":
		// datetime handled above; fall through to text
	}
	return strings.TrimSpace(textContent(n))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}
