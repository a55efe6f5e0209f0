package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field names a logical value read from a catalog document.
type Field string

const (
	FieldTitle       Field = "title"
	FieldPrice       Field = "price"
	FieldRating      Field = "rating"
	FieldStock       Field = "stock"
	FieldCategory    Field = "category"
	FieldDescription Field = "description"
	FieldUPC         Field = "upc"
	FieldProductType Field = "product_type"
	FieldReviewCount Field = "review_count"
	FieldItemLink    Field = "item_link"
)

// Locator describes where a field lives in a document.
//
// Selector is matched against the whole document and Index picks the
// nth match (0-based). Child narrows to descendants of that match and Next
// moves to the immediately following sibling, only if it matches. When Attr
// is set the attribute value is read instead of the text content.
type Locator struct {
	Selector string
	Index    int
	Child    string
	Next     string
	Attr     string
}

// Rules maps each field to its locator.
type Rules map[Field]Locator

// DefaultRules returns the locators for books.toscrape.com pages.
func DefaultRules() Rules {
	return Rules{
		FieldTitle:       {Selector: ".product_main h1"},
		FieldPrice:       {Selector: ".product_main .price_color"},
		FieldRating:      {Selector: ".star-rating", Attr: "class"},
		FieldStock:       {Selector: ".availability"},
		FieldCategory:    {Selector: ".breadcrumb li", Index: 2, Child: "a"},
		FieldDescription: {Selector: "#product_description", Next: "p"},
		FieldUPC:         {Selector: ".table.table-striped tr", Index: 0, Child: "td"},
		FieldProductType: {Selector: ".table.table-striped tr", Index: 1, Child: "td"},
		FieldReviewCount: {Selector: ".table.table-striped tr", Index: 6, Child: "td"},
		FieldItemLink:    {Selector: ".product_pod h3 a", Attr: "href"},
	}
}

// Lookup returns the trimmed value at the locator and whether the node
// exists.
func (l Locator) Lookup(root *goquery.Selection) (string, bool) {
	sel := root.Find(l.Selector)
	if sel.Length() <= l.Index {
		return "", false
	}
	sel = sel.Eq(l.Index)
	if l.Child != "" {
		sel = sel.Find(l.Child)
		if sel.Length() == 0 {
			return "", false
		}
	}
	if l.Next != "" {
		sel = sel.NextFiltered(l.Next)
		if sel.Length() == 0 {
			return "", false
		}
	}
	if l.Attr != "" {
		value, ok := sel.Attr(l.Attr)
		return strings.TrimSpace(value), ok
	}
	return strings.TrimSpace(sel.Text()), true
}

// LookupAll returns the trimmed value of every node matching the selector,
// in document order. Index, Child and Next are ignored; nodes without the
// requested attribute are skipped.
func (l Locator) LookupAll(root *goquery.Selection) []string {
	var out []string
	root.Find(l.Selector).Each(func(_ int, s *goquery.Selection) {
		if l.Attr == "" {
			out = append(out, strings.TrimSpace(s.Text()))
			return
		}
		if value, ok := s.Attr(l.Attr); ok {
			out = append(out, strings.TrimSpace(value))
		}
	})
	return out
}
