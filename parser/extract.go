package parser

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-ingest-books/models"
)

const ratingClass = "star-rating"

var errMissing = errors.New("element not found")

// Extraction is the outcome of reading one detail page. Warnings lists
// fields that could not be converted and were degraded to their zero value.
type Extraction struct {
	Book     *models.Book
	Warnings []*ParseError
}

// Extractor turns catalog documents into books using a rule table.
type Extractor struct {
	rules Rules
	now   func() time.Time
}

// NewExtractor builds an extractor. A nil rule table selects DefaultRules.
func NewExtractor(rules Rules) *Extractor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules, now: time.Now}
}

// ExtractBytes parses raw markup and extracts the book it describes.
func (e *Extractor) ExtractBytes(pageURL string, body []byte) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Field: "document", URL: pageURL, Err: err}
	}
	return e.Extract(pageURL, doc)
}

// Extract reads a detail page document. Only a missing title fails the
// extraction; every other field degrades to an empty or zero value.
func (e *Extractor) Extract(pageURL string, doc *goquery.Document) (*Extraction, error) {
	root := doc.Selection

	title, ok := e.lookup(FieldTitle, root)
	if !ok || title == "" {
		return nil, &ParseError{Field: string(FieldTitle), URL: pageURL, Err: errMissing}
	}

	price, _ := e.lookup(FieldPrice, root)
	ratingAttr, _ := e.lookup(FieldRating, root)
	availability, _ := e.lookup(FieldStock, root)
	category, _ := e.lookup(FieldCategory, root)
	description, _ := e.lookup(FieldDescription, root)
	upc, _ := e.lookup(FieldUPC, root)
	productType, _ := e.lookup(FieldProductType, root)

	out := &Extraction{}
	reviewCount, err := e.reviewCount(root)
	if err != nil {
		err.URL = pageURL
		out.Warnings = append(out.Warnings, err)
	}

	out.Book = &models.Book{
		Title:       title,
		Price:       NormalizePrice(price),
		Rating:      RatingFromWord(ratingWord(ratingAttr)),
		Stock:       StockFromAvailability(availability),
		Category:    category,
		Description: description,
		UPC:         upc,
		ProductType: productType,
		ReviewCount: reviewCount,
		URL:         pageURL,
		ScrapedAt:   e.now(),
	}
	return out, nil
}

// Links returns the absolute detail URLs on a listing page in document
// order. Repeated links are kept.
func (e *Extractor) Links(doc *goquery.Document, base *url.URL) ([]string, error) {
	rule, ok := e.rules[FieldItemLink]
	if !ok {
		return nil, &ParseError{Field: string(FieldItemLink), Err: fmt.Errorf("no rule configured")}
	}

	hrefs := rule.LookupAll(doc.Selection)
	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			return nil, &ParseError{Field: string(FieldItemLink), URL: base.String(), Err: err}
		}
		links = append(links, base.ResolveReference(ref).String())
	}
	return links, nil
}

// LinksBytes parses raw listing markup and returns its detail URLs.
func (e *Extractor) LinksBytes(body []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Field: "document", URL: base.String(), Err: err}
	}
	return e.Links(doc, base)
}

func (e *Extractor) lookup(field Field, root *goquery.Selection) (string, bool) {
	rule, ok := e.rules[field]
	if !ok {
		return "", false
	}
	return rule.Lookup(root)
}

func (e *Extractor) reviewCount(root *goquery.Selection) (int, *ParseError) {
	raw, ok := e.lookup(FieldReviewCount, root)
	if !ok {
		return 0, &ParseError{Field: string(FieldReviewCount), Err: errMissing}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParseError{Field: string(FieldReviewCount), Err: err}
	}
	if n < 0 {
		return 0, &ParseError{Field: string(FieldReviewCount), Err: fmt.Errorf("negative count %d", n)}
	}
	return n, nil
}

// ratingWord strips the "star-rating" class token, leaving the rating word.
func ratingWord(class string) string {
	parts := strings.Fields(class)
	words := parts[:0]
	for _, p := range parts {
		if p != ratingClass {
			words = append(words, p)
		}
	}
	if len(words) == 0 {
		return "Zero"
	}
	return strings.Join(words, " ")
}
