// Package models defines data structures for the scraper.
package models

import "time"

// Book represents one catalog item extracted from a detail page. It has not
// been persisted yet.
type Book struct {
	Title       string    `csv:"title" json:"title"`
	Price       string    `csv:"price" json:"price"`
	Rating      int       `csv:"rating" json:"rating"`
	Stock       int       `csv:"stock" json:"stock"`
	Category    string    `csv:"category" json:"category"`
	Description string    `csv:"description" json:"description"`
	UPC         string    `csv:"upc" json:"upc"`
	ProductType string    `csv:"product_type" json:"product_type"`
	ReviewCount int       `csv:"review_count" json:"review_count"`
	URL         string    `csv:"url" json:"url"`
	ScrapedAt   time.Time `csv:"scraped_at" json:"scraped_at"`
}

// StoredBook is a Book together with the identifier assigned by the store.
// ID is zero until the book has been saved.
type StoredBook struct {
	ID int64 `csv:"id" json:"id"`
	Book
}

// IngestResult holds the summary of one ingestion run.
type IngestResult struct {
	RunID          string
	PagesRequested int
	BooksSaved     int
	StartPage      int
	PagesCrawled   int
	LastPage       int
	Stopped        bool
	StartTime      time.Time
	EndTime        time.Time
}

// Duration reports how long the run took.
func (r *IngestResult) Duration() time.Duration {
	if r == nil || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
