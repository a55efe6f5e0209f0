package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-ingest-books/models"
)

var stockPattern = regexp.MustCompile(`\(\s*(\d+)[^()]*\)`)

// ValidateBook ensures an extracted book is fit to be persisted.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	if b.Rating < 0 || b.Rating > 5 {
		return fmt.Errorf("book %q has rating %d outside 0-5", b.Title, b.Rating)
	}
	if b.Stock < 0 {
		return fmt.Errorf("book %q has negative stock %d", b.Title, b.Stock)
	}
	if b.ReviewCount < 0 {
		return fmt.Errorf("book %q has negative review count %d", b.Title, b.ReviewCount)
	}
	return nil
}

// NormalizePrice keeps only digits and the first decimal point.
func NormalizePrice(price string) string {
	var sb strings.Builder
	sb.Grow(len(price))
	seenDot := false
	for _, r := range price {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.' && !seenDot:
			seenDot = true
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// RatingFromWord converts the textual rating to a numeric scale. Unknown
// words map to zero.
func RatingFromWord(rating string) int {
	switch rating {
	case "Zero":
		return 0
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}

// StockFromAvailability returns the first parenthesized count in text, such
// as 22 in "In stock (22 available)", or zero when there is none.
func StockFromAvailability(text string) int {
	m := stockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
