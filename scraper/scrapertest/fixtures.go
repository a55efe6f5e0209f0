// Package scrapertest builds fake catalog sites for tests.
package scrapertest

import (
	"fmt"
	"strings"

	"github.com/jarcoal/httpmock"
)

// BaseURL is the catalog root served by Register.
const BaseURL = "http://example.test/catalogue/"

// Detail holds the values rendered into a detail page.
type Detail struct {
	Title        string
	Price        string
	RatingWord   string
	Availability string
	Category     string
	Description  string
	UPC          string
	ProductType  string
	Reviews      string
}

// BookDetail returns deterministic detail values for book id.
func BookDetail(id int) Detail {
	return Detail{
		Title:        fmt.Sprintf("Book %d", id),
		Price:        fmt.Sprintf("£%d.50", id),
		RatingWord:   "Three",
		Availability: fmt.Sprintf("In stock (%d available)", id),
		Category:     "Fiction",
		Description:  fmt.Sprintf("Description of book %d.", id),
		UPC:          fmt.Sprintf("UPC%04d", id),
		ProductType:  "Books",
		Reviews:      "0",
	}
}

// BookPath returns the detail path of book id, relative to BaseURL.
func BookPath(id int) string {
	return fmt.Sprintf("book-%d_%d/index.html", id, id)
}

// PagePath returns the listing path of a page, relative to BaseURL.
func PagePath(page int) string {
	return fmt.Sprintf("page-%d.html", page)
}

// ListingPage renders a listing page linking to hrefs.
func ListingPage(hrefs ...string) string {
	var builder strings.Builder
	builder.WriteString("<html><body><section><ol class=\"row\">")
	for i, href := range hrefs {
		builder.WriteString("<li><article class=\"product_pod\">")
		fmt.Fprintf(&builder, "<h3><a href=\"%s\" title=\"Item %d\">Item %d</a></h3>", href, i, i)
		builder.WriteString("<p class=\"price_color\">&pound;1.00</p>")
		builder.WriteString("</article></li>")
	}
	builder.WriteString("</ol></section></body></html>")
	return builder.String()
}

// DetailPage renders a detail page shaped like books.toscrape.com.
func DetailPage(d Detail) string {
	var builder strings.Builder
	builder.WriteString("<html><body>")
	fmt.Fprintf(&builder, "<ul class=\"breadcrumb\"><li><a href=\"/\">Home</a></li><li><a href=\"#\">Books</a></li><li><a href=\"#\">%s</a></li><li class=\"active\">%s</li></ul>", d.Category, d.Title)
	builder.WriteString("<div class=\"product_main\">")
	fmt.Fprintf(&builder, "<h1>%s</h1>", d.Title)
	fmt.Fprintf(&builder, "<p class=\"price_color\">%s</p>", d.Price)
	fmt.Fprintf(&builder, "<p class=\"instock availability\">\n    %s\n</p>", d.Availability)
	fmt.Fprintf(&builder, "<p class=\"star-rating %s\"></p>", d.RatingWord)
	builder.WriteString("</div>")
	fmt.Fprintf(&builder, "<div id=\"product_description\" class=\"sub-header\"><h2>Product Description</h2></div><p>%s</p>", d.Description)
	builder.WriteString("<table class=\"table table-striped\">")
	rows := []string{d.UPC, d.ProductType, "£0.00", "£0.00", "£0.00", d.Availability, d.Reviews}
	for _, cell := range rows {
		fmt.Fprintf(&builder, "<tr><th>k</th><td>%s</td></tr>", cell)
	}
	builder.WriteString("</table></body></html>")
	return builder.String()
}

// HTMLResponder serves body as text/html with status 200.
func HTMLResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

// Register serves a catalog on transport. pages[i] lists the book ids on
// page i+1; the page after the last one is served empty.
func Register(transport *httpmock.MockTransport, pages [][]int) {
	for i, ids := range pages {
		hrefs := make([]string, 0, len(ids))
		for _, id := range ids {
			hrefs = append(hrefs, BookPath(id))
			transport.RegisterResponder("GET", BaseURL+BookPath(id), HTMLResponder(DetailPage(BookDetail(id))))
		}
		transport.RegisterResponder("GET", BaseURL+PagePath(i+1), HTMLResponder(ListingPage(hrefs...)))
	}
	transport.RegisterResponder("GET", BaseURL+PagePath(len(pages)+1), HTMLResponder(ListingPage()))
}
