package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/go-ingest-books/models"
	"github.com/aluiziolira/go-ingest-books/scraper"
)

func printSummary(w io.Writer, result *models.IngestResult, stats scraper.FetchStats, outputFile string) {
	if result == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Ingestion summary")
	t.AppendHeader(table.Row{"Metric", "Value"})

	lastPage := "-"
	if result.PagesCrawled > 0 {
		lastPage = fmt.Sprint(result.LastPage)
	}

	t.AppendRows([]table.Row{
		{"Run ID", result.RunID},
		{"Start page", result.StartPage},
		{"Pages requested", result.PagesRequested},
		{"Pages saved", result.PagesCrawled},
		{"Last saved page", lastPage},
		{"Books saved", result.BooksSaved},
		{"Stopped on empty page", result.Stopped},
	})
	t.AppendSeparator()

	successRate := 0.0
	if stats.Requests > 0 {
		successRate = float64(stats.Requests-stats.Errors) / float64(stats.Requests) * 100
	}
	t.AppendRows([]table.Row{
		{"Requests", stats.Requests},
		{"Success rate", fmt.Sprintf("%.2f%%", successRate)},
		{"Errors", stats.Errors},
		{"Retries", stats.Retries},
	})
	if len(stats.ErrorsByType) > 0 {
		t.AppendRow(table.Row{"Error types", formatCounts(stats.ErrorsByType)})
	}
	t.AppendSeparator()

	t.AppendRow(table.Row{"Duration", result.Duration().Round(time.Millisecond)})
	if result.BooksSaved > 0 && result.Duration() > 0 {
		t.AppendRow(table.Row{"Books/sec", fmt.Sprintf("%.2f", float64(result.BooksSaved)/result.Duration().Seconds())})
	}
	if outputFile != "" {
		t.AppendRow(table.Row{"Output file", outputFile})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
