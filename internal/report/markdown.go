package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/idscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	return w.WriteSummary(model.NewScanSummary(report))
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.ScanSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	// Header
	w.writeHeader(md, summary)

	// Overview
	w.writeOverview(md, summary)

	// Confirmed profiles per identifier
	w.writeProfiles(md, summary)

	// Footer
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.ScanSummary) {
	md.H1("idscan Report")
	md.PlainText("")

	identifiers := make([]string, 0, len(summary.Identifiers))
	for _, identifier := range summary.Identifiers {
		identifiers = append(identifiers, "`"+identifier+"`")
	}

	// Basic info table
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Identifiers", strings.Join(identifiers, ", ")},
			{"Mode", string(summary.Mode)},
			{"Scan Date", summary.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{"Sites Probed", strconv.Itoa(summary.SitesProbed) + " of " + strconv.Itoa(summary.CatalogSize)},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on summary state.
func (w *MarkdownWriter) getStatusText(summary *model.ScanSummary) string {
	if summary.Interrupted {
		return "⚠️ Interrupted (partial results)"
	}
	if summary.Error != "" {
		return "❌ Error - " + summary.Error
	}
	return "✅ Complete"
}

// writeOverview writes the run counter section.
func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, summary *model.ScanSummary) {
	md.H2("Scan Overview")
	md.PlainText("")

	// Summary table
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"🎯 Confirmed profiles", strconv.Itoa(summary.FoundCount)},
			{"🌐 Networks", strconv.Itoa(countNetworks(summary))},
			{"📡 Probes attempted", strconv.Itoa(summary.TotalProbes)},
			{"♻️ Duplicates removed", strconv.Itoa(summary.DedupeDropped)},
			{"🔍 Strict filter removed", strconv.Itoa(summary.StrictDropped)},
		},
	})
	md.PlainText("")

	// Catalog provenance breakdown
	if len(summary.SourceCounts) > 0 {
		rows := make([][]string, 0, len(summary.SourceCounts))
		for _, source := range sortedKeys(summary.SourceCounts) {
			rows = append(rows, []string{source, strconv.Itoa(summary.SourceCounts[source])})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Catalog", "Hits"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	// Add pie chart if there are hits
	if summary.HasHits() {
		w.writePieChart(md, summary)
	}

	// Add alert based on outcome
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of the category distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.ScanSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Profile Category Distribution"),
		piechart.WithShowData(true),
	)

	caser := cases.Title(language.English)
	for _, category := range sortedKeys(summary.CategoryCounts) {
		count := summary.CategoryCounts[category]
		if count == 0 {
			continue
		}
		chart.LabelAndIntValue(caser.String(category), uint64(count))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.ScanSummary) {
	switch {
	case summary.Error != "":
		md.Cautionf(
			"The scan failed: %s. Results below may be incomplete.",
			summary.Error,
		)
	case summary.Interrupted:
		md.Warningf(
			"The scan was interrupted before all %d probes completed. Results are partial.",
			summary.TotalProbes,
		)
	case summary.HasHits():
		md.Importantf(
			"%d profile(s) confirmed across %d network(s).",
			summary.FoundCount, countNetworks(summary),
		)
	default:
		md.Note("No presence confirmed on any probed site.")
	}
	md.PlainText("")
}

// writeProfiles writes the confirmed profiles grouped by identifier.
func (w *MarkdownWriter) writeProfiles(md *markdown.Markdown, summary *model.ScanSummary) {
	md.H2("Confirmed Profiles")
	md.PlainText("")

	if !summary.HasHits() {
		md.PlainText("No profiles found.")
		md.PlainText("")
		return
	}

	for _, identifier := range summary.Identifiers {
		hits := summary.HitsFor(identifier)
		if len(hits) == 0 {
			continue
		}

		md.H3(identifier)
		md.PlainText("")
		w.writeHitsTable(md, hits)
	}
}

// writeHitsTable writes a table of hits with details.
func (w *MarkdownWriter) writeHitsTable(md *markdown.Markdown, hits []model.ProfileHit) {
	headers := []string{"Site", "URL", "Category", "Catalog"}

	caser := cases.Title(language.English)
	rows := make([][]string, len(hits))
	for i, hit := range hits {
		category := hit.Category
		if category == "" {
			category = "-"
		} else {
			category = caser.String(category)
		}
		source := hit.Source
		if source == "" {
			source = "-"
		}

		rows[i] = []string{
			displayName(hit),
			"[" + truncateString(hit.URL, 60) + "](" + hit.URL + ")",
			category,
			source,
		}
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")

	// Add extracted bios as collapsible details
	for _, hit := range hits {
		if hit.Bio != "" {
			md.Details(displayName(hit), hit.Bio)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [idscan](https://github.com/nao1215/idscan)*")
}

// countNetworks returns the number of distinct networks among the hits.
func countNetworks(summary *model.ScanSummary) int {
	seen := make(map[string]struct{}, len(summary.Hits))
	for _, hit := range summary.Hits {
		seen[hit.NetworkSlug] = struct{}{}
	}
	return len(seen)
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
