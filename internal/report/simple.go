package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nao1215/idscan/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting and one line per confirmed profile.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no findings are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	return w.WriteSummary(model.NewScanSummary(report))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.ScanSummary) (int, error) {
	var sb strings.Builder

	// Header
	w.writeHeader(&sb, summary)

	// Confirmed profiles per identifier
	w.writeProfiles(&sb, summary)

	// Run statistics
	w.writeStatistics(&sb, summary)

	// Footer
	w.writeFooter(&sb)

	// Write to output
	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.ScanSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          IDSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Identifiers:    %s\n", strings.Join(summary.Identifiers, ", ")))
	sb.WriteString(fmt.Sprintf("Mode:           %s\n", summary.Mode))
	sb.WriteString(fmt.Sprintf("Scan Date:      %s\n", summary.DateScanned.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Sites Probed:   %d of %d catalog entries\n", summary.SitesProbed, summary.CatalogSize))
	if summary.ElapsedSeconds > 0 {
		sb.WriteString(fmt.Sprintf("Elapsed:        %.1fs\n", summary.ElapsedSeconds))
	}

	switch {
	case summary.Interrupted:
		sb.WriteString("Status:         INTERRUPTED (partial results)\n")
	case summary.Error != "":
		sb.WriteString(fmt.Sprintf("Status:         ERROR - %s\n", summary.Error))
	default:
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writeProfiles writes the confirmed profiles grouped by identifier.
func (w *SimpleWriter) writeProfiles(sb *strings.Builder, summary *model.ScanSummary) {
	if !summary.HasHits() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CONFIRMED PROFILES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if !summary.HasHits() {
		sb.WriteString("  No profiles found\n\n")
		return
	}

	for _, identifier := range summary.Identifiers {
		hits := summary.HitsFor(identifier)
		if len(hits) == 0 && !w.showEmpty {
			continue
		}
		w.writeHitsForIdentifier(sb, identifier, hits)
	}
}

// writeHitsForIdentifier writes the hits of a single identifier.
func (w *SimpleWriter) writeHitsForIdentifier(sb *strings.Builder, identifier string, hits []model.ProfileHit) {
	sb.WriteString(fmt.Sprintf("%s (%d found)\n", identifier, len(hits)))

	if len(hits) == 0 {
		sb.WriteString("  No profiles found\n\n")
		return
	}

	for _, hit := range hits {
		sb.WriteString(fmt.Sprintf("  [+] %-22s %s\n", displayName(hit), hit.URL))
		if w.verbose {
			if hit.Category != "" {
				sb.WriteString(fmt.Sprintf("      Category: %s\n", hit.Category))
			}
			if hit.Source != "" {
				sb.WriteString(fmt.Sprintf("      Source: %s\n", hit.Source))
			}
			if hit.Bio != "" {
				sb.WriteString(fmt.Sprintf("      Bio: %s\n", truncateString(hit.Bio, 120)))
			}
		}
	}
	sb.WriteString("\n")
}

// writeStatistics writes the run counter section.
func (w *SimpleWriter) writeStatistics(sb *strings.Builder, summary *model.ScanSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RUN STATISTICS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  FOUND:      %d of %d probes\n", summary.FoundCount, summary.TotalProbes))
	if summary.DedupeDropped > 0 || w.showEmpty {
		sb.WriteString(fmt.Sprintf("  DUPLICATES: %d removed\n", summary.DedupeDropped))
	}
	if summary.StrictDropped > 0 || w.showEmpty {
		sb.WriteString(fmt.Sprintf("  STRICT:     %d removed\n", summary.StrictDropped))
	}
	sb.WriteString("\n")

	if len(summary.SourceCounts) > 0 {
		sb.WriteString("  By catalog:\n")
		for _, source := range sortedKeys(summary.SourceCounts) {
			sb.WriteString(fmt.Sprintf("    %-16s %d\n", source+":", summary.SourceCounts[source]))
		}
		sb.WriteString("\n")
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by idscan\n")
	sb.WriteString("https://github.com/nao1215/idscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// displayName returns the best available display name for a hit.
func displayName(hit model.ProfileHit) string {
	if hit.SiteName != "" {
		return hit.SiteName
	}
	return hit.NetworkSlug
}

// sortedKeys returns the keys of a count map in alphabetical order so
// output is stable across runs.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
