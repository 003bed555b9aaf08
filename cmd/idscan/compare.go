package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/idscan/internal/config"
	"github.com/nao1215/idscan/internal/database"
	"github.com/nao1215/idscan/internal/model"
	"github.com/spf13/cobra"
)

// Constants for presence direction and summary messages.
const (
	presenceExpanded  = "expanded"
	presenceReduced   = "reduced"
	presenceUnchanged = "unchanged"
	noHitsMessage     = "No hits"
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [identifier]",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between the current and previous scan results.

This command retrieves historical scan data from the database and shows:
- New profiles that appeared since the last scan
- Vanished profiles that are no longer confirmed
- Changes in the set of networks the identifier is present on

The comparison requires at least two scans in the database for the specified
identifier. Use 'idscan scan' or 'idscan email' to perform scans and save
results.

Examples:
  # Compare latest two scans for a username
  idscan compare alice

  # List all scan history for a username
  idscan compare --list alice

  # Compare with a specific historical scan by ID
  idscan compare --with-scan-id 5 alice

  # Compare scans since a specific date
  idscan compare --since "2025-01-01" alice

  # Output comparison in JSON format
  idscan compare --json alice

  # List all scanned identifiers in the database
  idscan compare --list-identifiers`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified identifier")
	cmd.Flags().BoolP("list-identifiers", "L", false,
		"List all scanned identifiers in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-identifiers flag first (requires database but no identifier)
	listIdentifiers, err := cmd.Flags().GetBool("list-identifiers")
	if err != nil {
		return err
	}

	// Validate arguments before opening database (unless --list-identifiers)
	// This prevents database lock issues when validation fails
	var identifier string
	if !listIdentifiers {
		// Require an identifier for other operations
		if len(args) == 0 {
			return errors.New("identifier is required (use --list-identifiers to see available identifiers)")
		}

		// Normalize the identifier so lookups match what scans saved
		identifier, err = normalizeCompareIdentifier(args[0])
		if err != nil {
			return fmt.Errorf("invalid identifier: %w", err)
		}
	}

	// Use XDG data directory for database
	dbDir := config.XDGDataDir()

	// Open database
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Handle --list-identifiers flag
	if listIdentifiers {
		return listScannedIdentifiers(ctx, db)
	}

	// Handle --list flag
	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listScanHistory(ctx, db, identifier)
	}

	// Get output format flags
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Get comparison target flags
	withScanID, err := cmd.Flags().GetInt64("with-scan-id")
	if err != nil {
		return err
	}
	sinceDate, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}

	// Perform comparison
	return runComparison(ctx, db, identifier, withScanID, sinceDate, jsonOutput, markdownOutput)
}

// normalizeCompareIdentifier canonicalizes a raw identifier argument the
// same way the scan commands do, so history lookups match saved rows.
// Arguments containing an @ are treated as email addresses.
func normalizeCompareIdentifier(raw string) (string, error) {
	var id model.Identifier
	var err error
	if strings.Contains(raw, "@") {
		id, err = model.NewEmail(raw)
	} else {
		id, err = model.NewUsername(raw)
	}
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// listScannedIdentifiers lists all identifiers that have scan records in the database.
func listScannedIdentifiers(ctx context.Context, db *database.ScanDB) error {
	identifiers, err := db.ListScannedIdentifiers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identifiers: %w", err)
	}

	if len(identifiers) == 0 {
		fmt.Println("No scanned identifiers found in the database.")
		fmt.Println("\nUse 'idscan scan <username>' to scan a username.")
		return nil
	}

	fmt.Printf("Scanned identifiers (%d):\n\n", len(identifiers))
	for _, id := range identifiers {
		fmt.Printf("  • %s\n", id)
	}
	fmt.Println("\nUse 'idscan compare --list <identifier>' to see scan history for an identifier.")

	return nil
}

// listScanHistory lists all scan records for a specific identifier.
func listScanHistory(ctx context.Context, db *database.ScanDB, identifier string) error {
	reports, err := db.GetScanHistoryWithMetadata(ctx, identifier)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Printf("No scan history found for %s\n", identifier)
		fmt.Println("\nUse 'idscan scan' to scan this identifier.")
		return nil
	}

	fmt.Printf("Scan history for %s (%d scans):\n\n", identifier, len(reports))
	fmt.Printf("  %-6s  %-20s  %-10s  %s\n", "ID", "Date", "Mode", "Found")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, meta := range reports {
		fmt.Printf("  %-6d  %-20s  %-10s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.Mode,
			formatFoundSummary(meta),
		)
	}

	fmt.Println("\nUse 'idscan compare <identifier>' to compare the latest two scans.")
	fmt.Println("Use 'idscan compare --with-scan-id <id> <identifier>' to compare with a specific scan.")

	return nil
}

// formatFoundSummary formats scan metadata into a human-readable hit summary.
func formatFoundSummary(meta database.ScanReportMetadata) string {
	if meta.FoundCount == 0 {
		return noHitsMessage
	}

	summary := fmt.Sprintf("%d found", meta.FoundCount)
	if len(meta.Networks) > 0 {
		networks := meta.Networks
		if len(networks) > 4 {
			networks = append(networks[:4:4], "...")
		}
		summary += ": " + strings.Join(networks, ", ")
	}
	return summary
}

// runComparison performs the actual comparison between scan reports.
func runComparison(ctx context.Context, db *database.ScanDB, identifier string, withScanID int64, sinceDate string, jsonOutput, markdownOutput bool) error {
	// Get the scan history
	reports, err := db.GetScanHistory(ctx, identifier)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", identifier)
	}

	if len(reports) < 2 && withScanID == 0 && sinceDate == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	// Determine which reports to compare
	var currentReport, previousReport *model.ScanReport

	// Latest report is always the current one
	currentReport = reports[0]

	if withScanID > 0 {
		// Find the report with the specified ID
		previousReport, err = db.GetScanReportByID(ctx, withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", withScanID, err)
		}
		if previousReport == nil {
			return fmt.Errorf("scan with ID %d not found", withScanID)
		}
		// Validate that the scan ID belongs to the same identifier
		if owner := firstIdentifier(previousReport); owner != identifier {
			return fmt.Errorf("scan ID %d belongs to %s, not %s", withScanID, owner, identifier)
		}
	} else if sinceDate != "" {
		// Parse the date and find the first (oldest) report at or after the specified date
		parsedDate, err := time.Parse("2006-01-02", sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Reports are sorted by timestamp DESC (newest first), so iterate in reverse
		// to find the first (oldest) report at or after the date
		for i := len(reports) - 1; i >= 0; i-- {
			r := reports[i]
			if r.StartedAt.After(parsedDate) || r.StartedAt.Equal(parsedDate) {
				previousReport = r
				break // Stop at the first (oldest) matching report
			}
		}
		if previousReport == nil {
			return fmt.Errorf("no scans found since %s", sinceDate)
		}
		// If only one scan matches and it's the current report, we can't compare
		if previousReport == currentReport {
			return fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", sinceDate)
		}
	} else {
		// Default: compare with the previous scan
		previousReport = reports[1]
	}

	// Generate comparison result
	comparison := compareReports(previousReport, currentReport)

	// Output the result
	if jsonOutput {
		return outputComparisonJSON(comparison)
	}
	if markdownOutput {
		return outputComparisonMarkdown(comparison)
	}
	return outputComparisonText(comparison)
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	// Identifier is the compared username or email.
	Identifier string `json:"identifier"`

	// PreviousScan contains metadata about the previous scan.
	PreviousScan ScanMetadata `json:"previous_scan"`

	// CurrentScan contains metadata about the current scan.
	CurrentScan ScanMetadata `json:"current_scan"`

	// NewProfiles contains profiles that are new in the current scan.
	NewProfiles []model.ProfileHit `json:"new_profiles,omitempty"`

	// VanishedProfiles contains profiles that were in the previous scan but not in current.
	VanishedProfiles []model.ProfileHit `json:"vanished_profiles,omitempty"`

	// UnchangedCount is the number of profiles that remain unchanged.
	UnchangedCount int `json:"unchanged_count"`

	// PresenceChange describes the overall change in online presence.
	PresenceChange PresenceChange `json:"presence_change"`
}

// ScanMetadata contains metadata about a scan for comparison display.
type ScanMetadata struct {
	// DateScanned is when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// FoundCount is the total number of confirmed profiles in this scan.
	FoundCount int `json:"found_count"`

	// Networks are the network slugs with confirmed profiles, sorted.
	Networks []string `json:"networks,omitempty"`
}

// PresenceChange describes the change in online presence between scans.
type PresenceChange struct {
	// Direction is "expanded", "reduced", or "unchanged".
	Direction string `json:"direction"`

	// FoundDelta is the change in confirmed profile count.
	FoundDelta int `json:"found_delta"`

	// NewNetworks are networks present now but not in the previous scan.
	NewNetworks []string `json:"new_networks,omitempty"`

	// LostNetworks are networks present before but not in the current scan.
	LostNetworks []string `json:"lost_networks,omitempty"`
}

// compareReports compares two scan reports and generates a comparison result.
func compareReports(previous, current *model.ScanReport) *ComparisonResult {
	result := &ComparisonResult{
		Identifier:   firstIdentifier(current),
		PreviousScan: scanMetadata(previous),
		CurrentScan:  scanMetadata(current),
	}

	// Build hit maps for comparison
	previousHits := make(map[string]model.ProfileHit)
	currentHits := make(map[string]model.ProfileHit)

	for _, h := range model.NewScanSummary(previous).Hits {
		previousHits[profileKey(h)] = h
	}
	for _, h := range model.NewScanSummary(current).Hits {
		currentHits[profileKey(h)] = h
	}

	// Find new profiles (in current but not in previous)
	for key, hit := range currentHits {
		if _, exists := previousHits[key]; !exists {
			result.NewProfiles = append(result.NewProfiles, hit)
		}
	}

	// Find vanished profiles (in previous but not in current)
	for key, hit := range previousHits {
		if _, exists := currentHits[key]; !exists {
			result.VanishedProfiles = append(result.VanishedProfiles, hit)
		} else {
			result.UnchangedCount++
		}
	}

	// Map iteration order is random; sort for stable output.
	sortHits(result.NewProfiles)
	sortHits(result.VanishedProfiles)

	// Calculate presence change
	result.PresenceChange = calculatePresenceChange(result.PreviousScan, result.CurrentScan)

	return result
}

// scanMetadata extracts comparison metadata from a scan report.
func scanMetadata(report *model.ScanReport) ScanMetadata {
	return ScanMetadata{
		DateScanned: report.StartedAt,
		FoundCount:  report.FoundCount(),
		Networks:    report.Networks(),
	}
}

// profileKey generates a unique key for a profile hit for comparison purposes.
// It matches the triple the dedupe filter treats as identity.
func profileKey(h model.ProfileHit) string {
	return h.NetworkSlug + "|" + h.Identifier + "|" + h.URL
}

// sortHits orders hits by network and URL so output is deterministic.
func sortHits(hits []model.ProfileHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].NetworkSlug != hits[j].NetworkSlug {
			return hits[i].NetworkSlug < hits[j].NetworkSlug
		}
		return hits[i].URL < hits[j].URL
	})
}

// firstIdentifier returns the identifier a saved report belongs to.
// Saved rows hold exactly one identifier each.
func firstIdentifier(report *model.ScanReport) string {
	if len(report.Identifiers) == 0 {
		return ""
	}
	return report.Identifiers[0]
}

// calculatePresenceChange calculates the change in presence between two scans.
func calculatePresenceChange(previous, current ScanMetadata) PresenceChange {
	change := PresenceChange{
		FoundDelta: current.FoundCount - previous.FoundCount,
	}

	previousNetworks := make(map[string]bool, len(previous.Networks))
	for _, n := range previous.Networks {
		previousNetworks[n] = true
	}
	currentNetworks := make(map[string]bool, len(current.Networks))
	for _, n := range current.Networks {
		currentNetworks[n] = true
	}

	// Networks lists are sorted, so the diffs inherit the order.
	for _, n := range current.Networks {
		if !previousNetworks[n] {
			change.NewNetworks = append(change.NewNetworks, n)
		}
	}
	for _, n := range previous.Networks {
		if !currentNetworks[n] {
			change.LostNetworks = append(change.LostNetworks, n)
		}
	}

	switch {
	case change.FoundDelta > 0:
		change.Direction = presenceExpanded
	case change.FoundDelta < 0:
		change.Direction = presenceReduced
	default:
		change.Direction = presenceUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(result *ComparisonResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(result *ComparisonResult) error {
	fmt.Printf("# Scan Comparison: %s\n\n", result.Identifier)

	// Presence change summary
	fmt.Println("## Summary")
	fmt.Printf("\n**Presence:** %s\n\n", formatPresenceDirection(result.PresenceChange.Direction))

	// Scan metadata table
	fmt.Println("| Metric | Previous | Current | Change |")
	fmt.Println("|--------|----------|---------|--------|")
	fmt.Printf("| Date | %s | %s | - |\n",
		result.PreviousScan.DateScanned.Format("2006-01-02 15:04"),
		result.CurrentScan.DateScanned.Format("2006-01-02 15:04"))
	fmt.Printf("| Profiles | %d | %d | %s |\n",
		result.PreviousScan.FoundCount,
		result.CurrentScan.FoundCount,
		formatDelta(result.PresenceChange.FoundDelta))
	fmt.Printf("| Networks | %d | %d | %s |\n",
		len(result.PreviousScan.Networks),
		len(result.CurrentScan.Networks),
		formatDelta(len(result.CurrentScan.Networks)-len(result.PreviousScan.Networks)))

	// New profiles
	if len(result.NewProfiles) > 0 {
		fmt.Printf("\n## New Profiles (%d)\n\n", len(result.NewProfiles))
		for _, h := range result.NewProfiles {
			fmt.Printf("- **%s**: %s\n", h.SiteName, h.URL)
			if h.Source != "" {
				fmt.Printf("  - Source: `%s`\n", h.Source)
			}
		}
	}

	// Vanished profiles
	if len(result.VanishedProfiles) > 0 {
		fmt.Printf("\n## Vanished Profiles (%d)\n\n", len(result.VanishedProfiles))
		for _, h := range result.VanishedProfiles {
			fmt.Printf("- ~~**%s**: %s~~\n", h.SiteName, h.URL)
		}
	}

	// Unchanged count
	if result.UnchangedCount > 0 {
		fmt.Printf("\n---\n\n*%d profiles unchanged*\n", result.UnchangedCount)
	}

	return nil
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(result *ComparisonResult) error {
	fmt.Printf("Scan Comparison: %s\n", result.Identifier)
	fmt.Println(strings.Repeat("=", 60))

	// Presence change summary
	fmt.Printf("\nPresence: %s\n", formatPresenceDirection(result.PresenceChange.Direction))

	// Scan dates
	fmt.Printf("\nPrevious scan: %s\n", result.PreviousScan.DateScanned.Format("2006-01-02 15:04:05"))
	fmt.Printf("Current scan:  %s\n", result.CurrentScan.DateScanned.Format("2006-01-02 15:04:05"))

	// Summary table
	fmt.Println("\nPresence Summary:")
	fmt.Printf("  %-10s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Println("  " + strings.Repeat("-", 45))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Profiles",
		result.PreviousScan.FoundCount, result.CurrentScan.FoundCount,
		formatDelta(result.PresenceChange.FoundDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Networks",
		len(result.PreviousScan.Networks), len(result.CurrentScan.Networks),
		formatDelta(len(result.CurrentScan.Networks)-len(result.PreviousScan.Networks)))

	// Network set changes
	if len(result.PresenceChange.NewNetworks) > 0 {
		fmt.Printf("\nNew networks:  %s\n", strings.Join(result.PresenceChange.NewNetworks, ", "))
	}
	if len(result.PresenceChange.LostNetworks) > 0 {
		fmt.Printf("Lost networks: %s\n", strings.Join(result.PresenceChange.LostNetworks, ", "))
	}

	// New profiles
	if len(result.NewProfiles) > 0 {
		fmt.Printf("\nNew Profiles (%d):\n", len(result.NewProfiles))
		for _, h := range result.NewProfiles {
			fmt.Printf("  [+] [%s] %s: %s\n", h.Source, h.SiteName, h.URL)
		}
	}

	// Vanished profiles
	if len(result.VanishedProfiles) > 0 {
		fmt.Printf("\nVanished Profiles (%d):\n", len(result.VanishedProfiles))
		for _, h := range result.VanishedProfiles {
			fmt.Printf("  [-] [%s] %s: %s\n", h.Source, h.SiteName, h.URL)
		}
	}

	// Unchanged count
	if result.UnchangedCount > 0 {
		fmt.Printf("\nUnchanged: %d profiles\n", result.UnchangedCount)
	}

	return nil
}

// formatPresenceDirection formats the presence change direction for display.
func formatPresenceDirection(direction string) string {
	switch direction {
	case presenceExpanded:
		return "EXPANDED (new profiles appeared)"
	case presenceReduced:
		return "REDUCED (profiles vanished)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
