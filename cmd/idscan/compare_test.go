package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/idscan/internal/database"
	"github.com/nao1215/idscan/internal/model"
)

// TestNewCompareCmd tests the compare command structure.
func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "compare [identifier]" {
			t.Errorf("expected Use 'compare [identifier]', got %q", cmd.Use)
		}
	})

	t.Run("accepts at most one argument", func(t *testing.T) {
		t.Parallel()
		if err := cmd.Args(cmd, []string{"alice"}); err != nil {
			t.Errorf("expected one argument to be accepted, got %v", err)
		}
		if err := cmd.Args(cmd, []string{"alice", "bob"}); err == nil {
			t.Error("expected two arguments to be rejected")
		}
	})

	t.Run("has list flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("list")
		if flag == nil {
			t.Fatal("expected list flag to exist")
		}
		if flag.Shorthand != "l" {
			t.Errorf("expected shorthand 'l', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has list-identifiers flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("list-identifiers")
		if flag == nil {
			t.Fatal("expected list-identifiers flag to exist")
		}
		if flag.Shorthand != "L" {
			t.Errorf("expected shorthand 'L', got %q", flag.Shorthand)
		}
	})

	t.Run("has with-scan-id flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("with-scan-id")
		if flag == nil {
			t.Fatal("expected with-scan-id flag to exist")
		}
		if flag.Shorthand != "i" {
			t.Errorf("expected shorthand 'i', got %q", flag.Shorthand)
		}
		if flag.DefValue != "0" {
			t.Errorf("expected default '0', got %q", flag.DefValue)
		}
	})

	t.Run("has since flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("since")
		if flag == nil {
			t.Fatal("expected since flag to exist")
		}
		if flag.Shorthand != "s" {
			t.Errorf("expected shorthand 's', got %q", flag.Shorthand)
		}
	})

	t.Run("has output format flags", func(t *testing.T) {
		t.Parallel()
		jsonFlag := cmd.Flags().Lookup("json")
		if jsonFlag == nil || jsonFlag.Shorthand != "j" {
			t.Error("expected json flag with shorthand 'j'")
		}
		markdownFlag := cmd.Flags().Lookup("markdown")
		if markdownFlag == nil || markdownFlag.Shorthand != "m" {
			t.Error("expected markdown flag with shorthand 'm'")
		}
	})
}

// TestNormalizeCompareIdentifier tests identifier normalization for history lookups.
func TestNormalizeCompareIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain username passes through", raw: "alice", want: "alice"},
		{name: "username keeps case", raw: "Alice", want: "Alice"},
		{name: "username is trimmed", raw: "  alice  ", want: "alice"},
		{name: "email is lowercased", raw: "Alice@Example.COM", want: "alice@example.com"},
		{name: "invalid email fails", raw: "alice@", wantErr: true},
		{name: "username with spaces fails", raw: "alice smith", wantErr: true},
		{name: "empty identifier fails", raw: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeCompareIdentifier(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %q", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestProfileKey tests the identity key used to match profiles between scans.
func TestProfileKey(t *testing.T) {
	t.Parallel()

	hit := model.ProfileHit{
		Identifier:  "alice",
		NetworkSlug: "github",
		URL:         "https://github.com/alice",
	}

	want := "github|alice|https://github.com/alice"
	if got := profileKey(hit); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// TestSortHits tests that hits are ordered by network and then URL.
func TestSortHits(t *testing.T) {
	t.Parallel()

	hits := []model.ProfileHit{
		{NetworkSlug: "gitlab", URL: "https://gitlab.com/alice"},
		{NetworkSlug: "github", URL: "https://github.com/b"},
		{NetworkSlug: "github", URL: "https://github.com/a"},
	}

	sortHits(hits)

	got := make([]string, 0, len(hits))
	for _, h := range hits {
		got = append(got, h.NetworkSlug+" "+h.URL)
	}
	want := []string{
		"github https://github.com/a",
		"github https://github.com/b",
		"gitlab https://gitlab.com/alice",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

// TestFirstIdentifier tests identifier extraction from saved reports.
func TestFirstIdentifier(t *testing.T) {
	t.Parallel()

	t.Run("returns the first identifier", func(t *testing.T) {
		t.Parallel()
		report := model.NewScanReport([]string{"alice"}, model.ModeUsername)
		if got := firstIdentifier(report); got != "alice" {
			t.Errorf("expected 'alice', got %q", got)
		}
	})

	t.Run("returns empty string when report has no identifiers", func(t *testing.T) {
		t.Parallel()
		report := model.NewScanReport(nil, model.ModeUsername)
		if got := firstIdentifier(report); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// comparisonReport builds a scan report with one confirmed profile per
// network for comparison tests.
func comparisonReport(identifier string, startedAt time.Time, networks ...string) *model.ScanReport {
	report := model.NewScanReport([]string{identifier}, model.ModeUsername)
	report.StartedAt = startedAt
	for _, network := range networks {
		report.Profiles = append(report.Profiles,
			model.NewProfileRecord("https://"+network+".example.com/"+identifier, identifier, network))
	}
	return report
}

// hitSlugs extracts the network slugs from a hit list in order.
func hitSlugs(hits []model.ProfileHit) []string {
	var slugs []string
	for _, h := range hits {
		slugs = append(slugs, h.NetworkSlug)
	}
	return slugs
}

// TestScanMetadata tests metadata extraction from a scan report.
func TestScanMetadata(t *testing.T) {
	t.Parallel()

	startedAt := time.Date(2025, 3, 5, 10, 30, 0, 0, time.UTC)
	report := comparisonReport("alice", startedAt, "gitlab", "github")

	meta := scanMetadata(report)

	if !meta.DateScanned.Equal(startedAt) {
		t.Errorf("expected date %v, got %v", startedAt, meta.DateScanned)
	}
	if meta.FoundCount != 2 {
		t.Errorf("expected found count 2, got %d", meta.FoundCount)
	}
	if !reflect.DeepEqual(meta.Networks, []string{"github", "gitlab"}) {
		t.Errorf("expected sorted networks [github gitlab], got %v", meta.Networks)
	}
}

// TestCompareReports tests the diff between two scan reports.
func TestCompareReports(t *testing.T) {
	t.Parallel()

	previousTime := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	currentTime := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name             string
		previousNetworks []string
		currentNetworks  []string
		wantNew          []string
		wantVanished     []string
		wantUnchanged    int
		wantDirection    string
		wantDelta        int
		wantNewNetworks  []string
		wantLostNetworks []string
	}{
		{
			name:             "new profile appears",
			previousNetworks: []string{"github"},
			currentNetworks:  []string{"github", "gitlab"},
			wantNew:          []string{"gitlab"},
			wantUnchanged:    1,
			wantDirection:    presenceExpanded,
			wantDelta:        1,
			wantNewNetworks:  []string{"gitlab"},
		},
		{
			name:             "profile vanishes",
			previousNetworks: []string{"github", "gitlab"},
			currentNetworks:  []string{"github"},
			wantVanished:     []string{"gitlab"},
			wantUnchanged:    1,
			wantDirection:    presenceReduced,
			wantDelta:        -1,
			wantLostNetworks: []string{"gitlab"},
		},
		{
			name:             "nothing changes",
			previousNetworks: []string{"github", "gitlab"},
			currentNetworks:  []string{"github", "gitlab"},
			wantUnchanged:    2,
			wantDirection:    presenceUnchanged,
		},
		{
			name:          "both scans empty",
			wantDirection: presenceUnchanged,
		},
		{
			name:             "complete turnover",
			previousNetworks: []string{"github"},
			currentNetworks:  []string{"mastodon"},
			wantNew:          []string{"mastodon"},
			wantVanished:     []string{"github"},
			wantDirection:    presenceUnchanged,
			wantNewNetworks:  []string{"mastodon"},
			wantLostNetworks: []string{"github"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			previous := comparisonReport("alice", previousTime, tt.previousNetworks...)
			current := comparisonReport("alice", currentTime, tt.currentNetworks...)

			result := compareReports(previous, current)

			if result.Identifier != "alice" {
				t.Errorf("expected identifier 'alice', got %q", result.Identifier)
			}
			if got := hitSlugs(result.NewProfiles); !reflect.DeepEqual(got, tt.wantNew) {
				t.Errorf("expected new profiles %v, got %v", tt.wantNew, got)
			}
			if got := hitSlugs(result.VanishedProfiles); !reflect.DeepEqual(got, tt.wantVanished) {
				t.Errorf("expected vanished profiles %v, got %v", tt.wantVanished, got)
			}
			if result.UnchangedCount != tt.wantUnchanged {
				t.Errorf("expected unchanged count %d, got %d", tt.wantUnchanged, result.UnchangedCount)
			}
			if result.PresenceChange.Direction != tt.wantDirection {
				t.Errorf("expected direction %q, got %q", tt.wantDirection, result.PresenceChange.Direction)
			}
			if result.PresenceChange.FoundDelta != tt.wantDelta {
				t.Errorf("expected delta %d, got %d", tt.wantDelta, result.PresenceChange.FoundDelta)
			}
			if !reflect.DeepEqual(result.PresenceChange.NewNetworks, tt.wantNewNetworks) {
				t.Errorf("expected new networks %v, got %v", tt.wantNewNetworks, result.PresenceChange.NewNetworks)
			}
			if !reflect.DeepEqual(result.PresenceChange.LostNetworks, tt.wantLostNetworks) {
				t.Errorf("expected lost networks %v, got %v", tt.wantLostNetworks, result.PresenceChange.LostNetworks)
			}
		})
	}

	t.Run("url change on the same network counts as new and vanished", func(t *testing.T) {
		t.Parallel()
		previous := model.NewScanReport([]string{"alice"}, model.ModeUsername)
		previous.StartedAt = previousTime
		previous.Profiles = append(previous.Profiles,
			model.NewProfileRecord("https://github.com/alice-old", "alice", "github"))

		current := model.NewScanReport([]string{"alice"}, model.ModeUsername)
		current.StartedAt = currentTime
		current.Profiles = append(current.Profiles,
			model.NewProfileRecord("https://github.com/alice-new", "alice", "github"))

		result := compareReports(previous, current)

		if len(result.NewProfiles) != 1 || result.NewProfiles[0].URL != "https://github.com/alice-new" {
			t.Errorf("expected one new profile with the new URL, got %+v", result.NewProfiles)
		}
		if len(result.VanishedProfiles) != 1 || result.VanishedProfiles[0].URL != "https://github.com/alice-old" {
			t.Errorf("expected one vanished profile with the old URL, got %+v", result.VanishedProfiles)
		}
		if result.UnchangedCount != 0 {
			t.Errorf("expected no unchanged profiles, got %d", result.UnchangedCount)
		}
		if result.PresenceChange.Direction != presenceUnchanged {
			t.Errorf("expected unchanged direction, got %q", result.PresenceChange.Direction)
		}
		if len(result.PresenceChange.NewNetworks) != 0 || len(result.PresenceChange.LostNetworks) != 0 {
			t.Errorf("expected no network changes, got %+v", result.PresenceChange)
		}
	})
}

// TestCalculatePresenceChange tests presence delta calculation.
func TestCalculatePresenceChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		previous         ScanMetadata
		current          ScanMetadata
		wantDirection    string
		wantDelta        int
		wantNewNetworks  []string
		wantLostNetworks []string
	}{
		{
			name:            "presence expanded",
			previous:        ScanMetadata{FoundCount: 1, Networks: []string{"github"}},
			current:         ScanMetadata{FoundCount: 3, Networks: []string{"github", "gitlab", "mastodon"}},
			wantDirection:   presenceExpanded,
			wantDelta:       2,
			wantNewNetworks: []string{"gitlab", "mastodon"},
		},
		{
			name:             "presence reduced",
			previous:         ScanMetadata{FoundCount: 2, Networks: []string{"github", "gitlab"}},
			current:          ScanMetadata{FoundCount: 1, Networks: []string{"github"}},
			wantDirection:    presenceReduced,
			wantDelta:        -1,
			wantLostNetworks: []string{"gitlab"},
		},
		{
			name:          "presence unchanged",
			previous:      ScanMetadata{FoundCount: 2, Networks: []string{"github", "gitlab"}},
			current:       ScanMetadata{FoundCount: 2, Networks: []string{"github", "gitlab"}},
			wantDirection: presenceUnchanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			change := calculatePresenceChange(tt.previous, tt.current)

			if change.Direction != tt.wantDirection {
				t.Errorf("expected direction %q, got %q", tt.wantDirection, change.Direction)
			}
			if change.FoundDelta != tt.wantDelta {
				t.Errorf("expected delta %d, got %d", tt.wantDelta, change.FoundDelta)
			}
			if !reflect.DeepEqual(change.NewNetworks, tt.wantNewNetworks) {
				t.Errorf("expected new networks %v, got %v", tt.wantNewNetworks, change.NewNetworks)
			}
			if !reflect.DeepEqual(change.LostNetworks, tt.wantLostNetworks) {
				t.Errorf("expected lost networks %v, got %v", tt.wantLostNetworks, change.LostNetworks)
			}
		})
	}
}

// TestFormatFoundSummary tests the scan history hit summary.
func TestFormatFoundSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta database.ScanReportMetadata
		want string
	}{
		{
			name: "no hits",
			meta: database.ScanReportMetadata{},
			want: "No hits",
		},
		{
			name: "hits without networks",
			meta: database.ScanReportMetadata{FoundCount: 3},
			want: "3 found",
		},
		{
			name: "hits with networks",
			meta: database.ScanReportMetadata{FoundCount: 2, Networks: []string{"github", "gitlab"}},
			want: "2 found: github, gitlab",
		},
		{
			name: "long network list is truncated",
			meta: database.ScanReportMetadata{
				FoundCount: 6,
				Networks:   []string{"github", "gitlab", "mastodon", "reddit", "twitch", "youtube"},
			},
			want: "6 found: github, gitlab, mastodon, reddit, ...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatFoundSummary(tt.meta); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestFormatDelta tests signed delta formatting.
func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{delta: 2, want: "+2"},
		{delta: -3, want: "-3"},
		{delta: 0, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := formatDelta(tt.delta); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestFormatPresenceDirection tests direction labels.
func TestFormatPresenceDirection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		direction string
		want      string
	}{
		{direction: presenceExpanded, want: "EXPANDED (new profiles appeared)"},
		{direction: presenceReduced, want: "REDUCED (profiles vanished)"},
		{direction: presenceUnchanged, want: "UNCHANGED"},
	}

	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			t.Parallel()
			if got := formatPresenceDirection(tt.direction); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// openTestDB opens a scan database in a temporary directory.
func openTestDB(t *testing.T) *database.ScanDB {
	t.Helper()
	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// seedReport saves a comparison fixture report. Reports must be saved
// oldest first: history rows with equal timestamps are ordered by
// insertion, so the last saved report becomes the latest scan.
func seedReport(t *testing.T, db *database.ScanDB, report *model.ScanReport) {
	t.Helper()
	if err := db.SaveScanReport(context.Background(), report); err != nil {
		t.Fatalf("failed to seed report: %v", err)
	}
}

// TestListScannedIdentifiers tests the identifier listing output.
func TestListScannedIdentifiers(t *testing.T) {
	t.Run("reports empty database", func(t *testing.T) {
		db := openTestDB(t)

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := listScannedIdentifiers(context.Background(), db)

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()

		if !strings.Contains(buf.String(), "No scanned identifiers found") {
			t.Errorf("expected empty database message, got %q", buf.String())
		}
	})

	t.Run("lists saved identifiers", func(t *testing.T) {
		db := openTestDB(t)
		now := time.Now()
		seedReport(t, db, comparisonReport("alice", now, "github"))
		seedReport(t, db, comparisonReport("bob", now, "gitlab"))

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := listScannedIdentifiers(context.Background(), db)

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		output := buf.String()

		if !strings.Contains(output, "Scanned identifiers (2)") {
			t.Errorf("expected identifier count header, got %q", output)
		}
		for _, id := range []string{"alice", "bob"} {
			if !strings.Contains(output, id) {
				t.Errorf("expected output to contain %q, got %q", id, output)
			}
		}
	})
}

// TestListScanHistory tests the scan history listing output.
func TestListScanHistory(t *testing.T) {
	t.Run("reports missing history", func(t *testing.T) {
		db := openTestDB(t)

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := listScanHistory(context.Background(), db, "ghost")

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()

		if !strings.Contains(buf.String(), "No scan history found for ghost") {
			t.Errorf("expected missing history message, got %q", buf.String())
		}
	})

	t.Run("lists scans newest first", func(t *testing.T) {
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Now().Add(-time.Hour), "github"))
		seedReport(t, db, comparisonReport("alice", time.Now(), "github", "gitlab"))

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := listScanHistory(context.Background(), db, "alice")

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		output := buf.String()

		if !strings.Contains(output, "Scan history for alice (2 scans)") {
			t.Errorf("expected history header, got %q", output)
		}
		if !strings.Contains(output, "2 found: github, gitlab") {
			t.Errorf("expected hit summary in history, got %q", output)
		}
	})
}

// TestRunComparison tests the comparison flow against a seeded database.
func TestRunComparison(t *testing.T) {
	ctx := context.Background()

	t.Run("returns error when no scan history exists", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)

		err := runComparison(ctx, db, "alice", 0, "", false, false)
		if err == nil || !strings.Contains(err.Error(), "no scan history found for alice") {
			t.Errorf("expected missing history error, got %v", err)
		}
	})

	t.Run("returns error when only one scan exists", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Now(), "github"))

		err := runComparison(ctx, db, "alice", 0, "", false, false)
		if err == nil || !strings.Contains(err.Error(), "at least 2 scans are required") {
			t.Errorf("expected scan count error, got %v", err)
		}
	})

	t.Run("compares the latest two scans", func(t *testing.T) {
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Now().Add(-time.Hour), "github"))
		seedReport(t, db, comparisonReport("alice", time.Now(), "github", "gitlab"))

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := runComparison(ctx, db, "alice", 0, "", false, false)

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		output := buf.String()

		if !strings.Contains(output, "Scan Comparison: alice") {
			t.Errorf("expected comparison header, got %q", output)
		}
		if !strings.Contains(output, "EXPANDED") {
			t.Errorf("expected expanded presence, got %q", output)
		}
		if !strings.Contains(output, "gitlab") {
			t.Errorf("expected new network in output, got %q", output)
		}
	})

	t.Run("compares with a specific scan by ID", func(t *testing.T) {
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Now().Add(-time.Hour), "github"))
		seedReport(t, db, comparisonReport("alice", time.Now(), "gitlab"))

		history, err := db.GetScanHistoryWithMetadata(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get history: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 history entries, got %d", len(history))
		}
		oldestID := history[len(history)-1].ID

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err = runComparison(ctx, db, "alice", oldestID, "", false, false)

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()

		if !strings.Contains(buf.String(), "Scan Comparison: alice") {
			t.Errorf("expected comparison header, got %q", buf.String())
		}
	})

	t.Run("returns error when scan ID does not exist", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Now(), "github"))

		err := runComparison(ctx, db, "alice", 9999, "", false, false)
		if err == nil || !strings.Contains(err.Error(), "scan with ID 9999 not found") {
			t.Errorf("expected missing scan ID error, got %v", err)
		}
	})

	t.Run("returns error when scan ID belongs to another identifier", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("bob", time.Now().Add(-time.Hour), "github"))
		seedReport(t, db, comparisonReport("alice", time.Now(), "github"))

		history, err := db.GetScanHistoryWithMetadata(ctx, "bob")
		if err != nil {
			t.Fatalf("failed to get history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 history entry for bob, got %d", len(history))
		}

		err = runComparison(ctx, db, "alice", history[0].ID, "", false, false)
		if err == nil || !strings.Contains(err.Error(), "belongs to bob, not alice") {
			t.Errorf("expected ownership error, got %v", err)
		}
	})

	t.Run("returns error for invalid since date", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Now(), "github"))

		err := runComparison(ctx, db, "alice", 0, "not-a-date", false, false)
		if err == nil || !strings.Contains(err.Error(), "invalid date format") {
			t.Errorf("expected date format error, got %v", err)
		}
	})

	t.Run("returns error when no scans match since date", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), "github"))

		err := runComparison(ctx, db, "alice", 0, "2026-01-01", false, false)
		if err == nil || !strings.Contains(err.Error(), "no scans found since 2026-01-01") {
			t.Errorf("expected no matching scans error, got %v", err)
		}
	})

	t.Run("returns error when only the latest scan matches since date", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), "github"))
		seedReport(t, db, comparisonReport("alice", time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC), "github"))

		err := runComparison(ctx, db, "alice", 0, "2025-03-01", false, false)
		if err == nil || !strings.Contains(err.Error(), "only one scan found since 2025-03-01") {
			t.Errorf("expected single match error, got %v", err)
		}
	})

	t.Run("compares with the oldest scan after since date", func(t *testing.T) {
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), "github"))
		seedReport(t, db, comparisonReport("alice", time.Date(2025, 2, 15, 9, 0, 0, 0, time.UTC), "github", "gitlab"))
		seedReport(t, db, comparisonReport("alice", time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC), "gitlab"))

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := runComparison(ctx, db, "alice", 0, "2025-02-01", false, false)

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		output := buf.String()

		// February scan had two profiles, March has one
		if !strings.Contains(output, "REDUCED") {
			t.Errorf("expected reduced presence, got %q", output)
		}
		if !strings.Contains(output, "2025-02-15") {
			t.Errorf("expected February scan as previous, got %q", output)
		}
	})

	t.Run("outputs JSON format", func(t *testing.T) {
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Now().Add(-time.Hour), "github"))
		seedReport(t, db, comparisonReport("alice", time.Now(), "github", "gitlab"))

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := runComparison(ctx, db, "alice", 0, "", true, false)

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()

		var result ComparisonResult
		if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse JSON output: %v", err)
		}
		if result.Identifier != "alice" {
			t.Errorf("expected identifier 'alice', got %q", result.Identifier)
		}
		if result.PresenceChange.Direction != presenceExpanded {
			t.Errorf("expected expanded direction, got %q", result.PresenceChange.Direction)
		}
		if result.PresenceChange.FoundDelta != 1 {
			t.Errorf("expected delta 1, got %d", result.PresenceChange.FoundDelta)
		}
	})

	t.Run("outputs Markdown format", func(t *testing.T) {
		db := openTestDB(t)
		seedReport(t, db, comparisonReport("alice", time.Now().Add(-time.Hour), "github", "gitlab"))
		seedReport(t, db, comparisonReport("alice", time.Now(), "github"))

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := runComparison(ctx, db, "alice", 0, "", false, true)

		w.Close()
		os.Stdout = oldStdout

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		output := buf.String()

		if !strings.Contains(output, "# Scan Comparison: alice") {
			t.Errorf("expected Markdown title, got %q", output)
		}
		if !strings.Contains(output, "| Metric | Previous | Current | Change |") {
			t.Errorf("expected Markdown table header, got %q", output)
		}
		if !strings.Contains(output, "Vanished Profiles") {
			t.Errorf("expected vanished profiles section, got %q", output)
		}
	})
}

// TestOutputComparisonText tests the text renderer against a fixed result.
func TestOutputComparisonText(t *testing.T) {
	result := &ComparisonResult{
		Identifier: "alice",
		PreviousScan: ScanMetadata{
			DateScanned: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
			FoundCount:  1,
			Networks:    []string{"github"},
		},
		CurrentScan: ScanMetadata{
			DateScanned: time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
			FoundCount:  2,
			Networks:    []string{"github", "gitlab"},
		},
		NewProfiles: []model.ProfileHit{
			{SiteName: "GitLab", NetworkSlug: "gitlab", URL: "https://gitlab.com/alice", Source: "sitelist"},
		},
		UnchangedCount: 1,
		PresenceChange: PresenceChange{
			Direction:   presenceExpanded,
			FoundDelta:  1,
			NewNetworks: []string{"gitlab"},
		},
	}

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := outputComparisonText(result)

	w.Close()
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	r.Close()
	output := buf.String()

	wantFragments := []string{
		"Scan Comparison: alice",
		"Presence: EXPANDED (new profiles appeared)",
		"Previous scan: 2025-01-10 09:00:00",
		"Current scan:  2025-03-05 09:00:00",
		"New networks:  gitlab",
		"New Profiles (1):",
		"[+] [sitelist] GitLab: https://gitlab.com/alice",
		"Unchanged: 1 profiles",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(output, fragment) {
			t.Errorf("expected output to contain %q, got %q", fragment, output)
		}
	}
}
