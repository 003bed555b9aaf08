package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/idscan/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*ScanDB, func()) {
	t.Helper()

	tmpDir := t.TempDir()

	db, err := Open(tmpDir, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db, cleanup
}

// testReport builds a report for one identifier with the given networks found.
func testReport(identifier string, mode model.ScanMode, networks ...string) *model.ScanReport {
	report := model.NewScanReport([]string{identifier}, mode)
	for _, network := range networks {
		record := model.NewProfileRecord("https://"+network+".example.com/"+identifier, identifier, network)
		report.Profiles = append(report.Profiles, record)
	}
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()

		dbDir := filepath.Join(tmpDir, "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		// Check that database file exists
		dbPath := filepath.Join(dbDir, "idscan.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=true creates new database", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		dbDir := filepath.Join(tmpDir, "create-new")

		opts := Options{
			CreateIfNotExists: true,
			EnableWAL:         true,
		}

		db, err := Open(dbDir, opts)
		if err != nil {
			t.Fatalf("failed to open database with CreateIfNotExists=true: %v", err)
		}
		defer db.Close()

		// Verify database file was created
		dbPath := filepath.Join(dbDir, "idscan.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file should have been created")
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		dbDir := filepath.Join(tmpDir, "nonexistent-db")

		opts := Options{
			CreateIfNotExists: false,
			EnableWAL:         true,
		}

		_, err := Open(dbDir, opts)
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}

		// Verify error message is informative
		expectedMsg := "database not found"
		if !contains(err.Error(), expectedMsg) {
			t.Errorf("expected error to contain %q, got %q", expectedMsg, err.Error())
		}

		// Verify database directory was NOT created
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created when CreateIfNotExists=false")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		dbDir := filepath.Join(tmpDir, "existing-db")

		// First create the database
		createOpts := Options{
			CreateIfNotExists: true,
			EnableWAL:         true,
		}
		db1, err := Open(dbDir, createOpts)
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}

		// Save a report to verify data persists
		ctx := context.Background()
		report := testReport("alice", model.ModeUsername, "GitHub")
		if err := db1.SaveScanReport(ctx, report); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
		db1.Close()

		// Now open with CreateIfNotExists=false
		openOpts := Options{
			CreateIfNotExists: false,
			EnableWAL:         true,
		}
		db2, err := Open(dbDir, openOpts)
		if err != nil {
			t.Fatalf("failed to open existing database with CreateIfNotExists=false: %v", err)
		}
		defer db2.Close()

		// Verify data persists
		retrieved, err := db2.GetLatestScanReport(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get report: %v", err)
		}
		if retrieved == nil {
			t.Error("expected report to exist in database")
		}
	})

	t.Run("CreateIfNotExists=false with directory but no db file", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		dbDir := filepath.Join(tmpDir, "empty-dir")

		// Create the directory but not the database file
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}

		opts := Options{
			CreateIfNotExists: false,
			EnableWAL:         true,
		}

		_, err := Open(dbDir, opts)
		if err == nil {
			t.Fatal("expected error when directory exists but database file does not")
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()

	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

// contains checks if s contains substr.
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && containsAt(s, substr))
}

// containsAt checks if s contains substr at any position.
func containsAt(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// TestSaveScanReport tests scan report persistence.
func TestSaveScanReport(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("save and retrieve report", func(t *testing.T) {
		report := testReport("alice", model.ModeUsername, "GitHub", "GitLab")

		if err := db.SaveScanReport(ctx, report); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		retrieved, err := db.GetLatestScanReport(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected report, got nil")
		}
		if len(retrieved.Profiles) != 2 {
			t.Errorf("expected 2 profiles, got %d", len(retrieved.Profiles))
		}
		if retrieved.Mode != model.ModeUsername {
			t.Errorf("expected mode %q, got %q", model.ModeUsername, retrieved.Mode)
		}
	})

	t.Run("multi-identifier run is narrowed per identifier", func(t *testing.T) {
		report := model.NewScanReport([]string{"bob", "carol"}, model.ModeUsername)
		report.Profiles = append(report.Profiles,
			model.NewProfileRecord("https://github.example.com/bob", "bob", "GitHub"),
			model.NewProfileRecord("https://gitlab.example.com/carol", "carol", "GitLab"),
			model.NewProfileRecord("https://mastodon.example.com/@carol", "carol", "Mastodon"),
		)

		if err := db.SaveScanReport(ctx, report); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		bobReport, err := db.GetLatestScanReport(ctx, "bob")
		if err != nil {
			t.Fatalf("failed to get bob's report: %v", err)
		}
		if bobReport == nil {
			t.Fatal("expected report for bob")
		}
		if len(bobReport.Profiles) != 1 {
			t.Fatalf("expected 1 profile for bob, got %d", len(bobReport.Profiles))
		}
		if bobReport.Profiles[0].Identifier != "bob" {
			t.Errorf("expected bob's profile, got %q", bobReport.Profiles[0].Identifier)
		}

		carolReport, err := db.GetLatestScanReport(ctx, "carol")
		if err != nil {
			t.Fatalf("failed to get carol's report: %v", err)
		}
		if carolReport == nil {
			t.Fatal("expected report for carol")
		}
		if len(carolReport.Profiles) != 2 {
			t.Errorf("expected 2 profiles for carol, got %d", len(carolReport.Profiles))
		}
	})

	t.Run("report without identifiers is a no-op", func(t *testing.T) {
		report := model.NewScanReport(nil, model.ModeUsername)
		if err := db.SaveScanReport(ctx, report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

// TestGetLatestScanReport tests retrieval of the most recent report.
func TestGetLatestScanReport(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("returns nil for non-existent identifier", func(t *testing.T) {
		retrieved, err := db.GetLatestScanReport(ctx, "never-scanned")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if retrieved != nil {
			t.Error("expected nil for non-existent identifier")
		}
	})

	t.Run("returns newest report when multiple exist", func(t *testing.T) {
		first := testReport("dave", model.ModeUsername, "GitHub")
		if err := db.SaveScanReport(ctx, first); err != nil {
			t.Fatalf("failed to save first: %v", err)
		}
		time.Sleep(10 * time.Millisecond)

		second := testReport("dave", model.ModeUsername, "GitHub", "GitLab", "Mastodon")
		if err := db.SaveScanReport(ctx, second); err != nil {
			t.Fatalf("failed to save second: %v", err)
		}

		retrieved, err := db.GetLatestScanReport(ctx, "dave")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected report, got nil")
		}
		if len(retrieved.Profiles) != 3 {
			t.Errorf("expected the newer report with 3 profiles, got %d", len(retrieved.Profiles))
		}
	})
}

// TestGetScanReportByID tests retrieval of a scan report by row ID.
func TestGetScanReportByID(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("returns nil for unknown ID", func(t *testing.T) {
		retrieved, err := db.GetScanReportByID(ctx, 9999)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if retrieved != nil {
			t.Error("expected nil for unknown ID")
		}
	})

	t.Run("returns the report saved under that ID", func(t *testing.T) {
		report := testReport("erin", model.ModeUsername, "GitHub")
		if err := db.SaveScanReport(ctx, report); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		// The row ID comes from the history metadata listing.
		history, err := db.GetScanHistoryWithMetadata(ctx, "erin")
		if err != nil {
			t.Fatalf("failed to get history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 history entry, got %d", len(history))
		}

		retrieved, err := db.GetScanReportByID(ctx, history[0].ID)
		if err != nil {
			t.Fatalf("failed to get by ID: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected report, got nil")
		}
		if len(retrieved.Identifiers) != 1 || retrieved.Identifiers[0] != "erin" {
			t.Errorf("expected identifiers [erin], got %v", retrieved.Identifiers)
		}
		if len(retrieved.Profiles) != 1 {
			t.Errorf("expected 1 profile, got %d", len(retrieved.Profiles))
		}
	})
}

// TestListScannedIdentifiers tests listing of identifiers with history.
func TestListScannedIdentifiers(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("returns empty list for fresh database", func(t *testing.T) {
		identifiers, err := db.ListScannedIdentifiers(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(identifiers) != 0 {
			t.Errorf("expected empty list, got %v", identifiers)
		}
	})

	t.Run("lists identifiers sorted and deduplicated", func(t *testing.T) {
		for _, identifier := range []string{"zoe", "alice", "zoe"} {
			report := testReport(identifier, model.ModeUsername, "GitHub")
			if err := db.SaveScanReport(ctx, report); err != nil {
				t.Fatalf("failed to save: %v", err)
			}
		}

		identifiers, err := db.ListScannedIdentifiers(ctx)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(identifiers) != 2 {
			t.Fatalf("expected 2 identifiers, got %d: %v", len(identifiers), identifiers)
		}
		if identifiers[0] != "alice" || identifiers[1] != "zoe" {
			t.Errorf("expected sorted [alice zoe], got %v", identifiers)
		}
	})
}

// TestGetScanHistory tests retrieval of scan history for an identifier.
func TestGetScanHistory(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("returns empty list for non-existent identifier", func(t *testing.T) {
		history, err := db.GetScanHistory(ctx, "never-scanned")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("expected empty history, got %d reports", len(history))
		}
	})

	t.Run("returns all scan reports newest first", func(t *testing.T) {
		// Save reports with growing profile counts so order is observable
		for i := range 3 {
			report := testReport("eve", model.ModeEmail, []string{"GitHub", "GitLab", "Mastodon"}[:i+1]...)
			if err := db.SaveScanReport(ctx, report); err != nil {
				t.Fatalf("failed to save report %d: %v", i, err)
			}
			// Small delay to ensure different timestamps
			time.Sleep(10 * time.Millisecond)
		}

		history, err := db.GetScanHistory(ctx, "eve")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(history))
		}

		// Newest first: 3, 2, 1 profiles
		for i, want := range []int{3, 2, 1} {
			if got := len(history[i].Profiles); got != want {
				t.Errorf("history[%d]: expected %d profiles, got %d", i, want, got)
			}
		}

		// Verify all reports are for the correct identifier
		for _, report := range history {
			if len(report.Identifiers) != 1 || report.Identifiers[0] != "eve" {
				t.Errorf("expected identifier 'eve', got %v", report.Identifiers)
			}
		}
	})
}

// TestGetScanHistoryWithMetadata tests retrieval of scan history metadata.
func TestGetScanHistoryWithMetadata(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("returns empty list for non-existent identifier", func(t *testing.T) {
		history, err := db.GetScanHistoryWithMetadata(ctx, "never-scanned")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("expected empty history, got %d records", len(history))
		}
	})

	t.Run("returns metadata for all scans", func(t *testing.T) {
		for i := range 3 {
			report := testReport("frank", model.ModeUsername, []string{"GitHub", "GitLab", "Mastodon"}[:i+1]...)
			if err := db.SaveScanReport(ctx, report); err != nil {
				t.Fatalf("failed to save report %d: %v", i, err)
			}
			time.Sleep(10 * time.Millisecond)
		}

		history, err := db.GetScanHistoryWithMetadata(ctx, "frank")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 records, got %d", len(history))
		}

		// Verify metadata fields are populated
		for _, meta := range history {
			if meta.ID == 0 {
				t.Error("expected non-zero ID")
			}
			if meta.Identifier != "frank" {
				t.Errorf("expected 'frank', got %q", meta.Identifier)
			}
			if meta.Mode != model.ModeUsername {
				t.Errorf("expected mode %q, got %q", model.ModeUsername, meta.Mode)
			}
			if meta.Timestamp.IsZero() {
				t.Error("expected non-zero timestamp")
			}
			if meta.FoundCount == 0 {
				t.Error("expected non-zero found count")
			}
			if len(meta.Networks) == 0 {
				t.Error("expected non-empty networks")
			}
		}

		// Newest first: found counts 3, 2, 1
		for i, want := range []int{3, 2, 1} {
			if history[i].FoundCount != want {
				t.Errorf("history[%d]: expected found count %d, got %d", i, want, history[i].FoundCount)
			}
		}
	})
}

// TestParseTimestamp tests timestamp parsing across SQLite output formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "sqlite default", input: "2026-08-25 10:30:00", zero: false},
		{name: "iso8601 with Z", input: "2026-08-25T10:30:00Z", zero: false},
		{name: "rfc3339", input: "2026-08-25T10:30:00+09:00", zero: false},
		{name: "garbage", input: "not-a-timestamp", zero: true},
		{name: "empty", input: "", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) zero = %v, want %v", tt.input, got.IsZero(), tt.zero)
			}
		})
	}
}
