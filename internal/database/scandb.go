package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/idscan/internal/model"
)

// ScanDB provides SQLite-based storage for scan reports.
// It manages connection pooling and provides methods for saving runs
// and querying per-identifier scan history.
//
// Design decision: We store one row per (run, identifier) rather than one
// row per run. The unit of history users care about is the identifier, and
// per-identifier rows make "latest two scans of alice" a plain indexed
// query instead of JSON digging.
type ScanDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ScanDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ScanDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, "idscan.db")

	// Check if we should create the database or require it to exist
	if !opts.CreateIfNotExists {
		// Check if database file exists
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{
		db:     db,
		dbPath: dbPath,
	}

	// Enable WAL mode if requested
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Create tables
	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (sdb *ScanDB) createTables() error {
	schema := `
	-- Scan reports store one row per (run, identifier).
	-- report_json holds the run report narrowed to that identifier.
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identifier TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT 'username',
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		found_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_identifier ON scan_reports(identifier);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// foundSummary is the compact per-row digest stored alongside the report.
// It lets history listings and comparisons avoid parsing full report JSON.
type foundSummary struct {
	Found    int      `json:"found"`
	Networks []string `json:"networks"`
}

// SaveScanReport saves a run report, one row per identifier in the run.
// Each row carries the report narrowed to that identifier so that history
// queries for one identifier never surface another identifier's profiles.
func (sdb *ScanDB) SaveScanReport(ctx context.Context, report *model.ScanReport) error {
	if len(report.Identifiers) == 0 {
		return nil
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
	INSERT INTO scan_reports (identifier, mode, report_json, found_summary)
	VALUES (?, ?, ?, ?)
	`

	for _, identifier := range report.Identifiers {
		narrowed := narrowReport(report, identifier)

		reportJSON, err := json.Marshal(narrowed)
		if err != nil {
			return fmt.Errorf("failed to serialize report: %w", err)
		}

		summary := foundSummary{
			Found:    len(narrowed.Profiles),
			Networks: narrowed.Networks(),
		}
		summaryJSON, _ := json.Marshal(summary) //nolint:errcheck,errchkjson // plain struct; Marshal won't fail

		if _, err := tx.ExecContext(ctx, query,
			identifier,
			string(narrowed.Mode),
			string(reportJSON),
			string(summaryJSON),
		); err != nil {
			return fmt.Errorf("failed to save scan report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan report: %w", err)
	}
	return nil
}

// narrowReport returns a copy of the report containing only the given
// identifier and its profiles. Run-level counters are kept as-is since
// they describe the run, not the identifier.
func narrowReport(report *model.ScanReport, identifier string) *model.ScanReport {
	narrowed := *report
	narrowed.Identifiers = []string{identifier}
	narrowed.Profiles = report.ProfilesFor(identifier)
	if narrowed.Profiles == nil {
		narrowed.Profiles = []*model.ProfileRecord{}
	}
	return &narrowed
}

// GetLatestScanReport retrieves the most recent scan report for an identifier.
// Returns nil without error when the identifier has never been scanned.
func (sdb *ScanDB) GetLatestScanReport(ctx context.Context, identifier string) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE identifier = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, identifier).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetScanReportByID retrieves a single scan report by its row ID.
// Returns nil without error when no row has that ID. The compare command
// uses this to diff against a specific historical scan.
func (sdb *ScanDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE id = ?
	`

	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListScannedIdentifiers returns a list of all identifiers with saved scans.
func (sdb *ScanDB) ListScannedIdentifiers(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT identifier FROM scan_reports
	ORDER BY identifier
	`

	rows, err := sdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifiers: %w", err)
	}
	defer rows.Close()

	var identifiers []string
	for rows.Next() {
		var identifier string
		if err := rows.Scan(&identifier); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		identifiers = append(identifiers, identifier)
	}

	return identifiers, rows.Err()
}

// GetScanHistory retrieves all scan reports for an identifier, newest first.
func (sdb *ScanDB) GetScanHistory(ctx context.Context, identifier string) ([]*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE identifier = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.ScanReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// ScanReportMetadata contains summary information about a saved scan.
// This is used for displaying scan history without loading full reports.
type ScanReportMetadata struct {
	// ID is the unique identifier of the scan report in the database.
	ID int64

	// Identifier is the scanned username or email.
	Identifier string

	// Mode is the identifier family of the run.
	Mode model.ScanMode

	// Timestamp is when the scan was saved.
	Timestamp time.Time

	// FoundCount is how many profiles the scan confirmed.
	FoundCount int

	// Networks are the network slugs with confirmed profiles.
	Networks []string
}

// GetScanHistoryWithMetadata retrieves scan metadata for an identifier,
// newest first. This is more efficient than GetScanHistory when only the
// summary is needed.
func (sdb *ScanDB) GetScanHistoryWithMetadata(ctx context.Context, identifier string) ([]ScanReportMetadata, error) {
	query := `
	SELECT id, identifier, mode, timestamp, found_summary
	FROM scan_reports
	WHERE identifier = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var meta ScanReportMetadata
		var mode string
		var timestamp string
		var summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Identifier, &mode, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Mode = model.ScanMode(mode)

		// Parse timestamp
		meta.Timestamp = parseTimestamp(timestamp)

		// Parse found summary
		if summaryJSON.Valid && summaryJSON.String != "" {
			var summary foundSummary
			if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err == nil {
				meta.FoundCount = summary.Found
				meta.Networks = summary.Networks
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
