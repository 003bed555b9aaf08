// Package database provides SQLite-based storage for idscan.
//
// This package implements the ScanDB, which stores:
//   - Scan reports, one row per (run, identifier)
//   - Compact found-profile summaries for history listings
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
//
// Scan history is what makes the compare command possible: two saved scans
// of the same identifier can be diffed to show where a presence appeared
// or disappeared between runs.
package database
