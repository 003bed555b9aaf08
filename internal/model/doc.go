// Package model defines the core data structures used throughout idscan.
//
// This package contains the following main types:
//   - Identifier: A validated username or email being checked for presence
//   - ProfileRecord: A confirmed presence of an identifier on one site
//   - ScanReport: The run-level aggregate passed between pipeline steps
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (catalog, probe, aggregate, report, database)
// need to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
