package catalog

import "errors"

// Catalog loading errors.
//
// Design decision: We use package-level sentinel errors so callers can
// use errors.Is() to distinguish a missing catalog file from a corrupt
// one. Per-entry problems inside a readable catalog are never errors;
// those entries are skipped.
var (
	// ErrCatalogNotFound is returned when the catalog file does not exist.
	ErrCatalogNotFound = errors.New("catalog file not found")

	// ErrInvalidCatalog is returned when the catalog file cannot be parsed
	// as either dialect.
	ErrInvalidCatalog = errors.New("invalid catalog format")
)
