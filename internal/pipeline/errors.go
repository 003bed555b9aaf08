package pipeline

import "errors"

// ErrNoCatalog is returned by the catalog step when no catalog entries
// survive loading and filtering, leaving nothing to probe. This usually
// means the catalog files are not installed yet or the category filter
// matched nothing.
var ErrNoCatalog = errors.New("no catalog entries to probe: check catalog paths and filters, or run 'idscan init'")
