package aggregate

import (
	"log/slog"

	"github.com/nao1215/idscan/internal/model"
)

// Aggregator combines deduplication and the strict filter into one
// post-processing pass over probe records.
type Aggregator struct {
	// dedupe collapses (slug, identifier, URL) duplicates. On by default.
	dedupe bool

	// strict enables the false-positive filter. Off by default.
	strict bool

	// denyList holds network slugs whose manifest hits carry no signal.
	denyList map[string]struct{}

	// fragments are lowercase substrings that mark a final URL as a
	// non-profile surface.
	fragments []string

	// logger is used for drop logging.
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDedupe toggles deduplication. On by default; disabling it is
// mainly useful for debugging catalog overlap.
func WithDedupe(enabled bool) Option {
	return func(a *Aggregator) {
		a.dedupe = enabled
	}
}

// WithStrict toggles the false-positive filter.
func WithStrict(enabled bool) Option {
	return func(a *Aggregator) {
		a.strict = enabled
	}
}

// WithDenyList replaces the default deny-list with the given network
// slugs. An empty list disables deny-list dropping entirely.
func WithDenyList(slugs []string) Option {
	return func(a *Aggregator) {
		a.denyList = make(map[string]struct{}, len(slugs))
		for _, slug := range slugs {
			a.denyList[model.NetworkSlug(slug)] = struct{}{}
		}
	}
}

// WithSuspiciousFragments replaces the default suspicious-URL fragment
// list. An empty list disables fragment dropping entirely.
func WithSuspiciousFragments(fragments []string) Option {
	return func(a *Aggregator) {
		a.fragments = normalizeFragments(fragments)
	}
}

// WithLogger sets a custom logger for drop logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator creates an aggregator with deduplication on, the
// strict filter off, and the package default strict lists.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{dedupe: true}

	for _, opt := range opts {
		opt(a)
	}

	if a.denyList == nil {
		WithDenyList(DefaultDenyList)(a)
	}
	if a.fragments == nil {
		a.fragments = normalizeFragments(DefaultSuspiciousFragments)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	return a
}

// Result is the outcome of one aggregation pass. The drop counts feed
// the scan report so users can see how much the filters removed.
type Result struct {
	// Records are the surviving records, in input order.
	Records []*model.ProfileRecord

	// DedupeDropped counts records removed as duplicates.
	DedupeDropped int

	// StrictDropped counts records removed by the strict filter.
	StrictDropped int
}

// Aggregate deduplicates and, when enabled, strict-filters the given
// records. identifiers are the raw probe targets; the strict filter
// uses them as evidence that a suspicious hit is real. The input slice
// is never modified.
func (a *Aggregator) Aggregate(records []*model.ProfileRecord, identifiers []string) Result {
	result := Result{Records: records}

	if a.dedupe {
		result.Records, result.DedupeDropped = a.dedupeRecords(result.Records)
	}
	if a.strict {
		result.Records, result.StrictDropped = a.strictFilter(result.Records, identifiers)
	}

	return result
}

// dedupeKey identifies one logical match across catalog modes.
type dedupeKey struct {
	slug       string
	identifier string
	sourceURL  string
}

// dedupeRecords drops later records that repeat an already-seen key.
// First occurrence wins, keeping its metadata intact.
func (a *Aggregator) dedupeRecords(records []*model.ProfileRecord) ([]*model.ProfileRecord, int) {
	seen := make(map[dedupeKey]struct{}, len(records))
	kept := make([]*model.ProfileRecord, 0, len(records))

	for _, record := range records {
		key := dedupeKey{
			slug:       record.NetworkSlug,
			identifier: record.Identifier,
			sourceURL:  record.SourceURL,
		}
		if _, ok := seen[key]; ok {
			a.logger.Debug("duplicate record dropped",
				"network", record.NetworkSlug,
				"identifier", record.Identifier,
			)
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, record)
	}

	return kept, len(records) - len(kept)
}
