package model

import (
	"sort"
	"time"
)

// ScanMode distinguishes username and email runs.
type ScanMode string

const (
	// ModeUsername probes username catalogs.
	ModeUsername ScanMode = "username"
	// ModeEmail probes email catalogs.
	ModeEmail ScanMode = "email"
)

// ScanReport is the run-level aggregate. The pipeline steps fill it in
// sequence: the catalog step records catalog sizes, the probe step appends
// found profiles, the aggregate step replaces them with the deduplicated
// and filtered set, and the persist step stores the whole report.
//
// Design decision: We use a single struct rather than per-step results
// to simplify serialization and database storage, mirroring how a scan
// produces one self-contained document.
type ScanReport struct {
	// Identifiers are the canonical identifier values probed in this run.
	Identifiers []string `json:"identifiers"`

	// Mode is the identifier family of the run.
	Mode ScanMode `json:"mode"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// ElapsedSeconds is the wall-clock duration of the run.
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// CatalogSize is the number of entries loaded before filtering.
	CatalogSize int `json:"catalog_size"`

	// FilteredSize is the number of entries that survived the catalog
	// filter and were actually probed.
	FilteredSize int `json:"filtered_size"`

	// TotalProbes is FilteredSize times the number of identifiers.
	TotalProbes int `json:"total_probes"`

	// Profiles are the confirmed presences found by the run.
	Profiles []*ProfileRecord `json:"profiles"`

	// DedupeDropped counts records removed as duplicates.
	DedupeDropped int `json:"dedupe_dropped"`

	// StrictDropped counts records removed by the strict filter.
	StrictDropped int `json:"strict_dropped"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Interrupted is true if the run was cut short by cancellation.
	Interrupted bool `json:"interrupted"`

	// Error contains any error that occurred during the run.
	// Only set if a step failed; probing itself never sets it.
	Error error `json:"-"` // Excluded from JSON

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewScanReport creates a report for the given identifiers and mode with
// the start time set to now.
func NewScanReport(identifiers []string, mode ScanMode) *ScanReport {
	return &ScanReport{
		Identifiers: identifiers,
		Mode:        mode,
		StartedAt:   time.Now(),
		Profiles:    []*ProfileRecord{},
	}
}

// FoundCount returns the number of confirmed profiles.
func (r *ScanReport) FoundCount() int {
	return len(r.Profiles)
}

// Networks returns the distinct network slugs with confirmed profiles,
// sorted alphabetically.
func (r *ScanReport) Networks() []string {
	seen := make(map[string]struct{}, len(r.Profiles))
	for _, p := range r.Profiles {
		seen[p.NetworkSlug] = struct{}{}
	}
	networks := make([]string, 0, len(seen))
	for slug := range seen {
		networks = append(networks, slug)
	}
	sort.Strings(networks)
	return networks
}

// SourceCounts returns how many profiles each catalog mode contributed.
// Used by the writers to break findings down by provenance.
func (r *ScanReport) SourceCounts() map[string]int {
	counts := make(map[string]int)
	for _, p := range r.Profiles {
		source := p.Source()
		if source == "" {
			source = "unknown"
		}
		counts[source]++
	}
	return counts
}

// CategoryCounts returns how many profiles fall into each site category.
// Manifest-sourced records carry no category and are grouped under
// "uncategorized".
func (r *ScanReport) CategoryCounts() map[string]int {
	counts := make(map[string]int)
	for _, p := range r.Profiles {
		category := p.MetaString(MetaCategory)
		if category == "" {
			category = "uncategorized"
		}
		counts[category]++
	}
	return counts
}

// ProfilesFor returns the confirmed profiles for one identifier, in
// emission order.
func (r *ScanReport) ProfilesFor(identifier string) []*ProfileRecord {
	var matched []*ProfileRecord
	for _, p := range r.Profiles {
		if p.Identifier == identifier {
			matched = append(matched, p)
		}
	}
	return matched
}
