package model

import "time"

// ScanSummary is a summarized, presentation-ready view of a scan.
// It extracts the confirmed profiles and run counters from the full report
// for quick review.
//
// Design decision: We create a separate summary rather than just printing
// parts of ScanReport because:
// 1. It provides a consistent, curated view of what was found
// 2. It can be serialized to JSON for tools that want structured but simple output
// 3. It separates presentation concerns from data collection
type ScanSummary struct {
	// Identifiers are the probed usernames or emails.
	Identifiers []string `json:"identifiers"`

	// Mode is the identifier family of the run.
	Mode ScanMode `json:"mode"`

	// DateScanned is when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// === Run Counters ===

	// FoundCount is the number of confirmed profiles.
	FoundCount int `json:"found_count"`

	// TotalProbes is the number of probes attempted.
	TotalProbes int `json:"total_probes"`

	// SitesProbed is the number of catalog entries that survived filtering.
	SitesProbed int `json:"sites_probed"`

	// CatalogSize is the number of catalog entries before filtering.
	CatalogSize int `json:"catalog_size"`

	// ElapsedSeconds is the wall-clock duration of the run.
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// DedupeDropped counts records removed as duplicates.
	DedupeDropped int `json:"dedupe_dropped"`

	// StrictDropped counts records removed by the strict filter.
	StrictDropped int `json:"strict_dropped"`

	// SourceCounts breaks confirmed profiles down by catalog provenance.
	SourceCounts map[string]int `json:"source_counts,omitempty"`

	// CategoryCounts breaks confirmed profiles down by site category.
	CategoryCounts map[string]int `json:"category_counts,omitempty"`

	// === Hits ===

	// Hits contains one row per confirmed profile.
	Hits []ProfileHit `json:"hits,omitempty"`

	// Interrupted indicates the run was cut short by cancellation.
	Interrupted bool `json:"interrupted"`

	// Error contains any error message if the run failed.
	Error string `json:"error,omitempty"`
}

// ProfileHit represents a single confirmed profile in the summary.
type ProfileHit struct {
	// Identifier is the username or email that matched.
	Identifier string `json:"identifier"`

	// SiteName is the catalog display name of the site.
	SiteName string `json:"site_name"`

	// NetworkSlug is the canonical key of the site.
	NetworkSlug string `json:"network_slug"`

	// URL is the confirmed profile URL.
	URL string `json:"url"`

	// Source names the catalog mode that produced the hit.
	Source string `json:"source"`

	// Category is the site category, when the catalog provides one.
	Category string `json:"category,omitempty"`

	// Bio is the extracted profile description, when present.
	Bio string `json:"bio,omitempty"`
}

// NewScanSummary creates a ScanSummary from a ScanReport.
// This extracts and flattens the confirmed profiles.
func NewScanSummary(report *ScanReport) *ScanSummary {
	summary := &ScanSummary{
		Identifiers:    report.Identifiers,
		Mode:           report.Mode,
		DateScanned:    report.StartedAt,
		FoundCount:     report.FoundCount(),
		TotalProbes:    report.TotalProbes,
		SitesProbed:    report.FilteredSize,
		CatalogSize:    report.CatalogSize,
		ElapsedSeconds: report.ElapsedSeconds,
		DedupeDropped:  report.DedupeDropped,
		StrictDropped:  report.StrictDropped,
		Interrupted:    report.Interrupted,
	}

	if report.Error != nil {
		summary.Error = report.Error.Error()
	} else if report.ErrorMessage != "" {
		summary.Error = report.ErrorMessage
	}

	if len(report.Profiles) > 0 {
		summary.SourceCounts = report.SourceCounts()
		summary.CategoryCounts = report.CategoryCounts()
	}

	for _, p := range report.Profiles {
		summary.Hits = append(summary.Hits, ProfileHit{
			Identifier:  p.Identifier,
			SiteName:    p.SiteName(),
			NetworkSlug: p.NetworkSlug,
			URL:         p.SourceURL,
			Source:      p.Source(),
			Category:    p.MetaString(MetaCategory),
			Bio:         p.Bio,
		})
	}

	return summary
}

// TotalHits returns the total number of confirmed profiles.
func (s *ScanSummary) TotalHits() int {
	return len(s.Hits)
}

// HasHits returns true if any profile was confirmed.
func (s *ScanSummary) HasHits() bool {
	return len(s.Hits) > 0
}

// HitsFor returns the hits for one identifier, in emission order.
func (s *ScanSummary) HitsFor(identifier string) []ProfileHit {
	var result []ProfileHit
	for _, h := range s.Hits {
		if h.Identifier == identifier {
			result = append(result, h)
		}
	}
	return result
}
