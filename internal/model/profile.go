package model

import (
	"strings"
	"unicode"
)

// Metadata keys shared by the probe engine, the strict filter, and the
// report writers. Catalog loaders attach dialect-specific keys on top of
// these; the engine guarantees source, site_name, status_code, and
// final_url are always present.
const (
	// MetaSource identifies which catalog mode produced the record.
	MetaSource = "source"
	// MetaSiteName is the catalog display name of the site.
	MetaSiteName = "site_name"
	// MetaStatusCode is the final HTTP status of the probe.
	MetaStatusCode = "status_code"
	// MetaFinalURL is the URL after following redirects.
	MetaFinalURL = "final_url"
	// MetaURLMain is the site's main page URL (manifest dialect only).
	MetaURLMain = "url_main"
	// MetaErrorType lists the manifest match-rule kinds that applied.
	MetaErrorType = "error_type"
	// MetaCategory is the site category (site-list dialect only).
	MetaCategory = "category"
	// MetaInputOperation names the transform applied to the identifier
	// before substitution (email lists only).
	MetaInputOperation = "input_operation"
	// MetaTitle is the extracted page title.
	MetaTitle = "title"
	// MetaDescription is the extracted description meta tag.
	MetaDescription = "meta_description"
	// MetaOGImage is the extracted social preview image URL.
	MetaOGImage = "og_image"
)

// Values for the MetaSource metadata key.
const (
	// SourceManifest marks records produced by the manifest dialect
	// (Sherlock-style data.json catalogs). The strict filter applies
	// only to these records.
	SourceManifest = "manifest"
	// SourceSiteList marks records produced by username site-list
	// catalogs (WhatsMyName-style).
	SourceSiteList = "site_list"
	// SourceEmailSiteList marks records produced by email site-list
	// catalogs.
	SourceEmailSiteList = "email_site_list"
)

// slugMaxLength caps the derived network slug.
// Long enough to keep real site names unique, short enough for use in
// file names and database keys.
const slugMaxLength = 60

// slugFallback is used when a site name reduces to nothing.
const slugFallback = "site"

// NetworkSlug derives the canonical network key from a catalog site name.
// The name is lower-cased, '-' and '_' are kept, and every other run of
// non-alphanumeric characters collapses to a single '-'. The result is
// trimmed of leading and trailing '-' and truncated to 60 characters.
// Empty input yields "site".
func NetworkSlug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r), r == '-', r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if runes := []rune(slug); len(runes) > slugMaxLength {
		slug = string(runes[:slugMaxLength])
	}
	if slug == "" {
		return slugFallback
	}
	return slug
}

// ProfileRecord is a confirmed presence of an identifier on one site.
// It is the engine's sole output unit: negative and failed probes are
// never materialized as records. Records are created by the probe engine
// on a positive match verdict and are immutable once emitted.
type ProfileRecord struct {
	// SourceURL is the profile URL after following redirects.
	SourceURL string `json:"source_url"`

	// Identifier is the username or email that matched.
	Identifier string `json:"identifier"`

	// NetworkSlug is the canonical key of the site, derived from its
	// catalog name via NetworkSlug.
	NetworkSlug string `json:"network_slug"`

	// Exists is always true. It is serialized so downstream consumers
	// reading stored records do not need to know the engine only emits
	// positive matches.
	Exists bool `json:"exists"`

	// Metadata carries probe context and extracted page metadata.
	// See the Meta* key constants.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Bio is the extracted description meta tag, when present.
	Bio string `json:"bio,omitempty"`

	// ImageURL is the extracted social preview image URL, when present.
	ImageURL string `json:"image_url,omitempty"`
}

// NewProfileRecord creates a positive-match record for the given site.
// The network slug is derived from siteName; metadata starts with the
// guaranteed keys and callers add dialect-specific entries.
func NewProfileRecord(sourceURL, identifier, siteName string) *ProfileRecord {
	return &ProfileRecord{
		SourceURL:   sourceURL,
		Identifier:  identifier,
		NetworkSlug: NetworkSlug(siteName),
		Exists:      true,
		Metadata: map[string]any{
			MetaSiteName: siteName,
			MetaFinalURL: sourceURL,
		},
	}
}

// Source returns the record's catalog mode, or an empty string when the
// metadata is missing it.
func (p *ProfileRecord) Source() string {
	return p.MetaString(MetaSource)
}

// SiteName returns the catalog display name of the site that matched.
func (p *ProfileRecord) SiteName() string {
	return p.MetaString(MetaSiteName)
}

// MetaString returns the metadata value for key when it is a string,
// otherwise an empty string. Metadata loaded back from JSON storage may
// hold float64 or []any values for other keys; string access is the
// common case for the strict filter and the writers.
func (p *ProfileRecord) MetaString(key string) string {
	if p.Metadata == nil {
		return ""
	}
	if s, ok := p.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// StatusCode returns the probe's final HTTP status, or zero when absent.
// Handles both the in-memory int and the float64 produced by JSON
// round-trips through the database.
func (p *ProfileRecord) StatusCode() int {
	if p.Metadata == nil {
		return 0
	}
	switch v := p.Metadata[MetaStatusCode].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
