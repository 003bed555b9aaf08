package catalog

import (
	"net/http"
	"strings"
)

// Placeholders recognized in URL and body templates. The manifest dialect
// uses "{}", the site-list dialect uses "{account}". A template containing
// neither is returned unchanged.
const (
	placeholderBrace   = "{}"
	placeholderAccount = "{account}"
)

// RuleKind enumerates the manifest dialect's match-rule kinds.
type RuleKind string

const (
	// RuleStatusCode infers existence from the HTTP status and a set of
	// known not-found codes.
	RuleStatusCode RuleKind = "status_code"
	// RuleMessage infers existence from the absence of marker strings in
	// the response body.
	RuleMessage RuleKind = "message"
	// RuleResponseURL infers existence purely from the final status
	// falling in the success range, used when redirects are the signal.
	RuleResponseURL RuleKind = "response_url"
)

// ConditionPair is the site-list dialect's matching scheme: a single
// four-condition boolean over expected and false-positive markers.
// MissStatus zero and MissBody empty mean the marker is unset.
type ConditionPair struct {
	// ExpectedStatus must equal the observed status.
	ExpectedStatus int
	// ExpectedBody must occur in the response body.
	ExpectedBody string
	// MissStatus, when set, must NOT equal the observed status.
	MissStatus int
	// MissBody, when set, must NOT occur in the response body.
	MissBody string
}

// MatchRule is the declarative criterion that converts a raw HTTP
// response into an existence verdict. Exactly one scheme is populated:
// manifest entries carry Kinds plus the per-kind marker data, site-list
// entries carry Conditions. The catalog dialect determines which scheme
// applies; they are never combined.
type MatchRule struct {
	// Kinds lists the declared manifest rule kinds. The classifier
	// applies them in fixed precedence order regardless of catalog
	// order: response_url, then status_code, then message.
	Kinds []RuleKind

	// NotFoundCodes is the status_code marker data: statuses that mean
	// the identifier does not exist even inside the success range.
	NotFoundCodes []int

	// AbsenceMarkers is the message marker data: strings whose absence
	// from the body means the identifier exists. The match is a
	// case-sensitive substring test; any marker present means absent.
	AbsenceMarkers []string

	// Conditions is the site-list scheme, nil for manifest entries.
	Conditions *ConditionPair
}

// HasKind reports whether the manifest rule declares the given kind.
func (r MatchRule) HasKind(kind RuleKind) bool {
	for _, k := range r.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// SiteDefinition is one entry in a catalog, constructed once at load
// time and shared read-only across all concurrent probes.
type SiteDefinition struct {
	// Name is the unique display key of the site.
	Name string

	// Source labels the catalog dialect that produced the entry, one of
	// the model.Source* values. Probe records inherit it as their source
	// metadata, which the strict filter keys on.
	Source string

	// URLTemplate is the profile URL with an identifier placeholder.
	URLTemplate string

	// HomeURL is the site's main page, display-only.
	HomeURL string

	// Method is the HTTP method, one of GET, HEAD, or POST.
	Method string

	// Headers are extra request headers, often empty.
	Headers map[string]string

	// BodyTemplate is the request body for POST probes, with the same
	// placeholder semantics as URLTemplate.
	BodyTemplate string

	// Category is the site category, empty for manifest entries.
	Category string

	// NSFW marks adult sites. Manifest entries declare it directly;
	// site-list entries infer it from the category.
	NSFW bool

	// InputOperation names the transform applied to the raw identifier
	// before substitution, empty for most entries.
	InputOperation string

	// Rule decides existence from the probe response.
	Rule MatchRule
}

// Interpolate substitutes the identifier into a template. It replaces
// every "{}" when present, otherwise every "{account}", otherwise the
// template is returned unchanged.
func Interpolate(template, identifier string) string {
	if strings.Contains(template, placeholderBrace) {
		return strings.ReplaceAll(template, placeholderBrace, identifier)
	}
	if strings.Contains(template, placeholderAccount) {
		return strings.ReplaceAll(template, placeholderAccount, identifier)
	}
	return template
}

// ProfileURL builds the probe URL for the given identifier.
func (s *SiteDefinition) ProfileURL(identifier string) string {
	return Interpolate(s.URLTemplate, identifier)
}

// RequestBody builds the request body for the given identifier, or an
// empty string when the site declares none.
func (s *SiteDefinition) RequestBody(identifier string) string {
	if s.BodyTemplate == "" {
		return ""
	}
	return Interpolate(s.BodyTemplate, identifier)
}

// normalizeMethod upper-cases a catalog method and falls back to GET for
// anything unrecognized. Only GET, HEAD, and POST are meaningful for
// presence probes.
func normalizeMethod(method string) string {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case http.MethodHead:
		return http.MethodHead
	case http.MethodPost:
		return http.MethodPost
	default:
		return http.MethodGet
	}
}

// isNSFWCategory reports whether a site-list category marks adult
// content. The convention is a case-insensitive "nsfw" substring.
func isNSFWCategory(category string) bool {
	return strings.Contains(strings.ToLower(category), "nsfw")
}
