package aggregate

import (
	"strings"

	"github.com/nao1215/idscan/internal/model"
)

// DefaultDenyList names manifest networks whose match rules misfire
// often enough that a bare hit carries no signal on its own, mostly
// login-walled giants that answer every profile URL with a redirect.
// Values are matched as network slugs.
var DefaultDenyList = []string{
	"facebook",
	"instagram",
	"linkedin",
	"pinterest",
	"tiktok",
}

// DefaultSuspiciousFragments flags final URLs that landed on an auth,
// consent, search, or redirect surface instead of a profile page.
// Matched case-insensitively as substrings of the final URL.
var DefaultSuspiciousFragments = []string{
	"/login",
	"/signin",
	"/sign-in",
	"/signup",
	"/sign-up",
	"/accounts/login",
	"/consent",
	"/captcha",
	"/challenge",
	"/search",
	"redirect",
	"return_to",
	"returnurl",
	"next=",
}

// strictFilter drops manifest-sourced records that look like false
// positives. A record survives when it is not manifest-sourced, when
// neither the deny-list nor a suspicious fragment fires, or when the
// identifier itself shows up in the final URL, title, or description.
func (a *Aggregator) strictFilter(records []*model.ProfileRecord, identifiers []string) ([]*model.ProfileRecord, int) {
	lowered := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		if id != "" {
			lowered = append(lowered, strings.ToLower(id))
		}
	}

	kept := make([]*model.ProfileRecord, 0, len(records))
	for _, record := range records {
		if a.keepStrict(record, lowered) {
			kept = append(kept, record)
			continue
		}
		a.logger.Debug("strict filter dropped record",
			"network", record.NetworkSlug,
			"identifier", record.Identifier,
			"url", record.SourceURL,
		)
	}

	return kept, len(records) - len(kept)
}

// keepStrict decides one record. The filter is deny-biased: records
// with no suspicious markers are kept even without identifier evidence.
func (a *Aggregator) keepStrict(record *model.ProfileRecord, loweredIDs []string) bool {
	if record.Source() != model.SourceManifest {
		return true
	}

	_, denied := a.denyList[record.NetworkSlug]
	if !denied && !a.suspiciousURL(record.SourceURL) {
		return true
	}

	return hasIdentifierEvidence(record, loweredIDs)
}

// suspiciousURL reports whether the final URL contains any configured
// fragment.
func (a *Aggregator) suspiciousURL(url string) bool {
	lowered := strings.ToLower(url)
	for _, fragment := range a.fragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

// hasIdentifierEvidence reports whether any probed identifier appears
// in the record's final URL, extracted title, or description. Matching
// is case-insensitive.
func hasIdentifierEvidence(record *model.ProfileRecord, loweredIDs []string) bool {
	haystacks := []string{
		strings.ToLower(record.SourceURL),
		strings.ToLower(record.MetaString(model.MetaTitle)),
		strings.ToLower(record.MetaString(model.MetaDescription)),
	}

	for _, id := range loweredIDs {
		for _, haystack := range haystacks {
			if haystack != "" && strings.Contains(haystack, id) {
				return true
			}
		}
	}
	return false
}

// normalizeFragments lower-cases the fragment list once so per-record
// checks stay cheap.
func normalizeFragments(fragments []string) []string {
	normalized := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if fragment == "" {
			continue
		}
		normalized = append(normalized, strings.ToLower(fragment))
	}
	return normalized
}
