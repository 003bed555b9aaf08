package probe

import (
	"net/http"
	"strings"

	"github.com/nao1215/idscan/internal/catalog"
)

// Decide renders the existence verdict for one probe response. The
// catalog dialect picks the matching scheme: site-list entries carry a
// condition pair and are evaluated as a single four-way conjunction,
// manifest entries walk the rule-kind precedence in Classify. The two
// schemes are never combined.
func Decide(site *catalog.SiteDefinition, outcome Outcome) bool {
	if site.Rule.Conditions != nil {
		return classifyConditions(*site.Rule.Conditions, outcome)
	}
	return Classify(site.Rule, outcome)
}

// Classify applies a manifest match rule to a probe response.
//
// The rule kinds are tried in fixed precedence order, first applicable
// wins: response_url, then status_code, then message. A rule with no
// usable marker data falls back to "success status means exists". The
// precedence must not be reordered; real catalogs declare several kinds
// on one entry and rely on this order.
func Classify(rule catalog.MatchRule, outcome Outcome) bool {
	success := successStatus(outcome.StatusCode)

	if rule.HasKind(catalog.RuleResponseURL) {
		return success
	}

	if rule.HasKind(catalog.RuleStatusCode) {
		if !success {
			return false
		}
		for _, code := range rule.NotFoundCodes {
			if code == outcome.StatusCode {
				return false
			}
		}
		return true
	}

	// A message rule without markers has no usable data and falls
	// through to the conservative default.
	if rule.HasKind(catalog.RuleMessage) && len(rule.AbsenceMarkers) > 0 {
		for _, marker := range rule.AbsenceMarkers {
			if marker != "" && strings.Contains(outcome.Body, marker) {
				return false
			}
		}
		return true
	}

	return success
}

// classifyConditions applies the site-list scheme: the observed status
// must equal the expected one, the expected substring must be present,
// and neither false-positive marker may fire. Evaluated as one boolean,
// no precedence involved.
func classifyConditions(pair catalog.ConditionPair, outcome Outcome) bool {
	if outcome.StatusCode != pair.ExpectedStatus {
		return false
	}
	if !strings.Contains(outcome.Body, pair.ExpectedBody) {
		return false
	}
	if pair.MissStatus != 0 && outcome.StatusCode == pair.MissStatus {
		return false
	}
	if pair.MissBody != "" && strings.Contains(outcome.Body, pair.MissBody) {
		return false
	}
	return true
}

// successStatus reports whether the status falls in [200, 300).
func successStatus(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
