package probe

import (
	"github.com/nao1215/idscan/internal/catalog"
	"github.com/nao1215/idscan/internal/model"
)

// Outcome is the raw result of one HTTP probe before classification.
// It is ephemeral: the engine discards it once the verdict is rendered.
type Outcome struct {
	// StatusCode is the final HTTP status after redirects.
	StatusCode int

	// FinalURL is the request URL after redirects.
	FinalURL string

	// Body is the response body, capped at the prober's size limit.
	// Empty for HEAD probes.
	Body string
}

// Verdict is the per-task classification of one (site, identifier) pair.
type Verdict int

const (
	// VerdictNotFound means the site answered and the rule decided the
	// identifier is not registered there.
	VerdictNotFound Verdict = iota
	// VerdictFound means the rule confirmed a registered presence.
	VerdictFound
	// VerdictTransportFailure means the probe never produced a usable
	// response: timeout, connection error, or unreadable body.
	VerdictTransportFailure
)

// String returns the verdict name for logs.
func (v Verdict) String() string {
	switch v {
	case VerdictFound:
		return "found"
	case VerdictNotFound:
		return "not_found"
	case VerdictTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// TaskResult is the outcome of one probe task. Only found results carry
// a record; only transport failures carry a reason. The runner discards
// everything except found records, but the split lets tests and logs
// tell a dead site apart from a clean miss.
type TaskResult struct {
	// Site is the catalog entry that was probed.
	Site catalog.SiteDefinition

	// Identifier is the username or email that was probed.
	Identifier model.Identifier

	// Verdict classifies the task.
	Verdict Verdict

	// Record is the profile record, set only for VerdictFound.
	Record *model.ProfileRecord

	// FailureReason describes the transport error, set only for
	// VerdictTransportFailure.
	FailureReason string
}

// Found reports whether the task confirmed a presence.
func (t TaskResult) Found() bool {
	return t.Verdict == VerdictFound && t.Record != nil
}
