// Package aggregate post-processes probe records before they reach
// reporting and storage: deduplication across catalog modes and an
// optional strict filter that trims likely false positives.
//
// Deduplication collapses records sharing the same (network slug,
// identifier, source URL) triple; the first occurrence wins, so a
// record's metadata is never silently replaced by a later duplicate.
//
// The strict filter applies only to manifest-sourced records, the mode
// whose declarative rules misfire most. It is deny-biased: a record is
// dropped only when its network is on the deny-list or its final URL
// carries a suspicious fragment (login, consent, search, redirect
// markers) AND the identifier itself appears nowhere in the final URL,
// page title, or description. Both lists ship with package defaults
// and are injectable so deployments can tune them without code changes.
package aggregate
