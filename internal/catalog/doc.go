// Package catalog loads and filters declarative site catalogs.
//
// Two catalog dialects exist in the wild and both resolve to the same
// in-memory SiteDefinition shape:
//   - The manifest dialect: a JSON object mapping site names to entries
//     with declarative error markers (the format popularized by the
//     Sherlock project's data.json).
//   - The site-list dialect: a JSON array of entries with expected
//     status/substring pairs (the format used by WhatsMyName-style
//     username lists and their email-oriented variants).
//
// Design decision: Dialect parsing is isolated here so the probe engine
// only ever sees the canonical SiteDefinition/MatchRule shape. Malformed
// entries are skipped per-entry rather than failing the whole catalog;
// a catalog file that cannot be read or parsed at all is an error at
// this boundary so callers can distinguish "zero sites" from "no
// catalog".
package catalog
