// Package transform applies the named input operations email catalogs
// declare for an entry. Some services index accounts by a derived form
// of the address (Gravatar by MD5 hash, others by lower-cased or
// URL-encoded values), so the raw identifier is transformed once before
// template substitution.
//
// Unknown operation names are the identity transform: a catalog entry
// with a typo still probes with the raw identifier rather than failing,
// matching how malformed rule data degrades elsewhere.
package transform
