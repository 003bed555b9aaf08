// Package htmlmeta extracts generic page metadata from probe responses.
//
// The extractor is deliberately site-agnostic: it reads the three signals
// every profile page can carry (title tag, description meta tag, social
// preview image) and nothing else. It is the one piece of HTML inspection
// shared by all probing modes.
//
// Design decision: We use golang.org/x/net/html rather than regex because
// it correctly handles the malformed HTML common on the web and never
// fails on arbitrary input, which matches the extractor's best-effort
// contract: empty results, never errors.
package htmlmeta
