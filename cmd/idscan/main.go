// Package main provides the entry point for the idscan CLI.
//
// idscan checks whether usernames and email addresses are registered
// across hundreds of public sites, using declarative site catalogs to
// decide where to look and how to read the answer.
//
// Usage:
//
//	idscan scan <username>
//	idscan email <email-address>
//
// See --help for all available options.
package main

// main is the entry point for idscan.
func main() {
	Execute()
}
