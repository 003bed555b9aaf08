// Package tor provides SOCKS5 proxy connectivity for probe traffic.
//
// This package builds HTTP clients that route probes through the Tor
// network or any external SOCKS5 proxy. It handles connection management,
// proxy status verification, and embedded Tor daemon lifecycle via the
// tornago library.
//
// Design decision: We use tornago for daemon management instead of
// requiring a system Tor installation because it provides a well-tested,
// maintained implementation and lets the --tor flag work without setup.
//
// The package is designed to be used with dependency injection - create a
// Client and pass its HTTP client to components that probe sites rather
// than using global state.
package tor
