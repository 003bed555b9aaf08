// Package probe implements the bounded-concurrency presence engine: it
// turns a filtered catalog and a list of identifiers into the profile
// records of confirmed matches.
//
// The engine builds the full cross product of sites and identifiers,
// admits at most a configured number of probes in flight, classifies
// every response with the site's declarative match rule, and extracts
// page metadata from positive matches. Transport failures and negative
// verdicts produce no record and never abort sibling probes.
//
// Design decision: Each probe yields an explicit TaskResult rather than
// silently swallowing failures because:
//  1. Tests can distinguish "not registered" from "site unreachable"
//  2. The runner can log failure reasons without surfacing errors
//  3. The found/not-found/failed split keeps classification honest
//
// The concurrency ceiling is enforced globally with errgroup.SetLimit,
// not per site or per identifier. A slow site occupies one slot until
// the client's timeout fires; it cannot stall the rest of the pool.
package probe
