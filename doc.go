// Package filterengine implements the core of an Adblock Plus style request
// filtering engine: it parses ABP filter list lines into compiled match
// programs, indexes them by applicable domain, and tests inbound HTTP
// requests against the stored rules.
//
// The package does not perform file I/O, CSS rewriting, or CLI/benchmark
// plumbing; those are left to callers. See internal/store for the
// domain-indexed rule store and its lookup cache.
package filterengine
