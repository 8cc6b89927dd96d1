// Package cms implements the Compressed Metadata Store: a persistent,
// append-friendly, delta-chained archive of Microsoft Update package
// metadata.
//
// A Store moves through three lifecycle states (spec.md §3): Writing (open
// for append via the Sink methods), Sealed (committed, not yet reopened),
// and Reading (opened from disk via the Source methods). A delta archive
// holds a strong reference to its baseline archive and resolves any lookup
// that misses locally by recursing into the baseline (spec.md §4.6).
package cms
