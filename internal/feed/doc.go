// Package feed resolves the public release document for one repository.
//
// Resolution walks an ordered list of providers and returns the first
// document one of them yields:
//
//	fresh_cache -> primary -> latest -> stale_cache -> static
//
// Only the primary provider writes the cache. Every provider failure is
// classified with one of the sentinel errors in errors.go and simply advances
// the chain; the static provider cannot fail, so Resolve always returns a
// non-empty JSON list.
package feed
