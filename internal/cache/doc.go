// Package cache defines the blob store that holds the last successfully
// normalized release document. A store maps a flat key (a single file name)
// to a whole blob plus its modification time; callers decide freshness from
// that time. The disk implementation writes through a temp file + rename so a
// concurrent reader observes either the previous or the new blob, and
// concurrent writers simply race with last-writer-wins semantics. The
// in-memory implementation backs resolver tests.
package cache
