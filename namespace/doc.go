// Package namespace turns inventory listings into the two-level tree served
// by dockerfs and answers attribute, listing and read queries against it.
//
// The pieces, leaves first:
//   - BuildPartition: one listing source's records become top-level files
//     and subdirectory leaves, split on the first "/" of each name
//   - Gate: per-source short circuit that skips detail queries and rebuilds
//     while a listing is unchanged, and applies the query failure policy
//   - Merge: combines partitions with the README marker into an immutable,
//     versioned Namespace snapshot
//   - Namespace.Resolve and Namespace.ReadDir: path lookups
//   - Synthesizer: POSIX-style attributes derived purely from entries
//   - ReadAt: byte-range reads, only the marker carries content
package namespace
