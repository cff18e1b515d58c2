// Package gitctx extracts immutable diff facts from a git repository.
//
// [Normalizer.Normalize] is the first pipeline stage. For a range
// base...branch it issues four queries through a [Runner]: numstat line
// deltas, name-status with rename detection, a NUL-separated commit log,
// and the raw unified diff. The name-status report is authoritative for the
// file list because it carries resolved paths for renames; numstat rows are
// matched by exact path and then by resolving rename shorthand such as
// lib/{old.ts => new.ts}.
//
// Failures are reported as [RangeError], whose message names only the diff
// range. [ScopeDiff] narrows a raw diff to a subset of files for a single
// reviewer agent.
package gitctx
