// Package classify provides the default heuristic classifier used by the
// CLI. It derives domains from catalog globs, a risk score from change size
// and domain sensitivity, a change type from conventional commit prefixes,
// and a scope from top-level directories.
package classify
