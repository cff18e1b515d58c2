// Tribunal is a multi-agent code review orchestrator.
//
// It normalizes the diff between a branch and its base, classifies the
// change, composes a manifest of specialized reviewer agents from a rule
// catalog, dispatches them concurrently, and aggregates their findings into
// a report and a gate decision with deterministic exit codes.
//
// Usage:
//
//	tribunal review feature/billing         # review against the configured base
//	tribunal review HEAD --base develop      # review the current branch
//	tribunal review HEAD --pr 42             # also publish to pull request #42
//	tribunal catalog show policies           # inspect the catalog
//	tribunal hook install                    # gate pushes on review findings
//
// See https://github.com/dshills/tribunal for full documentation.
package main
