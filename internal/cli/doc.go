// Package cli wires together the Cobra command tree for the tribunal binary.
//
// It defines the root command and all subcommands (review, catalog, config,
// cache, hook, version), binds flags, reads configuration, builds the review
// pipeline, and returns deterministic exit codes for CI gating.
package cli
