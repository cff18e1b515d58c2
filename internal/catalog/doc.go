// Package catalog is the read-only configuration provider for the review
// pipeline.
//
// A catalog holds four collections: review rules, composition policies,
// the reviewer agent registry, and domain-to-glob mappings. They are loaded
// once from YAML (a directory or the embedded default catalog), validated
// as a whole, and frozen into a [Catalog] whose accessors return copies.
// Domain globs and content-trigger regular expressions are compiled at load
// time so that composition never fails on a bad pattern.
//
// There is no reload; a new process picks up changed files.
package catalog
