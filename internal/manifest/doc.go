// Package manifest holds the merge operation shared by composition and gap
// detection for combining agent manifest entries.
package manifest
