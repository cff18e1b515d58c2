// Package aggregate merges agent results into a report and derives the
// gate decision.
package aggregate
