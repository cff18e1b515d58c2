// Package output renders a review run for display or machine consumption.
//
// Four formats are supported:
//   - text: terminal tables (default)
//   - json: the report and gate decision as structured JSON
//   - markdown: PR-comment-friendly with collapsible sections per severity
//   - sarif: SARIF v2.1.0 for upload to code scanning tools
//
// Use [GetWriter] to obtain a [Writer] for a format string, then call
// [Writer.Write] with an [io.Writer] and a [Document]. [WriteReport] picks
// a file or stdout as the destination.
package output
