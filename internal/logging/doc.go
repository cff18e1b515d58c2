// Package logging provides structured JSON logging for tribunal runs.
//
// It wraps log/slog. A [Logger] carries persistent attributes (run id,
// stage, agent) that are attached to every entry it writes; child loggers
// are created with [Logger.With], [Logger.WithRun], [Logger.WithStage], and
// [Logger.WithAgent] and share the parent's output.
//
// Logs go to a file when a path is configured and to stderr otherwise.
// [NopLogger] discards everything and is the default for library callers
// that pass nil.
package logging
