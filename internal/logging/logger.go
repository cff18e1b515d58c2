package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels accepted by New.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Logger writes structured entries. It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	out    *output
	attrs  []slog.Attr
}

// output is shared by a logger and all of its children.
type output struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a Logger writing JSON lines to path, or to stderr if path is
// empty. Unknown levels fall back to INFO.
func New(path, level string) (*Logger, error) {
	var w io.Writer = os.Stderr
	out := &output{}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out.file = f
		w = f
	}
	return newLogger(w, level, out), nil
}

// NewWriter creates a Logger writing JSON lines to w.
func NewWriter(w io.Writer, level string) *Logger {
	return newLogger(w, level, &output{})
}

func newLogger(w io.Writer, level string, out *output) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{logger: slog.New(handler), out: out}
}

// NopLogger returns a Logger that discards all output.
func NopLogger() *Logger {
	return NewWriter(io.Discard, LevelError)
}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevels returns the accepted level names.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// IsValidLevel reports whether level names a known level, ignoring case.
func IsValidLevel(level string) bool {
	for _, l := range ValidLevels() {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}

// WithRun returns a child logger tagged with the pipeline run id.
func (l *Logger) WithRun(runID string) *Logger {
	return l.with(slog.String("run_id", runID))
}

// WithStage returns a child logger tagged with a pipeline stage name.
func (l *Logger) WithStage(stage string) *Logger {
	return l.with(slog.String("stage", stage))
}

// WithAgent returns a child logger tagged with a reviewer agent id.
func (l *Logger) WithAgent(agentID string) *Logger {
	return l.with(slog.String("agent", agentID))
}

// With returns a child logger with alternating key/value attributes.
// Non-string keys are skipped.
func (l *Logger) With(args ...any) *Logger {
	var attrs []slog.Attr
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return l.with(attrs...)
}

func (l *Logger) with(attrs ...slog.Attr) *Logger {
	if len(attrs) == 0 {
		return l
	}
	merged := make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	merged = append(merged, l.attrs...)
	merged = append(merged, attrs...)
	return &Logger{logger: l.logger, out: l.out, attrs: merged}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	all := make([]any, 0, len(l.attrs)+len(args))
	for _, a := range l.attrs {
		all = append(all, a)
	}
	all = append(all, args...)
	l.logger.Log(context.Background(), level, msg, all...)
}

// Close syncs and closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.file == nil {
		return nil
	}
	if err := l.out.file.Sync(); err != nil {
		return fmt.Errorf("syncing log file: %w", err)
	}
	err := l.out.file.Close()
	l.out.file = nil
	return err
}
