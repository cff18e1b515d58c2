package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/tribunal/internal/logging"
	"github.com/dshills/tribunal/internal/review"
)

// Launcher runs one reviewer agent over its manifest entry.
type Launcher interface {
	Launch(ctx context.Context, entry review.AgentManifestEntry, facts review.PRFacts) (review.AgentResult, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, entry review.AgentManifestEntry, facts review.PRFacts) (review.AgentResult, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, entry review.AgentManifestEntry, facts review.PRFacts) (review.AgentResult, error) {
	return f(ctx, entry, facts)
}

// Dispatch starts one goroutine per entry before waiting on any of them and
// returns results in manifest order. Launch failures and panics become
// timeout or error results; they never affect sibling launches.
func Dispatch(ctx context.Context, m []review.AgentManifestEntry, facts review.PRFacts, launcher Launcher, log *logging.Logger) []review.AgentResult {
	log = logging.OrNop(log)
	results := make([]review.AgentResult, len(m))
	if len(m) == 0 {
		return results
	}

	var wg sync.WaitGroup
	for i, entry := range m {
		wg.Add(1)
		go func(i int, entry review.AgentManifestEntry) {
			defer wg.Done()
			results[i] = launchOne(ctx, entry, facts, launcher)
			r := results[i]
			alog := log.WithAgent(entry.AgentID)
			if r.Status == review.AgentSuccess {
				alog.Info("agent finished", "findings", len(r.Findings), "duration_ms", r.DurationMs)
			} else {
				alog.Warn("agent failed", "status", string(r.Status), "error", r.Error, "duration_ms", r.DurationMs)
			}
		}(i, entry.Clone())
	}
	wg.Wait()
	return results
}

func launchOne(ctx context.Context, entry review.AgentManifestEntry, facts review.PRFacts, launcher Launcher) (res review.AgentResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = failed(entry.AgentID, fmt.Sprintf("agent %s panicked: %v", entry.AgentID, p), start)
		}
	}()

	out, err := launcher.Launch(ctx, entry, facts)
	if err != nil {
		return failed(entry.AgentID, err.Error(), start)
	}
	return normalize(entry, out)
}

// normalize copies the launcher's result, keeping Error only for
// non-success statuses.
func normalize(entry review.AgentManifestEntry, out review.AgentResult) review.AgentResult {
	res := review.AgentResult{
		AgentID:    out.AgentID,
		Status:     out.Status,
		Findings:   append([]review.ReviewFinding{}, out.Findings...),
		DurationMs: out.DurationMs,
	}
	if res.AgentID == "" {
		res.AgentID = entry.AgentID
	}
	if res.DurationMs < 0 {
		res.DurationMs = 0
	}
	if res.Status != review.AgentSuccess {
		res.Error = out.Error
		if res.Error == "" {
			res.Error = fmt.Sprintf("agent reported %s", res.Status)
		}
	}
	return res
}

func failed(agentID, msg string, start time.Time) review.AgentResult {
	return review.AgentResult{
		AgentID:    agentID,
		Status:     ClassifyFailure(msg),
		Findings:   []review.ReviewFinding{},
		DurationMs: time.Since(start).Milliseconds(),
		Error:      msg,
	}
}

// ClassifyFailure maps a launch failure message to timeout when it
// mentions "timed out" or "timeout" in any case, and to error otherwise.
func ClassifyFailure(msg string) review.AgentStatus {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout") {
		return review.AgentTimeout
	}
	return review.AgentError
}
