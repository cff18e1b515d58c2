package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dshills/tribunal/internal/review"
)

// Aggregate flattens findings in result order, drops later duplicates of
// (ruleId, file, line), sorts by severity keeping relative order, and counts
// metrics. now stamps the report.
func Aggregate(results []review.AgentResult, gaps []review.GapLogEntry, now time.Time) (review.ReviewReport, review.GateDecision) {
	var all []review.ReviewFinding
	for _, r := range results {
		all = append(all, r.Findings...)
	}

	findings, dropped := Dedupe(all)
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Precedence() < findings[j].Severity.Precedence()
	})

	completed := 0
	for _, r := range results {
		if r.Status == review.AgentSuccess {
			completed++
		}
	}

	metrics := review.CountSeverities(findings)
	report := review.ReviewReport{
		AgentResults:     append([]review.AgentResult{}, results...),
		Findings:         findings,
		Gaps:             append([]review.GapLogEntry{}, gaps...),
		Metrics:          metrics,
		AgentsDispatched: len(results),
		AgentsCompleted:  completed,
		Deduplicated:     dropped,
		Timestamp:        now,
	}
	return report, GateFor(metrics)
}

// Dedupe keeps the first finding for each (ruleId, file, line) key. A nil
// line is keyed as "none".
func Dedupe(findings []review.ReviewFinding) ([]review.ReviewFinding, int) {
	seen := make(map[string]bool, len(findings))
	out := make([]review.ReviewFinding, 0, len(findings))
	dropped := 0
	for _, f := range findings {
		k := key(f)
		if seen[k] {
			dropped++
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out, dropped
}

func key(f review.ReviewFinding) string {
	line := "none"
	if f.Line != nil {
		line = strconv.Itoa(*f.Line)
	}
	return f.RuleID + "\x00" + f.File + "\x00" + line
}

// GateFor maps a severity histogram to a decision. It depends on nothing
// else.
func GateFor(m review.SeverityMetrics) review.GateDecision {
	g := review.GateDecision{Metrics: m}
	switch {
	case m.Critical > 0:
		g.Decision = review.DecisionFail
		g.Summary = plural(m.Critical, "critical finding", "critical findings")
	case m.Major > 0:
		g.Decision = review.DecisionNeedsFixes
		g.Summary = plural(m.Major, "major finding", "major findings")
	case m.Warning > 0:
		g.Decision = review.DecisionPassWithWarnings
		g.Summary = plural(m.Warning, "warning", "warnings")
	case m.Info > 0:
		g.Decision = review.DecisionPass
		g.Summary = plural(m.Info, "info finding", "info findings")
	default:
		g.Decision = review.DecisionPass
		g.Summary = "All checks passed"
	}
	return g
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s found", one)
	}
	return fmt.Sprintf("%d %s found", n, many)
}
