package output

import (
	"io"
	"strings"

	"github.com/dshills/tribunal/internal/review"
)

// Marker is embedded in markdown reports so published comments can be
// recognized on later runs.
const Marker = "<!-- tribunal-review -->"

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (md *MarkdownWriter) Write(w io.Writer, doc Document) error {
	ew := &errWriter{w: w}
	report := doc.Report
	m := report.Metrics

	ew.println(Marker)
	ew.printf("## Tribunal Review: %s\n\n", decisionLabel(doc.Gate.Decision))
	ew.printf("%s\n\n", doc.Gate.Summary)
	if doc.Branch != "" {
		ew.printf("Branch `%s` against `%s`", doc.Branch, doc.Base)
		ew.printf(", %d agent(s) dispatched, %d completed.\n\n", report.AgentsDispatched, report.AgentsCompleted)
	}

	ew.println("| Severity | Count |")
	ew.println("|----------|-------|")
	ew.printf("| Critical | %d |\n", m.Critical)
	ew.printf("| Major | %d |\n", m.Major)
	ew.printf("| Warning | %d |\n", m.Warning)
	ew.printf("| Info | %d |\n", m.Info)
	ew.printf("| **Total** | **%d** |\n\n", m.Total())

	if m.Total() == 0 {
		ew.println("No issues found. :white_check_mark:")
		ew.println("")
	}

	grouped := groupBySeverity(report.Findings)
	for _, sev := range review.AllSeverities() {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		ew.printf("<details>\n<summary>%s %s (%d)</summary>\n\n",
			mdSeverityIcon(sev), strings.ToUpper(string(sev)), len(findings))
		for _, f := range findings {
			ew.printf("### %s\n\n", ruleTitle(doc.Rules, f.RuleID))
			ew.printf("**`%s`** | `%s` | %s", location(f), f.RuleID, f.Agent)
			if f.Category != "" {
				ew.printf(" | %s", f.Category)
			}
			ew.println("\n")
			ew.printf("%s\n\n", f.Message)
			ew.println("---\n")
		}
		ew.println("</details>\n")
	}

	if failed := failedAgents(report.AgentResults); len(failed) > 0 {
		ew.println("### Agent failures\n")
		for _, r := range failed {
			ew.printf("- `%s` (%s): %s\n", r.AgentID, r.Status, r.Error)
		}
		ew.println("")
	}

	if len(report.Gaps) > 0 {
		ew.println("### Coverage gaps\n")
		for _, g := range report.Gaps {
			ew.printf("- %s", g.Concern)
			if g.Recommendation != "" {
				ew.printf(" %s", g.Recommendation)
			}
			ew.printf(" (confidence %.0f%%)\n", g.Confidence*100)
		}
		ew.println("")
	}

	if report.RunID != "" {
		ew.printf("*Run `%s` at %s*\n", report.RunID, report.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return ew.err
}

func failedAgents(results []review.AgentResult) []review.AgentResult {
	var out []review.AgentResult
	for _, r := range results {
		if r.Status != review.AgentSuccess {
			out = append(out, r)
		}
	}
	return out
}

func decisionLabel(d review.Decision) string {
	switch d {
	case review.DecisionFail:
		return ":x: Fail"
	case review.DecisionNeedsFixes:
		return ":warning: Needs fixes"
	case review.DecisionPassWithWarnings:
		return ":white_check_mark: Pass with warnings"
	case review.DecisionPass:
		return ":white_check_mark: Pass"
	default:
		return string(d)
	}
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return ":red_circle:"
	case review.SeverityMajor:
		return ":orange_circle:"
	case review.SeverityWarning:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}
