package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dshills/tribunal/internal/review"
)

// TextWriter outputs a human-readable terminal report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, doc Document) error {
	ew := &errWriter{w: w}
	report := doc.Report
	m := report.Metrics

	ew.println("Tribunal Review")
	if doc.Branch != "" {
		ew.printf("Branch: %s (base: %s)\n", doc.Branch, doc.Base)
	}
	if report.RunID != "" {
		ew.printf("Run: %s\n", report.RunID)
	}
	ew.println(strings.Repeat("─", 60))
	ew.printf("Agents: %d dispatched, %d completed\n", report.AgentsDispatched, report.AgentsCompleted)
	ew.printf("Findings: %d total", m.Total())
	if m.Total() > 0 {
		ew.printf(" (%d critical, %d major, %d warning, %d info)", m.Critical, m.Major, m.Warning, m.Info)
	}
	if report.Deduplicated > 0 {
		ew.printf(", %d duplicate(s) removed", report.Deduplicated)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if len(report.AgentResults) > 0 {
		tw := table.NewWriter()
		tw.AppendHeader(table.Row{"Agent", "Status", "Findings", "Duration", "Error"})
		for _, r := range report.AgentResults {
			tw.AppendRow(table.Row{r.AgentID, r.Status, len(r.Findings), fmt.Sprintf("%dms", r.DurationMs), r.Error})
		}
		ew.println(tw.Render())
	}

	if m.Total() > 0 {
		grouped := groupBySeverity(report.Findings)
		for _, sev := range review.AllSeverities() {
			findings := grouped[sev]
			if len(findings) == 0 {
				continue
			}
			ew.printf("\n%s %s\n", severityIcon(sev), strings.ToUpper(string(sev)))
			tw := table.NewWriter()
			tw.AppendHeader(table.Row{"Location", "Rule", "Agent", "Message"})
			for _, f := range findings {
				tw.AppendRow(table.Row{location(f), f.RuleID, f.Agent, strings.Join(wrapText(f.Message, 60), "\n")})
			}
			ew.println(tw.Render())
		}
	} else {
		ew.println("\nNo issues found.")
	}

	if len(report.Gaps) > 0 {
		ew.println("\nCoverage gaps:")
		for _, g := range report.Gaps {
			ew.printf("  - %s (confidence %.0f%%)\n", g.Concern, g.Confidence*100)
			if g.Recommendation != "" {
				for _, line := range wrapText(g.Recommendation, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Gate: %s. %s\n", strings.ToUpper(string(doc.Gate.Decision)), doc.Gate.Summary)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return "[!!!]"
	case review.SeverityMajor:
		return "[!!]"
	case review.SeverityWarning:
		return "[!]"
	case review.SeverityInfo:
		return "[-]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
