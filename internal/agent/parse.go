package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/tribunal/internal/review"
)

// rawFinding is the JSON shape requested from the model.
type rawFinding struct {
	RuleID      string `json:"ruleId"`
	Severity    string `json:"severity"`
	File        string `json:"file"`
	Line        *int   `json:"line"`
	Message     string `json:"message"`
	Category    string `json:"category"`
	Dismissible bool   `json:"dismissible"`
}

// unspecifiedRule is used when the model omits a rule id.
const unspecifiedRule = "UNSPECIFIED"

// parseFindings decodes a model reply into findings attributed to agentID.
// Code fences are stripped and an object wrapping a "findings" array is
// accepted. Findings without a file are dropped; unknown severities fall
// back to the rule's severity or warning.
func parseFindings(content, agentID string, rules map[string]review.ReviewRule) ([]review.ReviewFinding, error) {
	content = stripFences(strings.TrimSpace(content))

	var raw []rawFinding
	if strings.HasPrefix(content, "{") {
		var wrapped struct {
			Findings []rawFinding `json:"findings"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		raw = wrapped.Findings
	} else if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}

	findings := make([]review.ReviewFinding, 0, len(raw))
	for _, r := range raw {
		file := strings.TrimPrefix(strings.TrimSpace(r.File), "./")
		if file == "" {
			continue
		}
		f := review.ReviewFinding{
			RuleID:      strings.TrimSpace(r.RuleID),
			Agent:       agentID,
			File:        file,
			Message:     strings.TrimSpace(r.Message),
			Category:    r.Category,
			Dismissible: r.Dismissible,
		}
		if f.RuleID == "" {
			f.RuleID = unspecifiedRule
		}
		if r.Line != nil && *r.Line > 0 {
			line := *r.Line
			f.Line = &line
		}
		sev, ok := review.ParseSeverity(strings.ToLower(strings.TrimSpace(r.Severity)))
		if !ok {
			sev = review.SeverityWarning
			if rule, known := rules[f.RuleID]; known && rule.Severity.IsValid() {
				sev = rule.Severity
			}
		}
		f.Severity = sev
		if f.Category == "" {
			f.Category = rules[f.RuleID].Category
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}
