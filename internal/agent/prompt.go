package agent

import (
	"fmt"
	"path"
	"strings"

	"github.com/dshills/tribunal/internal/review"
)

const systemPrompt = `You are %s, a strict, expert code reviewer in a multi-agent review pipeline.
%s

Rules:
1. Only review the changes shown in the diff. Do not comment on unchanged code.
2. Only report problems covered by the review rules you are given. Use the rule id in every finding.
3. Be concise and actionable. Say what is wrong and why it matters.
4. Reference line numbers in the new version of the file when you can.
5. Rate severity as "critical", "major", "warning", or "info".
6. Set "dismissible" to true when a reasonable author could disagree.

You MUST respond with ONLY a JSON array of findings. No markdown, no explanation, no preamble.

Each finding must have this exact structure:
{
  "ruleId": "U-EXAMPLE-1",
  "severity": "critical|major|warning|info",
  "file": "relative/file/path",
  "line": 1,
  "message": "What is wrong and why it matters",
  "category": "bug|security|performance|correctness|style|maintainability|testing|docs|accessibility",
  "dismissible": false
}

If there are no issues, respond with an empty array: []`

// SystemPrompt returns the system prompt for an agent.
func SystemPrompt(spec review.AgentSpec) string {
	name := spec.Name
	if name == "" {
		name = spec.ID
	}
	return fmt.Sprintf(systemPrompt, name, strings.TrimSpace(spec.Description))
}

// UserPrompt builds the per-entry request: the reason the agent was
// selected, its rules, the change context, and the scoped diff.
func UserPrompt(entry review.AgentManifestEntry, rules []review.ReviewRule, facts review.PRFacts, diff string, maxFindings int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Review branch %s against %s.\n", facts.Branch, facts.BaseBranch)
	if entry.Reason != "" {
		fmt.Fprintf(&b, "You were selected because: %s.\n", entry.Reason)
	}
	if maxFindings > 0 {
		fmt.Fprintf(&b, "Return at most %d findings.\n", maxFindings)
	}
	if langs := detectLanguages(entry.Scope); len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}

	if len(rules) > 0 {
		b.WriteString("\nReview rules:\n")
		for _, r := range rules {
			fmt.Fprintf(&b, "- [%s]", r.ID)
			if r.Severity != "" {
				fmt.Fprintf(&b, " (%s)", r.Severity)
			}
			if r.Title != "" {
				fmt.Fprintf(&b, " %s.", r.Title)
			}
			if r.Description != "" {
				fmt.Fprintf(&b, " %s", r.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(facts.Commits) > 0 {
		b.WriteString("\nCommits:\n")
		for _, c := range facts.Commits {
			fmt.Fprintf(&b, "- %s\n", c.Message)
		}
	}

	b.WriteString("\nFiles in scope:\n")
	for _, p := range entry.Scope {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	b.WriteString("\n--- BEGIN DIFF ---\n")
	b.WriteString(diff)
	b.WriteString("\n--- END DIFF ---\n")
	return b.String()
}

func repairPrompt(parseErr error, previous string) string {
	return fmt.Sprintf(
		"Your previous response was not valid JSON. The error was: %s\n\nPlease fix it and respond with ONLY a valid JSON array of findings.\n\nYour previous response was:\n%s",
		parseErr.Error(), previous,
	)
}

var languages = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cpp":   "C++",
	".c":     "C",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sql":   "SQL",
	".sh":    "Shell",
	".yaml":  "YAML",
	".yml":   "YAML",
	".tf":    "Terraform",
}

// detectLanguages lists languages by file extension in first-seen order.
func detectLanguages(files []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range files {
		lang, ok := languages[strings.ToLower(path.Ext(f))]
		if ok && !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	return out
}
