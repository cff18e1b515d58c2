package review

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContractViolation is wrapped by every ContractError.
var ErrContractViolation = errors.New("contract violation")

// ContractError reports that a stage produced output that does not satisfy
// its structural contract.
type ContractError struct {
	Stage    string
	Problems []string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s output violates contract: %s", e.Stage, strings.Join(e.Problems, "; "))
}

func (e *ContractError) Unwrap() error { return ErrContractViolation }

// problems collects contract violations for one stage.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err(stage string) error {
	if len(p) == 0 {
		return nil
	}
	return &ContractError{Stage: stage, Problems: p}
}

// ValidateFacts checks the normalize stage output.
func ValidateFacts(f PRFacts) error {
	var p problems
	if f.Branch == "" {
		p.addf("branch is required")
	}
	if f.BaseBranch == "" {
		p.addf("baseBranch is required")
	}
	adds, dels := 0, 0
	for i, fc := range f.Files {
		if fc.Path == "" {
			p.addf("files[%d].path is empty", i)
		}
		if fc.Additions < 0 || fc.Deletions < 0 {
			p.addf("files[%d] has negative line counts", i)
		}
		if !fc.Status.IsValid() {
			p.addf("files[%d].status %q is invalid", i, fc.Status)
		}
		adds += fc.Additions
		dels += fc.Deletions
	}
	if adds != f.TotalAdditions {
		p.addf("totalAdditions %d does not match file sum %d", f.TotalAdditions, adds)
	}
	if dels != f.TotalDeletions {
		p.addf("totalDeletions %d does not match file sum %d", f.TotalDeletions, dels)
	}
	for i, c := range f.Commits {
		if c.SHA == "" || c.Message == "" || c.Author == "" {
			p.addf("commits[%d] requires sha, message, and author", i)
		}
	}
	return p.err("normalize")
}

// ValidateClassification checks the classify stage output.
func ValidateClassification(c PRClassification) error {
	var p problems
	if c.Type == "" {
		p.addf("type is required")
	}
	if !c.RiskLevel.IsValid() {
		p.addf("riskLevel %q is invalid", c.RiskLevel)
	}
	if c.FilesChanged < 0 || c.LinesChanged < 0 {
		p.addf("filesChanged and linesChanged must be non-negative")
	}
	for i, d := range c.Domains {
		if d == "" {
			p.addf("domains[%d] is empty", i)
		}
	}
	return p.err("classify")
}

// ValidateManifest checks a dispatch manifest produced by compose or
// gap-detect.
func ValidateManifest(stage string, entries []AgentManifestEntry) error {
	var p problems
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.AgentID == "" {
			p.addf("manifest[%d].agentId is empty", i)
			continue
		}
		if seen[e.AgentID] {
			p.addf("manifest[%d] duplicates agent %s", i, e.AgentID)
		}
		seen[e.AgentID] = true
		for j, s := range e.Scope {
			if s == "" {
				p.addf("manifest[%d].scope[%d] is empty", i, j)
			}
		}
		if e.TriggeredBy == "" {
			p.addf("manifest[%d].triggeredBy is empty", i)
		}
	}
	return p.err(stage)
}

// ValidateGaps checks gap log entries.
func ValidateGaps(gaps []GapLogEntry) error {
	var p problems
	for i, g := range gaps {
		if g.Concern == "" {
			p.addf("gaps[%d].concern is empty", i)
		}
		if g.Confidence < 0 || g.Confidence > 1 {
			p.addf("gaps[%d].confidence %v is outside [0,1]", i, g.Confidence)
		}
	}
	return p.err("gap-detect")
}

// ValidateResults checks dispatch output against the manifest it ran.
func ValidateResults(results []AgentResult, manifest []AgentManifestEntry) error {
	var p problems
	if len(results) != len(manifest) {
		p.addf("got %d results for %d manifest entries", len(results), len(manifest))
	}
	for i, r := range results {
		if r.AgentID == "" {
			p.addf("results[%d].agentId is empty", i)
		}
		if !r.Status.IsValid() {
			p.addf("results[%d].status %q is invalid", i, r.Status)
		}
		if r.DurationMs < 0 {
			p.addf("results[%d].durationMs is negative", i)
		}
		if r.Status == AgentSuccess && r.Error != "" {
			p.addf("results[%d] is successful but carries an error", i)
		}
		if r.Status != AgentSuccess && r.Error == "" {
			p.addf("results[%d] has status %s without an error", i, r.Status)
		}
		if r.Findings == nil {
			p.addf("results[%d].findings is nil", i)
		}
		for j, f := range r.Findings {
			if msg := validateFinding(f); msg != "" {
				p.addf("results[%d].findings[%d] %s", i, j, msg)
			}
		}
	}
	return p.err("dispatch")
}

func validateFinding(f ReviewFinding) string {
	switch {
	case f.RuleID == "":
		return "has no ruleId"
	case !f.Severity.IsValid():
		return fmt.Sprintf("has invalid severity %q", f.Severity)
	case f.File == "":
		return "has no file"
	case f.Line != nil && *f.Line < 0:
		return "has a negative line"
	}
	return ""
}

// ValidateReport checks the aggregated report.
func ValidateReport(r ReviewReport) error {
	var p problems
	if r.AgentsCompleted > r.AgentsDispatched {
		p.addf("agentsCompleted %d exceeds agentsDispatched %d", r.AgentsCompleted, r.AgentsDispatched)
	}
	if r.AgentsDispatched != len(r.AgentResults) {
		p.addf("agentsDispatched %d does not match %d results", r.AgentsDispatched, len(r.AgentResults))
	}
	if r.Deduplicated < 0 {
		p.addf("deduplicated is negative")
	}
	if got := CountSeverities(r.Findings); got != r.Metrics {
		p.addf("metrics %+v do not match findings %+v", r.Metrics, got)
	}
	for i := 1; i < len(r.Findings); i++ {
		if r.Findings[i-1].Severity.Precedence() > r.Findings[i].Severity.Precedence() {
			p.addf("findings are not sorted by severity at index %d", i)
			break
		}
	}
	if r.Timestamp.IsZero() {
		p.addf("timestamp is required")
	}
	return p.err("aggregate")
}

// ValidateGate checks the gate decision.
func ValidateGate(g GateDecision) error {
	var p problems
	if !g.Decision.IsValid() {
		p.addf("decision %q is invalid", g.Decision)
	}
	if g.Summary == "" {
		p.addf("summary is required")
	}
	return p.err("gate")
}
