package review

import "time"

// FileStatus is the change status of a file in a diff range.
type FileStatus string

const (
	StatusAdded    FileStatus = "added"
	StatusModified FileStatus = "modified"
	StatusDeleted  FileStatus = "deleted"
	StatusRenamed  FileStatus = "renamed"
)

// IsValid reports whether s is a recognized status.
func (s FileStatus) IsValid() bool {
	switch s {
	case StatusAdded, StatusModified, StatusDeleted, StatusRenamed:
		return true
	}
	return false
}

// FileChange describes one file in a diff range. Renamed files carry the
// new path only.
type FileChange struct {
	Path      string     `json:"path"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Status    FileStatus `json:"status"`
}

// CommitInfo holds commit metadata.
type CommitInfo struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Author  string `json:"author"`
}

// PRFacts is the immutable description of a diff range produced by the
// normalize stage.
type PRFacts struct {
	Branch         string       `json:"branch"`
	BaseBranch     string       `json:"baseBranch"`
	Files          []FileChange `json:"files"`
	TotalAdditions int          `json:"totalAdditions"`
	TotalDeletions int          `json:"totalDeletions"`
	Commits        []CommitInfo `json:"commits"`
	DiffContent    string       `json:"diffContent,omitempty"`
}

// HasDiff reports whether raw diff content is present.
func (f PRFacts) HasDiff() bool {
	return f.DiffContent != ""
}

// Paths returns the changed file paths in order.
func (f PRFacts) Paths() []string {
	paths := make([]string, 0, len(f.Files))
	for _, fc := range f.Files {
		paths = append(paths, fc.Path)
	}
	return paths
}

// RiskLevel is the risk rating of a change.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank returns the position of r in the total order low < medium < high <
// critical, starting at 1. Unknown levels rank 0.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// IsValid reports whether r is a recognized risk level.
func (r RiskLevel) IsValid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r is at or above threshold.
func (r RiskLevel) AtLeast(threshold RiskLevel) bool {
	return r.IsValid() && r.Rank() >= threshold.Rank()
}

// PRClassification is produced by the classify stage.
type PRClassification struct {
	Type         string    `json:"type"`
	RiskLevel    RiskLevel `json:"riskLevel"`
	RiskScore    float64   `json:"riskScore"`
	Domains      []string  `json:"domains"`
	Scope        string    `json:"scope"`
	FilesChanged int       `json:"filesChanged"`
	LinesChanged int       `json:"linesChanged"`
}

// HasDomain reports whether the classification includes domain.
func (c PRClassification) HasDomain(domain string) bool {
	for _, d := range c.Domains {
		if d == domain {
			return true
		}
	}
	return false
}

// ReviewRule is a single check owned by a reviewer agent. Universal rules
// are prefixed "U-", domain rules carry a domain code such as "D-FIN-".
type ReviewRule struct {
	ID          string   `json:"id" yaml:"id"`
	Agent       string   `json:"agent" yaml:"agent"`
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Severity    Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// TriggerType discriminates the Trigger union.
type TriggerType string

const (
	TriggerAlways  TriggerType = "always"
	TriggerDomain  TriggerType = "domain"
	TriggerRisk    TriggerType = "risk"
	TriggerContent TriggerType = "content"
)

// Trigger decides when a composition policy applies. Only the fields of
// the selected Type are meaningful.
type Trigger struct {
	Type      TriggerType `json:"type" yaml:"type"`
	Domains   []string    `json:"domains,omitempty" yaml:"domains,omitempty"`
	RiskLevel RiskLevel   `json:"riskLevel,omitempty" yaml:"riskLevel,omitempty"`
	Pattern   string      `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// CompositionPolicy maps a trigger to a reviewer agent.
type CompositionPolicy struct {
	ID          string  `json:"id" yaml:"id"`
	Trigger     Trigger `json:"trigger" yaml:"trigger"`
	Dispatch    string  `json:"dispatch" yaml:"dispatch"`
	Priority    int     `json:"priority" yaml:"priority"`
	Description string  `json:"description" yaml:"description"`
}

// DomainMapping associates a domain with file path globs.
type DomainMapping struct {
	Domain   string   `json:"domain" yaml:"domain"`
	Patterns []string `json:"patterns" yaml:"patterns"`
}

// AgentSpec is a reviewer agent registry entry.
type AgentSpec struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description" yaml:"description"`
	Model          string `json:"model,omitempty" yaml:"model,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

// AgentManifestEntry tells dispatch which agent to run, over which files,
// with which rules. Entries are unique by AgentID after dedup.
type AgentManifestEntry struct {
	AgentID     string   `json:"agentId"`
	Scope       []string `json:"scope"`
	Priority    int      `json:"priority"`
	Rules       []string `json:"rules"`
	Reason      string   `json:"reason"`
	TriggeredBy string   `json:"triggeredBy"`
}

// Clone returns a deep copy of e.
func (e AgentManifestEntry) Clone() AgentManifestEntry {
	e.Scope = append([]string(nil), e.Scope...)
	e.Rules = append([]string(nil), e.Rules...)
	return e
}

// GapLogEntry records an open concern raised during gap detection.
type GapLogEntry struct {
	Concern        string  `json:"concern"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
}

// AgentStatus is the outcome of a single agent launch.
type AgentStatus string

const (
	AgentSuccess AgentStatus = "success"
	AgentTimeout AgentStatus = "timeout"
	AgentError   AgentStatus = "error"
)

// IsValid reports whether s is a recognized agent status.
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentSuccess, AgentTimeout, AgentError:
		return true
	}
	return false
}

// AgentResult is what dispatch records for one manifest entry. Error is set
// iff Status is not success.
type AgentResult struct {
	AgentID    string          `json:"agentId"`
	Status     AgentStatus     `json:"status"`
	Findings   []ReviewFinding `json:"findings"`
	DurationMs int64           `json:"durationMs"`
	Error      string          `json:"error,omitempty"`
}

// ReviewFinding is a single issue reported by an agent.
type ReviewFinding struct {
	RuleID      string   `json:"ruleId"`
	Agent       string   `json:"agent"`
	Severity    Severity `json:"severity"`
	File        string   `json:"file"`
	Line        *int     `json:"line,omitempty"`
	Message     string   `json:"message"`
	Category    string   `json:"category"`
	Dismissible bool     `json:"dismissible"`
}

// SeverityMetrics counts findings per severity.
type SeverityMetrics struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// Total returns the number of counted findings.
func (m SeverityMetrics) Total() int {
	return m.Critical + m.Major + m.Warning + m.Info
}

// ReviewReport is the aggregated output of a pipeline run.
type ReviewReport struct {
	RunID            string          `json:"runId,omitempty"`
	AgentResults     []AgentResult   `json:"agentResults"`
	Findings         []ReviewFinding `json:"findings"`
	Gaps             []GapLogEntry   `json:"gaps"`
	Metrics          SeverityMetrics `json:"metrics"`
	AgentsDispatched int             `json:"agentsDispatched"`
	AgentsCompleted  int             `json:"agentsCompleted"`
	Deduplicated     int             `json:"deduplicated"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Decision is the gate verdict.
type Decision string

const (
	DecisionFail             Decision = "fail"
	DecisionNeedsFixes       Decision = "needs_fixes"
	DecisionPassWithWarnings Decision = "pass_with_warnings"
	DecisionPass             Decision = "pass"
)

// IsValid reports whether d is a recognized decision.
func (d Decision) IsValid() bool {
	return d.Rank() > 0
}

// Rank orders decisions by blocking power: fail is 4, pass is 1.
func (d Decision) Rank() int {
	switch d {
	case DecisionFail:
		return 4
	case DecisionNeedsFixes:
		return 3
	case DecisionPassWithWarnings:
		return 2
	case DecisionPass:
		return 1
	default:
		return 0
	}
}

// GateDecision is the final accept/reject verdict.
type GateDecision struct {
	Decision Decision        `json:"decision"`
	Metrics  SeverityMetrics `json:"metrics"`
	Summary  string          `json:"summary"`
}
