package review

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// AllSeverities lists severities from most to least severe.
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityMajor, SeverityWarning, SeverityInfo}
}

// Precedence returns the sort position of s: critical sorts first (0) and
// info last (3). Unknown severities sort after info.
func (s Severity) Precedence() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 3
	default:
		return 4
	}
}

// IsValid reports whether s is a recognized severity.
func (s Severity) IsValid() bool {
	return s.Precedence() < 4
}

// ParseSeverity maps loose provider output onto the four severities.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "critical", "blocker":
		return SeverityCritical, true
	case "major", "high", "error":
		return SeverityMajor, true
	case "warning", "medium", "minor", "warn":
		return SeverityWarning, true
	case "info", "low", "suggestion", "note":
		return SeverityInfo, true
	}
	return "", false
}

// CountSeverities builds the histogram of findings.
func CountSeverities(findings []ReviewFinding) SeverityMetrics {
	var m SeverityMetrics
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			m.Critical++
		case SeverityMajor:
			m.Major++
		case SeverityWarning:
			m.Warning++
		case SeverityInfo:
			m.Info++
		}
	}
	return m
}
