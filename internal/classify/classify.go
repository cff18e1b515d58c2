package classify

import (
	"context"
	"math"
	"path"
	"regexp"
	"strings"

	"github.com/dshills/tribunal/internal/catalog"
	"github.com/dshills/tribunal/internal/review"
)

// DefaultSensitiveDomains raise the risk score when touched.
var DefaultSensitiveDomains = []string{"financial", "auth", "database", "security"}

var conventional = regexp.MustCompile(`^(\w+)(\([^)]*\))?(!)?:`)

var commitTypes = map[string]string{
	"feat":     "feature",
	"fix":      "bugfix",
	"refactor": "refactor",
	"perf":     "performance",
	"docs":     "docs",
	"test":     "test",
	"chore":    "chore",
	"build":    "build",
	"ci":       "ci",
	"style":    "style",
	"revert":   "revert",
}

// Thresholds map a risk score in [0,1] to a level.
const (
	mediumThreshold   = 0.25
	highThreshold     = 0.5
	criticalThreshold = 0.75
)

// Classifier is a deterministic heuristic classifier.
type Classifier struct {
	catalog   *catalog.Catalog
	sensitive map[string]bool
}

// New returns a Classifier. A nil sensitive list selects
// DefaultSensitiveDomains.
func New(cat *catalog.Catalog, sensitive []string) *Classifier {
	if sensitive == nil {
		sensitive = DefaultSensitiveDomains
	}
	c := &Classifier{catalog: cat, sensitive: make(map[string]bool, len(sensitive))}
	for _, d := range sensitive {
		c.sensitive[d] = true
	}
	return c
}

// Classify implements the classify stage.
func (c *Classifier) Classify(_ context.Context, facts review.PRFacts) (review.PRClassification, error) {
	domains := c.domains(facts)
	lines := facts.TotalAdditions + facts.TotalDeletions
	score := c.score(facts, domains, lines)
	return review.PRClassification{
		Type:         changeType(facts),
		RiskLevel:    Level(score),
		RiskScore:    score,
		Domains:      domains,
		Scope:        scope(facts),
		FilesChanged: len(facts.Files),
		LinesChanged: lines,
	}, nil
}

func (c *Classifier) domains(facts review.PRFacts) []string {
	out := []string{}
	if c.catalog == nil {
		return out
	}
	seen := make(map[string]bool)
	for _, f := range facts.Files {
		for _, d := range c.catalog.DomainsForPath(f.Path) {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// score weights size, breadth, sensitive domains, and deletions.
func (c *Classifier) score(facts review.PRFacts, domains []string, lines int) float64 {
	s := 0.4*math.Min(float64(lines)/500, 1) + 0.2*math.Min(float64(len(facts.Files))/20, 1)
	for _, d := range domains {
		if c.sensitive[d] {
			s += 0.3
			break
		}
	}
	for _, f := range facts.Files {
		if f.Status == review.StatusDeleted {
			s += 0.1
			break
		}
	}
	s = math.Min(s, 1)
	return math.Round(s*100) / 100
}

// Level maps a risk score to a RiskLevel.
func Level(score float64) review.RiskLevel {
	switch {
	case score >= criticalThreshold:
		return review.RiskCritical
	case score >= highThreshold:
		return review.RiskHigh
	case score >= mediumThreshold:
		return review.RiskMedium
	default:
		return review.RiskLow
	}
}

func changeType(facts review.PRFacts) string {
	counts := make(map[string]int)
	var order []string
	for _, c := range facts.Commits {
		m := conventional.FindStringSubmatch(strings.TrimSpace(c.Message))
		if m == nil {
			continue
		}
		t, ok := commitTypes[strings.ToLower(m[1])]
		if !ok {
			continue
		}
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}
	// Most frequent type wins; ties go to the earliest commit.
	if len(order) > 0 {
		best := order[0]
		for _, t := range order[1:] {
			if counts[t] > counts[best] {
				best = t
			}
		}
		return best
	}

	if len(facts.Files) == 0 {
		return "chore"
	}
	docs, tests := 0, 0
	for _, f := range facts.Files {
		switch {
		case isDoc(f.Path):
			docs++
		case isTest(f.Path):
			tests++
		}
	}
	switch {
	case docs == len(facts.Files):
		return "docs"
	case tests == len(facts.Files):
		return "test"
	}
	return "change"
}

func isDoc(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return ext == ".md" || ext == ".rst" || ext == ".txt" || strings.HasPrefix(p, "docs/")
}

func isTest(p string) bool {
	base := path.Base(p)
	return strings.HasSuffix(base, "_test.go") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasPrefix(p, "test/") || strings.HasPrefix(p, "tests/")
}

// scope is the single top-level directory touched, "root" for top-level
// files, "cross-cutting" when several are touched, or "none".
func scope(facts review.PRFacts) string {
	tops := make(map[string]bool)
	for _, f := range facts.Files {
		top := "root"
		if i := strings.Index(f.Path, "/"); i > 0 {
			top = f.Path[:i]
		}
		tops[top] = true
	}
	switch len(tops) {
	case 0:
		return "none"
	case 1:
		for t := range tops {
			return t
		}
	}
	return "cross-cutting"
}
