package compose

import (
	"reflect"
	"testing"

	"github.com/dshills/tribunal/internal/catalog"
	"github.com/dshills/tribunal/internal/review"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Data{
		Agents: []review.AgentSpec{
			{ID: "build-reviewer"},
			{ID: "finance-reviewer"},
			{ID: "security-reviewer"},
			{ID: "ui-reviewer"},
		},
		Rules: []review.ReviewRule{
			{ID: "U-BUILD-1", Agent: "build-reviewer"},
			{ID: "U-TYPE-1", Agent: "build-reviewer"},
			{ID: "D-FIN-1", Agent: "finance-reviewer"},
			{ID: "D-SEC-1", Agent: "security-reviewer"},
		},
		Policies: []review.CompositionPolicy{
			{ID: "P-ALL", Trigger: review.Trigger{Type: review.TriggerAlways}, Dispatch: "build-reviewer", Priority: 50, Description: "universal"},
			{ID: "P-FIN", Trigger: review.Trigger{Type: review.TriggerDomain, Domains: []string{"financial"}}, Dispatch: "finance-reviewer", Priority: 80, Description: "financial code"},
			{ID: "P-RISK", Trigger: review.Trigger{Type: review.TriggerRisk, RiskLevel: review.RiskHigh}, Dispatch: "security-reviewer", Priority: 90, Description: "high risk"},
			{ID: "P-SECRET", Trigger: review.Trigger{Type: review.TriggerContent, Pattern: `(?i)password\s*=`}, Dispatch: "security-reviewer", Priority: 95, Description: "secrets"},
			{ID: "P-UI", Trigger: review.Trigger{Type: review.TriggerDomain, Domains: []string{"ui-components"}}, Dispatch: "ui-reviewer", Priority: 40, Description: "ui"},
		},
		Domains: []review.DomainMapping{
			{Domain: "financial", Patterns: []string{"**/money*", "lib/billing/**"}},
		},
	}, "test")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func facts(paths ...string) review.PRFacts {
	f := review.PRFacts{Branch: "feature", BaseBranch: "main", Files: []review.FileChange{}, Commits: []review.CommitInfo{}}
	for _, p := range paths {
		f.Files = append(f.Files, review.FileChange{Path: p, Status: review.StatusModified, Additions: 1})
	}
	return f
}

func agentIDs(m []review.AgentManifestEntry) []string {
	ids := make([]string, 0, len(m))
	for _, e := range m {
		ids = append(ids, e.AgentID)
	}
	return ids
}

func find(m []review.AgentManifestEntry, id string) (review.AgentManifestEntry, bool) {
	for _, e := range m {
		if e.AgentID == id {
			return e, true
		}
	}
	return review.AgentManifestEntry{}, false
}

func TestComposeFinancialDomain(t *testing.T) {
	c := New(testCatalog(t), nil)
	class := review.PRClassification{RiskLevel: review.RiskLow, Domains: []string{"financial"}}
	m, err := c.Compose(class, facts("lib/helpers/money.ts", "README.md"))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	fin, ok := find(m, "finance-reviewer")
	if !ok {
		t.Fatalf("finance-reviewer missing from %v", agentIDs(m))
	}
	if !reflect.DeepEqual(fin.Scope, []string{"lib/helpers/money.ts"}) {
		t.Errorf("finance scope = %v", fin.Scope)
	}
	if fin.TriggeredBy != "P-FIN" || !reflect.DeepEqual(fin.Rules, []string{"D-FIN-1"}) {
		t.Errorf("finance entry = %+v", fin)
	}

	build, ok := find(m, "build-reviewer")
	if !ok {
		t.Fatal("universal agent missing")
	}
	if !reflect.DeepEqual(build.Scope, []string{"lib/helpers/money.ts", "README.md"}) {
		t.Errorf("build scope = %v", build.Scope)
	}
	if want := []string{"finance-reviewer", "build-reviewer"}; !reflect.DeepEqual(agentIDs(m), want) {
		t.Errorf("order = %v, want %v", agentIDs(m), want)
	}
}

func TestComposeUniversalAlwaysPresent(t *testing.T) {
	c := New(testCatalog(t), nil)
	for _, class := range []review.PRClassification{
		{RiskLevel: review.RiskLow},
		{RiskLevel: review.RiskCritical, Domains: []string{"financial", "ui-components"}},
	} {
		m, err := c.Compose(class, facts("a.go"))
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		if _, ok := find(m, "build-reviewer"); !ok {
			t.Errorf("build-reviewer missing for %+v", class)
		}
	}
}

func TestComposeDomainWithoutPatternsUsesAllPaths(t *testing.T) {
	c := New(testCatalog(t), nil)
	class := review.PRClassification{RiskLevel: review.RiskLow, Domains: []string{"ui-components"}}
	m, err := c.Compose(class, facts("src/a.tsx", "src/b.go"))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	ui, ok := find(m, "ui-reviewer")
	if !ok {
		t.Fatal("ui-reviewer missing")
	}
	if !reflect.DeepEqual(ui.Scope, []string{"src/a.tsx", "src/b.go"}) {
		t.Errorf("ui scope = %v", ui.Scope)
	}
	if ui.Rules == nil || len(ui.Rules) != 0 {
		t.Errorf("ui rules = %#v, want empty", ui.Rules)
	}
}

func TestComposeRiskThreshold(t *testing.T) {
	c := New(testCatalog(t), nil)
	tests := []struct {
		level review.RiskLevel
		want  bool
	}{
		{review.RiskLow, false},
		{review.RiskMedium, false},
		{review.RiskHigh, true},
		{review.RiskCritical, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			m, err := c.Compose(review.PRClassification{RiskLevel: tt.level}, facts("a.go"))
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			if _, got := find(m, "security-reviewer"); got != tt.want {
				t.Errorf("security-reviewer present = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComposeContentTrigger(t *testing.T) {
	c := New(testCatalog(t), nil)
	class := review.PRClassification{RiskLevel: review.RiskLow}

	f := facts("config.go")
	m, err := c.Compose(class, f)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if _, ok := find(m, "security-reviewer"); ok {
		t.Error("content trigger matched absent diff")
	}

	f.DiffContent = "+\tPassword = \"hunter2\"\n"
	m, err = c.Compose(class, f)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	sec, ok := find(m, "security-reviewer")
	if !ok {
		t.Fatal("content trigger did not match")
	}
	if sec.TriggeredBy != "P-SECRET" || sec.Priority != 95 {
		t.Errorf("security entry = %+v", sec)
	}
}

func TestComposeDedupeAcrossPolicies(t *testing.T) {
	c := New(testCatalog(t), nil)
	f := facts("auth.go")
	f.DiffContent = "+password = x"
	m, err := c.Compose(review.PRClassification{RiskLevel: review.RiskHigh}, f)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	var count int
	for _, e := range m {
		if e.AgentID == "security-reviewer" {
			count++
			if e.Priority != 95 || e.TriggeredBy != "P-SECRET" || e.Reason != "high risk; secrets" {
				t.Errorf("merged entry = %+v", e)
			}
		}
	}
	if count != 1 {
		t.Errorf("security-reviewer appears %d times", count)
	}
	if err := review.ValidateManifest("compose", m); err != nil {
		t.Errorf("manifest fails contract: %v", err)
	}
}

func TestComposeSortedByPriority(t *testing.T) {
	c := New(testCatalog(t), nil)
	class := review.PRClassification{RiskLevel: review.RiskCritical, Domains: []string{"financial", "ui-components"}}
	m, err := c.Compose(class, facts("lib/billing/x.go"))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	want := []string{"security-reviewer", "finance-reviewer", "build-reviewer", "ui-reviewer"}
	if got := agentIDs(m); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestComposeEmptyFacts(t *testing.T) {
	c := New(testCatalog(t), nil)
	m, err := c.Compose(review.PRClassification{RiskLevel: review.RiskLow}, facts())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	build, ok := find(m, "build-reviewer")
	if !ok || build.Scope == nil || len(build.Scope) != 0 {
		t.Errorf("build entry = %+v", build)
	}
}
