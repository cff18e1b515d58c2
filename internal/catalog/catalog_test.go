package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/tribunal/internal/review"
)

func testData() Data {
	return Data{
		Agents: []review.AgentSpec{
			{ID: "build-reviewer", Name: "Build"},
			{ID: "finance-reviewer", Name: "Finance"},
		},
		Rules: []review.ReviewRule{
			{ID: "U-TYPE-1", Agent: "build-reviewer"},
			{ID: "D-FIN-1", Agent: "finance-reviewer"},
			{ID: "U-BUILD-1", Agent: "build-reviewer"},
		},
		Policies: []review.CompositionPolicy{
			{ID: "P-ALL", Trigger: review.Trigger{Type: review.TriggerAlways}, Dispatch: "build-reviewer", Priority: 50},
			{ID: "P-FIN", Trigger: review.Trigger{Type: review.TriggerDomain, Domains: []string{"financial"}}, Dispatch: "finance-reviewer", Priority: 80},
			{ID: "P-TODO", Trigger: review.Trigger{Type: review.TriggerContent, Pattern: `TODO\(`}, Dispatch: "build-reviewer", Priority: 10},
		},
		Domains: []review.DomainMapping{
			{Domain: "financial", Patterns: []string{"lib/**/*.ts", "**/money*"}},
		},
	}
}

func TestNew(t *testing.T) {
	c, err := New(testData(), "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.RuleIDsForAgent("build-reviewer"); strings.Join(got, ",") != "U-TYPE-1,U-BUILD-1" {
		t.Errorf("RuleIDsForAgent = %v", got)
	}
	if _, ok := c.Agent("finance-reviewer"); !ok {
		t.Error("expected finance-reviewer in registry")
	}
	if _, ok := c.Agent("nobody"); ok {
		t.Error("unexpected agent")
	}
	if !c.ContentMatches("P-TODO", "+ // TODO(alice) fix") {
		t.Error("expected content match")
	}
	if c.ContentMatches("P-ALL", "anything") {
		t.Error("non-content policy must not match content")
	}
}

func TestCatalogIsFrozen(t *testing.T) {
	d := testData()
	c, err := New(d, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d.Policies[1].Trigger.Domains[0] = "changed"
	if got := c.Policies()[1].Trigger.Domains[0]; got != "financial" {
		t.Errorf("catalog shares input slices: got %q", got)
	}

	p := c.Policies()
	p[1].Trigger.Domains[0] = "mutated"
	p[0].Priority = 1
	if got := c.Policies()[1]; got.Trigger.Domains[0] != "financial" {
		t.Errorf("accessor returned shared slice: %+v", got)
	}
	if c.Policies()[0].Priority != 50 {
		t.Error("accessor returned shared struct")
	}

	dm := c.Domains()
	dm[0].Patterns[0] = "x"
	if c.Domains()[0].Patterns[0] != "lib/**/*.ts" {
		t.Error("Domains accessor returned shared slice")
	}
}

func TestDomainMatching(t *testing.T) {
	c, err := New(testData(), "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		path string
		want bool
	}{
		{"lib/helpers/money.ts", true},
		{"lib/a.ts", true},
		{"lib/a/b/c.ts", true},
		{"money.go", true},
		{"src/money/rates.go", false},
		{"src/moneybag.go", true},
		{"lib/a.go", false},
		{"README.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := c.MatchesAnyDomain(tt.path, []string{"financial"}); got != tt.want {
				t.Errorf("MatchesAnyDomain(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
	if c.MatchesAnyDomain("lib/a.ts", []string{"ui"}) {
		t.Error("unregistered domain must not match")
	}
	if !c.HasPatterns([]string{"ui", "financial"}) {
		t.Error("HasPatterns should see financial")
	}
	if c.HasPatterns([]string{"ui"}) {
		t.Error("HasPatterns should not see ui")
	}
	if got := c.DomainsForPath("lib/helpers/money.ts"); len(got) != 1 || got[0] != "financial" {
		t.Errorf("DomainsForPath = %v", got)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Data)
		want   string
	}{
		{"duplicate agent", func(d *Data) { d.Agents = append(d.Agents, d.Agents[0]) }, "duplicate id"},
		{"unknown rule agent", func(d *Data) { d.Rules[0].Agent = "ghost" }, `unknown agent "ghost"`},
		{"bad rule prefix", func(d *Data) { d.Rules[0].ID = "TYPE-1" }, "must start with U- or D-<CODE>-"},
		{"duplicate rule", func(d *Data) { d.Rules[2].ID = "U-TYPE-1" }, "rule U-TYPE-1: duplicate id"},
		{"bad severity", func(d *Data) { d.Rules[0].Severity = "fatal" }, "invalid severity"},
		{"unknown dispatch", func(d *Data) { d.Policies[0].Dispatch = "ghost" }, "unknown dispatch agent"},
		{"unknown trigger", func(d *Data) { d.Policies[0].Trigger.Type = "sometimes" }, "unknown trigger type"},
		{"bad risk", func(d *Data) {
			d.Policies[0].Trigger = review.Trigger{Type: review.TriggerRisk, RiskLevel: "extreme"}
		}, "invalid risk level"},
		{"empty domains", func(d *Data) { d.Policies[1].Trigger.Domains = nil }, "needs at least one domain"},
		{"bad regex", func(d *Data) { d.Policies[2].Trigger.Pattern = "(" }, "invalid pattern"},
		{"bad glob", func(d *Data) { d.Domains[0].Patterns = []string{"lib/[a"} }, "invalid glob"},
		{"duplicate policy", func(d *Data) { d.Policies[1].ID = "P-ALL" }, "policy P-ALL: duplicate id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testData()
			tt.mutate(&d)
			_, err := New(d, "test")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(verr.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", verr.Error(), tt.want)
			}
		})
	}
}

func TestLoadDefault(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if c.Source() != "default" {
		t.Errorf("Source = %q", c.Source())
	}
	if _, ok := c.Agent("build-reviewer"); !ok {
		t.Error("default catalog lacks build-reviewer")
	}
	var universal bool
	for _, p := range c.Policies() {
		if p.Trigger.Type == review.TriggerAlways && p.Dispatch == "build-reviewer" {
			universal = true
		}
	}
	if !universal {
		t.Error("default catalog lacks an always policy for build-reviewer")
	}
	if !c.MatchesAnyDomain("lib/helpers/money.ts", []string{"financial"}) {
		t.Error("financial glob should match lib/helpers/money.ts")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		AgentsFile:   "agents:\n  - id: build-reviewer\n    name: Build\n",
		RulesFile:    "rules:\n  - id: U-BUILD-1\n    agent: build-reviewer\n",
		PoliciesFile: "policies:\n  - id: P-ALL\n    trigger:\n      type: always\n    dispatch: build-reviewer\n    priority: 50\n",
		DomainsFile:  "domains: []\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Policies()) != 1 || len(c.Rules()) != 1 {
		t.Errorf("unexpected catalog: %d policies, %d rules", len(c.Policies()), len(c.Rules()))
	}

	if err := os.Remove(filepath.Join(dir, DomainsFile)); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), DomainsFile) {
		t.Errorf("expected missing file error, got %v", err)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{AgentsFile, RulesFile, PoliciesFile, DomainsFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, RulesFile), []byte("rules: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "parsing rules.yaml") {
		t.Errorf("expected parse error, got %v", err)
	}
}
