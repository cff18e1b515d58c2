package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/dshills/tribunal/internal/review"
)

//go:embed defaults/*.yaml
var defaultFS embed.FS

// File names read from a catalog directory.
const (
	RulesFile    = "rules.yaml"
	PoliciesFile = "policies.yaml"
	AgentsFile   = "agents.yaml"
	DomainsFile  = "domains.yaml"
)

// Data is the raw, unvalidated content of a catalog.
type Data struct {
	Rules    []review.ReviewRule        `yaml:"rules"`
	Policies []review.CompositionPolicy `yaml:"policies"`
	Agents   []review.AgentSpec         `yaml:"agents"`
	Domains  []review.DomainMapping     `yaml:"domains"`
}

// Catalog is an immutable, validated configuration snapshot.
type Catalog struct {
	source   string
	rules    []review.ReviewRule
	policies []review.CompositionPolicy
	agents   []review.AgentSpec
	domains  []review.DomainMapping

	agentIndex  map[string]int
	domainGlobs map[string][]glob.Glob
	content     map[string]*regexp.Regexp
}

// Load reads a catalog from dir. An empty dir selects the embedded default
// catalog.
func Load(dir string) (*Catalog, error) {
	if dir == "" {
		sub, err := fs.Sub(defaultFS, "defaults")
		if err != nil {
			return nil, fmt.Errorf("opening default catalog: %w", err)
		}
		return LoadFS(sub, "default")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir), dir)
}

// LoadFS reads the four catalog files from fsys. source names the origin
// in error messages.
func LoadFS(fsys fs.FS, source string) (*Catalog, error) {
	var d Data
	files := []struct {
		name string
		dst  any
	}{
		{RulesFile, &struct {
			Rules *[]review.ReviewRule `yaml:"rules"`
		}{&d.Rules}},
		{PoliciesFile, &struct {
			Policies *[]review.CompositionPolicy `yaml:"policies"`
		}{&d.Policies}},
		{AgentsFile, &struct {
			Agents *[]review.AgentSpec `yaml:"agents"`
		}{&d.Agents}},
		{DomainsFile, &struct {
			Domains *[]review.DomainMapping `yaml:"domains"`
		}{&d.Domains}},
	}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return nil, fmt.Errorf("reading %s from %s catalog: %w", f.name, source, err)
		}
		if err := yaml.Unmarshal(data, f.dst); err != nil {
			return nil, fmt.Errorf("parsing %s from %s catalog: %w", f.name, source, err)
		}
	}
	return New(d, source)
}

// New validates d and freezes it into a Catalog. The input is copied.
func New(d Data, source string) (*Catalog, error) {
	c := &Catalog{
		source:      source,
		rules:       append([]review.ReviewRule(nil), d.Rules...),
		policies:    clonePolicies(d.Policies),
		agents:      append([]review.AgentSpec(nil), d.Agents...),
		domains:     cloneDomains(d.Domains),
		agentIndex:  make(map[string]int, len(d.Agents)),
		domainGlobs: make(map[string][]glob.Glob, len(d.Domains)),
		content:     make(map[string]*regexp.Regexp),
	}
	if err := c.validateAndCompile(); err != nil {
		return nil, err
	}
	return c, nil
}

// Source describes where the catalog was loaded from.
func (c *Catalog) Source() string { return c.source }

// Rules returns a copy of all review rules.
func (c *Catalog) Rules() []review.ReviewRule {
	return append([]review.ReviewRule(nil), c.rules...)
}

// Policies returns a copy of all composition policies in file order.
func (c *Catalog) Policies() []review.CompositionPolicy {
	return clonePolicies(c.policies)
}

// Agents returns a copy of the agent registry.
func (c *Catalog) Agents() []review.AgentSpec {
	return append([]review.AgentSpec(nil), c.agents...)
}

// Domains returns a copy of the domain mappings.
func (c *Catalog) Domains() []review.DomainMapping {
	return cloneDomains(c.domains)
}

// Agent looks up a registry entry by id.
func (c *Catalog) Agent(id string) (review.AgentSpec, bool) {
	i, ok := c.agentIndex[id]
	if !ok {
		return review.AgentSpec{}, false
	}
	return c.agents[i], true
}

// Rule looks up a rule by id.
func (c *Catalog) Rule(id string) (review.ReviewRule, bool) {
	for _, r := range c.rules {
		if r.ID == id {
			return r, true
		}
	}
	return review.ReviewRule{}, false
}

// RuleIDsForAgent returns the ids of rules owned by agentID in file order.
func (c *Catalog) RuleIDsForAgent(agentID string) []string {
	var ids []string
	for _, r := range c.rules {
		if r.Agent == agentID {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// HasPatterns reports whether any glob is registered for the given domains.
func (c *Catalog) HasPatterns(domains []string) bool {
	for _, d := range domains {
		if len(c.domainGlobs[d]) > 0 {
			return true
		}
	}
	return false
}

// MatchesAnyDomain reports whether path matches a glob of any of domains.
func (c *Catalog) MatchesAnyDomain(path string, domains []string) bool {
	for _, d := range domains {
		for _, g := range c.domainGlobs[d] {
			if g.Match(path) {
				return true
			}
		}
	}
	return false
}

// DomainsForPath returns the domains whose globs match path, in catalog
// order.
func (c *Catalog) DomainsForPath(path string) []string {
	var out []string
	for _, m := range c.domains {
		if c.MatchesAnyDomain(path, []string{m.Domain}) {
			out = append(out, m.Domain)
		}
	}
	return out
}

// ContentMatches reports whether the content trigger of policyID matches
// text. Policies without a content trigger never match.
func (c *Catalog) ContentMatches(policyID, text string) bool {
	re, ok := c.content[policyID]
	return ok && re.MatchString(text)
}

// AgentIDs returns registry ids sorted alphabetically.
func (c *Catalog) AgentIDs() []string {
	ids := make([]string, 0, len(c.agents))
	for _, a := range c.agents {
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)
	return ids
}

func clonePolicies(in []review.CompositionPolicy) []review.CompositionPolicy {
	out := make([]review.CompositionPolicy, len(in))
	for i, p := range in {
		p.Trigger.Domains = append([]string(nil), p.Trigger.Domains...)
		out[i] = p
	}
	return out
}

func cloneDomains(in []review.DomainMapping) []review.DomainMapping {
	out := make([]review.DomainMapping, len(in))
	for i, m := range in {
		m.Patterns = append([]string(nil), m.Patterns...)
		out[i] = m
	}
	return out
}
