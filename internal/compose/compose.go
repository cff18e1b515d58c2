package compose

import (
	"fmt"

	"github.com/dshills/tribunal/internal/catalog"
	"github.com/dshills/tribunal/internal/logging"
	"github.com/dshills/tribunal/internal/manifest"
	"github.com/dshills/tribunal/internal/review"
)

// Composer evaluates catalog policies against a classified change.
type Composer struct {
	catalog *catalog.Catalog
	log     *logging.Logger
}

// New returns a Composer bound to an immutable catalog snapshot.
func New(cat *catalog.Catalog, log *logging.Logger) *Composer {
	return &Composer{catalog: cat, log: logging.OrNop(log)}
}

// Compose returns the deduplicated manifest sorted by priority descending.
// It reads only its arguments and the catalog.
func (c *Composer) Compose(class review.PRClassification, facts review.PRFacts) ([]review.AgentManifestEntry, error) {
	if c.catalog == nil {
		return nil, fmt.Errorf("compose: no catalog configured")
	}

	paths := facts.Paths()
	var raw []review.AgentManifestEntry
	for _, p := range c.catalog.Policies() {
		matched, err := c.matches(p, class, facts)
		if err != nil {
			return nil, fmt.Errorf("evaluating policy %s: %w", p.ID, err)
		}
		if !matched {
			continue
		}
		scope := c.scope(p, class, paths)
		c.log.Debug("policy matched", "policy", p.ID, "agent", p.Dispatch, "scope_files", len(scope))
		raw = append(raw, review.AgentManifestEntry{
			AgentID:     p.Dispatch,
			Scope:       scope,
			Priority:    p.Priority,
			Rules:       nonNil(c.catalog.RuleIDsForAgent(p.Dispatch)),
			Reason:      p.Description,
			TriggeredBy: p.ID,
		})
	}

	return manifest.SortByPriority(manifest.Dedupe(raw)), nil
}

func (c *Composer) matches(p review.CompositionPolicy, class review.PRClassification, facts review.PRFacts) (bool, error) {
	t := p.Trigger
	switch t.Type {
	case review.TriggerAlways:
		return true, nil
	case review.TriggerDomain:
		return len(matchedDomains(t.Domains, class)) > 0, nil
	case review.TriggerRisk:
		return class.RiskLevel.AtLeast(t.RiskLevel), nil
	case review.TriggerContent:
		return facts.HasDiff() && c.catalog.ContentMatches(p.ID, facts.DiffContent), nil
	default:
		return false, fmt.Errorf("unknown trigger type %q", t.Type)
	}
}

// scope is every changed path, except for domain triggers where it narrows
// to paths matching the matched domains' globs when any are registered.
func (c *Composer) scope(p review.CompositionPolicy, class review.PRClassification, paths []string) []string {
	all := append([]string{}, paths...)
	if p.Trigger.Type != review.TriggerDomain {
		return all
	}
	domains := matchedDomains(p.Trigger.Domains, class)
	if !c.catalog.HasPatterns(domains) {
		return all
	}
	scoped := []string{}
	for _, path := range paths {
		if c.catalog.MatchesAnyDomain(path, domains) {
			scoped = append(scoped, path)
		}
	}
	return scoped
}

func matchedDomains(policyDomains []string, class review.PRClassification) []string {
	var out []string
	for _, d := range policyDomains {
		if class.HasDomain(d) {
			out = append(out, d)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
