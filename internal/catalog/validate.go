package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/tribunal/internal/pathglob"
	"github.com/dshills/tribunal/internal/review"
)

var (
	universalRuleID = regexp.MustCompile(`^U-[A-Z0-9]+(-[A-Z0-9]+)*$`)
	domainRuleID    = regexp.MustCompile(`^D-[A-Z]+-[A-Z0-9]+(-[A-Z0-9]+)*$`)
)

// ValidationError lists every structural problem found in a catalog.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid catalog %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

func (c *Catalog) validateAndCompile() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for i, a := range c.agents {
		switch {
		case a.ID == "":
			add("agents[%d]: id is required", i)
			continue
		case a.TimeoutSeconds < 0:
			add("agent %s: timeoutSeconds must not be negative", a.ID)
		}
		if _, dup := c.agentIndex[a.ID]; dup {
			add("agent %s: duplicate id", a.ID)
			continue
		}
		c.agentIndex[a.ID] = i
	}

	ruleIDs := make(map[string]bool, len(c.rules))
	for i, r := range c.rules {
		if r.ID == "" {
			add("rules[%d]: id is required", i)
			continue
		}
		if ruleIDs[r.ID] {
			add("rule %s: duplicate id", r.ID)
		}
		ruleIDs[r.ID] = true
		if !universalRuleID.MatchString(r.ID) && !domainRuleID.MatchString(r.ID) {
			add("rule %s: id must start with U- or D-<CODE>-", r.ID)
		}
		if _, ok := c.agentIndex[r.Agent]; !ok {
			add("rule %s: unknown agent %q", r.ID, r.Agent)
		}
		if r.Severity != "" && !r.Severity.IsValid() {
			add("rule %s: invalid severity %q", r.ID, r.Severity)
		}
	}

	knownDomains := make(map[string]bool, len(c.domains))
	for i, m := range c.domains {
		if m.Domain == "" {
			add("domains[%d]: domain is required", i)
			continue
		}
		if knownDomains[m.Domain] {
			add("domain %s: duplicate mapping", m.Domain)
		}
		knownDomains[m.Domain] = true
		for _, p := range m.Patterns {
			globs, err := pathglob.Compile(p)
			if err != nil {
				add("domain %s: invalid glob %q: %v", m.Domain, p, err)
				continue
			}
			c.domainGlobs[m.Domain] = append(c.domainGlobs[m.Domain], globs...)
		}
	}

	policyIDs := make(map[string]bool, len(c.policies))
	for i, p := range c.policies {
		if p.ID == "" {
			add("policies[%d]: id is required", i)
			continue
		}
		if policyIDs[p.ID] {
			add("policy %s: duplicate id", p.ID)
		}
		policyIDs[p.ID] = true
		if _, ok := c.agentIndex[p.Dispatch]; !ok {
			add("policy %s: unknown dispatch agent %q", p.ID, p.Dispatch)
		}
		switch p.Trigger.Type {
		case review.TriggerAlways:
		case review.TriggerDomain:
			if len(p.Trigger.Domains) == 0 {
				add("policy %s: domain trigger needs at least one domain", p.ID)
			}
		case review.TriggerRisk:
			if !p.Trigger.RiskLevel.IsValid() {
				add("policy %s: invalid risk level %q", p.ID, p.Trigger.RiskLevel)
			}
		case review.TriggerContent:
			if p.Trigger.Pattern == "" {
				add("policy %s: content trigger needs a pattern", p.ID)
				break
			}
			re, err := regexp.Compile(p.Trigger.Pattern)
			if err != nil {
				add("policy %s: invalid pattern: %v", p.ID, err)
				break
			}
			c.content[p.ID] = re
		default:
			add("policy %s: unknown trigger type %q", p.ID, p.Trigger.Type)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Source: c.source, Problems: problems}
	}
	return nil
}
