package manifest

import (
	"sort"
	"strings"

	"github.com/dshills/tribunal/internal/review"
)

// TriggerPolicy selects which TriggeredBy survives when two entries for the
// same agent are merged.
type TriggerPolicy int

const (
	// PreferHigherPriority keeps TriggeredBy from the entry with the higher
	// priority. Ties keep the existing entry's value.
	PreferHigherPriority TriggerPolicy = iota
	// KeepExisting always keeps the existing entry's TriggeredBy.
	KeepExisting
)

// MergeEntry combines two entries for the same agent. Scope and rule lists
// are unioned in first-seen order, priority is the max, and reasons are
// joined with "; " unless one already contains the other. Neither input is
// modified.
func MergeEntry(existing, incoming review.AgentManifestEntry, policy TriggerPolicy) review.AgentManifestEntry {
	out := existing.Clone()
	out.Scope = union(out.Scope, incoming.Scope)
	out.Rules = union(out.Rules, incoming.Rules)

	if policy == PreferHigherPriority && incoming.Priority > existing.Priority {
		out.TriggeredBy = incoming.TriggeredBy
	}
	if incoming.Priority > out.Priority {
		out.Priority = incoming.Priority
	}

	switch {
	case incoming.Reason == "" || strings.Contains(out.Reason, incoming.Reason):
	case out.Reason == "":
		out.Reason = incoming.Reason
	default:
		out.Reason = out.Reason + "; " + incoming.Reason
	}
	return out
}

// Merge folds incoming into base by agent id. Agents already in base are
// merged in place; new agents are appended in incoming order. The result is
// a fresh slice.
func Merge(base, incoming []review.AgentManifestEntry, policy TriggerPolicy) []review.AgentManifestEntry {
	out := make([]review.AgentManifestEntry, 0, len(base)+len(incoming))
	index := make(map[string]int, len(base)+len(incoming))
	add := func(e review.AgentManifestEntry) {
		if i, ok := index[e.AgentID]; ok {
			out[i] = MergeEntry(out[i], e, policy)
			return
		}
		index[e.AgentID] = len(out)
		out = append(out, e.Clone())
	}
	for _, e := range base {
		add(e)
	}
	for _, e := range incoming {
		add(e)
	}
	return out
}

// Dedupe collapses entries with the same agent id, keeping the position of
// each agent's first occurrence.
func Dedupe(entries []review.AgentManifestEntry) []review.AgentManifestEntry {
	return Merge(nil, entries, PreferHigherPriority)
}

// SortByPriority returns a copy of entries ordered by priority descending.
// Equal priorities keep their relative order.
func SortByPriority(entries []review.AgentManifestEntry) []review.AgentManifestEntry {
	out := make([]review.AgentManifestEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Paths returns the union of all entry scopes in first-seen order.
func Paths(entries []review.AgentManifestEntry) []string {
	var all []string
	for _, e := range entries {
		all = union(all, e.Scope)
	}
	return all
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
