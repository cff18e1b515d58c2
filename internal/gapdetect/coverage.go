package gapdetect

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/tribunal/internal/manifest"
	"github.com/dshills/tribunal/internal/review"
)

// CoverageAnalyzer flags changed files that no non-universal agent reviews
// and assigns them to a fallback agent.
type CoverageAnalyzer struct {
	// FallbackAgent receives uncovered files. Empty disables the
	// assignment; gaps are still reported.
	FallbackAgent string
	// Rules are attached to the fallback entry.
	Rules []string
	// Ignore lists agent ids whose scope does not count as coverage,
	// typically the universal reviewer that sees every file.
	Ignore []string
	// Priority of the fallback entry.
	Priority int
}

// Analyze implements Analyzer.
func (a CoverageAnalyzer) Analyze(_ context.Context, facts review.PRFacts, _ review.PRClassification, m []review.AgentManifestEntry) (Analysis, error) {
	ignored := make(map[string]bool, len(a.Ignore))
	for _, id := range a.Ignore {
		ignored[id] = true
	}
	var counted []review.AgentManifestEntry
	for _, e := range m {
		if !ignored[e.AgentID] {
			counted = append(counted, e)
		}
	}
	covered := make(map[string]bool)
	for _, p := range manifest.Paths(counted) {
		covered[p] = true
	}

	var uncovered []string
	for _, f := range facts.Files {
		if f.Status == review.StatusDeleted || covered[f.Path] {
			continue
		}
		uncovered = append(uncovered, f.Path)
	}
	if len(uncovered) == 0 {
		return Analysis{}, nil
	}

	gap := review.GapLogEntry{
		Concern:        fmt.Sprintf("%d changed file(s) have no specialized reviewer: %s", len(uncovered), summarize(uncovered, 5)),
		Recommendation: "Add a domain mapping or policy that covers these paths",
		Confidence:     confidence(len(uncovered), len(facts.Files)),
	}
	out := Analysis{Gaps: []review.GapLogEntry{gap}}
	if a.FallbackAgent != "" {
		gap.Recommendation = fmt.Sprintf("Assigned to %s; add a domain mapping or policy that covers these paths", a.FallbackAgent)
		out.Gaps[0] = gap
		out.AdditionalAgents = []review.AgentManifestEntry{{
			AgentID:     a.FallbackAgent,
			Scope:       uncovered,
			Priority:    a.Priority,
			Rules:       append([]string{}, a.Rules...),
			Reason:      "Uncovered files",
			TriggeredBy: "gap-detect",
		}}
	}
	return out, nil
}

func confidence(uncovered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(uncovered) / float64(total)
}

func summarize(paths []string, limit int) string {
	if len(paths) <= limit {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(paths[:limit], ", "), len(paths)-limit)
}
