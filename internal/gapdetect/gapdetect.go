package gapdetect

import (
	"context"

	"github.com/dshills/tribunal/internal/manifest"
	"github.com/dshills/tribunal/internal/review"
)

// Analysis is what an analyzer returns.
type Analysis struct {
	AdditionalAgents []review.AgentManifestEntry
	Gaps             []review.GapLogEntry
}

// Analyzer inspects a manifest for missing coverage.
type Analyzer interface {
	Analyze(ctx context.Context, facts review.PRFacts, class review.PRClassification, m []review.AgentManifestEntry) (Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, facts review.PRFacts, class review.PRClassification, m []review.AgentManifestEntry) (Analysis, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, facts review.PRFacts, class review.PRClassification, m []review.AgentManifestEntry) (Analysis, error) {
	return f(ctx, facts, class, m)
}

// Result is the amended manifest and the gaps to report.
type Result struct {
	Manifest []review.AgentManifestEntry
	Gaps     []review.GapLogEntry
}

// Detect runs analyzer against the manifest. A nil analyzer leaves the
// manifest unchanged with no gaps. Additional agents are merged keeping the
// existing TriggeredBy; agents not yet present are appended. Analyzer errors
// are returned as is.
func Detect(ctx context.Context, facts review.PRFacts, class review.PRClassification, m []review.AgentManifestEntry, analyzer Analyzer) (Result, error) {
	if analyzer == nil {
		return Result{Manifest: manifest.Merge(m, nil, manifest.KeepExisting), Gaps: []review.GapLogEntry{}}, nil
	}

	input := manifest.Merge(m, nil, manifest.KeepExisting)
	analysis, err := analyzer.Analyze(ctx, facts, class, input)
	if err != nil {
		return Result{}, err
	}

	gaps := analysis.Gaps
	if gaps == nil {
		gaps = []review.GapLogEntry{}
	}
	return Result{
		Manifest: manifest.Merge(m, analysis.AdditionalAgents, manifest.KeepExisting),
		Gaps:     gaps,
	}, nil
}
