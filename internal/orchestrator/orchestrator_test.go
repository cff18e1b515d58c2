package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/tribunal/internal/catalog"
	"github.com/dshills/tribunal/internal/compose"
	"github.com/dshills/tribunal/internal/dispatch"
	"github.com/dshills/tribunal/internal/gapdetect"
	"github.com/dshills/tribunal/internal/review"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type normalizerFunc func(ctx context.Context, branch, base string) (review.PRFacts, error)

func (f normalizerFunc) Normalize(ctx context.Context, branch, base string) (review.PRFacts, error) {
	return f(ctx, branch, base)
}

type composerFunc func(review.PRClassification, review.PRFacts) ([]review.AgentManifestEntry, error)

func (f composerFunc) Compose(c review.PRClassification, p review.PRFacts) ([]review.AgentManifestEntry, error) {
	return f(c, p)
}

// recorder tracks which stages ran and in what order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func testFacts() review.PRFacts {
	return review.PRFacts{
		Branch:     "feature",
		BaseBranch: "main",
		Files: []review.FileChange{
			{Path: "lib/helpers/money.ts", Additions: 10, Deletions: 2, Status: review.StatusModified},
			{Path: "README.md", Additions: 1, Status: review.StatusModified},
		},
		TotalAdditions: 11,
		TotalDeletions: 2,
		Commits:        []review.CommitInfo{{SHA: "abc123", Message: "feat: rounding", Author: "dev"}},
		DiffContent:    "diff --git a/lib/helpers/money.ts b/lib/helpers/money.ts\n",
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Data{
		Agents: []review.AgentSpec{{ID: "build-reviewer"}, {ID: "finance-reviewer"}},
		Rules: []review.ReviewRule{
			{ID: "U-TYPE-1", Agent: "build-reviewer"},
			{ID: "D-FIN-1", Agent: "finance-reviewer"},
		},
		Policies: []review.CompositionPolicy{
			{ID: "P-ALL", Trigger: review.Trigger{Type: review.TriggerAlways}, Dispatch: "build-reviewer", Priority: 50, Description: "universal"},
			{ID: "P-FIN", Trigger: review.Trigger{Type: review.TriggerDomain, Domains: []string{"financial"}}, Dispatch: "finance-reviewer", Priority: 80, Description: "financial"},
		},
		Domains: []review.DomainMapping{{Domain: "financial", Patterns: []string{"**/money*"}}},
	}, "test")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func intPtr(n int) *int { return &n }

func baseOptions(t *testing.T, rec *recorder) Options {
	return Options{
		Normalizer: normalizerFunc(func(_ context.Context, branch, base string) (review.PRFacts, error) {
			rec.add("normalize")
			return testFacts(), nil
		}),
		Classifier: ClassifierFunc(func(_ context.Context, facts review.PRFacts) (review.PRClassification, error) {
			rec.add("classify")
			return review.PRClassification{
				Type: "feature", RiskLevel: review.RiskMedium, RiskScore: 0.4,
				Domains: []string{"financial"}, Scope: "lib", FilesChanged: 2, LinesChanged: 13,
			}, nil
		}),
		Composer: composerFunc(func(c review.PRClassification, f review.PRFacts) ([]review.AgentManifestEntry, error) {
			rec.add("compose")
			return compose.New(testCatalog(t), nil).Compose(c, f)
		}),
		Launcher: dispatch.LauncherFunc(func(_ context.Context, e review.AgentManifestEntry, _ review.PRFacts) (review.AgentResult, error) {
			rec.add("launch:" + e.AgentID)
			findings := []review.ReviewFinding{
				{RuleID: "U-TYPE-1", Agent: e.AgentID, Severity: review.SeverityMajor, File: "lib/helpers/money.ts", Line: intPtr(10), Message: "any cast"},
			}
			return review.AgentResult{AgentID: e.AgentID, Status: review.AgentSuccess, Findings: findings, DurationMs: 3}, nil
		}),
		Now:      func() time.Time { return fixedNow },
		NewRunID: func() string { return "run-1" },
	}
}

func TestRunHappyPath(t *testing.T) {
	rec := &recorder{}
	o, err := New(baseOptions(t, rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := o.Run(context.Background(), "feature", "main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := strings.Join(rec.calls[:3], ","); got != "normalize,classify,compose" {
		t.Errorf("stage order = %s", got)
	}
	if len(rec.calls) != 5 {
		t.Errorf("calls = %v", rec.calls)
	}
	if len(res.Manifest) != 2 || res.Manifest[0].AgentID != "finance-reviewer" {
		t.Errorf("manifest = %+v", res.Manifest)
	}
	r := res.Report
	if r.RunID != "run-1" || !r.Timestamp.Equal(fixedNow) {
		t.Errorf("report id/time = %s %v", r.RunID, r.Timestamp)
	}
	if len(r.Findings) != 1 || r.Deduplicated != 1 {
		t.Errorf("findings = %d, deduplicated = %d", len(r.Findings), r.Deduplicated)
	}
	if r.AgentsDispatched != 2 || r.AgentsCompleted != 2 {
		t.Errorf("dispatched=%d completed=%d", r.AgentsDispatched, r.AgentsCompleted)
	}
	if len(r.Gaps) != 0 {
		t.Errorf("gaps = %+v", r.Gaps)
	}
	if res.Gate.Decision != review.DecisionNeedsFixes || res.Gate.Summary != "1 major finding found" {
		t.Errorf("gate = %+v", res.Gate)
	}
}

func TestRunAnalyzerFailureFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		analyzer gapdetect.AnalyzerFunc
		wantMsg  string
	}{
		{
			name: "error",
			analyzer: func(context.Context, review.PRFacts, review.PRClassification, []review.AgentManifestEntry) (gapdetect.Analysis, error) {
				return gapdetect.Analysis{}, errors.New("model offline")
			},
			wantMsg: "Gap analyzer failed: model offline",
		},
		{
			name: "panic",
			analyzer: func(context.Context, review.PRFacts, review.PRClassification, []review.AgentManifestEntry) (gapdetect.Analysis, error) {
				panic("index out of range")
			},
			wantMsg: "Gap analyzer failed: index out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			opts := baseOptions(t, rec)
			opts.Analyzer = tt.analyzer
			o, err := New(opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			res, err := o.Run(context.Background(), "feature", "main")
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(res.Report.Gaps) != 1 {
				t.Fatalf("gaps = %+v", res.Report.Gaps)
			}
			g := res.Report.Gaps[0]
			if g.Concern != tt.wantMsg || g.Confidence != 0 {
				t.Errorf("gap = %+v", g)
			}
			if len(res.Manifest) != 2 {
				t.Errorf("manifest = %+v", res.Manifest)
			}
			if res.Report.AgentsDispatched != 2 {
				t.Errorf("dispatch did not run after analyzer failure")
			}
		})
	}
}

func TestRunAnalyzerAmendsManifest(t *testing.T) {
	rec := &recorder{}
	opts := baseOptions(t, rec)
	opts.Analyzer = gapdetect.AnalyzerFunc(func(_ context.Context, _ review.PRFacts, _ review.PRClassification, m []review.AgentManifestEntry) (gapdetect.Analysis, error) {
		return gapdetect.Analysis{
			AdditionalAgents: []review.AgentManifestEntry{{AgentID: "docs-reviewer", Scope: []string{"README.md"}, Priority: 10, Rules: []string{}, Reason: "docs", TriggeredBy: "gap-detect"}},
			Gaps:             []review.GapLogEntry{{Concern: "docs untouched", Recommendation: "add docs reviewer", Confidence: 0.7}},
		}, nil
	})
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := o.Run(context.Background(), "feature", "main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Manifest) != 3 || res.Manifest[2].AgentID != "docs-reviewer" {
		t.Errorf("manifest = %+v", res.Manifest)
	}
	if len(res.Report.Gaps) != 1 || res.Report.Gaps[0].Confidence != 0.7 {
		t.Errorf("gaps = %+v", res.Report.Gaps)
	}
}

func TestRunFatalErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		mutate func(*Options)
		prefix string
	}{
		{"normalize", func(o *Options) {
			o.Normalizer = normalizerFunc(func(context.Context, string, string) (review.PRFacts, error) {
				return review.PRFacts{}, boom
			})
		}, "normalize: "},
		{"classify", func(o *Options) {
			o.Classifier = ClassifierFunc(func(context.Context, review.PRFacts) (review.PRClassification, error) {
				return review.PRClassification{}, boom
			})
		}, "classify: "},
		{"compose", func(o *Options) {
			o.Composer = composerFunc(func(review.PRClassification, review.PRFacts) ([]review.AgentManifestEntry, error) {
				return nil, boom
			})
		}, "compose: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			opts := baseOptions(t, rec)
			tt.mutate(&opts)
			o, err := New(opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			res, err := o.Run(context.Background(), "feature", "main")
			if res != nil {
				t.Error("expected no result")
			}
			if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("err = %v", err)
			}
			for _, c := range rec.calls {
				if strings.HasPrefix(c, "launch:") {
					t.Errorf("dispatch ran after fatal %s error", tt.name)
				}
			}
		})
	}
}

func TestRunContractViolation(t *testing.T) {
	rec := &recorder{}
	opts := baseOptions(t, rec)
	opts.Composer = composerFunc(func(review.PRClassification, review.PRFacts) ([]review.AgentManifestEntry, error) {
		e := review.AgentManifestEntry{AgentID: "dup", Scope: []string{"a"}, Rules: []string{}, TriggeredBy: "P"}
		return []review.AgentManifestEntry{e, e}, nil
	})
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = o.Run(context.Background(), "feature", "main")
	if !errors.Is(err, review.ErrContractViolation) {
		t.Fatalf("err = %v, want contract violation", err)
	}
	var cerr *review.ContractError
	if !errors.As(err, &cerr) || cerr.Stage != "compose" {
		t.Errorf("contract error = %+v", cerr)
	}
}

func TestRunInvalidFacts(t *testing.T) {
	rec := &recorder{}
	opts := baseOptions(t, rec)
	opts.Normalizer = normalizerFunc(func(context.Context, string, string) (review.PRFacts, error) {
		f := testFacts()
		f.TotalAdditions = 999
		return f, nil
	})
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := o.Run(context.Background(), "feature", "main"); !errors.Is(err, review.ErrContractViolation) {
		t.Errorf("err = %v", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("later stages ran: %v", rec.calls)
	}
}

func TestRunLaunchFailuresDoNotAbort(t *testing.T) {
	rec := &recorder{}
	opts := baseOptions(t, rec)
	opts.Launcher = dispatch.LauncherFunc(func(_ context.Context, e review.AgentManifestEntry, _ review.PRFacts) (review.AgentResult, error) {
		if e.AgentID == "finance-reviewer" {
			return review.AgentResult{}, errors.New("agent finance-reviewer timed out after 1s")
		}
		return review.AgentResult{AgentID: e.AgentID, Status: review.AgentSuccess, Findings: []review.ReviewFinding{}}, nil
	})
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := o.Run(context.Background(), "feature", "main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Report.AgentsCompleted != 1 || res.Report.AgentResults[0].Status != review.AgentTimeout {
		t.Errorf("results = %+v", res.Report.AgentResults)
	}
	if res.Gate.Decision != review.DecisionPass {
		t.Errorf("gate = %+v", res.Gate)
	}
}

func TestNewRequiresStages(t *testing.T) {
	if _, err := New(Options{}); err == nil || !strings.Contains(err.Error(), "normalizer") {
		t.Errorf("err = %v", err)
	}
}

func TestDefaultRunID(t *testing.T) {
	rec := &recorder{}
	opts := baseOptions(t, rec)
	opts.NewRunID = nil
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := o.Run(context.Background(), "feature", "main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Report.RunID) != 36 {
		t.Errorf("RunID = %q, want a uuid", res.Report.RunID)
	}
}
