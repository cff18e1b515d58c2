package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/tribunal/internal/aggregate"
	"github.com/dshills/tribunal/internal/dispatch"
	"github.com/dshills/tribunal/internal/gapdetect"
	"github.com/dshills/tribunal/internal/logging"
	"github.com/dshills/tribunal/internal/review"
)

// Normalizer produces facts for a diff range.
type Normalizer interface {
	Normalize(ctx context.Context, branch, base string) (review.PRFacts, error)
}

// Classifier assigns type, risk, and domains to a change.
type Classifier interface {
	Classify(ctx context.Context, facts review.PRFacts) (review.PRClassification, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, facts review.PRFacts) (review.PRClassification, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, facts review.PRFacts) (review.PRClassification, error) {
	return f(ctx, facts)
}

// Composer builds the agent manifest.
type Composer interface {
	Compose(class review.PRClassification, facts review.PRFacts) ([]review.AgentManifestEntry, error)
}

// Options wires the stage implementations. Analyzer and Log are optional.
type Options struct {
	Normalizer Normalizer
	Classifier Classifier
	Composer   Composer
	Analyzer   gapdetect.Analyzer
	Launcher   dispatch.Launcher
	Log        *logging.Logger

	// Now and NewRunID default to time.Now and a random UUID.
	Now      func() time.Time
	NewRunID func() string
}

// Orchestrator runs the pipeline.
type Orchestrator struct {
	opts Options
	log  *logging.Logger
}

// Result carries every stage's output for a completed run.
type Result struct {
	Facts          review.PRFacts
	Classification review.PRClassification
	Manifest       []review.AgentManifestEntry
	Report         review.ReviewReport
	Gate           review.GateDecision
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	var missing []string
	if opts.Normalizer == nil {
		missing = append(missing, "normalizer")
	}
	if opts.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if opts.Composer == nil {
		missing = append(missing, "composer")
	}
	if opts.Launcher == nil {
		missing = append(missing, "launcher")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("orchestrator: missing %v", missing)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = func() string { return uuid.New().String() }
	}
	return &Orchestrator{opts: opts, log: logging.OrNop(opts.Log)}, nil
}

// Run executes all six stages for base...branch.
func (o *Orchestrator) Run(ctx context.Context, branch, base string) (*Result, error) {
	runID := o.opts.NewRunID()
	log := o.log.WithRun(runID)
	start := time.Now()
	log.Info("review started", "branch", branch, "base", base)

	facts, err := stage(log, "normalize", func() (review.PRFacts, error) {
		f, err := o.opts.Normalizer.Normalize(ctx, branch, base)
		if err != nil {
			return f, err
		}
		return f, review.ValidateFacts(f)
	})
	if err != nil {
		return nil, err
	}

	class, err := stage(log, "classify", func() (review.PRClassification, error) {
		c, err := o.opts.Classifier.Classify(ctx, facts)
		if err != nil {
			return c, err
		}
		return c, review.ValidateClassification(c)
	})
	if err != nil {
		return nil, err
	}

	composed, err := stage(log, "compose", func() ([]review.AgentManifestEntry, error) {
		m, err := o.opts.Composer.Compose(class, facts)
		if err != nil {
			return nil, err
		}
		return m, review.ValidateManifest("compose", m)
	})
	if err != nil {
		return nil, err
	}

	amended, err := stage(log, "gap-detect", func() (gapdetect.Result, error) {
		res := o.detectGaps(ctx, log, facts, class, composed)
		if err := review.ValidateManifest("gap-detect", res.Manifest); err != nil {
			return res, err
		}
		return res, review.ValidateGaps(res.Gaps)
	})
	if err != nil {
		return nil, err
	}

	results, err := stage(log, "dispatch", func() ([]review.AgentResult, error) {
		r := dispatch.Dispatch(ctx, amended.Manifest, facts, o.opts.Launcher, log.WithStage("dispatch"))
		return r, review.ValidateResults(r, amended.Manifest)
	})
	if err != nil {
		return nil, err
	}

	var gate review.GateDecision
	report, err := stage(log, "aggregate", func() (review.ReviewReport, error) {
		var rep review.ReviewReport
		rep, gate = aggregate.Aggregate(results, amended.Gaps, o.opts.Now())
		rep.RunID = runID
		if err := review.ValidateReport(rep); err != nil {
			return rep, err
		}
		return rep, review.ValidateGate(gate)
	})
	if err != nil {
		return nil, err
	}

	log.Info("review finished",
		"decision", string(gate.Decision),
		"findings", len(report.Findings),
		"agents", report.AgentsDispatched,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Result{
		Facts:          facts,
		Classification: class,
		Manifest:       amended.Manifest,
		Report:         report,
		Gate:           gate,
	}, nil
}

// detectGaps runs the analyzer and falls back to the composed manifest plus
// one zero-confidence gap if it fails or panics.
func (o *Orchestrator) detectGaps(ctx context.Context, log *logging.Logger, facts review.PRFacts, class review.PRClassification, m []review.AgentManifestEntry) (res gapdetect.Result) {
	fallback := func(msg string) gapdetect.Result {
		log.Warn("gap analyzer failed", "stage", "gap-detect", "error", msg)
		out, _ := gapdetect.Detect(ctx, facts, class, m, nil)
		out.Gaps = []review.GapLogEntry{AnalyzerFailure(msg)}
		return out
	}
	defer func() {
		if p := recover(); p != nil {
			res = fallback(fmt.Sprint(p))
		}
	}()

	res, err := gapdetect.Detect(ctx, facts, class, m, o.opts.Analyzer)
	if err != nil {
		return fallback(err.Error())
	}
	return res
}

// AnalyzerFailure is the gap recorded when gap analysis could not run.
func AnalyzerFailure(msg string) review.GapLogEntry {
	return review.GapLogEntry{
		Concern:        "Gap analyzer failed: " + msg,
		Recommendation: "Review coverage manually; the manifest was not amended",
		Confidence:     0,
	}
}

// stage runs fn under a stage-scoped logger. Errors are wrapped with the
// stage name; contract violations keep their *review.ContractError.
func stage[T any](log *logging.Logger, name string, fn func() (T, error)) (T, error) {
	l := log.WithStage(name)
	start := time.Now()
	l.Debug("stage started")
	out, err := fn()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		var cerr *review.ContractError
		if errors.As(err, &cerr) {
			l.Error("contract violation", "problems", cerr.Problems, "duration_ms", elapsed)
			return out, err
		}
		l.Error("stage failed", "error", err.Error(), "duration_ms", elapsed)
		return out, fmt.Errorf("%s: %w", name, err)
	}
	l.Debug("stage finished", "duration_ms", elapsed)
	return out, nil
}
