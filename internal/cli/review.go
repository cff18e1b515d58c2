package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/agent"
	"github.com/dshills/tribunal/internal/cache"
	"github.com/dshills/tribunal/internal/catalog"
	"github.com/dshills/tribunal/internal/classify"
	"github.com/dshills/tribunal/internal/compose"
	"github.com/dshills/tribunal/internal/config"
	"github.com/dshills/tribunal/internal/gapdetect"
	"github.com/dshills/tribunal/internal/gitctx"
	"github.com/dshills/tribunal/internal/llm"
	"github.com/dshills/tribunal/internal/logging"
	"github.com/dshills/tribunal/internal/orchestrator"
	"github.com/dshills/tribunal/internal/output"
	"github.com/dshills/tribunal/internal/redact"
	"github.com/dshills/tribunal/internal/review"
)

// Review flags
var (
	flagBase        string
	flagProvider    string
	flagModel       string
	flagFormat      string
	flagOut         string
	flagFailOn      string
	flagCatalog     string
	flagMaxFindings int
	flagTimeout     int
	flagNoRedact    bool
	flagNoCache     bool
	flagNoGaps      bool
	flagPR          int
	flagInline      bool
)

const fallbackPriority = 10

func buildOverrides() map[string]any {
	m := make(map[string]any)
	if flagBase != "" {
		m["base_branch"] = flagBase
	}
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["fail_on"] = flagFailOn
	}
	if flagCatalog != "" {
		m["catalog_dir"] = flagCatalog
	}
	if flagMaxFindings > 0 {
		m["max_findings_per_agent"] = flagMaxFindings
	}
	if flagTimeout > 0 {
		m["agent_timeout_seconds"] = flagTimeout
	}
	if flagNoRedact {
		m["privacy.redact_secrets"] = false
	}
	if flagNoCache {
		m["cache.enabled"] = false
	}
	if flagNoGaps {
		m["gaps.enabled"] = false
	}
	return m
}

var reviewCmd = &cobra.Command{
	Use:   "review <branch>",
	Short: "Review a branch against its base",
	Long: "Run the review pipeline over base...branch: classify the change, " +
		"compose and dispatch reviewer agents, and gate on the aggregated findings.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			fail(ExitUsageError, "%v", err)
			return nil
		}
		runReview(cmd.Context(), args[0], cfg)
		return nil
	},
}

func runReview(ctx context.Context, branch string, cfg config.Config) {
	if !cfg.Privacy.RedactSecrets {
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}

	log, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fail(ExitRuntimeError, "%v", err)
		return
	}
	defer log.Close()

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		fail(ExitUsageError, "%v", err)
		return
	}

	client, err := llm.New(cfg.Provider, cfg.Model)
	if err != nil {
		if llm.IsAuthError(err) {
			fail(ExitAuthError, "%v", err)
			return
		}
		fail(ExitUsageError, "%v", err)
		return
	}

	orch, err := buildOrchestrator(cfg, cat, client, gitctx.ExecRunner{}, log)
	if err != nil {
		fail(ExitRuntimeError, "%v", err)
		return
	}

	res, err := orch.Run(ctx, branch, cfg.BaseBranch)
	if err != nil {
		fail(ExitRuntimeError, "%v", err)
		return
	}

	doc := output.Document{
		Branch:  branch,
		Base:    cfg.BaseBranch,
		Version: version,
		Report:  res.Report,
		Gate:    res.Gate,
		Rules:   ruleIndex(cat),
	}
	if err := output.WriteReport(doc, cfg.Format, flagOut); err != nil {
		fail(ExitRuntimeError, "writing output: %v", err)
		return
	}

	if flagPR > 0 {
		if err := publishReport(ctx, cfg, flagPR, doc, res.Facts); err != nil {
			code := ExitRuntimeError
			if errors.Is(err, errGitHubAuth) {
				code = ExitAuthError
			}
			fail(code, "%v", err)
			return
		}
	}

	exitCode = gateExitCode(res.Report.Findings, cfg.FailOn)
}

// buildOrchestrator wires every pipeline stage from cfg and cat.
func buildOrchestrator(cfg config.Config, cat *catalog.Catalog, client llm.Client, runner gitctx.Runner, log *logging.Logger) (*orchestrator.Orchestrator, error) {
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, err
	}
	policy, err := redact.NewPolicy(cfg.Privacy.RedactSecrets, cfg.Privacy.RedactPaths)
	if err != nil {
		return nil, err
	}
	launcher, err := agent.New(agent.Options{
		Catalog: cat,
		Client:  client,
		NewClient: func(model string) (llm.Client, error) {
			return llm.New(cfg.Provider, model)
		},
		Cache:       c,
		Redact:      policy,
		Timeout:     time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		MaxFindings: cfg.MaxFindingsPerAgent,
		Log:         log.WithStage("dispatch"),
	})
	if err != nil {
		return nil, err
	}

	var analyzer gapdetect.Analyzer
	if cfg.Gaps.Enabled {
		analyzer = coverageAnalyzer(cat, cfg.Gaps.FallbackAgent, log)
	}

	return orchestrator.New(orchestrator.Options{
		Normalizer: gitctx.NewNormalizer(runner, log.WithStage("normalize")),
		Classifier: classify.New(cat, nil),
		Composer:   compose.New(cat, log.WithStage("compose")),
		Analyzer:   analyzer,
		Launcher:   launcher,
		Log:        log,
	})
}

// coverageAnalyzer ignores agents dispatched by always-policies, since they
// see every file.
func coverageAnalyzer(cat *catalog.Catalog, fallback string, log *logging.Logger) gapdetect.CoverageAnalyzer {
	a := gapdetect.CoverageAnalyzer{Priority: fallbackPriority}
	for _, p := range cat.Policies() {
		if p.Trigger.Type == review.TriggerAlways {
			a.Ignore = append(a.Ignore, p.Dispatch)
		}
	}
	if fallback == "" {
		return a
	}
	if _, ok := cat.Agent(fallback); !ok {
		log.Warn("fallback agent not in catalog, gaps will only be reported", "agent", fallback)
		return a
	}
	a.FallbackAgent = fallback
	a.Rules = cat.RuleIDsForAgent(fallback)
	return a
}

func ruleIndex(cat *catalog.Catalog) map[string]review.ReviewRule {
	rules := cat.Rules()
	m := make(map[string]review.ReviewRule, len(rules))
	for _, r := range rules {
		m[r.ID] = r
	}
	return m
}

// gateExitCode returns ExitFindings when any finding is at or above failOn.
func gateExitCode(findings []review.ReviewFinding, failOn string) int {
	if failOn == "" || failOn == "none" {
		return ExitSuccess
	}
	threshold := review.Severity(failOn)
	for _, f := range findings {
		if f.Severity.Precedence() <= threshold.Precedence() {
			return ExitFindings
		}
	}
	return ExitSuccess
}

func init() {
	f := reviewCmd.Flags()
	f.StringVar(&flagBase, "base", "", "Base branch (default from config, usually main)")
	f.StringVar(&flagProvider, "provider", "", "LLM provider (anthropic, openai, ollama, lmstudio)")
	f.StringVar(&flagModel, "model", "", "Model name")
	f.StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	f.StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	f.StringVar(&flagFailOn, "fail-on", "", "Exit 1 on findings at or above severity (none, critical, major, warning, info)")
	f.StringVar(&flagCatalog, "catalog", "", "Catalog directory (default: built-in catalog)")
	f.IntVar(&flagMaxFindings, "max-findings", 0, "Maximum findings per agent")
	f.IntVar(&flagTimeout, "timeout", 0, "Per-agent timeout in seconds, overriding the catalog (default: each agent's own)")
	f.BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	f.BoolVar(&flagNoCache, "no-cache", false, "Disable the response cache")
	f.BoolVar(&flagNoGaps, "no-gaps", false, "Disable coverage gap detection")
	f.IntVar(&flagPR, "pr", 0, "Publish the markdown report as a comment on this pull request")
	f.BoolVar(&flagInline, "inline", false, "With --pr, also post findings as inline review comments")
}
