package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/tribunal/internal/cache"
	"github.com/dshills/tribunal/internal/catalog"
	"github.com/dshills/tribunal/internal/gitctx"
	"github.com/dshills/tribunal/internal/llm"
	"github.com/dshills/tribunal/internal/logging"
	"github.com/dshills/tribunal/internal/redact"
	"github.com/dshills/tribunal/internal/review"
)

// DefaultTimeout applies when neither the launcher nor the agent sets one.
const DefaultTimeout = 2 * time.Minute

const maxTokens = 8192

// Options configures a Launcher. Client and Catalog are required.
type Options struct {
	Catalog *catalog.Catalog
	Client  llm.Client
	// NewClient builds a client for agents whose registry entry names a
	// different model. Nil ignores per-agent models.
	NewClient func(model string) (llm.Client, error)
	Cache     *cache.Cache
	Redact    *redact.Policy
	// Timeout overrides each agent's timeoutSeconds when positive.
	Timeout     time.Duration
	MaxFindings int
	Log         *logging.Logger
}

// Launcher runs reviewer agents through a language model.
type Launcher struct {
	opts Options
	log  *logging.Logger
}

// New returns a Launcher.
func New(opts Options) (*Launcher, error) {
	if opts.Catalog == nil {
		return nil, errors.New("agent launcher: catalog is required")
	}
	if opts.Client == nil {
		return nil, errors.New("agent launcher: client is required")
	}
	return &Launcher{opts: opts, log: logging.OrNop(opts.Log)}, nil
}

// timeoutFor prefers the configured timeout over the agent's own.
func (l *Launcher) timeoutFor(spec review.AgentSpec) time.Duration {
	switch {
	case l.opts.Timeout > 0:
		return l.opts.Timeout
	case spec.TimeoutSeconds > 0:
		return time.Duration(spec.TimeoutSeconds) * time.Second
	default:
		return DefaultTimeout
	}
}

// Launch implements dispatch.Launcher.
func (l *Launcher) Launch(ctx context.Context, entry review.AgentManifestEntry, facts review.PRFacts) (review.AgentResult, error) {
	start := time.Now()
	log := l.log.WithAgent(entry.AgentID)

	spec, ok := l.opts.Catalog.Agent(entry.AgentID)
	if !ok {
		spec = review.AgentSpec{ID: entry.AgentID}
	}
	timeout := l.timeoutFor(spec)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	diff, err := l.scopedDiff(facts, entry.Scope)
	if err != nil {
		return review.AgentResult{}, err
	}
	if strings.TrimSpace(diff) == "" {
		log.Debug("nothing to review in scope")
		return success(entry.AgentID, nil, start), nil
	}

	client, err := l.clientFor(spec)
	if err != nil {
		return review.AgentResult{}, err
	}

	rules := l.rules(entry.Rules)
	ruleList := make([]review.ReviewRule, 0, len(entry.Rules))
	for _, id := range entry.Rules {
		if r, ok := rules[id]; ok {
			ruleList = append(ruleList, r)
		}
	}
	req := llm.Request{
		System:    SystemPrompt(spec),
		Prompt:    UserPrompt(entry, ruleList, facts, diff, l.opts.MaxFindings),
		MaxTokens: maxTokens,
	}

	key := cache.Key(entry.AgentID, client.Model(), req.System+"\x00"+req.Prompt)
	if l.opts.Cache != nil {
		if cached, hit := l.opts.Cache.Get(key); hit {
			if findings, err := parseFindings(cached, entry.AgentID, rules); err == nil {
				log.Debug("cache hit", "findings", len(findings))
				return success(entry.AgentID, l.limit(findings), start), nil
			}
		}
	}

	// The model call runs in its own goroutine so a client that ignores
	// ctx still cannot hold the launch past its deadline.
	done := make(chan outcome, 1)
	go func() {
		content, findings, err := l.complete(ctx, client, req, entry.AgentID, rules)
		done <- outcome{content, findings, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}
	if out.err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return review.AgentResult{}, fmt.Errorf("agent %s timed out after %s", entry.AgentID, timeout)
		}
		return review.AgentResult{}, fmt.Errorf("agent %s: %w", entry.AgentID, out.err)
	}
	content, findings := out.content, out.findings
	if l.opts.Cache != nil {
		if err := l.opts.Cache.Put(key, entry.AgentID, client.Model(), content); err != nil {
			log.Warn("cache write failed", "error", err.Error())
		}
	}
	return success(entry.AgentID, l.limit(findings), start), nil
}

type outcome struct {
	content  string
	findings []review.ReviewFinding
	err      error
}

// complete asks the model and parses its reply, with one repair pass.
func (l *Launcher) complete(ctx context.Context, client llm.Client, req llm.Request, agentID string, rules map[string]review.ReviewRule) (string, []review.ReviewFinding, error) {
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("model request: %w", err)
	}
	findings, err := parseFindings(resp.Content, agentID, rules)
	if err == nil {
		return resp.Content, findings, nil
	}

	l.log.WithAgent(agentID).Debug("repairing model response", "error", err.Error())
	repair := llm.Request{System: req.System, Prompt: repairPrompt(err, resp.Content), MaxTokens: req.MaxTokens}
	resp2, err2 := client.Complete(ctx, repair)
	if err2 != nil {
		return "", nil, fmt.Errorf("repair pass failed: %w (original error: %w)", err2, err)
	}
	findings, err = parseFindings(resp2.Content, agentID, rules)
	if err != nil {
		return "", nil, fmt.Errorf("response validation failed after repair: %w", err)
	}
	return resp2.Content, findings, nil
}

// scopedDiff narrows the raw diff to scope and applies the redaction
// policy file by file. Binary sections are replaced by a marker.
func (l *Launcher) scopedDiff(facts review.PRFacts, scope []string) (string, error) {
	if !facts.HasDiff() {
		return "", nil
	}
	scoped, err := gitctx.ScopeDiff(facts.DiffContent, scope)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	redactions := 0
	for _, sec := range scoped.Sections {
		if sec.Binary {
			fmt.Fprintf(&b, "Binary file %s changed\n", sec.Path)
			continue
		}
		text, n := l.opts.Redact.Apply(sec.Path, sec.Text)
		redactions += n
		b.WriteString(text)
	}
	if redactions > 0 {
		l.log.Info("redacted diff content", "redactions", redactions)
	}
	return b.String(), nil
}

func (l *Launcher) clientFor(spec review.AgentSpec) (llm.Client, error) {
	if spec.Model == "" || spec.Model == l.opts.Client.Model() || l.opts.NewClient == nil {
		return l.opts.Client, nil
	}
	c, err := l.opts.NewClient(spec.Model)
	if err != nil {
		return nil, fmt.Errorf("creating client for agent %s: %w", spec.ID, err)
	}
	return c, nil
}

func (l *Launcher) rules(ids []string) map[string]review.ReviewRule {
	out := make(map[string]review.ReviewRule, len(ids))
	for _, id := range ids {
		if r, ok := l.opts.Catalog.Rule(id); ok {
			out[id] = r
		}
	}
	return out
}

func (l *Launcher) limit(findings []review.ReviewFinding) []review.ReviewFinding {
	if l.opts.MaxFindings > 0 && len(findings) > l.opts.MaxFindings {
		return findings[:l.opts.MaxFindings]
	}
	return findings
}

func success(agentID string, findings []review.ReviewFinding, start time.Time) review.AgentResult {
	if findings == nil {
		findings = []review.ReviewFinding{}
	}
	return review.AgentResult{
		AgentID:    agentID,
		Status:     review.AgentSuccess,
		Findings:   findings,
		DurationMs: time.Since(start).Milliseconds(),
	}
}
