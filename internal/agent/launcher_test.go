package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/tribunal/internal/cache"
	"github.com/dshills/tribunal/internal/catalog"
	"github.com/dshills/tribunal/internal/dispatch"
	"github.com/dshills/tribunal/internal/llm"
	"github.com/dshills/tribunal/internal/redact"
	"github.com/dshills/tribunal/internal/review"
)

const testDiff = `diff --git a/lib/money.ts b/lib/money.ts
index 1111111..2222222 100644
--- a/lib/money.ts
+++ b/lib/money.ts
@@ -1,2 +1,3 @@
 export function total(a: number, b: number) {
+  const password = "hunter2-hunter2";
   return a + b;
diff --git a/README.md b/README.md
index 3333333..4444444 100644
--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 # Project
+More docs.
`

// fakeClient records prompts and replies from a queue.
type fakeClient struct {
	mu      sync.Mutex
	model   string
	replies []string
	err     error
	block   bool
	prompts []llm.Request
}

func (f *fakeClient) Name() string  { return "fake" }
func (f *fakeClient) Model() string { return f.model }

func (f *fakeClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req)
	f.mu.Unlock()
	if f.block {
		// Ignores ctx on purpose.
		time.Sleep(time.Minute)
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return llm.Response{Content: "[]"}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return llm.Response{Content: r}, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Data{
		Agents: []review.AgentSpec{
			{ID: "finance-reviewer", Name: "Finance Reviewer", Description: "Reviews money handling."},
			{ID: "other-model", Model: "bigger-model"},
		},
		Rules: []review.ReviewRule{
			{ID: "D-FIN-1", Agent: "finance-reviewer", Title: "No floating point money", Severity: review.SeverityCritical, Category: "correctness"},
		},
	}, "test")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func testEntry() review.AgentManifestEntry {
	return review.AgentManifestEntry{
		AgentID:     "finance-reviewer",
		Scope:       []string{"lib/money.ts"},
		Priority:    80,
		Rules:       []string{"D-FIN-1"},
		Reason:      "Financial code changed",
		TriggeredBy: "P-FIN",
	}
}

func testFacts() review.PRFacts {
	return review.PRFacts{
		Branch: "feature", BaseBranch: "main",
		Files: []review.FileChange{
			{Path: "lib/money.ts", Additions: 1, Status: review.StatusModified},
			{Path: "README.md", Additions: 1, Status: review.StatusModified},
		},
		TotalAdditions: 2,
		Commits:        []review.CommitInfo{{SHA: "abc", Message: "feat: totals", Author: "dev"}},
		DiffContent:    testDiff,
	}
}

func newLauncher(t *testing.T, client llm.Client, mutate func(*Options)) *Launcher {
	t.Helper()
	policy, err := redact.NewPolicy(true, nil)
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Catalog: testCatalog(t), Client: client, Redact: policy}
	if mutate != nil {
		mutate(&opts)
	}
	l, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestLaunchSuccess(t *testing.T) {
	client := &fakeClient{model: "m", replies: []string{
		`[{"ruleId":"D-FIN-1","severity":"high","file":"lib/money.ts","line":2,"message":"float math"},
		  {"ruleId":"D-FIN-1","file":"","message":"no file"}]`,
	}}
	l := newLauncher(t, client, nil)
	res, err := l.Launch(context.Background(), testEntry(), testFacts())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if res.Status != review.AgentSuccess || res.AgentID != "finance-reviewer" || res.Error != "" {
		t.Errorf("result = %+v", res)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("findings = %+v", res.Findings)
	}
	f := res.Findings[0]
	if f.Severity != review.SeverityMajor || f.Agent != "finance-reviewer" || f.Line == nil || *f.Line != 2 || f.Category != "correctness" {
		t.Errorf("finding = %+v", f)
	}

	prompt := client.prompts[0]
	if strings.Contains(prompt.Prompt, "README.md b/README.md") {
		t.Error("out-of-scope file sent to model")
	}
	if strings.Contains(prompt.Prompt, "hunter2") {
		t.Error("secret sent to model")
	}
	if !strings.Contains(prompt.Prompt, "[D-FIN-1] (critical) No floating point money.") {
		t.Errorf("rules missing from prompt:\n%s", prompt.Prompt)
	}
	if !strings.Contains(prompt.System, "Finance Reviewer") {
		t.Errorf("system prompt = %q", prompt.System)
	}
}

func TestLaunchRepairPass(t *testing.T) {
	client := &fakeClient{model: "m", replies: []string{
		"Sure! Here are the findings:",
		"```json\n[{\"ruleId\":\"D-FIN-1\",\"severity\":\"warning\",\"file\":\"lib/money.ts\",\"message\":\"m\"}]\n```",
	}}
	l := newLauncher(t, client, nil)
	res, err := l.Launch(context.Background(), testEntry(), testFacts())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if len(res.Findings) != 1 || client.calls() != 2 {
		t.Errorf("findings = %d, calls = %d", len(res.Findings), client.calls())
	}
	if !strings.Contains(client.prompts[1].Prompt, "not valid JSON") {
		t.Errorf("repair prompt = %q", client.prompts[1].Prompt)
	}
}

func TestLaunchRepairFails(t *testing.T) {
	client := &fakeClient{model: "m", replies: []string{"nope", "still nope"}}
	l := newLauncher(t, client, nil)
	_, err := l.Launch(context.Background(), testEntry(), testFacts())
	if err == nil || !strings.Contains(err.Error(), "after repair") {
		t.Errorf("err = %v", err)
	}
	if dispatch.ClassifyFailure(err.Error()) != review.AgentError {
		t.Error("parse failure classified as timeout")
	}
}

func TestLaunchTimeout(t *testing.T) {
	client := &fakeClient{model: "m", block: true}
	l := newLauncher(t, client, func(o *Options) { o.Timeout = 20 * time.Millisecond })
	start := time.Now()
	_, err := l.Launch(context.Background(), testEntry(), testFacts())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if err.Error() != "agent finance-reviewer timed out after 20ms" {
		t.Errorf("err = %q", err.Error())
	}
	if dispatch.ClassifyFailure(err.Error()) != review.AgentTimeout {
		t.Error("timeout not classified as timeout")
	}
	if time.Since(start) > time.Second {
		t.Error("launch did not honor its timeout")
	}
}

func TestLaunchConfiguredTimeoutOverridesCatalog(t *testing.T) {
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("Load default catalog: %v", err)
	}
	spec, ok := cat.Agent("finance-reviewer")
	if !ok || spec.TimeoutSeconds == 0 {
		t.Fatalf("default finance-reviewer has no timeout: %+v", spec)
	}

	client := &fakeClient{model: "m", block: true}
	l := newLauncher(t, client, func(o *Options) {
		o.Catalog = cat
		o.Timeout = 20 * time.Millisecond
	})
	start := time.Now()
	_, err = l.Launch(context.Background(), testEntry(), testFacts())
	if err == nil || err.Error() != "agent finance-reviewer timed out after 20ms" {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("catalog timeout used instead of configured one")
	}
}

func TestTimeoutFor(t *testing.T) {
	tests := []struct {
		name       string
		configured time.Duration
		agentSecs  int
		want       time.Duration
	}{
		{"configured wins", 5 * time.Second, 150, 5 * time.Second},
		{"agent fallback", 0, 150, 150 * time.Second},
		{"default", 0, 0, DefaultTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLauncher(t, &fakeClient{model: "m"}, func(o *Options) { o.Timeout = tt.configured })
			got := l.timeoutFor(review.AgentSpec{ID: "a", TimeoutSeconds: tt.agentSecs})
			if got != tt.want {
				t.Errorf("timeoutFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLaunchClientError(t *testing.T) {
	client := &fakeClient{model: "m", err: errors.New("connection refused")}
	l := newLauncher(t, client, nil)
	_, err := l.Launch(context.Background(), testEntry(), testFacts())
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("err = %v", err)
	}
}

func TestLaunchNothingInScope(t *testing.T) {
	client := &fakeClient{model: "m"}
	l := newLauncher(t, client, nil)
	entry := testEntry()
	entry.Scope = []string{"not/in/diff.go"}
	res, err := l.Launch(context.Background(), entry, testFacts())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if res.Status != review.AgentSuccess || len(res.Findings) != 0 || res.Findings == nil {
		t.Errorf("result = %+v", res)
	}
	if client.calls() != 0 {
		t.Error("model called with empty scope")
	}
}

func TestLaunchUsesCache(t *testing.T) {
	c, err := cache.New(true, t.TempDir(), 3600)
	if err != nil {
		t.Fatal(err)
	}
	reply := `[{"ruleId":"D-FIN-1","severity":"info","file":"lib/money.ts","message":"m"}]`
	client := &fakeClient{model: "m", replies: []string{reply}}
	l := newLauncher(t, client, func(o *Options) { o.Cache = c })

	for i := 0; i < 2; i++ {
		res, err := l.Launch(context.Background(), testEntry(), testFacts())
		if err != nil {
			t.Fatalf("Launch %d: %v", i, err)
		}
		if len(res.Findings) != 1 {
			t.Errorf("launch %d findings = %+v", i, res.Findings)
		}
	}
	if client.calls() != 1 {
		t.Errorf("calls = %d, want 1", client.calls())
	}
}

func TestLaunchMaxFindings(t *testing.T) {
	client := &fakeClient{model: "m", replies: []string{
		`[{"ruleId":"A","file":"a"},{"ruleId":"B","file":"b"},{"ruleId":"C","file":"c"}]`,
	}}
	l := newLauncher(t, client, func(o *Options) { o.MaxFindings = 2 })
	res, err := l.Launch(context.Background(), testEntry(), testFacts())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if len(res.Findings) != 2 {
		t.Errorf("findings = %d, want 2", len(res.Findings))
	}
}

func TestLaunchPerAgentModel(t *testing.T) {
	def := &fakeClient{model: "m"}
	big := &fakeClient{model: "bigger-model"}
	l := newLauncher(t, def, func(o *Options) {
		o.NewClient = func(model string) (llm.Client, error) {
			if model != "bigger-model" {
				t.Errorf("model = %q", model)
			}
			return big, nil
		}
	})
	entry := testEntry()
	entry.AgentID = "other-model"
	if _, err := l.Launch(context.Background(), entry, testFacts()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if def.calls() != 0 || big.calls() != 1 {
		t.Errorf("default calls = %d, per-agent calls = %d", def.calls(), big.calls())
	}
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Options{Catalog: testCatalog(t)}); err == nil {
		t.Error("expected error without client")
	}
}
