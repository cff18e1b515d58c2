package gitctx

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/tribunal/internal/logging"
	"github.com/dshills/tribunal/internal/review"
)

// Runner executes git subcommands and returns their stdout.
type Runner interface {
	Git(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs the git binary in Dir.
type ExecRunner struct {
	Dir string
}

// Git runs git with quoted path output disabled.
func (r ExecRunner) Git(ctx context.Context, args ...string) (string, error) {
	cmdArgs := append([]string{"-c", "core.quotepath=off"}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	cmd.Dir = r.Dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}

// RangeError reports a failed git query. Its message names only the diff
// range; the underlying error is available through Unwrap.
type RangeError struct {
	Range string
	err   error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("git query failed for range %s", e.Range)
}

func (e *RangeError) Unwrap() error { return e.err }

// Normalizer is the normalize stage.
type Normalizer struct {
	runner Runner
	log    *logging.Logger
}

// NewNormalizer creates a Normalizer. A nil logger discards output.
func NewNormalizer(runner Runner, log *logging.Logger) *Normalizer {
	return &Normalizer{runner: runner, log: logging.OrNop(log)}
}

// Normalize extracts facts for the range baseBranch...branch.
func (n *Normalizer) Normalize(ctx context.Context, branch, baseBranch string) (review.PRFacts, error) {
	start := time.Now()
	diffRange := baseBranch + "..." + branch

	query := func(args ...string) (string, error) {
		out, err := n.runner.Git(ctx, append(args, diffRange)...)
		if err != nil {
			n.log.Debug("git query failed", "range", diffRange, "args", strings.Join(args, " "), "error", err.Error())
			return "", &RangeError{Range: diffRange, err: err}
		}
		return out, nil
	}

	numstat, err := query("diff", "--numstat", "-M")
	if err != nil {
		return review.PRFacts{}, err
	}
	nameStatus, err := query("diff", "--name-status", "-M")
	if err != nil {
		return review.PRFacts{}, err
	}
	logOut, err := query("log", "--format=%H%x00%s%x00%an")
	if err != nil {
		return review.PRFacts{}, err
	}
	rawDiff, err := query("diff")
	if err != nil {
		return review.PRFacts{}, err
	}

	counts := parseNumstat(numstat)
	statuses := parseNameStatus(nameStatus)

	facts := review.PRFacts{
		Branch:     branch,
		BaseBranch: baseBranch,
		Files:      make([]review.FileChange, 0, len(statuses)),
		Commits:    parseCommits(logOut),
	}
	for _, st := range statuses {
		c := counts.lookup(st.path)
		facts.Files = append(facts.Files, review.FileChange{
			Path:      st.path,
			Additions: c.additions,
			Deletions: c.deletions,
			Status:    st.status,
		})
		facts.TotalAdditions += c.additions
		facts.TotalDeletions += c.deletions
	}
	if strings.TrimSpace(rawDiff) != "" {
		facts.DiffContent = rawDiff
	}

	n.log.Info("normalized diff range",
		"range", diffRange,
		"files", len(facts.Files),
		"commits", len(facts.Commits),
		"additions", facts.TotalAdditions,
		"deletions", facts.TotalDeletions,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return facts, nil
}

type lineCounts struct {
	additions int
	deletions int
}

// numstatIndex holds numstat rows keyed by their literal path and by the
// resolved new path of rename shorthand.
type numstatIndex struct {
	exact    map[string]lineCounts
	resolved map[string]lineCounts
}

func (idx numstatIndex) lookup(path string) lineCounts {
	if c, ok := idx.exact[path]; ok {
		return c
	}
	if c, ok := idx.resolved[path]; ok {
		return c
	}
	return lineCounts{}
}

func parseNumstat(out string) numstatIndex {
	idx := numstatIndex{
		exact:    make(map[string]lineCounts),
		resolved: make(map[string]lineCounts),
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		// Binary files report "-" for both counts.
		c := lineCounts{additions: parseCount(parts[0]), deletions: parseCount(parts[1])}
		path := parts[2]
		idx.exact[path] = c
		if resolved := ResolveRenamePath(path); resolved != path {
			idx.resolved[resolved] = c
		}
	}
	return idx
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var (
	braceRename = regexp.MustCompile(`^(.*)\{(.*) => (.*)\}(.*)$`)
	plainRename = regexp.MustCompile(`^(.+) => (.+)$`)
	doubleSlash = regexp.MustCompile(`/{2,}`)
)

// ResolveRenamePath maps numstat rename shorthand to the new path:
// "lib/{old.ts => new.ts}" becomes "lib/new.ts", "src/{a => }/x.go" becomes
// "src/x.go", and "old.go => new.go" becomes "new.go". Other paths are
// returned unchanged.
func ResolveRenamePath(path string) string {
	if m := braceRename.FindStringSubmatch(path); m != nil {
		resolved := m[1] + m[3] + m[4]
		resolved = doubleSlash.ReplaceAllString(resolved, "/")
		return strings.TrimPrefix(resolved, "/")
	}
	if m := plainRename.FindStringSubmatch(path); m != nil {
		return m[2]
	}
	return path
}

type fileStatus struct {
	path   string
	status review.FileStatus
}

func parseNameStatus(out string) []fileStatus {
	var files []fileStatus
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		code := strings.TrimSpace(parts[0])
		if code == "" {
			continue
		}
		switch code[0] {
		case 'R':
			if len(parts) < 3 {
				continue
			}
			files = append(files, fileStatus{path: parts[2], status: review.StatusRenamed})
		case 'C':
			if len(parts) < 3 {
				continue
			}
			files = append(files, fileStatus{path: parts[2], status: review.StatusAdded})
		case 'A':
			files = append(files, fileStatus{path: parts[1], status: review.StatusAdded})
		case 'D':
			files = append(files, fileStatus{path: parts[1], status: review.StatusDeleted})
		default:
			files = append(files, fileStatus{path: parts[1], status: review.StatusModified})
		}
	}
	return files
}

func parseCommits(out string) []review.CommitInfo {
	commits := make([]review.CommitInfo, 0)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\x00", 3)
		if len(parts) < 3 || parts[0] == "" {
			continue
		}
		c := review.CommitInfo{
			SHA:     strings.TrimSpace(parts[0]),
			Message: strings.TrimSpace(parts[1]),
			Author:  strings.TrimSpace(parts[2]),
		}
		if c.Message == "" {
			c.Message = "(no message)"
		}
		if c.Author == "" {
			c.Author = "unknown"
		}
		commits = append(commits, c)
	}
	return commits
}

// CurrentBranch returns the checked-out branch name, or "HEAD" when
// detached.
func CurrentBranch(ctx context.Context, r Runner) (string, error) {
	out, err := r.Git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// RepoRoot returns the top-level directory of the repository.
func RepoRoot(ctx context.Context, r Runner) (string, error) {
	out, err := r.Git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(out), nil
}
