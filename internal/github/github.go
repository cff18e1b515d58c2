package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/dshills/tribunal/internal/review"
)

const defaultAPIURL = "https://api.github.com"

// ErrUnauthorized is returned when GitHub rejects the token.
var ErrUnauthorized = errors.New("github authentication failed")

// Client posts review results to a GitHub repository.
type Client struct {
	api *gh.Client
}

// NewClient creates a client authenticated with token, falling back to the
// GITHUB_TOKEN environment variable. GITHUB_API_URL overrides the endpoint.
func NewClient(token string) (*Client, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN environment variable is not set")
	}

	apiURL := os.Getenv("GITHUB_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return newClient(&http.Client{Timeout: 60 * time.Second}, apiURL, token)
}

func newClient(httpCli *http.Client, apiURL, token string) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(apiURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
	}
	api := gh.NewClient(httpCli).WithAuthToken(token)
	api.BaseURL = base
	return &Client{api: api}, nil
}

// PublishComment posts body as a pull request comment. When an earlier
// comment containing marker exists it is edited in place. It returns the
// comment URL and whether an existing comment was updated.
func (c *Client) PublishComment(ctx context.Context, owner, repo string, number int, marker, body string) (string, bool, error) {
	if marker != "" {
		existing, err := c.findComment(ctx, owner, repo, number, marker)
		if err != nil {
			return "", false, err
		}
		if existing != nil {
			edited, _, err := c.api.Issues.EditComment(ctx, owner, repo, existing.GetID(), &gh.IssueComment{Body: gh.Ptr(body)})
			if err != nil {
				return "", false, apiError("updating comment", err)
			}
			return edited.GetHTMLURL(), true, nil
		}
	}

	created, _, err := c.api.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return "", false, apiError("creating comment", err)
	}
	return created.GetHTMLURL(), false, nil
}

func (c *Client) findComment(ctx context.Context, owner, repo string, number int, marker string) (*gh.IssueComment, error) {
	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.api.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, apiError("listing comments", err)
		}
		for _, cm := range comments {
			if strings.Contains(cm.GetBody(), marker) {
				return cm, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// ReviewComment is an inline comment on a pull request review.
type ReviewComment struct {
	Path string
	Line int
	Body string
}

// ReviewRequest is a pull request review to post.
type ReviewRequest struct {
	Body     string
	Event    string
	Comments []ReviewComment
}

// PostReview posts a pull request review with inline comments.
func (c *Client) PostReview(ctx context.Context, owner, repo string, number int, rr ReviewRequest) error {
	req := &gh.PullRequestReviewRequest{
		Body:  gh.Ptr(rr.Body),
		Event: gh.Ptr(rr.Event),
	}
	for _, cm := range rr.Comments {
		req.Comments = append(req.Comments, &gh.DraftReviewComment{
			Path: gh.Ptr(cm.Path),
			Line: gh.Ptr(cm.Line),
			Side: gh.Ptr("RIGHT"),
			Body: gh.Ptr(cm.Body),
		})
	}
	if _, _, err := c.api.PullRequests.CreateReview(ctx, owner, repo, number, req); err != nil {
		return apiError("posting review", err)
	}
	return nil
}

// BuildReview turns findings into a review. Findings with a line in one of
// diffFiles become inline comments; the rest are listed in the body under
// summary.
func BuildReview(findings []review.ReviewFinding, diffFiles map[string]bool, summary string) ReviewRequest {
	var general []string
	var comments []ReviewComment

	for _, f := range findings {
		if f.Line != nil && *f.Line > 0 && diffFiles[f.File] {
			comments = append(comments, ReviewComment{
				Path: f.File,
				Line: *f.Line,
				Body: formatInlineComment(f),
			})
			continue
		}
		general = append(general, formatFindingBody(f))
	}

	var sb strings.Builder
	sb.WriteString(summary)
	if len(general) > 0 {
		sb.WriteString("\n\n### General Findings\n\n")
		sb.WriteString(strings.Join(general, "\n"))
		sb.WriteString("\n")
	}

	return ReviewRequest{
		Body:     sb.String(),
		Event:    "COMMENT",
		Comments: comments,
	}
}

func formatInlineComment(f review.ReviewFinding) string {
	return fmt.Sprintf("**%s** (%s, %s)\n\n%s", f.RuleID, f.Severity, f.Agent, f.Message)
}

func formatFindingBody(f review.ReviewFinding) string {
	loc := f.File
	if f.Line != nil {
		loc = fmt.Sprintf("%s:%d", f.File, *f.Line)
	}
	return fmt.Sprintf("- **%s** (%s) `%s`: %s", f.RuleID, f.Severity, loc, f.Message)
}

func apiError(action string, err error) error {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %s", action, ErrUnauthorized, er.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%s: pull request or repository not found", action)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo(ctx context.Context) (owner, repo string, err error) {
	out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(remote, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}
