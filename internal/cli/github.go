package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dshills/tribunal/internal/config"
	"github.com/dshills/tribunal/internal/github"
	"github.com/dshills/tribunal/internal/output"
	"github.com/dshills/tribunal/internal/review"
)

var errGitHubAuth = errors.New("github authentication")

// publishReport posts the markdown report to pull request number, updating
// an earlier tribunal comment when one exists.
func publishReport(ctx context.Context, cfg config.Config, number int, doc output.Document, facts review.PRFacts) error {
	owner, repo := cfg.GitHub.Owner, cfg.GitHub.Repo
	if owner == "" || repo == "" {
		detectedOwner, detectedRepo, err := github.DetectRepo(ctx)
		if err != nil {
			return fmt.Errorf("%w\nSet github.owner and github.repo in the config to specify manually", err)
		}
		if owner == "" {
			owner = detectedOwner
		}
		if repo == "" {
			repo = detectedRepo
		}
	}

	client, err := github.NewClient("")
	if err != nil {
		return fmt.Errorf("%w: %v", errGitHubAuth, err)
	}

	var body bytes.Buffer
	if err := (&output.MarkdownWriter{}).Write(&body, doc); err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}

	url, updated, err := client.PublishComment(ctx, owner, repo, number, output.Marker, body.String())
	if err != nil {
		return githubErr(err)
	}
	verb := "Posted"
	if updated {
		verb = "Updated"
	}
	fmt.Fprintf(os.Stderr, "%s review comment on %s/%s#%d: %s\n", verb, owner, repo, number, url)

	if !flagInline {
		return nil
	}
	files := make(map[string]bool, len(facts.Files))
	for _, p := range facts.Paths() {
		files[p] = true
	}
	rr := github.BuildReview(doc.Report.Findings, files, "Tribunal inline findings: "+doc.Gate.Summary)
	if len(rr.Comments) == 0 {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Posting review (%d inline comments)...\n", len(rr.Comments))
	if err := client.PostReview(ctx, owner, repo, number, rr); err != nil {
		return githubErr(err)
	}
	return nil
}

func githubErr(err error) error {
	if errors.Is(err, github.ErrUnauthorized) {
		return fmt.Errorf("%w: %v", errGitHubAuth, err)
	}
	return err
}
