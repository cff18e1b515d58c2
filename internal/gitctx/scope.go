package gitctx

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FileSection is the rendered diff of one file.
type FileSection struct {
	Path   string
	Text   string
	Binary bool
}

// ScopedDiff is a raw diff narrowed to a set of paths, in diff order.
type ScopedDiff struct {
	Sections []FileSection
}

// Files returns the in-scope paths present in the diff.
func (s ScopedDiff) Files() []string {
	out := make([]string, 0, len(s.Sections))
	for _, sec := range s.Sections {
		out = append(out, sec.Path)
	}
	return out
}

// String renders the sections back into a unified diff.
func (s ScopedDiff) String() string {
	var b strings.Builder
	for _, sec := range s.Sections {
		b.WriteString(sec.Text)
	}
	return b.String()
}

// ScopeDiff parses a unified diff and re-renders only the files whose path
// is in scope. Deleted files match by their old path. An empty scope keeps
// nothing.
func ScopeDiff(raw string, scope []string) (ScopedDiff, error) {
	if strings.TrimSpace(raw) == "" || len(scope) == 0 {
		return ScopedDiff{}, nil
	}
	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return ScopedDiff{}, fmt.Errorf("parsing diff: %w", err)
	}

	want := make(map[string]bool, len(scope))
	for _, p := range scope {
		want[p] = true
	}

	var out ScopedDiff
	for _, f := range files {
		name := f.NewName
		if f.IsDelete || name == "" {
			name = f.OldName
		}
		if !want[name] {
			continue
		}
		out.Sections = append(out.Sections, FileSection{Path: name, Text: f.String(), Binary: f.IsBinary})
	}
	return out, nil
}
