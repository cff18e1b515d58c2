package pathglob

import (
	"strings"

	"github.com/gobwas/glob"
)

// Set is a compiled list of patterns.
type Set struct {
	patterns []string
	globs    []glob.Glob
}

// Compile compiles a single pattern into its matching variants.
func Compile(pattern string) ([]glob.Glob, error) {
	variants := expand(pattern)
	globs := make([]glob.Glob, 0, len(variants))
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// expand returns pattern plus every variant with some of its "**/"
// segments collapsed to nothing.
func expand(pattern string) []string {
	seen := map[string]bool{pattern: true}
	variants := []string{pattern}
	for i := 0; i < len(variants); i++ {
		p := variants[i]
		var next []string
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			next = append(next, rest)
		}
		for off := 0; ; {
			j := strings.Index(p[off:], "/**/")
			if j < 0 {
				break
			}
			j += off
			next = append(next, p[:j]+p[j+3:])
			off = j + 1
		}
		for _, v := range next {
			if !seen[v] {
				seen[v] = true
				variants = append(variants, v)
			}
		}
	}
	return variants
}

// NewSet compiles every pattern. The first invalid pattern is reported.
func NewSet(patterns []string) (*Set, error) {
	s := &Set{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		globs, err := Compile(p)
		if err != nil {
			return nil, &PatternError{Pattern: p, Err: err}
		}
		s.globs = append(s.globs, globs...)
	}
	return s, nil
}

// Match reports whether path matches any pattern in the set. A nil set
// matches nothing.
func (s *Set) Match(path string) bool {
	if s == nil {
		return false
	}
	for _, g := range s.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// Len returns the number of source patterns.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// PatternError reports a pattern that failed to compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "invalid glob " + `"` + e.Pattern + `": ` + e.Err.Error()
}

func (e *PatternError) Unwrap() error { return e.Err }
