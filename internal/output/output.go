package output

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dshills/tribunal/internal/review"
)

// Formats lists the supported output formats.
var Formats = []string{"text", "json", "markdown", "sarif"}

// Document is everything a writer needs to render one pipeline run.
type Document struct {
	Branch  string
	Base    string
	Version string
	Report  review.ReviewReport
	Gate    review.GateDecision
	// Rules supplies titles and descriptions for rule ids. Optional.
	Rules map[string]review.ReviewRule
}

// Writer writes a document in a specific format.
type Writer interface {
	Write(w io.Writer, doc Document) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the document to the specified output (file path or stdout).
func WriteReport(doc Document, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, doc)
}

func groupBySeverity(findings []review.ReviewFinding) map[review.Severity][]review.ReviewFinding {
	m := make(map[review.Severity][]review.ReviewFinding)
	for _, f := range findings {
		m[f.Severity] = append(m[f.Severity], f)
	}
	for sev := range m {
		group := m[sev]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].File < group[j].File
		})
	}
	return m
}

func location(f review.ReviewFinding) string {
	if f.Line == nil {
		return f.File
	}
	return fmt.Sprintf("%s:%d", f.File, *f.Line)
}

func ruleTitle(rules map[string]review.ReviewRule, id string) string {
	if r, ok := rules[id]; ok && r.Title != "" {
		return r.Title
	}
	return id
}
