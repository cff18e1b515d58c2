package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/tribunal/internal/review"
)

// JSONWriter outputs the report and gate decision as JSON.
type JSONWriter struct{}

type jsonDocument struct {
	Branch string              `json:"branch,omitempty"`
	Base   string              `json:"base,omitempty"`
	Report review.ReviewReport `json:"report"`
	Gate   review.GateDecision `json:"gate"`
}

func (j *JSONWriter) Write(w io.Writer, doc Document) error {
	data, err := json.MarshalIndent(jsonDocument{
		Branch: doc.Branch,
		Base:   doc.Base,
		Report: doc.Report,
		Gate:   doc.Gate,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
