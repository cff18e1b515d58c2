package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/tribunal/internal/review"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"

// SARIFWriter outputs findings in SARIF v2.1.0 format.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, doc Document) error {
	data, err := json.MarshalIndent(buildSARIF(doc), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool          `json:"tool"`
	Results    []sarifResult      `json:"results"`
	Properties sarifRunProperties `json:"properties"`
}

type sarifRunProperties struct {
	RunID    string          `json:"runId,omitempty"`
	Decision review.Decision `json:"decision"`
	Summary  string          `json:"summary"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name,omitempty"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	FullDescription  *sarifMessage       `json:"fullDescription,omitempty"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID     string                `json:"ruleId"`
	Level      string                `json:"level"`
	Message    sarifMessage          `json:"message"`
	Locations  []sarifLocation       `json:"locations,omitempty"`
	Properties sarifResultProperties `json:"properties"`
}

type sarifResultProperties struct {
	Agent       string `json:"agent"`
	Dismissible bool   `json:"dismissible"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func buildSARIF(doc Document) sarifLog {
	results := make([]sarifResult, 0, len(doc.Report.Findings))
	rules := make([]sarifRule, 0)
	seen := make(map[string]bool)

	for _, f := range doc.Report.Findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			rules = append(rules, sarifRuleFor(doc.Rules, f))
		}

		loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: f.File},
		}}
		if f.Line != nil {
			loc.PhysicalLocation.Region = &sarifRegion{StartLine: *f.Line}
		}
		results = append(results, sarifResult{
			RuleID:     f.RuleID,
			Level:      severityToLevel(f.Severity),
			Message:    sarifMessage{Text: f.Message},
			Locations:  []sarifLocation{loc},
			Properties: sarifResultProperties{Agent: f.Agent, Dismissible: f.Dismissible},
		})
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  sarifSchema,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "tribunal",
						Version:        doc.Version,
						InformationURI: "https://github.com/dshills/tribunal",
						Rules:          rules,
					},
				},
				Results: results,
				Properties: sarifRunProperties{
					RunID:    doc.Report.RunID,
					Decision: doc.Gate.Decision,
					Summary:  doc.Gate.Summary,
				},
			},
		},
	}
}

func sarifRuleFor(rules map[string]review.ReviewRule, f review.ReviewFinding) sarifRule {
	rule := sarifRule{
		ID:               f.RuleID,
		ShortDescription: sarifMessage{Text: f.RuleID},
		DefaultConfig:    sarifDefaultConfig{Level: severityToLevel(f.Severity)},
	}
	if f.Category != "" {
		rule.Properties.Tags = []string{f.Category}
	}
	r, ok := rules[f.RuleID]
	if !ok {
		return rule
	}
	rule.Name = r.Title
	if r.Title != "" {
		rule.ShortDescription = sarifMessage{Text: r.Title}
	}
	if r.Description != "" {
		rule.FullDescription = &sarifMessage{Text: r.Description}
	}
	if r.Severity.IsValid() {
		rule.DefaultConfig.Level = severityToLevel(r.Severity)
	}
	return rule
}

// severityToLevel maps finding severity to SARIF level.
func severityToLevel(s review.Severity) string {
	switch s {
	case review.SeverityCritical, review.SeverityMajor:
		return "error"
	case review.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
