// Package report assembles the analysis of one workflow into a report and
// renders it as json, yaml, text or sarif.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/stepguard/stepguard/internal/sarif"
	"github.com/stepguard/stepguard/internal/workflow"
	"github.com/stepguard/stepguard/pkg/riskengine"
	"github.com/stepguard/stepguard/pkg/shared/artifacts"
	"github.com/stepguard/stepguard/pkg/shared/files"
)

// Report formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatText  = "text"
	FormatSARIF = "sarif"
)

var extensions = map[string]string{
	FormatJSON:  "json",
	FormatYAML:  "yaml",
	FormatText:  "txt",
	FormatSARIF: "sarif",
}

// Report is the rendered outcome of analysing one workflow.
type Report struct {
	AutomationID string                             `json:"automation_id" yaml:"automation_id"`
	GeneratedID  bool                               `json:"generated_id,omitempty" yaml:"generated_id,omitempty"`
	Title        string                             `json:"title,omitempty" yaml:"title,omitempty"`
	Description  string                             `json:"description,omitempty" yaml:"description,omitempty"`
	Source       string                             `json:"source,omitempty" yaml:"source,omitempty"`
	GeneratedAt  time.Time                          `json:"generated_at" yaml:"generated_at"`
	ToolVersion  string                             `json:"tool_version,omitempty" yaml:"tool_version,omitempty"`
	Steps        []riskengine.StepSecurityAnalysis  `json:"steps" yaml:"steps"`
	Summary      riskengine.WorkflowSecuritySummary `json:"security_summary" yaml:"security_summary"`
}

// Options controls report assembly.
type Options struct {
	// MaskEvidence replaces matched PII values with masked forms.
	MaskEvidence bool
	ToolVersion  string
	GeneratedAt  time.Time
}

// New assembles a report. The analysis is not modified.
func New(wf *workflow.Workflow, analysis riskengine.WorkflowAnalysis, opts Options) *Report {
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	steps := analysis.Steps
	if opts.MaskEvidence {
		steps = make([]riskengine.StepSecurityAnalysis, len(analysis.Steps))
		for i, s := range analysis.Steps {
			findings := make([]riskengine.Finding, len(s.Findings))
			for j, f := range s.Findings {
				f.Evidence = MaskEvidence(f)
				findings[j] = f
			}
			s.Findings = findings
			steps[i] = s
		}
	}

	return &Report{
		AutomationID: wf.ID,
		GeneratedID:  wf.GeneratedID,
		Title:        wf.Title,
		Description:  wf.Description,
		Source:       wf.Source,
		GeneratedAt:  generatedAt.UTC(),
		ToolVersion:  opts.ToolVersion,
		Steps:        steps,
		Summary:      analysis.Summary,
	}
}

// Extension returns the file extension used for format.
func Extension(format string) (string, error) {
	ext, ok := extensions[strings.ToLower(format)]
	if !ok {
		return "", fmt.Errorf("unsupported report format %q", format)
	}
	return ext, nil
}

// Write renders the report in the given format.
func (r *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatText:
		return writeText(w, r)
	case FormatSARIF:
		sr, err := r.SARIF()
		if err != nil {
			return err
		}
		return sr.Write(w)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// SARIF converts the report into a SARIF log.
func (r *Report) SARIF() (*sarif.Report, error) {
	return sarif.NewReport(
		sarif.Workflow{ID: r.AutomationID, Title: r.Title, Source: r.Source},
		riskengine.WorkflowAnalysis{Steps: r.Steps, Summary: r.Summary},
		r.ToolVersion,
	)
}

// WriteFile renders the report into outputPath. When outputPath is a directory,
// or has no extension, the file is named after command, the workflow ID and the
// generation time. It returns the path written.
func (r *Report) WriteFile(outputPath, command, format string) (string, error) {
	ext, err := Extension(format)
	if err != nil {
		return "", err
	}

	name := artifacts.GetArtifactName(command, r.AutomationID, ext, r.GeneratedAt)
	fullPath, folder, err := files.DetermineFileFullPath(outputPath, name)
	if err != nil {
		return "", err
	}
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := r.Write(&buf, format); err != nil {
		return "", err
	}
	if err := files.WriteFile(fullPath, buf.Bytes()); err != nil {
		return "", err
	}
	return fullPath, nil
}
