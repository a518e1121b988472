// Package workflow loads automation workflow documents and converts them into
// the step records analysed by the risk engine.
package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	yaml "gopkg.in/yaml.v2"

	"github.com/stepguard/stepguard/pkg/riskengine"
	"github.com/stepguard/stepguard/pkg/shared/files"
)

// Document formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ID is a step or automation identifier. JSON documents may carry it as a number.
type ID string

// UnmarshalJSON accepts both strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Document is the on-disk shape of an automation workflow.
type Document struct {
	AutomationID ID           `json:"automation_id" yaml:"automation_id" validate:"max=128"`
	Title        string       `json:"title" yaml:"title" validate:"max=512"`
	Description  string       `json:"description" yaml:"description" validate:"max=16384"`
	Steps        []StepRecord `json:"steps" yaml:"steps" validate:"required,min=1,max=1000,dive"`
}

// StepRecord is one step of a workflow document.
type StepRecord struct {
	StepID             ID       `json:"step_id" yaml:"step_id" validate:"max=128"`
	StepName           string   `json:"step_name" yaml:"step_name" validate:"max=512"`
	Description        string   `json:"description" yaml:"description" validate:"max=16384"`
	Tool               string   `json:"tool" yaml:"tool" validate:"max=512"`
	Databases          []string `json:"databases" yaml:"databases" validate:"max=256,dive,max=512"`
	CompanyResources   []string `json:"company_resources" yaml:"company_resources" validate:"max=256,dive,max=512"`
	AccessRequirements []string `json:"access_requirements" yaml:"access_requirements" validate:"max=256,dive,max=1024"`
	AutomationDetails  string   `json:"automation_details" yaml:"automation_details" validate:"max=16384"`
	StartingPoints     []string `json:"starting_points,omitempty" yaml:"starting_points,omitempty" validate:"max=256,dive,max=512"`
	NextStep           ID       `json:"next_step,omitempty" yaml:"next_step,omitempty" validate:"max=128"`
	EstimatedDuration  string   `json:"estimated_duration,omitempty" yaml:"estimated_duration,omitempty" validate:"max=128"`
	Dependencies       []ID     `json:"dependencies,omitempty" yaml:"dependencies,omitempty" validate:"max=256,dive,max=128"`
}

// Workflow is a validated document ready for analysis.
type Workflow struct {
	ID          string
	Title       string
	Description string
	Source      string
	// GeneratedID is set when the document had no automation_id.
	GeneratedID bool
	Steps       []riskengine.Step
}

// Load reads, validates and converts the workflow document at path.
func Load(path string) (*Workflow, error) {
	if err := files.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %q: %w", path, err)
	}
	return Parse(data, FormatFromPath(path), path)
}

// FormatFromPath infers the document format from the file extension.
func FormatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes and validates a workflow document. source names the document in errors.
func Parse(data []byte, format, source string) (*Workflow, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow %q: %w", source, err)
	}
	if err := Validate(doc, source); err != nil {
		return nil, err
	}
	return doc.toWorkflow(source), nil
}

// Decode unmarshals a document without validating it. Unknown keys are ignored
// so that documents carrying planning metadata are accepted.
func Decode(data []byte, format string) (*Document, error) {
	doc := &Document{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	return doc, nil
}

func (d *Document) toWorkflow(source string) *Workflow {
	wf := &Workflow{
		ID:          strings.TrimSpace(string(d.AutomationID)),
		Title:       d.Title,
		Description: d.Description,
		Source:      source,
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
		wf.GeneratedID = true
	}

	wf.Steps = make([]riskengine.Step, len(d.Steps))
	for i, s := range d.Steps {
		id := strings.TrimSpace(string(s.StepID))
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		wf.Steps[i] = riskengine.Step{
			ID:                 id,
			Name:               s.StepName,
			Description:        s.Description,
			Tool:               s.Tool,
			Databases:          append([]string(nil), s.Databases...),
			AccessRequirements: append([]string(nil), s.AccessRequirements...),
			AutomationDetails:  s.AutomationDetails,
			CompanyResources:   append([]string(nil), s.CompanyResources...),
		}
	}
	return wf
}
