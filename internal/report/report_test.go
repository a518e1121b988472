package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"

	"github.com/stepguard/stepguard/internal/workflow"
	"github.com/stepguard/stepguard/pkg/riskengine"
)

const refundsDoc = `
automation_id: AUTO-9
title: Refunds
steps:
  - step_id: "1"
    step_name: Refund the card
    description: Refund card 4111-1111-1111-1111 for the disputed amount
    tool: Fiserv Gateway
`

const rawCard = "4111-1111-1111-1111"

var generatedAt = time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)

func analyse(t *testing.T) (*workflow.Workflow, riskengine.WorkflowAnalysis) {
	t.Helper()
	wf, err := workflow.Parse([]byte(refundsDoc), workflow.FormatYAML, "flows/refunds.yaml")
	require.NoError(t, err)
	return wf, riskengine.NewAnalyzer().AnalyzeWorkflow(wf.Steps, 0)
}

func cardFinding(t *testing.T, r *Report) riskengine.Finding {
	t.Helper()
	for _, f := range r.Steps[0].Findings {
		if f.Category == riskengine.CategoryPIICreditCard {
			return f
		}
	}
	t.Fatalf("no credit card finding in %+v", r.Steps[0].Findings)
	return riskengine.Finding{}
}

func TestNewMasksEvidence(t *testing.T) {
	wf, analysis := analyse(t)
	r := New(wf, analysis, Options{MaskEvidence: true, GeneratedAt: generatedAt})

	assert.Equal(t, "AUTO-9", r.AutomationID)
	assert.Equal(t, "flows/refunds.yaml", r.Source)
	assert.Equal(t, generatedAt, r.GeneratedAt)
	assert.Equal(t, "****-****-****-1111", cardFinding(t, r).Evidence)
	assert.Equal(t, riskengine.RiskCritical, r.Summary.RiskLevel)

	for _, f := range analysis.Steps[0].Findings {
		if f.Category == riskengine.CategoryPIICreditCard {
			assert.Equal(t, rawCard, f.Evidence, "analysis must not be modified")
		}
	}
}

func TestNewWithoutMasking(t *testing.T) {
	wf, analysis := analyse(t)
	r := New(wf, analysis, Options{})

	assert.Equal(t, rawCard, cardFinding(t, r).Evidence)
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestMaskEvidence(t *testing.T) {
	tests := []struct {
		category riskengine.Category
		evidence string
		want     string
	}{
		{riskengine.CategoryPIICreditCard, rawCard, "****-****-****-1111"},
		{riskengine.CategoryPIISSN, "123-45-6789", "***-**-6789"},
		{riskengine.CategoryPIIPhone, "(555) 123-4567", "(***) ***-4567"},
		{riskengine.CategoryPIIEmail, "jane.doe@example.com", "j***@example.com"},
		{riskengine.CategoryPIIEmail, "@example.com", "************"},
		{riskengine.CategoryDBWrite, "update", "update"},
		{riskengine.CategoryPIISSN, "", ""},
	}
	for _, tc := range tests {
		t.Run(string(tc.category)+"/"+tc.evidence, func(t *testing.T) {
			assert.Equal(t, tc.want, MaskEvidence(riskengine.Finding{Category: tc.category, Evidence: tc.evidence}))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	wf, analysis := analyse(t)
	r := New(wf, analysis, Options{MaskEvidence: true, GeneratedAt: generatedAt, ToolVersion: "dev"})

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, "JSON"))
	assert.NotContains(t, buf.String(), rawCard)

	var decoded struct {
		AutomationID string `json:"automation_id"`
		ToolVersion  string `json:"tool_version"`
		Summary      struct {
			RiskLevel string `json:"overall_risk_level"`
			Approvals []struct {
				Type string `json:"approval_type"`
			} `json:"all_approval_requirements"`
		} `json:"security_summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "AUTO-9", decoded.AutomationID)
	assert.Equal(t, "dev", decoded.ToolVersion)
	assert.Equal(t, "critical", decoded.Summary.RiskLevel)
	assert.NotEmpty(t, decoded.Summary.Approvals)
}

func TestWriteYAML(t *testing.T) {
	wf, analysis := analyse(t)
	r := New(wf, analysis, Options{MaskEvidence: true, GeneratedAt: generatedAt})

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatYAML))
	assert.NotContains(t, buf.String(), rawCard)

	var decoded struct {
		AutomationID string `yaml:"automation_id"`
		Summary      struct {
			RiskLevel riskengine.RiskLevel `yaml:"overall_risk_level"`
		} `yaml:"security_summary"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "AUTO-9", decoded.AutomationID)
	assert.Equal(t, riskengine.RiskCritical, decoded.Summary.RiskLevel)
}

func TestWriteText(t *testing.T) {
	wf, analysis := analyse(t)
	r := New(wf, analysis, Options{MaskEvidence: true, GeneratedAt: generatedAt})

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatText))
	out := buf.String()

	assert.Contains(t, out, "Workflow AUTO-9 - Refunds\n")
	assert.Contains(t, out, "Source:    flows/refunds.yaml\n")
	assert.Contains(t, out, "Generated: 2nd January 2025 3:04:05 am\n")
	assert.Contains(t, out, "Overall risk:   CRITICAL\n")
	assert.Contains(t, out, "1. [CRITICAL] 1 Refund the card: payment processing\n")
	assert.Contains(t, out, "- PII_CREDIT_CARD in description: ****-****-****-1111\n")
	assert.Contains(t, out, "- pci_review by PCI Compliance Officer (3-7 business days)\n")
	assert.Contains(t, out, "Compliance:     PCI_DSS")
	assert.Contains(t, out, "Recommendations:\n")
	assert.NotContains(t, out, rawCard)
}

func TestWriteSARIF(t *testing.T) {
	wf, analysis := analyse(t)
	r := New(wf, analysis, Options{MaskEvidence: true, GeneratedAt: generatedAt})

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatSARIF))
	assert.NotContains(t, buf.String(), rawCard)

	var decoded struct {
		Version string `json:"version"`
		Runs    []struct {
			Results []json.RawMessage `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2.1.0", decoded.Version)
	require.Len(t, decoded.Runs, 1)
	assert.NotEmpty(t, decoded.Runs[0].Results)
}

func TestWriteUnsupportedFormat(t *testing.T) {
	wf, analysis := analyse(t)
	r := New(wf, analysis, Options{})

	assert.Error(t, r.Write(&bytes.Buffer{}, "html"))
	_, err := Extension("html")
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	wf, analysis := analyse(t)
	r := New(wf, analysis, Options{MaskEvidence: true, GeneratedAt: generatedAt})
	dir := t.TempDir()

	t.Run("Into directory", func(t *testing.T) {
		path, err := r.WriteFile(dir, "analyse", FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "analyse_AUTO-9_2025-01-02T03-04-05Z.json"), path)
		assert.FileExists(t, path)
	})

	t.Run("Into new file", func(t *testing.T) {
		target := filepath.Join(dir, "nested", "report.txt")
		path, err := r.WriteFile(target, "analyse", FormatText)
		require.NoError(t, err)
		assert.Equal(t, target, path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Workflow AUTO-9")
	})

	t.Run("Into new directory", func(t *testing.T) {
		target := filepath.Join(dir, "reports")
		path, err := r.WriteFile(target, "analyse", FormatSARIF)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(target, "analyse_AUTO-9_2025-01-02T03-04-05Z.sarif"), path)
		assert.FileExists(t, path)
	})

	t.Run("Unsupported format", func(t *testing.T) {
		_, err := r.WriteFile(dir, "analyse", "pdf")
		assert.Error(t, err)
	})
}
