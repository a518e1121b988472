package riskengine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeStep(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name          string
		step          Step
		wantRisk      RiskLevel
		wantApprovals []ApprovalType
		wantStandards []ComplianceStandard
	}{
		{
			name: "Card data written to the order system",
			step: Step{
				ID:                "1",
				Description:       "Charge card 4111-1111-1111-1111",
				AutomationDetails: "update the order record",
			},
			wantRisk:      RiskCritical,
			wantApprovals: []ApprovalType{ApprovalSecurityReview, ApprovalDBA, ApprovalComplianceReview, ApprovalLegalReview, ApprovalPCIReview},
			wantStandards: []ComplianceStandard{CompliancePCIDSS},
		},
		{
			name: "Incident lookup",
			step: Step{
				ID:                "2",
				Tool:              "ServiceNow",
				Databases:         []string{"CMDB"},
				AutomationDetails: "read incident records",
			},
			wantRisk: RiskLow,
		},
		{
			name: "Cleanup on production",
			step: Step{
				ID:                "3",
				Databases:         []string{"prod-orders-db"},
				AutomationDetails: "delete stale rows",
			},
			wantRisk:      RiskCritical,
			wantApprovals: []ApprovalType{ApprovalSecurityReview, ApprovalDBA, ApprovalChangeControl},
		},
		{
			name: "Dropped table on production",
			step: Step{
				ID:                "4",
				Databases:         []string{"prod-orders-db"},
				AutomationDetails: "dropped the legacy table",
			},
			wantRisk:      RiskCritical,
			wantApprovals: []ApprovalType{ApprovalSecurityReview, ApprovalDBA, ApprovalChangeControl},
		},
		{
			name: "Camel case production tool",
			step: Step{
				ID:   "5",
				Tool: "ProdDB",
			},
			wantRisk:      RiskHigh,
			wantApprovals: []ApprovalType{ApprovalSecurityReview, ApprovalManager, ApprovalChangeControl},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := a.AnalyzeStep(tc.step)
			assert.Equal(t, tc.step.ID, got.StepID)
			assert.Equal(t, tc.wantRisk, got.RiskLevel)
			assert.NotEmpty(t, got.RiskReason)
			assert.Equal(t, tc.wantApprovals, typesOf(got.Approvals))
			assert.Equal(t, tc.wantStandards, got.ComplianceStandards)
		})
	}
}

func TestAnalyzeStepConcerns(t *testing.T) {
	got := NewAnalyzer().AnalyzeStep(Step{
		Description:       "Email jane@example.com about patient records",
		Databases:         []string{"prod-crm"},
		AutomationDetails: "update the contact",
	})

	var types []string
	for _, c := range got.Concerns {
		types = append(types, c.Type)
		assert.NotEmpty(t, c.Mitigation)
	}
	assert.Equal(t, []string{"PII_HANDLING", "SENSITIVE_DATA_REFERENCE", "DATABASE_WRITE_ACCESS", "SENSITIVE_SYSTEM_ACCESS"}, types)

	assert.Equal(t, "Potential PII detected: PII_EMAIL", got.Concerns[0].Description)
	for _, c := range got.Concerns {
		assert.NotContains(t, c.Description, "jane@example.com")
	}
	assert.Equal(t, "Access to sensitive systems: prod-crm", got.Concerns[3].Description)
}

func TestAnalyzeWorkflow(t *testing.T) {
	a := NewAnalyzer()
	steps := []Step{
		{ID: "1", AutomationDetails: "update customer notes"},
		{ID: "2", Description: "notify the team"},
		{ID: "3", AutomationDetails: "insert audit records"},
	}

	got := a.AnalyzeWorkflow(steps, 2)

	require.Len(t, got.Steps, 3)
	assert.Empty(t, got.Steps[1].Approvals)

	summary := got.Summary
	assert.Equal(t, 3, summary.TotalSteps)
	assert.Equal(t, 2, summary.Counts.DatabaseWriteSteps)
	require.Len(t, summary.Approvals, 1)
	assert.Equal(t, ApprovalDBA, summary.Approvals[0].Type)
	assert.Contains(t, summary.Approvals[0].Reason, "Step 1")
	assert.Contains(t, summary.Approvals[0].Reason, "Step 3")
	assert.NotContains(t, summary.Approvals[0].Reason, "Step 2")
}

func TestAnalyzeWorkflowAssignsPositionalIDs(t *testing.T) {
	got := NewAnalyzer().AnalyzeWorkflow([]Step{
		{Name: "first"},
		{ID: "custom", Name: "second"},
		{Name: "third", AutomationDetails: "write results"},
	}, 0)

	require.Len(t, got.Steps, 3)
	assert.Equal(t, "1", got.Steps[0].StepID)
	assert.Equal(t, "custom", got.Steps[1].StepID)
	assert.Equal(t, "3", got.Steps[2].StepID)
	assert.Equal(t, "third", got.Steps[2].StepName)
	assert.Equal(t, "Step 3: Database write access required", got.Summary.Approvals[0].Reason)
}

func TestAnalyzeWorkflowConcurrentMatchesSequential(t *testing.T) {
	a := NewAnalyzer()
	templates := []Step{
		{Description: "Look up 123-45-6789", AutomationDetails: "query the ledger"},
		{Tool: "Stripe", AutomationDetails: "create refunds"},
		{Databases: []string{"live-accounts"}, AutomationDetails: "grant read access"},
		{Description: "Send the weekly digest"},
		{AccessRequirements: []string{"api key"}, AutomationDetails: "export invoices", Databases: []string{"billing"}},
	}
	var steps []Step
	for i := 0; i < 40; i++ {
		s := templates[i%len(templates)]
		s.ID = fmt.Sprintf("s%02d", i)
		steps = append(steps, s)
	}

	sequential := a.AnalyzeWorkflow(steps, 1)
	for _, workers := range []int{0, 3, 16} {
		assert.Equal(t, sequential, a.AnalyzeWorkflow(steps, workers), "workers=%d", workers)
	}
}

func TestAnalyzerWithCustomRules(t *testing.T) {
	lib, err := DefaultPatternLibrary().Extend(RuleSpec{
		Name:     "system-cardvault",
		Category: CategoryPaymentProcessing,
		Kind:     MatchSubstring,
		Fields:   []Field{FieldTool},
		Terms:    []string{"cardvault"},
	})
	require.NoError(t, err)

	a := NewAnalyzer(WithPatternLibrary(lib))
	got := a.AnalyzeStep(Step{Tool: "CardVault Sync"})

	assert.Equal(t, RiskCritical, got.RiskLevel)
	assert.True(t, got.Has(CategoryPaymentProcessing))
	assert.Same(t, lib, a.PatternLibrary())
	assert.True(t, strings.HasPrefix(got.RiskReason, "payment"), got.RiskReason)
}
