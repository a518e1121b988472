package riskengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analysisOf(id string, categories ...Category) StepSecurityAnalysis {
	findings := findingsOf(categories...)
	risk, reason := Explain(findings)
	approvals := DefaultApprovalPolicy("").Map(risk, findings)
	return StepSecurityAnalysis{
		StepID:              id,
		RiskLevel:           risk,
		RiskReason:          reason,
		Findings:            findings,
		Approvals:           approvals,
		ComplianceStandards: ComplianceStandardsFor(approvals),
		Concerns:            concernsFor(findings),
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)

	assert.Equal(t, RiskLow, got.RiskLevel)
	assert.Equal(t, 0, got.TotalSteps)
	assert.Empty(t, got.HighRiskSteps)
	assert.Empty(t, got.Approvals)
	assert.Empty(t, got.ComplianceStandards)
	assert.Empty(t, got.Recommendations)
	assert.Equal(t, CategoryCounts{}, got.Counts)
}

func TestAggregateSingleStep(t *testing.T) {
	step := analysisOf("7", CategoryPIICreditCard, CategoryDBWrite)
	got := Aggregate([]StepSecurityAnalysis{step})

	assert.Equal(t, step.RiskLevel, got.RiskLevel)
	assert.Equal(t, 1, got.TotalSteps)
	assert.Equal(t, typesOf(step.Approvals), typesOf(got.Approvals))
	assert.Equal(t, step.ComplianceStandards, got.ComplianceStandards)
	require.Len(t, got.HighRiskSteps, 1)
	assert.Equal(t, HighRiskStep{StepID: "7", RiskLevel: RiskCritical}, got.HighRiskSteps[0])

	for _, a := range got.Approvals {
		for _, r := range a.Reasons {
			assert.Contains(t, r, "Step 7: ")
		}
	}
}

func TestAggregateMergesApprovalsAcrossSteps(t *testing.T) {
	steps := []StepSecurityAnalysis{
		analysisOf("1", CategoryDBWrite),
		analysisOf("2"),
		analysisOf("3", CategoryDBWrite),
	}
	got := Aggregate(steps)

	assert.Equal(t, RiskMedium, got.RiskLevel)
	assert.Equal(t, 3, got.TotalSteps)
	assert.Empty(t, got.HighRiskSteps)
	require.Len(t, got.Approvals, 1)

	dba := got.Approvals[0]
	assert.Equal(t, ApprovalDBA, dba.Type)
	assert.Equal(t, []string{
		"Step 1: Database write access required",
		"Step 3: Database write access required",
	}, dba.Reasons)
	assert.Equal(t, "Step 1: Database write access required; Step 3: Database write access required", dba.Reason)
	assert.Equal(t, 2, got.Counts.DatabaseWriteSteps)
}

func TestAggregateCountsDistinctSteps(t *testing.T) {
	steps := []StepSecurityAnalysis{
		analysisOf("a", CategoryPIIEmail, CategoryPIIPhone, CategoryDBWrite, CategoryDBAdmin),
		analysisOf("b", CategoryProductionSystem, CategoryPaymentProcessing),
		analysisOf("c", CategoryDBAdmin),
		analysisOf("d", CategoryDBRead),
	}
	got := Aggregate(steps)

	assert.Equal(t, CategoryCounts{
		PIIHandlingSteps:       1,
		DatabaseWriteSteps:     2,
		PaymentProcessingSteps: 1,
		ProductionAccessSteps:  1,
	}, got.Counts)
	assert.Equal(t, 4, got.TotalSteps)
}

func TestAggregateHighRiskSteps(t *testing.T) {
	steps := []StepSecurityAnalysis{
		analysisOf("1", CategoryDBRead),
		analysisOf("2", CategoryProductionSystem),
		analysisOf("3", CategoryPIIEmail),
		analysisOf("4", CategoryPaymentProcessing),
	}
	steps[1].StepName = "Deploy"

	got := Aggregate(steps)
	assert.Equal(t, RiskCritical, got.RiskLevel)
	assert.Equal(t, []HighRiskStep{
		{StepID: "2", StepName: "Deploy", RiskLevel: RiskHigh},
		{StepID: "4", RiskLevel: RiskCritical},
	}, got.HighRiskSteps)
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	steps := []StepSecurityAnalysis{
		analysisOf("1", CategoryPIISSN),
		analysisOf("2", CategoryDBAdmin, CategoryProductionSystem),
		analysisOf("3", CategoryFinancialData, CategoryDBWrite),
		analysisOf("4", CategoryPIIEmail),
	}
	reversed := make([]StepSecurityAnalysis, len(steps))
	for i, s := range steps {
		reversed[len(steps)-1-i] = s
	}

	a := Aggregate(steps)
	b := Aggregate(reversed)

	assert.Equal(t, a.RiskLevel, b.RiskLevel)
	assert.Equal(t, typesOf(a.Approvals), typesOf(b.Approvals))
	assert.ElementsMatch(t, a.HighRiskSteps, b.HighRiskSteps)
	assert.Equal(t, a.ComplianceStandards, b.ComplianceStandards)
	assert.Equal(t, a.Counts, b.Counts)
	assert.Equal(t, a.Recommendations, b.Recommendations)
	for i := range a.Approvals {
		assert.ElementsMatch(t, a.Approvals[i].Reasons, b.Approvals[i].Reasons)
	}
}

func TestAggregateUnionOfComplianceStandards(t *testing.T) {
	got := Aggregate([]StepSecurityAnalysis{
		analysisOf("1", CategoryFinancialData),
		analysisOf("2", CategoryPIICreditCard),
	})
	assert.Equal(t, []ComplianceStandard{CompliancePCIDSS, ComplianceSOX}, got.ComplianceStandards)
}

func TestAggregateRecommendations(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepSecurityAnalysis
		want  []string
	}{
		{
			name:  "Low risk read",
			steps: []StepSecurityAnalysis{analysisOf("1", CategoryDBRead)},
			want:  nil,
		},
		{
			name:  "Write only",
			steps: []StepSecurityAnalysis{analysisOf("1", CategoryDBWrite)},
			want: []string{
				"Implement database transaction rollback capabilities for all write operations",
				"Add database operation monitoring and alerting",
			},
		},
		{
			name: "Payment and PII",
			steps: []StepSecurityAnalysis{
				analysisOf("1", CategoryPIIEmail),
				analysisOf("2", CategoryPaymentProcessing),
			},
			want: []string{
				"Ensure PCI DSS compliance for all payment processing operations",
				"Implement payment card data tokenization where possible",
				"Implement data encryption at rest and in transit for all PII handling operations",
				"Add audit logging for all access to personally identifiable information",
				"Consider implementing this automation in stages with manual checkpoints",
				"Establish incident response procedures specific to this automation",
			},
		},
		{
			name:  "Financial data",
			steps: []StepSecurityAnalysis{analysisOf("1", CategoryFinancialData)},
			want: []string{
				"Maintain SOX audit trails for every change to financial data",
				"Consider implementing this automation in stages with manual checkpoints",
				"Establish incident response procedures specific to this automation",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Aggregate(tc.steps).Recommendations)
		})
	}
}

func TestAggregateFallsBackToPosition(t *testing.T) {
	got := Aggregate([]StepSecurityAnalysis{
		analysisOf("", CategoryDBRead),
		analysisOf("", CategoryDBWrite),
	})
	require.Len(t, got.Approvals, 1)
	assert.Equal(t, []string{"Step 2: Database write access required"}, got.Approvals[0].Reasons)
}

func TestAnalyzerAggregateUsesPolicySeparator(t *testing.T) {
	a := NewAnalyzer(WithApprovalPolicy(DefaultApprovalPolicy(" / ")))
	got := a.Aggregate([]StepSecurityAnalysis{
		analysisOf("1", CategoryDBWrite),
		analysisOf("2", CategoryDBWrite),
	})
	require.Len(t, got.Approvals, 1)
	assert.Equal(t, "Step 1: Database write access required / Step 2: Database write access required", got.Approvals[0].Reason)
}
