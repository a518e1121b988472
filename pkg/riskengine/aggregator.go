package riskengine

import (
	"fmt"
	"strconv"
)

// Aggregate folds step analyses into a workflow summary using the default
// reason separator.
func Aggregate(analyses []StepSecurityAnalysis) WorkflowSecuritySummary {
	return aggregate(analyses, DefaultReasonSeparator)
}

// Aggregate folds step analyses using the analyzer's reason separator.
func (a *Analyzer) Aggregate(analyses []StepSecurityAnalysis) WorkflowSecuritySummary {
	return aggregate(analyses, a.policy.Separator())
}

func aggregate(analyses []StepSecurityAnalysis, separator string) WorkflowSecuritySummary {
	summary := WorkflowSecuritySummary{
		RiskLevel:  RiskLow,
		TotalSteps: len(analyses),
	}
	approvals := newApprovalSet(separator)
	standards := make(map[ComplianceStandard]bool)

	for i, step := range analyses {
		id := stepLabel(step, i)
		summary.RiskLevel = MaxRisk(summary.RiskLevel, step.RiskLevel)

		if step.RiskLevel >= RiskHigh {
			summary.HighRiskSteps = append(summary.HighRiskSteps, HighRiskStep{
				StepID:    id,
				StepName:  step.StepName,
				RiskLevel: step.RiskLevel,
			})
		}

		for _, req := range step.Approvals {
			tmpl := ApprovalTemplate{
				ApproverRole:          req.ApproverRole,
				RequiredDocumentation: req.RequiredDocumentation,
				EstimatedTime:         req.EstimatedTime,
			}
			reasons := req.Reasons
			if len(reasons) == 0 && req.Reason != "" {
				reasons = []string{req.Reason}
			}
			annotated := make([]string, len(reasons))
			for j, r := range reasons {
				annotated[j] = fmt.Sprintf("Step %s: %s", id, r)
			}
			approvals.add(tmpl, req.Type, annotated...)
		}

		for _, s := range step.ComplianceStandards {
			standards[s] = true
		}

		if step.HasPII() {
			summary.Counts.PIIHandlingSteps++
		}
		if step.Has(CategoryDBWrite) || step.Has(CategoryDBAdmin) {
			summary.Counts.DatabaseWriteSteps++
		}
		if step.Has(CategoryPaymentProcessing) {
			summary.Counts.PaymentProcessingSteps++
		}
		if step.Has(CategoryProductionSystem) {
			summary.Counts.ProductionAccessSteps++
		}
	}

	summary.Approvals = approvals.list()
	for _, entry := range complianceByApproval {
		if standards[entry.Standard] {
			summary.ComplianceStandards = append(summary.ComplianceStandards, entry.Standard)
		}
	}
	summary.Recommendations = recommendationsFor(summary)
	return summary
}

func stepLabel(step StepSecurityAnalysis, index int) string {
	if step.StepID != "" {
		return step.StepID
	}
	return strconv.Itoa(index + 1)
}

type recommendationRule struct {
	when  func(WorkflowSecuritySummary) bool
	texts []string
}

func hasStandard(s WorkflowSecuritySummary, std ComplianceStandard) bool {
	for _, got := range s.ComplianceStandards {
		if got == std {
			return true
		}
	}
	return false
}

// recommendationRules are emitted in priority order.
var recommendationRules = []recommendationRule{
	{
		when: func(s WorkflowSecuritySummary) bool { return s.Counts.PaymentProcessingSteps > 0 },
		texts: []string{
			"Ensure PCI DSS compliance for all payment processing operations",
			"Implement payment card data tokenization where possible",
		},
	},
	{
		when: func(s WorkflowSecuritySummary) bool { return s.Counts.PIIHandlingSteps > 0 },
		texts: []string{
			"Implement data encryption at rest and in transit for all PII handling operations",
			"Add audit logging for all access to personally identifiable information",
		},
	},
	{
		when: func(s WorkflowSecuritySummary) bool { return s.Counts.ProductionAccessSteps > 0 },
		texts: []string{
			"Implement change control processes for all production system access",
			"Add comprehensive monitoring and alerting for production operations",
		},
	},
	{
		when: func(s WorkflowSecuritySummary) bool { return s.Counts.DatabaseWriteSteps > 0 },
		texts: []string{
			"Implement database transaction rollback capabilities for all write operations",
			"Add database operation monitoring and alerting",
		},
	},
	{
		when: func(s WorkflowSecuritySummary) bool { return hasStandard(s, ComplianceSOX) },
		texts: []string{
			"Maintain SOX audit trails for every change to financial data",
		},
	},
	{
		when: func(s WorkflowSecuritySummary) bool { return s.RiskLevel >= RiskHigh },
		texts: []string{
			"Consider implementing this automation in stages with manual checkpoints",
			"Establish incident response procedures specific to this automation",
		},
	},
}

func recommendationsFor(s WorkflowSecuritySummary) []string {
	var out []string
	for _, rule := range recommendationRules {
		if rule.when(s) {
			out = append(out, rule.texts...)
		}
	}
	return out
}
