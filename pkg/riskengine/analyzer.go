package riskengine

import (
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Analyzer composes the extractor, the classifier and an approval policy.
// It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	extractor *Extractor
	policy    *ApprovalPolicy
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithPatternLibrary replaces the built-in pattern library.
func WithPatternLibrary(lib *PatternLibrary) Option {
	return func(a *Analyzer) {
		a.extractor = NewExtractor(lib)
	}
}

// WithApprovalPolicy replaces the built-in approval policy.
func WithApprovalPolicy(p *ApprovalPolicy) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.policy = p
		}
	}
}

// NewAnalyzer returns an Analyzer using the built-in rules unless overridden.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}
	if a.extractor == nil {
		a.extractor = NewExtractor(nil)
	}
	if a.policy == nil {
		a.policy = DefaultApprovalPolicy(DefaultReasonSeparator)
	}
	return a
}

// Policy returns the approval policy the analyzer applies.
func (a *Analyzer) Policy() *ApprovalPolicy {
	return a.policy
}

// PatternLibrary returns the pattern library the analyzer scans with.
func (a *Analyzer) PatternLibrary() *PatternLibrary {
	return a.extractor.lib
}

// AnalyzeStep produces the security analysis of a single step.
func (a *Analyzer) AnalyzeStep(step Step) StepSecurityAnalysis {
	findings := a.extractor.Extract(step)
	risk, reason := Explain(findings)
	approvals := a.policy.Map(risk, findings)

	return StepSecurityAnalysis{
		StepID:              step.ID,
		StepName:            step.Name,
		RiskLevel:           risk,
		RiskReason:          reason,
		Findings:            findings,
		Approvals:           approvals,
		ComplianceStandards: ComplianceStandardsFor(approvals),
		Concerns:            concernsFor(findings),
	}
}

// WorkflowAnalysis bundles the per-step results with their summary.
type WorkflowAnalysis struct {
	Steps   []StepSecurityAnalysis  `json:"steps" yaml:"steps"`
	Summary WorkflowSecuritySummary `json:"security_summary" yaml:"security_summary"`
}

// AnalyzeWorkflow analyses every step concurrently, at most workers at a time
// (workers <= 0 means unbounded), and folds the results in input order.
// Steps without an ID are identified by their 1-based position.
func (a *Analyzer) AnalyzeWorkflow(steps []Step, workers int) WorkflowAnalysis {
	results := make([]StepSecurityAnalysis, len(steps))

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, step := range steps {
		i, step := i, step
		if step.ID == "" {
			step.ID = strconv.Itoa(i + 1)
		}
		g.Go(func() error {
			results[i] = a.AnalyzeStep(step)
			return nil
		})
	}
	_ = g.Wait()

	return WorkflowAnalysis{
		Steps:   results,
		Summary: a.Aggregate(results),
	}
}

// concernRule describes a risk area. Matched PII values are never echoed into
// the description; the category names are listed instead.
type concernRule struct {
	Type       string
	AnyOf      []Category
	Summary    string
	Mitigation string
	ByCategory bool
}

var concernRules = []concernRule{
	{"PII_HANDLING", piiCategories, "Potential PII detected", "Implement data masking, encryption, and access logging", true},
	{"SENSITIVE_DATA_REFERENCE", []Category{CategorySensitiveKeyword}, "Sensitive data referenced", "Restrict access to sensitive records and keep them out of logs", false},
	{"DATABASE_WRITE_ACCESS", []Category{CategoryDBWrite, CategoryDBAdmin}, "Database write access detected", "Implement proper access controls and audit logging", false},
	{"SENSITIVE_SYSTEM_ACCESS", []Category{CategoryProductionSystem}, "Access to sensitive systems", "Implement strict access controls and monitoring", false},
	{"PAYMENT_PROCESSING", []Category{CategoryPaymentProcessing}, "Payment card data processing detected", "Ensure PCI DSS compliance, tokenization, and secure transmission", false},
	{"FINANCIAL_DATA", []Category{CategoryFinancialData}, "Financial data processing detected", "Implement SOX controls and audit trails", false},
}

func concernsFor(findings []Finding) []Concern {
	var out []Concern
	for _, rule := range concernRules {
		var evidence []string
		seen := make(map[string]bool)
		for _, f := range findings {
			for _, c := range rule.AnyOf {
				if f.Category != c {
					continue
				}
				item := f.Evidence
				if rule.ByCategory {
					item = string(f.Category)
				}
				if !seen[item] {
					seen[item] = true
					evidence = append(evidence, item)
				}
			}
		}
		if len(evidence) == 0 {
			continue
		}
		out = append(out, Concern{
			Type:        rule.Type,
			Description: rule.Summary + ": " + strings.Join(evidence, ", "),
			Mitigation:  rule.Mitigation,
		})
	}
	return out
}
