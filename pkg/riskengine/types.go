// Package riskengine classifies automation workflow steps by security risk and
// computes the approvals each step, and the workflow as a whole, requires.
//
// Every exported operation is a pure function of its inputs: no I/O, no shared
// mutable state. Callers are expected to hand over validated step records.
package riskengine

import (
	"fmt"
	"strings"
)

// Category identifies the kind of signal a Finding represents.
type Category string

const (
	CategoryPIISSN            Category = "PII_SSN"
	CategoryPIICreditCard     Category = "PII_CREDIT_CARD"
	CategoryPIIEmail          Category = "PII_EMAIL"
	CategoryPIIPhone          Category = "PII_PHONE"
	CategorySensitiveKeyword  Category = "SENSITIVE_KEYWORD"
	CategoryDBRead            Category = "DB_READ"
	CategoryDBWrite           Category = "DB_WRITE"
	CategoryDBAdmin           Category = "DB_ADMIN"
	CategoryProductionSystem  Category = "PRODUCTION_SYSTEM"
	CategoryPaymentProcessing Category = "PAYMENT_PROCESSING"
	CategoryFinancialData     Category = "FINANCIAL_DATA"
)

// categoryOrder is the canonical output order for categories.
var categoryOrder = []Category{
	CategoryPIISSN,
	CategoryPIICreditCard,
	CategoryPIIEmail,
	CategoryPIIPhone,
	CategorySensitiveKeyword,
	CategoryDBRead,
	CategoryDBWrite,
	CategoryDBAdmin,
	CategoryProductionSystem,
	CategoryPaymentProcessing,
	CategoryFinancialData,
}

// Categories returns all known categories in canonical order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory converts a string into a known Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	if c.rank() < 0 {
		return "", fmt.Errorf("unsupported category %q", raw)
	}
	return c, nil
}

// IsPII reports whether the category is one of the PII_* categories.
func (c Category) IsPII() bool {
	switch c {
	case CategoryPIISSN, CategoryPIICreditCard, CategoryPIIEmail, CategoryPIIPhone:
		return true
	default:
		return false
	}
}

func (c Category) rank() int {
	for i, known := range categoryOrder {
		if known == c {
			return i
		}
	}
	return -1
}

// Field names one text field of a step record.
type Field string

const (
	FieldDescription        Field = "description"
	FieldTool               Field = "tool"
	FieldDatabases          Field = "databases"
	FieldAccessRequirements Field = "access_requirements"
	FieldAutomationDetails  Field = "automation_details"
	FieldCompanyResources   Field = "company_resources"
)

var fieldOrder = []Field{
	FieldDescription,
	FieldTool,
	FieldDatabases,
	FieldAccessRequirements,
	FieldAutomationDetails,
	FieldCompanyResources,
}

// Fields returns all step fields in scan order.
func Fields() []Field {
	out := make([]Field, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// ParseField converts a string into a known Field.
func ParseField(raw string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(raw)))
	if f.rank() < 0 {
		return "", fmt.Errorf("unsupported field %q", raw)
	}
	return f, nil
}

func (f Field) rank() int {
	for i, known := range fieldOrder {
		if known == f {
			return i
		}
	}
	return -1
}

// Step is one automation step as produced by the orchestration layer.
type Step struct {
	ID                 string
	Name               string
	Description        string
	Tool               string
	Databases          []string
	AccessRequirements []string
	AutomationDetails  string
	CompanyResources   []string
}

// values returns the raw text held by the named field. List fields return one
// entry per element so that matches never span two names.
func (s Step) values(f Field) []string {
	switch f {
	case FieldDescription:
		return []string{s.Description}
	case FieldTool:
		return []string{s.Tool}
	case FieldDatabases:
		return s.Databases
	case FieldAccessRequirements:
		return s.AccessRequirements
	case FieldAutomationDetails:
		return []string{s.AutomationDetails}
	case FieldCompanyResources:
		return s.CompanyResources
	default:
		return nil
	}
}

// Finding is one detected signal within a step.
type Finding struct {
	Category    Category `json:"category" yaml:"category"`
	Evidence    string   `json:"evidence" yaml:"evidence"`
	SourceField Field    `json:"source_field" yaml:"source_field"`
}

// HasCategory reports whether any finding carries the category.
func HasCategory(findings []Finding, c Category) bool {
	for _, f := range findings {
		if f.Category == c {
			return true
		}
	}
	return false
}

func categorySet(findings []Finding) map[Category]bool {
	set := make(map[Category]bool, len(findings))
	for _, f := range findings {
		set[f.Category] = true
	}
	return set
}

// ComplianceStandard is a regulatory regime implicated by a step.
type ComplianceStandard string

const (
	CompliancePCIDSS ComplianceStandard = "PCI_DSS"
	ComplianceSOX    ComplianceStandard = "SOX"
)

// complianceByApproval maps approvals to the regime they stand for.
var complianceByApproval = []struct {
	Approval ApprovalType
	Standard ComplianceStandard
}{
	{ApprovalPCIReview, CompliancePCIDSS},
	{ApprovalSOXCompliance, ComplianceSOX},
}

// ComplianceStandardsFor derives the compliance tags implied by a set of approvals.
func ComplianceStandardsFor(approvals []ApprovalRequirement) []ComplianceStandard {
	var out []ComplianceStandard
	for _, entry := range complianceByApproval {
		for _, a := range approvals {
			if a.Type == entry.Approval {
				out = append(out, entry.Standard)
				break
			}
		}
	}
	return out
}

// Concern is a human readable description of a risk area with its mitigation.
type Concern struct {
	Type        string `json:"concern_type" yaml:"concern_type"`
	Description string `json:"description" yaml:"description"`
	Mitigation  string `json:"mitigation" yaml:"mitigation"`
}

// StepSecurityAnalysis is the per-step result. It is never mutated after creation.
type StepSecurityAnalysis struct {
	StepID              string                `json:"step_id" yaml:"step_id"`
	StepName            string                `json:"step_name,omitempty" yaml:"step_name,omitempty"`
	RiskLevel           RiskLevel             `json:"risk_level" yaml:"risk_level"`
	RiskReason          string                `json:"risk_reason" yaml:"risk_reason"`
	Findings            []Finding             `json:"findings" yaml:"findings"`
	Approvals           []ApprovalRequirement `json:"approval_requirements" yaml:"approval_requirements"`
	ComplianceStandards []ComplianceStandard  `json:"compliance_requirements" yaml:"compliance_requirements"`
	Concerns            []Concern             `json:"security_concerns" yaml:"security_concerns"`
}

// Has reports whether the analysis contains a finding of the category.
func (a StepSecurityAnalysis) Has(c Category) bool {
	return HasCategory(a.Findings, c)
}

// HasPII reports whether the analysis contains any PII_* finding.
func (a StepSecurityAnalysis) HasPII() bool {
	for _, f := range a.Findings {
		if f.Category.IsPII() {
			return true
		}
	}
	return false
}

// CategoryCounts counts distinct steps exhibiting each category group.
type CategoryCounts struct {
	PIIHandlingSteps       int `json:"pii_handling_steps" yaml:"pii_handling_steps"`
	DatabaseWriteSteps     int `json:"database_write_steps" yaml:"database_write_steps"`
	PaymentProcessingSteps int `json:"payment_processing_steps" yaml:"payment_processing_steps"`
	ProductionAccessSteps  int `json:"production_access_steps" yaml:"production_access_steps"`
}

// HighRiskStep references a step whose risk is high or critical.
type HighRiskStep struct {
	StepID    string    `json:"step_id" yaml:"step_id"`
	StepName  string    `json:"step_name,omitempty" yaml:"step_name,omitempty"`
	RiskLevel RiskLevel `json:"risk_level" yaml:"risk_level"`
}

// WorkflowSecuritySummary is the workflow-level fold of all step analyses.
type WorkflowSecuritySummary struct {
	RiskLevel           RiskLevel             `json:"overall_risk_level" yaml:"overall_risk_level"`
	TotalSteps          int                   `json:"total_steps_analyzed" yaml:"total_steps_analyzed"`
	HighRiskSteps       []HighRiskStep        `json:"high_risk_steps" yaml:"high_risk_steps"`
	Approvals           []ApprovalRequirement `json:"all_approval_requirements" yaml:"all_approval_requirements"`
	Counts              CategoryCounts        `json:"summary" yaml:"summary"`
	ComplianceStandards []ComplianceStandard  `json:"compliance_requirements" yaml:"compliance_requirements"`
	Recommendations     []string              `json:"recommendations" yaml:"recommendations"`
}
