package riskengine

import (
	"fmt"
	"sort"
	"strings"
)

// ApprovalType names an organizational sign-off obligation.
type ApprovalType string

const (
	ApprovalSecurityReview   ApprovalType = "security_review"
	ApprovalDBA              ApprovalType = "dba_approval"
	ApprovalComplianceReview ApprovalType = "compliance_review"
	ApprovalLegalReview      ApprovalType = "legal_review"
	ApprovalManager          ApprovalType = "manager_approval"
	ApprovalChangeControl    ApprovalType = "change_control"
	ApprovalPCIReview        ApprovalType = "pci_review"
	ApprovalSOXCompliance    ApprovalType = "sox_compliance"
)

var approvalTypeOrder = []ApprovalType{
	ApprovalSecurityReview,
	ApprovalDBA,
	ApprovalComplianceReview,
	ApprovalLegalReview,
	ApprovalManager,
	ApprovalChangeControl,
	ApprovalPCIReview,
	ApprovalSOXCompliance,
}

// ApprovalTypes returns all approval types in canonical order.
func ApprovalTypes() []ApprovalType {
	out := make([]ApprovalType, len(approvalTypeOrder))
	copy(out, approvalTypeOrder)
	return out
}

func (t ApprovalType) rank() int {
	for i, known := range approvalTypeOrder {
		if known == t {
			return i
		}
	}
	return len(approvalTypeOrder)
}

// DefaultReasonSeparator joins merged approval reasons.
const DefaultReasonSeparator = "; "

// ApprovalRequirement is one required sign-off. Two requirements with the same
// Type are the same obligation; their reasons are merged.
type ApprovalRequirement struct {
	Type                  ApprovalType `json:"approval_type" yaml:"approval_type"`
	ApproverRole          string       `json:"approver_role" yaml:"approver_role"`
	RequiredDocumentation []string     `json:"required_documentation" yaml:"required_documentation"`
	EstimatedTime         string       `json:"estimated_time" yaml:"estimated_time"`
	Reason                string       `json:"reason" yaml:"reason"`
	Reasons               []string     `json:"reasons" yaml:"reasons"`
}

// ApprovalTemplate holds the policy constants of an approval type.
type ApprovalTemplate struct {
	ApproverRole          string
	RequiredDocumentation []string
	EstimatedTime         string
}

// ApprovalRule contributes an approval of Type with Reason when its trigger holds.
// Risks restricts the rule to the listed levels; AnyOf requires at least one of
// the listed categories. An empty list does not constrain.
type ApprovalRule struct {
	Type   ApprovalType
	Reason string
	Risks  []RiskLevel
	AnyOf  []Category
}

func (r ApprovalRule) triggered(risk RiskLevel, present map[Category]bool) bool {
	if len(r.Risks) > 0 {
		ok := false
		for _, l := range r.Risks {
			if l == risk {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(r.AnyOf) > 0 {
		ok := false
		for _, c := range r.AnyOf {
			if present[c] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return len(r.Risks) > 0 || len(r.AnyOf) > 0
}

// ApprovalPolicy is the declarative mapping from risk and findings to approvals.
type ApprovalPolicy struct {
	templates map[ApprovalType]ApprovalTemplate
	rules     []ApprovalRule
	separator string
}

// NewApprovalPolicy validates that every rule has a template and builds a policy.
func NewApprovalPolicy(templates map[ApprovalType]ApprovalTemplate, rules []ApprovalRule, separator string) (*ApprovalPolicy, error) {
	if separator == "" {
		separator = DefaultReasonSeparator
	}
	p := &ApprovalPolicy{
		templates: make(map[ApprovalType]ApprovalTemplate, len(templates)),
		separator: separator,
	}
	for t, tmpl := range templates {
		tmpl.RequiredDocumentation = append([]string(nil), tmpl.RequiredDocumentation...)
		p.templates[t] = tmpl
	}
	for i, r := range rules {
		if _, ok := p.templates[r.Type]; !ok {
			return nil, fmt.Errorf("approval rule %d: no template for %q", i, r.Type)
		}
		if len(r.Risks) == 0 && len(r.AnyOf) == 0 {
			return nil, fmt.Errorf("approval rule %d (%s): trigger is empty", i, r.Type)
		}
		if strings.TrimSpace(r.Reason) == "" {
			return nil, fmt.Errorf("approval rule %d (%s): reason is empty", i, r.Type)
		}
		p.rules = append(p.rules, ApprovalRule{
			Type:   r.Type,
			Reason: r.Reason,
			Risks:  append([]RiskLevel(nil), r.Risks...),
			AnyOf:  append([]Category(nil), r.AnyOf...),
		})
	}
	return p, nil
}

// DefaultApprovalPolicy returns the built-in policy table.
func DefaultApprovalPolicy(separator string) *ApprovalPolicy {
	p, err := NewApprovalPolicy(DefaultApprovalTemplates(), DefaultApprovalRules(), separator)
	if err != nil {
		panic(fmt.Sprintf("built-in approval policy is invalid: %v", err))
	}
	return p
}

// DefaultApprovalTemplates returns the built-in approver roles, documentation and turnaround.
func DefaultApprovalTemplates() map[ApprovalType]ApprovalTemplate {
	return map[ApprovalType]ApprovalTemplate{
		ApprovalSecurityReview: {
			ApproverRole:          "Security Team Lead",
			RequiredDocumentation: []string{"Security assessment", "Risk analysis", "Mitigation plan"},
			EstimatedTime:         "2-3 business days",
		},
		ApprovalDBA: {
			ApproverRole:          "Database Administrator",
			RequiredDocumentation: []string{"Database access request", "Query review", "Backup plan"},
			EstimatedTime:         "1-2 business days",
		},
		ApprovalComplianceReview: {
			ApproverRole:          "Compliance Officer",
			RequiredDocumentation: []string{"Compliance checklist", "Privacy impact assessment"},
			EstimatedTime:         "3-5 business days",
		},
		ApprovalLegalReview: {
			ApproverRole:          "Legal Counsel",
			RequiredDocumentation: []string{"Legal risk assessment", "Data processing agreement"},
			EstimatedTime:         "5-7 business days",
		},
		ApprovalManager: {
			ApproverRole:          "Department Manager",
			RequiredDocumentation: []string{"Business justification", "Risk acceptance"},
			EstimatedTime:         "1-2 business days",
		},
		ApprovalChangeControl: {
			ApproverRole:          "Change Advisory Board",
			RequiredDocumentation: []string{"Change request form", "Impact assessment", "Rollback plan"},
			EstimatedTime:         "3-5 business days",
		},
		ApprovalPCIReview: {
			ApproverRole:          "PCI Compliance Officer",
			RequiredDocumentation: []string{"PCI compliance checklist", "Security controls review"},
			EstimatedTime:         "3-7 business days",
		},
		ApprovalSOXCompliance: {
			ApproverRole:          "SOX Compliance Team",
			RequiredDocumentation: []string{"SOX controls review", "Financial impact assessment"},
			EstimatedTime:         "5-10 business days",
		},
	}
}

var piiCategories = []Category{CategoryPIISSN, CategoryPIICreditCard, CategoryPIIEmail, CategoryPIIPhone}

// DefaultApprovalRules returns the built-in trigger table. Each row is one
// independent trigger; several rows may share an approval type.
func DefaultApprovalRules() []ApprovalRule {
	highOrCritical := []RiskLevel{RiskHigh, RiskCritical}
	return []ApprovalRule{
		{Type: ApprovalSecurityReview, Risks: []RiskLevel{RiskHigh}, Reason: "High risk automation requires security review"},
		{Type: ApprovalSecurityReview, Risks: []RiskLevel{RiskCritical}, Reason: "Critical risk automation requires security review"},

		{Type: ApprovalDBA, AnyOf: []Category{CategoryDBWrite}, Reason: "Database write access required"},
		{Type: ApprovalDBA, AnyOf: []Category{CategoryDBAdmin}, Reason: "Administrative database operation requested"},

		{Type: ApprovalComplianceReview, AnyOf: []Category{CategoryPIISSN}, Reason: "Social security number handling detected"},
		{Type: ApprovalComplianceReview, AnyOf: []Category{CategoryPIICreditCard}, Reason: "Credit card number handling detected"},
		{Type: ApprovalComplianceReview, AnyOf: []Category{CategoryPIIEmail}, Reason: "Email address handling detected"},
		{Type: ApprovalComplianceReview, AnyOf: []Category{CategoryPIIPhone}, Reason: "Phone number handling detected"},

		{Type: ApprovalLegalReview, AnyOf: append([]Category(nil), piiCategories...), Risks: highOrCritical, Reason: "Personal data processed in a high-risk step"},

		{Type: ApprovalManager, Risks: []RiskLevel{RiskHigh}, Reason: "High-risk automation requiring management approval"},

		{Type: ApprovalChangeControl, AnyOf: []Category{CategoryProductionSystem}, Reason: "Production system changes"},

		{Type: ApprovalPCIReview, AnyOf: []Category{CategoryPaymentProcessing}, Reason: "Payment card data processing detected"},
		{Type: ApprovalPCIReview, AnyOf: []Category{CategoryPIICreditCard}, Reason: "Credit card number present in step content"},

		{Type: ApprovalSOXCompliance, AnyOf: []Category{CategoryFinancialData}, Reason: "Financial data processing requiring SOX compliance"},
	}
}

// Rules returns a copy of the trigger table.
func (p *ApprovalPolicy) Rules() []ApprovalRule {
	out := make([]ApprovalRule, len(p.rules))
	for i, r := range p.rules {
		out[i] = ApprovalRule{
			Type:   r.Type,
			Reason: r.Reason,
			Risks:  append([]RiskLevel(nil), r.Risks...),
			AnyOf:  append([]Category(nil), r.AnyOf...),
		}
	}
	return out
}

// Template returns the policy constants for an approval type.
func (p *ApprovalPolicy) Template(t ApprovalType) (ApprovalTemplate, bool) {
	tmpl, ok := p.templates[t]
	if !ok {
		return ApprovalTemplate{}, false
	}
	tmpl.RequiredDocumentation = append([]string(nil), tmpl.RequiredDocumentation...)
	return tmpl, true
}

// Separator returns the string used to join merged reasons.
func (p *ApprovalPolicy) Separator() string {
	return p.separator
}

// Map returns the approvals required for a step with the given risk and findings,
// one per approval type, in canonical type order.
func (p *ApprovalPolicy) Map(risk RiskLevel, findings []Finding) []ApprovalRequirement {
	present := categorySet(findings)
	set := newApprovalSet(p.separator)
	for _, rule := range p.rules {
		if rule.triggered(risk, present) {
			set.add(p.templates[rule.Type], rule.Type, rule.Reason)
		}
	}
	return set.list()
}

// approvalSet merges requirements by type, keeping distinct reasons in arrival order.
type approvalSet struct {
	separator string
	byType    map[ApprovalType]*ApprovalRequirement
	seen      map[ApprovalType]map[string]bool
}

func newApprovalSet(separator string) *approvalSet {
	return &approvalSet{
		separator: separator,
		byType:    make(map[ApprovalType]*ApprovalRequirement),
		seen:      make(map[ApprovalType]map[string]bool),
	}
}

func (s *approvalSet) add(tmpl ApprovalTemplate, t ApprovalType, reasons ...string) {
	req, ok := s.byType[t]
	if !ok {
		req = &ApprovalRequirement{
			Type:                  t,
			ApproverRole:          tmpl.ApproverRole,
			RequiredDocumentation: append([]string(nil), tmpl.RequiredDocumentation...),
			EstimatedTime:         tmpl.EstimatedTime,
		}
		s.byType[t] = req
		s.seen[t] = make(map[string]bool)
	}
	for _, r := range reasons {
		if r == "" || s.seen[t][r] {
			continue
		}
		s.seen[t][r] = true
		req.Reasons = append(req.Reasons, r)
	}
}

func (s *approvalSet) list() []ApprovalRequirement {
	out := make([]ApprovalRequirement, 0, len(s.byType))
	for _, t := range approvalTypeOrder {
		if req, ok := s.byType[t]; ok {
			out = append(out, s.finish(*req))
		}
	}
	// types outside the canonical list come from custom policies; keep them stable.
	var extra []ApprovalType
	for t := range s.byType {
		if t.rank() == len(approvalTypeOrder) {
			extra = append(extra, t)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, t := range extra {
		out = append(out, s.finish(*s.byType[t]))
	}
	return out
}

func (s *approvalSet) finish(req ApprovalRequirement) ApprovalRequirement {
	req.Reasons = append([]string(nil), req.Reasons...)
	req.Reason = strings.Join(req.Reasons, s.separator)
	return req
}
