package sarif

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/stepguard/stepguard/pkg/riskengine"
)

const (
	ToolName       = "stepguard"
	InformationURI = "https://github.com/stepguard/stepguard"

	findingRulePrefix  = "finding/"
	approvalRulePrefix = "approval/"
	fingerprintKey     = "stepguard/v1"
)

// Report wraps a sarif.Report produced from a workflow analysis.
type Report struct {
	*sarif.Report
}

// Workflow identifies the analysed document inside the report.
type Workflow struct {
	ID     string
	Title  string
	Source string
}

// NewReport builds a single-run SARIF report. Every finding becomes a result
// located at its step; every workflow approval becomes a result located at the
// workflow. Evidence is written as given, so callers mask it beforehand.
func NewReport(wf Workflow, analysis riskengine.WorkflowAnalysis, toolVersion string) (*Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create sarif report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(ToolName, InformationURI)
	if toolVersion != "" {
		run.Tool.Driver.WithVersion(toolVersion)
	}
	run.PropertyBag = *sarif.NewPropertyBag()
	run.Add("automation_id", wf.ID)
	run.Add("title", wf.Title)
	run.Add("overall_risk_level", analysis.Summary.RiskLevel.String())
	run.Add("total_steps_analyzed", analysis.Summary.TotalSteps)
	run.Add("compliance_requirements", analysis.Summary.ComplianceStandards)
	run.Add("recommendations", analysis.Summary.Recommendations)

	if wf.Source != "" {
		run.AddDistinctArtifact(wf.Source)
	}

	for _, step := range analysis.Steps {
		for _, f := range step.Findings {
			rule := addFindingRule(run, f.Category)
			result := sarif.NewRuleResult(rule.ID).
				WithKind("fail").
				WithLevel(toSarifErrorLevel(step.RiskLevel)).
				WithMessage(sarif.NewTextMessage(findingMessage(step, f))).
				WithLocations([]*sarif.Location{stepLocation(wf, step)})
			setProperties(result, step.RiskLevel, map[string]interface{}{
				"step_id":      step.StepID,
				"source_field": string(f.SourceField),
				"evidence":     f.Evidence,
			})
			result.WithPartialFingerPrints(map[string]interface{}{
				fingerprintKey: calculateMD5Hash(strings.Join([]string{
					wf.ID, step.StepID, string(f.Category), string(f.SourceField),
				}, "|")),
			})
			run.AddResult(result)
		}
	}

	for _, a := range analysis.Summary.Approvals {
		rule := addApprovalRule(run, a)
		result := sarif.NewRuleResult(rule.ID).
			WithKind("review").
			WithLevel(toSarifErrorLevel(analysis.Summary.RiskLevel)).
			WithMessage(sarif.NewTextMessage(fmt.Sprintf("%s required (%s): %s", a.Type, a.ApproverRole, a.Reason))).
			WithLocations([]*sarif.Location{workflowLocation(wf)})
		setProperties(result, analysis.Summary.RiskLevel, map[string]interface{}{
			"approver_role":          a.ApproverRole,
			"estimated_time":         a.EstimatedTime,
			"required_documentation": a.RequiredDocumentation,
		})
		result.WithPartialFingerPrints(map[string]interface{}{
			fingerprintKey: calculateMD5Hash(wf.ID + "|" + string(a.Type)),
		})
		run.AddResult(result)
	}

	report.AddRun(run)
	r := &Report{Report: report}
	r.enrichResultsLevelProperty()
	r.SortResultsByLevel()
	return r, nil
}

// Write writes the report as indented JSON.
func (r Report) Write(w io.Writer) error {
	return r.PrettyWrite(w)
}

// CollectSeverityInfo counts results per severity and returns the counts
// together with the total.
func (r Report) CollectSeverityInfo() map[string]int {
	severityInfo := map[string]int{
		"low":    0,
		"medium": 0,
		"high":   0,
		"total":  0,
	}

	for _, run := range r.Runs {
		for _, result := range run.Results {
			switch resultLevel(result) {
			case "error":
				severityInfo["high"]++
			case "warning":
				severityInfo["medium"]++
			default:
				severityInfo["low"]++
			}
			severityInfo["total"]++
		}
	}

	return severityInfo
}

// enrichResultsLevelProperty fills the "Level" property of results that lack
// it, from the result level or else the default configuration of its rule.
func (r Report) enrichResultsLevelProperty() {
	for _, run := range r.Runs {
		rulesMap := map[string]*sarif.ReportingDescriptor{}
		if run.Tool.Driver != nil {
			for _, rule := range run.Tool.Driver.Rules {
				rulesMap[rule.ID] = rule
			}
		}

		for _, result := range run.Results {
			if result.Properties == nil {
				result.Properties = make(map[string]interface{})
			}
			if result.Properties["Level"] != nil {
				continue
			}
			switch {
			case result.Level != nil:
				result.Properties["Level"] = *result.Level
			case result.RuleID != nil && rulesMap[*result.RuleID] != nil && rulesMap[*result.RuleID].DefaultConfiguration != nil:
				result.Properties["Level"] = rulesMap[*result.RuleID].DefaultConfiguration.Level
			default:
				result.Properties["Level"] = "unknown"
			}
		}
	}
}

// SortResultsByLevel sorts results by level: error, warning, note, none, unknown.
// Results of the same level keep their order.
func (r Report) SortResultsByLevel() {
	levelOrder := map[string]int{
		"error":   0,
		"warning": 1,
		"note":    2,
		"none":    3,
		"unknown": 4,
	}

	for _, run := range r.Runs {
		sort.SliceStable(run.Results, func(i, j int) bool {
			return rank(levelOrder, resultLevel(run.Results[i])) < rank(levelOrder, resultLevel(run.Results[j]))
		})
	}
}

func rank(order map[string]int, level string) int {
	if n, ok := order[level]; ok {
		return n
	}
	return order["unknown"]
}

// resultLevel prefers the "Level" property and falls back to the result level.
func resultLevel(result *sarif.Result) string {
	if level, ok := result.Properties["Level"].(string); ok {
		return level
	}
	if result.Level != nil {
		return *result.Level
	}
	return "unknown"
}

func setProperties(result *sarif.Result, risk riskengine.RiskLevel, extra map[string]interface{}) {
	result.PropertyBag = *sarif.NewPropertyBag()
	result.Add("risk_level", risk.String())
	for k, v := range extra {
		result.Add(k, v)
	}
}

func addFindingRule(run *sarif.Run, c riskengine.Category) *sarif.ReportingDescriptor {
	id := findingRulePrefix + string(c)
	rule := run.AddRule(id)
	if rule.Name != nil {
		return rule
	}
	level := toSarifErrorLevel(categoryRisk(c))
	return rule.
		WithName(string(c)).
		WithShortDescription(sarif.NewMultiformatMessageString(categoryTitle(c))).
		WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level}).
		WithProperties(sarif.Properties{
			"category": string(c),
			"pii":      c.IsPII(),
		})
}

func addApprovalRule(run *sarif.Run, a riskengine.ApprovalRequirement) *sarif.ReportingDescriptor {
	id := approvalRulePrefix + string(a.Type)
	rule := run.AddRule(id)
	if rule.Name != nil {
		return rule
	}
	help := "Approver: " + a.ApproverRole
	if len(a.RequiredDocumentation) > 0 {
		help += "\nRequired documentation: " + strings.Join(a.RequiredDocumentation, ", ")
	}
	if a.EstimatedTime != "" {
		help += "\nEstimated time: " + a.EstimatedTime
	}
	return rule.
		WithName(string(a.Type)).
		WithShortDescription(sarif.NewMultiformatMessageString(fmt.Sprintf("Approval required: %s", a.Type))).
		WithTextHelp(help).
		WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: "warning"}).
		WithProperties(sarif.Properties{
			"approver_role":  a.ApproverRole,
			"estimated_time": a.EstimatedTime,
		})
}

// categoryRisk is the risk a single finding of the category implies on its own.
func categoryRisk(c riskengine.Category) riskengine.RiskLevel {
	return riskengine.Classify([]riskengine.Finding{{Category: c}})
}

func categoryTitle(c riskengine.Category) string {
	switch {
	case c.IsPII():
		return "Personal data detected in step content"
	case c == riskengine.CategorySensitiveKeyword:
		return "Sensitive keyword referenced by step"
	case c == riskengine.CategoryDBRead:
		return "Step reads from a database"
	case c == riskengine.CategoryDBWrite:
		return "Step writes to a database"
	case c == riskengine.CategoryDBAdmin:
		return "Step performs database administration"
	case c == riskengine.CategoryProductionSystem:
		return "Step touches a production system"
	case c == riskengine.CategoryPaymentProcessing:
		return "Step involves payment processing"
	case c == riskengine.CategoryFinancialData:
		return "Step involves financial data"
	default:
		return string(c)
	}
}

func findingMessage(step riskengine.StepSecurityAnalysis, f riskengine.Finding) string {
	return fmt.Sprintf("Step %s: %s found in %s (%q)", step.StepID, f.Category, f.SourceField, f.Evidence)
}

func stepLocation(wf Workflow, step riskengine.StepSecurityAnalysis) *sarif.Location {
	name := step.StepName
	if name == "" {
		name = step.StepID
	}
	loc := sarif.NewLocation().WithLogicalLocations([]*sarif.LogicalLocation{
		sarif.NewLogicalLocation().
			WithName(name).
			WithFullyQualifiedName(wf.ID + "/steps/" + step.StepID).
			WithKind("step"),
	})
	if wf.Source != "" {
		loc.WithPhysicalLocation(sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(wf.Source)))
	}
	return loc
}

func workflowLocation(wf Workflow) *sarif.Location {
	name := wf.Title
	if name == "" {
		name = wf.ID
	}
	loc := sarif.NewLocation().WithLogicalLocations([]*sarif.LogicalLocation{
		sarif.NewLogicalLocation().
			WithName(name).
			WithFullyQualifiedName(wf.ID).
			WithKind("workflow"),
	})
	if wf.Source != "" {
		loc.WithPhysicalLocation(sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(wf.Source)))
	}
	return loc
}

// toSarifErrorLevel maps a risk level onto a SARIF result level.
func toSarifErrorLevel(risk riskengine.RiskLevel) string {
	switch risk {
	case riskengine.RiskCritical, riskengine.RiskHigh:
		return "error"
	case riskengine.RiskMedium:
		return "warning"
	case riskengine.RiskLow:
		return "note"
	default:
		return "none"
	}
}

// calculateMD5Hash calculates the md5 hash of the given text.
func calculateMD5Hash(text string) string {
	hash := md5.New()
	io.WriteString(hash, text)
	return hex.EncodeToString(hash.Sum(nil))
}
