package riskengine

import (
	"fmt"
	"strings"
)

// RiskLevel is a totally ordered severity: Low < Medium < High < Critical.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the lowercase name of the level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseRiskLevel converts a level name (any case) into a RiskLevel.
func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return RiskLow, fmt.Errorf("unsupported risk level %q", raw)
	}
}

// MarshalText encodes the level by name.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a level name.
func (r *RiskLevel) UnmarshalText(text []byte) error {
	level, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// MarshalYAML encodes the level by name.
func (r RiskLevel) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// UnmarshalYAML decodes a level name.
func (r *RiskLevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return r.UnmarshalText([]byte(raw))
}

// MaxRisk returns the highest of the given levels, or RiskLow when none are given.
func MaxRisk(levels ...RiskLevel) RiskLevel {
	max := RiskLow
	for _, l := range levels {
		if l > max {
			max = l
		}
	}
	return max
}

// RiskRule assigns Level when every category in AllOf is present.
type RiskRule struct {
	Level       RiskLevel
	AllOf       []Category
	Description string
}

func (r RiskRule) matches(present map[Category]bool) bool {
	for _, c := range r.AllOf {
		if !present[c] {
			return false
		}
	}
	return len(r.AllOf) > 0
}

// riskRules is evaluated top to bottom, first match wins. Rules are grouped by
// descending level so adding a finding can never lower the result.
var riskRules = []RiskRule{
	{RiskCritical, []Category{CategoryPaymentProcessing}, "payment processing"},
	{RiskCritical, []Category{CategoryDBAdmin, CategoryProductionSystem}, "administrative database operation on a production system"},
	{RiskCritical, []Category{CategoryPIICreditCard, CategoryDBWrite}, "credit card data combined with database writes"},
	{RiskHigh, []Category{CategoryProductionSystem}, "production system access"},
	{RiskHigh, []Category{CategoryPIISSN}, "social security number detected"},
	{RiskHigh, []Category{CategoryPIICreditCard}, "credit card number detected"},
	{RiskHigh, []Category{CategoryFinancialData}, "financial data processing"},
	{RiskHigh, []Category{CategoryDBAdmin}, "administrative database operation"},
	{RiskMedium, []Category{CategoryDBWrite}, "database write access"},
	{RiskMedium, []Category{CategoryPIIEmail}, "email address detected"},
	{RiskMedium, []Category{CategoryPIIPhone}, "phone number detected"},
	{RiskMedium, []Category{CategorySensitiveKeyword}, "sensitive keyword detected"},
}

const defaultRiskReason = "no risk signals detected"

// RiskRules returns a copy of the precedence table used by Classify.
func RiskRules() []RiskRule {
	out := make([]RiskRule, len(riskRules))
	for i, r := range riskRules {
		out[i] = RiskRule{Level: r.Level, AllOf: append([]Category(nil), r.AllOf...), Description: r.Description}
	}
	return out
}

// Classify reduces findings to a single risk level.
func Classify(findings []Finding) RiskLevel {
	level, _ := Explain(findings)
	return level
}

// Explain is Classify plus the description of the rule that decided the level.
func Explain(findings []Finding) (RiskLevel, string) {
	present := categorySet(findings)
	for _, rule := range riskRules {
		if rule.matches(present) {
			return rule.Level, rule.Description
		}
	}
	return RiskLow, defaultRiskReason
}
