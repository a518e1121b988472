package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/stepguard/stepguard/pkg/riskengine"
)

// GetBoolValue retrieves a boolean value from a nested struct based on a dot-separated path.
// It returns the provided defaultValue if the specified field is not explicitly set or is nil.
func GetBoolValue(config interface{}, fieldPath string, defaultValue bool) bool {
	if config == nil {
		return defaultValue
	}

	fields := strings.Split(fieldPath, ".")
	val := reflect.ValueOf(config)

	for _, field := range fields {
		if val.Kind() == reflect.Ptr {
			if val.IsNil() {
				return defaultValue
			}
			val = val.Elem()
		}

		val = val.FieldByName(field)
		if !val.IsValid() {
			return defaultValue
		}
	}

	// Check if the field is a pointer to a bool and is not nil
	if val.Kind() == reflect.Ptr && !val.IsNil() {
		return val.Elem().Bool()
	} else if val.Kind() == reflect.Bool {
		return val.Bool()
	}

	return defaultValue
}

// SetThen provides a utility to select the first value if set, otherwise defaults.
func SetThen[T any](value T, defaultValue T) T {
	if reflect.ValueOf(value).IsZero() {
		return defaultValue
	}
	return value
}

// GetConcurrency returns the configured number of concurrent step workers, 0 meaning unbounded.
func GetConcurrency(cfg *Config) int {
	if cfg == nil {
		return 0
	}
	return cfg.Engine.Concurrency
}

// GetReportFormat returns the configured report format, json by default.
func GetReportFormat(cfg *Config) string {
	if cfg == nil {
		return "json"
	}
	return strings.ToLower(SetThen(cfg.Output.Format, "json"))
}

// GetFailOn returns the configured risk gate level, if any.
func GetFailOn(cfg *Config) (riskengine.RiskLevel, bool) {
	if cfg == nil || cfg.Output.FailOn == "" {
		return riskengine.RiskLow, false
	}
	level, err := riskengine.ParseRiskLevel(cfg.Output.FailOn)
	if err != nil {
		return riskengine.RiskLow, false
	}
	return level, true
}

// NewAnalyzer builds an analyzer from the engine directive: the built-in
// pattern library extended with extra_rules and the built-in approval policy
// joined with reason_separator.
func NewAnalyzer(cfg *Config) (*riskengine.Analyzer, error) {
	if cfg == nil {
		return riskengine.NewAnalyzer(), nil
	}

	lib := riskengine.DefaultPatternLibrary()
	if len(cfg.Engine.ExtraRules) > 0 {
		extended, err := lib.Extend(cfg.Engine.ExtraRules...)
		if err != nil {
			return nil, fmt.Errorf("failed to extend pattern library: %w", err)
		}
		lib = extended
	}

	return riskengine.NewAnalyzer(
		riskengine.WithPatternLibrary(lib),
		riskengine.WithApprovalPolicy(riskengine.DefaultApprovalPolicy(cfg.Engine.ReasonSeparator)),
	), nil
}
