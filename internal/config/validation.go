package config

import (
	"fmt"
	"strings"

	"github.com/stepguard/stepguard/pkg/riskengine"
)

// Limits of the engine directive.
const (
	MaxConcurrency        = 256
	MaxReasonSeparatorLen = 16
)

// ReportFormats lists the supported report formats.
var ReportFormats = []string{"json", "yaml", "text", "sarif"}

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateLoggerConfig(&cfg.Logger); err != nil {
		return fmt.Errorf("YAML global config: logger directive is invalid: %w", err)
	}
	if err := ValidateEngineConfig(&cfg.Engine); err != nil {
		return fmt.Errorf("YAML global config: engine directive is invalid: %w", err)
	}
	if err := ValidateOutputConfig(&cfg.Output); err != nil {
		return fmt.Errorf("YAML global config: output directive is invalid: %w", err)
	}
	return nil
}

// ValidateLoggerConfig checks the logger level name.
func ValidateLoggerConfig(loggerConfig *Logger) error {
	if loggerConfig == nil {
		return fmt.Errorf("logger configuration is nil")
	}
	switch strings.ToUpper(loggerConfig.Level) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
		return nil
	default:
		return fmt.Errorf("unsupported level %q", loggerConfig.Level)
	}
}

// ValidateEngineConfig checks concurrency, the reason separator and every extra
// rule. Category, kind and field names of extra rules are rewritten to their
// canonical spelling.
func ValidateEngineConfig(engineConfig *Engine) error {
	if engineConfig == nil {
		return fmt.Errorf("engine configuration is nil")
	}
	if engineConfig.Concurrency < 0 || engineConfig.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 0 and %d: %d", MaxConcurrency, engineConfig.Concurrency)
	}
	if len(engineConfig.ReasonSeparator) > MaxReasonSeparatorLen {
		return fmt.Errorf("reason_separator is longer than %d characters", MaxReasonSeparatorLen)
	}
	if strings.ContainsAny(engineConfig.ReasonSeparator, "\r\n") {
		return fmt.Errorf("reason_separator must not contain line breaks")
	}

	builtin := make(map[string]bool)
	for _, spec := range riskengine.DefaultRuleSpecs() {
		builtin[spec.Name] = true
	}
	seen := make(map[string]bool)
	for i := range engineConfig.ExtraRules {
		spec, err := normalizeRuleSpec(engineConfig.ExtraRules[i])
		if err != nil {
			return fmt.Errorf("extra_rules[%d]: %w", i, err)
		}
		engineConfig.ExtraRules[i] = spec
		if err := riskengine.ValidateRuleSpec(spec); err != nil {
			return fmt.Errorf("extra_rules[%d]: %w", i, err)
		}
		if builtin[spec.Name] || seen[spec.Name] {
			return fmt.Errorf("extra_rules[%d]: rule name %q is already defined", i, spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

func normalizeRuleSpec(spec riskengine.RuleSpec) (riskengine.RuleSpec, error) {
	category, err := riskengine.ParseCategory(string(spec.Category))
	if err != nil {
		return spec, fmt.Errorf("rule %q: %w, expected one of %s", spec.Name, err, joinCategories(riskengine.Categories()))
	}
	kind, err := riskengine.ParseMatchKind(string(spec.Kind))
	if err != nil {
		return spec, fmt.Errorf("rule %q: %w", spec.Name, err)
	}
	fields := make([]riskengine.Field, 0, len(spec.Fields))
	for _, raw := range spec.Fields {
		f, err := riskengine.ParseField(string(raw))
		if err != nil {
			return spec, fmt.Errorf("rule %q: %w", spec.Name, err)
		}
		fields = append(fields, f)
	}
	spec.Category, spec.Kind = category, kind
	if len(spec.Fields) > 0 {
		spec.Fields = fields
	}
	return spec, nil
}

func joinCategories(categories []riskengine.Category) string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// ValidateOutputConfig checks the default report format and the risk gate level.
func ValidateOutputConfig(outputConfig *Output) error {
	if outputConfig == nil {
		return fmt.Errorf("output configuration is nil")
	}
	if outputConfig.Format != "" && !IsReportFormat(outputConfig.Format) {
		return fmt.Errorf("unsupported format %q, expected one of %s", outputConfig.Format, strings.Join(ReportFormats, ", "))
	}
	if outputConfig.FailOn != "" {
		if _, err := riskengine.ParseRiskLevel(outputConfig.FailOn); err != nil {
			return fmt.Errorf("fail_on: %w", err)
		}
	}
	return nil
}

// IsReportFormat reports whether format names a supported report format.
func IsReportFormat(format string) bool {
	for _, f := range ReportFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}
