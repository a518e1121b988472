package rules

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/stepguard/stepguard/internal/config"
	"github.com/stepguard/stepguard/internal/logger"
	"github.com/stepguard/stepguard/pkg/riskengine"
	"github.com/stepguard/stepguard/pkg/shared/errors"
)

// RunOptionsRules holds the arguments for the rules command.
type RunOptionsRules struct {
	Format string
}

var (
	AppConfig         *config.Config
	rulesOptions      RunOptionsRules
	exampleRulesUsage = `  # Printing the active rule set as tables
  stepguard rules

  # Printing the active rule set, including extra_rules from a config file, as yaml
  stepguard --config stepguard.yml rules --format yaml`
)

// RulesCmd represents the rules command.
var RulesCmd = &cobra.Command{
	Use:                   "rules [--format/-f text|yaml]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleRulesUsage,
	Short:                 "Prints the detection rules, the risk precedence table and the approval policy in use",
	Args:                  cobra.NoArgs,
	RunE:                  runRulesCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// RuleSet is the printable form of an analyzer's policy surface.
type RuleSet struct {
	Patterns  []riskengine.RuleSpec `yaml:"patterns"`
	RiskRules []RiskRuleView        `yaml:"risk_rules"`
	Approvals []ApprovalView        `yaml:"approval_rules"`
}

// RiskRuleView is one row of the risk precedence table.
type RiskRuleView struct {
	Level       riskengine.RiskLevel  `yaml:"level"`
	AllOf       []riskengine.Category `yaml:"all_of"`
	Description string                `yaml:"description"`
}

// ApprovalView is one approval trigger together with its template.
type ApprovalView struct {
	Type                  riskengine.ApprovalType `yaml:"approval_type"`
	Reason                string                  `yaml:"reason"`
	Risks                 []riskengine.RiskLevel  `yaml:"risks,omitempty"`
	AnyOf                 []riskengine.Category   `yaml:"any_of,omitempty"`
	ApproverRole          string                  `yaml:"approver_role"`
	RequiredDocumentation []string                `yaml:"required_documentation"`
	EstimatedTime         string                  `yaml:"estimated_time"`
}

func runRulesCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-rules")

	if err := validateRulesArgs(&rulesOptions); err != nil {
		logger.Error("invalid rules arguments", "error", err)
		return errors.NewCommandError(fmt.Errorf("invalid rules arguments: %w", err), errors.ExitFailure)
	}

	analyzer, err := config.NewAnalyzer(AppConfig)
	if err != nil {
		logger.Error("failed to build analyzer", "error", err)
		return errors.NewCommandError(err, errors.ExitFailure)
	}

	set := collectRuleSet(analyzer)
	logger.Debug("rule set collected", "patterns", len(set.Patterns), "approval_rules", len(set.Approvals))
	if err := writeRuleSet(cmd.OutOrStdout(), set, strings.ToLower(rulesOptions.Format)); err != nil {
		return errors.NewCommandError(fmt.Errorf("failed to print rules: %w", err), errors.ExitFailure)
	}
	return nil
}

func validateRulesArgs(options *RunOptionsRules) error {
	switch strings.ToLower(options.Format) {
	case "text", "yaml":
		return nil
	default:
		return fmt.Errorf("the 'format' flag must be text or yaml, got %q", options.Format)
	}
}

func collectRuleSet(analyzer *riskengine.Analyzer) RuleSet {
	set := RuleSet{Patterns: analyzer.PatternLibrary().Specs()}

	for _, r := range riskengine.RiskRules() {
		set.RiskRules = append(set.RiskRules, RiskRuleView{Level: r.Level, AllOf: r.AllOf, Description: r.Description})
	}

	policy := analyzer.Policy()
	for _, r := range policy.Rules() {
		view := ApprovalView{Type: r.Type, Reason: r.Reason, Risks: r.Risks, AnyOf: r.AnyOf}
		if tmpl, ok := policy.Template(r.Type); ok {
			view.ApproverRole = tmpl.ApproverRole
			view.RequiredDocumentation = tmpl.RequiredDocumentation
			view.EstimatedTime = tmpl.EstimatedTime
		}
		set.Approvals = append(set.Approvals, view)
	}
	return set
}

func writeRuleSet(w io.Writer, set RuleSet, format string) error {
	if format == "yaml" {
		data, err := yaml.Marshal(set)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tCATEGORY\tKIND\tFIELDS\tTERMS")
	for _, p := range set.Patterns {
		fields := "all"
		if len(p.Fields) > 0 {
			fields = joinValues(p.Fields)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.Category, p.Kind, fields, strings.Join(p.Terms, ", "))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "RISK\tWHEN ALL OF\tREASON")
	for _, r := range set.RiskRules {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Level, joinValues(r.AllOf), r.Description)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "APPROVAL\tAPPROVER\tRISKS\tANY OF\tREASON")
	for _, a := range set.Approvals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Type, a.ApproverRole, orAny(joinValues(a.Risks)), orAny(joinValues(a.AnyOf)), a.Reason)
	}
	return tw.Flush()
}

func joinValues[T any](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

func init() {
	RulesCmd.Flags().StringVarP(&rulesOptions.Format, "format", "f", "text", "Output format: text or yaml.")
}
