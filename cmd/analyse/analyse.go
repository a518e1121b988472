package analyse

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stepguard/stepguard/cmd/version"
	"github.com/stepguard/stepguard/internal/config"
	"github.com/stepguard/stepguard/internal/logger"
	"github.com/stepguard/stepguard/internal/metrics"
	"github.com/stepguard/stepguard/internal/report"
	"github.com/stepguard/stepguard/pkg/shared/errors"
	"github.com/stepguard/stepguard/pkg/shared/files"
)

// RunOptionsAnalyse holds the arguments for the analyse command.
type RunOptionsAnalyse struct {
	InputFiles   []string
	ReportFormat string
	OutputPath   string
	Threads      int
	FailOn       string
	MetricsFile  string
	ShowEvidence bool
}

// Global variables for configuration and command arguments
var (
	AppConfig           *config.Config
	analyseOptions      RunOptionsAnalyse
	exampleAnalyseUsage = `  # Analysing a single workflow and printing a json report
  stepguard analyse /path/to/workflow.yaml

  # Analysing every workflow of a directory with 4 concurrent threads
  stepguard analyse -j 4 /path/to/workflows/

  # Analysing workflows listed with repeated input-file flags as a text report
  stepguard analyse -i refunds.yaml -i payroll.json --format text

  # Writing sarif reports into a directory
  stepguard analyse --format sarif --output /path/to/reports/ /path/to/workflows/

  # Failing the run when any workflow reaches high risk, and exporting metrics
  stepguard analyse --fail-on high --metrics-file /var/lib/node_exporter/stepguard.prom /path/to/workflows/`
)

// AnalyseCmd represents the analyse command.
var AnalyseCmd = &cobra.Command{
	Use:                   "analyse [--input-file/-i PATH]... [--format/-f json|yaml|text|sarif] [--output/-o PATH] [-j THREADS_NUMBER, default=1] [--fail-on LEVEL] [--metrics-file PATH] [PATH...]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleAnalyseUsage,
	Short:                 "Classifies workflow steps by security risk and lists the approvals they require",
	Long: fmt.Sprintf(`Classifies the steps of automation workflow documents by security risk and lists the approvals they require.

PATH may be a workflow document (%s) or a directory, which is searched recursively.
Exit codes: 0 success, %d failure, %d a workflow reached the --fail-on risk level.`,
		strings.Join(files.WorkflowExtensions, ", "), errors.ExitFailure, errors.ExitRiskGate),
	RunE: runAnalyseCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runAnalyseCommand executes the analyse command.
func runAnalyseCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !hasFlags(cmd) {
		return cmd.Help()
	}

	logger := logger.NewLogger(AppConfig, "core-analyse")

	if err := validateAnalyseArgs(&analyseOptions, args); err != nil {
		logger.Error("invalid analyse arguments", "error", err)
		return errors.NewCommandError(fmt.Errorf("invalid analyse arguments: %w", err), errors.ExitFailure)
	}

	paths, err := files.CollectWorkflowFiles(append(append([]string(nil), analyseOptions.InputFiles...), args...))
	if err != nil {
		logger.Error("failed to collect workflow files", "error", err)
		return errors.NewCommandError(err, errors.ExitFailure)
	}
	if len(paths) == 0 {
		err := fmt.Errorf("no workflow documents found")
		logger.Error("nothing to analyse", "error", err)
		return errors.NewCommandError(err, errors.ExitFailure)
	}
	if len(paths) > 1 && analyseOptions.OutputPath != "" && isSingleFileTarget(analyseOptions.OutputPath) {
		err := fmt.Errorf("output %q is a file but %d workflows were found; use a directory", analyseOptions.OutputPath, len(paths))
		logger.Error("invalid output path", "error", err)
		return errors.NewCommandError(err, errors.ExitFailure)
	}

	analyzer, err := config.NewAnalyzer(AppConfig)
	if err != nil {
		logger.Error("failed to build analyzer", "error", err)
		return errors.NewCommandError(err, errors.ExitFailure)
	}

	format := resolveReportFormat(&analyseOptions, AppConfig)
	failOn, gated := resolveFailOn(&analyseOptions, AppConfig)
	recorder := metrics.NewRecorder()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results := analyseWorkflows(ctx, analyzer, paths, analyseOptions.Threads, config.GetConcurrency(AppConfig), recorder, logger)

	var failed, gateHits []string
	for i, res := range results {
		if res.Err != nil {
			logger.Error("failed to analyse workflow", "path", res.Path, "error", res.Err)
			failed = append(failed, res.Path)
			continue
		}

		rep := report.New(res.Workflow, res.Analysis, report.Options{
			MaskEvidence: !analyseOptions.ShowEvidence && config.GetBoolValue(AppConfig, "Output.MaskEvidence", true),
			ToolVersion:  version.CoreVersion,
		})
		written, err := emitReport(cmd.OutOrStdout(), rep, format, analyseOptions.OutputPath, i)
		if err != nil {
			logger.Error("failed to write report", "path", res.Path, "error", err)
			failed = append(failed, res.Path)
			continue
		}
		if written != "" {
			logger.Debug("report written", "path", written)
		}

		risk := res.Analysis.Summary.RiskLevel
		logger.Info("workflow analysed", analysisLogArgs(res, rep, format)...)
		if gated && risk >= failOn {
			gateHits = append(gateHits, fmt.Sprintf("%s (%s)", res.Workflow.ID, risk))
		}
	}

	if path := resolveMetricsFile(&analyseOptions, AppConfig); path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			logger.Error("failed to export metrics", "error", err)
			return errors.NewCommandError(err, errors.ExitFailure)
		}
		logger.Debug("metrics exported", "path", path)
	}

	if len(failed) > 0 {
		return errors.NewCommandError(
			fmt.Errorf("%d of %d workflows failed: %s", len(failed), len(paths), strings.Join(failed, ", ")),
			errors.ExitFailure,
		)
	}
	if len(gateHits) > 0 {
		logger.Warn("risk gate reached", "fail_on", failOn.String(), "workflows", len(gateHits))
		return errors.NewCommandError(
			fmt.Errorf("risk at or above %s: %s", failOn, strings.Join(gateHits, ", ")),
			errors.ExitRiskGate,
		)
	}

	logger.Info("analyse command completed successfully", "workflows", len(paths))
	return nil
}

// Initialize flags for the analyse command.
func init() {
	AnalyseCmd.Flags().StringArrayVarP(&analyseOptions.InputFiles, "input-file", "i", nil, "Path to a workflow document or a directory of documents. May be repeated.")
	AnalyseCmd.Flags().StringVarP(&analyseOptions.ReportFormat, "format", "f", "", "Format for the report: json, yaml, text or sarif (default json).")
	AnalyseCmd.Flags().BoolP("help", "h", false, "Show help for the analyse command.")
	AnalyseCmd.Flags().StringVarP(&analyseOptions.OutputPath, "output", "o", "", "Path to the output file or directory where reports will be saved. Reports go to stdout when empty.")
	AnalyseCmd.Flags().IntVarP(&analyseOptions.Threads, "threads", "j", 1, "Number of workflows analysed concurrently.")
	AnalyseCmd.Flags().StringVar(&analyseOptions.FailOn, "fail-on", "", "Exit with code 2 when a workflow's overall risk is at or above this level: low, medium, high or critical.")
	AnalyseCmd.Flags().StringVar(&analyseOptions.MetricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file.")
	AnalyseCmd.Flags().BoolVar(&analyseOptions.ShowEvidence, "show-evidence", false, "Print matched personal data unmasked.")
}
