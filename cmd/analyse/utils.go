package analyse

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/stepguard/stepguard/internal/config"
	"github.com/stepguard/stepguard/internal/metrics"
	"github.com/stepguard/stepguard/internal/report"
	"github.com/stepguard/stepguard/internal/workflow"
	"github.com/stepguard/stepguard/pkg/riskengine"
)

// commandName prefixes report artifact names.
const commandName = "analyse"

// workflowResult is the outcome of loading and analysing one document.
type workflowResult struct {
	Path     string
	Workflow *workflow.Workflow
	Analysis riskengine.WorkflowAnalysis
	Err      error
}

// hasFlags reports whether any flag was set on the command line.
func hasFlags(cmd *cobra.Command) bool {
	set := false
	cmd.Flags().Visit(func(*pflag.Flag) {
		set = true
	})
	return set
}

// isSingleFileTarget reports whether outputPath names one file rather than a directory.
func isSingleFileTarget(outputPath string) bool {
	info, err := os.Stat(outputPath)
	if err == nil {
		return !info.IsDir()
	}
	return filepath.Ext(outputPath) != ""
}

func resolveReportFormat(options *RunOptionsAnalyse, cfg *config.Config) string {
	return strings.ToLower(config.SetThen(options.ReportFormat, config.GetReportFormat(cfg)))
}

func resolveFailOn(options *RunOptionsAnalyse, cfg *config.Config) (riskengine.RiskLevel, bool) {
	if options.FailOn != "" {
		level, err := riskengine.ParseRiskLevel(options.FailOn)
		return level, err == nil
	}
	return config.GetFailOn(cfg)
}

func resolveMetricsFile(options *RunOptionsAnalyse, cfg *config.Config) string {
	if options.MetricsFile != "" || cfg == nil {
		return options.MetricsFile
	}
	return cfg.Metrics.Textfile
}

// analyseWorkflows loads and analyses every path, at most threads documents at
// a time, each with stepWorkers concurrent step analyses. Results keep the
// order of paths. A failing document does not stop the others.
func analyseWorkflows(ctx context.Context, analyzer *riskengine.Analyzer, paths []string, threads, stepWorkers int, recorder *metrics.Recorder, logger hclog.Logger) []workflowResult {
	results := make([]workflowResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if threads > 0 {
		g.SetLimit(threads)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i].Path = path
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			wf, err := workflow.Load(path)
			if err != nil {
				recorder.ObserveRejected()
				results[i].Err = err
				return nil
			}
			logger.Debug("workflow loaded", "path", path, "automation_id", wf.ID, "generated_id", wf.GeneratedID, "steps", len(wf.Steps))

			start := time.Now()
			analysis := analyzer.AnalyzeWorkflow(wf.Steps, stepWorkers)
			recorder.ObserveWorkflow(analysis, time.Since(start))

			results[i].Workflow = wf
			results[i].Analysis = analysis
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// analysisLogArgs returns the key/value pairs logged for an analysed workflow.
// SARIF runs also log their result counts per severity.
func analysisLogArgs(res workflowResult, rep *report.Report, format string) []interface{} {
	args := []interface{}{
		"path", res.Path,
		"automation_id", res.Workflow.ID,
		"steps", res.Analysis.Summary.TotalSteps,
		"risk", res.Analysis.Summary.RiskLevel.String(),
		"approvals", len(res.Analysis.Summary.Approvals),
	}
	if format != report.FormatSARIF {
		return args
	}
	sr, err := rep.SARIF()
	if err != nil {
		return args
	}
	severity := sr.CollectSeverityInfo()
	return append(args,
		"results", severity["total"],
		"results_high", severity["high"],
		"results_medium", severity["medium"],
		"results_low", severity["low"],
	)
}

// emitReport writes rep to w when outputPath is empty, otherwise into
// outputPath. It returns the file written, if any.
func emitReport(w io.Writer, rep *report.Report, format, outputPath string, index int) (string, error) {
	if outputPath == "" {
		if index > 0 && format == report.FormatYAML {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return "", err
			}
		}
		return "", rep.Write(w, format)
	}
	return rep.WriteFile(outputPath, commandName, format)
}
