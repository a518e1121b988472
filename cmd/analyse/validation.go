package analyse

import (
	"fmt"
	"os"

	"github.com/stepguard/stepguard/internal/config"
	"github.com/stepguard/stepguard/pkg/riskengine"
)

// validateAnalyseArgs validates the arguments provided to the analyse command.
func validateAnalyseArgs(allArgumentsAnalyse *RunOptionsAnalyse, args []string) error {
	if len(args) == 0 && len(allArgumentsAnalyse.InputFiles) == 0 {
		return fmt.Errorf("either 'input-file' flag or a target path must be specified")
	}

	for _, targetPath := range append(append([]string(nil), allArgumentsAnalyse.InputFiles...), args...) {
		if _, err := os.Stat(targetPath); os.IsNotExist(err) {
			return fmt.Errorf("the target path does not exist: %v", targetPath)
		}
	}

	if allArgumentsAnalyse.Threads <= 0 {
		return fmt.Errorf("the 'threads' flag must be a positive integer")
	}

	if allArgumentsAnalyse.ReportFormat != "" && !config.IsReportFormat(allArgumentsAnalyse.ReportFormat) {
		return fmt.Errorf("the 'format' flag must be one of %v, got %q", config.ReportFormats, allArgumentsAnalyse.ReportFormat)
	}

	if allArgumentsAnalyse.FailOn != "" {
		if _, err := riskengine.ParseRiskLevel(allArgumentsAnalyse.FailOn); err != nil {
			return fmt.Errorf("the 'fail-on' flag is invalid: %w", err)
		}
	}

	return nil
}
