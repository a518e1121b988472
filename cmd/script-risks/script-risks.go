package scriptrisks

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/stepguard/stepguard/internal/config"
	"github.com/stepguard/stepguard/internal/logger"
	"github.com/stepguard/stepguard/pkg/riskengine"
	"github.com/stepguard/stepguard/pkg/shared/errors"
)

// RunOptionsScriptRisks holds the arguments for the script-risks command.
type RunOptionsScriptRisks struct {
	Format string
}

var (
	AppConfig               *config.Config
	scriptRisksOptions      RunOptionsScriptRisks
	exampleScriptRisksUsage = `  # Showing the operational risks of a vendor starter script
  stepguard script-risks starters/fiserv_payment_starter.py

  # Showing several profiles as json
  stepguard script-risks -f json starters/servicenow_incident.py starters/aws_s3_sync.sh`
)

// ScriptRisksCmd represents the script-risks command.
var ScriptRisksCmd = &cobra.Command{
	Use:                   "script-risks [--format/-f yaml|json] SCRIPT_PATH...",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleScriptRisksUsage,
	Short:                 "Prints the operational risk profile of vendor starter scripts",
	Long: fmt.Sprintf(`Prints the operational risk profile of vendor starter scripts.

The platform is recognised from the script path. Known platforms: %s.
Scripts for other platforms get an empty profile.`, strings.Join(riskengine.ScriptPlatforms(), ", ")),
	Args: cobra.MinimumNArgs(1),
	RunE: runScriptRisksCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runScriptRisksCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-script-risks")

	format := strings.ToLower(scriptRisksOptions.Format)
	if format != "yaml" && format != "json" {
		err := fmt.Errorf("the 'format' flag must be yaml or json, got %q", scriptRisksOptions.Format)
		logger.Error("invalid script-risks arguments", "error", err)
		return errors.NewCommandError(err, errors.ExitFailure)
	}

	profiles := make([]riskengine.ScriptRiskProfile, 0, len(args))
	for _, path := range args {
		p := riskengine.ScriptRiskProfileFor(path)
		if p.Platform == "" {
			logger.Warn("no risk profile for script", "path", path)
		}
		profiles = append(profiles, p)
	}

	if err := writeProfiles(cmd.OutOrStdout(), profiles, format); err != nil {
		return errors.NewCommandError(fmt.Errorf("failed to print script risks: %w", err), errors.ExitFailure)
	}
	return nil
}

func writeProfiles(w io.Writer, profiles []riskengine.ScriptRiskProfile, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(profiles)
	}
	data, err := yaml.Marshal(profiles)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func init() {
	ScriptRisksCmd.Flags().StringVarP(&scriptRisksOptions.Format, "format", "f", "yaml", "Output format: yaml or json.")
}
