package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stepguard/stepguard/cmd/analyse"
	"github.com/stepguard/stepguard/cmd/rules"
	scriptrisks "github.com/stepguard/stepguard/cmd/script-risks"
	"github.com/stepguard/stepguard/cmd/version"
	"github.com/stepguard/stepguard/internal/config"
	"github.com/stepguard/stepguard/pkg/shared/errors"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "stepguard [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "Stepguard classifies the security risk of automation workflows.",
		Long: `Stepguard inspects the steps of an automation workflow for sensitive data and
risky operations, assigns every step a risk level and works out which approvals
the workflow needs before it may run.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $STEPGUARD_CONFIG or stepguard.yml)")

	rootCmd.AddCommand(analyse.AnalyseCmd)
	rootCmd.AddCommand(rules.RulesCmd)
	rootCmd.AddCommand(scriptrisks.ScriptRisksCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var cmdErr *errors.CommandError
		if stderrors.As(err, &cmdErr) {
			return cmdErr.ExitCode
		}
		return errors.ExitFailure
	}
	return 0
}

func initConfig() {
	// A .env file is optional; it only seeds STEPGUARD_* variables.
	_ = godotenv.Load()

	path, explicit := config.ResolveConfigPath(cfgFile)
	cfg, err := config.LoadConfig(path, explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing config failed - %v\n", err)
		os.Exit(errors.ExitFailure)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errors.ExitFailure)
	}
	AppConfig = cfg

	analyse.Init(AppConfig)
	rules.Init(AppConfig)
	scriptrisks.Init(AppConfig)
	version.Init(AppConfig)
}
