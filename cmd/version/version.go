package version

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/stepguard/stepguard/internal/config"
	"github.com/stepguard/stepguard/pkg/riskengine"
)

// Set at build time with -ldflags "-X github.com/stepguard/stepguard/cmd/version.CoreVersion=...".
var (
	AppConfig     *config.Config
	CoreVersion   = "unknown"
	GolangVersion = runtime.Version()
	BuildTime     = "unknown"
)

// Versions holds version information of the binary and its built-in rule set.
type Versions struct {
	Version       string `json:"version"`
	GolangVersion string `json:"golang_version"`
	BuildTime     string `json:"build_time"`
	Rules         int    `json:"rules"`
	ExtraRules    int    `json:"extra_rules"`
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// NewVersionCmd creates a new cobra.Command for the version command.
func NewVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:                   "version [--json]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Print the version number of the application and its rule set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersionInfo(cmd.OutOrStdout(), currentVersions(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version information as json.")
	return cmd
}

func currentVersions() Versions {
	v := Versions{
		Version:       CoreVersion,
		GolangVersion: GolangVersion,
		BuildTime:     BuildTime,
		Rules:         len(riskengine.DefaultRuleSpecs()),
	}
	if AppConfig != nil {
		v.ExtraRules = len(AppConfig.Engine.ExtraRules)
	}
	return v
}

// printVersionInfo prints the version information of the application.
func printVersionInfo(w io.Writer, versions Versions, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(versions)
	}
	_, err := fmt.Fprintf(w, "Core Version: v%s\nRules: %d built-in, %d from config\nGo Version: %s\nBuild Time: %s\n",
		versions.Version, versions.Rules, versions.ExtraRules, versions.GolangVersion, versions.BuildTime)
	return err
}
