package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// LogLevel controls the level of the default slog handler installed by main.
var LogLevel = new(slog.LevelVar)

var verbose bool

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "koscode",
	Short: "koscode - self-repairing code loop driven by a local model",
	Long: `koscode asks a language model for unified diffs against a single target file,
applies them inside a sandboxed workspace, runs the tests, and feeds failures
back to the model until the tests pass or the iteration budget runs out.

Every plan, patch, patch log and test run is kept under the artifacts
directory for later inspection. Configuration is read from config.yaml in
$KOSCODE_HOME or the nearest parent directory that contains one.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			LogLevel.Set(slog.LevelDebug)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("koscode %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
