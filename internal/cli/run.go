package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <command...>",
	Short: "Run a shell command inside the workspace",
	Long: `Run a command through the configured shell inside the workspace directory,
after the configured activation step. Output is printed and also saved as
artifacts/run_<stamp>.out and .err. The process exits with the command's code.`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Handle --help / -h manually since DisableFlagParsing is true.
		if len(args) > 0 && (args[0] == "--help" || args[0] == "-h") {
			return cmd.Help()
		}

		if Checks == nil {
			return fmt.Errorf("check runner not initialized")
		}
		if len(args) == 0 {
			return fmt.Errorf("command required")
		}

		result := Checks.Run(cmd.Context(), strings.Join(args, " "))

		fmt.Println(labelStyle.Render(fmt.Sprintf("exit=%d", result.ExitCode)))
		fmt.Printf("STDOUT:\n%s\nSTDERR:\n%s\n", result.Stdout, result.Stderr)

		if result.ExitCode != 0 {
			osExit(result.ExitCode)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
