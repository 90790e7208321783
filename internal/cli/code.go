package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var codeCmd = &cobra.Command{
	Use:   "code <instruction>",
	Short: "Ask the coder model for a patch and apply it to the workspace",
	Long: `Send an instruction to the coder model together with the current target and
test files, then sanitize, validate and apply the returned diff.

The raw reply is kept as artifacts/last_patch.diff; the sanitized patch and the
patch tool output are kept as artifacts/patch_<stamp>.diff and .log.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coder == nil {
			return fmt.Errorf("coder not initialized")
		}

		result := Coder.Code(cmd.Context(), strings.Join(args, " "))
		switch {
		case result.Succeeded:
			fmt.Println(successStyle.Render("Patch applied"))
		case result.Rejected:
			fmt.Println(failureStyle.Render("Patch rejected: " + strings.Join(result.Violations, ", ")))
		default:
			fmt.Println(failureStyle.Render("Patch failed (see artifacts/patch_*.log)"))
		}
		if result.Stats != nil {
			fmt.Printf("  %d file(s), %d hunk(s), +%d/-%d\n",
				result.Stats.Files, result.Stats.Hunks, result.Stats.LinesAdded, result.Stats.LinesRemoved)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(codeCmd)
}
