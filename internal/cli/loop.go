package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/koscode/internal/core"
	"github.com/valter-silva-au/koscode/pkg/models"
)

var (
	loopTaskPath string
	loopMaxIters int
)

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run the self-repair loop until the tests pass",
	Long: `Plan the task once, then repeat: run the tests, derive an instruction
(a fixed minimal-change directive first, then a critique of the latest failure),
ask for a patch, apply it, and run the tests again.

The loop stops as soon as the tests pass, or after --max-iters iterations.
Running out of iterations is reported and exits with status 1.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Controller == nil {
			return fmt.Errorf("iteration controller not initialized")
		}

		task, err := core.LoadTask(loopTaskPath)
		if err != nil {
			return err
		}

		maxIters := loopMaxIters
		if !cmd.Flags().Changed("max-iters") && Config != nil {
			maxIters = Config.Loop.MaxIters
		}
		if maxIters < 0 {
			return fmt.Errorf("--max-iters must be non-negative, got %d", maxIters)
		}

		outcome, err := Controller.Loop(cmd.Context(), task, maxIters)
		if outcome != nil {
			printOutcome(outcome, maxIters)
		}
		if err != nil {
			return fmt.Errorf("loop: %w", err)
		}

		if outcome.State != models.StatePass {
			osExit(1)
		}
		return nil
	},
}

func printOutcome(outcome *models.LoopOutcome, maxIters int) {
	for _, rec := range outcome.Records {
		fmt.Println(headerStyle.Render(fmt.Sprintf("=== Iteration %d/%d ===", rec.Index+1, maxIters)))
		fmt.Printf("  pre-check exit:  %d\n", rec.PreCheckExitCode)
		if rec.PostCheckExitCode == models.NotRun {
			continue
		}
		fmt.Printf("  instruction:     %s\n", rec.Instruction)
		fmt.Printf("  patch applied:   %t\n", rec.PatchApplied)
		fmt.Printf("  post-check exit: %d\n", rec.PostCheckExitCode)
	}

	switch outcome.State {
	case models.StatePass:
		fmt.Println(successStyle.Render("All tests passed!"))
	case models.StateStalled:
		fmt.Println(noticeStyle.Render("Stopped: the model keeps producing the same failing patch."))
	default:
		fmt.Println(failureStyle.Render("Reached max iterations without passing tests."))
	}
	fmt.Printf("patch attempts: %d\n", outcome.ApplyAttempts())
	fmt.Printf("run id: %s\n", outcome.RunID)
}

func init() {
	loopCmd.Flags().StringVar(&loopTaskPath, "task", DefaultTaskPath, "Path to the YAML task file")
	loopCmd.Flags().IntVar(&loopMaxIters, "max-iters", 10, "Maximum number of repair iterations (default from config)")
	rootCmd.AddCommand(loopCmd)
}
