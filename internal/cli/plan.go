package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/koscode/internal/core"
)

// DefaultTaskPath is used when --task is not given.
const DefaultTaskPath = "tasks/sample.yaml"

var planTaskPath string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a plan for a task and save it to artifacts/plan.yaml",
	Long: `Load a YAML task file (goal, constraints, acceptance), ask the planner model
for an implementation plan, and save the reply verbatim as artifacts/plan.yaml.

A failed generation still saves an empty plan; plan quality never blocks the loop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Planner == nil {
			return fmt.Errorf("planner not initialized")
		}

		task, err := core.LoadTask(planTaskPath)
		if err != nil {
			return err
		}

		_, path, err := Planner.Plan(cmd.Context(), task)
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}

		fmt.Println(successStyle.Render("Plan saved -> " + path))
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planTaskPath, "task", DefaultTaskPath, "Path to the YAML task file")
	rootCmd.AddCommand(planCmd)
}
