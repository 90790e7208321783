package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display repair loop metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include loop runs by final state, iterations, patch outcomes with
line counts, generation errors by role, and command timeouts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (event log may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		// Table format.
		fmt.Printf("Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Printf("  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Printf("  %-24s %d\n", "Loop runs:", metrics.Runs)
		fmt.Printf("  %-24s %.0f%%\n", "Pass rate:", metrics.PassRate()*100)
		fmt.Printf("  %-24s %d\n", "Iterations:", metrics.Iterations)
		fmt.Printf("  %-24s %d\n", "Patches applied:", metrics.PatchesApplied)
		fmt.Printf("  %-24s %d\n", "Patches failed:", metrics.PatchesFailed)
		fmt.Printf("  %-24s %d\n", "Patches rejected:", metrics.PatchesRejected)
		fmt.Printf("  %-24s +%d/-%d\n", "Lines changed:", metrics.LinesAdded, metrics.LinesRemoved)
		fmt.Printf("  %-24s %d (%d timed out)\n", "Commands run:", metrics.Commands, metrics.CommandTimeouts)

		if len(metrics.RunsByState) > 0 {
			fmt.Println("\n  Runs by final state:")
			for _, state := range sortedKeys(metrics.RunsByState) {
				fmt.Printf("    %-20s %d\n", state+":", metrics.RunsByState[state])
			}
		}

		if len(metrics.GenerationErrors) > 0 {
			fmt.Println("\n  Generation errors:")
			for _, role := range sortedKeys(metrics.GenerationErrors) {
				fmt.Printf("    %-20s %d\n", role+":", metrics.GenerationErrors[role])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Printf("\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Printf("  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
