package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var alertsNotify bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show loop-health alerts",
	Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts check for a streak of runs that ended without passing, a high share of
patches rejected by the allow-list, repeated command timeouts, and failing
text generation calls. Thresholds live under "alerts" in config.yaml.

With --notify the alerts are also posted to alerts.slack_webhook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (event log may be disabled)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		if len(alerts) == 0 {
			fmt.Println(successStyle.Render("No active alerts."))
		} else {
			fmt.Printf("%d active alert(s):\n\n", len(alerts))
			for _, alert := range alerts {
				severity := "[" + strings.ToUpper(string(alert.Severity)) + "]"
				fmt.Printf("  %s %s\n", failureStyle.Render(severity), alert.Message)
				if len(alert.RunIDs) > 0 {
					fmt.Printf("         runs: %s\n", strings.Join(alert.RunIDs, ", "))
				}
				fmt.Printf("         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
			}
		}

		if !alertsNotify {
			return nil
		}
		if Notifier == nil {
			return fmt.Errorf("notifier not configured: set alerts.slack_webhook in config.yaml")
		}
		if err := Notifier.Notify(cmd.Context(), alerts); err != nil {
			return fmt.Errorf("sending notifications: %w", err)
		}
		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post active alerts to the configured Slack webhook")
	rootCmd.AddCommand(alertsCmd)
}
