package observability

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// maxAlertRunIDs caps how many run ids an alert carries.
const maxAlertRunIDs = 5

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
	// RunIDs lists the loop runs behind the alert, most recent first.
	RunIDs      []string      `json:"run_ids,omitempty"`
}

// AlertThresholds configures when alerts fire. A zero threshold disables
// the corresponding check.
type AlertThresholds struct {
	// FailedRunStreak fires when this many most recent loop runs all ended
	// without passing.
	FailedRunStreak int
	// RejectionRate fires when the share of allow-list rejections among
	// patch attempts in the window exceeds it.
	RejectionRate float64
	// MinPatchAttempts is the sample size below which RejectionRate is not
	// evaluated.
	MinPatchAttempts int
	// MaxCommandTimeouts fires when this many commands timed out in the window.
	MaxCommandTimeouts int
	// MaxGenerationErrors fires when this many generation calls failed in
	// the window.
	MaxGenerationErrors int
	// Window bounds the rate and count checks.
	Window time.Duration
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads events and checks all alert conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	since := time.Time{}
	if ae.thresholds.Window > 0 {
		since = now.Add(-ae.thresholds.Window)
	}
	var alerts []Alert

	streakAlerts, err := ae.checkFailedRuns(now)
	if err != nil {
		return nil, fmt.Errorf("checking failed runs: %w", err)
	}
	alerts = append(alerts, streakAlerts...)

	rejectionAlerts, err := ae.checkRejectionRate(now, since)
	if err != nil {
		return nil, fmt.Errorf("checking rejection rate: %w", err)
	}
	alerts = append(alerts, rejectionAlerts...)

	timeoutAlerts, err := ae.checkCommandTimeouts(now, since)
	if err != nil {
		return nil, fmt.Errorf("checking command timeouts: %w", err)
	}
	alerts = append(alerts, timeoutAlerts...)

	generationAlerts, err := ae.checkGenerationErrors(now, since)
	if err != nil {
		return nil, fmt.Errorf("checking generation errors: %w", err)
	}
	alerts = append(alerts, generationAlerts...)

	return alerts, nil
}

// checkFailedRuns looks at the most recent finished runs, regardless of the
// window, and alerts when the trailing streak of non-passing runs is long
// enough.
func (ae *alertEngine) checkFailedRuns(now time.Time) ([]Alert, error) {
	if ae.thresholds.FailedRunStreak <= 0 {
		return nil, nil
	}
	events, err := ae.eventLog.Read(EventFilter{Type: "loop.finished"})
	if err != nil {
		return nil, err
	}

	streak := 0
	states := make(map[string]int)
	var runIDs []string
	for i := len(events) - 1; i >= 0; i-- {
		state, _ := events[i].Data["state"].(string)
		if state == "DONE_PASS" {
			break
		}
		streak++
		if state == "" {
			state = "unknown"
		}
		states[state]++
		if id, _ := events[i].Data["run_id"].(string); id != "" && len(runIDs) < maxAlertRunIDs {
			runIDs = append(runIDs, id)
		}
	}

	if streak < ae.thresholds.FailedRunStreak {
		return nil, nil
	}
	return []Alert{{
		ID:          "failed-runs",
		Condition:   "failed_run_streak",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("the last %d loop runs ended without passing tests (%s)", streak, formatStateCounts(states)),
		TriggeredAt: now,
		RunIDs:      runIDs,
	}}, nil
}

// checkRejectionRate alerts when too many generated patches touch files
// outside the allow-list.
func (ae *alertEngine) checkRejectionRate(now, since time.Time) ([]Alert, error) {
	if ae.thresholds.RejectionRate <= 0 {
		return nil, nil
	}
	events, err := ae.eventLog.Read(EventFilter{Since: &since, TypePrefix: "patch."})
	if err != nil {
		return nil, err
	}

	attempts, rejected := 0, 0
	for _, event := range events {
		switch event.Type {
		case "patch.applied", "patch.failed":
			attempts++
		case "patch.rejected":
			attempts++
			rejected++
		}
	}

	if attempts == 0 || attempts < ae.thresholds.MinPatchAttempts {
		return nil, nil
	}
	rate := float64(rejected) / float64(attempts)
	if rate <= ae.thresholds.RejectionRate {
		return nil, nil
	}
	return []Alert{{
		ID:          "patch-rejections",
		Condition:   "rejection_rate_too_high",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d of %d patches were rejected by the allow-list (%.0f%%)", rejected, attempts, rate*100),
		TriggeredAt: now,
	}}, nil
}

// checkCommandTimeouts counts commands that hit their timeout.
func (ae *alertEngine) checkCommandTimeouts(now, since time.Time) ([]Alert, error) {
	if ae.thresholds.MaxCommandTimeouts <= 0 {
		return nil, nil
	}
	events, err := ae.eventLog.Read(EventFilter{Since: &since, Type: "command.finished"})
	if err != nil {
		return nil, err
	}

	timeouts := 0
	for _, event := range events {
		if timedOut, ok := event.Data["timed_out"].(bool); ok && timedOut {
			timeouts++
		}
	}

	if timeouts < ae.thresholds.MaxCommandTimeouts {
		return nil, nil
	}
	return []Alert{{
		ID:          "command-timeouts",
		Condition:   "command_timeouts",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d commands timed out in the last %s", timeouts, ae.thresholds.Window),
		TriggeredAt: now,
	}}, nil
}

// checkGenerationErrors counts failed calls to the text-generation service.
func (ae *alertEngine) checkGenerationErrors(now, since time.Time) ([]Alert, error) {
	if ae.thresholds.MaxGenerationErrors <= 0 {
		return nil, nil
	}
	events, err := ae.eventLog.Read(EventFilter{Since: &since, Type: "llm.failed"})
	if err != nil {
		return nil, err
	}

	if len(events) < ae.thresholds.MaxGenerationErrors {
		return nil, nil
	}
	return []Alert{{
		ID:          "generation-errors",
		Condition:   "generation_errors",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d text generation calls failed in the last %s", len(events), ae.thresholds.Window),
		TriggeredAt: now,
	}}, nil
}

// formatStateCounts renders terminal state counts as "A 2, B 1", sorted by
// state name.
func formatStateCounts(states map[string]int) string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %d", name, states[name])
	}
	return strings.Join(parts, ", ")
}
