package observability

import (
	"fmt"
	"time"
)

// Metrics holds loop statistics derived from the event log.
type Metrics struct {
	Runs             int            `json:"runs"`
	RunsByState      map[string]int `json:"runs_by_state"`
	Iterations       int            `json:"iterations"`
	PatchesApplied   int            `json:"patches_applied"`
	PatchesFailed    int            `json:"patches_failed"`
	PatchesRejected  int            `json:"patches_rejected"`
	LinesAdded       int            `json:"lines_added"`
	LinesRemoved     int            `json:"lines_removed"`
	GenerationErrors map[string]int `json:"generation_errors"`
	Commands         int            `json:"commands"`
	CommandTimeouts  int            `json:"command_timeouts"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// PassRate returns the share of finished runs that ended in DONE_PASS.
func (m *Metrics) PassRate() float64 {
	if m.Runs == 0 {
		return 0
	}
	return float64(m.RunsByState["DONE_PASS"]) / float64(m.Runs)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		RunsByState:      make(map[string]int),
		GenerationErrors: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "loop.finished":
			m.Runs++
			if state, ok := event.Data["state"].(string); ok {
				m.RunsByState[state]++
			}
		case "loop.iteration":
			m.Iterations++
		case "patch.applied":
			m.PatchesApplied++
			m.LinesAdded += intField(event.Data, "lines_added")
			m.LinesRemoved += intField(event.Data, "lines_removed")
		case "patch.failed":
			m.PatchesFailed++
		case "patch.rejected":
			m.PatchesRejected++
		case "llm.failed":
			if role, ok := event.Data["role"].(string); ok {
				m.GenerationErrors[role]++
			}
		case "command.finished":
			m.Commands++
			if timedOut, ok := event.Data["timed_out"].(bool); ok && timedOut {
				m.CommandTimeouts++
			}
		}
	}

	return m, nil
}

// intField reads a numeric field that went through a JSON round trip.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
