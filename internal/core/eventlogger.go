package core

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// logEvent writes to logger if it is non-nil. Event log failures never
// interrupt the pipeline.
func logEvent(logger EventLogger, eventType string, data map[string]any) {
	if logger == nil {
		return
	}
	_ = logger.LogEvent(eventType, data)
}
