// Package observability provides the JSONL event log written during loop
// runs, metrics derived from it on demand, and loop-health alerts that can
// be pushed to a Slack webhook.
package observability
