// Package internal provides the App struct that wires all components of
// koscode together and initializes the CLI layer.
package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/koscode/internal/cli"
	"github.com/valter-silva-au/koscode/internal/core"
	"github.com/valter-silva-au/koscode/internal/integration"
	"github.com/valter-silva-au/koscode/internal/observability"
	"github.com/valter-silva-au/koscode/internal/storage"
	"github.com/valter-silva-au/koscode/pkg/models"
)

// EventLogFile is the name of the event log inside the artifacts directory.
const EventLogFile = "events.jsonl"

// App holds all service dependencies of koscode.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.Config

	// Storage layer
	Artifacts storage.ArtifactStoreManager

	// Integration services
	Generator integration.TextGenerator
	Executor  *integration.ShellExecutor
	PatchTool *integration.PatchCommand

	// Core services
	Applier    *core.PatchApplier
	Planner    *core.Planner
	Critic     *core.Critic
	Coder      *core.Coder
	Checks     *core.CheckRunner
	Controller *core.IterationController

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
	Notifier    observability.Notifier
}

// NewApp creates and wires all components. basePath is the directory that
// holds config.yaml; relative workspace and artifacts paths resolve against
// it.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Storage layer ---
	app.Artifacts = storage.NewArtifactStoreManager(cfg.Artifacts)

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(cfg.Artifacts, EventLogFile))
	if err != nil {
		// Non-fatal: run without an event log.
		slog.Warn("event log disabled", "error", err)
		app.EventLog = nil
	}
	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog}
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, alertThresholds(cfg.Alerts))
	}
	if cfg.Alerts.SlackWebhook != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Alerts.SlackWebhook)
	}

	// --- Integration services ---
	app.Generator, err = integration.NewTextGenerator(cfg.LLM)
	if err != nil {
		return nil, err
	}
	app.Executor = integration.NewShellExecutor(cfg.Shell)
	app.PatchTool = integration.NewPatchCommand(cfg.Patch.Binary, cfg.Patch.Timeout)

	// --- Core services ---
	app.Applier = core.NewPatchApplier(app.Artifacts, app.PatchTool, cfg.Patch.AllowedPaths, evtAdapter)
	app.Planner = core.NewPlanner(app.Generator, app.Artifacts, cfg.Planner, evtAdapter)
	app.Critic = core.NewCritic(app.Generator, app.Artifacts, cfg.Critic, cfg.Loop.FailureWindow, evtAdapter)
	app.Coder = core.NewCoder(*cfg, app.Generator, app.Artifacts, app.Applier, evtAdapter)
	app.Checks = core.NewCheckRunner(app.Executor, app.Artifacts, cfg.Workspace, cfg.Test.Timeout, evtAdapter)
	app.Controller = core.NewIterationController(core.ControllerConfig{
		Planner:     app.Planner,
		Critic:      app.Critic,
		Coder:       app.Coder,
		Checks:      app.Checks,
		TestCommand: cfg.Test.Command,
		StallLimit:  cfg.Loop.StallLimit,
		EventLogger: evtAdapter,
	})

	// --- Wire CLI package-level variables ---
	cli.Config = cfg
	cli.Planner = app.Planner
	cli.Coder = app.Coder
	cli.Checks = app.Checks
	cli.Controller = app.Controller
	cli.MetricsCalc = app.MetricsCalc
	cli.AlertEngine = app.AlertEngine
	cli.Notifier = app.Notifier

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the directory holding config.yaml. It checks
// the KOSCODE_HOME env var, then walks up from the current directory, and
// falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("KOSCODE_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	// Walk up to find a directory containing config.yaml.
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName+".yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to cwd.
	cwd, _ := os.Getwd()
	return cwd
}

// --- Adapters ---

func alertThresholds(a models.AlertsConfig) observability.AlertThresholds {
	return observability.AlertThresholds{
		FailedRunStreak:     a.FailedRunStreak,
		RejectionRate:       a.RejectionRate,
		MinPatchAttempts:    a.MinPatchAttempts,
		MaxCommandTimeouts:  a.MaxCommandTimeouts,
		MaxGenerationErrors: a.MaxGenerationErrors,
		Window:              a.Window,
	}
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   observability.LevelFor(eventType),
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
