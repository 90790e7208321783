package cli

import (
	"os"

	"github.com/valter-silva-au/koscode/internal/core"
	"github.com/valter-silva-au/koscode/internal/observability"
	"github.com/valter-silva-au/koscode/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	Config      *models.Config
	Planner     *core.Planner
	Coder       *core.Coder
	Checks      *core.CheckRunner
	Controller  *core.IterationController
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
	Notifier    observability.Notifier
)

// osExit is replaced in tests.
var osExit = os.Exit
