// Package core contains the business logic for koscode: patch sanitization
// and validation, patch application, prompt construction, and the iteration
// state machine that drives the propose/apply/test loop.
package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/koscode/pkg/models"
)

// ConfigFileName is the base name (without extension) of the configuration file.
const ConfigFileName = "config"

// ConfigurationManager loads and validates the process-wide configuration.
type ConfigurationManager interface {
	Load() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading config.yaml.
type viperConfigManager struct {
	// basePath is the directory where config.yaml resides. Relative
	// workspace and artifact directories are resolved against it.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// config.yaml from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a Config populated with the defaults used when
// config.yaml is absent or a key is missing.
func DefaultConfig() *models.Config {
	return &models.Config{
		Workspace:  "workspace",
		Artifacts:  "artifacts",
		TargetFile: "app.py",
		TestFile:   "tests/test_basic.py",
		Patch: models.PatchConfig{
			AllowedPaths: []string{"app.py"},
			Binary:       "patch",
			Timeout:      60 * time.Second,
		},
		Test: models.TestConfig{
			Command: "PYTHONPATH=. pytest -q",
			Timeout: 120 * time.Second,
		},
		Shell: models.ShellConfig{
			Program:  "bash",
			Activate: "source ../.venv/bin/activate",
		},
		Loop: models.LoopConfig{
			MaxIters:      10,
			StallLimit:    0,
			FailureWindow: 2000,
		},
		LLM: models.LLMConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
		},
		Planner: models.SamplingConfig{
			Model:       "llama3.2:3b-instruct-q4_K_M",
			Temperature: 0.2,
			NumCtx:      1024,
			NumPredict:  128,
			Timeout:     120 * time.Second,
		},
		Coder: models.SamplingConfig{
			Model:       "qwen2.5-coder:7b-instruct-q4_K_M",
			Temperature: 0.2,
			NumCtx:      1024,
			NumPredict:  120,
			Timeout:     120 * time.Second,
		},
		Critic: models.SamplingConfig{
			Model:       "llama3.2:3b-instruct-q4_K_M",
			Temperature: 0.2,
			NumCtx:      1024,
			NumPredict:  64,
			Timeout:     120 * time.Second,
		},
		Alerts: models.AlertsConfig{
			FailedRunStreak:     3,
			RejectionRate:       0.5,
			MinPatchAttempts:    4,
			MaxCommandTimeouts:  3,
			MaxGenerationErrors: 5,
			Window:              24 * time.Hour,
		},
	}
}

func setSamplingDefaults(v *viper.Viper, role string, s models.SamplingConfig) {
	v.SetDefault(role+".model", s.Model)
	v.SetDefault(role+".temperature", s.Temperature)
	v.SetDefault(role+".num_ctx", s.NumCtx)
	v.SetDefault(role+".num_predict", s.NumPredict)
	v.SetDefault(role+".timeout", s.Timeout)
}

func readSampling(v *viper.Viper, role string) models.SamplingConfig {
	return models.SamplingConfig{
		Model:       v.GetString(role + ".model"),
		Temperature: v.GetFloat64(role + ".temperature"),
		NumCtx:      v.GetInt(role + ".num_ctx"),
		NumPredict:  v.GetInt(role + ".num_predict"),
		Timeout:     readDuration(v, role+".timeout"),
	}
}

// readDuration accepts either a Go duration string ("90s") or a bare number
// of seconds, which is how timeouts were historically written.
func readDuration(v *viper.Viper, key string) time.Duration {
	switch raw := v.Get(key).(type) {
	case int:
		return time.Duration(raw) * time.Second
	case int64:
		return time.Duration(raw) * time.Second
	case float64:
		return time.Duration(raw * float64(time.Second))
	}
	return v.GetDuration(key)
}

// Load reads config.yaml from the base path. If the file does not exist,
// defaults are returned. Relative directories are resolved against the base
// path so the tool behaves the same from any working directory.
func (cm *viperConfigManager) Load() (*models.Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("workspace", def.Workspace)
	v.SetDefault("artifacts", def.Artifacts)
	v.SetDefault("workspace_files.target", def.TargetFile)
	v.SetDefault("workspace_files.test", def.TestFile)
	v.SetDefault("patch.binary", def.Patch.Binary)
	v.SetDefault("patch.timeout", def.Patch.Timeout)
	v.SetDefault("test.command", def.Test.Command)
	v.SetDefault("test.timeout", def.Test.Timeout)
	v.SetDefault("shell.program", def.Shell.Program)
	v.SetDefault("shell.activate", def.Shell.Activate)
	v.SetDefault("loop.max_iters", def.Loop.MaxIters)
	v.SetDefault("loop.stall_limit", def.Loop.StallLimit)
	v.SetDefault("loop.failure_window", def.Loop.FailureWindow)
	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.base_url", def.LLM.BaseURL)
	v.SetDefault("llm.api_key", "")
	setSamplingDefaults(v, "planner", def.Planner)
	setSamplingDefaults(v, "coder", def.Coder)
	v.SetDefault("alerts.failed_run_streak", def.Alerts.FailedRunStreak)
	v.SetDefault("alerts.rejection_rate", def.Alerts.RejectionRate)
	v.SetDefault("alerts.min_patch_attempts", def.Alerts.MinPatchAttempts)
	v.SetDefault("alerts.max_command_timeouts", def.Alerts.MaxCommandTimeouts)
	v.SetDefault("alerts.max_generation_errors", def.Alerts.MaxGenerationErrors)
	v.SetDefault("alerts.window", def.Alerts.Window)
	v.SetDefault("alerts.slack_webhook", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s.yaml: %w", ConfigFileName, err)
		}
	}

	cfg := &models.Config{
		Workspace:  v.GetString("workspace"),
		Artifacts:  v.GetString("artifacts"),
		TargetFile: v.GetString("workspace_files.target"),
		TestFile:   v.GetString("workspace_files.test"),
		Patch: models.PatchConfig{
			AllowedPaths: v.GetStringSlice("patch.allowed_paths"),
			Binary:       v.GetString("patch.binary"),
			Timeout:      readDuration(v, "patch.timeout"),
		},
		Test: models.TestConfig{
			Command: v.GetString("test.command"),
			Timeout: readDuration(v, "test.timeout"),
		},
		Shell: models.ShellConfig{
			Program:  v.GetString("shell.program"),
			Activate: v.GetString("shell.activate"),
		},
		Loop: models.LoopConfig{
			MaxIters:      v.GetInt("loop.max_iters"),
			StallLimit:    v.GetInt("loop.stall_limit"),
			FailureWindow: v.GetInt("loop.failure_window"),
		},
		LLM: models.LLMConfig{
			Provider: strings.ToLower(v.GetString("llm.provider")),
			BaseURL:  v.GetString("llm.base_url"),
			APIKey:   v.GetString("llm.api_key"),
		},
		Planner: readSampling(v, "planner"),
		Coder:   readSampling(v, "coder"),
		Alerts: models.AlertsConfig{
			FailedRunStreak:     v.GetInt("alerts.failed_run_streak"),
			RejectionRate:       v.GetFloat64("alerts.rejection_rate"),
			MinPatchAttempts:    v.GetInt("alerts.min_patch_attempts"),
			MaxCommandTimeouts:  v.GetInt("alerts.max_command_timeouts"),
			MaxGenerationErrors: v.GetInt("alerts.max_generation_errors"),
			Window:              readDuration(v, "alerts.window"),
			SlackWebhook:        v.GetString("alerts.slack_webhook"),
		},
	}

	// The critic historically reuses the planner model with a short output
	// budget, so its defaults follow whatever the planner resolved to.
	setSamplingDefaults(v, "critic", models.SamplingConfig{
		Model:       cfg.Planner.Model,
		Temperature: cfg.Planner.Temperature,
		NumCtx:      cfg.Planner.NumCtx,
		NumPredict:  def.Critic.NumPredict,
		Timeout:     cfg.Planner.Timeout,
	})
	cfg.Critic = readSampling(v, "critic")

	// The allow-list defaults to the single mutable target file.
	if !v.IsSet("patch.allowed_paths") {
		cfg.Patch.AllowedPaths = []string{cfg.TargetFile}
	}

	cfg.Workspace = cm.resolve(cfg.Workspace)
	cfg.Artifacts = cm.resolve(cfg.Artifacts)

	return cfg, nil
}

func (cm *viperConfigManager) resolve(dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(cm.basePath, dir)
}

// validProviders is the set of supported text-generation backends.
var validProviders = map[string]bool{
	"ollama": true,
	"openai": true,
}

// ValidateConfig checks the configuration for invalid values and returns a
// single error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Workspace == "" {
		errs = append(errs, "workspace must not be empty")
	}
	if cfg.Artifacts == "" {
		errs = append(errs, "artifacts must not be empty")
	}
	if cfg.TargetFile == "" {
		errs = append(errs, "workspace_files.target must not be empty")
	}
	if len(cfg.Patch.AllowedPaths) == 0 {
		errs = append(errs, "patch.allowed_paths must list at least one file")
	}
	for _, p := range cfg.Patch.AllowedPaths {
		if filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(p), "..") {
			errs = append(errs, fmt.Sprintf("patch.allowed_paths entry %q must be relative to the workspace", p))
		}
	}
	if cfg.Patch.Binary == "" {
		errs = append(errs, "patch.binary must not be empty")
	}
	if cfg.Test.Command == "" {
		errs = append(errs, "test.command must not be empty")
	}
	if cfg.Test.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("test.timeout must be positive, got %s", cfg.Test.Timeout))
	}
	if cfg.Loop.MaxIters < 0 {
		errs = append(errs, fmt.Sprintf("loop.max_iters must be non-negative, got %d", cfg.Loop.MaxIters))
	}
	if cfg.Loop.StallLimit < 0 {
		errs = append(errs, fmt.Sprintf("loop.stall_limit must be non-negative, got %d", cfg.Loop.StallLimit))
	}
	if cfg.Loop.FailureWindow <= 0 {
		errs = append(errs, fmt.Sprintf("loop.failure_window must be positive, got %d", cfg.Loop.FailureWindow))
	}
	if !validProviders[cfg.LLM.Provider] {
		errs = append(errs, fmt.Sprintf("llm.provider %q is invalid, must be one of: ollama, openai", cfg.LLM.Provider))
	}
	roles := []struct {
		name string
		s    models.SamplingConfig
	}{{"planner", cfg.Planner}, {"coder", cfg.Coder}, {"critic", cfg.Critic}}
	for _, r := range roles {
		if r.s.Model == "" {
			errs = append(errs, r.name+".model must not be empty")
		}
		if r.s.Timeout <= 0 {
			errs = append(errs, fmt.Sprintf("%s.timeout must be positive, got %s", r.name, r.s.Timeout))
		}
	}

	if cfg.Alerts.RejectionRate < 0 || cfg.Alerts.RejectionRate > 1 {
		errs = append(errs, fmt.Sprintf("alerts.rejection_rate must be between 0 and 1, got %v", cfg.Alerts.RejectionRate))
	}
	if cfg.Alerts.FailedRunStreak < 0 || cfg.Alerts.MaxCommandTimeouts < 0 || cfg.Alerts.MaxGenerationErrors < 0 {
		errs = append(errs, "alerts thresholds must be non-negative")
	}
	if cfg.Alerts.Window < 0 {
		errs = append(errs, fmt.Sprintf("alerts.window must be non-negative, got %s", cfg.Alerts.Window))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
