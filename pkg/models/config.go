package models

import "time"

// SamplingConfig holds the model and sampling parameters for one role
// (planner, coder or critic) of the text-generation service.
type SamplingConfig struct {
	Model       string        `yaml:"model" mapstructure:"model"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	NumCtx      int           `yaml:"num_ctx" mapstructure:"num_ctx"`
	NumPredict  int           `yaml:"num_predict" mapstructure:"num_predict"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LLMConfig selects and addresses the text-generation backend.
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // ollama or openai
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// PatchConfig controls patch validation and the external patch tool.
type PatchConfig struct {
	AllowedPaths []string      `yaml:"allowed_paths" mapstructure:"allowed_paths"`
	Binary       string        `yaml:"binary" mapstructure:"binary"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TestConfig holds the test command run before and after every patch.
type TestConfig struct {
	Command string        `yaml:"command" mapstructure:"command"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ShellConfig describes how commands are executed inside the workspace.
// Activate is prefixed to every command with "&&" when non-empty.
type ShellConfig struct {
	Program  string `yaml:"program" mapstructure:"program"`
	Activate string `yaml:"activate" mapstructure:"activate"`
}

// LoopConfig bounds the repair loop.
type LoopConfig struct {
	MaxIters      int `yaml:"max_iters" mapstructure:"max_iters"`
	StallLimit    int `yaml:"stall_limit" mapstructure:"stall_limit"`
	FailureWindow int `yaml:"failure_window" mapstructure:"failure_window"`
}

// AlertsConfig holds the loop-health alert thresholds and the optional
// Slack webhook that alerts are pushed to. A zero threshold disables its
// check.
type AlertsConfig struct {
	FailedRunStreak     int           `yaml:"failed_run_streak" mapstructure:"failed_run_streak"`
	RejectionRate       float64       `yaml:"rejection_rate" mapstructure:"rejection_rate"`
	MinPatchAttempts    int           `yaml:"min_patch_attempts" mapstructure:"min_patch_attempts"`
	MaxCommandTimeouts  int           `yaml:"max_command_timeouts" mapstructure:"max_command_timeouts"`
	MaxGenerationErrors int           `yaml:"max_generation_errors" mapstructure:"max_generation_errors"`
	Window              time.Duration `yaml:"window" mapstructure:"window"`
	SlackWebhook        string        `yaml:"slack_webhook,omitempty" mapstructure:"slack_webhook"`
}

// Config is the process-wide configuration read once from config.yaml.
// It is passed by value into every component and never mutated afterwards.
type Config struct {
	Workspace    string         `yaml:"workspace" mapstructure:"workspace"`
	Artifacts    string         `yaml:"artifacts" mapstructure:"artifacts"`
	TargetFile   string         `yaml:"target_file" mapstructure:"target_file"`
	TestFile     string         `yaml:"test_file" mapstructure:"test_file"`
	Patch        PatchConfig    `yaml:"patch" mapstructure:"patch"`
	Test         TestConfig     `yaml:"test" mapstructure:"test"`
	Shell        ShellConfig    `yaml:"shell" mapstructure:"shell"`
	Loop         LoopConfig     `yaml:"loop" mapstructure:"loop"`
	LLM          LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Planner      SamplingConfig `yaml:"planner" mapstructure:"planner"`
	Coder        SamplingConfig `yaml:"coder" mapstructure:"coder"`
	Critic       SamplingConfig `yaml:"critic" mapstructure:"critic"`
	Alerts       AlertsConfig   `yaml:"alerts" mapstructure:"alerts"`
}
