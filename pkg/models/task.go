package models

// Task describes what the repair loop should achieve. It is loaded from a
// YAML task file once per plan or loop invocation and never modified.
type Task struct {
	Goal        string `yaml:"goal"`
	Constraints string `yaml:"constraints"`
	Acceptance  string `yaml:"acceptance"`
}
