package core

import (
	"fmt"
	"os"

	"github.com/valter-silva-au/koscode/pkg/models"
	"gopkg.in/yaml.v3"
)

// LoadTask reads a YAML task file with goal, constraints and acceptance keys.
// Missing keys are left empty; the plan prompt renders them as blank sections.
func LoadTask(path string) (models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Task{}, fmt.Errorf("reading task %s: %w", path, err)
	}

	// Values are decoded loosely so that a list of constraints or a
	// multi-line acceptance block both end up as prompt text.
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return models.Task{}, fmt.Errorf("parsing task %s: %w", path, err)
	}

	task := models.Task{
		Goal:        nodeText(raw["goal"]),
		Constraints: nodeText(raw["constraints"]),
		Acceptance:  nodeText(raw["acceptance"]),
	}
	return task, nil
}

// nodeText renders a YAML node as prompt text: scalars verbatim, anything
// else re-encoded as YAML.
func nodeText(n yaml.Node) string {
	switch n.Kind {
	case 0:
		return ""
	case yaml.ScalarNode:
		return n.Value
	}
	out, err := yaml.Marshal(&n)
	if err != nil {
		return ""
	}
	return string(out)
}
