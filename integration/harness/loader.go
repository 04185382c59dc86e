//go:build integration

package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v4"

	"github.com/alexstrat/executable-openapi/execution"
)

// LoadScenario loads a single scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: failed to read scenario file %s: %w", path, err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("harness: failed to parse scenario file %s: %w", path, err)
	}

	scenario.filePath = path

	// Validate the scenario
	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("harness: invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

// LoadAllScenarios loads all scenarios from a directory recursively.
func LoadAllScenarios(dir string) ([]*Scenario, error) {
	var scenarios []*Scenario

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories
		if info.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			return err
		}

		scenarios = append(scenarios, scenario)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("harness: failed to load scenarios from %s: %w", dir, err)
	}

	return scenarios, nil
}

// ValidateScenario validates a scenario's structure and required fields.
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario must have a name")
	}
	if s.Base == "" {
		return fmt.Errorf("scenario '%s' has no base document", s.Name)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario '%s' must have at least one step", s.Name)
	}

	for _, name := range s.Transports {
		switch name {
		case TransportExecutor, TransportHTTP, TransportNATS:
		default:
			return fmt.Errorf("scenario '%s': unknown transport '%s'", s.Name, name)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(&step, i); err != nil {
			return fmt.Errorf("scenario '%s': %w", s.Name, err)
		}
	}

	return nil
}

// validateStep validates a single step.
func validateStep(step *Step, index int) error {
	if step.Name == "" {
		return fmt.Errorf("step %d must have a name", index+1)
	}
	if _, ok := execution.ParseMethod(step.Request.Method); !ok {
		return fmt.Errorf("step %d (%s): unknown method '%s'", index+1, step.Name, step.Request.Method)
	}
	if !strings.HasPrefix(step.Request.Path, "/") {
		return fmt.Errorf("step %d (%s): path must start with /", index+1, step.Name)
	}
	if !step.Expect.NotFound && step.Expect.Status == 0 {
		return fmt.Errorf("step %d (%s): expect needs a status or not-found", index+1, step.Name)
	}
	return nil
}

// ScenarioPath returns the relative path of the scenario file for display.
func ScenarioPath(s *Scenario, baseDir string) string {
	if s.filePath == "" {
		return s.Name
	}
	rel, err := filepath.Rel(baseDir, s.filePath)
	if err != nil {
		return s.filePath
	}
	return rel
}

// ScenarioTestName returns a test-friendly name for the scenario.
func ScenarioTestName(s *Scenario, baseDir string) string {
	// Use the relative path without extension as the test name
	path := ScenarioPath(s, baseDir)
	// Remove .yaml/.yml extension
	path = strings.TrimSuffix(path, ".yaml")
	path = strings.TrimSuffix(path, ".yml")
	// Replace path separators with /
	path = strings.ReplaceAll(path, string(filepath.Separator), "/")
	return path
}
