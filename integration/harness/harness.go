//go:build integration

// Package harness provides the integration test framework for
// executable-openapi. Scenarios are YAML files describing requests sent to
// a base document and the responses expected back, and every scenario is
// replayed over each transport the document can be served on.
package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/mock"
)

// Scenario represents a complete integration test scenario.
type Scenario struct {
	// Name is a short, descriptive name for the scenario
	Name string `yaml:"name"`
	// Description provides additional context about what the scenario tests
	Description string `yaml:"description,omitempty"`
	// Base is the name of the base document from bases/ directory (without extension)
	Base string `yaml:"base"`
	// Transports restricts the transports the scenario runs on (default: all)
	Transports []string `yaml:"transports,omitempty"`
	// Steps are the requests to send, in order
	Steps []Step `yaml:"steps"`
	// Skip provides a reason to skip this scenario (if set, scenario is skipped)
	Skip string `yaml:"skip,omitempty"`

	// filePath is the path to the scenario file (set by loader)
	filePath string
}

// Step is a request and the outcome expected for it.
type Step struct {
	Name    string  `yaml:"name"`
	Request Request `yaml:"request"`
	Expect  Expect  `yaml:"expect"`
}

// Request describes the request of a step, independently of the transport.
type Request struct {
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Query   map[string]string `yaml:"query,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	// Body is sent with MediaType (default application/json) when set
	Body      any    `yaml:"body,omitempty"`
	MediaType string `yaml:"media-type,omitempty"`
	// Grants maps the security schemes the caller satisfies to its scopes
	Grants map[string][]string `yaml:"grants,omitempty"`
}

// Expect describes the outcome expected for a request.
type Expect struct {
	// NotFound expects the request not to target any operation
	NotFound bool `yaml:"not-found,omitempty"`
	Status   int  `yaml:"status,omitempty"`
	// Body is compared as JSON with the response content
	Body any `yaml:"body,omitempty"`
	// Empty expects a response without content
	Empty bool `yaml:"empty,omitempty"`
	// Contains checks that the encoded response content contains this substring
	Contains string            `yaml:"contains,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// StepResult contains the result of a step on one transport.
type StepResult struct {
	Transport string
	StepName  string
	Success   bool
	Error     error
	Duration  time.Duration
}

// ScenarioResult contains the result of running a scenario on every
// transport.
type ScenarioResult struct {
	Scenario    *Scenario
	StepResults []StepResult
	Success     bool
	Duration    time.Duration
}

// Failures returns the step results that did not pass.
func (r *ScenarioResult) Failures() []StepResult {
	var out []StepResult
	for _, sr := range r.StepResults {
		if !sr.Success {
			out = append(out, sr)
		}
	}
	return out
}

// LoadBase loads a base document, serving every operation with the mock
// handler.
func LoadBase(basesDir, name string) (*executableopenapi.Executable, error) {
	path := filepath.Join(basesDir, name+".yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("base document not found: %s", name)
	}
	return executableopenapi.Load(path, execution.HandlersMap{Default: mock.Handler()})
}

// RunScenario replays the steps of a scenario on each of its transports.
// Steps run as subtests named transport/step.
func RunScenario(t *testing.T, scenario *Scenario, basesDir string) *ScenarioResult {
	t.Helper()

	start := time.Now()
	result := &ScenarioResult{Scenario: scenario, Success: true}

	if scenario.Skip != "" {
		t.Skipf("Skipping: %s", scenario.Skip)
		return result
	}

	exe, err := LoadBase(basesDir, scenario.Base)
	if err != nil {
		t.Fatalf("loading base %s: %v", scenario.Base, err)
	}

	transports, err := NewTransports(t, exe, scenario.Transports)
	if err != nil {
		t.Fatalf("creating transports: %v", err)
	}

	for _, tr := range transports {
		t.Run(tr.Name(), func(t *testing.T) {
			for i := range scenario.Steps {
				step := &scenario.Steps[i]
				sr := runStep(t, tr, step)
				result.StepResults = append(result.StepResults, sr)
				PrintStepResult(t, &sr, i+1, len(scenario.Steps))
				if !sr.Success {
					result.Success = false
				}
			}
		})
	}

	result.Duration = time.Since(start)
	return result
}

func runStep(t *testing.T, tr Transport, step *Step) StepResult {
	t.Helper()

	start := time.Now()
	sr := StepResult{Transport: tr.Name(), StepName: step.Name}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got, err := tr.Do(ctx, &step.Request)
	if err == nil {
		err = Check(&step.Expect, got)
	}
	sr.Duration = time.Since(start)
	sr.Error = err
	sr.Success = err == nil
	return sr
}
