//go:build integration

package harness

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// PrintStepResult prints the result of a single step to the test output.
func PrintStepResult(t *testing.T, result *StepResult, stepNum, totalSteps int) {
	t.Helper()

	status := "PASS"
	if !result.Success {
		status = "FAIL"
	}
	t.Logf("    %s [%d/%d] %s (%s)", status, stepNum, totalSteps, result.StepName, formatDuration(result.Duration))
	if result.Error != nil {
		t.Logf("        Error: %v", result.Error)
	}
}

// PrintScenarioHeader prints the header for a scenario.
func PrintScenarioHeader(t *testing.T, scenario *Scenario) {
	t.Helper()

	t.Logf("")
	t.Logf("Scenario: %s", scenario.Name)
	if scenario.Description != "" {
		t.Logf("  %s", scenario.Description)
	}
	t.Logf("  Base: %s", scenario.Base)
	t.Logf("")
}

// PrintSummary prints a summary of all scenario results.
func PrintSummary(t *testing.T, results []*ScenarioResult, duration time.Duration) {
	t.Helper()

	var passed, failed, skipped, steps int
	for _, r := range results {
		steps += len(r.StepResults)
		switch {
		case r.Scenario.Skip != "":
			skipped++
		case r.Success:
			passed++
		default:
			failed++
		}
	}

	t.Logf("")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("INTEGRATION TEST SUMMARY")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Scenarios:  %d passed, %d failed, %d skipped", passed, failed, skipped)
	t.Logf("Steps:      %d run", steps)
	t.Logf("Duration:   %s", formatDuration(duration))
	t.Logf("%s", strings.Repeat("=", 80))

	if failed > 0 {
		t.Logf("")
		t.Logf("Failed steps:")
		for _, r := range results {
			for _, f := range r.Failures() {
				t.Logf("  - %s [%s] %s: %v", r.Scenario.Name, f.Transport, f.StepName, f.Error)
			}
		}
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
