//go:build integration

package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Check compares a result with the expected outcome and returns the first
// mismatch.
func Check(expect *Expect, got *Result) error {
	if expect.NotFound {
		if !got.NotFound {
			return fmt.Errorf("expected no operation to be targeted, got status %d", got.Status)
		}
		return nil
	}
	if got.NotFound {
		return fmt.Errorf("expected status %d, but no operation was targeted", expect.Status)
	}

	if expect.Status != 0 && got.Status != expect.Status {
		return fmt.Errorf("expected status %d, got %d (body: %s)", expect.Status, got.Status, got.Body)
	}
	if expect.Empty && len(got.Body) > 0 {
		return fmt.Errorf("expected no content, got %s", got.Body)
	}
	if expect.Body != nil {
		if err := jsonEqual(expect.Body, got.Body); err != nil {
			return err
		}
	}
	if expect.Contains != "" && !strings.Contains(string(got.Body), expect.Contains) {
		return fmt.Errorf("expected content containing %q, got %s", expect.Contains, got.Body)
	}
	for name, want := range expect.Headers {
		if value, ok := header(got.Headers, name); !ok || value != want {
			return fmt.Errorf("expected header %s: %q, got %q", name, want, value)
		}
	}
	return nil
}

// jsonEqual compares want, as decoded from YAML, with JSON data.
func jsonEqual(want any, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("expected content %v, got none", want)
	}
	expected, err := roundTrip(want)
	if err != nil {
		return err
	}
	var actual any
	if err := json.Unmarshal(data, &actual); err != nil {
		return fmt.Errorf("content is not JSON: %w (%s)", err, data)
	}
	if !reflect.DeepEqual(expected, actual) {
		return fmt.Errorf("expected content %v, got %s", expected, data)
	}
	return nil
}

// header looks name up case-insensitively.
func header(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
