package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leofalp/stategraph/core/graph"
)

// buildInput merges, in order, base, the YAML mapping in file and the
// key=value pairs. Values are decoded as YAML scalars, so 15 is a number
// and "15" a string.
func buildInput(base graph.State, file string, pairs []string) (graph.State, error) {
	state := base.Clone()

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		var values map[string]any
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse input file %s: %w", file, err)
		}
		for key, value := range values {
			state[key] = value
		}
	}

	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", pair)
		}
		value, err := parseScalar(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q: %w", pair, err)
		}
		state[strings.TrimSpace(key)] = value
	}
	return state, nil
}

func parseScalar(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return raw, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}
	if value == nil {
		return raw, nil
	}
	// Prose such as "Note: retry later" must stay text.
	if _, isMap := value.(map[string]any); isMap && !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return raw, nil
	}
	return value, nil
}
