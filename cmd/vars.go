package cmd

import (
	"fmt"
	"strings"
)

// parseVariableOverrides parses trailing arguments of the form "--name value"
// or "--name=value" into a variable override map. A bare "--" separator is
// ignored. Every flag must have a value; anything not starting with "--" in
// flag position is an error.
func parseVariableOverrides(tokens []string) (map[string]string, error) {
	overrides := make(map[string]string)

	pending := ""

	for _, token := range tokens {
		if pending != "" {
			if strings.HasPrefix(token, "--") {
				return nil, fmt.Errorf("variable flag --%s missing value, followed by %q", pending, token)
			}

			overrides[pending] = token
			pending = ""

			continue
		}

		if token == "--" {
			continue
		}

		stripped, ok := strings.CutPrefix(token, "--")
		if !ok || stripped == "" {
			return nil, fmt.Errorf("unexpected variable token %q, variable flags must start with --", token)
		}

		if name, value, found := strings.Cut(stripped, "="); found {
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("variable flag name cannot be empty")
			}

			overrides[strings.TrimSpace(name)] = value

			continue
		}

		pending = stripped
	}

	if pending != "" {
		return nil, fmt.Errorf("variable flag --%s requires a value", pending)
	}

	return overrides, nil
}
