package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// writeStructured prints v as JSON or YAML. It reports false for any other
// format so the caller can fall back to its table or text rendering.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case "", "table", "text":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
