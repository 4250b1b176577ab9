package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"codescope/internal/output"
)

// Format selects a renderer.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatSARIF    Format = "sarif"
)

// Formats lists the supported formats.
var Formats = []Format{FormatMarkdown, FormatJSON, FormatYAML, FormatSARIF}

// ParseFormat resolves a format name; empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	case FormatMarkdown, FormatJSON, FormatYAML, FormatSARIF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q (want one of markdown, json, yaml, sarif)", s)
}

// Render encodes the report. The output depends only on r and format.
func Render(r *Report, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown, "":
		return []byte(renderMarkdown(r)), nil
	case FormatJSON:
		return output.DeterministicEncodeIndented(r, "  ")
	case FormatYAML:
		return renderYAML(r)
	case FormatSARIF:
		return renderSARIF(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// renderYAML goes through the deterministic JSON form so keys, rounding
// and omitted fields match the JSON renderer.
func renderYAML(r *Report) ([]byte, error) {
	data, err := output.DeterministicEncode(r)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return out, nil
}
