package testutil

import (
	"encoding/json"
	"testing"
)

// volatileFields differ between otherwise identical runs.
var volatileFields = map[string]bool{
	"runId":        true,
	"snapshotId":   true,
	"generatedAt":  true,
	"durationMs":   true,
	"reused":       true,
	"lastAnalyzed": true,
	"cache":        true,
	"incremental":  true,
}

// Normalize round-trips data through JSON and drops volatile fields, so two
// reports of the same tree compare equal with reflect.DeepEqual.
func Normalize(t testing.TB, data any) any {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal data for normalization: %v", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("Failed to unmarshal data for normalization: %v", err)
	}
	return normalizeValue(v)
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if volatileFields[k] {
				continue
			}
			out[k] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
