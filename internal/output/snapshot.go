package output

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SnapshotExcludeFields lists the run-specific report fields ignored when
// comparing two reports. A "*" segment matches every array element or key.
var SnapshotExcludeFields = []string{
	"metadata.runId",
	"metadata.snapshotId",
	"metadata.generatedAt",
	"metadata.durationMs",
	"metadata.incremental",
	"metadata.cache",
	"metadata.stages.*.durationMs",
	"metadata.stages.*.reused",
	"metadata.stages.*.files",
	"metadata.stages.*.partitions",
}

// NormalizeForSnapshot removes run-specific fields and re-encodes
// deterministically.
func NormalizeForSnapshot(data []byte) ([]byte, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	for _, field := range SnapshotExcludeFields {
		removeNestedField(parsed, strings.Split(field, "."))
	}
	return DeterministicEncode(parsed)
}

// CompareSnapshots returns true if two encoded reports are identical,
// ignoring run-specific fields.
func CompareSnapshots(a, b []byte) (bool, string) {
	normalizedA, err := NormalizeForSnapshot(a)
	if err != nil {
		return false, "failed to normalize snapshot A: " + err.Error()
	}
	normalizedB, err := NormalizeForSnapshot(b)
	if err != nil {
		return false, "failed to normalize snapshot B: " + err.Error()
	}
	if !bytes.Equal(normalizedA, normalizedB) {
		return false, "snapshots differ:\n" + string(normalizedA) + "\n" + string(normalizedB)
	}
	return true, ""
}

// SnapshotEqual encodes two values and compares them like CompareSnapshots.
func SnapshotEqual(a, b interface{}) bool {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}
	equal, _ := CompareSnapshots(aJSON, bJSON)
	return equal
}

// removeNestedField deletes the field at path, descending into every
// element where a segment is "*".
func removeNestedField(data interface{}, path []string) {
	if len(path) == 0 {
		return
	}
	head, rest := path[0], path[1:]

	switch node := data.(type) {
	case map[string]interface{}:
		if head == "*" {
			for _, child := range node {
				removeNestedField(child, rest)
			}
			return
		}
		if len(rest) == 0 {
			delete(node, head)
			return
		}
		if child, ok := node[head]; ok {
			removeNestedField(child, rest)
		}
	case []interface{}:
		if head != "*" {
			return
		}
		for _, child := range node {
			removeNestedField(child, rest)
		}
	}
}
