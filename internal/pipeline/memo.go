package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"

	"codescope/internal/analysis"
	"codescope/internal/config"
)

// MemoEntry is the output of one successful stage run and the input key it
// was produced from.
type MemoEntry struct {
	Key    string           `json:"key"`
	Output *analysis.Output `json:"output"`
}

// Memo carries stage outputs between runs so unchanged inputs are not
// re-entered. It is replaced, never mutated, by Run.
type Memo struct {
	Entries map[analysis.StageID]MemoEntry `json:"entries"`
}

// Lookup returns the memoized output for id when key matches.
func (m *Memo) Lookup(id analysis.StageID, key string) (*analysis.Output, bool) {
	if m == nil {
		return nil, false
	}
	e, ok := m.Entries[id]
	if !ok || e.Key != key {
		return nil, false
	}
	return e.Output, true
}

// InputKey derives the memo key of a stage: its identity, the path and
// fingerprint of every file it sees, the config section it reads and any
// extra state the stage declares through analysis.Keyed.
func InputKey(ctx context.Context, stage analysis.Stage, in *analysis.Input) string {
	files := make([]string, len(in.Files))
	for i, f := range in.Files {
		files[i] = f.Path + "\x00" + f.Fingerprint
	}
	sort.Strings(files)

	h := xxh3.New()
	fmt.Fprintf(h, "%s|%s|", stage.ID(), stage.Scope())
	for _, f := range files {
		h.WriteString(f)
		h.WriteString("\n")
	}
	h.Write(configSection(stage.ID(), in.Config))
	if k, ok := stage.(analysis.Keyed); ok {
		h.WriteString("|")
		h.WriteString(k.InputKey(ctx, in))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func configSection(id analysis.StageID, cfg *config.Config) []byte {
	if cfg == nil {
		return nil
	}
	var section interface{}
	switch id {
	case analysis.StageChurn:
		section = cfg.Churn
	case analysis.StageDebt:
		section = cfg.Debt
	case analysis.StageDeadCode:
		section = cfg.DeadCode
	case analysis.StageDuplicates:
		section = cfg.Duplicates
	case analysis.StageGraph:
		section = struct {
			Granularity string
			ScipIndex   string
		}{cfg.Graph.Granularity, cfg.Graph.ScipIndex}
	default:
		return nil
	}
	data, _ := json.Marshal(section)
	return data
}
