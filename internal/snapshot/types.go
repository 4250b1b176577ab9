// Package snapshot holds the immutable result of one analysis run, the
// change detection between runs and the sqlite store that carries
// snapshots across processes.
package snapshot

import (
	"sort"
	"time"

	"codescope/internal/analysis"
	"codescope/internal/ast"
	"codescope/internal/graph"
	"codescope/internal/pipeline"
	"codescope/internal/project"
	"codescope/internal/risk"
)

// FileRecord is one analyzed file. Records are shared by pointer between
// snapshots when the file did not change, so they must never be mutated.
type FileRecord struct {
	Path         string           `json:"path"`
	Language     project.Language `json:"language"`
	Fingerprint  string           `json:"fingerprint"`
	Size         int64            `json:"size"`
	ModTime      time.Time        `json:"modTime"`
	LastAnalyzed time.Time        `json:"lastAnalyzed"`
	// ParseError is set when the file could not be parsed; AST is nil then.
	ParseError string `json:"parseError,omitempty"`
	// AST is reloaded through the parse cache and never persisted.
	AST *ast.File `json:"-"`
}

// ParseFailure names a file that was skipped because it failed to parse.
type ParseFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Centrality is the PageRank outcome.
type Centrality struct {
	Scores     map[string]float64 `json:"scores"`
	Iterations int                `json:"iterations"`
	Converged  bool               `json:"converged"`
}

// GraphInfo holds the graph-derived findings.
type GraphInfo struct {
	Nodes         int                       `json:"nodes"`
	Edges         int                       `json:"edges"`
	TopologyHash  string                    `json:"topologyHash"`
	Cycles        [][]string                `json:"cycles,omitempty"`
	CriticalPaths []graph.Path              `json:"criticalPaths,omitempty"`
	Coupling      map[string]graph.Coupling `json:"coupling,omitempty"`
	Mermaid       string                    `json:"mermaid,omitempty"`
}

// Snapshot is the complete state of one analysis. It is built once and
// never mutated; an update produces a new snapshot.
type Snapshot struct {
	ID          string            `json:"id"`
	Root        string            `json:"root"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Detection   project.Detection `json:"detection"`
	// ConfigKey identifies the settings and stage selection the snapshot
	// was built with; results are only carried over when it matches.
	ConfigKey string `json:"configKey"`
	// Files is sorted by path.
	Files []*FileRecord `json:"files"`
	// Results is the merged, sorted output of every stage.
	Results       *analysis.Output       `json:"results"`
	Stages        []pipeline.StageReport `json:"stages"`
	Memo          *pipeline.Memo         `json:"memo,omitempty"`
	Graph         GraphInfo              `json:"graph"`
	Centrality    Centrality             `json:"centrality"`
	RiskInputs    []risk.FileMetrics     `json:"riskInputs"`
	Risk          *risk.Result           `json:"risk"`
	ParseFailures []ParseFailure         `json:"parseFailures,omitempty"`
	Notes         []string               `json:"notes,omitempty"`
}

// Record returns the record for path.
func (s *Snapshot) Record(path string) (*FileRecord, bool) {
	i := sort.Search(len(s.Files), func(i int) bool { return s.Files[i].Path >= path })
	if i < len(s.Files) && s.Files[i].Path == path {
		return s.Files[i], true
	}
	return nil, false
}

// Paths returns the sorted file paths.
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.Files))
	for i, f := range s.Files {
		out[i] = f.Path
	}
	return out
}

// Fingerprints maps every path to its fingerprint.
func (s *Snapshot) Fingerprints() map[string]string {
	out := make(map[string]string, len(s.Files))
	for _, f := range s.Files {
		out[f.Path] = f.Fingerprint
	}
	return out
}

// Stage returns the report of id.
func (s *Snapshot) Stage(id analysis.StageID) (pipeline.StageReport, bool) {
	for _, r := range s.Stages {
		if r.ID == id {
			return r, true
		}
	}
	return pipeline.StageReport{}, false
}

// SortRecords orders records by path.
func SortRecords(records []*FileRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
}
