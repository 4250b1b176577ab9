// Package report assembles the ranked, size-bounded analysis report from a
// snapshot and renders it as markdown, JSON, YAML or SARIF.
package report

import (
	"time"

	"codescope/internal/analysis"
	"codescope/internal/cache"
	"codescope/internal/compression"
	"codescope/internal/pipeline"
	"codescope/internal/project"
	"codescope/internal/risk"
	"codescope/internal/snapshot"
)

// Section IDs in render order.
const (
	SectionHotspots        = "hotspots"
	SectionRecommendations = "recommendations"
	SectionCycles          = "cycles"
	SectionDuplicates      = "duplicates"
	SectionDebt            = "debt"
	SectionFiles           = "files"
)

var sectionOrder = []struct {
	id    string
	title string
	// stages the section is derived from; a partial stage makes the section partial
	stages []analysis.StageID
	kinds  []compression.Kind
}{
	{SectionHotspots, "Risk hotspots", []analysis.StageID{analysis.StageComplexity, analysis.StageChurn}, []compression.Kind{compression.KindHotspot}},
	{SectionRecommendations, "Recommendations", []analysis.StageID{analysis.StageComplexity, analysis.StageChurn}, []compression.Kind{compression.KindRecommendation}},
	{SectionCycles, "Dependency cycles", []analysis.StageID{analysis.StageGraph}, []compression.Kind{compression.KindCycle}},
	{SectionDuplicates, "Duplicated code", []analysis.StageID{analysis.StageDuplicates}, []compression.Kind{compression.KindCloneGroup}},
	{SectionDebt, "Technical debt", []analysis.StageID{analysis.StageDebt}, []compression.Kind{compression.KindDebt}},
	{SectionFiles, "Files", []analysis.StageID{analysis.StageComplexity, analysis.StageDeadCode}, []compression.Kind{
		compression.KindContainer, compression.KindPublicAPI, compression.KindEntryPoint,
		compression.KindCoreType, compression.KindFunction,
	}},
}

// Report is the assembled output of one analysis.
type Report struct {
	Metadata Metadata     `json:"metadata"`
	Summary  Summary      `json:"summary"`
	Hotspots []risk.Score `json:"hotspots,omitempty"`
	Sections []Section    `json:"sections"`
	// Mermaid is the dependency diagram of the most central nodes.
	Mermaid string `json:"mermaid,omitempty"`
}

// Metadata describes how the report was produced. Fields that vary between
// otherwise identical runs are excluded from snapshot comparisons.
type Metadata struct {
	RunID         string                          `json:"runId"`
	SnapshotID    string                          `json:"snapshotId"`
	Root          string                          `json:"root"`
	Version       string                          `json:"version"`
	GeneratedAt   time.Time                       `json:"generatedAt"`
	DurationMs    int64                           `json:"durationMs"`
	Detection     project.Detection               `json:"detection"`
	Stages        []pipeline.StageReport          `json:"stages"`
	ParseFailures []snapshot.ParseFailure         `json:"parseFailures,omitempty"`
	Centrality    CentralityInfo                  `json:"centrality"`
	Truncation    *compression.TruncationInfo     `json:"truncation,omitempty"`
	Compression   *compression.CompressionMetrics `json:"compression,omitempty"`
	// Partial lists the sections whose stages did not fully succeed.
	Partial     []string         `json:"partial,omitempty"`
	Notes       []string         `json:"notes,omitempty"`
	Incremental *IncrementalInfo `json:"incremental,omitempty"`
	Cache       *cache.Stats     `json:"cache,omitempty"`
}

// CentralityInfo reports how PageRank converged.
type CentralityInfo struct {
	Iterations int  `json:"iterations"`
	Converged  bool `json:"converged"`
}

// IncrementalInfo describes what an incremental update recomputed.
type IncrementalInfo struct {
	Added            int    `json:"added"`
	Modified         int    `json:"modified"`
	Removed          int    `json:"removed"`
	Affected         int    `json:"affected"`
	CentralityReused bool   `json:"centralityReused"`
	RiskMode         string `json:"riskMode"`
	// Full is set when the previous snapshot could not be reused.
	Full bool `json:"full"`
}

// Summary holds project-wide counts.
type Summary struct {
	Files         int     `json:"files"`
	Functions     int     `json:"functions"`
	Edges         int     `json:"edges"`
	Cycles        int     `json:"cycles"`
	CloneGroups   int     `json:"cloneGroups"`
	DebtItems     int     `json:"debtItems"`
	DeadSymbols   int     `json:"deadSymbols"`
	HighRisk      int     `json:"highRisk"`
	MedianRisk    float64 `json:"medianRisk"`
	MaxRisk       float64 `json:"maxRisk"`
	ParseFailures int     `json:"parseFailures"`
}

// Section is one headed part of the report.
type Section struct {
	ID      string             `json:"id"`
	Title   string             `json:"title"`
	Partial bool               `json:"partial,omitempty"`
	Note    string             `json:"note,omitempty"`
	Items   []compression.Item `json:"items,omitempty"`
}

// Section returns the section with id.
func (r *Report) Section(id string) (Section, bool) {
	for _, s := range r.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
