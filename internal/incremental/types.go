// Package incremental builds snapshots, either from scratch or by applying
// a changeset to the previous snapshot. Both paths share one aggregation
// step, so an update produces exactly what a full build would.
package incremental

import (
	"fmt"

	"codescope/internal/analysis"
	"codescope/internal/project"
	"codescope/internal/scan"
	"codescope/internal/snapshot"
)

// RiskMode records how the risk scores of a build were obtained.
type RiskMode string

const (
	// RiskFull rescored the whole population.
	RiskFull RiskMode = "full"
	// RiskIncremental replaced changed values in the previous distributions.
	RiskIncremental RiskMode = "incremental"
	// RiskReused carried the previous scores over unchanged.
	RiskReused RiskMode = "reused"
)

// Input is the current state of the tree.
type Input struct {
	Root      string
	Files     []scan.File
	Detection project.Detection
	// Fingerprints maps every file path to its cache key.
	Fingerprints map[string]string
	Stages       []analysis.StageID
}

// Result is a new snapshot plus what the build had to redo.
type Result struct {
	Snapshot *snapshot.Snapshot
	Changes  snapshot.Changeset
	// Affected lists the files that went back through the per-file stages.
	Affected         []string
	CentralityReused bool
	RiskMode         RiskMode
	// Full is set when the build ignored the previous snapshot.
	Full bool
}

// Stats summarises a build for logs and the watch output.
type Stats struct {
	Files            int
	Added            int
	Modified         int
	Removed          int
	Affected         int
	ParseFailures    int
	CentralityReused bool
	RiskMode         RiskMode
	Full             bool
}

// Stats derives the summary of r.
func (r *Result) Stats() Stats {
	s := Stats{
		Added:            len(r.Changes.Added),
		Modified:         len(r.Changes.Modified),
		Removed:          len(r.Changes.Removed),
		Affected:         len(r.Affected),
		CentralityReused: r.CentralityReused,
		RiskMode:         r.RiskMode,
		Full:             r.Full,
	}
	if r.Snapshot != nil {
		s.Files = len(r.Snapshot.Files)
		s.ParseFailures = len(r.Snapshot.ParseFailures)
	}
	return s
}

// FormatStats returns a human-readable summary of the build.
func FormatStats(s Stats) string {
	if s.Full {
		return fmt.Sprintf("Full analysis: %d files, %d parse failures", s.Files, s.ParseFailures)
	}
	if s.Added+s.Modified+s.Removed == 0 {
		return fmt.Sprintf("No changes: %d files, results reused", s.Files)
	}
	return fmt.Sprintf("Incremental analysis: +%d ~%d -%d, %d affected of %d files, centrality %s, risk %s",
		s.Added, s.Modified, s.Removed, s.Affected, s.Files, reuseWord(s.CentralityReused), s.RiskMode)
}

func reuseWord(reused bool) string {
	if reused {
		return "reused"
	}
	return "recomputed"
}
