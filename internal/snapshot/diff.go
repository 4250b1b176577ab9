package snapshot

import (
	"sort"

	"codescope/internal/scan"
)

// ChangeType represents how a file changed
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// Changeset lists the paths that differ from the previous snapshot, each
// sorted.
type Changeset struct {
	Added    []string `json:"added,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Removed  []string `json:"removed,omitempty"`
}

// Empty reports whether nothing changed.
func (c Changeset) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Changed returns added and modified paths, sorted.
func (c Changeset) Changed() []string {
	out := append(append([]string(nil), c.Added...), c.Modified...)
	sort.Strings(out)
	return out
}

// All returns every path in the changeset, sorted.
func (c Changeset) All() []string {
	out := append(c.Changed(), c.Removed...)
	sort.Strings(out)
	return out
}

// Count returns the number of changed paths.
func (c Changeset) Count() int {
	return len(c.Added) + len(c.Modified) + len(c.Removed)
}

// Diff compares the discovered files and their fingerprints against prev.
// A nil prev reports every file as added.
func Diff(prev *Snapshot, files []scan.File, fingerprints map[string]string) Changeset {
	var cs Changeset
	previous := make(map[string]string)
	if prev != nil {
		previous = prev.Fingerprints()
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.Path] = true
		old, existed := previous[f.Path]
		switch {
		case !existed:
			cs.Added = append(cs.Added, f.Path)
		case old != fingerprints[f.Path]:
			cs.Modified = append(cs.Modified, f.Path)
		}
	}
	for path := range previous {
		if !seen[path] {
			cs.Removed = append(cs.Removed, path)
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Removed)
	return cs
}
