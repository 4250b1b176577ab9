// Package churn measures how often files change, from version-control
// history or, failing that, from modification times.
package churn

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"codescope/internal/analysis"
)

// DefaultDays is the history window.
const DefaultDays = 90

// ErrNoHistory is returned when the project is not inside a git repository.
var ErrNoHistory = errors.New("no version-control history")

// Stage walks the git log of the project.
type Stage struct{}

// NewStage creates the churn stage.
func NewStage() *Stage {
	return &Stage{}
}

func (s *Stage) ID() analysis.StageID { return analysis.StageChurn }

// Scope is project-wide: one history walk serves every file.
func (s *Stage) Scope() analysis.Scope { return analysis.ScopeProject }

type fileStats struct {
	commits   int
	authors   map[string]bool
	additions int
	deletions int
}

// Run counts non-merge commits per file inside the window.
func (s *Stage) Run(ctx context.Context, in *analysis.Input) (*analysis.Output, error) {
	repo, prefix, err := openRepo(in.Root)
	if err != nil {
		return nil, err
	}

	since := windowStart(in)
	iter, err := repo.Log(&gogit.LogOptions{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("read git log: %w", err)
	}
	defer iter.Close()

	wanted := make(map[string]bool, len(in.Files))
	for _, f := range in.Files {
		wanted[f.Path] = true
	}

	stats := make(map[string]*fileStats)
	walked := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(c.ParentHashes) > 1 {
			return nil
		}
		walked++
		changes, err := c.StatsContext(ctx)
		if err != nil {
			return fmt.Errorf("diff commit %s: %w", c.Hash, err)
		}
		for _, fs := range changes {
			rel, ok := projectPath(prefix, fs.Name)
			if !ok || !wanted[rel] {
				continue
			}
			st := stats[rel]
			if st == nil {
				st = &fileStats{authors: make(map[string]bool)}
				stats[rel] = st
			}
			st.commits++
			st.authors[strings.ToLower(c.Author.Email)] = true
			st.additions += fs.Addition
			st.deletions += fs.Deletion
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	in.Logger.Debug("Walked git history", "commits", walked, "since", since.Format(time.DateOnly), "files", len(stats))
	return &analysis.Output{Churn: buildMetrics(in.Files, stats)}, nil
}

// InputKey ties memoization to the current HEAD and the window start.
func (s *Stage) InputKey(ctx context.Context, in *analysis.Input) string {
	day := windowStart(in).Format(time.DateOnly)
	repo, _, err := openRepo(in.Root)
	if err != nil {
		return "nogit|" + day
	}
	head, err := repo.Head()
	if err != nil {
		return "nohead|" + day
	}
	return head.Hash().String() + "|" + day
}

func windowStart(in *analysis.Input) time.Time {
	days := DefaultDays
	if in.Config != nil && in.Config.Churn.Days > 0 {
		days = in.Config.Churn.Days
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.AddDate(0, 0, -days)
}

// openRepo finds the repository containing root and returns the root's
// slash-separated path relative to the work tree ("" when they coincide).
func openRepo(root string) (*gogit.Repository, string, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoHistory, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoHistory, err)
	}

	top, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, "", err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	rel, err := filepath.Rel(top, abs)
	if err != nil {
		return nil, "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}
	return repo, rel, nil
}

func projectPath(prefix, name string) (string, bool) {
	if prefix == "" {
		return name, true
	}
	if !strings.HasPrefix(name, prefix+"/") {
		return "", false
	}
	return strings.TrimPrefix(name, prefix+"/"), true
}

// buildMetrics emits one entry per input file, untouched files included.
// The churn score mixes commit frequency and change volume relative to the
// busiest file.
func buildMetrics(files []*analysis.SourceFile, stats map[string]*fileStats) []analysis.ChurnMetrics {
	maxCommits, maxChanges := 0, 0
	for _, st := range stats {
		maxCommits = max(maxCommits, st.commits)
		maxChanges = max(maxChanges, st.additions+st.deletions)
	}

	out := make([]analysis.ChurnMetrics, 0, len(files))
	for _, f := range files {
		m := analysis.ChurnMetrics{Path: f.Path}
		if st, ok := stats[f.Path]; ok {
			m.CommitCount = st.commits
			m.Authors = len(st.authors)
			m.Additions = st.additions
			m.Deletions = st.deletions
			m.ChurnScore = score(st.commits, st.additions+st.deletions, maxCommits, maxChanges)
		}
		out = append(out, m)
	}
	return out
}

func score(commits, changes, maxCommits, maxChanges int) float64 {
	var commitFactor, changeFactor float64
	if maxCommits > 0 {
		commitFactor = float64(commits) / float64(maxCommits)
	}
	if maxChanges > 0 {
		changeFactor = float64(changes) / float64(maxChanges)
	}
	return min(commitFactor*0.6+changeFactor*0.4, 1)
}
