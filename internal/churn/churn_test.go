package churn

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescope/internal/analysis"
	"codescope/internal/config"
	"codescope/internal/slogutil"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixtureRepo struct {
	t    *testing.T
	dir  string
	wt   *gogit.Worktree
	repo *gogit.Repository
}

func initRepo(t *testing.T) *fixtureRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &fixtureRepo{t: t, dir: dir, wt: wt, repo: repo}
}

func (r *fixtureRepo) commit(rel, content, email string, when time.Time) {
	r.t.Helper()
	abs := filepath.Join(r.dir, filepath.FromSlash(rel))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(r.t, os.WriteFile(abs, []byte(content), 0o644))
	_, err := r.wt.Add(rel)
	require.NoError(r.t, err)
	_, err = r.wt.Commit("change "+rel, &gogit.CommitOptions{
		Author: &object.Signature{Name: email, Email: email, When: when},
	})
	require.NoError(r.t, err)
}

func input(root string, now time.Time, paths ...string) *analysis.Input {
	cfg := config.DefaultConfig()
	in := &analysis.Input{
		Root:   root,
		Config: cfg,
		Logger: slogutil.NewDiscardLogger(),
		Now:    now,
	}
	for _, p := range paths {
		in.Files = append(in.Files, &analysis.SourceFile{Path: p, ModTime: now})
	}
	return in
}

func byPath(out *analysis.Output) map[string]analysis.ChurnMetrics {
	m := make(map[string]analysis.ChurnMetrics)
	for _, c := range out.Churn {
		m[c.Path] = c
	}
	return m
}

func TestRun_CountsCommitsPerFile(t *testing.T) {
	r := initRepo(t)
	content := ""
	for i := 0; i < 8; i++ {
		content += "line\n"
		email := "dev@example.com"
		if i%2 == 1 {
			email = "other@example.com"
		}
		r.commit("a.go", content, email, base.Add(time.Duration(i)*time.Hour))
	}
	r.commit("b.go", "x\n", "dev@example.com", base.Add(10*time.Hour))

	out, err := NewStage().Run(context.Background(), input(r.dir, base.AddDate(0, 0, 1), "a.go", "b.go", "c.go"))
	require.NoError(t, err)

	got := byPath(out)
	require.Len(t, got, 3)
	assert.Equal(t, 8, got["a.go"].CommitCount)
	assert.Equal(t, 2, got["a.go"].Authors)
	assert.Equal(t, 8, got["a.go"].Additions)
	assert.InDelta(t, 1.0, got["a.go"].ChurnScore, 1e-9)

	assert.Equal(t, 1, got["b.go"].CommitCount)
	assert.Less(t, got["b.go"].ChurnScore, got["a.go"].ChurnScore)

	assert.Zero(t, got["c.go"].CommitCount, "untracked files report zero churn")
	assert.Zero(t, got["c.go"].ChurnScore)
}

func TestRun_WindowExcludesOldCommits(t *testing.T) {
	r := initRepo(t)
	r.commit("a.go", "1\n", "dev@example.com", base.AddDate(0, 0, -60))
	r.commit("a.go", "1\n2\n", "dev@example.com", base.AddDate(0, 0, -5))

	in := input(r.dir, base, "a.go")
	in.Config.Churn.Days = 30
	out, err := NewStage().Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, byPath(out)["a.go"].CommitCount)

	in.Config.Churn.Days = 90
	out, err = NewStage().Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, byPath(out)["a.go"].CommitCount)
}

func TestRun_ProjectInSubdirectory(t *testing.T) {
	r := initRepo(t)
	r.commit("svc/main.go", "package main\n", "dev@example.com", base)
	r.commit("other/x.go", "package x\n", "dev@example.com", base)

	out, err := NewStage().Run(context.Background(), input(filepath.Join(r.dir, "svc"), base.Add(time.Hour), "main.go"))
	require.NoError(t, err)
	got := byPath(out)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got["main.go"].CommitCount)
}

func TestRun_NoRepository(t *testing.T) {
	_, err := NewStage().Run(context.Background(), input(t.TempDir(), base, "a.go"))
	require.ErrorIs(t, err, ErrNoHistory)
}

func TestRun_Cancelled(t *testing.T) {
	r := initRepo(t)
	r.commit("a.go", "1\n", "dev@example.com", base)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStage().Run(ctx, input(r.dir, base.Add(time.Hour), "a.go"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestFallback_UsesModificationTimes(t *testing.T) {
	in := input(t.TempDir(), base, "fresh.go", "stale.go")
	in.Files[1].ModTime = base.AddDate(-1, 0, 0)

	out, err := NewStage().Fallback(context.Background(), in, ErrNoHistory)
	require.NoError(t, err)

	got := byPath(out)
	assert.Equal(t, 1, got["fresh.go"].CommitCount)
	assert.InDelta(t, 1.0, got["fresh.go"].ChurnScore, 1e-9)
	assert.Zero(t, got["stale.go"].CommitCount)
	require.Len(t, out.Notes, 1)
	assert.Contains(t, out.Notes[0], "modification times")
}

func TestInputKey_FollowsHead(t *testing.T) {
	r := initRepo(t)
	r.commit("a.go", "1\n", "dev@example.com", base)
	in := input(r.dir, base.Add(time.Hour), "a.go")

	s := NewStage()
	first := s.InputKey(context.Background(), in)
	assert.Equal(t, first, s.InputKey(context.Background(), in))

	r.commit("a.go", "1\n2\n", "dev@example.com", base.Add(2*time.Hour))
	assert.NotEqual(t, first, s.InputKey(context.Background(), in))

	assert.Contains(t, s.InputKey(context.Background(), input(t.TempDir(), base, "a.go")), "nogit")
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 1.0, score(10, 100, 10, 100), 1e-9)
	assert.InDelta(t, 0.3+0.04, score(5, 10, 10, 100), 1e-9)
	assert.Zero(t, score(0, 0, 0, 0))
}
