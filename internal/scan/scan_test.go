package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescope/internal/project"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestWalk_HonoursGitignoreAndSkipDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":          "*.gen.go\nsecret/\n",
		"main.go":             "package main",
		"api/api.gen.go":      "package api",
		"api/api.go":          "package api",
		"secret/key.go":       "package secret",
		"node_modules/x/a.js": "x",
		"web/.gitignore":      "dist-local/\n",
		"web/dist-local/a.js": "x",
		"web/app.ts":          "x",
		"README.md":           "# r",
	})

	files, err := Walk(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{".gitignore", "README.md", "api/api.go", "main.go", "web/.gitignore", "web/app.ts"}, Paths(files))
	assert.Equal(t, project.LangTypeScript, files[5].Language)
	assert.Equal(t, []string{"api/api.go", "main.go", "web/app.ts"}, Paths(Sources(files)))
}

func TestWalk_ExtraIgnoreAndSizeCap(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go":       "package a",
		"big.go":     string(make([]byte, 2048)),
		"gen/b.go":   "package gen",
		"keep/c.py":  "x = 1",
		"keep/d.pyc": "x",
	})

	files, err := Walk(context.Background(), root, Options{MaxFileBytes: 1024, Ignore: []string{"gen/", "*.pyc"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "keep/c.py"}, Paths(files))
}

func TestDirs_FollowsWalkRules(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":          "secret/\n",
		"main.go":             "package main",
		"api/v1/api.go":       "package v1",
		"secret/key.go":       "package secret",
		"node_modules/x/a.js": "x",
		".codescope/db":       "x",
	})

	dirs, err := Dirs(context.Background(), root, Options{})
	require.NoError(t, err)

	rel := make([]string, len(dirs))
	for i, d := range dirs {
		r, err := filepath.Rel(root, d)
		require.NoError(t, err)
		rel[i] = filepath.ToSlash(r)
	}
	assert.Equal(t, []string{".", "api", "api/v1"}, rel)
	assert.True(t, SkippedDir(".codescope"))
	assert.False(t, SkippedDir("api"))
}

func TestWalk_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Walk(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStat(t *testing.T) {
	root := writeTree(t, map[string]string{"pkg/x.rs": "fn main() {}"})
	f, err := Stat(root, "pkg/x.rs")
	require.NoError(t, err)
	assert.Equal(t, int64(12), f.Size)
	assert.Equal(t, project.LangRust, f.Language)

	_, err = Stat(root, "missing.rs")
	assert.Error(t, err)
}

func TestModule(t *testing.T) {
	assert.Equal(t, "/", Module("main.go"))
	assert.Equal(t, "internal/a", Module("internal/a/b.go"))
}
