package testutil

import (
	"path/filepath"
	"sort"
	"testing"
	"time"

	"codescope/internal/analysis"
	"codescope/internal/config"
	"codescope/internal/project"
	"codescope/internal/slogutil"
)

// FixedNow is the clock used by stub inputs.
var FixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// StubInput writes files to a temp tree and returns a stage input whose
// ASTs come from ParseStub. Files are sorted by path.
func StubInput(t testing.TB, files map[string]string) *analysis.Input {
	t.Helper()
	root := WriteTree(t, files)

	in := &analysis.Input{
		Root:   root,
		Config: config.DefaultConfig(),
		Logger: slogutil.NewDiscardLogger(),
		Now:    FixedNow,
	}
	for rel, content := range files {
		lang := project.LanguageFromPath(rel)
		file, err := ParseStub(rel, []byte(content), lang)
		if err != nil {
			t.Fatalf("ParseStub(%s): %v", rel, err)
		}
		in.Files = append(in.Files, &analysis.SourceFile{
			Path:     rel,
			AbsPath:  filepath.Join(root, filepath.FromSlash(rel)),
			Language: lang,
			Size:     int64(len(content)),
			ModTime:  FixedNow,
			AST:      file,
		})
	}
	sort.Slice(in.Files, func(i, j int) bool { return in.Files[i].Path < in.Files[j].Path })
	return in
}
