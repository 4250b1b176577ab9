package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// setupTestDir writes files (path -> content) under a temp dir and returns
// the root plus the relative path list.
func setupTestDir(t *testing.T, files map[string]string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var rels []string
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create file %s: %v", rel, err)
		}
		rels = append(rels, rel)
	}
	return dir, rels
}

func TestDetect_Primary(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		wantLang Language
	}{
		{
			name:     "Go project",
			files:    map[string]string{"go.mod": "module x\n", "main.go": "package main\n"},
			wantLang: LangGo,
		},
		{
			name: "TypeScript project",
			files: map[string]string{
				"package.json":  `{"name":"x"}`,
				"tsconfig.json": `{}`,
				"src/index.ts":  "export const a = 1\n",
			},
			wantLang: LangTypeScript,
		},
		{
			name:     "JavaScript project (no tsconfig)",
			files:    map[string]string{"package.json": `{"name":"x"}`, "src/index.js": "module.exports = {}\n"},
			wantLang: LangJavaScript,
		},
		{
			name: "Python project with pyproject.toml",
			files: map[string]string{
				"pyproject.toml": "[project]\nname = \"x\"\n",
				"src/main.py":    "import os\n",
			},
			wantLang: LangPython,
		},
		{
			name: "Rust workspace",
			files: map[string]string{
				"Cargo.toml":      "[workspace]\nmembers = [\"a\"]\n",
				"a/Cargo.toml":    "[package]\nname = \"a\"\n",
				"a/src/lib.rs":    "pub fn f() {}\n",
				"a/src/helper.rs": "fn g() {}\n",
			},
			wantLang: LangRust,
		},
		{
			name:     "Kotlin gradle",
			files:    map[string]string{"build.gradle.kts": "", "src/Main.kt": "fun main() {}\n"},
			wantLang: LangKotlin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, files := setupTestDir(t, tt.files)
			got := Detect(context.Background(), root, files, Options{})
			if got.Undetected {
				t.Fatalf("Detect() undetected: %s", got.Reason)
			}
			if got.Primary() != tt.wantLang {
				t.Errorf("Primary() = %v, want %v (scores %+v)", got.Primary(), tt.wantLang, got.Languages)
			}
		})
	}
}

func TestDetect_ConfidenceOrderedAndBounded(t *testing.T) {
	root, files := setupTestDir(t, map[string]string{
		"go.mod":            "module x\n",
		"cmd/main.go":       "package main\n",
		"internal/a/a.go":   "package a\n",
		"internal/a/b.go":   "package a\n",
		"scripts/build.py":  "import sys\n",
		"web/app.js":        "require('x')\n",
		"internal/a/a_test": "",
	})

	got := Detect(context.Background(), root, files, Options{})
	if len(got.Languages) < 2 {
		t.Fatalf("expected several languages, got %+v", got.Languages)
	}
	for i, s := range got.Languages {
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Errorf("confidence %v out of [0,1] for %s", s.Confidence, s.Language)
		}
		if i > 0 && s.Confidence > got.Languages[i-1].Confidence {
			t.Errorf("languages not sorted descending: %+v", got.Languages)
		}
	}
	if got.Primary() != LangGo {
		t.Errorf("Primary() = %v, want go", got.Primary())
	}
	if m := got.Languages[0].Manifests; len(m) != 1 || m[0] != "go.mod" {
		t.Errorf("Manifests = %v, want [go.mod]", m)
	}
}

func TestDetect_TieBrokenDeterministically(t *testing.T) {
	// Equal shares and equal file counts fall back to the language name.
	root, files := setupTestDir(t, map[string]string{
		"a/x.py": "",
		"b/y.rs": "",
		"b/z.rs": "",
		"c/w.py": "",
	})
	got := Detect(context.Background(), root, files, Options{HeuristicSample: 1})
	if len(got.Languages) != 2 {
		t.Fatalf("want 2 languages, got %+v", got.Languages)
	}
	if got.Languages[0].Confidence != got.Languages[1].Confidence {
		t.Fatalf("expected a tie, got %+v", got.Languages)
	}
	if got.Languages[0].Language != LangPython {
		t.Errorf("tie should resolve to the name order when counts match: %+v", got.Languages)
	}
}

func TestDetect_Shebang(t *testing.T) {
	root, files := setupTestDir(t, map[string]string{
		"bin/tool": "#!/usr/bin/env python3\nprint('hi')\n",
	})
	got := Detect(context.Background(), root, files, Options{})
	if got.Primary() != LangPython {
		t.Errorf("Primary() = %v, want python", got.Primary())
	}
}

func TestDetect_Undetected(t *testing.T) {
	root, files := setupTestDir(t, map[string]string{
		"README.md": "# hello\n",
		"LICENSE":   "MIT\n",
	})
	got := Detect(context.Background(), root, files, Options{})
	if !got.Undetected {
		t.Fatalf("expected undetected, got %+v", got.Languages)
	}
	if got.Primary() != LangUnknown {
		t.Errorf("Primary() = %v, want unknown", got.Primary())
	}
}

func TestDetect_TestPathsWeighLess(t *testing.T) {
	root, files := setupTestDir(t, map[string]string{
		"lib.rs":            "",
		"tests/test_a.py":   "",
		"tests/test_b.py":   "",
		"tests/more/c_test": "",
	})
	got := Detect(context.Background(), root, files, Options{HeuristicSample: 1})
	if got.Primary() != LangRust {
		t.Errorf("Primary() = %v, want rust (test-only python weighs less)", got.Primary())
	}
}

func TestLanguageFromPath(t *testing.T) {
	tests := map[string]Language{
		"a/b.go":      LangGo,
		"x.tsx":       LangTSX,
		"x.d.ts":      LangUnknown,
		"x.MJS":       LangJavaScript,
		"Main.kt":     LangKotlin,
		"README.md":   LangUnknown,
		"setup.py":    LangPython,
		"src/lib.rs":  LangRust,
		"A.java":      LangJava,
		"types.ts":    LangTypeScript,
		"noextension": LangUnknown,
	}
	for p, want := range tests {
		if got := LanguageFromPath(p); got != want {
			t.Errorf("LanguageFromPath(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestIsTestPath(t *testing.T) {
	tests := map[string]bool{
		"pkg/a_test.go":        true,
		"tests/test_x.py":      true,
		"src/app.spec.ts":      true,
		"src/FooTest.java":     true,
		"src/__tests__/a.js":   true,
		"src/main.go":          false,
		"internal/testutil.go": false,
	}
	for p, want := range tests {
		if got := IsTestPath(p); got != want {
			t.Errorf("IsTestPath(%q) = %v, want %v", p, got, want)
		}
	}
}
