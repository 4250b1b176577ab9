// Package testutil provides fixture projects and a deterministic parser for tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codescope/internal/scan"
)

// WriteTree creates the files (slash path -> content) under a fresh temp
// directory and returns its root.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	return root
}

// WriteFile writes one fixture file, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", rel, err)
	}
}

// Touch rewrites a fixture file and moves its mtime forward, so a stat
// fingerprint changes even on filesystems with coarse timestamps.
func Touch(t testing.TB, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	var next time.Time
	if info, err := os.Stat(p); err == nil {
		next = info.ModTime().Add(2 * time.Second)
	} else {
		next = time.Now()
	}
	WriteFile(t, root, rel, content)
	if err := os.Chtimes(p, next, next); err != nil {
		t.Fatalf("Failed to set mtime on %s: %v", rel, err)
	}
}

// Remove deletes a fixture file.
func Remove(t testing.TB, root, rel string) {
	t.Helper()
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
		t.Fatalf("Failed to remove %s: %v", rel, err)
	}
}

// ScanFiles discovers the fixture tree the same way the engine does.
func ScanFiles(t testing.TB, root string) []scan.File {
	t.Helper()
	files, err := scan.Walk(context.Background(), root, scan.Options{})
	if err != nil {
		t.Fatalf("Failed to scan %s: %v", root, err)
	}
	return files
}
