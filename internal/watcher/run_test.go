package watcher

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"codescope/internal/config"
	"codescope/internal/engine"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/report"
	"codescope/internal/scan"
	"codescope/internal/slogutil"
	"codescope/internal/testutil"
)

// lineWriter forwards every written line to a channel.
type lineWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	lines chan string
}

func newLineWriter() *lineWriter {
	return &lineWriter{lines: make(chan string, 64)}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.lines <- strings.TrimSuffix(line, "\n")
	}
}

// waitLine returns the first line with prefix, skipping others.
func (w *lineWriter) waitLine(t *testing.T, prefix string) string {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case line := <-w.lines:
			if strings.HasPrefix(line, prefix) {
				return line
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a line starting with %q", prefix)
			return ""
		}
	}
}

func startRun(t *testing.T, a Analyzer, root string) (*lineWriter, context.CancelFunc, <-chan error) {
	t.Helper()
	out := newLineWriter()
	ctx, cancel := context.WithCancel(context.Background())
	wcfg := DefaultConfig()
	wcfg.DebounceMs = 50

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, a, root, engine.Options{Exclude: []string{"churn"}}, wcfg, scan.Options{}, out, slogutil.NewDiscardLogger())
	}()
	t.Cleanup(cancel)
	return out, cancel, done
}

func TestRun_ReanalyzesIncrementally(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"main.go": "package main\nfunc main\ncall work\nend\n",
		"work.go": "package main\nfunc work cc=3\nend\n",
	})
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = t.TempDir()
	eng, err := engine.NewWithParser(cfg, testutil.NewStubParser(), slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = eng.Close() }()

	out, cancel, done := startRun(t, eng, root)

	first := out.waitLine(t, "Full analysis: 2 files")
	if !strings.Contains(first, "max risk") {
		t.Errorf("summary should carry the risk figures: %q", first)
	}

	testutil.Touch(t, root, "work.go", "package main\nfunc work cc=9\nend\n")
	out.waitLine(t, "Incremental analysis: +0 ~1 -0")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(ctx context.Context, path string, opts engine.Options) (*report.Report, error) {
	if !opts.Incremental {
		panic("watch mode always analyzes incrementally")
	}
	return nil, scopeerrors.Newf(scopeerrors.DetectionFailure, "no supported language under %s", path)
}

func TestRun_ReportsFailuresAndKeepsWatching(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"notes.txt": "x\n"})
	out, _, _ := startRun(t, failingAnalyzer{}, root)

	out.waitLine(t, "Analysis failed (DETECTION_FAILURE)")
	testutil.Touch(t, root, "notes.txt", "y\n")
	out.waitLine(t, "Analysis failed (DETECTION_FAILURE)")
}

func TestSummary(t *testing.T) {
	rep := &report.Report{
		Summary: report.Summary{Files: 12, MaxRisk: 0.734, HighRisk: 2},
	}
	rep.Metadata.DurationMs = 41

	tests := []struct {
		name string
		inc  *report.IncrementalInfo
		want string
	}{
		{"no incremental info", nil, "Full analysis: 12 files, 0 parse failures | max risk 0.73, 2 high-risk files, 41 ms"},
		{"full rebuild", &report.IncrementalInfo{Full: true, Added: 12}, "Full analysis: 12 files, 0 parse failures | max risk 0.73, 2 high-risk files, 41 ms"},
		{"nothing changed", &report.IncrementalInfo{RiskMode: "reused", CentralityReused: true}, "No changes: 12 files, results reused | max risk 0.73, 2 high-risk files, 41 ms"},
		{
			"one modified",
			&report.IncrementalInfo{Modified: 1, Affected: 3, CentralityReused: true, RiskMode: "incremental"},
			"Incremental analysis: +0 ~1 -0, 3 affected of 12 files, centrality reused, risk incremental | max risk 0.73, 2 high-risk files, 41 ms",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep.Metadata.Incremental = tt.inc
			if got := Summary(rep); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}
