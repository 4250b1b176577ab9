package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codescope/internal/config"
	"codescope/internal/engine"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/report"
	"codescope/internal/testutil"
)

var fixture = map[string]string{
	"main.go": "package main\nfunc main\ncall Run\nend\n",
	"run.go":  "package main\n// TODO: retry on failure\nfunc Run cc=12\ncall helper\nend\nfunc helper cc=3\nend\n",
	"dead.go": "package main\nfunc unused cc=2\nend\n",
}

func stubEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	return engine.NewWithParser(cfg, testutil.NewStubParser(), logger)
}

// invoke runs a command line against the stub parser.
func invoke(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr, stubEngine)
	return code, stdout.String(), stderr.String()
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain", errors.New("boom"), exitFatal},
		{"quality gate", &exitError{code: exitQualityGate, err: errors.New("gate")}, exitQualityGate},
		{"invalid options", scopeerrors.New(scopeerrors.InvalidOptions, "bad", nil), exitInvalidOptions},
		{"wrapped invalid options", fmt.Errorf("run: %w", usageErrorf("bad flag")), exitInvalidOptions},
		{"config", fmt.Errorf("failed to load config: %w", &config.ConfigError{Field: "version", Message: "bad"}), exitInvalidOptions},
		{"detection", scopeerrors.New(scopeerrors.DetectionFailure, "nothing", nil), exitFatal},
		{"stage failure", scopeerrors.New(scopeerrors.StageFailure, "graph failed", nil), exitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQualityGate(t *testing.T) {
	tests := []struct {
		maxRisk   float64
		threshold float64
		want      int
	}{
		{0.9, 0, exitOK},
		{0.5, 0.8, exitOK},
		{0.8, 0.8, exitQualityGate},
		{0.95, 0.8, exitQualityGate},
	}

	for _, tt := range tests {
		err := qualityGate(report.Summary{MaxRisk: tt.maxRisk}, tt.threshold)
		if got := exitCode(err); got != tt.want {
			t.Errorf("qualityGate(%v, %v) exit = %d, want %d", tt.maxRisk, tt.threshold, got, tt.want)
		}
	}
}

func TestAnalyzeFlags_Options(t *testing.T) {
	f := &analyzeFlags{
		stages:      []string{"complexity,graph"},
		format:      "json",
		maxBytes:    4096,
		workers:     2,
		incremental: true,
	}
	opts, err := f.options()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Format != "json" || opts.MaxBytes != 4096 || opts.Workers != 2 || !opts.Incremental {
		t.Errorf("options not carried over: %+v", opts)
	}

	f.failOnRisk = 1.5
	if _, err := f.options(); exitCode(err) != exitInvalidOptions {
		t.Errorf("expected invalid options for --fail-on-risk 1.5, got %v", err)
	}
	f.failOnRisk = 0
	f.ttl = -1
	if _, err := f.options(); exitCode(err) != exitInvalidOptions {
		t.Errorf("expected invalid options for negative ttl, got %v", err)
	}
}

func TestAnalyze_WritesReport(t *testing.T) {
	root := testutil.WriteTree(t, fixture)

	code, stdout, stderr := invoke(t, "", "analyze", root, "--format", "json", "--exclude", "churn", "-q")
	if code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, stderr)
	}

	var rep report.Report
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if rep.Summary.Files != 3 {
		t.Errorf("Files = %d, want 3", rep.Summary.Files)
	}
	if rep.Summary.DebtItems != 1 {
		t.Errorf("DebtItems = %d, want 1", rep.Summary.DebtItems)
	}
	if stderr != "" {
		t.Errorf("expected no logs with -q, got %q", stderr)
	}
}

func TestAnalyze_OutputFileAndDefaultFormat(t *testing.T) {
	root := testutil.WriteTree(t, fixture)
	out := filepath.Join(t.TempDir(), "report.md")

	code, stdout, stderr := invoke(t, "", "analyze", root, "--exclude", "churn", "--output", out, "-q")
	if code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got %q", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# codescope report") {
		t.Errorf("expected a markdown report, got %q", firstLine(string(data)))
	}
}

func TestAnalyze_QualityGate(t *testing.T) {
	root := testutil.WriteTree(t, fixture)

	code, stdout, stderr := invoke(t, "", "analyze", root, "--exclude", "churn", "--fail-on-risk", "0.01", "-q")
	if code != exitQualityGate {
		t.Fatalf("exit = %d, want %d, stderr: %s", code, exitQualityGate, stderr)
	}
	if stdout == "" {
		t.Error("the report should be written before the gate fails")
	}
	if !strings.Contains(stderr, "quality gate failed") {
		t.Errorf("stderr should explain the failure, got %q", stderr)
	}
}

func TestAnalyze_InvalidOptions(t *testing.T) {
	root := testutil.WriteTree(t, fixture)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"analyze", root, "--format", "pdf"}},
		{"unknown stage", []string{"analyze", root, "--stages", "bogus"}},
		{"bad integer", []string{"analyze", root, "--workers", "many"}},
		{"unknown flag", []string{"analyze", root, "--frobnicate"}},
		{"gate out of range", []string{"analyze", root, "--fail-on-risk", "2"}},
		{"two paths", []string{"analyze", root, root}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := invoke(t, "", append(tt.args, "-q")...)
			if code != exitInvalidOptions {
				t.Errorf("exit = %d, want %d, stderr: %s", code, exitInvalidOptions, stderr)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	root := testutil.WriteTree(t, fixture)

	code, stdout, stderr := invoke(t, "", "detect", root, "--json", "-q")
	if code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, `"go"`) {
		t.Errorf("expected go in detection, got %s", stdout)
	}

	empty := testutil.WriteTree(t, map[string]string{"data.csv": "a,b\n"})
	code, _, stderr = invoke(t, "", "detect", empty, "-q")
	if code != exitFatal {
		t.Errorf("exit = %d, want %d", code, exitFatal)
	}
	if !strings.Contains(stderr, string(scopeerrors.DetectionFailure)) {
		t.Errorf("stderr should carry the error code, got %q", stderr)
	}
}

func TestDetect_MissingPath(t *testing.T) {
	code, _, stderr := invoke(t, "", "detect", filepath.Join(t.TempDir(), "missing"), "-q")
	if code != exitInvalidOptions {
		t.Errorf("exit = %d, want %d", code, exitInvalidOptions)
	}
	if !strings.Contains(stderr, string(scopeerrors.InvalidOptions)) {
		t.Errorf("stderr should carry the error code, got %q", stderr)
	}
}

func TestCache_StatsAndClear(t *testing.T) {
	root := testutil.WriteTree(t, fixture)

	if code, _, stderr := invoke(t, "", "analyze", root, "--exclude", "churn", "-q"); code != exitOK {
		t.Fatalf("analyze exit = %d, stderr: %s", code, stderr)
	}

	code, stdout, stderr := invoke(t, "", "cache", "stats", root, "--json", "-q")
	if code != exitOK {
		t.Fatalf("stats exit = %d, stderr: %s", code, stderr)
	}
	var stats engine.CacheStats
	if err := json.Unmarshal([]byte(stdout), &stats); err != nil {
		t.Fatalf("stats are not JSON: %v", err)
	}
	if stats.Snapshots != 1 {
		t.Errorf("Snapshots = %d, want 1", stats.Snapshots)
	}
	if !strings.HasPrefix(stats.Database, filepath.Join(root, config.DirName)) {
		t.Errorf("database should live under the project, got %s", stats.Database)
	}

	code, stdout, _ = invoke(t, "", "cache", "clear", root, "-q")
	if code != exitOK {
		t.Fatalf("clear exit = %d", code)
	}
	if !strings.HasPrefix(stdout, "Removed ") {
		t.Errorf("unexpected clear output %q", stdout)
	}

	_, stdout, _ = invoke(t, "", "cache", "stats", root, "-q")
	if !strings.Contains(stdout, "Snapshots: 0") {
		t.Errorf("expected an empty cache, got %q", stdout)
	}
}

func TestRPC_ServesStdin(t *testing.T) {
	root := testutil.WriteTree(t, fixture)

	stdin := `{"jsonrpc":"2.0","id":1,"method":"detect"}` + "\n"
	code, stdout, stderr := invoke(t, stdin, "rpc", root, "-q")
	if code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, stderr)
	}

	var msg map[string]json.RawMessage
	if err := json.Unmarshal([]byte(firstLine(stdout)), &msg); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if string(msg["id"]) != "1" {
		t.Errorf("id = %s, want 1", msg["id"])
	}
	if _, ok := msg["result"]; !ok {
		t.Errorf("expected a result, got %s", stdout)
	}
}

func TestWatch_RejectsDebounce(t *testing.T) {
	code, _, _ := invoke(t, "", "watch", t.TempDir(), "--debounce", "0", "-q")
	if code != exitInvalidOptions {
		t.Errorf("exit = %d, want %d", code, exitInvalidOptions)
	}
}

func TestVersion(t *testing.T) {
	code, stdout, _ := invoke(t, "", "version")
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if !strings.HasPrefix(stdout, "codescope version ") {
		t.Errorf("unexpected version output %q", stdout)
	}

	_, stdout, _ = invoke(t, "", "--version")
	if !strings.HasPrefix(stdout, "codescope version ") {
		t.Errorf("unexpected --version output %q", stdout)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
