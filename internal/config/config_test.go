package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Cache.SessionEntries != 100 {
		t.Errorf("SessionEntries = %d, want 100", cfg.Cache.SessionEntries)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("TTLSeconds = %d, want 300", cfg.Cache.TTLSeconds)
	}
	if cfg.Graph.Damping != 0.85 {
		t.Errorf("Damping = %v, want 0.85", cfg.Graph.Damping)
	}
	if cfg.Graph.MaxIterations != 100 {
		t.Errorf("MaxIterations = %d, want 100", cfg.Graph.MaxIterations)
	}
	if cfg.Duplicates.MinTokens != 50 || cfg.Duplicates.NumHashes != 200 {
		t.Errorf("Duplicates = %+v", cfg.Duplicates)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("Output.Format = %q, want markdown", cfg.Output.Format)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{
  "version": 1,
  "churn": {"days": 30},
  "pipeline": {"stages": {"duplicates": {"required": true, "timeoutMs": 500}}}
}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Churn.Days != 30 {
		t.Errorf("Churn.Days = %d, want 30", cfg.Churn.Days)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("Cache.TTLSeconds = %d, want default 300", cfg.Cache.TTLSeconds)
	}
	override, ok := cfg.Pipeline.Stages["duplicates"]
	if !ok {
		t.Fatal("expected duplicates override")
	}
	if override.Required == nil || !*override.Required || override.TimeoutMs != 500 {
		t.Errorf("override = %+v", override)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CODESCOPE_CHURN_DAYS", "7")
	t.Setenv("CODESCOPE_OUTPUT_FORMAT", "json")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Churn.Days != 7 {
		t.Errorf("Churn.Days = %d, want 7", cfg.Churn.Days)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %q, want json", cfg.Output.Format)
	}
}

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Graph.Granularity = "module"
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Graph.Granularity != "module" {
		t.Errorf("Granularity = %q, want module", loaded.Graph.Granularity)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 9 }, "version"},
		{"fingerprint", func(c *Config) { c.Cache.FingerprintMode = "md5" }, "cache.fingerprintMode"},
		{"granularity", func(c *Config) { c.Graph.Granularity = "package" }, "graph.granularity"},
		{"damping", func(c *Config) { c.Graph.Damping = 1 }, "graph.damping"},
		{"bands", func(c *Config) { c.Duplicates.Bands = 7 }, "duplicates.bands"},
		{"threshold", func(c *Config) { c.Duplicates.Threshold = 0 }, "duplicates.threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			cerr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestCacheDir(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.CacheDir("/repo"); got != filepath.Join("/repo", DirName) {
		t.Errorf("CacheDir = %q", got)
	}
	cfg.Cache.Dir = "/tmp/cs"
	if got := cfg.CacheDir("/repo"); got != "/tmp/cs" {
		t.Errorf("CacheDir = %q, want /tmp/cs", got)
	}
}
