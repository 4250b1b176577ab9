package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// CurrentVersion is the config schema version this build understands.
const CurrentVersion = 1

// DirName is the per-project state directory.
const DirName = ".codescope"

// Config represents the complete codescope configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Cache      CacheConfig      `json:"cache" mapstructure:"cache"`
	Detection  DetectionConfig  `json:"detection" mapstructure:"detection"`
	Pipeline   PipelineConfig   `json:"pipeline" mapstructure:"pipeline"`
	Churn      ChurnConfig      `json:"churn" mapstructure:"churn"`
	Debt       DebtConfig       `json:"debt" mapstructure:"debt"`
	DeadCode   DeadCodeConfig   `json:"deadCode" mapstructure:"deadCode"`
	Duplicates DuplicatesConfig `json:"duplicates" mapstructure:"duplicates"`
	Graph      GraphConfig      `json:"graph" mapstructure:"graph"`
	Risk       RiskConfig       `json:"risk" mapstructure:"risk"`
	Output     OutputConfig     `json:"output" mapstructure:"output"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// CacheConfig controls both cache tiers
type CacheConfig struct {
	// Dir holds the sqlite database; empty means <root>/.codescope
	Dir                    string `json:"dir" mapstructure:"dir"`
	Disabled               bool   `json:"disabled" mapstructure:"disabled"`
	SessionEntries         int    `json:"sessionEntries" mapstructure:"sessionEntries"`
	TTLSeconds             int    `json:"ttlSeconds" mapstructure:"ttlSeconds"`
	MaxBytes               int64  `json:"maxBytes" mapstructure:"maxBytes"`
	Compression            bool   `json:"compression" mapstructure:"compression"`
	CompressThresholdBytes int    `json:"compressThresholdBytes" mapstructure:"compressThresholdBytes"`
	// FingerprintMode is "stat" (path+mtime+size) or "content"
	FingerprintMode string `json:"fingerprintMode" mapstructure:"fingerprintMode"`
}

// DetectionConfig controls file discovery and language detection
type DetectionConfig struct {
	MinConfidence float64  `json:"minConfidence" mapstructure:"minConfidence"`
	MaxFileBytes  int64    `json:"maxFileBytes" mapstructure:"maxFileBytes"`
	Ignore        []string `json:"ignore" mapstructure:"ignore"`
}

// PipelineConfig controls the stage runner
type PipelineConfig struct {
	// Workers of 0 means runtime.NumCPU()
	Workers        int                      `json:"workers" mapstructure:"workers"`
	PartitionSize  int                      `json:"partitionSize" mapstructure:"partitionSize"`
	ParseTimeoutMs int                      `json:"parseTimeoutMs" mapstructure:"parseTimeoutMs"`
	Stages         map[string]StageOverride `json:"stages" mapstructure:"stages"`
}

// StageOverride replaces a stage's built-in policy. Zero fields keep the default.
type StageOverride struct {
	Required  *bool `json:"required,omitempty" mapstructure:"required"`
	TimeoutMs int   `json:"timeoutMs,omitempty" mapstructure:"timeoutMs"`
}

// ChurnConfig controls history analysis
type ChurnConfig struct {
	Days int `json:"days" mapstructure:"days"`
}

// DebtConfig controls self-admitted technical debt detection
type DebtConfig struct {
	EscalateComplexity int `json:"escalateComplexity" mapstructure:"escalateComplexity"`
}

// DeadCodeConfig controls reachability analysis
type DeadCodeConfig struct {
	// IncludeExported analyzes exported symbols instead of treating them as roots
	IncludeExported bool `json:"includeExported" mapstructure:"includeExported"`
	// Exclude holds glob patterns matched against paths and symbol names
	Exclude []string `json:"exclude" mapstructure:"exclude"`
}

// DuplicatesConfig controls clone detection
type DuplicatesConfig struct {
	MinTokens   int     `json:"minTokens" mapstructure:"minTokens"`
	Threshold   float64 `json:"threshold" mapstructure:"threshold"`
	ShingleSize int     `json:"shingleSize" mapstructure:"shingleSize"`
	NumHashes   int     `json:"numHashes" mapstructure:"numHashes"`
	Bands       int     `json:"bands" mapstructure:"bands"`
}

// GraphConfig controls dependency graph construction and centrality
type GraphConfig struct {
	// Granularity is "file", "module" or "function"
	Granularity   string  `json:"granularity" mapstructure:"granularity"`
	Damping       float64 `json:"damping" mapstructure:"damping"`
	MaxIterations int     `json:"maxIterations" mapstructure:"maxIterations"`
	Tolerance     float64 `json:"tolerance" mapstructure:"tolerance"`
	TopKPaths     int     `json:"topKPaths" mapstructure:"topKPaths"`
	TimeoutMs     int     `json:"timeoutMs" mapstructure:"timeoutMs"`
	ScipIndex     string  `json:"scipIndex" mapstructure:"scipIndex"`
}

// RiskConfig controls the quality gate
type RiskConfig struct {
	// FailThreshold of 0 disables the gate
	FailThreshold float64 `json:"failThreshold" mapstructure:"failThreshold"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Format   string `json:"format" mapstructure:"format"`
	MaxBytes int    `json:"maxBytes" mapstructure:"maxBytes"`
}

// ServerConfig controls the HTTP collaborator
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"` // "human" or "json"
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Cache: CacheConfig{
			SessionEntries:         100,
			TTLSeconds:             300,
			MaxBytes:               100 << 20,
			Compression:            true,
			CompressThresholdBytes: 4 << 10,
			FingerprintMode:        "stat",
		},
		Detection: DetectionConfig{
			MinConfidence: 0.05,
			MaxFileBytes:  1 << 20,
		},
		Pipeline: PipelineConfig{
			PartitionSize:  64,
			ParseTimeoutMs: 10000,
			Stages:         map[string]StageOverride{},
		},
		Churn: ChurnConfig{
			Days: 90,
		},
		Debt: DebtConfig{
			EscalateComplexity: 20,
		},
		Duplicates: DuplicatesConfig{
			MinTokens:   50,
			Threshold:   0.70,
			ShingleSize: 5,
			NumHashes:   200,
			Bands:       20,
		},
		Graph: GraphConfig{
			Granularity:   "file",
			Damping:       0.85,
			MaxIterations: 100,
			Tolerance:     1e-9,
			TopKPaths:     5,
			TimeoutMs:     30000,
			ScipIndex:     ".scip/index.scip",
		},
		Output: OutputConfig{
			Format: "markdown",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// envKeys are the scalar settings that CODESCOPE_* variables may override.
var envKeys = []string{
	"cache.dir", "cache.disabled", "cache.ttlSeconds", "cache.maxBytes", "cache.fingerprintMode",
	"pipeline.workers", "churn.days", "graph.granularity", "output.format", "output.maxBytes",
	"server.addr", "logging.format", "logging.level",
}

// LoadConfig loads configuration from <root>/.codescope/config.{json,yaml,toml}
// and CODESCOPE_* environment variables, on top of DefaultConfig.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(root, DirName))
	v.SetEnvPrefix("CODESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{Field: "file", Message: err.Error()}
		}
	}

	// Unmarshal over the defaults so absent keys keep their default value
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Pipeline.Stages == nil {
		cfg.Pipeline.Stages = map[string]StageOverride{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to <root>/.codescope/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// CacheDir resolves the directory holding the cache database.
func (c *Config) CacheDir(root string) string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(root, DirName)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	switch c.Cache.FingerprintMode {
	case "stat", "content":
	default:
		return &ConfigError{Field: "cache.fingerprintMode", Message: "must be stat or content"}
	}
	if c.Cache.SessionEntries <= 0 {
		return &ConfigError{Field: "cache.sessionEntries", Message: "must be positive"}
	}
	switch c.Graph.Granularity {
	case "file", "module", "function":
	default:
		return &ConfigError{Field: "graph.granularity", Message: "must be file, module or function"}
	}
	if c.Graph.Damping <= 0 || c.Graph.Damping >= 1 {
		return &ConfigError{Field: "graph.damping", Message: "must be in (0,1)"}
	}
	if c.Graph.MaxIterations <= 0 {
		return &ConfigError{Field: "graph.maxIterations", Message: "must be positive"}
	}
	if c.Duplicates.Threshold <= 0 || c.Duplicates.Threshold > 1 {
		return &ConfigError{Field: "duplicates.threshold", Message: "must be in (0,1]"}
	}
	if c.Duplicates.Bands <= 0 || c.Duplicates.NumHashes%c.Duplicates.Bands != 0 {
		return &ConfigError{Field: "duplicates.bands", Message: "must divide numHashes"}
	}
	if c.Output.MaxBytes < 0 {
		return &ConfigError{Field: "output.maxBytes", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
