package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the project config file looked up in the working directory.
const FileName = "spendsight.yaml"

// Config represents the top-level spendsight.yaml configuration.
type Config struct {
	Paths          PathsConfig          `yaml:"paths"`
	Classification ClassificationConfig `yaml:"classification"`
	Query          QueryConfig          `yaml:"query"`
	Log            LogConfig            `yaml:"log"`
}

// PathsConfig locates inputs and artifacts. Relative paths resolve against
// the directory holding spendsight.yaml.
type PathsConfig struct {
	RawDir          string `yaml:"raw_dir"`
	StandardizedDir string `yaml:"standardized_dir"`
	MergedFile      string `yaml:"merged_file"`
	ClassifiedDir   string `yaml:"classified_dir"`
	TaxonomyFile    string `yaml:"taxonomy_file"`
	OverridesFile   string `yaml:"overrides_file"`
	ExamplesFile    string `yaml:"sql_examples_file"`
	LogDir          string `yaml:"log_dir"`
}

// ClassificationConfig controls merchant batching and LLM call pacing.
type ClassificationConfig struct {
	Model             string        `yaml:"model"`
	BatchSize         int           `yaml:"batch_size"`
	MaxRetries        int           `yaml:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// QueryConfig controls natural-language querying.
type QueryConfig struct {
	Model   string `yaml:"model"`
	Table   string `yaml:"table"`
	MaxRows int    `yaml:"max_rows"`
}

// LogConfig sets the log level (debug, info, warn, error).
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a spendsight.yaml file from disk. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.resolve(filepath.Dir(path))
		return cfg, nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			RawDir:          "data/raw",
			StandardizedDir: "data/standardized",
			MergedFile:      "data/transactions_merged.csv",
			ClassifiedDir:   "data",
			TaxonomyFile:    "categories.yaml",
			OverridesFile:   "category_overrides.csv",
			ExamplesFile:    "sql_examples.yaml",
			LogDir:          "logs",
		},
		Classification: ClassificationConfig{
			Model:             "gemini-2.5-flash",
			BatchSize:         50,
			MaxRetries:        4,
			InitialBackoff:    time.Second,
			MaxBackoff:        30 * time.Second,
			RequestsPerMinute: 30,
		},
		Query: QueryConfig{
			Model:   "gemini-2.5-flash",
			Table:   "transactions",
			MaxRows: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Classification.BatchSize < 1 {
		return fmt.Errorf("classification.batch_size must be at least 1, got %d", c.Classification.BatchSize)
	}
	if c.Classification.MaxRetries < 0 {
		return fmt.Errorf("classification.max_retries must not be negative, got %d", c.Classification.MaxRetries)
	}
	if c.Classification.RequestsPerMinute < 0 {
		return fmt.Errorf("classification.requests_per_minute must not be negative, got %d", c.Classification.RequestsPerMinute)
	}
	if c.Query.MaxRows < 1 {
		return fmt.Errorf("query.max_rows must be at least 1, got %d", c.Query.MaxRows)
	}
	if c.Query.Table == "" {
		return errors.New("query.table must be set")
	}
	return nil
}

func (c *Config) resolve(base string) {
	for _, p := range []*string{
		&c.Paths.RawDir,
		&c.Paths.StandardizedDir,
		&c.Paths.MergedFile,
		&c.Paths.ClassifiedDir,
		&c.Paths.TaxonomyFile,
		&c.Paths.OverridesFile,
		&c.Paths.ExamplesFile,
		&c.Paths.LogDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Environment variables read by the CLI.
const (
	EnvAPIKey       = "GOOGLE_API_KEY"
	EnvAPIKeyLegacy = "GEMINI_API_KEY"
	EnvDataPath     = "FINANCE_DB_PATH"
)

// LoadEnv loads .env from dir and then its parent. Variables already set in
// the process environment win, and missing files are ignored.
func LoadEnv(dir string) error {
	for _, p := range []string{filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ErrNoAPIKey is returned when no model credential is configured.
var ErrNoAPIKey = fmt.Errorf("no API key: set %s (or %s) in the environment or .env", EnvAPIKey, EnvAPIKeyLegacy)

// APIKey returns the model credential from the environment.
func APIKey() (string, error) {
	if k := os.Getenv(EnvAPIKey); k != "" {
		return k, nil
	}
	if k := os.Getenv(EnvAPIKeyLegacy); k != "" {
		return k, nil
	}
	return "", ErrNoAPIKey
}
