package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete preprocessor configuration.
// Values are resolved in order: built-in defaults, YAML config file,
// environment variables (RETLAB_* wins over the file).
type Config struct {
	Dataset  string         `yaml:"dataset" envconfig:"DATASET" default:"Online Retail II (UCI)"`
	Input    string         `yaml:"input" envconfig:"INPUT" default:"data/raw/online_retail_ii.csv"`
	OutDir   string         `yaml:"out_dir" envconfig:"OUT_DIR" default:"data/processed"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/preprocessor.log"`
}

// PipelineConfig contains tuning knobs for the variant computation.
type PipelineConfig struct {
	// MonthOffsets and WeekOffsets are the default horizon caps applied
	// per granularity when no explicit override is given.
	MonthOffsets int `yaml:"month_offsets" envconfig:"MONTH_OFFSETS" default:"12" validate:"gte=1"`
	WeekOffsets  int `yaml:"week_offsets" envconfig:"WEEK_OFFSETS" default:"16" validate:"gte=1"`

	// MaxOffsets overrides the per-granularity defaults for every variant
	// when > 0. Usually set from the -max-offsets CLI flag.
	MaxOffsets int `yaml:"max_offsets" envconfig:"MAX_OFFSETS" validate:"gte=0"`

	// MinParseRatio is the parsed/seen row ratio below which the run logs
	// a data-quality warning. The run still proceeds; only zero usable
	// rows or zero aggregate revenue abort it.
	MinParseRatio float64 `yaml:"min_parse_ratio" envconfig:"MIN_PARSE_RATIO" default:"0.99" validate:"gte=0,lte=1"`
}

var validate = validator.New()

// Load loads configuration from an optional YAML file and environment
// variables. An empty configFile skips the file overlay.
func Load(configFile string) (*Config, error) {
	var cfg Config

	// Fill defaults first so a sparse YAML file only overrides what it sets.
	if err := envconfig.Process("RETLAB", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
		// Explicit env vars win over the file. Running envconfig a second
		// time would also re-apply every default tag over the file's
		// values, so only variables actually present in the environment
		// are re-applied.
		if err := applyEnvOverrides(&cfg); err != nil {
			return nil, fmt.Errorf("load config from env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides re-applies RETLAB_* environment variables that are
// set, field by field, without touching anything else.
func applyEnvOverrides(cfg *Config) error {
	envString("DATASET", &cfg.Dataset)
	envString("INPUT", &cfg.Input)
	envString("OUT_DIR", &cfg.OutDir)
	envString("LOGGING_LEVEL", &cfg.Logging.Level)
	envString("LOGGING_OUTPUT", &cfg.Logging.Output)
	envString("LOGGING_FILE_PATH", &cfg.Logging.FilePath)
	if err := envInt("PIPELINE_MONTH_OFFSETS", &cfg.Pipeline.MonthOffsets); err != nil {
		return err
	}
	if err := envInt("PIPELINE_WEEK_OFFSETS", &cfg.Pipeline.WeekOffsets); err != nil {
		return err
	}
	if err := envInt("PIPELINE_MAX_OFFSETS", &cfg.Pipeline.MaxOffsets); err != nil {
		return err
	}
	return envFloat("PIPELINE_MIN_PARSE_RATIO", &cfg.Pipeline.MinParseRatio)
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv("RETLAB_" + name); ok {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v, ok := os.LookupEnv("RETLAB_" + name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("RETLAB_%s: %w", name, err)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v, ok := os.LookupEnv("RETLAB_" + name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("RETLAB_%s: %w", name, err)
	}
	*dst = f
	return nil
}

// loadFromFile overlays configuration from a YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// findConfigFile returns the first config file found in common locations,
// or "" when none exists and only defaults plus env vars apply.
func findConfigFile() string {
	locations := []string{
		"retlab.yaml",
		"configs/retlab.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input path must not be empty")
	}
	if c.OutDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	return validate.Struct(c)
}

// DefaultMaxOffsets returns the horizon cap for the given granularity name,
// honoring the global override when set.
func (c *Config) DefaultMaxOffsets(granularity string) int {
	if c.Pipeline.MaxOffsets > 0 {
		return c.Pipeline.MaxOffsets
	}
	if granularity == "week" {
		return c.Pipeline.WeekOffsets
	}
	return c.Pipeline.MonthOffsets
}

// ResolveInput returns the absolute input path.
func (c *Config) ResolveInput() string {
	abs, err := filepath.Abs(c.Input)
	if err != nil {
		return c.Input
	}
	return abs
}

// ResolveOutDir returns the absolute output directory path.
func (c *Config) ResolveOutDir() string {
	abs, err := filepath.Abs(c.OutDir)
	if err != nil {
		return c.OutDir
	}
	return abs
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Dataset: "Online Retail II (UCI)",
		Input:   "data/raw/online_retail_ii.csv",
		OutDir:  "data/processed",
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/preprocessor.log",
		},
		Pipeline: PipelineConfig{
			MonthOffsets:  12,
			WeekOffsets:   16,
			MinParseRatio: 0.99,
		},
	}
}
