// Package config provides configuration loading and validation for the
// repolens CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidQueueCapacity = errors.New("queue capacity must be positive")
	ErrInvalidMaxMemory     = errors.New("max memory must be set")
	ErrInvalidBackoff       = errors.New("unknown backoff strategy")
	ErrInvalidEstimator     = errors.New("unknown complexity estimator")
	ErrInvalidTimeWindow    = errors.New("unknown time window")
	ErrInvalidFormat        = errors.New("unknown output format")
)

// Default configuration values.
const (
	defaultQueueCapacity   = 4096
	defaultMaxMemory       = "256M"
	defaultBackoffStrategy = "exponential"
	defaultBackoffInitial  = 10 * time.Millisecond
	defaultBackoffMax      = 2 * time.Second
	defaultRetryBudget     = 30 * time.Second
	defaultTimeWindow      = "all"
	defaultEstimator       = "size"
	defaultFormat          = "console"
	defaultMinBlockSize    = 5
	defaultSimilarity      = 0.8
	defaultDebtThreshold   = 50.0
)

// Config holds all configuration for repolens.
type Config struct {
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScannerConfig holds traversal settings.
type ScannerConfig struct {
	Repository      string `mapstructure:"repository"`
	MaxMemory       string `mapstructure:"max_memory"`
	PerformanceMode bool   `mapstructure:"performance_mode"`
	IncludeBinary   bool   `mapstructure:"include_binary"`
	MaxFileSize     string `mapstructure:"max_file_size"`
}

// QueueConfig holds queue and backoff settings.
type QueueConfig struct {
	Capacity        int           `mapstructure:"capacity"`
	BackoffStrategy string        `mapstructure:"backoff_strategy"`
	BackoffInitial  time.Duration `mapstructure:"backoff_initial"`
	BackoffMax      time.Duration `mapstructure:"backoff_max"`
	BackoffJitter   bool          `mapstructure:"backoff_jitter"`
	RetryBudget     time.Duration `mapstructure:"retry_budget"`
}

// AnalysisConfig holds processor tuning.
type AnalysisConfig struct {
	TimeWindow          string  `mapstructure:"time_window"`
	ComplexityEstimator string  `mapstructure:"complexity_estimator"`
	MinBlockSize        int     `mapstructure:"min_block_size"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	DebtThreshold       float64 `mapstructure:"debt_threshold"`
}

// OutputConfig holds rendering settings.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
	Color  bool   `mapstructure:"color"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	JSON    bool   `mapstructure:"json"`
	Verbose bool   `mapstructure:"verbose"`
}

// Load reads configuration from the optional YAML file, applying defaults
// and validating the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("REPOLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scanner.repository", ".")
	v.SetDefault("scanner.max_memory", defaultMaxMemory)
	v.SetDefault("scanner.performance_mode", false)
	v.SetDefault("scanner.include_binary", false)

	v.SetDefault("queue.capacity", defaultQueueCapacity)
	v.SetDefault("queue.backoff_strategy", defaultBackoffStrategy)
	v.SetDefault("queue.backoff_initial", defaultBackoffInitial)
	v.SetDefault("queue.backoff_max", defaultBackoffMax)
	v.SetDefault("queue.backoff_jitter", true)
	v.SetDefault("queue.retry_budget", defaultRetryBudget)

	v.SetDefault("analysis.time_window", defaultTimeWindow)
	v.SetDefault("analysis.complexity_estimator", defaultEstimator)
	v.SetDefault("analysis.min_block_size", defaultMinBlockSize)
	v.SetDefault("analysis.similarity_threshold", defaultSimilarity)
	v.SetDefault("analysis.debt_threshold", defaultDebtThreshold)

	v.SetDefault("output.format", defaultFormat)
	v.SetDefault("output.color", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
}

// Knob bounds.
var (
	validBackoffStrategies = map[string]struct{}{
		"fixed": {}, "linear": {}, "exponential": {},
	}

	validTimeWindows = map[string]struct{}{
		"week": {}, "month": {}, "quarter": {}, "year": {}, "all": {},
	}

	validFormats = map[string]struct{}{
		"console": {}, "csv": {}, "json": {}, "xml": {},
		"yaml": {}, "markdown": {}, "html": {}, "template": {},
	}
)

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueCapacity, c.Queue.Capacity)
	}

	if c.Scanner.MaxMemory == "" {
		return ErrInvalidMaxMemory
	}

	if _, ok := validBackoffStrategies[c.Queue.BackoffStrategy]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidBackoff, c.Queue.BackoffStrategy)
	}

	// Only the size-based estimator is implemented; the knob exists so a
	// content-based estimator can slot in without changing the config shape.
	if c.Analysis.ComplexityEstimator != defaultEstimator {
		return fmt.Errorf("%w: %q", ErrInvalidEstimator, c.Analysis.ComplexityEstimator)
	}

	if _, ok := validTimeWindows[c.Analysis.TimeWindow]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTimeWindow, c.Analysis.TimeWindow)
	}

	if _, ok := validFormats[c.Output.Format]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	return nil
}
