package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// exportFilePerm is the mode for exported configuration files.
const exportFilePerm = 0o644

// Export writes the effective configuration as human-readable key-value
// text, one "section.key = value" line per setting, sorted by key.
func (c *Config) Export(path string) error {
	lines := []string{
		entry("scanner.repository", c.Scanner.Repository),
		entry("scanner.max_memory", c.Scanner.MaxMemory),
		entry("scanner.performance_mode", c.Scanner.PerformanceMode),
		entry("scanner.include_binary", c.Scanner.IncludeBinary),
		entry("scanner.max_file_size", c.Scanner.MaxFileSize),
		entry("queue.capacity", c.Queue.Capacity),
		entry("queue.backoff_strategy", c.Queue.BackoffStrategy),
		entry("queue.backoff_initial", c.Queue.BackoffInitial),
		entry("queue.backoff_max", c.Queue.BackoffMax),
		entry("queue.backoff_jitter", c.Queue.BackoffJitter),
		entry("queue.retry_budget", c.Queue.RetryBudget),
		entry("analysis.time_window", c.Analysis.TimeWindow),
		entry("analysis.complexity_estimator", c.Analysis.ComplexityEstimator),
		entry("analysis.min_block_size", c.Analysis.MinBlockSize),
		entry("analysis.similarity_threshold", c.Analysis.SimilarityThreshold),
		entry("analysis.debt_threshold", c.Analysis.DebtThreshold),
		entry("output.format", c.Output.Format),
		entry("output.path", c.Output.Path),
		entry("output.color", c.Output.Color),
		entry("logging.level", c.Logging.Level),
		entry("logging.json", c.Logging.JSON),
		entry("logging.verbose", c.Logging.Verbose),
	}

	sort.Strings(lines)

	content := strings.Join(lines, "\n") + "\n"

	if err := os.WriteFile(path, []byte(content), exportFilePerm); err != nil {
		return fmt.Errorf("export config: %w", err)
	}

	return nil
}

func entry(key string, value any) string {
	return fmt.Sprintf("%s = %v", key, value)
}
