package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Scanner.Repository)
	assert.Equal(t, "256M", cfg.Scanner.MaxMemory)
	assert.Equal(t, 4096, cfg.Queue.Capacity)
	assert.Equal(t, "exponential", cfg.Queue.BackoffStrategy)
	assert.Equal(t, 10*time.Millisecond, cfg.Queue.BackoffInitial)
	assert.Equal(t, "all", cfg.Analysis.TimeWindow)
	assert.Equal(t, "size", cfg.Analysis.ComplexityEstimator)
	assert.Equal(t, "console", cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	content := `
scanner:
  repository: /tmp/repo
  max_memory: 1G

queue:
  capacity: 128
  backoff_strategy: linear

analysis:
  time_window: month

output:
  format: json
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/repo", cfg.Scanner.Repository)
	assert.Equal(t, "1G", cfg.Scanner.MaxMemory)
	assert.Equal(t, 128, cfg.Queue.Capacity)
	assert.Equal(t, "linear", cfg.Queue.BackoffStrategy)
	assert.Equal(t, "month", cfg.Analysis.TimeWindow)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	base := func(t *testing.T) *config.Config {
		t.Helper()

		cfg, err := config.Load("")
		require.NoError(t, err)

		return cfg
	}

	capacity := base(t)
	capacity.Queue.Capacity = 0
	require.ErrorIs(t, capacity.Validate(), config.ErrInvalidQueueCapacity)

	backoff := base(t)
	backoff.Queue.BackoffStrategy = "quadratic"
	require.ErrorIs(t, backoff.Validate(), config.ErrInvalidBackoff)

	estimator := base(t)
	estimator.Analysis.ComplexityEstimator = "content"
	require.ErrorIs(t, estimator.Validate(), config.ErrInvalidEstimator)

	window := base(t)
	window.Analysis.TimeWindow = "decade"
	require.ErrorIs(t, window.Validate(), config.ErrInvalidTimeWindow)

	format := base(t)
	format.Output.Format = "pdf"
	require.ErrorIs(t, format.Validate(), config.ErrInvalidFormat)
}

func TestExportEffectiveConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "effective.conf")
	require.NoError(t, cfg.Export(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "queue.capacity = 4096")
	assert.Contains(t, text, "output.format = console")
	assert.Contains(t, text, "analysis.complexity_estimator = size")
}
