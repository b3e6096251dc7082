package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/pkg/queue"
)

func TestRootCommandFlags(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()

	for _, name := range []string{
		"repository", "config-file", "since", "until",
		"include-path", "exclude-path", "author", "exclude-author",
		"max-memory", "performance-mode", "no-color", "color",
		"format", "output", "export-config",
	} {
		assert.NotNil(t, root.Flags().Lookup(name), "missing flag --%s", name)
	}
}

func TestBuildQueryFromFlags(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	flags := &rootFlags{
		since:        "2024-01-01",
		until:        "2024-06-01",
		authors:      []string{"alice"},
		includePaths: []string{"src/"},
	}

	query, err := buildQuery(cfg, flags)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice"}, query.IncludeAuthors)
	assert.Equal(t, []string{"src/"}, query.IncludePaths)
	assert.True(t, query.Since.Before(query.Until))
}

func TestBuildQueryRejectsInvertedRange(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	flags := &rootFlags{since: "2024-06-01", until: "2024-01-01"}

	_, err = buildQuery(cfg, flags)
	require.ErrorIs(t, err, ErrUsage)
}

func TestBuildQueryRejectsBadDate(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	_, err = buildQuery(cfg, &rootFlags{since: "not-a-date"})
	require.ErrorIs(t, err, ErrUsage)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Parallel()

	flags := &rootFlags{
		repository: "/tmp/repo",
		maxMemory:  "1G",
		format:     "json",
	}

	cfg, err := loadConfig(flags)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/repo", cfg.Scanner.Repository)
	assert.Equal(t, "1G", cfg.Scanner.MaxMemory)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(&rootFlags{format: "pdf"})
	require.ErrorIs(t, err, ErrUsage)
}

func TestBuildBackoff(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	backoff := buildBackoff(cfg)
	assert.Equal(t, queue.BackoffExponential, backoff.Strategy)

	cfg.Queue.BackoffStrategy = "fixed"
	assert.Equal(t, queue.BackoffFixed, buildBackoff(cfg).Strategy)

	cfg.Queue.BackoffStrategy = "linear"
	assert.Equal(t, queue.BackoffLinear, buildBackoff(cfg).Strategy)
}

func TestUnknownFunctionSuggestion(t *testing.T) {
	t.Parallel()

	err := unknownFunctionError("comits")
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "commits")

	err = unknownFunctionError("zzzzzz")
	require.ErrorIs(t, err, ErrUsage)
	assert.NotContains(t, err.Error(), "did you mean")
}
