package cli_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/cli"
	"github.com/repolens/repolens/pkg/units"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestParseDateISO(t *testing.T) {
	t.Parallel()

	d, err := cli.ParseDate("2024-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = cli.ParseDate("2024-03-01T10:30:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), d)

	d, err = cli.ParseDate("2024-03-01T10:30:00", now)
	require.NoError(t, err)
	assert.Equal(t, 10, d.Hour())
}

func TestParseDateRelative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  time.Time
	}{
		{"today", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"yesterday", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
		{"tomorrow", time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)},
		{"2 days ago", now.AddDate(0, 0, -2)},
		{"1 day ago", now.AddDate(0, 0, -1)},
		{"3 weeks ago", now.AddDate(0, 0, -21)},
		{"2 months ago", now.AddDate(0, 0, -60)},
		{"1 year ago", now.AddDate(0, 0, -365)},
		{"30 minutes ago", now.Add(-30 * time.Minute)},
		{"last week", now.AddDate(0, 0, -7)},
		{"last month", now.AddDate(0, 0, -30)},
		{"last year", now.AddDate(0, 0, -365)},
	}

	for _, tc := range tests {
		d, err := cli.ParseDate(tc.input, now)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, d, "input %q", tc.input)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "soon", "five days ago", "2024-13-45", "3 fortnights ago"} {
		_, err := cli.ParseDate(input, now)
		require.ErrorIs(t, err, cli.ErrUnparsableDate, "input %q", input)
	}
}

func TestValidateDateRange(t *testing.T) {
	t.Parallel()

	since, until, err := cli.ValidateDateRange("2024-01-01", "2024-06-01", now)
	require.NoError(t, err)
	assert.True(t, since.Before(until))

	_, _, err = cli.ValidateDateRange("2024-06-01", "2024-01-01", now)
	require.ErrorIs(t, err, cli.ErrInvalidDateRange)

	// Equal bounds are a valid range.
	_, _, err = cli.ValidateDateRange("2024-01-01", "2024-01-01", now)
	require.NoError(t, err)
}

func TestParseMemorySize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  int64
	}{
		{"512", 512},
		{"512B", 512},
		{"1K", units.KiB},
		{"1KB", units.KiB},
		{"1KiB", units.KiB},
		{"64M", 64 * units.MiB},
		{"1.5MB", units.MiB + 512*units.KiB},
		{"0.5G", 512 * units.MiB},
		{"2GiB", 2 * units.GiB},
		{"1T", units.TiB},
		{" 4 GB ", 4 * units.GiB},
	}

	for _, tc := range tests {
		got, err := cli.ParseMemorySize(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, got, "input %q", tc.input)
	}
}

func TestParseMemorySizeRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "GB", "-1K", "1X", "one meg"} {
		_, err := cli.ParseMemorySize(input)
		require.ErrorIs(t, err, cli.ErrUnparsableSize, "input %q", input)
	}
}

func TestMemorySizeRoundTrip(t *testing.T) {
	t.Parallel()

	// Exact multiples of a power of 1024 round-trip exactly.
	for _, n := range []int64{1, 512, units.KiB, 3 * units.MiB, 7 * units.GiB, 2 * units.TiB} {
		formatted := cli.FormatMemorySize(n)

		parsed, err := cli.ParseMemorySize(formatted)
		require.NoError(t, err, "formatted %q", formatted)
		assert.Equal(t, n, parsed, "formatted %q", formatted)
	}
}

func TestFormatMemorySize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "100B", cli.FormatMemorySize(100))
	assert.Equal(t, "1KB", cli.FormatMemorySize(units.KiB))
	assert.Equal(t, "1.5KB", cli.FormatMemorySize(units.KiB+512))
	assert.Equal(t, "2GB", cli.FormatMemorySize(2*units.GiB))
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	known := []string{"commits", "metrics", "export", "statistics", "files"}

	assert.Equal(t, []string{"commits"}, cli.Suggest("comits", known))
	assert.Equal(t, []string{"metrics"}, cli.Suggest("metrcs", known))
	assert.Empty(t, cli.Suggest("zzzzzzzz", known))

	// At most three candidates, nearest first.
	suggestions := cli.Suggest("xport", known)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "export", suggestions[0])
	assert.LessOrEqual(t, len(suggestions), 3)
}
