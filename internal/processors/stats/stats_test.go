package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/processors/stats"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
)

func commitAt(author string, ts time.Time) event.CommitDiscovered {
	return event.CommitDiscovered{Commit: event.CommitInfo{
		AuthorEmail: author,
		Timestamp:   ts,
	}}
}

func finalizeData(t *testing.T, p *stats.Processor) message.StatisticsData {
	t.Helper()

	msgs, err := p.Finalize()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	data, ok := msgs[0].Data.(message.StatisticsData)
	require.True(t, ok)

	return data
}

func TestEmptyRepositoryYieldsZeroStatistics(t *testing.T) {
	t.Parallel()

	p := stats.New()
	require.NoError(t, p.Initialize())

	data := finalizeData(t, p)

	assert.Zero(t, data.TotalCommits)
	assert.Zero(t, data.TotalFiles)
	assert.Zero(t, data.UniqueAuthors)
	assert.Zero(t, data.AgeDays)
}

func TestStatisticsAccumulation(t *testing.T) {
	t.Parallel()

	p := stats.New()
	require.NoError(t, p.Initialize())

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	events := []event.Event{
		commitAt("alice@x", base),
		commitAt("bob@x", base.AddDate(0, 0, 10)),
		commitAt("alice@x", base.AddDate(0, 0, 20)),
		event.FileScanned{FileInfo: event.FileInfo{Size: 100}},
		event.FileScanned{FileInfo: event.FileInfo{Size: 50}},
	}

	for _, evt := range events {
		_, err := p.ProcessEvent(evt)
		require.NoError(t, err)
	}

	data := finalizeData(t, p)

	assert.Equal(t, uint64(3), data.TotalCommits)
	assert.Equal(t, uint64(2), data.TotalFiles)
	assert.Equal(t, int64(150), data.TotalFileSize)
	assert.Equal(t, 2, data.UniqueAuthors)
	assert.Equal(t, 20, data.AgeDays)
	assert.InDelta(t, 3.0/20.0, data.CommitsPerDay, 0.001)
}

func TestSingleCommitAgeZero(t *testing.T) {
	t.Parallel()

	p := stats.New()
	require.NoError(t, p.Initialize())

	_, err := p.ProcessEvent(commitAt("a@x", time.Now()))
	require.NoError(t, err)

	data := finalizeData(t, p)

	assert.Equal(t, uint64(1), data.TotalCommits)
	assert.Equal(t, 0, data.AgeDays)
	assert.InDelta(t, 1.0, data.CommitsPerDay, 0.001)
}
