package commits_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/processors/commits"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
)

func TestBuffersCommitsInStreamOrder(t *testing.T) {
	t.Parallel()

	p := commits.New()
	require.NoError(t, p.Initialize())

	for i := range 3 {
		_, err := p.ProcessEvent(event.CommitDiscovered{
			Commit: event.CommitInfo{Hash: string(rune('a' + i)), Timestamp: time.Now()},
			Index:  uint64(i),
		})
		require.NoError(t, err)
	}

	msgs, err := p.Finalize()
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	for i, msg := range msgs {
		data, ok := msg.Data.(message.CommitData)
		require.True(t, ok)
		assert.Equal(t, string(rune('a'+i)), data.Commit.Hash)
		assert.Equal(t, uint64(i), msg.Header.Sequence)
	}
}

func TestCachesCommitsOnSharedState(t *testing.T) {
	t.Parallel()

	p := commits.New()
	require.NoError(t, p.Initialize())

	state := processor.NewSharedState()
	p.SetSharedState(state)

	_, err := p.ProcessEvent(event.CommitDiscovered{
		Commit: event.CommitInfo{Hash: "abc"},
	})
	require.NoError(t, err)

	cached, ok := state.CachedCommit("abc")
	require.True(t, ok)
	assert.Equal(t, "abc", cached.Hash)
}

func TestIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	p := commits.New()
	require.NoError(t, p.Initialize())

	_, err := p.ProcessEvent(event.FileScanned{})
	require.NoError(t, err)

	msgs, err := p.Finalize()
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
