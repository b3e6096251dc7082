package complexity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/processors/complexity"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
)

func TestLevelThresholds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, complexity.LevelLow, complexity.LevelFromScore(4.9))
	assert.Equal(t, complexity.LevelMedium, complexity.LevelFromScore(5.0))
	assert.Equal(t, complexity.LevelMedium, complexity.LevelFromScore(9.9))
	assert.Equal(t, complexity.LevelHigh, complexity.LevelFromScore(10.0))
	assert.Equal(t, complexity.LevelVeryHigh, complexity.LevelFromScore(20.0))
}

func TestLevelsMonotoneInScore(t *testing.T) {
	t.Parallel()

	prev := complexity.LevelFromScore(0)

	for score := 0.0; score < 40; score += 0.5 {
		level := complexity.LevelFromScore(score)
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestEstimateScalesWithLines(t *testing.T) {
	t.Parallel()

	small := complexity.Estimate(50, ".go")
	large := complexity.Estimate(1000, ".go")

	assert.Less(t, small.Score(), large.Score())
	assert.Less(t, small.Cyclomatic, large.Cyclomatic)
	assert.LessOrEqual(t, large.NestingDepth, 8)
}

func TestEstimateUnknownExtensionUsesDefaults(t *testing.T) {
	t.Parallel()

	m := complexity.Estimate(100, ".xyz")

	assert.Positive(t, m.Cyclomatic)
	assert.Positive(t, m.FunctionCount)
	assert.Zero(t, m.ClassCount)
}

func TestScoreFormula(t *testing.T) {
	t.Parallel()

	m := complexity.Metrics{
		Cyclomatic:   10,
		Cognitive:    12,
		LinesOfCode:  200,
		NestingDepth: 4,
	}

	// 0.4*10 + 0.3*12 + 0.2*2 + 0.1*4 = 8.4
	assert.InDelta(t, 8.4, m.Score(), 0.001)
}

func TestScoreSizeTermCapped(t *testing.T) {
	t.Parallel()

	m := complexity.Metrics{LinesOfCode: 100000}

	// Size term capped at 10 → contribution 2.0.
	assert.InDelta(t, 2.0, m.Score(), 0.001)
}

func TestProcessorSkipsBinariesAndUnknownLineCounts(t *testing.T) {
	t.Parallel()

	p := complexity.New()
	require.NoError(t, p.Initialize())

	_, err := p.ProcessEvent(event.FileScanned{FileInfo: event.FileInfo{
		RelativePath: "bin", IsBinary: true, LineCount: 100,
	}})
	require.NoError(t, err)

	_, err = p.ProcessEvent(event.FileScanned{FileInfo: event.FileInfo{
		RelativePath: "nolines.go", Extension: ".go",
	}})
	require.NoError(t, err)

	msgs, err := p.Finalize()
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestProcessorEmitsMetricsAndPublishes(t *testing.T) {
	t.Parallel()

	p := complexity.New()
	require.NoError(t, p.Initialize())

	state := processor.NewSharedState()
	p.SetSharedState(state)

	_, err := p.ProcessEvent(event.FileScanned{FileInfo: event.FileInfo{
		RelativePath: "main.go", Extension: ".go", LineCount: 300,
	}})
	require.NoError(t, err)

	msgs, err := p.Finalize()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	metric, ok := msgs[0].Data.(message.MetricData)
	require.True(t, ok)
	assert.Equal(t, "main.go", metric.FilePath)
	assert.Positive(t, metric.Value)
	assert.NotEmpty(t, metric.Level)

	data, ok := state.ProcessorData(complexity.BusKey("main.go"))
	require.True(t, ok)

	shared, ok := data.(processor.FileComplexity)
	require.True(t, ok)
	assert.Equal(t, 300, shared.Lines)
}
