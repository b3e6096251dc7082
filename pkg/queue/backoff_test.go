package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/repolens/repolens/pkg/queue"
)

func TestPressureFromUsage(t *testing.T) {
	t.Parallel()

	const memCap = 100

	tests := []struct {
		used  int64
		level queue.PressureLevel
	}{
		{0, queue.PressureNone},
		{49, queue.PressureNone},
		{50, queue.PressureLow}, // Exactly at threshold: next-higher level.
		{69, queue.PressureLow},
		{70, queue.PressureMedium},
		{84, queue.PressureMedium},
		{85, queue.PressureHigh},
		{94, queue.PressureHigh},
		{95, queue.PressureCritical},
		{100, queue.PressureCritical},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.level, queue.PressureFromUsage(tc.used, memCap), "used=%d", tc.used)
	}
}

func TestPressureFromUsageZeroCap(t *testing.T) {
	t.Parallel()

	assert.Equal(t, queue.PressureNone, queue.PressureFromUsage(50, 0))
}

func TestBackoffNoneReturnsZero(t *testing.T) {
	t.Parallel()

	b := queue.DefaultBackoff()
	assert.Zero(t, b.ShouldBackoff(queue.PressureNone))
}

func TestBackoffCriticalReturnsMax(t *testing.T) {
	t.Parallel()

	b := queue.Backoff{
		Strategy:     queue.BackoffExponential,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Factor:       2,
	}

	assert.Equal(t, 500*time.Millisecond, b.ShouldBackoff(queue.PressureCritical))
}

func TestBackoffFixed(t *testing.T) {
	t.Parallel()

	b := queue.Backoff{
		Strategy:     queue.BackoffFixed,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
	}

	assert.Equal(t, 10*time.Millisecond, b.ShouldBackoff(queue.PressureLow))
	assert.Equal(t, 10*time.Millisecond, b.ShouldBackoff(queue.PressureHigh))
}

func TestBackoffLinearGrowsWithLevel(t *testing.T) {
	t.Parallel()

	b := queue.Backoff{
		Strategy:     queue.BackoffLinear,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
	}

	low := b.ShouldBackoff(queue.PressureLow)
	high := b.ShouldBackoff(queue.PressureHigh)

	assert.Equal(t, 10*time.Millisecond, low)
	assert.Equal(t, 30*time.Millisecond, high)
}

func TestBackoffExponential(t *testing.T) {
	t.Parallel()

	b := queue.Backoff{
		Strategy:     queue.BackoffExponential,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Factor:       2,
	}

	assert.Equal(t, 10*time.Millisecond, b.ShouldBackoff(queue.PressureLow))
	assert.Equal(t, 20*time.Millisecond, b.ShouldBackoff(queue.PressureMedium))
	assert.Equal(t, 40*time.Millisecond, b.ShouldBackoff(queue.PressureHigh))
}

func TestBackoffClampsToMax(t *testing.T) {
	t.Parallel()

	b := queue.Backoff{
		Strategy:     queue.BackoffExponential,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     150 * time.Millisecond,
		Factor:       10,
	}

	assert.Equal(t, 150*time.Millisecond, b.ShouldBackoff(queue.PressureHigh))
}

func TestBackoffJitterStaysWithinMax(t *testing.T) {
	t.Parallel()

	b := queue.Backoff{
		Strategy:     queue.BackoffFixed,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     110 * time.Millisecond,
		Jitter:       true,
	}

	for range 50 {
		delay := b.ShouldBackoff(queue.PressureMedium)
		assert.GreaterOrEqual(t, delay, 100*time.Millisecond)
		assert.LessOrEqual(t, delay, 110*time.Millisecond)
	}
}

func TestMemoryTracker(t *testing.T) {
	t.Parallel()

	tracker := queue.NewMemoryTracker(100)

	tracker.Add(60)
	assert.Equal(t, int64(60), tracker.Current())
	assert.Equal(t, queue.PressureLow, tracker.Pressure())

	tracker.Add(30)
	assert.Equal(t, queue.PressureHigh, tracker.Pressure())

	tracker.Remove(80)
	assert.Equal(t, int64(10), tracker.Current())
	assert.Equal(t, queue.PressureNone, tracker.Pressure())

	// The rolling window still remembers the 90-byte peak.
	assert.Equal(t, int64(90), tracker.RecentPeak())
}
