package queue

import (
	"math/rand/v2"
	"time"
)

// PressureLevel grades memory pressure from none to critical.
type PressureLevel int

// Pressure levels, derived from memory_used/memory_cap.
const (
	PressureNone PressureLevel = iota
	PressureLow
	PressureMedium
	PressureHigh
	PressureCritical
)

// Pressure thresholds in percent of the memory cap. A usage at exactly a
// threshold falls into the next-higher level.
const (
	lowThresholdPercent      = 50
	mediumThresholdPercent   = 70
	highThresholdPercent     = 85
	criticalThresholdPercent = 95
)

// percentDivisor converts ratios to percentages.
const percentDivisor = 100

// String returns the lowercase level name.
func (p PressureLevel) String() string {
	switch p {
	case PressureNone:
		return "none"
	case PressureLow:
		return "low"
	case PressureMedium:
		return "medium"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PressureFromUsage maps a used/cap ratio onto a PressureLevel.
// A zero cap means pressure cannot be measured and reports PressureNone.
func PressureFromUsage(used, memoryCap int64) PressureLevel {
	if memoryCap <= 0 {
		return PressureNone
	}

	percent := used * percentDivisor / memoryCap

	switch {
	case percent < lowThresholdPercent:
		return PressureNone
	case percent < mediumThresholdPercent:
		return PressureLow
	case percent < highThresholdPercent:
		return PressureMedium
	case percent < criticalThresholdPercent:
		return PressureHigh
	default:
		return PressureCritical
	}
}

// Strategy selects how backoff delays grow with pressure.
type Strategy int

// Backoff strategies.
const (
	BackoffFixed Strategy = iota
	BackoffLinear
	BackoffExponential
)

// Default backoff tuning.
const (
	DefaultInitialDelay = 10 * time.Millisecond
	DefaultMaxDelay     = 2 * time.Second

	// DefaultExponentialFactor is the growth factor per pressure level.
	DefaultExponentialFactor = 2.0

	// jitterFraction is the maximum fraction of the delay added as jitter.
	jitterFraction = 0.25
)

// Backoff computes producer delays from pressure levels.
type Backoff struct {
	Strategy     Strategy
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Factor is the per-level growth factor for BackoffExponential.
	Factor float64

	// Jitter adds up to 25% random slack to non-zero delays, decorrelating
	// producers that hit pressure simultaneously.
	Jitter bool
}

// DefaultBackoff returns an exponential backoff with jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Strategy:     BackoffExponential,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Factor:       DefaultExponentialFactor,
		Jitter:       true,
	}
}

// ShouldBackoff returns the delay a producer must wait before retrying at
// the given pressure level. PressureNone yields zero; PressureCritical
// always yields MaxDelay.
func (b Backoff) ShouldBackoff(level PressureLevel) time.Duration {
	if level == PressureNone {
		return 0
	}

	if level >= PressureCritical {
		return b.MaxDelay
	}

	delay := b.delayForLevel(int(level))
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}

	if b.Jitter && delay > 0 {
		delay += time.Duration(rand.Int64N(int64(float64(delay)*jitterFraction) + 1))

		if delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}

	return delay
}

func (b Backoff) delayForLevel(level int) time.Duration {
	switch b.Strategy {
	case BackoffFixed:
		return b.InitialDelay
	case BackoffLinear:
		return b.InitialDelay * time.Duration(level)
	case BackoffExponential:
		factor := b.Factor
		if factor <= 1 {
			factor = DefaultExponentialFactor
		}

		delay := float64(b.InitialDelay)
		for range level - 1 {
			delay *= factor
		}

		return time.Duration(delay)
	default:
		return b.InitialDelay
	}
}
