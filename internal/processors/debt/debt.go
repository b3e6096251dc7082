// Package debt implements the technical-debt processor: a weighted
// combination of complexity, change frequency, duplication impact, size and
// age mapped onto debt levels with refactoring-effort estimates.
package debt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/repolens/repolens/internal/processors/changefreq"
	"github.com/repolens/repolens/internal/processors/complexity"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
)

// Name is the processor identifier.
const Name = "debt_assessment"

// Component weights.
const (
	complexityWeight  = 0.3
	frequencyWeight   = 0.25
	duplicationWeight = 0.2
	sizeWeight        = 0.15
	ageWeight         = 0.1
)

// Normalisation factors: each component is scaled onto 0..100.
const (
	complexityScale  = 5.0
	frequencyScale   = 2.0
	duplicationScale = 10.0
	sizeDivisor      = 10.0
	componentCap     = 100.0
)

// Age score buckets by days since last change.
const (
	ageVeryRecentDays = 30
	ageRecentDays     = 90
	ageModerateDays   = 365
	ageOldDays        = 730

	ageVeryRecentScore = 10.0
	ageRecentScore     = 25.0
	ageModerateScore   = 50.0
	ageOldScore        = 75.0
	ageVeryOldScore    = 100.0

	// ageUnknownScore applies when a file has no change history.
	ageUnknownScore = 50.0
)

// Level thresholds.
const (
	lowThreshold      = 20.0
	mediumThreshold   = 40.0
	highThreshold     = 60.0
	criticalThreshold = 80.0
)

// Refactoring-hour estimation.
const (
	minimalBaseHours  = 1.0
	lowBaseHours      = 4.0
	mediumBaseHours   = 8.0
	highBaseHours     = 16.0
	criticalBaseHours = 32.0

	// sizeMultiplier bounds around lines/200.
	sizeMultiplierDivisor = 200.0
	sizeMultiplierMin     = 0.5
	sizeMultiplierMax     = 3.0

	hoursPerDay = 24
)

// Level grades a debt score.
type Level int

// Debt levels; monotone-increasing in the underlying score.
const (
	LevelMinimal Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// LevelFromScore grades a score.
func LevelFromScore(score float64) Level {
	switch {
	case score < lowThreshold:
		return LevelMinimal
	case score < mediumThreshold:
		return LevelLow
	case score < highThreshold:
		return LevelMedium
	case score < criticalThreshold:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// baseHours returns the base refactoring effort for a level.
func (l Level) baseHours() float64 {
	switch l {
	case LevelMinimal:
		return minimalBaseHours
	case LevelLow:
		return lowBaseHours
	case LevelMedium:
		return mediumBaseHours
	case LevelHigh:
		return highBaseHours
	case LevelCritical:
		return criticalBaseHours
	default:
		return minimalBaseHours
	}
}

// Config tunes the processor.
type Config struct {
	// Threshold is the minimum debt score a file must reach to be reported.
	Threshold float64
}

// DefaultConfig reports files at or above 50 debt.
func DefaultConfig() Config {
	return Config{Threshold: 50}
}

// Processor assesses per-file debt at finalize from the shared bus plus
// duplication impact published by the duplication detector.
type Processor struct {
	processor.BaseProcessor

	config      Config
	lastChanged map[string]time.Time
	now         time.Time
	sequence    uint64
}

// New creates a debt processor.
func New(config Config) *Processor {
	return &Processor{config: config}
}

// Name implements processor.Processor.
func (p *Processor) Name() string { return Name }

// Initialize implements processor.Processor.
func (p *Processor) Initialize() error {
	p.ResetStats()
	p.lastChanged = make(map[string]time.Time)
	p.sequence = 0

	return nil
}

// OnRepositoryMetadata pins the reference time for age scoring.
func (p *Processor) OnRepositoryMetadata(meta processor.RepositoryMetadata) error {
	p.now = meta.ScanStart

	return nil
}

// ProcessEvent implements processor.Processor.
func (p *Processor) ProcessEvent(evt event.Event) ([]message.ScanMessage, error) {
	start := time.Now()
	defer func() { p.CountEvent(time.Since(start)) }()

	changed, ok := evt.(event.FileChanged)
	if !ok {
		return nil, nil
	}

	ts := changed.CommitContext.Timestamp
	if ts.After(p.lastChanged[changed.FilePath]) {
		p.lastChanged[changed.FilePath] = ts
	}

	return nil, nil
}

// Finalize implements processor.Processor.
func (p *Processor) Finalize() ([]message.ScanMessage, error) {
	state := p.SharedState()
	if state == nil {
		return nil, nil
	}

	paths := p.assessablePaths(state)

	var msgs []message.ScanMessage

	for _, path := range paths {
		assessment := p.assess(state, path)
		if assessment.Score < p.config.Threshold {
			continue
		}

		data := message.MetricData{
			FilePath: path,
			Name:     Name,
			Value:    assessment.Score,
			Level:    assessment.Level.String(),
			Details: map[string]string{
				"estimated_hours": fmt.Sprintf("%.1f", assessment.EstimatedHours),
				"recommendations": strings.Join(assessment.Recommendations, "; "),
			},
		}

		msgs = append(msgs, message.New(p.sequence, Name, data))
		p.sequence++
	}

	p.CountMessages(len(msgs))

	return msgs, nil
}

// Assessment is one file's debt evaluation.
type Assessment struct {
	Score           float64
	Level           Level
	EstimatedHours  float64
	Recommendations []string
}

// assessablePaths returns every path with complexity data, sorted.
func (p *Processor) assessablePaths(state *processor.SharedState) []string {
	var paths []string

	for _, key := range state.ProcessorDataKeys() {
		path, ok := strings.CutPrefix(key, complexity.BusKey(""))
		if ok {
			paths = append(paths, path)
		}
	}

	sort.Strings(paths)

	return paths
}

func (p *Processor) assess(state *processor.SharedState, path string) Assessment {
	var (
		comp processor.FileComplexity
		freq processor.FileChangeFrequency
	)

	if data, ok := state.ProcessorData(complexity.BusKey(path)); ok {
		comp, _ = data.(processor.FileComplexity)
	}

	if data, ok := state.ProcessorData(changefreq.BusKey(path)); ok {
		freq, _ = data.(processor.FileChangeFrequency)
	}

	duplicationImpact := duplicationImpactFor(state, path)

	score := complexityWeight*capped(comp.Score*complexityScale) +
		frequencyWeight*capped(freq.Score*frequencyScale) +
		duplicationWeight*capped(duplicationImpact*duplicationScale) +
		sizeWeight*capped(float64(comp.Lines)/sizeDivisor) +
		ageWeight*p.ageScore(path)

	level := LevelFromScore(score)

	return Assessment{
		Score:           score,
		Level:           level,
		EstimatedHours:  estimateHours(level, comp.Lines),
		Recommendations: recommend(level, comp, freq),
	}
}

// DuplicationBusKey is the shared-state key prefix the duplication detector
// publishes per-file impact under.
const DuplicationBusKey = "duplication_impact:"

func duplicationImpactFor(state *processor.SharedState, path string) float64 {
	data, ok := state.ProcessorData(DuplicationBusKey + path)
	if !ok {
		return 0
	}

	custom, ok := data.(processor.CustomShared)
	if !ok {
		return 0
	}

	var impact float64
	if _, err := fmt.Sscanf(custom.JSON, "%f", &impact); err != nil {
		return 0
	}

	return impact
}

func (p *Processor) ageScore(path string) float64 {
	last, ok := p.lastChanged[path]
	if !ok || last.IsZero() {
		return ageUnknownScore
	}

	days := int(p.now.Sub(last).Hours() / hoursPerDay)

	switch {
	case days <= ageVeryRecentDays:
		return ageVeryRecentScore
	case days <= ageRecentDays:
		return ageRecentScore
	case days <= ageModerateDays:
		return ageModerateScore
	case days <= ageOldDays:
		return ageOldScore
	default:
		return ageVeryOldScore
	}
}

func estimateHours(level Level, lines int) float64 {
	multiplier := float64(lines) / sizeMultiplierDivisor
	if multiplier < sizeMultiplierMin {
		multiplier = sizeMultiplierMin
	}

	if multiplier > sizeMultiplierMax {
		multiplier = sizeMultiplierMax
	}

	return level.baseHours() * multiplier
}

func recommend(level Level, comp processor.FileComplexity, freq processor.FileChangeFrequency) []string {
	var out []string

	if level >= LevelHigh {
		out = append(out, "schedule a dedicated refactoring pass")
	}

	if comp.Score >= 20 {
		out = append(out, "reduce complexity before adding features")
	}

	if freq.ChangeCount > 20 {
		out = append(out, "add regression tests: the file churns heavily")
	}

	if len(out) == 0 {
		out = append(out, "monitor; no immediate action needed")
	}

	return out
}

func capped(v float64) float64 {
	if v > componentCap {
		return componentCap
	}

	return v
}
