// Package complexity implements the per-file complexity processor using the
// size-based estimator: line counts scaled by per-language weights.
package complexity

import (
	"fmt"
	"sort"
	"time"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
)

// Name is the processor identifier.
const Name = "complexity"

// Score weighting.
const (
	cyclomaticWeight = 0.4
	cognitiveWeight  = 0.3
	sizeWeight       = 0.2
	nestingWeight    = 0.1

	// sizeNormalizer divides lines-of-code for the size term.
	sizeNormalizer = 100.0

	// sizeTermCap caps the size term contribution.
	sizeTermCap = 10.0
)

// Level thresholds.
const (
	lowThreshold    = 5.0
	mediumThreshold = 10.0
	highThreshold   = 20.0
)

// Level grades a complexity score.
type Level int

// Complexity levels; monotone-increasing in the underlying score.
const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelVeryHigh
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelVeryHigh:
		return "very_high"
	default:
		return "unknown"
	}
}

// LevelFromScore grades a score.
func LevelFromScore(score float64) Level {
	switch {
	case score < lowThreshold:
		return LevelLow
	case score < mediumThreshold:
		return LevelMedium
	case score < highThreshold:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// Metrics is the per-file complexity estimate.
type Metrics struct {
	Cyclomatic    float64
	Cognitive     float64
	LinesOfCode   int
	FunctionCount int
	ClassCount    int
	NestingDepth  int
}

// Score combines the estimate into a single value.
func (m Metrics) Score() float64 {
	sizeTerm := float64(m.LinesOfCode) / sizeNormalizer
	if sizeTerm > sizeTermCap {
		sizeTerm = sizeTermCap
	}

	return cyclomaticWeight*m.Cyclomatic +
		cognitiveWeight*m.Cognitive +
		sizeWeight*sizeTerm +
		nestingWeight*float64(m.NestingDepth)
}

// languageWeights tunes the estimator per language family.
type languageWeights struct {
	// decisionDensity is estimated branch points per line.
	decisionDensity float64

	// cognitiveFactor scales cyclomatic into cognitive complexity.
	cognitiveFactor float64

	// linesPerFunction is the assumed average function length.
	linesPerFunction float64

	// linesPerClass is the assumed average type/class extent (0 = no classes).
	linesPerClass float64
}

// defaultWeights covers unrecognised extensions.
var defaultWeights = languageWeights{
	decisionDensity:  0.08,
	cognitiveFactor:  1.1,
	linesPerFunction: 25,
	linesPerClass:    0,
}

// weightTable keys estimator weights by lowercased extension.
var weightTable = map[string]languageWeights{
	".go":    {decisionDensity: 0.10, cognitiveFactor: 1.1, linesPerFunction: 20, linesPerClass: 80},
	".rs":    {decisionDensity: 0.10, cognitiveFactor: 1.2, linesPerFunction: 22, linesPerClass: 90},
	".c":     {decisionDensity: 0.12, cognitiveFactor: 1.3, linesPerFunction: 30, linesPerClass: 0},
	".h":     {decisionDensity: 0.06, cognitiveFactor: 1.0, linesPerFunction: 40, linesPerClass: 0},
	".cpp":   {decisionDensity: 0.12, cognitiveFactor: 1.3, linesPerFunction: 28, linesPerClass: 110},
	".java":  {decisionDensity: 0.09, cognitiveFactor: 1.2, linesPerFunction: 18, linesPerClass: 100},
	".py":    {decisionDensity: 0.09, cognitiveFactor: 1.1, linesPerFunction: 15, linesPerClass: 70},
	".rb":    {decisionDensity: 0.09, cognitiveFactor: 1.1, linesPerFunction: 12, linesPerClass: 60},
	".js":    {decisionDensity: 0.11, cognitiveFactor: 1.2, linesPerFunction: 16, linesPerClass: 90},
	".ts":    {decisionDensity: 0.11, cognitiveFactor: 1.2, linesPerFunction: 16, linesPerClass: 90},
	".cs":    {decisionDensity: 0.09, cognitiveFactor: 1.2, linesPerFunction: 18, linesPerClass: 100},
	".php":   {decisionDensity: 0.10, cognitiveFactor: 1.2, linesPerFunction: 18, linesPerClass: 80},
	".swift": {decisionDensity: 0.09, cognitiveFactor: 1.1, linesPerFunction: 18, linesPerClass: 90},
	".kt":    {decisionDensity: 0.09, cognitiveFactor: 1.1, linesPerFunction: 16, linesPerClass: 90},
	".sh":    {decisionDensity: 0.14, cognitiveFactor: 1.4, linesPerFunction: 25, linesPerClass: 0},
}

// nestingDivisor estimates nesting depth from line count.
const nestingDivisor = 60

// maxEstimatedNesting caps the nesting estimate.
const maxEstimatedNesting = 8

// Estimate derives Metrics from a file's line count and extension.
func Estimate(lines int, extension string) Metrics {
	weights, ok := weightTable[extension]
	if !ok {
		weights = defaultWeights
	}

	cyclomatic := float64(lines) * weights.decisionDensity
	cognitive := cyclomatic * weights.cognitiveFactor

	functions := 0
	if weights.linesPerFunction > 0 {
		functions = int(float64(lines) / weights.linesPerFunction)
	}

	classes := 0
	if weights.linesPerClass > 0 {
		classes = int(float64(lines) / weights.linesPerClass)
	}

	nesting := lines / nestingDivisor
	if nesting > maxEstimatedNesting {
		nesting = maxEstimatedNesting
	}

	return Metrics{
		Cyclomatic:    cyclomatic,
		Cognitive:     cognitive,
		LinesOfCode:   lines,
		FunctionCount: functions,
		ClassCount:    classes,
		NestingDepth:  nesting,
	}
}

// Processor estimates per-file complexity from FileScanned events and emits
// MetricData messages at finalize. Estimates are published on the shared
// bus for the hotspot and debt processors.
type Processor struct {
	processor.BaseProcessor

	files    map[string]Metrics
	sequence uint64
}

// New creates a complexity processor.
func New() *Processor {
	return &Processor{}
}

// Name implements processor.Processor.
func (p *Processor) Name() string { return Name }

// Initialize implements processor.Processor.
func (p *Processor) Initialize() error {
	p.ResetStats()
	p.files = make(map[string]Metrics)
	p.sequence = 0

	return nil
}

// OnRepositoryMetadata implements processor.Processor.
func (p *Processor) OnRepositoryMetadata(processor.RepositoryMetadata) error {
	return nil
}

// ProcessEvent implements processor.Processor. Binary files and files
// without a line count are skipped.
func (p *Processor) ProcessEvent(evt event.Event) ([]message.ScanMessage, error) {
	start := time.Now()
	defer func() { p.CountEvent(time.Since(start)) }()

	scanned, ok := evt.(event.FileScanned)
	if !ok {
		return nil, nil
	}

	info := scanned.FileInfo
	if info.IsBinary || info.LineCount <= 0 {
		return nil, nil
	}

	p.files[info.RelativePath] = Estimate(info.LineCount, info.Extension)

	return nil, nil
}

// Finalize implements processor.Processor.
func (p *Processor) Finalize() ([]message.ScanMessage, error) {
	paths := make([]string, 0, len(p.files))
	for path := range p.files {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	msgs := make([]message.ScanMessage, 0, len(paths))

	for _, path := range paths {
		metrics := p.files[path]
		score := metrics.Score()

		data := message.MetricData{
			FilePath: path,
			Name:     Name,
			Value:    score,
			Level:    LevelFromScore(score).String(),
			Details: map[string]string{
				"cyclomatic": fmt.Sprintf("%.1f", metrics.Cyclomatic),
				"cognitive":  fmt.Sprintf("%.1f", metrics.Cognitive),
				"lines":      fmt.Sprintf("%d", metrics.LinesOfCode),
				"functions":  fmt.Sprintf("%d", metrics.FunctionCount),
				"classes":    fmt.Sprintf("%d", metrics.ClassCount),
				"nesting":    fmt.Sprintf("%d", metrics.NestingDepth),
			},
		}

		msgs = append(msgs, message.New(p.sequence, Name, data))
		p.sequence++

		if state := p.SharedState(); state != nil {
			state.ShareProcessorData(BusKey(path), processor.FileComplexity{
				FilePath:   path,
				Cyclomatic: metrics.Cyclomatic,
				Cognitive:  metrics.Cognitive,
				Lines:      metrics.LinesOfCode,
				Nesting:    metrics.NestingDepth,
				Score:      score,
			})
		}
	}

	p.CountMessages(len(msgs))

	return msgs, nil
}

// MetricsFor returns the estimate for a path, if the file was scanned.
func (p *Processor) MetricsFor(path string) (Metrics, bool) {
	m, ok := p.files[path]

	return m, ok
}

// BusKey returns the shared-state key for a file's complexity data.
func BusKey(path string) string {
	return "complexity:" + path
}
