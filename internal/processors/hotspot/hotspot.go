// Package hotspot implements the hotspot processor: it combines the
// complexity and change-frequency results other processors publish on the
// shared bus into a per-file risk ranking with recommendations.
package hotspot

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
const Name = "hotspot"

// Score weighting.
const (
	complexityWeight = 0.6
	frequencyWeight  = 0.4
)

// Risk thresholds.
const (
	mediumThreshold   = 5.0
	highThreshold     = 15.0
	criticalThreshold = 30.0
)

// Recommendation trip points.
const (
	largeFileLines    = 500
	deepNesting       = 5
	frequentChanges   = 20
	crowdedAuthorship = 5
)

// Risk grades a hotspot score.
type Risk int

// Risk levels; monotone-increasing in the underlying score.
const (
	RiskLow Risk = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the risk name.
func (r Risk) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// RiskFromScore grades a score.
func RiskFromScore(score float64) Risk {
	switch {
	case score < mediumThreshold:
		return RiskLow
	case score < highThreshold:
		return RiskMedium
	case score < criticalThreshold:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Processor combines complexity × frequency at finalize. It consumes no
// events directly beyond tracking file paths seen on the stream.
type Processor struct {
	processor.BaseProcessor

	paths    map[string]struct{}
	sequence uint64
}

// New creates a hotspot processor.
func New() *Processor {
	return &Processor{}
}

// Name implements processor.Processor.
func (p *Processor) Name() string { return Name }

// Initialize implements processor.Processor.
func (p *Processor) Initialize() error {
	p.ResetStats()
	p.paths = make(map[string]struct{})
	p.sequence = 0

	return nil
}

// OnRepositoryMetadata implements processor.Processor.
func (p *Processor) OnRepositoryMetadata(processor.RepositoryMetadata) error {
	return nil
}

// ProcessEvent implements processor.Processor.
func (p *Processor) ProcessEvent(evt event.Event) ([]message.ScanMessage, error) {
	start := time.Now()
	defer func() { p.CountEvent(time.Since(start)) }()

	switch e := evt.(type) {
	case event.FileChanged:
		p.paths[e.FilePath] = struct{}{}
	case event.FileScanned:
		p.paths[e.FileInfo.RelativePath] = struct{}{}
	}

	return nil, nil
}

// Finalize implements processor.Processor. Registration order puts hotspot
// after the complexity and change-frequency processors, so their bus data
// is published by the time this runs.
func (p *Processor) Finalize() ([]message.ScanMessage, error) {
	state := p.SharedState()
	if state == nil {
		return nil, nil
	}

	paths := make([]string, 0, len(p.paths))
	for path := range p.paths {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	var msgs []message.ScanMessage

	for _, path := range paths {
		comp, hasComp := complexityFor(state, path)
		freq, hasFreq := frequencyFor(state, path)

		if !hasComp && !hasFreq {
			continue
		}

		score := complexityWeight*comp.Score + frequencyWeight*freq.Score
		recommendations := recommend(comp, freq)

		data := message.MetricData{
			FilePath: path,
			Name:     Name,
			Value:    score,
			Level:    RiskFromScore(score).String(),
			Details: map[string]string{
				"complexity_score": formatScore(comp.Score),
				"frequency_score":  formatScore(freq.Score),
				"recommendations":  strings.Join(recommendations, "; "),
			},
		}

		msgs = append(msgs, message.New(p.sequence, Name, data))
		p.sequence++
	}

	p.CountMessages(len(msgs))

	return msgs, nil
}

func complexityFor(state *processor.SharedState, path string) (processor.FileComplexity, bool) {
	data, ok := state.ProcessorData(complexity.BusKey(path))
	if !ok {
		return processor.FileComplexity{}, false
	}

	comp, ok := data.(processor.FileComplexity)

	return comp, ok
}

func frequencyFor(state *processor.SharedState, path string) (processor.FileChangeFrequency, bool) {
	data, ok := state.ProcessorData(changefreq.BusKey(path))
	if !ok {
		return processor.FileChangeFrequency{}, false
	}

	freq, ok := data.(processor.FileChangeFrequency)

	return freq, ok
}

// recommend produces per-file guidance from the combined signals.
func recommend(comp processor.FileComplexity, freq processor.FileChangeFrequency) []string {
	var out []string

	if comp.Lines > largeFileLines {
		out = append(out, "split this large file into smaller modules")
	}

	if comp.Nesting > deepNesting {
		out = append(out, "flatten deeply nested logic")
	}

	if freq.ChangeCount > frequentChanges {
		out = append(out, "stabilise this frequently changing file")
	}

	if freq.AuthorCount > crowdedAuthorship {
		out = append(out, "document ownership: many authors touch this file")
	}

	return out
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.2f", score)
}
