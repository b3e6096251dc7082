// Package stats implements the always-active repository statistics
// processor: totals, author set, repository age and commit rate.
package stats

import (
	"time"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
)

// Name is the processor identifier.
const Name = "statistics"

// hoursPerDay converts age durations to days.
const hoursPerDay = 24

// Processor accumulates whole-repository statistics and emits one
// StatisticsData message at finalize.
type Processor struct {
	processor.BaseProcessor

	totalCommits  uint64
	totalFiles    uint64
	totalFileSize int64
	authors       map[string]struct{}
	firstCommit   time.Time
	lastCommit    time.Time

	sequence uint64
}

// New creates the statistics processor.
func New() *Processor {
	return &Processor{}
}

// Name implements processor.Processor.
func (p *Processor) Name() string { return Name }

// Initialize implements processor.Processor.
func (p *Processor) Initialize() error {
	p.ResetStats()

	p.totalCommits = 0
	p.totalFiles = 0
	p.totalFileSize = 0
	p.authors = make(map[string]struct{})
	p.firstCommit = time.Time{}
	p.lastCommit = time.Time{}
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
	case event.CommitDiscovered:
		p.totalCommits++
		p.authors[e.Commit.AuthorEmail] = struct{}{}

		ts := e.Commit.Timestamp
		if p.firstCommit.IsZero() || ts.Before(p.firstCommit) {
			p.firstCommit = ts
		}

		if ts.After(p.lastCommit) {
			p.lastCommit = ts
		}
	case event.FileScanned:
		p.totalFiles++
		p.totalFileSize += e.FileInfo.Size
	}

	return nil, nil
}

// Finalize implements processor.Processor. An empty repository still yields
// a statistics message with zero counts.
func (p *Processor) Finalize() ([]message.ScanMessage, error) {
	ageDays := 0
	commitsPerDay := 0.0

	if !p.firstCommit.IsZero() {
		ageDays = int(p.lastCommit.Sub(p.firstCommit).Hours() / hoursPerDay)

		days := float64(ageDays)
		if days < 1 {
			days = 1
		}

		commitsPerDay = float64(p.totalCommits) / days
	}

	data := message.StatisticsData{
		TotalCommits:    p.totalCommits,
		TotalFiles:      p.totalFiles,
		TotalFileSize:   p.totalFileSize,
		UniqueAuthors:   len(p.authors),
		FirstCommitTime: p.firstCommit,
		LastCommitTime:  p.lastCommit,
		AgeDays:         ageDays,
		CommitsPerDay:   commitsPerDay,
	}

	msg := message.New(p.sequence, Name, data)
	p.sequence++
	p.CountMessages(1)

	return []message.ScanMessage{msg}, nil
}
