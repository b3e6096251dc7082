// Package commits implements the commit-listing processor: it buffers
// every discovered commit and replays them as messages at finalize.
package commits

import (
	"time"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
)

// Name is the processor identifier.
const Name = "commits"

// Processor buffers discovered commits in stream order.
type Processor struct {
	processor.BaseProcessor

	commits  []event.CommitInfo
	sequence uint64
}

// New creates the commits processor.
func New() *Processor {
	return &Processor{}
}

// Name implements processor.Processor.
func (p *Processor) Name() string { return Name }

// Initialize implements processor.Processor.
func (p *Processor) Initialize() error {
	p.ResetStats()
	p.commits = nil
	p.sequence = 0

	return nil
}

// OnRepositoryMetadata implements processor.Processor.
func (p *Processor) OnRepositoryMetadata(processor.RepositoryMetadata) error {
	return nil
}

// ProcessEvent implements processor.Processor. Commits are also cached on
// the shared state so other processors can look them up by hash.
func (p *Processor) ProcessEvent(evt event.Event) ([]message.ScanMessage, error) {
	start := time.Now()
	defer func() { p.CountEvent(time.Since(start)) }()

	discovered, ok := evt.(event.CommitDiscovered)
	if !ok {
		return nil, nil
	}

	p.commits = append(p.commits, discovered.Commit)

	if state := p.SharedState(); state != nil {
		state.CacheCommit(discovered.Commit)
	}

	return nil, nil
}

// Finalize implements processor.Processor. Emits one CommitData message
// per commit in stream order.
func (p *Processor) Finalize() ([]message.ScanMessage, error) {
	msgs := make([]message.ScanMessage, 0, len(p.commits))

	for _, commit := range p.commits {
		msgs = append(msgs, message.New(p.sequence, Name, message.CommitData{Commit: commit}))
		p.sequence++
	}

	p.CountMessages(len(msgs))

	return msgs, nil
}
