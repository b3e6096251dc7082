// Package processor defines the event-processor contract, the shared
// cross-processor state, the memory-pressure event gate, and the
// coordinator that drives registered processors over the event stream.
package processor

import (
	"time"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
)

// RepositoryMetadata carries repository-wide scan parameters, published to
// every processor once after Initialize.
type RepositoryMetadata struct {
	RepositoryPath string
	RepositoryName string
	ScanID         string
	TotalCommits   uint64
	TotalFiles     uint64
	ScanStart      time.Time
}

// Stats counts one processor's work.
type Stats struct {
	EventsProcessed   uint64
	MessagesGenerated uint64
	ProcessingTime    time.Duration
	ErrorsEncountered uint64
}

// Processor is the contract every analysis implements. Processors must be
// deterministic given the same event sequence and empty shared state; the
// coordinator dispatches single-threaded so shared-state insertion order is
// deterministic too.
type Processor interface {
	// Name returns the unique identifier of the processor.
	Name() string

	// Initialize prepares accumulators for a fresh scan.
	Initialize() error

	// OnRepositoryMetadata is called once after Initialize.
	OnRepositoryMetadata(meta RepositoryMetadata) error

	// ProcessEvent consumes one event and may emit streaming messages.
	// Most processors buffer internally and return nothing here.
	ProcessEvent(evt event.Event) ([]message.ScanMessage, error)

	// Finalize produces the accumulated results.
	Finalize() ([]message.ScanMessage, error)

	// Stats returns the processor's counters.
	Stats() Stats

	// SetSharedState hands the processor the per-scan shared state.
	SetSharedState(state *SharedState)

	// SharedState returns the state handed to SetSharedState, or nil.
	SharedState() *SharedState
}

// BaseProcessor provides the shared-state plumbing and counter bookkeeping
// common to every processor. Embed it and call CountEvent/CountMessages
// from ProcessEvent and Finalize.
type BaseProcessor struct {
	stats Stats
	state *SharedState
}

// SetSharedState implements Processor.
func (b *BaseProcessor) SetSharedState(state *SharedState) {
	b.state = state
}

// SharedState implements Processor.
func (b *BaseProcessor) SharedState() *SharedState {
	return b.state
}

// Stats implements Processor.
func (b *BaseProcessor) Stats() Stats {
	return b.stats
}

// ResetStats clears counters for a fresh scan.
func (b *BaseProcessor) ResetStats() {
	b.stats = Stats{}
}

// CountEvent records one consumed event and its processing time.
func (b *BaseProcessor) CountEvent(elapsed time.Duration) {
	b.stats.EventsProcessed++
	b.stats.ProcessingTime += elapsed
}

// CountMessages records emitted messages.
func (b *BaseProcessor) CountMessages(n int) {
	b.stats.MessagesGenerated += uint64(n)
}

// CountError records one recoverable failure.
func (b *BaseProcessor) CountError() {
	b.stats.ErrorsEncountered++
}
