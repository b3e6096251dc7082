package processor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
)

// Coordinator errors.
var (
	// ErrDuplicateProcessor indicates two processors share a name.
	ErrDuplicateProcessor = errors.New("duplicate processor name")

	// ErrCancelled indicates the scan was cancelled before completion.
	ErrCancelled = errors.New("scan cancelled")
)

// Coordinator owns an ordered list of processors and drives them over the
// event stream. Dispatch is single-threaded: processors observe events in
// the exact order the traversal emitted them, and shared-state insertion
// order is deterministic.
type Coordinator struct {
	processors []Processor
	names      map[string]struct{}

	filter *AdvancedFilter
	state  *SharedState
	logger *slog.Logger

	cancelled atomic.Bool
	errored   map[string]error

	eventsDispatched uint64
}

// NewCoordinator creates a coordinator. filter may be nil (no gating);
// logger may be nil (discards).
func NewCoordinator(state *SharedState, filter *AdvancedFilter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if state == nil {
		state = NewSharedState()
	}

	return &Coordinator{
		names:   make(map[string]struct{}),
		filter:  filter,
		state:   state,
		logger:  logger,
		errored: make(map[string]error),
	}
}

// Register appends a processor. Registration order is dispatch order.
func (c *Coordinator) Register(p Processor) error {
	if _, dup := c.names[p.Name()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateProcessor, p.Name())
	}

	c.names[p.Name()] = struct{}{}
	c.processors = append(c.processors, p)
	p.SetSharedState(c.state)

	return nil
}

// Processors returns the registered processors in dispatch order.
func (c *Coordinator) Processors() []Processor {
	return c.processors
}

// State returns the shared state the coordinator owns.
func (c *Coordinator) State() *SharedState {
	return c.state
}

// Initialize prepares every processor, then publishes the repository
// metadata. A processor failing to initialize is fatal.
func (c *Coordinator) Initialize(meta RepositoryMetadata) error {
	c.state.Initialize(meta)

	for _, p := range c.processors {
		if err := p.Initialize(); err != nil {
			return fmt.Errorf("initialize %s: %w", p.Name(), err)
		}

		if err := p.OnRepositoryMetadata(meta); err != nil {
			return fmt.Errorf("metadata %s: %w", p.Name(), err)
		}
	}

	return nil
}

// ProcessEvent consults the gate, then invokes each processor in
// registration order, gathering emitted messages. A processor error on a
// single event is recoverable: it is logged, counted, and the loop
// continues with the remaining processors.
func (c *Coordinator) ProcessEvent(evt event.Event) ([]message.ScanMessage, error) {
	if c.cancelled.Load() {
		return nil, ErrCancelled
	}

	if c.filter != nil && c.filter.Check(evt) == DecisionSkipMemoryPressure {
		return nil, nil
	}

	c.eventsDispatched++

	var out []message.ScanMessage

	for _, p := range c.processors {
		msgs, err := p.ProcessEvent(evt)
		if err != nil {
			c.errored[p.Name()] = err
			c.logger.Warn("processor failed on event",
				"processor", p.Name(),
				"event", evt.TypeTag(),
				"error", err,
			)

			continue
		}

		out = append(out, msgs...)
	}

	return out, nil
}

// Finalize calls Finalize on every processor, even those that previously
// errored, so accumulated work is emitted. Failures are collected; the
// first failure is returned after all processors ran.
func (c *Coordinator) Finalize() ([]message.ScanMessage, error) {
	var (
		out      []message.ScanMessage
		firstErr error
	)

	for _, p := range c.processors {
		msgs, err := p.Finalize()
		if err != nil {
			c.logger.Warn("processor finalize failed", "processor", p.Name(), "error", err)

			if firstErr == nil {
				firstErr = fmt.Errorf("finalize %s: %w", p.Name(), err)
			}

			continue
		}

		out = append(out, msgs...)
	}

	return out, firstErr
}

// Cancel flags the coordinator: subsequent ProcessEvent calls return
// ErrCancelled. Finalize is still expected to run so partial results can
// be emitted.
func (c *Coordinator) Cancel() {
	c.cancelled.Store(true)
}

// IsCancelled reports whether Cancel was called.
func (c *Coordinator) IsCancelled() bool {
	return c.cancelled.Load()
}

// EventsDispatched returns how many events passed the gate.
func (c *Coordinator) EventsDispatched() uint64 {
	return c.eventsDispatched
}

// ErroredProcessors returns the names of processors that failed at least
// once, with their last error.
func (c *Coordinator) ErroredProcessors() map[string]error {
	out := make(map[string]error, len(c.errored))
	for name, err := range c.errored {
		out[name] = err
	}

	return out
}

// CollectStats returns the per-processor counters keyed by name.
func (c *Coordinator) CollectStats() map[string]Stats {
	out := make(map[string]Stats, len(c.processors))
	for _, p := range c.processors {
		out[p.Name()] = p.Stats()
	}

	return out
}

// ProcessingTimeTotal sums processing time across processors.
func (c *Coordinator) ProcessingTimeTotal() time.Duration {
	var total time.Duration
	for _, p := range c.processors {
		total += p.Stats().ProcessingTime
	}

	return total
}
