// Package bridge couples the scanner's event stream to the bounded queue
// and the processor coordinator, applying backpressure on the producer side
// and fanning consumed messages out to collectors.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
	"github.com/repolens/repolens/pkg/queue"
)

// ErrRetryBudgetExhausted indicates a message could not be enqueued within
// the total-wait budget. This is fatal: the queue is closed and the scan
// aborts.
var ErrRetryBudgetExhausted = errors.New("backoff retry budget exhausted")

// DefaultRetryBudget is the total wait allowed for a single message.
const DefaultRetryBudget = 30 * time.Second

// minRetryDelay backstops a zero backoff delay so a full queue is not
// hammered in a tight loop.
const minRetryDelay = time.Millisecond

// Config tunes the bridge.
type Config struct {
	Backoff     queue.Backoff
	RetryBudget time.Duration
	Consumers   int
}

// DefaultConfig returns the stock bridge tuning.
func DefaultConfig() Config {
	return Config{
		Backoff:     queue.DefaultBackoff(),
		RetryBudget: DefaultRetryBudget,
		Consumers:   1,
	}
}

// Bridge drives events through the coordinator into the queue.
type Bridge struct {
	config      Config
	queue       *queue.Queue
	coordinator *processor.Coordinator
	logger      *slog.Logger
}

// New creates a bridge. logger may be nil.
func New(config Config, q *queue.Queue, coordinator *processor.Coordinator, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if config.RetryBudget <= 0 {
		config.RetryBudget = DefaultRetryBudget
	}

	if config.Consumers <= 0 {
		config.Consumers = 1
	}

	return &Bridge{
		config:      config,
		queue:       q,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Run consumes the event stream to completion: every event is gated and
// dispatched by the coordinator, produced messages are enqueued with
// backoff, and on RepositoryCompleted the coordinator finalizes, the
// finalization messages are enqueued, and the queue is closed.
//
// Run always closes the queue before returning.
func (b *Bridge) Run(ctx context.Context, events <-chan event.Event) error {
	defer b.queue.Close()

	for {
		select {
		case <-ctx.Done():
			b.coordinator.Cancel()

			return fmt.Errorf("bridge: %w", ctx.Err())
		case evt, ok := <-events:
			if !ok {
				// Stream ended without RepositoryCompleted: still finalize so
				// accumulated work is emitted.
				return b.finalize(ctx)
			}

			done, err := b.handleEvent(ctx, evt)
			if err != nil {
				return err
			}

			if done {
				return nil
			}
		}
	}
}

// handleEvent dispatches one event. It reports done=true after the
// completion event has been fully handled.
func (b *Bridge) handleEvent(ctx context.Context, evt event.Event) (bool, error) {
	msgs, err := b.coordinator.ProcessEvent(evt)

	switch {
	case errors.Is(err, processor.ErrCancelled):
		// Processors already inside ProcessEvent ran to completion;
		// finalize still runs so partial results are emitted.
		return true, b.finalize(ctx)
	case err != nil:
		return false, fmt.Errorf("bridge: process event: %w", err)
	}

	if err := b.enqueueAll(ctx, msgs); err != nil {
		return false, err
	}

	if _, completed := evt.(event.RepositoryCompleted); completed {
		return true, b.finalize(ctx)
	}

	return false, nil
}

func (b *Bridge) finalize(ctx context.Context) error {
	msgs, err := b.coordinator.Finalize()
	if err != nil {
		b.logger.Warn("finalize reported errors", "error", err)
	}

	return b.enqueueAll(ctx, msgs)
}

// enqueueAll enqueues messages, applying the configured backoff on
// QueueFull. Exceeding the per-message retry budget escalates to a fatal
// error.
func (b *Bridge) enqueueAll(ctx context.Context, msgs []message.ScanMessage) error {
	for _, msg := range msgs {
		if err := b.enqueueWithBackoff(ctx, msg); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bridge) enqueueWithBackoff(ctx context.Context, msg message.ScanMessage) error {
	var waited time.Duration

	for {
		err := b.queue.Enqueue(msg)

		switch {
		case err == nil:
			return nil
		case errors.Is(err, queue.ErrQueueClosed):
			// Cancellation: accepted messages remain observable; this one is
			// dropped with the scan.
			return nil
		case !errors.Is(err, queue.ErrQueueFull):
			return fmt.Errorf("bridge: enqueue: %w", err)
		}

		delay := b.config.Backoff.ShouldBackoff(b.queue.Pressure())
		if delay < minRetryDelay {
			delay = minRetryDelay
		}

		if waited+delay > b.config.RetryBudget {
			b.queue.Close()

			return fmt.Errorf("bridge: %w after %v", ErrRetryBudgetExhausted, waited)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("bridge: %w", ctx.Err())
		case <-time.After(delay):
			waited += delay
		}
	}
}

// Consume drains the queue with the configured number of consumers until it
// is closed and empty, delivering every message to sink. Per-producer order
// is preserved only with a single consumer; the default tuning uses one.
func (b *Bridge) Consume(ctx context.Context, sink func(message.ScanMessage)) error {
	group, _ := errgroup.WithContext(ctx)

	for range b.config.Consumers {
		group.Go(func() error {
			for {
				msg, err := b.queue.Dequeue()
				if errors.Is(err, queue.ErrQueueClosed) {
					return nil
				}

				if err != nil {
					return fmt.Errorf("bridge: dequeue: %w", err)
				}

				sink(msg)
			}
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	return nil
}
