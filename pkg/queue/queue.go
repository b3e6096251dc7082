// Package queue provides the bounded, memory-metered FIFO that decouples
// event production from consumption. It is the only inter-thread
// synchronisation point in the core pipeline.
package queue

import (
	"container/list"
	"errors"
	"sync"

	"github.com/repolens/repolens/pkg/message"
)

// Sentinel queue errors.
var (
	// ErrQueueFull indicates the enqueue would exceed the element capacity
	// or the memory cap. The caller should back off and retry.
	ErrQueueFull = errors.New("queue full")

	// ErrQueueClosed indicates the queue no longer accepts messages.
	ErrQueueClosed = errors.New("queue closed")
)

// Pressure trip points for IsUnderPressure.
const (
	memoryPressurePercent = 85
	sizePressurePercent   = 90
)

// Queue is a multi-producer, multi-consumer FIFO with a fixed element
// capacity and an aggregate memory cap. Ordering is FIFO per producer;
// interleaving between producers is unspecified.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	items      *list.List
	capacity   int
	memoryCap  int64
	memoryUsed int64
	closed     bool

	tracker *MemoryTracker
	metrics *Metrics

	enqueuedByProducer map[string]uint64
	dequeued           uint64
	rejected           uint64
}

// Option configures a Queue.
type Option func(*Queue)

// WithMetrics attaches prometheus collectors to the queue.
func WithMetrics(m *Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// New creates a queue with the given element capacity and memory cap in bytes.
func New(capacity int, memoryCap int64, opts ...Option) *Queue {
	q := &Queue{
		items:              list.New(),
		capacity:           capacity,
		memoryCap:          memoryCap,
		tracker:            NewMemoryTracker(memoryCap),
		enqueuedByProducer: make(map[string]uint64),
	}
	q.notEmpty = sync.NewCond(&q.mu)

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue appends a message. It fails with ErrQueueFull when either the
// element capacity or the memory cap would be exceeded, and ErrQueueClosed
// after Close.
func (q *Queue) Enqueue(msg message.ScanMessage) error {
	footprint := msg.Footprint()

	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return ErrQueueClosed
	}

	if q.items.Len() >= q.capacity || q.memoryUsed+footprint > q.memoryCap {
		q.rejected++
		q.mu.Unlock()

		if q.metrics != nil {
			q.metrics.rejections.Inc()
		}

		return ErrQueueFull
	}

	q.items.PushBack(msg)
	q.memoryUsed += footprint
	q.enqueuedByProducer[msg.Header.ProducerID]++

	size := q.items.Len()
	used := q.memoryUsed
	q.mu.Unlock()

	q.tracker.Add(footprint)
	q.notEmpty.Signal()

	if q.metrics != nil {
		q.metrics.depth.Set(float64(size))
		q.metrics.memoryBytes.Set(float64(used))
		q.metrics.enqueued.WithLabelValues(msg.Header.ProducerID).Inc()
	}

	return nil
}

// TryDequeue removes the oldest message without blocking.
func (q *Queue) TryDequeue() (message.ScanMessage, bool) {
	q.mu.Lock()

	front := q.items.Front()
	if front == nil {
		q.mu.Unlock()

		return message.ScanMessage{}, false
	}

	msg := q.removeLocked(front)
	q.mu.Unlock()

	q.afterDequeue(msg)

	return msg, true
}

// Dequeue blocks until a message arrives or the queue is closed AND drained,
// in which case it returns ErrQueueClosed. Every successfully enqueued
// message is observable by a dequeue before shutdown completes.
func (q *Queue) Dequeue() (message.ScanMessage, error) {
	q.mu.Lock()

	for q.items.Len() == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	front := q.items.Front()
	if front == nil {
		q.mu.Unlock()

		return message.ScanMessage{}, ErrQueueClosed
	}

	msg := q.removeLocked(front)
	q.mu.Unlock()

	q.afterDequeue(msg)

	return msg, nil
}

// Close stops accepting messages and releases pending dequeuers once the
// queue drains. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.notEmpty.Broadcast()
}

// IsClosed reports whether Close has been called.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// Size returns the current element count.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Len()
}

// MemoryUsed returns the current aggregate footprint in bytes.
func (q *Queue) MemoryUsed() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.memoryUsed
}

// MemoryUsagePercent returns memory_used/memory_cap in percent.
func (q *Queue) MemoryUsagePercent() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.memoryCap <= 0 {
		return 0
	}

	return float64(q.memoryUsed) / float64(q.memoryCap) * percentDivisor
}

// IsUnderPressure reports whether memory exceeds 85% of the cap or size
// exceeds 90% of the capacity. Producers must consult this and apply the
// configured backoff before retrying.
func (q *Queue) IsUnderPressure() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.memoryCap > 0 && q.memoryUsed*percentDivisor > q.memoryCap*memoryPressurePercent {
		return true
	}

	return q.capacity > 0 && q.items.Len()*percentDivisor > q.capacity*sizePressurePercent
}

// Pressure returns the graded pressure level of current memory usage.
func (q *Queue) Pressure() PressureLevel {
	return q.tracker.Pressure()
}

// Tracker exposes the queue's memory tracker.
func (q *Queue) Tracker() *MemoryTracker {
	return q.tracker
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Size               int
	Capacity           int
	MemoryUsed         int64
	MemoryCap          int64
	Dequeued           uint64
	Rejected           uint64
	EnqueuedByProducer map[string]uint64
}

// Snapshot returns the current queue counters.
func (q *Queue) Snapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	byProducer := make(map[string]uint64, len(q.enqueuedByProducer))
	for producer, count := range q.enqueuedByProducer {
		byProducer[producer] = count
	}

	return Stats{
		Size:               q.items.Len(),
		Capacity:           q.capacity,
		MemoryUsed:         q.memoryUsed,
		MemoryCap:          q.memoryCap,
		Dequeued:           q.dequeued,
		Rejected:           q.rejected,
		EnqueuedByProducer: byProducer,
	}
}

// removeLocked unlinks an element and updates accounting. Callers hold q.mu.
func (q *Queue) removeLocked(elem *list.Element) message.ScanMessage {
	msg, _ := q.items.Remove(elem).(message.ScanMessage)
	q.memoryUsed -= msg.Footprint()

	if q.memoryUsed < 0 {
		q.memoryUsed = 0
	}

	q.dequeued++

	return msg
}

func (q *Queue) afterDequeue(msg message.ScanMessage) {
	q.tracker.Remove(msg.Footprint())

	if q.metrics != nil {
		q.mu.Lock()
		size := q.items.Len()
		used := q.memoryUsed
		q.mu.Unlock()

		q.metrics.depth.Set(float64(size))
		q.metrics.memoryBytes.Set(float64(used))
		q.metrics.dequeued.Inc()
	}
}
