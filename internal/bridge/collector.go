package bridge

import (
	"sync"

	"github.com/repolens/repolens/pkg/message"
)

// Collector accumulates drained ScanMessages grouped by producer, for the
// plugins to convert into exports once the queue has been emptied.
type Collector struct {
	mu         sync.Mutex
	byProducer map[string][]message.ScanMessage
	total      int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{byProducer: make(map[string][]message.ScanMessage)}
}

// Sink stores one message. Safe for concurrent consumers.
func (c *Collector) Sink(msg message.ScanMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	producer := msg.Header.ProducerID
	c.byProducer[producer] = append(c.byProducer[producer], msg)
	c.total++
}

// ByProducer returns the messages a producer emitted, in queue order.
func (c *Collector) ByProducer(producer string) []message.ScanMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.byProducer[producer]
	out := make([]message.ScanMessage, len(msgs))
	copy(out, msgs)

	return out
}

// Total returns the number of collected messages.
func (c *Collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.total
}

// Reset clears the collector for the next scan.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byProducer = make(map[string][]message.ScanMessage)
	c.total = 0
}
