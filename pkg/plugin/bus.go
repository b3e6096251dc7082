package plugin

import (
	"sync"

	"github.com/repolens/repolens/pkg/export"
)

// DataReady announces that a plugin's export for a scan is available.
type DataReady struct {
	PluginID string
	ScanID   string
	Export   *export.PluginDataExport
}

// Handler consumes one DataReady notification. Returning an error does not
// stop delivery to later subscribers; delivery errors are ignorable.
type Handler func(DataReady) error

// Bus is the typed notification pub-sub between plugins and the data
// coordinator. Subscribers are invoked in subscription order, and Publish
// awaits each handler before moving to the next, so a backpressured
// subscriber cannot be bypassed. The bus is constructed per scan and passed
// through Context — its lifecycle is tied to a scan, not to the process.
type Bus struct {
	mu sync.Mutex

	nextID      int
	subscribers []subscription
}

type subscription struct {
	id      int
	handler Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler and returns its subscription id.
func (b *Bus) Subscribe(handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subscribers = append(b.subscribers, subscription{id: b.nextID, handler: handler})

	return b.nextID
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.id == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)

			return
		}
	}
}

// Publish delivers the notification to every subscriber in subscription
// order, awaiting each handler. Handler errors are collected and returned
// but do not interrupt delivery.
func (b *Bus) Publish(notification DataReady) []error {
	b.mu.Lock()
	subs := make([]subscription, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	var errs []error

	for _, sub := range subs {
		if err := sub.handler(notification); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subscribers)
}
