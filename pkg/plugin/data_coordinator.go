package plugin

import (
	"sort"
	"sync"

	"github.com/repolens/repolens/pkg/export"
)

// DataCoordinator collects per-plugin exports for one scan and decides when
// the bundle is complete: every expected plugin has reported, or — when no
// expectations were declared — any data has arrived.
type DataCoordinator struct {
	mu sync.Mutex

	scanID   string
	pending  map[string][]*export.PluginDataExport
	expected map[string]struct{}
	received map[string]struct{}
}

// NewDataCoordinator creates a coordinator for the given scan.
func NewDataCoordinator(scanID string) *DataCoordinator {
	return &DataCoordinator{
		scanID:   scanID,
		pending:  make(map[string][]*export.PluginDataExport),
		expected: make(map[string]struct{}),
		received: make(map[string]struct{}),
	}
}

// ScanID returns the scan this coordinator collects for.
func (c *DataCoordinator) ScanID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.scanID
}

// Expect declares plugins that must report before the bundle is complete.
func (c *DataCoordinator) Expect(pluginIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range pluginIDs {
		c.expected[id] = struct{}{}
	}
}

// AddData records one plugin's export.
func (c *DataCoordinator) AddData(pluginID string, data *export.PluginDataExport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[pluginID] = append(c.pending[pluginID], data)
	c.received[pluginID] = struct{}{}
}

// IsComplete reports whether every expected plugin has reported, or, when
// nothing was expected, whether any data has arrived.
func (c *DataCoordinator) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.expected) == 0 {
		return len(c.received) > 0
	}

	for id := range c.expected {
		if _, ok := c.received[id]; !ok {
			return false
		}
	}

	return true
}

// PendingPlugins returns expected plugins that have not reported, sorted.
func (c *DataCoordinator) PendingPlugins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string

	for id := range c.expected {
		if _, ok := c.received[id]; !ok {
			out = append(out, id)
		}
	}

	sort.Strings(out)

	return out
}

// AllData returns every collected export, grouped by plugin in plugin-id
// order. The exports are shared immutable payloads; callers must not
// mutate them.
func (c *DataCoordinator) AllData() []*export.PluginDataExport {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var out []*export.PluginDataExport
	for _, id := range ids {
		out = append(out, c.pending[id]...)
	}

	return out
}

// Clear resets all state for the next scan.
func (c *DataCoordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = make(map[string][]*export.PluginDataExport)
	c.expected = make(map[string]struct{})
	c.received = make(map[string]struct{})
}
