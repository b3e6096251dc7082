package processor

import (
	"sync"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/queue"
	"github.com/repolens/repolens/pkg/units"
)

// Decision is the outcome of the memory-pressure gate.
type Decision int

// Gate decisions.
const (
	DecisionProcess Decision = iota
	DecisionSkipMemoryPressure
)

// Filter tuning.
const (
	// droppableBinarySize is the size above which a binary FileScanned
	// event becomes droppable under pressure.
	droppableBinarySize = 1 * units.MiB

	// DefaultBatchWindow is the event batching window when unpressured.
	DefaultBatchWindow = 64

	// DefaultBatchFloor is the lowest the batching window shrinks to.
	DefaultBatchFloor = 8

	// cleanupPressure is the level at which the filter triggers shared-state
	// cache cleanup.
	cleanupPressure = queue.PressureHigh
)

// FilterStats counts gate activity.
type FilterStats struct {
	TotalProcessed       uint64
	DroppedUnderPressure uint64
	CacheCleanups        uint64
}

// AdvancedFilter is a thin gate over the event stream applying
// memory-pressure skipping. It performs NO content-based filtering — date,
// author and path selection happen at event creation in the traversal.
type AdvancedFilter struct {
	mu sync.Mutex

	pressure    func() queue.PressureLevel
	sharedState *SharedState

	batchWindow int
	batchFloor  int

	stats FilterStats
}

// NewAdvancedFilter builds the gate. pressure reports the queue's current
// pressure level; state receives cache-cleanup triggers and may be nil.
func NewAdvancedFilter(pressure func() queue.PressureLevel, state *SharedState) *AdvancedFilter {
	return &AdvancedFilter{
		pressure:    pressure,
		sharedState: state,
		batchWindow: DefaultBatchWindow,
		batchFloor:  DefaultBatchFloor,
	}
}

// Check gates one event. Essential events (RepositoryStarted/Completed,
// CommitDiscovered, FileChanged) are never dropped. Under pressure the
// filter drops large binary FileScanned events, halves the batching window
// down to the floor, and triggers cache cleanup at high pressure.
func (f *AdvancedFilter) Check(evt event.Event) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.TotalProcessed++

	level := queue.PressureNone
	if f.pressure != nil {
		level = f.pressure()
	}

	if level == queue.PressureNone {
		f.growWindowLocked()

		return DecisionProcess
	}

	f.shrinkWindowLocked()

	if level >= cleanupPressure && f.sharedState != nil {
		f.sharedState.ClearCache()
		f.stats.CacheCleanups++
	}

	if event.IsEssential(evt) {
		return DecisionProcess
	}

	if scanned, ok := evt.(event.FileScanned); ok {
		if scanned.FileInfo.IsBinary && scanned.FileInfo.Size > droppableBinarySize {
			f.stats.DroppedUnderPressure++

			return DecisionSkipMemoryPressure
		}
	}

	return DecisionProcess
}

// BatchWindow returns the current batching window.
func (f *AdvancedFilter) BatchWindow() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.batchWindow
}

// Stats returns a copy of the gate counters.
func (f *AdvancedFilter) Stats() FilterStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stats
}

func (f *AdvancedFilter) shrinkWindowLocked() {
	f.batchWindow /= 2
	if f.batchWindow < f.batchFloor {
		f.batchWindow = f.batchFloor
	}
}

func (f *AdvancedFilter) growWindowLocked() {
	if f.batchWindow < DefaultBatchWindow {
		f.batchWindow++
	}
}
