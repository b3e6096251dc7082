// Package changefreq implements the per-file change-frequency processor.
package changefreq

import (
	"sort"
	"time"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
)

// Name is the processor identifier.
const Name = "change_frequency"

// TimeWindow restricts which changes contribute to the frequency score.
type TimeWindow int

// Supported windows.
const (
	WindowAll TimeWindow = iota
	WindowWeek
	WindowMonth
	WindowQuarter
	WindowYear
)

// Window durations in days (month and quarter use fixed 30-day months).
const (
	daysWeek    = 7
	daysMonth   = 30
	daysQuarter = 90
	daysYear    = 365

	hoursPerDay = 24
)

// Recency weights by days since last change.
const (
	recencyFresh   = 1.0 // Changed within a week.
	recencyRecent  = 0.7 // Within a month.
	recencyWaning  = 0.4 // Within a quarter.
	recencyDormant = 0.1 // Older.
)

// String returns the lowercase window name.
func (w TimeWindow) String() string {
	switch w {
	case WindowWeek:
		return "week"
	case WindowMonth:
		return "month"
	case WindowQuarter:
		return "quarter"
	case WindowYear:
		return "year"
	case WindowAll:
		return "all"
	default:
		return "all"
	}
}

// Days returns the window length in days, or 0 for WindowAll.
func (w TimeWindow) Days() int {
	switch w {
	case WindowWeek:
		return daysWeek
	case WindowMonth:
		return daysMonth
	case WindowQuarter:
		return daysQuarter
	case WindowYear:
		return daysYear
	default:
		return 0
	}
}

// Config tunes the processor.
type Config struct {
	Window TimeWindow
}

// fileRecord accumulates one file's change history.
type fileRecord struct {
	changeCount  int
	authors      map[string]struct{}
	firstChanged time.Time
	lastChanged  time.Time
}

// Processor tracks per-file change counts, author sets and recency, and
// scores frequency at finalize. Results are also published on the shared
// bus for the hotspot and debt processors.
type Processor struct {
	processor.BaseProcessor

	config   Config
	files    map[string]*fileRecord
	now      time.Time
	sequence uint64
}

// New creates a change-frequency processor.
func New(config Config) *Processor {
	return &Processor{config: config}
}

// Name implements processor.Processor.
func (p *Processor) Name() string { return Name }

// Initialize implements processor.Processor.
func (p *Processor) Initialize() error {
	p.ResetStats()
	p.files = make(map[string]*fileRecord)
	p.sequence = 0

	return nil
}

// OnRepositoryMetadata pins the reference time used for recency weighting,
// keeping results deterministic for a given scan.
func (p *Processor) OnRepositoryMetadata(meta processor.RepositoryMetadata) error {
	p.now = meta.ScanStart

	return nil
}

// ProcessEvent implements processor.Processor. Only FileChanged events
// contribute; renames migrate the accumulated record to the new path.
func (p *Processor) ProcessEvent(evt event.Event) ([]message.ScanMessage, error) {
	start := time.Now()
	defer func() { p.CountEvent(time.Since(start)) }()

	changed, ok := evt.(event.FileChanged)
	if !ok {
		return nil, nil
	}

	change := changed.ChangeData

	path := changed.FilePath
	if change.ChangeType == event.ChangeRenamed && change.OldPath != "" {
		if prev, moved := p.files[change.OldPath]; moved {
			delete(p.files, change.OldPath)
			p.files[path] = prev
		}
	}

	rec := p.files[path]
	if rec == nil {
		rec = &fileRecord{authors: make(map[string]struct{})}
		p.files[path] = rec
	}

	ts := changed.CommitContext.Timestamp

	rec.changeCount++
	rec.authors[changed.CommitContext.AuthorEmail] = struct{}{}

	if rec.firstChanged.IsZero() || ts.Before(rec.firstChanged) {
		rec.firstChanged = ts
	}

	if ts.After(rec.lastChanged) {
		rec.lastChanged = ts
	}

	return nil, nil
}

// Finalize implements processor.Processor. Emits one ChangeFrequencyData
// message per file, ordered by path for determinism, and publishes scores
// on the shared bus.
func (p *Processor) Finalize() ([]message.ScanMessage, error) {
	paths := make([]string, 0, len(p.files))
	for path := range p.files {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	msgs := make([]message.ScanMessage, 0, len(paths))

	for _, path := range paths {
		rec := p.files[path]
		score := p.score(rec)

		data := message.ChangeFrequencyData{
			FilePath:       path,
			ChangeCount:    rec.changeCount,
			AuthorCount:    len(rec.authors),
			FirstChanged:   rec.firstChanged,
			LastChanged:    rec.lastChanged,
			FrequencyScore: score,
		}

		msgs = append(msgs, message.New(p.sequence, Name, data))
		p.sequence++

		if state := p.SharedState(); state != nil {
			state.ShareProcessorData(BusKey(path), processor.FileChangeFrequency{
				FilePath:    path,
				ChangeCount: rec.changeCount,
				AuthorCount: len(rec.authors),
				Score:       score,
			})
		}
	}

	p.CountMessages(len(msgs))

	return msgs, nil
}

// BusKey returns the shared-state key for a file's frequency data.
func BusKey(path string) string {
	return "change_frequency:" + path
}

// score computes changes × (1 + recency_weight). Outside a bounded window,
// a file whose last change predates the cutoff scores zero.
func (p *Processor) score(rec *fileRecord) float64 {
	if rec.changeCount == 0 {
		return 0
	}

	if days := p.config.Window.Days(); days > 0 {
		cutoff := p.now.Add(-time.Duration(days) * hoursPerDay * time.Hour)
		if rec.lastChanged.Before(cutoff) {
			return 0
		}
	}

	return float64(rec.changeCount) * (1 + p.recencyWeight(rec.lastChanged))
}

func (p *Processor) recencyWeight(last time.Time) float64 {
	age := p.now.Sub(last)

	switch {
	case age <= daysWeek*hoursPerDay*time.Hour:
		return recencyFresh
	case age <= daysMonth*hoursPerDay*time.Hour:
		return recencyRecent
	case age <= daysQuarter*hoursPerDay*time.Hour:
		return recencyWaning
	default:
		return recencyDormant
	}
}
