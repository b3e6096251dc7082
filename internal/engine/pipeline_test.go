package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/bridge"
	"github.com/repolens/repolens/internal/plugins"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/plugin"
	"github.com/repolens/repolens/pkg/processor"
	"github.com/repolens/repolens/pkg/queue"
)

var scanStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// harness wires the full pipeline around a synthetic event stream, exactly
// as Run does minus the git traversal.
type harness struct {
	queue       *queue.Queue
	coordinator *processor.Coordinator
	collector   *bridge.Collector
	registry    *plugin.Registry
	dataCoord   *plugin.DataCoordinator
	builtins    []plugins.Builtin
	stdout      *bytes.Buffer
}

func newHarness(t *testing.T, function string) *harness {
	t.Helper()

	h := &harness{
		queue:     queue.New(1024, 1<<22),
		collector: bridge.NewCollector(),
		registry:  plugin.NewRegistry(),
		dataCoord: plugin.NewDataCoordinator("scan-test"),
		stdout:    &bytes.Buffer{},
	}

	state := processor.NewSharedState()
	gate := processor.NewAdvancedFilter(h.queue.Pressure, state)
	h.coordinator = processor.NewCoordinator(state, gate, nil)

	bus := plugin.NewBus()
	bus.Subscribe(func(n plugin.DataReady) error {
		h.dataCoord.AddData(n.PluginID, n.Export)

		return nil
	})

	builtins := plugins.All(h.collector)
	for _, b := range builtins {
		require.NoError(t, h.registry.Register(b))
	}

	exportPlugin := plugins.NewExport(h.dataCoord, true)
	exportPlugin.SetStdout(h.stdout)
	require.NoError(t, h.registry.Register(exportPlugin))

	h.registry.ActivateDefaults()

	if function != "" {
		_, err := h.registry.Activate(function)
		require.NoError(t, err)
	}

	require.NoError(t, h.registry.InitializeActive(&plugin.Context{Bus: bus, ScanID: "scan-test"}))

	h.builtins = registerProcessors(h.coordinator, h.registry, builtins, h.dataCoord)

	require.NoError(t, h.coordinator.Initialize(processor.RepositoryMetadata{
		ScanID:    "scan-test",
		ScanStart: scanStart,
	}))

	return h
}

// drive pushes the events through the bridge and consumers to completion.
func (h *harness) drive(t *testing.T, events ...event.Event) {
	t.Helper()

	stream := make(chan event.Event, len(events))
	for _, evt := range events {
		stream <- evt
	}

	close(stream)

	cfg := bridge.DefaultConfig()
	b := bridge.New(cfg, h.queue, h.coordinator, nil)

	done := make(chan error, 1)
	go func() {
		done <- b.Consume(context.Background(), h.collector.Sink)
	}()

	require.NoError(t, b.Run(context.Background(), stream))
	require.NoError(t, <-done)
}

func (h *harness) execute(t *testing.T, functionName string) {
	t.Helper()

	require.NoError(t, executePlugins(h.registry, h.builtins, functionName, h.coordinator.IsCancelled()))
}

func (h *harness) exportsOf(pluginID string) []*export.PluginDataExport {
	var out []*export.PluginDataExport

	for _, exp := range h.dataCoord.AllData() {
		if exp.PluginID == pluginID {
			out = append(out, exp)
		}
	}

	return out
}

func commitEvent(index uint64, email string, files ...string) event.CommitDiscovered {
	return event.CommitDiscovered{
		Commit: event.CommitInfo{
			Hash:         "hash-" + email,
			ShortHash:    "short",
			AuthorName:   email,
			AuthorEmail:  email,
			Timestamp:    scanStart.Add(-time.Hour),
			ChangedFiles: files,
		},
		Index: index,
	}
}

func TestEmptyRepositoryScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")

	h.drive(t,
		event.RepositoryStarted{},
		event.RepositoryCompleted{},
	)
	h.execute(t, "")

	// Every expected plugin reported; the bundle contains at least the
	// statistics export with zero counts.
	assert.True(t, h.dataCoord.IsComplete())

	stats := h.exportsOf(plugins.StatisticsName)
	require.Len(t, stats, 1)

	payload, ok := stats[0].Data.(*export.KeyValuePayload)
	require.True(t, ok)
	assert.Equal(t, "0", payload.Values["total_commits"].String())
	assert.Equal(t, "0", payload.Values["total_files"].String())
}

func TestSingleCommitSingleFileScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "files")

	commit := commitEvent(0, "a@x", "m.go")

	h.drive(t,
		event.RepositoryStarted{TotalCommits: 1},
		commit,
		event.FileChanged{
			FilePath: "m.go",
			ChangeData: event.FileChangeData{
				ChangeType: event.ChangeAdded,
				NewPath:    "m.go",
				Insertions: 10,
			},
			CommitContext: commit.Commit,
		},
		event.FileScanned{FileInfo: event.FileInfo{
			RelativePath: "m.go",
			Extension:    ".go",
			Size:         100,
			LineCount:    10,
		}},
		event.RepositoryCompleted{},
	)
	h.execute(t, "files")

	require.True(t, h.dataCoord.IsComplete())

	// The change-frequency export has exactly one row for m.go.
	var freq *export.PluginDataExport

	for _, exp := range h.exportsOf(plugins.FilesName) {
		if exp.Title == "Change Frequency" {
			freq = exp
		}
	}

	require.NotNil(t, freq)

	rows, ok := freq.Data.(*export.RowsPayload)
	require.True(t, ok)
	require.Len(t, rows.Rows, 1)

	row := rows.Rows[0]
	assert.Equal(t, "m.go", row.Values[0].String())
	assert.Equal(t, int64(1), row.Values[1].AsInteger())
	assert.Equal(t, int64(1), row.Values[2].AsInteger())
	assert.Positive(t, row.Values[4].AsFloat())

	// Statistics sees one commit, one file, one author.
	stats := h.exportsOf(plugins.StatisticsName)
	require.Len(t, stats, 1)

	kv, ok := stats[0].Data.(*export.KeyValuePayload)
	require.True(t, ok)
	assert.Equal(t, "1", kv.Values["total_commits"].String())
	assert.Equal(t, "1", kv.Values["total_files"].String())
	assert.Equal(t, "1", kv.Values["total_authors"].String())
	assert.Equal(t, "0", kv.Values["age_days"].String())
}

func TestAuthorFilteredCommitsScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "commits")

	// The traversal-side filter already excluded bob: only alice's commits
	// appear as events.
	events := []event.Event{event.RepositoryStarted{TotalCommits: 5}}
	for i := range 5 {
		events = append(events, commitEvent(uint64(i), "alice@x"))
	}

	events = append(events, event.RepositoryCompleted{})

	h.drive(t, events...)
	h.execute(t, "commits")

	commits := h.exportsOf(plugins.CommitsName)
	require.Len(t, commits, 1)

	rows, ok := commits[0].Data.(*export.RowsPayload)
	require.True(t, ok)
	assert.Len(t, rows.Rows, 5)

	for _, row := range rows.Rows {
		assert.Equal(t, "alice@x", row.Values[2].String())
	}
}

func TestCancellationPublishesPartialResultsWithHint(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")

	stream := make(chan event.Event, 200)
	stream <- event.RepositoryStarted{TotalCommits: 1000}

	for i := range 100 {
		stream <- commitEvent(uint64(i), "a@x")
	}

	b := bridge.New(bridge.DefaultConfig(), h.queue, h.coordinator, nil)

	done := make(chan error, 1)
	go func() {
		done <- b.Consume(context.Background(), h.collector.Sink)
	}()

	// Cancel mid-scan, then let the stream end.
	go func() {
		time.Sleep(5 * time.Millisecond)
		h.coordinator.Cancel()
		close(stream)
	}()

	require.NoError(t, b.Run(context.Background(), stream))
	require.NoError(t, <-done)

	h.execute(t, "")

	exports := h.dataCoord.AllData()
	require.NotEmpty(t, exports)

	for _, exp := range exports {
		assert.Equal(t, "true", exp.Hints.Custom[export.HintScanCancelled],
			"plugin %s missing cancellation hint", exp.PluginID)
	}
}

func TestExportPluginRendersBundle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")

	h.drive(t,
		event.RepositoryStarted{},
		event.RepositoryCompleted{},
	)
	h.execute(t, "")

	_, err := h.registry.Execute("export", plugin.Request{
		Args: map[string]string{plugins.ArgFormat: "json"},
	})
	require.NoError(t, err)

	out := h.stdout.String()
	assert.Contains(t, out, `"plugin_id": "statistics"`)
}

func TestDeterministicReplayProducesIdenticalExports(t *testing.T) {
	t.Parallel()

	run := func() []*export.PluginDataExport {
		h := newHarness(t, "files")

		commit := commitEvent(0, "a@x", "m.go")

		h.drive(t,
			event.RepositoryStarted{TotalCommits: 1},
			commit,
			event.FileChanged{
				FilePath:      "m.go",
				ChangeData:    event.FileChangeData{ChangeType: event.ChangeAdded, NewPath: "m.go"},
				CommitContext: commit.Commit,
			},
			event.RepositoryCompleted{},
		)
		h.execute(t, "files")

		return h.dataCoord.AllData()
	}

	first := run()
	second := run()

	require.Len(t, second, len(first))

	for i := range first {
		assert.Equal(t, first[i].PluginID, second[i].PluginID)
		assert.Equal(t, first[i].Title, second[i].Title)
		assert.Equal(t, first[i].Data, second[i].Data)
	}
}

func TestWarningsExportAppended(t *testing.T) {
	t.Parallel()

	dataCoord := plugin.NewDataCoordinator("scan-w")

	require.NoError(t, addWarningsExport(dataCoord, []string{"processor x: boom"}, false))

	all := dataCoord.AllData()
	require.Len(t, all, 1)
	assert.Equal(t, "warnings", all[0].PluginID)

	rows, ok := all[0].Data.(*export.RowsPayload)
	require.True(t, ok)
	require.Len(t, rows.Rows, 1)
	assert.Contains(t, rows.Rows[0].Values[0].String(), "boom")
}

func TestResolveSelection(t *testing.T) {
	t.Parallel()

	registry := plugin.NewRegistry()

	collector := bridge.NewCollector()
	for _, b := range plugins.All(collector) {
		require.NoError(t, registry.Register(b))
	}

	fn, err := resolveSelection(registry, "authors")
	require.NoError(t, err)
	assert.Equal(t, "authors", fn)

	fn, err = resolveSelection(registry, plugins.MetricsName)
	require.NoError(t, err)
	assert.Equal(t, "metrics", fn)

	_, err = resolveSelection(registry, "bogus")
	require.Error(t, err)

	fn, err = resolveSelection(registry, "")
	require.NoError(t, err)
	assert.Empty(t, fn)
}
