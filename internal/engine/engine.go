// Package engine orchestrates one scan: it opens the repository, wires the
// queue, coordinator, plugins and notification bus together, drives the
// stream bridge to completion, and hands the collected bundle to the
// export plugin.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/repolens/repolens/internal/bridge"
	"github.com/repolens/repolens/internal/gitlib"
	"github.com/repolens/repolens/internal/plugins"
	"github.com/repolens/repolens/internal/scanner"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/plugin"
	"github.com/repolens/repolens/pkg/processor"
	"github.com/repolens/repolens/pkg/queue"
	"github.com/repolens/repolens/pkg/units"
)

// Queue sizing defaults. Performance mode doubles the capacity.
const (
	DefaultQueueCapacity = 4096
	DefaultMemoryCap     = 256 * units.MiB
)

// Options configures one scan.
type Options struct {
	RepositoryPath string
	Query          event.QueryParams

	// Function is the positional selector: a plugin name or an advertised
	// function name. Empty runs only default-active plugins.
	Function string

	// Format and OutputPath are handed to the export plugin.
	Format     string
	OutputPath string

	MaxMemoryBytes  int64
	QueueCapacity   int
	PerformanceMode bool
	NoColor         bool

	Backoff     queue.Backoff
	RetryBudget time.Duration

	// Registry is an optional prometheus registerer for queue metrics.
	Registry prometheus.Registerer

	Logger *slog.Logger
}

// Result summarises a finished scan.
type Result struct {
	ScanID         string
	Cancelled      bool
	Warnings       []string
	ProcessorStats map[string]processor.Stats
	QueueStats     queue.Stats
	FilterStats    processor.FilterStats
	Duration       time.Duration
}

// Run executes one complete scan.
func Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	repo, err := gitlib.Open(opts.RepositoryPath)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	defer repo.Free()

	scanID := uuid.NewString()

	q := newQueue(opts)
	state := processor.NewSharedState()
	gate := processor.NewAdvancedFilter(q.Pressure, state)
	coordinator := processor.NewCoordinator(state, gate, logger)

	collector := bridge.NewCollector()
	bus := plugin.NewBus()
	dataCoord := plugin.NewDataCoordinator(scanID)

	bus.Subscribe(func(n plugin.DataReady) error {
		dataCoord.AddData(n.PluginID, n.Export)

		return nil
	})

	registry := plugin.NewRegistry()

	builtins := plugins.All(collector)
	for _, b := range builtins {
		if err := registry.Register(b); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	exportPlugin := plugins.NewExport(dataCoord, opts.NoColor)
	if err := registry.Register(exportPlugin); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	registry.ActivateDefaults()

	functionName, err := resolveSelection(registry, opts.Function)
	if err != nil {
		return nil, err
	}

	pluginCtx := &plugin.Context{
		ScannerConfig: plugin.ScannerConfig{
			RepositoryPath:  opts.RepositoryPath,
			MaxMemoryBytes:  opts.MaxMemoryBytes,
			QueueCapacity:   opts.QueueCapacity,
			PerformanceMode: opts.PerformanceMode,
			Backoff:         opts.Backoff,
		},
		QueryParams: opts.Query,
		Bus:         bus,
		ScanID:      scanID,
	}

	if err := registry.InitializeActive(pluginCtx); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	defer registry.CleanupAll() //nolint:errcheck // cleanup errors are ignorable at shutdown.

	activeBuiltins := registerProcessors(coordinator, registry, builtins, dataCoord)

	meta := processor.RepositoryMetadata{
		RepositoryPath: opts.RepositoryPath,
		RepositoryName: filepath.Base(opts.RepositoryPath),
		ScanID:         scanID,
		ScanStart:      start.UTC(),
	}

	if err := coordinator.Initialize(meta); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	defer state.Clear()

	if err := runPipeline(ctx, opts, q, coordinator, collector, repo, logger); err != nil {
		return nil, err
	}

	cancelled := coordinator.IsCancelled()

	// The export function renders at the end of Run; executing it here too
	// would emit the report twice.
	if functionName == "export" {
		functionName = ""
	}

	if err := executePlugins(registry, activeBuiltins, functionName, cancelled); err != nil {
		return nil, err
	}

	if !dataCoord.IsComplete() {
		logger.Warn("scan incomplete", "pending", dataCoord.PendingPlugins())
	}

	warnings := collectWarnings(coordinator)
	if len(warnings) > 0 {
		if err := addWarningsExport(dataCoord, warnings, cancelled); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	if err := renderReport(registry, opts); err != nil {
		return nil, err
	}

	return &Result{
		ScanID:         scanID,
		Cancelled:      cancelled,
		Warnings:       warnings,
		ProcessorStats: coordinator.CollectStats(),
		QueueStats:     q.Snapshot(),
		FilterStats:    gate.Stats(),
		Duration:       time.Since(start),
	}, nil
}

func newQueue(opts Options) *queue.Queue {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	memoryCap := opts.MaxMemoryBytes
	if memoryCap <= 0 {
		memoryCap = DefaultMemoryCap
	}

	if opts.PerformanceMode {
		capacity *= 2
	}

	var queueOpts []queue.Option
	if opts.Registry != nil {
		queueOpts = append(queueOpts, queue.WithMetrics(queue.NewMetrics(opts.Registry)))
	}

	return queue.New(capacity, memoryCap, queueOpts...)
}

// resolveSelection activates the selected plugin and returns the function
// to execute on it, or empty when only defaults run.
func resolveSelection(registry *plugin.Registry, selector string) (string, error) {
	if selector == "" {
		return "", nil
	}

	if _, err := registry.Activate(selector); err != nil {
		return "", fmt.Errorf("engine: %w", err)
	}

	_, functionName, err := registry.ResolveFunction(selector)
	if err != nil {
		return "", fmt.Errorf("engine: %w", err)
	}

	return functionName, nil
}

// registerProcessors wires every ACTIVE builtin's processors into the
// coordinator and declares the expected reporters.
func registerProcessors(
	coordinator *processor.Coordinator,
	registry *plugin.Registry,
	builtins []plugins.Builtin,
	dataCoord *plugin.DataCoordinator,
) []plugins.Builtin {
	active := make(map[string]struct{})
	for _, name := range registry.ActiveNames() {
		active[name] = struct{}{}
	}

	var out []plugins.Builtin

	for _, b := range builtins {
		name := b.PluginInfo().Name
		if _, ok := active[name]; !ok {
			continue
		}

		for _, p := range b.Processors() {
			if err := coordinator.Register(p); err != nil {
				// Duplicate processors across plugins are a wiring bug, not a
				// runtime condition.
				panic(err)
			}
		}

		dataCoord.Expect(name)
		out = append(out, b)
	}

	return out
}

func runPipeline(
	ctx context.Context,
	opts Options,
	q *queue.Queue,
	coordinator *processor.Coordinator,
	collector *bridge.Collector,
	repo *gitlib.Repository,
	logger *slog.Logger,
) error {
	cfg := bridge.DefaultConfig()
	if opts.Backoff != (queue.Backoff{}) {
		cfg.Backoff = opts.Backoff
	}

	if opts.RetryBudget > 0 {
		cfg.RetryBudget = opts.RetryBudget
	}

	b := bridge.New(cfg, q, coordinator, logger)

	filter := event.NewFilter(opts.Query)
	events := scanner.New(repo, filter, logger).Scan(ctx)

	consumeDone := make(chan error, 1)

	go func() {
		consumeDone <- b.Consume(ctx, collector.Sink)
	}()

	if err := b.Run(ctx, events); err != nil {
		<-consumeDone

		return fmt.Errorf("engine: %w", err)
	}

	if err := <-consumeDone; err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	return nil
}

// executePlugins invokes the selected function (or every active builtin's
// default) so exports are published on the bus.
func executePlugins(registry *plugin.Registry, active []plugins.Builtin, functionName string, cancelled bool) error {
	args := map[string]string{}
	if cancelled {
		args[plugins.ArgScanCancelled] = "true"
	}

	executed := map[string]struct{}{}

	if functionName != "" {
		if _, err := registry.Execute(functionName, plugin.Request{Args: args}); err != nil {
			return fmt.Errorf("engine: %w", err)
		}

		owner, _, err := registry.ResolveFunction(functionName)
		if err == nil {
			executed[owner] = struct{}{}
		}
	}

	for _, b := range active {
		info := b.PluginInfo()
		if _, done := executed[info.Name]; done {
			continue
		}

		_, defaultFn, err := registry.ResolveFunction(info.Name)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}

		if _, err := registry.Execute(defaultFn, plugin.Request{Args: args}); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}

	return nil
}

func renderReport(registry *plugin.Registry, opts Options) error {
	args := map[string]string{}
	if opts.Format != "" {
		args[plugins.ArgFormat] = opts.Format
	}

	if opts.OutputPath != "" {
		args[plugins.ArgOutput] = opts.OutputPath
	}

	if _, err := registry.Execute("export", plugin.Request{Args: args}); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	return nil
}

// addWarningsExport appends the recoverable-error list to the bundle so it
// lands in the rendered report.
func addWarningsExport(dataCoord *plugin.DataCoordinator, warnings []string, cancelled bool) error {
	rows := make([]export.Row, 0, len(warnings))
	for _, warning := range warnings {
		rows = append(rows, export.NewRow(export.String(warning)))
	}

	builder := export.NewBuilder("warnings", "Warnings").
		Description("Recoverable errors encountered during the scan.").
		Columns(export.Column{Name: "warning", Type: export.ColString}).
		Rows(rows)

	if cancelled {
		builder.CustomHint(export.HintScanCancelled, "true")
	}

	exp, err := builder.Build()
	if err != nil {
		return err
	}

	dataCoord.AddData("warnings", exp)

	return nil
}

func collectWarnings(coordinator *processor.Coordinator) []string {
	var warnings []string

	for name, err := range coordinator.ErroredProcessors() {
		warnings = append(warnings, fmt.Sprintf("processor %s: %v", name, err))
	}

	return warnings
}
