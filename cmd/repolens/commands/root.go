// Package commands implements the repolens CLI command surface.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/repolens/repolens/internal/cli"
	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/engine"
	"github.com/repolens/repolens/internal/observability"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/plugin"
	"github.com/repolens/repolens/pkg/queue"
	"github.com/repolens/repolens/pkg/version"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitUsage = 2
)

// ErrUsage marks configuration and argument errors (exit code 2).
var ErrUsage = errors.New("usage error")

// timeNow is the reference clock for relative dates; stubbed in tests.
var timeNow = time.Now

// rootFlags holds every global flag.
type rootFlags struct {
	repository   string
	configFile   string
	since        string
	until        string
	includePaths []string
	excludePaths []string
	authors      []string
	excludeAuth  []string
	maxMemory    string
	performance  bool
	noColor      bool
	colorOn      bool
	format       string
	output       string
	exportConfig string
	logJSON      bool
	verbose      bool
}

// NewRootCommand builds the repolens root command. The single positional
// argument selects a plugin or advertised function (e.g. "commits",
// "metrics", "export"); without it only default-active plugins run.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "repolens [function]",
		Short: "Local-first git repository analytics",
		Long: "repolens streams a repository's history and working tree through " +
			"a single-pass analysis pipeline and renders the results.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			function := ""
			if len(args) > 0 {
				function = args[0]
			}

			return runScan(cmd, flags, function)
		},
	}

	root.Flags().StringVar(&flags.repository, "repository", "", "path to the repository to scan")
	root.Flags().StringVar(&flags.configFile, "config-file", "", "YAML configuration file")
	root.Flags().StringVar(&flags.since, "since", "", "only include commits after this date")
	root.Flags().StringVar(&flags.until, "until", "", "only include commits before this date")
	root.Flags().StringSliceVar(&flags.includePaths, "include-path", nil, "only include files whose path contains this substring")
	root.Flags().StringSliceVar(&flags.excludePaths, "exclude-path", nil, "exclude files whose path contains this substring")
	root.Flags().StringSliceVar(&flags.authors, "author", nil, "only include commits by this author (name or email)")
	root.Flags().StringSliceVar(&flags.excludeAuth, "exclude-author", nil, "exclude commits by this author")
	root.Flags().StringVar(&flags.maxMemory, "max-memory", "", "queue memory cap (e.g. 256M, 0.5G)")
	root.Flags().BoolVar(&flags.performance, "performance-mode", false, "trade memory for throughput")
	root.Flags().BoolVar(&flags.noColor, "no-color", false, "disable terminal colours")
	root.Flags().BoolVar(&flags.colorOn, "color", false, "force terminal colours")
	root.Flags().StringVar(&flags.format, "format", "", "output format (console, csv, json, xml, yaml, markdown, html, template)")
	root.Flags().StringVar(&flags.output, "output", "", "write the report to this file instead of stdout")
	root.Flags().StringVar(&flags.exportConfig, "export-config", "", "write the effective configuration to this file and exit")
	root.Flags().BoolVar(&flags.logJSON, "log-json", false, "log as JSON")
	root.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose logging")

	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCommand()

	err := root.Execute()
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(os.Stderr, "repolens: %v\n", err)

	if errors.Is(err, ErrUsage) {
		return ExitUsage
	}

	return ExitFatal
}

//nolint:cyclop // flag plumbing is flat but wide.
func runScan(cmd *cobra.Command, flags *rootFlags, function string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	if flags.exportConfig != "" {
		if exportErr := cfg.Export(flags.exportConfig); exportErr != nil {
			return fmt.Errorf("%w: %w", ErrUsage, exportErr)
		}

		return nil
	}

	query, err := buildQuery(cfg, flags)
	if err != nil {
		return err
	}

	maxMemory, err := cli.ParseMemorySize(cfg.Scanner.MaxMemory)
	if err != nil {
		return fmt.Errorf("%w: --max-memory: %w", ErrUsage, err)
	}

	logLevel := slog.LevelInfo
	if flags.verbose {
		logLevel = slog.LevelDebug
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:    "repolens",
		ServiceVersion: version.Version,
		LogLevel:       logLevel,
		LogJSON:        cfg.Logging.JSON || flags.logJSON,
		LogOut:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	defer func() {
		if shutdownErr := providers.Shutdown(cmd.Context()); shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	opts := engine.Options{
		RepositoryPath:  cfg.Scanner.Repository,
		Query:           query,
		Function:        function,
		Format:          cfg.Output.Format,
		OutputPath:      cfg.Output.Path,
		MaxMemoryBytes:  maxMemory,
		QueueCapacity:   cfg.Queue.Capacity,
		PerformanceMode: cfg.Scanner.PerformanceMode,
		NoColor:         flags.noColor && !flags.colorOn,
		Backoff:         buildBackoff(cfg),
		RetryBudget:     cfg.Queue.RetryBudget,
		Logger:          providers.Logger,
	}

	result, err := engine.Run(cmd.Context(), opts)
	if err != nil {
		if errors.Is(err, plugin.ErrUnknownFunction) || errors.Is(err, plugin.ErrUnknownPlugin) {
			return unknownFunctionError(function)
		}

		return err
	}

	for _, warning := range result.Warnings {
		providers.Logger.Warn("scan warning", "warning", warning)
	}

	providers.Logger.Debug("scan finished",
		"scan_id", result.ScanID,
		"cancelled", result.Cancelled,
		"duration", result.Duration,
		"dequeued", result.QueueStats.Dequeued,
	)

	return nil
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	// Explicit flags win over the config file.
	if flags.repository != "" {
		cfg.Scanner.Repository = flags.repository
	}

	if flags.maxMemory != "" {
		cfg.Scanner.MaxMemory = flags.maxMemory
	}

	if flags.performance {
		cfg.Scanner.PerformanceMode = true
	}

	if flags.format != "" {
		cfg.Output.Format = flags.format
	}

	if flags.output != "" {
		cfg.Output.Path = flags.output
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	return cfg, nil
}

func buildQuery(cfg *config.Config, flags *rootFlags) (event.QueryParams, error) {
	query := event.QueryParams{
		IncludeAuthors: flags.authors,
		ExcludeAuthors: flags.excludeAuth,
		IncludePaths:   flags.includePaths,
		ExcludePaths:   flags.excludePaths,
		IncludeBinary:  cfg.Scanner.IncludeBinary,
	}

	now := timeNow()

	if flags.since != "" {
		since, err := cli.ParseDate(flags.since, now)
		if err != nil {
			return event.QueryParams{}, fmt.Errorf("%w: --since: %w", ErrUsage, err)
		}

		query.Since = since
	}

	if flags.until != "" {
		until, err := cli.ParseDate(flags.until, now)
		if err != nil {
			return event.QueryParams{}, fmt.Errorf("%w: --until: %w", ErrUsage, err)
		}

		query.Until = until
	}

	if !query.Since.IsZero() && !query.Until.IsZero() && query.Since.After(query.Until) {
		return event.QueryParams{}, fmt.Errorf("%w: %w", ErrUsage, cli.ErrInvalidDateRange)
	}

	if cfg.Scanner.MaxFileSize != "" {
		maxSize, err := cli.ParseMemorySize(cfg.Scanner.MaxFileSize)
		if err != nil {
			return event.QueryParams{}, fmt.Errorf("%w: max file size: %w", ErrUsage, err)
		}

		query.MaxFileSize = maxSize
	}

	return query, nil
}

func buildBackoff(cfg *config.Config) queue.Backoff {
	strategy := queue.BackoffExponential

	switch cfg.Queue.BackoffStrategy {
	case "fixed":
		strategy = queue.BackoffFixed
	case "linear":
		strategy = queue.BackoffLinear
	}

	return queue.Backoff{
		Strategy:     strategy,
		InitialDelay: cfg.Queue.BackoffInitial,
		MaxDelay:     cfg.Queue.BackoffMax,
		Factor:       queue.DefaultExponentialFactor,
		Jitter:       cfg.Queue.BackoffJitter,
	}
}

// knownFunctions is the did-you-mean candidate list for unknown selectors.
var knownFunctions = []string{
	"statistics", "commits", "authors", "metrics", "hotspots",
	"duplication", "files", "frequency", "export",
}

func unknownFunctionError(function string) error {
	suggestions := cli.Suggest(function, knownFunctions)
	if len(suggestions) == 0 {
		return fmt.Errorf("%w: unknown function %q", ErrUsage, function)
	}

	return fmt.Errorf("%w: unknown function %q (did you mean %s?)",
		ErrUsage, function, strings.Join(suggestions, ", "))
}
