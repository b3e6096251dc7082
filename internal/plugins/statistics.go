package plugins

import (
	"github.com/repolens/repolens/internal/bridge"
	"github.com/repolens/repolens/internal/processors/stats"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/plugin"
	"github.com/repolens/repolens/pkg/processor"
)

// StatisticsName is the statistics plugin id.
const StatisticsName = "statistics"

// Statistics is always active: it publishes whole-repository totals even
// for an empty scan.
type Statistics struct {
	base

	collector *bridge.Collector
	processor *stats.Processor
}

// NewStatistics creates the statistics plugin.
func NewStatistics(collector *bridge.Collector) *Statistics {
	return &Statistics{
		collector: collector,
		processor: stats.New(),
	}
}

// PluginInfo implements plugin.Plugin.
func (s *Statistics) PluginInfo() plugin.Info {
	return plugin.Info{
		Name:            StatisticsName,
		Version:         "1.0.0",
		APIVersion:      plugin.APIVersion,
		Description:     "Whole-repository statistics: totals, authors, age and commit rate.",
		Author:          "repolens",
		Type:            plugin.Processing,
		Capabilities:    []string{"statistics"},
		ActiveByDefault: true,
	}
}

// AdvertisedFunctions implements plugin.Plugin.
func (s *Statistics) AdvertisedFunctions() []plugin.Function {
	return []plugin.Function{
		{Name: "statistics", Description: "Repository-wide scan statistics", IsDefault: true},
	}
}

// Processors implements Builtin.
func (s *Statistics) Processors() []processor.Processor {
	return []processor.Processor{s.processor}
}

// Execute implements plugin.Plugin: builds a key/value export from the
// collected statistics message and publishes it on the bus.
func (s *Statistics) Execute(req plugin.Request) (plugin.Response, error) {
	data := message.StatisticsData{}

	for _, msg := range s.collector.ByProducer(stats.Name) {
		if d, ok := msg.Data.(message.StatisticsData); ok {
			data = d
		}
	}

	keys := []string{
		"total_commits", "total_files", "total_file_size",
		"total_authors", "first_commit", "last_commit",
		"age_days", "commits_per_day",
	}

	values := map[string]export.Value{
		"total_commits":   export.Integer(int64(data.TotalCommits)),
		"total_files":     export.Integer(int64(data.TotalFiles)),
		"total_file_size": export.Integer(data.TotalFileSize),
		"total_authors":   export.Integer(int64(data.UniqueAuthors)),
		"first_commit":    timestampOrNull(data),
		"last_commit":     lastCommitOrNull(data),
		"age_days":        export.Integer(int64(data.AgeDays)),
		"commits_per_day": export.Float(data.CommitsPerDay),
	}

	builder := export.NewBuilder(StatisticsName, "Repository Statistics").
		Description("Aggregate statistics for the scanned repository.").
		KeyValues(keys, values).
		PreferredFormats(export.FormatConsole, export.FormatJSON)

	if err := s.publish(builder, req, StatisticsName); err != nil {
		return plugin.Response{}, err
	}

	return plugin.Response{}, nil
}

func timestampOrNull(data message.StatisticsData) export.Value {
	if data.FirstCommitTime.IsZero() {
		return export.Null()
	}

	return export.Timestamp(data.FirstCommitTime)
}

func lastCommitOrNull(data message.StatisticsData) export.Value {
	if data.LastCommitTime.IsZero() {
		return export.Null()
	}

	return export.Timestamp(data.LastCommitTime)
}
