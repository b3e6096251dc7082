package plugins

import (
	"github.com/repolens/repolens/internal/bridge"
	"github.com/repolens/repolens/internal/processors/changefreq"
	"github.com/repolens/repolens/internal/processors/format"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/plugin"
	"github.com/repolens/repolens/pkg/processor"
)

// FilesName is the files plugin id.
const FilesName = "files"

// Files reports format distribution and per-file change frequency.
type Files struct {
	base

	collector *bridge.Collector

	format *format.Processor
	freq   *changefreq.Processor
}

// NewFiles creates the files plugin.
func NewFiles(collector *bridge.Collector) *Files {
	return &Files{
		collector: collector,
		format:    format.New(),
		freq:      changefreq.New(changefreq.Config{Window: changefreq.WindowAll}),
	}
}

// PluginInfo implements plugin.Plugin.
func (f *Files) PluginInfo() plugin.Info {
	return plugin.Info{
		Name:         FilesName,
		Version:      "1.0.0",
		APIVersion:   plugin.APIVersion,
		Description:  "File format distribution and change frequency.",
		Author:       "repolens",
		Type:         plugin.Processing,
		Capabilities: []string{"formats", "frequency"},
	}
}

// AdvertisedFunctions implements plugin.Plugin.
func (f *Files) AdvertisedFunctions() []plugin.Function {
	return []plugin.Function{
		{Name: "files", Description: "File format distribution", IsDefault: true},
		{Name: "frequency", Description: "Per-file change frequency"},
	}
}

// Processors implements Builtin.
func (f *Files) Processors() []processor.Processor {
	return []processor.Processor{f.freq, f.format}
}

// Execute implements plugin.Plugin.
func (f *Files) Execute(req plugin.Request) (plugin.Response, error) {
	if req.FunctionName == "frequency" {
		return plugin.Response{}, f.publish(f.frequencyExport(), req, FilesName)
	}

	if err := f.publish(f.formatExport(), req, FilesName); err != nil {
		return plugin.Response{}, err
	}

	return plugin.Response{}, f.publish(f.frequencyExport(), req, FilesName)
}

func (f *Files) formatExport() *export.Builder {
	var rows []export.Row

	for _, msg := range f.collector.ByProducer(format.Name) {
		data, ok := msg.Data.(message.FormatDistributionData)
		if !ok {
			continue
		}

		rows = append(rows, export.NewRow(
			export.String(data.Category),
			export.Integer(int64(data.FileCount)),
			export.Integer(data.TotalSize),
			export.Integer(int64(data.GeneratedCount)),
		))
	}

	return export.NewBuilder(FilesName, "File Formats").
		Description("Scanned files by format category.").
		Columns(
			export.Column{Name: "category", Type: export.ColString},
			export.Column{Name: "files", Type: export.ColInteger},
			export.Column{Name: "size", Type: export.ColInteger, FormatHint: "bytes"},
			export.Column{Name: "generated", Type: export.ColInteger},
		).
		Rows(rows).
		SortBy("files", false).
		IncludeTotals()
}

func (f *Files) frequencyExport() *export.Builder {
	var rows []export.Row

	for _, msg := range f.collector.ByProducer(changefreq.Name) {
		data, ok := msg.Data.(message.ChangeFrequencyData)
		if !ok {
			continue
		}

		rows = append(rows, export.NewRow(
			export.String(data.FilePath),
			export.Integer(int64(data.ChangeCount)),
			export.Integer(int64(data.AuthorCount)),
			export.Timestamp(data.LastChanged),
			export.Float(data.FrequencyScore),
		))
	}

	return export.NewBuilder(FilesName, "Change Frequency").
		Description("How often each file changes, weighted by recency.").
		Columns(
			export.Column{Name: "file", Type: export.ColString},
			export.Column{Name: "change_count", Type: export.ColInteger},
			export.Column{Name: "author_count", Type: export.ColInteger},
			export.Column{Name: "last_changed", Type: export.ColTimestamp},
			export.Column{Name: "frequency_score", Type: export.ColFloat},
		).
		Rows(rows).
		SortBy("frequency_score", false)
}
