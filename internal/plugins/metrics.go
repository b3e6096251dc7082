package plugins

import (
	"strings"

	"github.com/repolens/repolens/internal/bridge"
	"github.com/repolens/repolens/internal/processors/complexity"
	"github.com/repolens/repolens/internal/processors/debt"
	"github.com/repolens/repolens/internal/processors/duplication"
	"github.com/repolens/repolens/internal/processors/hotspot"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/plugin"
	"github.com/repolens/repolens/pkg/processor"
)

// MetricsName is the metrics plugin id.
const MetricsName = "metrics"

// Metrics bundles the code-quality analyses: complexity, hotspots, debt
// and duplication. It publishes one export per analysis via the bus and
// returns an empty response.
type Metrics struct {
	base

	collector *bridge.Collector

	complexity  *complexity.Processor
	hotspot     *hotspot.Processor
	debt        *debt.Processor
	duplication *duplication.Processor
}

// NewMetrics creates the metrics plugin.
func NewMetrics(collector *bridge.Collector) *Metrics {
	return &Metrics{
		collector:   collector,
		complexity:  complexity.New(),
		hotspot:     hotspot.New(),
		debt:        debt.New(debt.DefaultConfig()),
		duplication: duplication.New(duplication.DefaultConfig()),
	}
}

// PluginInfo implements plugin.Plugin.
func (m *Metrics) PluginInfo() plugin.Info {
	return plugin.Info{
		Name:         MetricsName,
		Version:      "1.0.0",
		APIVersion:   plugin.APIVersion,
		Description:  "Code quality metrics: complexity, hotspots, technical debt and duplication.",
		Author:       "repolens",
		Type:         plugin.Processing,
		Capabilities: []string{"complexity", "hotspot", "debt", "duplication"},
	}
}

// AdvertisedFunctions implements plugin.Plugin.
func (m *Metrics) AdvertisedFunctions() []plugin.Function {
	return []plugin.Function{
		{Name: "metrics", Description: "All code quality metrics", IsDefault: true},
		{Name: "hotspots", Description: "Complexity × change-frequency ranking"},
		{Name: "duplication", Description: "Duplicate code groups"},
	}
}

// Processors implements Builtin. Complexity runs before hotspot and debt so
// its shared-bus data is published by the time they finalize.
func (m *Metrics) Processors() []processor.Processor {
	return []processor.Processor{m.complexity, m.duplication, m.hotspot, m.debt}
}

// Execute implements plugin.Plugin.
func (m *Metrics) Execute(req plugin.Request) (plugin.Response, error) {
	switch req.FunctionName {
	case "hotspots":
		return plugin.Response{}, m.publish(m.metricTable(hotspot.Name, "Hotspots"), req, MetricsName)
	case "duplication":
		return plugin.Response{}, m.publish(m.duplicationTable(), req, MetricsName)
	default:
		for _, section := range []struct {
			producer string
			title    string
		}{
			{complexity.Name, "Complexity"},
			{hotspot.Name, "Hotspots"},
			{debt.Name, "Technical Debt"},
		} {
			if err := m.publish(m.metricTable(section.producer, section.title), req, MetricsName); err != nil {
				return plugin.Response{}, err
			}
		}

		return plugin.Response{}, m.publish(m.duplicationTable(), req, MetricsName)
	}
}

// metricTable builds a tabular export from one producer's MetricData.
func (m *Metrics) metricTable(producer, title string) *export.Builder {
	var rows []export.Row

	for _, msg := range m.collector.ByProducer(producer) {
		data, ok := msg.Data.(message.MetricData)
		if !ok {
			continue
		}

		rows = append(rows, export.NewRow(
			export.String(data.FilePath),
			export.Float(data.Value),
			export.String(data.Level),
			export.String(data.Details["recommendations"]),
		))
	}

	return export.NewBuilder(MetricsName, title).
		Columns(
			export.Column{Name: "file", Type: export.ColString},
			export.Column{Name: "score", Type: export.ColFloat},
			export.Column{Name: "level", Type: export.ColString},
			export.Column{Name: "recommendations", Type: export.ColString},
		).
		Rows(rows).
		SortBy("score", false)
}

func (m *Metrics) duplicationTable() *export.Builder {
	var rows []export.Row

	for _, msg := range m.collector.ByProducer(duplication.Name) {
		data, ok := msg.Data.(message.DuplicationGroupData)
		if !ok {
			continue
		}

		rows = append(rows, export.NewRow(
			export.String(strings.Join(data.Files, ", ")),
			export.Integer(int64(data.BlockCount)),
			export.Integer(int64(data.TotalLines)),
			export.Float(data.SimilarityScore),
			export.Float(data.ImpactScore),
		))
	}

	return export.NewBuilder(MetricsName, "Duplication").
		Columns(
			export.Column{Name: "files", Type: export.ColString},
			export.Column{Name: "blocks", Type: export.ColInteger},
			export.Column{Name: "lines", Type: export.ColInteger},
			export.Column{Name: "similarity", Type: export.ColFloat},
			export.Column{Name: "impact", Type: export.ColFloat},
		).
		Rows(rows).
		SortBy("impact", false)
}
