// Package plugins provides the built-in plugin set: statistics, commits,
// metrics, files and export. Each processing plugin owns the analysis
// processors it needs and converts their collected messages into exports
// published on the notification bus.
package plugins

import (
	"github.com/repolens/repolens/internal/bridge"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/plugin"
	"github.com/repolens/repolens/pkg/processor"
)

// ArgScanCancelled is the Execute argument flagging a cancelled scan; its
// value "true" is copied into every export's custom hints.
const ArgScanCancelled = "scan_cancelled"

// Builtin is a plugin that contributes processors to the coordinator.
type Builtin interface {
	plugin.Plugin

	// Processors returns the analysis processors this plugin owns, in the
	// order they should be registered.
	Processors() []processor.Processor
}

// All returns every built-in plugin wired to the collector. Files comes
// before metrics so the change-frequency processor finalizes, and publishes
// its shared-bus data, before hotspot and debt read it.
func All(collector *bridge.Collector) []Builtin {
	return []Builtin{
		NewStatistics(collector),
		NewCommits(collector),
		NewFiles(collector),
		NewMetrics(collector),
	}
}

// base carries the context plumbing shared by the built-ins.
type base struct {
	ctx *plugin.Context
}

func (b *base) Initialize(ctx *plugin.Context) error {
	b.ctx = ctx

	return nil
}

func (b *base) Cleanup() error {
	return nil
}

// scanID returns the current scan id, or empty before initialization.
func (b *base) scanID() string {
	if b.ctx == nil {
		return ""
	}

	return b.ctx.ScanID
}

// publish finalizes the builder with cancellation hints applied and emits a
// DataReady notification.
func (b *base) publish(builder *export.Builder, req plugin.Request, pluginID string) error {
	if req.Args[ArgScanCancelled] == "true" {
		builder.CustomHint(export.HintScanCancelled, "true")
	}

	exp, err := builder.Build()
	if err != nil {
		return err
	}

	if b.ctx != nil && b.ctx.Bus != nil {
		b.ctx.Bus.Publish(plugin.DataReady{
			PluginID: pluginID,
			ScanID:   b.scanID(),
			Export:   exp,
		})
	}

	return nil
}
