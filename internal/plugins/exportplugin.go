package plugins

import (
	"fmt"
	"io"
	"os"

	"github.com/repolens/repolens/internal/render"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/plugin"
)

// ExportName is the export plugin id.
const ExportName = "export"

// Execute arguments understood by the export plugin.
const (
	ArgFormat = "format"
	ArgOutput = "output"
)

// Export is the output plugin: it renders the coordinator's bundle in the
// requested format and writes it to a file or standard output.
type Export struct {
	base

	coordinator *plugin.DataCoordinator
	stdout      io.Writer
	noColor     bool
}

// NewExport creates the export plugin writing to stdout by default.
func NewExport(coordinator *plugin.DataCoordinator, noColor bool) *Export {
	return &Export{
		coordinator: coordinator,
		stdout:      os.Stdout,
		noColor:     noColor,
	}
}

// SetStdout overrides the default output stream (tests).
func (e *Export) SetStdout(w io.Writer) {
	e.stdout = w
}

// PluginInfo implements plugin.Plugin.
func (e *Export) PluginInfo() plugin.Info {
	return plugin.Info{
		Name:            ExportName,
		Version:         "1.0.0",
		APIVersion:      plugin.APIVersion,
		Description:     "Renders the collected exports to an output format.",
		Author:          "repolens",
		Type:            plugin.Output,
		Capabilities:    render.FormatNames(),
		ActiveByDefault: true,
	}
}

// AdvertisedFunctions implements plugin.Plugin.
func (e *Export) AdvertisedFunctions() []plugin.Function {
	return []plugin.Function{
		{Name: "export", Description: "Render the scan report", IsDefault: true},
	}
}

// Execute implements plugin.Plugin: renders the bundle with the requested
// format ("console" by default) and writes it to the requested output path
// or stdout.
func (e *Export) Execute(req plugin.Request) (plugin.Response, error) {
	formatName := req.Args[ArgFormat]
	if formatName == "" {
		formatName = string(export.FormatConsole)
	}

	renderer, err := e.rendererFor(export.ExportFormat(formatName))
	if err != nil {
		return plugin.Response{}, err
	}

	out, err := renderer.Render(e.coordinator.AllData())
	if err != nil {
		return plugin.Response{}, fmt.Errorf("export: %w", err)
	}

	if path := req.Args[ArgOutput]; path != "" {
		const reportPerm = 0o644

		if err := os.WriteFile(path, out, reportPerm); err != nil {
			return plugin.Response{}, fmt.Errorf("export: write %s: %w", path, err)
		}

		return plugin.Response{}, nil
	}

	if _, err := e.stdout.Write(out); err != nil {
		return plugin.Response{}, fmt.Errorf("export: write stdout: %w", err)
	}

	return plugin.Response{}, nil
}

func (e *Export) rendererFor(format export.ExportFormat) (render.Renderer, error) {
	if format == export.FormatConsole {
		return render.NewConsole(!e.noColor), nil
	}

	renderer, err := render.For(format)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	return renderer, nil
}
