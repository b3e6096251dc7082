package render

import (
	"bytes"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	gptable "github.com/jedib0t/go-pretty/v6/table"

	"github.com/repolens/repolens/pkg/export"
)

// Console renders the bundle as coloured terminal tables.
type Console struct {
	colored bool
}

// NewConsole creates the console renderer. colored=false disables ANSI
// colouring (--no-color).
func NewConsole(colored bool) *Console {
	return &Console{colored: colored}
}

// Formats implements Renderer.
func (c *Console) Formats() []export.ExportFormat {
	return []export.ExportFormat{export.FormatConsole}
}

// Render implements Renderer.
func (c *Console) Render(bundle []*export.PluginDataExport) ([]byte, error) {
	var buf bytes.Buffer

	title := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.Faint)

	title.DisableColor()
	dim.DisableColor()

	if c.colored {
		title.EnableColor()
		dim.EnableColor()
	}

	for i, exp := range bundle {
		if i > 0 {
			buf.WriteString("\n")
		}

		fmt.Fprintln(&buf, title.Sprint(exp.Title))

		if exp.Description != "" {
			fmt.Fprintln(&buf, dim.Sprint(exp.Description))
		}

		flat := materialize(exp)
		if len(flat.Rows) == 0 {
			fmt.Fprintln(&buf, dim.Sprint("(no data)"))

			continue
		}

		writer := gptable.NewWriter()
		writer.SetStyle(gptable.StyleLight)

		header := make(gptable.Row, len(flat.Headers))
		for col, name := range flat.Headers {
			header[col] = name
		}

		writer.AppendHeader(header)

		for _, cells := range flat.Rows {
			row := make(gptable.Row, len(cells))
			for col, cell := range cells {
				row[col] = cell
			}

			writer.AppendRow(row)
		}

		buf.WriteString(writer.Render())
		buf.WriteString("\n")

		fmt.Fprintln(&buf, dim.Sprintf("%s rows", humanize.Comma(int64(len(flat.Rows)))))
	}

	return buf.Bytes(), nil
}
