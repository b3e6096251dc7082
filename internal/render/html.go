package render

import (
	"bytes"
	"fmt"
	"html"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/repolens/repolens/pkg/export"
)

// maxChartBars caps the bar count so charts stay readable.
const maxChartBars = 30

// HTML renders the bundle as a self-contained report page: one table per
// export, plus an interactive bar chart for tabular exports that carry a
// numeric column.
type HTML struct{}

// Formats implements Renderer.
func (*HTML) Formats() []export.ExportFormat {
	return []export.ExportFormat{export.FormatHTML}
}

// Render implements Renderer.
func (*HTML) Render(bundle []*export.PluginDataExport) ([]byte, error) {
	page := components.NewPage()
	page.PageTitle = "repolens report"

	var tables bytes.Buffer

	for _, exp := range bundle {
		if chart := chartFor(exp); chart != nil {
			page.AddCharts(chart)
		}

		renderHTMLTable(&tables, exp)
	}

	var charted bytes.Buffer
	if err := page.Render(&charted); err != nil {
		return nil, fmt.Errorf("html render: %w", err)
	}

	out := bytes.Replace(charted.Bytes(), []byte("</body>"), append(tables.Bytes(), []byte("</body>")...), 1)

	return out, nil
}

// chartFor builds a bar chart from the first label column and the first
// numeric column of a tabular export, or nil when the shape does not fit.
func chartFor(exp *export.PluginDataExport) components.Charter {
	rows, ok := exp.Data.(*export.RowsPayload)
	if !ok || len(rows.Rows) == 0 {
		return nil
	}

	labelCol, valueCol := -1, -1

	for i, col := range exp.Schema.Columns {
		switch col.Type {
		case export.ColString:
			if labelCol < 0 {
				labelCol = i
			}
		case export.ColInteger, export.ColFloat:
			if valueCol < 0 {
				valueCol = i
			}
		}
	}

	if labelCol < 0 || valueCol < 0 {
		return nil
	}

	sorted := sortRows(exp, rows.Rows)
	if len(sorted) > maxChartBars {
		sorted = sorted[:maxChartBars]
	}

	labels := make([]string, 0, len(sorted))
	values := make([]opts.BarData, 0, len(sorted))

	for _, row := range sorted {
		labels = append(labels, row.Values[labelCol].String())
		values = append(values, opts.BarData{Value: row.Values[valueCol].AsFloat()})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: exp.Title, Subtitle: exp.Description}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "500px"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries(exp.Schema.Columns[valueCol].Name, values)

	return bar
}

func renderHTMLTable(buf *bytes.Buffer, exp *export.PluginDataExport) {
	fmt.Fprintf(buf, "<h2>%s</h2>\n", html.EscapeString(exp.Title))

	if exp.Description != "" {
		fmt.Fprintf(buf, "<p>%s</p>\n", html.EscapeString(exp.Description))
	}

	flat := materialize(exp)
	if len(flat.Rows) == 0 {
		buf.WriteString("<p><em>no data</em></p>\n")

		return
	}

	buf.WriteString("<table border=\"1\">\n<tr>")

	for _, header := range flat.Headers {
		fmt.Fprintf(buf, "<th>%s</th>", html.EscapeString(header))
	}

	buf.WriteString("</tr>\n")

	for _, row := range flat.Rows {
		buf.WriteString("<tr>")

		for _, cell := range row {
			fmt.Fprintf(buf, "<td>%s</td>", html.EscapeString(cell))
		}

		buf.WriteString("</tr>\n")
	}

	buf.WriteString("</table>\n")
}
