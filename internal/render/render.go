// Package render turns a scan's export bundle into bytes. Every renderer
// is a pure function over the bundle and must handle every payload variant,
// including Empty; trees and raw payloads may be rendered textually.
package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/repolens/repolens/pkg/export"
)

// ErrUnknownFormat indicates no renderer supports the requested format.
var ErrUnknownFormat = errors.New("unknown output format")

// Renderer converts an export bundle into bytes.
type Renderer interface {
	// Formats lists the output formats the renderer supports.
	Formats() []export.ExportFormat

	// Render produces the output for the whole bundle.
	Render(bundle []*export.PluginDataExport) ([]byte, error)
}

// For returns the renderer for a format.
func For(format export.ExportFormat) (Renderer, error) {
	switch format {
	case export.FormatConsole:
		return NewConsole(true), nil
	case export.FormatCSV:
		return &CSV{}, nil
	case export.FormatJSON:
		return &JSON{}, nil
	case export.FormatXML:
		return &XML{}, nil
	case export.FormatYAML:
		return &YAML{}, nil
	case export.FormatMarkdown:
		return &Markdown{}, nil
	case export.FormatHTML:
		return &HTML{}, nil
	case export.FormatTemplate:
		return &Template{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// FormatNames returns every supported format name, sorted.
func FormatNames() []string {
	names := []string{
		string(export.FormatConsole),
		string(export.FormatCSV),
		string(export.FormatJSON),
		string(export.FormatXML),
		string(export.FormatYAML),
		string(export.FormatMarkdown),
		string(export.FormatHTML),
		string(export.FormatTemplate),
	}

	sort.Strings(names)

	return names
}

// table is the materialised form of one export most renderers consume:
// visible headers plus canonical string cells, with hints applied.
type table struct {
	Headers []string
	Rows    [][]string
}

// materialize flattens any payload into a table, honouring hidden columns,
// sort and limit hints, and optional row numbering.
func materialize(exp *export.PluginDataExport) table {
	switch payload := exp.Data.(type) {
	case *export.RowsPayload:
		return materializeRows(exp, payload)
	case *export.TreePayload:
		return materializeTree(payload)
	case *export.KeyValuePayload:
		return materializeKeyValue(payload)
	case *export.RawPayload:
		return table{Headers: []string{"content"}, Rows: [][]string{{payload.Text}}}
	default:
		return table{}
	}
}

func materializeRows(exp *export.PluginDataExport, payload *export.RowsPayload) table {
	visible := make([]int, 0, len(exp.Schema.Columns))
	headers := make([]string, 0, len(exp.Schema.Columns))

	for i, col := range exp.Schema.Columns {
		if col.Hidden {
			continue
		}

		visible = append(visible, i)
		headers = append(headers, col.Name)
	}

	rows := sortRows(exp, payload.Rows)

	if limit := exp.Hints.Limit; limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([][]string, 0, len(rows))

	for rowIdx, row := range rows {
		cells := make([]string, 0, len(visible)+1)

		if exp.Hints.IncludeRowNums {
			cells = append(cells, fmt.Sprintf("%d", rowIdx+1))
		}

		for _, col := range visible {
			if col < len(row.Values) {
				cells = append(cells, row.Values[col].String())
			} else {
				cells = append(cells, "")
			}
		}

		out = append(out, cells)
	}

	if exp.Hints.IncludeRowNums {
		headers = append([]string{"#"}, headers...)
	}

	return table{Headers: headers, Rows: out}
}

func sortRows(exp *export.PluginDataExport, rows []export.Row) []export.Row {
	sortCol := -1

	for i, col := range exp.Schema.Columns {
		if col.Name == exp.Hints.SortBy {
			sortCol = i

			break
		}
	}

	if sortCol < 0 {
		return rows
	}

	sorted := make([]export.Row, len(rows))
	copy(sorted, rows)

	sort.SliceStable(sorted, func(i, j int) bool {
		less := compareValues(sorted[i].Values[sortCol], sorted[j].Values[sortCol])
		if exp.Hints.SortAscending {
			return less < 0
		}

		return less > 0
	})

	return sorted
}

func compareValues(a, b export.Value) int {
	switch a.Kind() {
	case export.KindInteger, export.KindFloat, export.KindTimestamp, export.KindDuration:
		av, bv := numeric(a), numeric(b)

		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		return strings.Compare(a.String(), b.String())
	}
}

func numeric(v export.Value) float64 {
	switch v.Kind() {
	case export.KindInteger:
		return float64(v.AsInteger())
	case export.KindFloat:
		return v.AsFloat()
	case export.KindTimestamp:
		return float64(v.AsTime().Unix())
	case export.KindDuration:
		return v.AsDuration().Seconds()
	default:
		return 0
	}
}

func materializeTree(payload *export.TreePayload) table {
	var rows [][]string

	var walk func(node *export.TreeNode, depth int)

	walk = func(node *export.TreeNode, depth int) {
		if node == nil {
			return
		}

		label := strings.Repeat("  ", depth) + node.Label
		rows = append(rows, []string{label, node.Value.String()})

		for _, child := range node.Children {
			walk(child, depth+1)
		}
	}

	walk(payload.Root, 0)

	return table{Headers: []string{"node", "value"}, Rows: rows}
}

func materializeKeyValue(payload *export.KeyValuePayload) table {
	rows := make([][]string, 0, len(payload.Keys))
	for _, key := range payload.Keys {
		rows = append(rows, []string{key, payload.Values[key].String()})
	}

	return table{Headers: []string{"key", "value"}, Rows: rows}
}
