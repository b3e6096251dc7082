package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/repolens/repolens/pkg/export"
)

// CSV renders each export as a comma-separated block. A plugin may override
// the delimiter with the csv_delimiter custom hint.
type CSV struct{}

// Formats implements Renderer.
func (*CSV) Formats() []export.ExportFormat {
	return []export.ExportFormat{export.FormatCSV}
}

// Render implements Renderer.
func (*CSV) Render(bundle []*export.PluginDataExport) ([]byte, error) {
	var buf bytes.Buffer

	for i, exp := range bundle {
		if i > 0 {
			buf.WriteString("\n")
		}

		fmt.Fprintf(&buf, "# %s\n", exp.Title)

		writer := csv.NewWriter(&buf)

		if delim := exp.Hints.Custom[export.HintCSVDelimiter]; len(delim) == 1 {
			writer.Comma = rune(delim[0])
		}

		flat := materialize(exp)

		if len(flat.Headers) > 0 {
			if err := writer.Write(flat.Headers); err != nil {
				return nil, fmt.Errorf("csv render: %w", err)
			}
		}

		for _, row := range flat.Rows {
			if err := writer.Write(row); err != nil {
				return nil, fmt.Errorf("csv render: %w", err)
			}
		}

		writer.Flush()

		if err := writer.Error(); err != nil {
			return nil, fmt.Errorf("csv render: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// jsonExport is the document shape of one export in JSON/YAML output.
type jsonExport struct {
	PluginID    string            `json:"plugin_id"             yaml:"plugin_id"`
	Title       string            `json:"title"                 yaml:"title"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	DataType    string            `json:"data_type"             yaml:"data_type"`
	Columns     []string          `json:"columns,omitempty"     yaml:"columns,omitempty"`
	Rows        [][]any           `json:"rows,omitempty"        yaml:"rows,omitempty"`
	Hints       map[string]string `json:"hints,omitempty"       yaml:"hints,omitempty"`
	Timestamp   int64             `json:"timestamp"             yaml:"timestamp"`
}

func toDocument(exp *export.PluginDataExport) jsonExport {
	doc := jsonExport{
		PluginID:    exp.PluginID,
		Title:       exp.Title,
		Description: exp.Description,
		DataType:    exp.DataType.String(),
		Hints:       exp.Hints.Custom,
		Timestamp:   exp.Timestamp.Unix(),
	}

	flat := materialize(exp)
	doc.Columns = flat.Headers

	for _, row := range flat.Rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}

		doc.Rows = append(doc.Rows, cells)
	}

	// Typed rows beat stringified cells when the payload is tabular.
	if rows, ok := exp.Data.(*export.RowsPayload); ok {
		doc.Rows = typedRows(exp, rows)
	}

	return doc
}

func typedRows(exp *export.PluginDataExport, payload *export.RowsPayload) [][]any {
	out := make([][]any, 0, len(payload.Rows))

	for _, row := range sortRows(exp, payload.Rows) {
		cells := make([]any, 0, len(row.Values))

		for i, value := range row.Values {
			if i < len(exp.Schema.Columns) && exp.Schema.Columns[i].Hidden {
				continue
			}

			cells = append(cells, typedCell(value))
		}

		out = append(out, cells)
	}

	if limit := exp.Hints.Limit; limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

func typedCell(value export.Value) any {
	switch value.Kind() {
	case export.KindInteger:
		return value.AsInteger()
	case export.KindFloat:
		return value.AsFloat()
	case export.KindBoolean:
		return value.AsBoolean()
	case export.KindNull:
		return nil
	default:
		return value.String()
	}
}

// JSON renders the bundle as a JSON document.
type JSON struct{}

// Formats implements Renderer.
func (*JSON) Formats() []export.ExportFormat {
	return []export.ExportFormat{export.FormatJSON}
}

// Render implements Renderer.
func (*JSON) Render(bundle []*export.PluginDataExport) ([]byte, error) {
	docs := make([]jsonExport, 0, len(bundle))
	for _, exp := range bundle {
		docs = append(docs, toDocument(exp))
	}

	out, err := json.MarshalIndent(map[string]any{"exports": docs}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json render: %w", err)
	}

	return out, nil
}

// YAML renders the bundle as a YAML document.
type YAML struct{}

// Formats implements Renderer.
func (*YAML) Formats() []export.ExportFormat {
	return []export.ExportFormat{export.FormatYAML}
}

// Render implements Renderer.
func (*YAML) Render(bundle []*export.PluginDataExport) ([]byte, error) {
	docs := make([]jsonExport, 0, len(bundle))
	for _, exp := range bundle {
		docs = append(docs, toDocument(exp))
	}

	out, err := yaml.Marshal(map[string]any{"exports": docs})
	if err != nil {
		return nil, fmt.Errorf("yaml render: %w", err)
	}

	return out, nil
}

// xmlRow wraps one row for XML marshalling.
type xmlRow struct {
	Cells []string `xml:"cell"`
}

// xmlExport wraps one export for XML marshalling.
type xmlExport struct {
	PluginID string   `xml:"plugin-id,attr"`
	Title    string   `xml:"title"`
	Columns  []string `xml:"columns>column"`
	Rows     []xmlRow `xml:"rows>row"`
}

// xmlBundle is the XML document root.
type xmlBundle struct {
	XMLName xml.Name    `xml:"report"`
	Exports []xmlExport `xml:"export"`
}

// XML renders the bundle as an XML document.
type XML struct{}

// Formats implements Renderer.
func (*XML) Formats() []export.ExportFormat {
	return []export.ExportFormat{export.FormatXML}
}

// Render implements Renderer.
func (*XML) Render(bundle []*export.PluginDataExport) ([]byte, error) {
	doc := xmlBundle{}

	for _, exp := range bundle {
		flat := materialize(exp)

		entry := xmlExport{
			PluginID: exp.PluginID,
			Title:    exp.Title,
			Columns:  flat.Headers,
		}

		for _, row := range flat.Rows {
			entry.Rows = append(entry.Rows, xmlRow{Cells: row})
		}

		doc.Exports = append(doc.Exports, entry)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("xml render: %w", err)
	}

	return append([]byte(xml.Header), out...), nil
}

// Markdown renders the bundle as GitHub-flavoured markdown tables.
type Markdown struct{}

// Formats implements Renderer.
func (*Markdown) Formats() []export.ExportFormat {
	return []export.ExportFormat{export.FormatMarkdown}
}

// Render implements Renderer.
func (*Markdown) Render(bundle []*export.PluginDataExport) ([]byte, error) {
	var buf bytes.Buffer

	for i, exp := range bundle {
		if i > 0 {
			buf.WriteString("\n")
		}

		fmt.Fprintf(&buf, "## %s\n\n", exp.Title)

		if exp.Description != "" {
			fmt.Fprintf(&buf, "%s\n\n", exp.Description)
		}

		flat := materialize(exp)
		if len(flat.Rows) == 0 {
			buf.WriteString("_no data_\n")

			continue
		}

		fmt.Fprintf(&buf, "| %s |\n", strings.Join(flat.Headers, " | "))

		separators := make([]string, len(flat.Headers))
		for col := range separators {
			separators[col] = "---"
		}

		fmt.Fprintf(&buf, "| %s |\n", strings.Join(separators, " | "))

		for _, row := range flat.Rows {
			escaped := make([]string, len(row))
			for col, cell := range row {
				escaped[col] = strings.ReplaceAll(cell, "|", "\\|")
			}

			fmt.Fprintf(&buf, "| %s |\n", strings.Join(escaped, " | "))
		}
	}

	return buf.Bytes(), nil
}

// defaultTemplate renders each export as a titled plain-text block.
const defaultTemplate = `{{range .Exports}}{{.Title}}
{{range .Rows}}{{range .}}{{.}}{{"\t"}}{{end}}
{{end}}
{{end}}`

// Template renders the bundle through a text/template. Plugins may override
// the template body with the "template" custom hint on the first export.
type Template struct {
	// Body overrides the default template when non-empty.
	Body string
}

// Formats implements Renderer.
func (*Template) Formats() []export.ExportFormat {
	return []export.ExportFormat{export.FormatTemplate}
}

// templateExport is the per-export data handed to templates.
type templateExport struct {
	PluginID string
	Title    string
	Headers  []string
	Rows     [][]string
}

// Render implements Renderer.
func (t *Template) Render(bundle []*export.PluginDataExport) ([]byte, error) {
	body := t.Body
	if body == "" {
		body = defaultTemplate
	}

	parsed, err := template.New("report").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("template render: %w", err)
	}

	data := struct{ Exports []templateExport }{}

	for _, exp := range bundle {
		flat := materialize(exp)
		data.Exports = append(data.Exports, templateExport{
			PluginID: exp.PluginID,
			Title:    exp.Title,
			Headers:  flat.Headers,
			Rows:     flat.Rows,
		})
	}

	var buf bytes.Buffer
	if err := parsed.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("template render: %w", err)
	}

	return buf.Bytes(), nil
}
