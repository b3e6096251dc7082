package export

import (
	"errors"
	"fmt"
	"time"
)

// Builder validation errors.
var (
	ErrMissingPluginID = errors.New("plugin id is required")
	ErrMissingTitle    = errors.New("title is required")
	ErrRowArity        = errors.New("row arity does not match schema columns")
)

// DataType classifies the payload shape.
type DataType int

// Payload shapes.
const (
	Tabular DataType = iota
	Hierarchical
	KeyValue
	Raw
)

// String returns the lowercase name of the data type.
func (t DataType) String() string {
	switch t {
	case Tabular:
		return "tabular"
	case Hierarchical:
		return "hierarchical"
	case KeyValue:
		return "key_value"
	case Raw:
		return "raw"
	default:
		return "unknown"
	}
}

// ColumnType declares the value kind a column holds.
type ColumnType int

// Column types.
const (
	ColString ColumnType = iota
	ColInteger
	ColFloat
	ColBoolean
	ColTimestamp
	ColDuration
)

// Column describes one schema column.
type Column struct {
	Name           string
	Type           ColumnType
	FormatHint     string
	Hidden         bool
	PreferredWidth int
}

// Schema describes a tabular payload.
type Schema struct {
	Columns  []Column
	Metadata map[string]string
}

// TreeNode is one node of a hierarchical payload.
type TreeNode struct {
	Label    string
	Value    Value
	Children []*TreeNode
}

// Payload is the closed set of export payloads. Payloads are immutable once
// published; multiple renderers may hold the same payload concurrently.
type Payload interface {
	isPayload()
}

// RowsPayload holds tabular rows.
type RowsPayload struct {
	Rows []Row
}

// TreePayload holds a hierarchical tree.
type TreePayload struct {
	Root *TreeNode
}

// KeyValuePayload holds an ordered key/value listing.
type KeyValuePayload struct {
	Keys   []string
	Values map[string]Value
}

// RawPayload holds preformatted text.
type RawPayload struct {
	Text string
}

// EmptyPayload carries no data.
type EmptyPayload struct{}

func (*RowsPayload) isPayload()     {}
func (*TreePayload) isPayload()     {}
func (*KeyValuePayload) isPayload() {}
func (*RawPayload) isPayload()      {}
func (EmptyPayload) isPayload()     {}

// ExportFormat names a renderer output format.
type ExportFormat string

// Known output formats.
const (
	FormatConsole  ExportFormat = "console"
	FormatCSV      ExportFormat = "csv"
	FormatJSON     ExportFormat = "json"
	FormatXML      ExportFormat = "xml"
	FormatYAML     ExportFormat = "yaml"
	FormatMarkdown ExportFormat = "markdown"
	FormatHTML     ExportFormat = "html"
	FormatTemplate ExportFormat = "template"
)

// HintScanCancelled is the custom-hint key set on partial results published
// after a cancelled scan. Its value is "true".
const HintScanCancelled = "scan_cancelled"

// HintCSVDelimiter lets a plugin nudge the CSV renderer's delimiter.
const HintCSVDelimiter = "csv_delimiter"

// Hints let a plugin advise renderers without binding to one.
type Hints struct {
	PreferredFormats []ExportFormat
	SortBy           string
	SortAscending    bool
	Limit            int
	IncludeTotals    bool
	IncludeRowNums   bool
	Custom           map[string]string
}

// PluginDataExport is the structured result bundle one plugin publishes at
// the end of a scan.
type PluginDataExport struct {
	PluginID    string
	Title       string
	Description string
	DataType    DataType
	Schema      Schema
	Data        Payload
	Hints       Hints
	Timestamp   time.Time
}

// Validate checks structural invariants: required fields are present and
// every tabular row has exactly one value per schema column.
func (e *PluginDataExport) Validate() error {
	if e.PluginID == "" {
		return ErrMissingPluginID
	}

	if e.Title == "" {
		return ErrMissingTitle
	}

	rows, ok := e.Data.(*RowsPayload)
	if !ok {
		return nil
	}

	for i, row := range rows.Rows {
		if len(row.Values) != len(e.Schema.Columns) {
			return fmt.Errorf("%w: row %d has %d values, schema has %d columns",
				ErrRowArity, i, len(row.Values), len(e.Schema.Columns))
		}
	}

	return nil
}
