package export

import "time"

// Builder assembles a PluginDataExport. PluginID and Title are required;
// Build fails loudly when either is missing. Everything else defaults.
type Builder struct {
	export PluginDataExport
	err    error
}

// NewBuilder starts a builder for the given plugin.
func NewBuilder(pluginID, title string) *Builder {
	return &Builder{
		export: PluginDataExport{
			PluginID: pluginID,
			Title:    title,
			Data:     EmptyPayload{},
			Hints: Hints{
				SortAscending: true,
				Custom:        map[string]string{},
			},
		},
	}
}

// Description sets the human-readable description.
func (b *Builder) Description(desc string) *Builder {
	b.export.Description = desc

	return b
}

// Columns declares the tabular schema.
func (b *Builder) Columns(columns ...Column) *Builder {
	b.export.Schema.Columns = columns

	return b
}

// SchemaMetadata attaches free-form schema metadata.
func (b *Builder) SchemaMetadata(metadata map[string]string) *Builder {
	b.export.Schema.Metadata = metadata

	return b
}

// Rows sets a tabular payload.
func (b *Builder) Rows(rows []Row) *Builder {
	b.export.DataType = Tabular
	b.export.Data = &RowsPayload{Rows: rows}

	return b
}

// Tree sets a hierarchical payload.
func (b *Builder) Tree(root *TreeNode) *Builder {
	b.export.DataType = Hierarchical
	b.export.Data = &TreePayload{Root: root}

	return b
}

// KeyValues sets a key/value payload preserving key order.
func (b *Builder) KeyValues(keys []string, values map[string]Value) *Builder {
	b.export.DataType = KeyValue
	b.export.Data = &KeyValuePayload{Keys: keys, Values: values}

	return b
}

// RawText sets a raw text payload.
func (b *Builder) RawText(text string) *Builder {
	b.export.DataType = Raw
	b.export.Data = &RawPayload{Text: text}

	return b
}

// PreferredFormats advises renderers.
func (b *Builder) PreferredFormats(formats ...ExportFormat) *Builder {
	b.export.Hints.PreferredFormats = formats

	return b
}

// SortBy sets the preferred sort column and direction.
func (b *Builder) SortBy(column string, ascending bool) *Builder {
	b.export.Hints.SortBy = column
	b.export.Hints.SortAscending = ascending

	return b
}

// Limit caps the preferred number of rendered rows.
func (b *Builder) Limit(limit int) *Builder {
	b.export.Hints.Limit = limit

	return b
}

// IncludeTotals asks renderers for a totals row.
func (b *Builder) IncludeTotals() *Builder {
	b.export.Hints.IncludeTotals = true

	return b
}

// IncludeRowNumbers asks renderers for row numbering.
func (b *Builder) IncludeRowNumbers() *Builder {
	b.export.Hints.IncludeRowNums = true

	return b
}

// CustomHint attaches a renderer-specific hint.
func (b *Builder) CustomHint(key, value string) *Builder {
	b.export.Hints.Custom[key] = value

	return b
}

// Timestamp overrides the export timestamp (defaults to now at Build).
func (b *Builder) Timestamp(t time.Time) *Builder {
	b.export.Timestamp = t

	return b
}

// Build validates and returns the export.
func (b *Builder) Build() (*PluginDataExport, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.export.Timestamp.IsZero() {
		b.export.Timestamp = time.Now().UTC()
	}

	result := b.export
	if err := result.Validate(); err != nil {
		return nil, err
	}

	return &result, nil
}
