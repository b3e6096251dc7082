package plugins

import (
	"sort"

	"github.com/repolens/repolens/internal/bridge"
	"github.com/repolens/repolens/internal/processors/commits"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/plugin"
	"github.com/repolens/repolens/pkg/processor"
)

// CommitsName is the commits plugin id.
const CommitsName = "commits"

// Commits lists commit history and per-author contribution summaries.
type Commits struct {
	base

	collector *bridge.Collector
	processor *commits.Processor
}

// NewCommits creates the commits plugin.
func NewCommits(collector *bridge.Collector) *Commits {
	return &Commits{
		collector: collector,
		processor: commits.New(),
	}
}

// PluginInfo implements plugin.Plugin.
func (c *Commits) PluginInfo() plugin.Info {
	return plugin.Info{
		Name:         CommitsName,
		Version:      "1.0.0",
		APIVersion:   plugin.APIVersion,
		Description:  "Commit history listing and author summaries.",
		Author:       "repolens",
		Type:         plugin.Processing,
		Capabilities: []string{"history", "authors"},
	}
}

// AdvertisedFunctions implements plugin.Plugin.
func (c *Commits) AdvertisedFunctions() []plugin.Function {
	return []plugin.Function{
		{Name: "commits", Description: "List scanned commits", IsDefault: true},
		{Name: "authors", Description: "Per-author contribution summary"},
	}
}

// Processors implements Builtin.
func (c *Commits) Processors() []processor.Processor {
	return []processor.Processor{c.processor}
}

// Execute implements plugin.Plugin.
func (c *Commits) Execute(req plugin.Request) (plugin.Response, error) {
	history := c.collected()

	if req.FunctionName == "authors" {
		return plugin.Response{}, c.publish(c.authorsExport(history), req, CommitsName)
	}

	return plugin.Response{}, c.publish(c.commitsExport(history), req, CommitsName)
}

func (c *Commits) collected() []event.CommitInfo {
	msgs := c.collector.ByProducer(commits.Name)

	out := make([]event.CommitInfo, 0, len(msgs))

	for _, msg := range msgs {
		if data, ok := msg.Data.(message.CommitData); ok {
			out = append(out, data.Commit)
		}
	}

	return out
}

func (c *Commits) commitsExport(history []event.CommitInfo) *export.Builder {
	rows := make([]export.Row, 0, len(history))

	for _, commit := range history {
		rows = append(rows, export.NewRow(
			export.String(commit.ShortHash),
			export.String(commit.AuthorName),
			export.String(commit.AuthorEmail),
			export.Timestamp(commit.Timestamp),
			export.Integer(int64(len(commit.ChangedFiles))),
			export.Integer(int64(commit.Insertions)),
			export.Integer(int64(commit.Deletions)),
		))
	}

	return export.NewBuilder(CommitsName, "Commits").
		Description("Commits in scan order.").
		Columns(
			export.Column{Name: "hash", Type: export.ColString},
			export.Column{Name: "author", Type: export.ColString},
			export.Column{Name: "email", Type: export.ColString},
			export.Column{Name: "date", Type: export.ColTimestamp},
			export.Column{Name: "files", Type: export.ColInteger},
			export.Column{Name: "insertions", Type: export.ColInteger},
			export.Column{Name: "deletions", Type: export.ColInteger},
		).
		Rows(rows).
		IncludeTotals()
}

func (c *Commits) authorsExport(history []event.CommitInfo) *export.Builder {
	type authorStats struct {
		commits    int
		insertions int
		deletions  int
	}

	byAuthor := make(map[string]*authorStats)

	for _, commit := range history {
		key := commit.AuthorEmail

		stats := byAuthor[key]
		if stats == nil {
			stats = &authorStats{}
			byAuthor[key] = stats
		}

		stats.commits++
		stats.insertions += commit.Insertions
		stats.deletions += commit.Deletions
	}

	authors := make([]string, 0, len(byAuthor))
	for author := range byAuthor {
		authors = append(authors, author)
	}

	sort.Strings(authors)

	rows := make([]export.Row, 0, len(authors))

	for _, author := range authors {
		stats := byAuthor[author]
		rows = append(rows, export.NewRow(
			export.String(author),
			export.Integer(int64(stats.commits)),
			export.Integer(int64(stats.insertions)),
			export.Integer(int64(stats.deletions)),
		))
	}

	return export.NewBuilder(CommitsName, "Authors").
		Description("Per-author contribution summary.").
		Columns(
			export.Column{Name: "author", Type: export.ColString},
			export.Column{Name: "commits", Type: export.ColInteger},
			export.Column{Name: "insertions", Type: export.ColInteger},
			export.Column{Name: "deletions", Type: export.ColInteger},
		).
		Rows(rows).
		SortBy("commits", false)
}
