package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/processors/format"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
)

func file(path, ext string, binary bool) event.FileInfo {
	return event.FileInfo{RelativePath: path, Extension: ext, IsBinary: binary}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		info event.FileInfo
		want format.Category
	}{
		{file("main.go", ".go", false), format.SourceCode},
		{file("script.py", ".py", false), format.Script},
		{file("index.html", ".html", false), format.Markup},
		{file("style.css", ".css", false), format.Stylesheet},
		{file("config.yaml", ".yaml", false), format.Configuration},
		{file("README.md", ".md", false), format.Documentation},
		{file("schema.sql", ".sql", false), format.Database},
		{file("Makefile", "", false), format.Build},
		{file("logo.png", ".png", true), format.Binary},
		{file("mystery.zzz", ".zzz", false), format.Unknown},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, format.Classify(tc.info), "path %s", tc.info.RelativePath)
	}
}

func TestIsGenerated(t *testing.T) {
	t.Parallel()

	generated := []string{
		"target/debug/main.o",
		"build/out.js",
		"dist/bundle.js",
		"node_modules/lib/index.js",
		"app.min.js",
		"Cargo.lock",
		".cache/data",
	}

	for _, path := range generated {
		assert.True(t, format.IsGenerated(path), "path %s", path)
	}

	assert.False(t, format.IsGenerated("src/main.go"))
}

func TestDistributionAggregation(t *testing.T) {
	t.Parallel()

	p := format.New()
	require.NoError(t, p.Initialize())

	files := []event.FileInfo{
		{RelativePath: "a.go", Extension: ".go", Size: 100},
		{RelativePath: "b.go", Extension: ".go", Size: 200},
		{RelativePath: "dist/c.js", Extension: ".js", Size: 50},
		{RelativePath: "README.md", Extension: ".md", Size: 10},
	}

	for _, info := range files {
		_, err := p.ProcessEvent(event.FileScanned{FileInfo: info})
		require.NoError(t, err)
	}

	msgs, err := p.Finalize()
	require.NoError(t, err)

	byCategory := make(map[string]message.FormatDistributionData)

	for _, msg := range msgs {
		data, ok := msg.Data.(message.FormatDistributionData)
		require.True(t, ok)

		byCategory[data.Category] = data
	}

	source := byCategory["source_code"]
	assert.Equal(t, 2, source.FileCount)
	assert.Equal(t, int64(300), source.TotalSize)

	script := byCategory["script"]
	assert.Equal(t, 1, script.FileCount)
	assert.Equal(t, 1, script.GeneratedCount)

	docs := byCategory["documentation"]
	assert.Equal(t, 1, docs.FileCount)
}
