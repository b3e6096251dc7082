// Package format implements the file-format detection processor: it
// classifies every scanned file into a format category, flags generated
// files heuristically, and aggregates distribution statistics.
package format

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/src-d/enry/v2"

	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
)

// Name is the processor identifier.
const Name = "format_detection"

// Category classifies a file's format.
type Category int

// Format categories.
const (
	SourceCode Category = iota
	Script
	Markup
	Stylesheet
	Configuration
	Documentation
	Database
	Build
	Binary
	Unknown
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case SourceCode:
		return "source_code"
	case Script:
		return "script"
	case Markup:
		return "markup"
	case Stylesheet:
		return "stylesheet"
	case Configuration:
		return "configuration"
	case Documentation:
		return "documentation"
	case Database:
		return "database"
	case Build:
		return "build"
	case Binary:
		return "binary"
	case Unknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// categoryByExtension maps lowercased extensions onto categories. Files the
// table misses fall back to enry's classifiers, then Unknown.
var categoryByExtension = map[string]Category{
	".go": SourceCode, ".rs": SourceCode, ".c": SourceCode, ".h": SourceCode,
	".cpp": SourceCode, ".hpp": SourceCode, ".java": SourceCode, ".cs": SourceCode,
	".kt": SourceCode, ".swift": SourceCode, ".scala": SourceCode, ".zig": SourceCode,

	".py": Script, ".rb": Script, ".js": Script, ".ts": Script,
	".sh": Script, ".bash": Script, ".ps1": Script, ".pl": Script, ".lua": Script,

	".html": Markup, ".htm": Markup, ".xml": Markup, ".svg": Markup,

	".css": Stylesheet, ".scss": Stylesheet, ".sass": Stylesheet, ".less": Stylesheet,

	".json": Configuration, ".yaml": Configuration, ".yml": Configuration,
	".toml": Configuration, ".ini": Configuration, ".env": Configuration,
	".conf": Configuration, ".cfg": Configuration,

	".md": Documentation, ".rst": Documentation, ".txt": Documentation, ".adoc": Documentation,

	".sql": Database, ".db": Database, ".sqlite": Database,

	".mk": Build, ".gradle": Build, ".bazel": Build, ".cmake": Build,
}

// buildFileNames matches extension-less build manifests.
var buildFileNames = map[string]struct{}{
	"makefile": {}, "dockerfile": {}, "rakefile": {}, "justfile": {}, "build": {},
}

// generatedMarkers flag paths that look machine-produced.
var generatedMarkers = []string{
	"target/", "build/", "dist/", "node_modules/", ".min.", ".lock", ".cache",
}

// Classify maps a file onto its format category.
func Classify(info event.FileInfo) Category {
	if info.IsBinary {
		return Binary
	}

	base := strings.ToLower(path.Base(info.RelativePath))
	if _, ok := buildFileNames[base]; ok {
		return Build
	}

	if category, ok := categoryByExtension[info.Extension]; ok {
		return category
	}

	switch {
	case enry.IsConfiguration(info.RelativePath):
		return Configuration
	case enry.IsDocumentation(info.RelativePath):
		return Documentation
	default:
		return Unknown
	}
}

// IsGenerated reports whether the path looks machine-produced.
func IsGenerated(relativePath string) bool {
	lower := strings.ToLower(relativePath)

	for _, marker := range generatedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return enry.IsVendor(relativePath)
}

// categoryStats accumulates one category's share.
type categoryStats struct {
	fileCount      int
	totalSize      int64
	generatedCount int
	languages      map[string]int
}

// Processor aggregates format distribution from FileScanned events.
type Processor struct {
	processor.BaseProcessor

	categories map[Category]*categoryStats
	sequence   uint64
}

// New creates a format-detection processor.
func New() *Processor {
	return &Processor{}
}

// Name implements processor.Processor.
func (p *Processor) Name() string { return Name }

// Initialize implements processor.Processor.
func (p *Processor) Initialize() error {
	p.ResetStats()
	p.categories = make(map[Category]*categoryStats)
	p.sequence = 0

	return nil
}

// OnRepositoryMetadata implements processor.Processor.
func (p *Processor) OnRepositoryMetadata(processor.RepositoryMetadata) error {
	return nil
}

// ProcessEvent implements processor.Processor.
func (p *Processor) ProcessEvent(evt event.Event) ([]message.ScanMessage, error) {
	start := time.Now()
	defer func() { p.CountEvent(time.Since(start)) }()

	scanned, ok := evt.(event.FileScanned)
	if !ok {
		return nil, nil
	}

	info := scanned.FileInfo
	category := Classify(info)

	stats := p.categories[category]
	if stats == nil {
		stats = &categoryStats{languages: make(map[string]int)}
		p.categories[category] = stats
	}

	stats.fileCount++
	stats.totalSize += info.Size

	if IsGenerated(info.RelativePath) {
		stats.generatedCount++
	}

	if lang := enry.GetLanguage(path.Base(info.RelativePath), nil); lang != "" {
		stats.languages[lang]++
	}

	return nil, nil
}

// Finalize implements processor.Processor. Emits one distribution message
// per observed category, ordered by category for determinism.
func (p *Processor) Finalize() ([]message.ScanMessage, error) {
	categories := make([]Category, 0, len(p.categories))
	for category := range p.categories {
		categories = append(categories, category)
	}

	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	msgs := make([]message.ScanMessage, 0, len(categories))

	for _, category := range categories {
		stats := p.categories[category]

		languages := make(map[string]int, len(stats.languages))
		for lang, count := range stats.languages {
			languages[lang] = count
		}

		data := message.FormatDistributionData{
			Category:       category.String(),
			FileCount:      stats.fileCount,
			TotalSize:      stats.totalSize,
			GeneratedCount: stats.generatedCount,
			Languages:      languages,
		}

		msgs = append(msgs, message.New(p.sequence, Name, data))
		p.sequence++
	}

	p.CountMessages(len(msgs))

	return msgs, nil
}
