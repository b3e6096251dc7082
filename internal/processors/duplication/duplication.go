// Package duplication implements the duplicate-code detector: sliding line
// windows are normalised, hashed, and grouped by token similarity, then
// ranked by impact.
package duplication

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/repolens/repolens/internal/processors/debt"
	"github.com/repolens/repolens/internal/spill"
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/message"
	"github.com/repolens/repolens/pkg/processor"
	"github.com/repolens/repolens/pkg/units"
)

// Name is the processor identifier.
const Name = "duplication"

// Config tunes the detector.
type Config struct {
	// MinBlockSize is the sliding window height in lines.
	MinBlockSize int

	// MaxBlockSize caps how many lines a window may span.
	MaxBlockSize int

	// SimilarityThreshold is the minimum token similarity for grouping.
	SimilarityThreshold float64

	// NormalizeWhitespace collapses runs of whitespace before hashing.
	NormalizeWhitespace bool

	// StripComments removes line comments before hashing.
	StripComments bool

	// MaxGroups caps the number of reported groups.
	MaxGroups int

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64

	// SpillThresholdBlocks spills the block index to disk once it grows past
	// this many entries. Zero disables spilling.
	SpillThresholdBlocks int
}

// DefaultConfig mirrors the detector's stock tuning.
func DefaultConfig() Config {
	return Config{
		MinBlockSize:         5,
		MaxBlockSize:         50,
		SimilarityThreshold:  0.8,
		NormalizeWhitespace:  true,
		StripComments:        true,
		MaxGroups:            50,
		MaxFileSize:          1 * units.MiB,
		SpillThresholdBlocks: 100000,
	}
}

// analysableExtensions bounds the detector to textual source and scripts.
var analysableExtensions = map[string]struct{}{
	".go": {}, ".rs": {}, ".c": {}, ".h": {}, ".cpp": {}, ".hpp": {},
	".java": {}, ".cs": {}, ".kt": {}, ".swift": {}, ".scala": {},
	".py": {}, ".rb": {}, ".js": {}, ".ts": {}, ".php": {}, ".sh": {},
}

// Block is one normalised window of lines. Fields are exported so spilled
// chunks gob-encode.
type Block struct {
	File       string
	StartLine  int
	LineCount  int
	TokenCount int
	Normalized string
}

// Group is a set of blocks judged duplicates of each other.
type Group struct {
	Blocks          []Block
	SimilarityScore float64
	TotalLines      int
	TotalTokens     int
	ImpactScore     float64
}

// InvolvedFiles returns the sorted unique file paths in the group.
func (g *Group) InvolvedFiles() []string {
	seen := make(map[string]struct{}, len(g.Blocks))
	for _, b := range g.Blocks {
		seen[b.File] = struct{}{}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}

	sort.Strings(files)

	return files
}

// Impact tuning.
const (
	impactSizeDivisor = 10.0
	impactSizeCap     = 10.0
)

// mergeCandidateCap bounds the pairwise near-duplicate merge pass.
const mergeCandidateCap = 200

// Processor extracts blocks from scanned files and groups duplicates at
// finalize. When the block index outgrows the configured threshold it is
// spilled to lz4-compressed disk chunks and merged back for finalize.
type Processor struct {
	processor.BaseProcessor

	config   Config
	blocks   *spill.Store[Block]
	readFile func(string) ([]byte, error)
	sequence uint64
}

// New creates a duplication processor.
func New(config Config) *Processor {
	if config.MinBlockSize <= 0 {
		config.MinBlockSize = DefaultConfig().MinBlockSize
	}

	if config.MaxBlockSize < config.MinBlockSize {
		config.MaxBlockSize = DefaultConfig().MaxBlockSize
	}

	return &Processor{
		config:   config,
		readFile: os.ReadFile,
	}
}

// Name implements processor.Processor.
func (p *Processor) Name() string { return Name }

// Initialize implements processor.Processor.
func (p *Processor) Initialize() error {
	p.ResetStats()

	if p.blocks != nil {
		if err := p.blocks.Close(); err != nil {
			return err
		}
	}

	p.blocks = spill.New[Block]()
	p.sequence = 0

	return nil
}

// OnRepositoryMetadata implements processor.Processor.
func (p *Processor) OnRepositoryMetadata(processor.RepositoryMetadata) error {
	return nil
}

// ProcessEvent implements processor.Processor. Reads analysable files from
// the working tree and indexes their windows by content hash.
func (p *Processor) ProcessEvent(evt event.Event) ([]message.ScanMessage, error) {
	start := time.Now()
	defer func() { p.CountEvent(time.Since(start)) }()

	scanned, ok := evt.(event.FileScanned)
	if !ok {
		return nil, nil
	}

	info := scanned.FileInfo
	if !p.analysable(info) {
		return nil, nil
	}

	content, err := p.readFile(info.Path)
	if err != nil {
		p.CountError()

		return nil, fmt.Errorf("duplication: read %s: %w", info.RelativePath, err)
	}

	// Keys are unique per (hash, file, start) so spilled chunks merge
	// without collisions; finalize regroups by the hash prefix.
	for _, block := range p.extractBlocks(info.RelativePath, string(content)) {
		key := fmt.Sprintf("%s|%s|%d", hashKey(block.Normalized), block.File, block.StartLine)
		p.blocks.Put(key, block)
	}

	if p.config.SpillThresholdBlocks > 0 && p.blocks.Len() > p.config.SpillThresholdBlocks {
		if err := p.blocks.Spill(); err != nil {
			p.CountError()

			return nil, err
		}
	}

	return nil, nil
}

// Finalize implements processor.Processor. Groups duplicate blocks, ranks
// them by impact, publishes per-file impact on the shared bus, and emits
// one message per group.
func (p *Processor) Finalize() ([]message.ScanMessage, error) {
	collected, err := p.blocks.Collect()
	if err != nil {
		return nil, err
	}

	index := make(map[string][]Block)

	for key, block := range collected {
		hash, _, _ := strings.Cut(key, "|")
		index[hash] = append(index[hash], block)
	}

	groups := p.buildGroups(index)

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].ImpactScore != groups[j].ImpactScore {
			return groups[i].ImpactScore > groups[j].ImpactScore
		}

		// Deterministic tiebreak.
		return strings.Join(groups[i].InvolvedFiles(), ",") < strings.Join(groups[j].InvolvedFiles(), ",")
	})

	if p.config.MaxGroups > 0 && len(groups) > p.config.MaxGroups {
		groups = groups[:p.config.MaxGroups]
	}

	p.publishFileImpact(groups)

	msgs := make([]message.ScanMessage, 0, len(groups))

	for _, group := range groups {
		data := message.DuplicationGroupData{
			Files:           group.InvolvedFiles(),
			BlockCount:      len(group.Blocks),
			TotalLines:      group.TotalLines,
			TotalTokens:     group.TotalTokens,
			SimilarityScore: group.SimilarityScore,
			ImpactScore:     group.ImpactScore,
		}

		msgs = append(msgs, message.New(p.sequence, Name, data))
		p.sequence++
	}

	p.CountMessages(len(msgs))

	if err := p.blocks.Close(); err != nil {
		return msgs, err
	}

	return msgs, nil
}

func (p *Processor) analysable(info event.FileInfo) bool {
	if info.IsBinary {
		return false
	}

	if p.config.MaxFileSize > 0 && info.Size > p.config.MaxFileSize {
		return false
	}

	_, ok := analysableExtensions[info.Extension]

	return ok
}

// extractBlocks slides a MinBlockSize-line window over the file.
func (p *Processor) extractBlocks(file, content string) []Block {
	lines := strings.Split(content, "\n")

	normalized := make([]string, len(lines))
	for i, line := range lines {
		normalized[i] = p.normalizeLine(line)
	}

	window := p.config.MinBlockSize
	if window > p.config.MaxBlockSize {
		window = p.config.MaxBlockSize
	}

	var blocks []Block

	for start := 0; start+window <= len(normalized); start++ {
		slice := normalized[start : start+window]

		joined := strings.Join(slice, "\n")
		if strings.TrimSpace(joined) == "" {
			continue
		}

		blocks = append(blocks, Block{
			File:       file,
			StartLine:  start + 1,
			LineCount:  window,
			TokenCount: len(strings.Fields(joined)),
			Normalized: joined,
		})
	}

	return blocks
}

func (p *Processor) normalizeLine(line string) string {
	if p.config.StripComments {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}

		if idx := strings.Index(line, "#"); idx == 0 {
			line = ""
		}
	}

	if p.config.NormalizeWhitespace {
		line = strings.Join(strings.Fields(line), " ")
	}

	return line
}

// buildGroups turns the hash index into groups: exact-hash buckets first,
// overlapping windows coalesced into maximal blocks, then a bounded
// near-duplicate merge over group representatives.
func (p *Processor) buildGroups(index map[string][]Block) []*Group {
	keys := make([]string, 0, len(index))
	for key := range index {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var groups []*Group

	for _, key := range keys {
		blocks := dedupeSamePosition(index[key])
		if len(blocks) < 2 {
			continue
		}

		sort.Slice(blocks, func(i, j int) bool {
			if blocks[i].File != blocks[j].File {
				return blocks[i].File < blocks[j].File
			}

			return blocks[i].StartLine < blocks[j].StartLine
		})

		groups = append(groups, newGroup(blocks, 1.0))
	}

	groups = coalesceWindows(groups, p.config.MaxBlockSize)
	groups = p.mergeNearGroups(groups)

	for _, g := range groups {
		g.finish()
	}

	return groups
}

// coalesceWindows merges window groups that are one-line continuations of
// each other into maximal duplicated blocks, so one 10-line duplicate does
// not report as six overlapping 5-line groups.
func coalesceWindows(groups []*Group, maxBlock int) []*Group {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Blocks[0].StartLine < groups[j].Blocks[0].StartLine
	})

	chains := make(map[string]*Group, len(groups))

	for _, g := range groups {
		predecessor := signature(g.Blocks, -1)

		chain, ok := chains[predecessor]
		if ok && chain.Blocks[0].LineCount < maxBlock {
			delete(chains, predecessor)

			for i := range chain.Blocks {
				chain.Blocks[i].LineCount++
			}

			chains[signature(g.Blocks, 0)] = chain

			continue
		}

		chains[signature(g.Blocks, 0)] = g
	}

	out := make([]*Group, 0, len(chains))
	for _, g := range chains {
		rescaleTokens(g)
		out = append(out, g)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Blocks[0].File != out[j].Blocks[0].File {
			return out[i].Blocks[0].File < out[j].Blocks[0].File
		}

		return out[i].Blocks[0].StartLine < out[j].Blocks[0].StartLine
	})

	return out
}

// signature identifies a group by its block positions, shifted by delta.
func signature(blocks []Block, delta int) string {
	var b strings.Builder

	for _, block := range blocks {
		fmt.Fprintf(&b, "%s:%d|", block.File, block.StartLine+delta)
	}

	return b.String()
}

// rescaleTokens scales window token counts to the coalesced block length.
func rescaleTokens(g *Group) {
	for i := range g.Blocks {
		block := &g.Blocks[i]
		window := strings.Count(block.Normalized, "\n") + 1

		if window > 0 && block.LineCount != window {
			block.TokenCount = block.TokenCount * block.LineCount / window
		}
	}
}

// mergeNearGroups merges groups whose representatives reach the similarity
// threshold. The pass is skipped for large group counts to bound cost.
func (p *Processor) mergeNearGroups(groups []*Group) []*Group {
	if len(groups) > mergeCandidateCap {
		return groups
	}

	differ := diffmatchpatch.New()
	merged := make([]bool, len(groups))

	var out []*Group

	for i := range groups {
		if merged[i] {
			continue
		}

		acc := groups[i]

		for j := i + 1; j < len(groups); j++ {
			if merged[j] {
				continue
			}

			similarity := tokenSimilarity(acc.Blocks[0].Normalized, groups[j].Blocks[0].Normalized)
			if similarity < p.config.SimilarityThreshold {
				continue
			}

			// Confirm with a character-level ratio before merging.
			if diffRatio(differ, acc.Blocks[0].Normalized, groups[j].Blocks[0].Normalized) < p.config.SimilarityThreshold {
				continue
			}

			acc.Blocks = append(acc.Blocks, groups[j].Blocks...)
			acc.SimilarityScore = (acc.SimilarityScore + similarity) / 2
			merged[j] = true
		}

		out = append(out, acc)
	}

	return out
}

func (p *Processor) publishFileImpact(groups []*Group) {
	state := p.SharedState()
	if state == nil {
		return
	}

	impact := make(map[string]float64)

	for _, group := range groups {
		for _, file := range group.InvolvedFiles() {
			impact[file] += group.ImpactScore
		}
	}

	for file, score := range impact {
		state.ShareProcessorData(debt.DuplicationBusKey+file, processor.CustomShared{
			Name:     Name,
			DataType: "impact",
			JSON:     fmt.Sprintf("%f", score),
		})
	}
}

func newGroup(blocks []Block, similarity float64) *Group {
	return &Group{Blocks: blocks, SimilarityScore: similarity}
}

// finish computes the aggregate statistics and the impact score:
// duplicates × min(size/10, 10) × avg_tokens_per_line × similarity.
func (g *Group) finish() {
	g.TotalLines = 0
	g.TotalTokens = 0

	for _, b := range g.Blocks {
		g.TotalLines += b.LineCount
		g.TotalTokens += b.TokenCount
	}

	if g.TotalLines == 0 {
		return
	}

	size := float64(g.Blocks[0].LineCount) / impactSizeDivisor
	if size > impactSizeCap {
		size = impactSizeCap
	}

	avgTokensPerLine := float64(g.TotalTokens) / float64(g.TotalLines)

	g.ImpactScore = float64(len(g.Blocks)) * size * avgTokensPerLine * g.SimilarityScore
}

// dedupeSamePosition drops duplicate windows at identical positions, which
// appear when a file is scanned twice in one stream.
func dedupeSamePosition(blocks []Block) []Block {
	seen := make(map[string]struct{}, len(blocks))
	out := blocks[:0]

	for _, b := range blocks {
		key := fmt.Sprintf("%s:%d", b.File, b.StartLine)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, b)
	}

	return out
}

// tokenSimilarity is the Jaccard similarity over whitespace tokens.
func tokenSimilarity(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)

	if len(aTokens) == 0 && len(bTokens) == 0 {
		return 1.0
	}

	intersection := 0

	for tok := range aTokens {
		if _, ok := bTokens[tok]; ok {
			intersection++
		}
	}

	union := len(aTokens) + len(bTokens) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}

	return set
}

// diffRatio computes a similarity ratio from character-level diffs.
func diffRatio(differ *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	if a == b {
		return 1.0
	}

	diffs := differ.DiffMain(a, b, false)
	distance := differ.DiffLevenshtein(diffs)

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}

	if longest == 0 {
		return 1.0
	}

	return 1.0 - float64(distance)/float64(longest)
}

func hashKey(normalized string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}
