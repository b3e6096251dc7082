package processor

import (
	"sync"

	"github.com/repolens/repolens/pkg/event"
)

// entryOverhead approximates the per-entry bookkeeping cost of a cache slot.
const entryOverhead = 96

// perStringOverhead approximates the Go string header cost.
const perStringOverhead = 16

// SharedData is the closed variant set carried on the cross-processor bus.
// Keeping the set closed preserves a typed bus.
type SharedData interface {
	isSharedData()
}

// FileChangeFrequency is change-frequency data published for other processors.
type FileChangeFrequency struct {
	FilePath    string
	ChangeCount int
	AuthorCount int
	Score       float64
}

// FileComplexity is complexity data published for other processors.
type FileComplexity struct {
	FilePath   string
	Cyclomatic float64
	Cognitive  float64
	Lines      int
	Nesting    int
	Score      float64
}

// CommitImpact is per-commit impact data published for other processors.
type CommitImpact struct {
	Hash         string
	FilesTouched int
	Insertions   int
	Deletions    int
}

// CustomShared carries ad-hoc data between cooperating processors.
type CustomShared struct {
	Name     string
	DataType string
	JSON     string
}

func (FileChangeFrequency) isSharedData() {}
func (FileComplexity) isSharedData()      {}
func (CommitImpact) isSharedData()        {}
func (CustomShared) isSharedData()        {}

// CacheStats counts cache effectiveness.
type CacheStats struct {
	CommitHits   uint64
	CommitMisses uint64
	FileHits     uint64
	FileMisses   uint64
	Cleanups     uint64
}

// SharedState is the per-scan cache and data bus between processors.
// Multi-reader/single-writer: writers hold the exclusive lock. Caches grow
// only via explicit insertion; readers see the latest published value.
// The state lives for one scan and is cleared on completion or cancellation.
type SharedState struct {
	mu sync.RWMutex

	metadata    RepositoryMetadata
	initialized bool

	commitCache map[string]*event.CommitInfo
	fileCache   map[string]*event.FileInfo

	processorData map[string]SharedData

	stats       CacheStats
	memoryBytes int64
}

// NewSharedState creates an empty shared state.
func NewSharedState() *SharedState {
	return &SharedState{
		commitCache:   make(map[string]*event.CommitInfo),
		fileCache:     make(map[string]*event.FileInfo),
		processorData: make(map[string]SharedData),
	}
}

// Initialize sets the repository-wide scan parameters once at scan start.
// Later calls overwrite (a fresh scan reuses the state after Clear).
func (s *SharedState) Initialize(meta RepositoryMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata = meta
	s.initialized = true
}

// Metadata returns the scan metadata.
func (s *SharedState) Metadata() RepositoryMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.metadata
}

// CacheCommit stores a commit and returns the shared reference.
func (s *SharedState) CacheCommit(commit event.CommitInfo) *event.CommitInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached := &commit
	s.commitCache[commit.Hash] = cached
	s.memoryBytes += commitFootprint(commit)

	return cached
}

// CachedCommit returns the cached commit for the hash, if any.
// Every hit increments the hit counter.
func (s *SharedState) CachedCommit(hash string) (*event.CommitInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, ok := s.commitCache[hash]
	if ok {
		s.stats.CommitHits++
	} else {
		s.stats.CommitMisses++
	}

	return commit, ok
}

// CacheFile stores a file and returns the shared reference.
func (s *SharedState) CacheFile(info event.FileInfo) *event.FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached := &info
	s.fileCache[info.RelativePath] = cached
	s.memoryBytes += fileFootprint(info)

	return cached
}

// CachedFile returns the cached file for the repository-relative path.
func (s *SharedState) CachedFile(path string) (*event.FileInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.fileCache[path]
	if ok {
		s.stats.FileHits++
	} else {
		s.stats.FileMisses++
	}

	return info, ok
}

// ShareProcessorData publishes a value on the cross-processor bus.
func (s *SharedState) ShareProcessorData(key string, data SharedData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processorData[key] = data
}

// ProcessorData returns a value from the cross-processor bus.
func (s *SharedState) ProcessorData(key string) (SharedData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.processorData[key]

	return data, ok
}

// ProcessorDataKeys returns the bus keys in unspecified order.
func (s *SharedState) ProcessorDataKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.processorData))
	for key := range s.processorData {
		keys = append(keys, key)
	}

	return keys
}

// ClearCache drops both caches, keeping the bus and metadata.
func (s *SharedState) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitCache = make(map[string]*event.CommitInfo)
	s.fileCache = make(map[string]*event.FileInfo)
	s.memoryBytes = 0
	s.stats.Cleanups++
}

// Clear resets everything for the next scan.
func (s *SharedState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata = RepositoryMetadata{}
	s.initialized = false
	s.commitCache = make(map[string]*event.CommitInfo)
	s.fileCache = make(map[string]*event.FileInfo)
	s.processorData = make(map[string]SharedData)
	s.stats = CacheStats{}
	s.memoryBytes = 0
}

// EstimateMemoryUsage returns the approximate cache footprint in bytes.
func (s *SharedState) EstimateMemoryUsage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.memoryBytes
}

// IsMemoryUsageConcerning reports whether the estimated usage exceeds the
// threshold.
func (s *SharedState) IsMemoryUsageConcerning(thresholdBytes int64) bool {
	return thresholdBytes > 0 && s.EstimateMemoryUsage() > thresholdBytes
}

// Stats returns a copy of the cache counters.
func (s *SharedState) Stats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stats
}

func commitFootprint(c event.CommitInfo) int64 {
	size := int64(entryOverhead)
	size += stringBytes(c.Hash, c.ShortHash, c.AuthorName, c.AuthorEmail,
		c.CommitterName, c.CommitterEmail, c.Message)
	size += stringBytes(c.ParentHashes...)
	size += stringBytes(c.ChangedFiles...)

	return size
}

func fileFootprint(f event.FileInfo) int64 {
	return entryOverhead + stringBytes(f.Path, f.RelativePath, f.Extension)
}

func stringBytes(values ...string) int64 {
	var total int64
	for _, v := range values {
		total += perStringOverhead + int64(len(v))
	}

	return total
}
