// Package message defines the typed results processors emit and the queue
// transports. Every message carries an approximate in-memory footprint so
// the queue can meter aggregate memory.
package message

import (
	"time"

	"github.com/repolens/repolens/pkg/event"
)

// headerOverhead approximates the fixed cost of a ScanMessage envelope.
const headerOverhead = 64

// perStringOverhead approximates the Go string header cost.
const perStringOverhead = 16

// Header identifies a message's position and origin.
type Header struct {
	Sequence   uint64
	ProducerID string
}

// Data is the closed set of message payloads.
type Data interface {
	// Footprint returns the approximate in-memory size of the payload in bytes.
	Footprint() int64

	isData()
}

// ScanMessage is one typed result travelling through the queue.
type ScanMessage struct {
	Header Header
	Data   Data
}

// New builds a ScanMessage.
func New(sequence uint64, producerID string, data Data) ScanMessage {
	return ScanMessage{
		Header: Header{Sequence: sequence, ProducerID: producerID},
		Data:   data,
	}
}

// Footprint returns the approximate total size of the message in bytes.
func (m ScanMessage) Footprint() int64 {
	size := int64(headerOverhead + len(m.Header.ProducerID))
	if m.Data != nil {
		size += m.Data.Footprint()
	}

	return size
}

// FileData wraps a scanned file.
type FileData struct {
	File event.FileInfo
}

// CommitData wraps a discovered commit.
type CommitData struct {
	Commit event.CommitInfo
}

// MetricData carries one per-file metric produced at finalize.
type MetricData struct {
	FilePath string
	Name     string
	Value    float64
	Level    string
	Details  map[string]string
}

// ChangeFrequencyData carries per-file change-frequency results.
type ChangeFrequencyData struct {
	FilePath       string
	ChangeCount    int
	AuthorCount    int
	FirstChanged   time.Time
	LastChanged    time.Time
	FrequencyScore float64
}

// FormatDistributionData carries one file-format category's share of the
// scanned tree.
type FormatDistributionData struct {
	Category       string
	FileCount      int
	TotalSize      int64
	GeneratedCount int
	Languages      map[string]int
}

// DuplicationGroupData carries one group of duplicated blocks.
type DuplicationGroupData struct {
	Files           []string
	BlockCount      int
	TotalLines      int
	TotalTokens     int
	SimilarityScore float64
	ImpactScore     float64
}

// StatisticsData carries whole-repository statistics.
type StatisticsData struct {
	TotalCommits    uint64
	TotalFiles      uint64
	TotalFileSize   int64
	UniqueAuthors   int
	FirstCommitTime time.Time
	LastCommitTime  time.Time
	AgeDays         int
	CommitsPerDay   float64
}

// Footprint implements Data.
func (d FileData) Footprint() int64 {
	return headerOverhead + stringBytes(d.File.Path, d.File.RelativePath, d.File.Extension)
}

// Footprint implements Data.
func (d CommitData) Footprint() int64 {
	size := headerOverhead + stringBytes(
		d.Commit.Hash, d.Commit.ShortHash,
		d.Commit.AuthorName, d.Commit.AuthorEmail,
		d.Commit.CommitterName, d.Commit.CommitterEmail,
		d.Commit.Message,
	)
	size += stringBytes(d.Commit.ParentHashes...)
	size += stringBytes(d.Commit.ChangedFiles...)

	return size
}

// Footprint implements Data.
func (d MetricData) Footprint() int64 {
	size := headerOverhead + stringBytes(d.FilePath, d.Name, d.Level)
	for k, v := range d.Details {
		size += stringBytes(k, v)
	}

	return size
}

// Footprint implements Data.
func (d ChangeFrequencyData) Footprint() int64 {
	return headerOverhead + stringBytes(d.FilePath)
}

// Footprint implements Data.
func (d StatisticsData) Footprint() int64 {
	return headerOverhead
}

// Footprint implements Data.
func (d FormatDistributionData) Footprint() int64 {
	size := headerOverhead + stringBytes(d.Category)
	for lang := range d.Languages {
		size += stringBytes(lang) + 8
	}

	return size
}

// Footprint implements Data.
func (d DuplicationGroupData) Footprint() int64 {
	return headerOverhead + stringBytes(d.Files...)
}

func (FileData) isData()               {}
func (CommitData) isData()             {}
func (MetricData) isData()             {}
func (ChangeFrequencyData) isData()    {}
func (StatisticsData) isData()         {}
func (FormatDistributionData) isData() {}
func (DuplicationGroupData) isData()   {}

func stringBytes(values ...string) int64 {
	var total int64
	for _, v := range values {
		total += perStringOverhead + int64(len(v))
	}

	return total
}
