// Package spill provides a disk-backed overflow store for accumulated
// analysis data. Under memory pressure a processor spills its in-memory
// buffer to an lz4-compressed gob file and keeps scanning; Collect merges
// every spilled chunk back for finalize.
package spill

import (
	"encoding/gob"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// Store wraps a map[string]V with transparent lz4-compressed disk spilling.
type Store[V any] struct {
	current map[string]V
	dir     string // Temp directory; created lazily on first Spill.
	spillN  int
}

// New creates a Store with an empty in-memory buffer.
func New[V any]() *Store[V] {
	return &Store[V]{current: make(map[string]V)}
}

// Put stores a key-value pair in the in-memory buffer.
func (s *Store[V]) Put(key string, val V) {
	s.current[key] = val
}

// Get returns a value from the in-memory buffer. It does not read spilled
// chunks.
func (s *Store[V]) Get(key string) (V, bool) {
	v, ok := s.current[key]

	return v, ok
}

// Len returns the in-memory entry count. Safe on a nil receiver.
func (s *Store[V]) Len() int {
	if s == nil {
		return 0
	}

	return len(s.current)
}

// Spill writes the buffer to a numbered lz4 chunk and clears the map.
// No-op when the buffer is empty.
func (s *Store[V]) Spill() error {
	if s == nil || len(s.current) == 0 {
		return nil
	}

	if s.dir == "" {
		dir, err := os.MkdirTemp("", "repolens-spill-*")
		if err != nil {
			return fmt.Errorf("spill: create temp dir: %w", err)
		}

		s.dir = dir
	}

	path := filepath.Join(s.dir, fmt.Sprintf("chunk_%03d.gob.lz4", s.spillN))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("spill: create chunk: %w", err)
	}

	zw := lz4.NewWriter(f)

	if err := gob.NewEncoder(zw).Encode(s.current); err != nil {
		zw.Close()
		f.Close()

		return fmt.Errorf("spill: encode chunk: %w", err)
	}

	if err := zw.Close(); err != nil {
		f.Close()

		return fmt.Errorf("spill: flush chunk: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("spill: close chunk: %w", err)
	}

	s.spillN++
	s.current = make(map[string]V)

	return nil
}

// Collect merges every spilled chunk and the in-memory buffer into one map.
// Later chunks win on key collisions, the live buffer last.
func (s *Store[V]) Collect() (map[string]V, error) {
	if s == nil {
		return map[string]V{}, nil
	}

	merged := make(map[string]V, len(s.current))

	for i := range s.spillN {
		path := filepath.Join(s.dir, fmt.Sprintf("chunk_%03d.gob.lz4", i))

		chunk, err := readChunk[V](path)
		if err != nil {
			return nil, err
		}

		maps.Copy(merged, chunk)
	}

	maps.Copy(merged, s.current)

	return merged, nil
}

// Close removes spilled chunks and resets the store.
func (s *Store[V]) Close() error {
	if s == nil {
		return nil
	}

	s.current = make(map[string]V)
	s.spillN = 0

	if s.dir == "" {
		return nil
	}

	dir := s.dir
	s.dir = ""

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("spill: remove dir: %w", err)
	}

	return nil
}

func readChunk[V any](path string) (map[string]V, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("spill: open chunk: %w", err)
	}
	defer f.Close()

	var chunk map[string]V
	if err := gob.NewDecoder(lz4.NewReader(f)).Decode(&chunk); err != nil {
		return nil, fmt.Errorf("spill: decode chunk: %w", err)
	}

	return chunk, nil
}
