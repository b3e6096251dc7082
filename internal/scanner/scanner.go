// Package scanner walks a repository's commit history and working tree,
// applies the query-level event filter at creation time, and emits the
// resulting event stream for the pipeline.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/repolens/repolens/internal/gitlib"
	"github.com/repolens/repolens/pkg/event"
)

// eventBuffer is the emission channel depth; it decouples the walk from a
// slow bridge without unbounded growth.
const eventBuffer = 256

// binarySniffLen is how many leading bytes are examined for NUL when
// deciding whether a file is binary.
const binarySniffLen = 8000

// Scanner produces the repository event stream.
type Scanner struct {
	repo   *gitlib.Repository
	filter *event.Filter
	logger *slog.Logger
}

// New creates a scanner. logger may be nil.
func New(repo *gitlib.Repository, filter *event.Filter, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Scanner{repo: repo, filter: filter, logger: logger}
}

// Scan emits the event stream on the returned channel: RepositoryStarted
// first, then commit history oldest-first with per-commit file deltas, then
// the working-tree snapshot, and RepositoryCompleted last. Traversal
// failures on individual commits or files appear inline as ScanError
// events. The channel closes after RepositoryCompleted.
func (s *Scanner) Scan(ctx context.Context) <-chan event.Event {
	out := make(chan event.Event, eventBuffer)

	go func() {
		defer close(out)

		start := time.Now()
		stats := event.RepositoryStats{}

		emit := func(evt event.Event) bool {
			select {
			case out <- evt:
				stats.EventsEmitted++

				return true
			case <-ctx.Done():
				return false
			}
		}

		totalCommits, err := s.repo.CommitCount(ctx)
		if err != nil {
			s.logger.Warn("commit pre-count failed", "error", err)
		}

		if !emit(event.RepositoryStarted{TotalCommits: totalCommits}) {
			return
		}

		commits := s.walkHistory(ctx, emit)
		files := s.walkWorktree(ctx, emit, &stats)

		stats.TotalCommits = commits
		stats.TotalFiles = files
		stats.ScanDuration = time.Since(start)

		emit(event.RepositoryCompleted{Stats: stats})
	}()

	return out
}

// walkHistory emits CommitDiscovered and FileChanged events. The commit
// index is monotonically non-decreasing.
func (s *Scanner) walkHistory(ctx context.Context, emit func(event.Event) bool) uint64 {
	var index uint64

	walkErr := s.repo.Walk(ctx, func(commit *gitlib.Commit) bool {
		info, changes, err := s.describeCommit(commit)
		if err != nil {
			return emit(event.ScanError{
				Err:     err.Error(),
				Context: fmt.Sprintf("commit %s", commit.ShortHash()),
			})
		}

		if !s.filter.ShouldIncludeCommit(info) {
			return true
		}

		if !emit(event.CommitDiscovered{Commit: info, Index: index}) {
			return false
		}

		index++

		for _, change := range changes {
			if !s.filter.ShouldIncludeFileChange(change) {
				continue
			}

			evt := event.FileChanged{
				FilePath:      change.NewPath,
				ChangeData:    change,
				CommitContext: info,
			}
			if evt.FilePath == "" {
				evt.FilePath = change.OldPath
			}

			if !emit(evt) {
				return false
			}
		}

		return true
	})
	if walkErr != nil {
		s.logger.Warn("history walk aborted", "error", walkErr)
	}

	return index
}

// describeCommit converts a gitlib commit into event values.
func (s *Scanner) describeCommit(commit *gitlib.Commit) (event.CommitInfo, []event.FileChangeData, error) {
	author := commit.Author()
	committer := commit.Committer()

	info := event.CommitInfo{
		Hash:           commit.Hash(),
		ShortHash:      commit.ShortHash(),
		AuthorName:     author.Name,
		AuthorEmail:    author.Email,
		CommitterName:  committer.Name,
		CommitterEmail: committer.Email,
		Timestamp:      author.When,
		Message:        commit.Message(),
		ParentHashes:   commit.ParentHashes(),
	}

	changes, err := commit.Changes()
	if err != nil {
		return info, nil, fmt.Errorf("describe commit: %w", err)
	}

	out := make([]event.FileChangeData, 0, len(changes))

	for _, change := range changes {
		data := event.FileChangeData{
			ChangeType: changeType(change.Kind),
			OldPath:    change.OldPath,
			NewPath:    change.Path,
			Insertions: change.Insertions,
			Deletions:  change.Deletions,
			IsBinary:   change.Binary,
		}

		info.ChangedFiles = append(info.ChangedFiles, change.Path)
		info.Insertions += change.Insertions
		info.Deletions += change.Deletions

		out = append(out, data)
	}

	return info, out, nil
}

// walkWorktree emits FileScanned events for the working-tree snapshot.
func (s *Scanner) walkWorktree(ctx context.Context, emit func(event.Event) bool, stats *event.RepositoryStats) uint64 {
	root := s.repo.Workdir()
	if root == "" {
		// Bare repository: no working tree to snapshot.
		return 0
	}

	var files uint64

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			emit(event.ScanError{Err: err.Error(), Context: path})

			return nil
		}

		if entry.IsDir() {
			if entry.Name() == ".git" {
				return filepath.SkipDir
			}

			return nil
		}

		info, statErr := s.describeFile(root, path, entry)
		if statErr != nil {
			emit(event.ScanError{Err: statErr.Error(), Context: path})

			return nil
		}

		if !s.filter.ShouldIncludeFile(info) {
			return nil
		}

		if !emit(event.FileScanned{FileInfo: info}) {
			return filepath.SkipAll
		}

		files++
		stats.TotalSize += info.Size

		return nil
	})
	if walkErr != nil {
		s.logger.Warn("worktree walk aborted", "error", walkErr)
	}

	return files
}

func (s *Scanner) describeFile(root, path string, entry fs.DirEntry) (event.FileInfo, error) {
	fileInfo, err := entry.Info()
	if err != nil {
		return event.FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}

	relative, err := filepath.Rel(root, path)
	if err != nil {
		return event.FileInfo{}, fmt.Errorf("relativize %s: %w", path, err)
	}

	relative = filepath.ToSlash(relative)

	info := event.FileInfo{
		Path:         path,
		RelativePath: relative,
		Size:         fileInfo.Size(),
		Extension:    strings.ToLower(filepath.Ext(relative)),
		LastModified: fileInfo.ModTime().UTC(),
	}

	binary, lines, sniffErr := sniffContent(path)
	if sniffErr != nil {
		return info, sniffErr
	}

	info.IsBinary = binary
	if !binary {
		info.LineCount = lines
	}

	return info, nil
}

// sniffContent reads the file once, detecting binary content via a NUL scan
// of the leading bytes and counting lines for text files.
func sniffContent(path string) (binary bool, lines int, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, 0, fmt.Errorf("read %s: %w", path, err)
	}

	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}

	if bytes.IndexByte(sniff, 0) >= 0 {
		return true, 0, nil
	}

	if len(content) == 0 {
		return false, 0, nil
	}

	lines = bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		lines++
	}

	return false, lines, nil
}

func changeType(kind gitlib.ChangeKind) event.ChangeType {
	switch kind {
	case gitlib.KindAdded:
		return event.ChangeAdded
	case gitlib.KindDeleted:
		return event.ChangeDeleted
	case gitlib.KindRenamed:
		return event.ChangeRenamed
	case gitlib.KindCopied:
		return event.ChangeCopied
	default:
		return event.ChangeModified
	}
}
