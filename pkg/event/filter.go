package event

import (
	"strings"
	"time"
)

// QueryParams captures the user's content selection for one scan.
// Zero values mean "no restriction"; empty include lists mean include-all.
type QueryParams struct {
	Since time.Time
	Until time.Time

	IncludeAuthors []string
	ExcludeAuthors []string

	IncludePaths []string
	ExcludePaths []string

	MaxFileSize   int64
	IncludeBinary bool
}

// Filter applies QueryParams to commits and files at event-creation time.
// All predicates are pure; construction cannot fail.
type Filter struct {
	params QueryParams
}

// NewFilter builds a Filter from query parameters.
func NewFilter(params QueryParams) *Filter {
	return &Filter{params: params}
}

// Params returns the query parameters the filter was built from.
func (f *Filter) Params() QueryParams {
	return f.params
}

// ShouldIncludeCommit reports whether the commit passes the date and author
// selection. Author matching accepts either the name or the email.
func (f *Filter) ShouldIncludeCommit(commit CommitInfo) bool {
	if !f.params.Since.IsZero() && commit.Timestamp.Before(f.params.Since) {
		return false
	}

	if !f.params.Until.IsZero() && commit.Timestamp.After(f.params.Until) {
		return false
	}

	if matchesAuthor(f.params.ExcludeAuthors, commit) {
		return false
	}

	if len(f.params.IncludeAuthors) > 0 && !matchesAuthor(f.params.IncludeAuthors, commit) {
		return false
	}

	return true
}

// ShouldIncludeFile reports whether a scanned file passes the path, size and
// binary selection. Path matching is by substring of the repository-relative
// path.
func (f *Filter) ShouldIncludeFile(info FileInfo) bool {
	if !f.shouldIncludePath(info.RelativePath) {
		return false
	}

	if f.params.MaxFileSize > 0 && info.Size > f.params.MaxFileSize {
		return false
	}

	if info.IsBinary && !f.params.IncludeBinary {
		return false
	}

	return true
}

// ShouldIncludeFileChange reports whether a file delta passes the path and
// binary selection. Renames are matched on the new path.
func (f *Filter) ShouldIncludeFileChange(change FileChangeData) bool {
	if !f.shouldIncludePath(change.NewPath) {
		return false
	}

	if change.IsBinary && !f.params.IncludeBinary {
		return false
	}

	return true
}

func (f *Filter) shouldIncludePath(path string) bool {
	for _, excluded := range f.params.ExcludePaths {
		if strings.Contains(path, excluded) {
			return false
		}
	}

	if len(f.params.IncludePaths) == 0 {
		return true
	}

	for _, included := range f.params.IncludePaths {
		if strings.Contains(path, included) {
			return true
		}
	}

	return false
}

func matchesAuthor(authors []string, commit CommitInfo) bool {
	for _, author := range authors {
		if author == commit.AuthorName || author == commit.AuthorEmail {
			return true
		}
	}

	return false
}
