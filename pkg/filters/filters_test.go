package filters_test

import (
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/repolens/repolens/pkg/filters"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func commitAt(author string, day int, paths ...string) filters.Commit {
	return filters.Commit{
		Timestamp: base.AddDate(0, 0, day),
		Author:    author,
		FilePaths: paths,
	}
}

// countingSeq yields commits and counts how many were pulled.
func countingSeq(commits []filters.Commit, pulled *int) iter.Seq[filters.Commit] {
	return func(yield func(filters.Commit) bool) {
		for _, c := range commits {
			*pulled++

			if !yield(c) {
				return
			}
		}
	}
}

func TestDateFilterRange(t *testing.T) {
	t.Parallel()

	f := filters.NewDateFilter(base, base.AddDate(0, 0, 10))

	ok, flow := f.Matches(commitAt("a", 5))
	assert.True(t, ok)
	assert.Equal(t, filters.Continue, flow)

	ok, flow = f.Matches(commitAt("a", -1))
	assert.False(t, ok)
	assert.Equal(t, filters.Continue, flow)

	// Past the end of a chronological walk: break.
	ok, flow = f.Matches(commitAt("a", 11))
	assert.False(t, ok)
	assert.Equal(t, filters.Break, flow)
}

func TestAfterBefore(t *testing.T) {
	t.Parallel()

	after := filters.After(base)
	ok, _ := after.Matches(commitAt("a", 1))
	assert.True(t, ok)

	ok, _ = after.Matches(commitAt("a", -1))
	assert.False(t, ok)

	before := filters.Before(base)
	ok, _ = before.Matches(commitAt("a", -1))
	assert.True(t, ok)
}

func TestPathFilterPrefix(t *testing.T) {
	t.Parallel()

	include := filters.IncludePaths("src/")

	ok, _ := include.Matches(commitAt("a", 0, "src/main.go"))
	assert.True(t, ok)

	ok, _ = include.Matches(commitAt("a", 0, "docs/readme.md"))
	assert.False(t, ok)

	exclude := filters.ExcludePaths("vendor/")

	ok, _ = exclude.Matches(commitAt("a", 0, "vendor/lib.go"))
	assert.False(t, ok)

	ok, _ = exclude.Matches(commitAt("a", 0, "vendor/lib.go", "src/main.go"))
	assert.True(t, ok)
}

func TestAuthorFilterExactMatch(t *testing.T) {
	t.Parallel()

	include := filters.IncludeAuthors("alice")

	ok, _ := include.Matches(commitAt("alice", 0))
	assert.True(t, ok)

	// Exact match only: no substring matching.
	ok, _ = include.Matches(commitAt("alice2", 0))
	assert.False(t, ok)

	exclude := filters.ExcludeAuthors("bot")

	ok, _ = exclude.Matches(commitAt("bot", 0))
	assert.False(t, ok)
}

func TestAndThenShortCircuits(t *testing.T) {
	t.Parallel()

	calls := 0
	counting := filters.PredicateFunc(func(filters.Commit) (bool, filters.Flow) {
		calls++

		return true, filters.Continue
	})

	chain := filters.AndThen(filters.IncludeAuthors("alice"), counting)

	chain.Matches(commitAt("bob", 0))
	assert.Zero(t, calls)

	chain.Matches(commitAt("alice", 0))
	assert.Equal(t, 1, calls)
}

func TestExecutorLimitStopsPulling(t *testing.T) {
	t.Parallel()

	commits := make([]filters.Commit, 100)
	for i := range commits {
		commits[i] = commitAt("a", i)
	}

	pulled := 0
	all := filters.PredicateFunc(func(filters.Commit) (bool, filters.Flow) {
		return true, filters.Continue
	})

	out := filters.NewExecutor(all, 5).Run(countingSeq(commits, &pulled))

	assert.Len(t, out, 5)
	assert.LessOrEqual(t, pulled, 6)
}

func TestExecutorBreakStopsPulling(t *testing.T) {
	t.Parallel()

	commits := make([]filters.Commit, 50)
	for i := range commits {
		commits[i] = commitAt("a", i)
	}

	pulled := 0
	ranged := filters.NewDateFilter(base, base.AddDate(0, 0, 9))

	out := filters.NewExecutor(ranged, 0).Run(countingSeq(commits, &pulled))

	assert.Len(t, out, 10)
	assert.Equal(t, 11, pulled)
}
