// Package gitlib wraps the libgit2 operations the scanner needs: opening a
// repository, walking history oldest-first, and diffing commits into
// per-file change statistics.
package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository handle.
type Repository struct {
	repo *git2go.Repository
	path string
}

// Open opens the git repository at path.
func Open(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Workdir returns the working-tree root.
func (r *Repository) Workdir() string {
	return r.repo.Workdir()
}

// Free releases the underlying libgit2 resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Walk iterates history from HEAD, oldest commit first, invoking fn for
// each commit. Iteration stops when fn returns false or ctx is cancelled.
func (r *Repository) Walk(ctx context.Context, fn func(*Commit) bool) error {
	walk, err := r.repo.Walk()
	if err != nil {
		return fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	if err := walk.PushHead(); err != nil {
		return fmt.Errorf("push HEAD: %w", err)
	}

	walk.Sorting(git2go.SortTopological | git2go.SortReverse)

	iterErr := walk.Iterate(func(commit *git2go.Commit) bool {
		if ctx.Err() != nil {
			return false
		}

		return fn(&Commit{commit: commit, repo: r})
	})
	if iterErr != nil {
		return fmt.Errorf("walk history: %w", iterErr)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("walk history: %w", ctx.Err())
	}

	return nil
}

// CommitCount walks history counting commits, for RepositoryStarted totals.
func (r *Repository) CommitCount(ctx context.Context) (uint64, error) {
	var count uint64

	err := r.Walk(ctx, func(*Commit) bool {
		count++

		return true
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}
