package gitlib

import (
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// shortHashLen is the abbreviated hash length.
const shortHashLen = 7

// Signature is a name/email/time triple.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// ChangeKind classifies one file delta.
type ChangeKind int

// Change kinds.
const (
	KindAdded ChangeKind = iota
	KindModified
	KindDeleted
	KindRenamed
	KindCopied
)

// FileChange is one file delta within a commit.
type FileChange struct {
	Kind       ChangeKind
	Path       string
	OldPath    string
	Insertions int
	Deletions  int
	Binary     bool
}

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the full hex hash.
func (c *Commit) Hash() string {
	return c.commit.Id().String()
}

// ShortHash returns the abbreviated hex hash.
func (c *Commit) ShortHash() string {
	hash := c.Hash()
	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}

	return hash
}

// Author returns the author signature with a UTC timestamp.
func (c *Commit) Author() Signature {
	sig := c.commit.Author()

	return Signature{Name: sig.Name, Email: sig.Email, When: sig.When.UTC()}
}

// Committer returns the committer signature with a UTC timestamp.
func (c *Commit) Committer() Signature {
	sig := c.commit.Committer()

	return Signature{Name: sig.Name, Email: sig.Email, When: sig.When.UTC()}
}

// Message returns the full commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// ParentHashes returns the hex hashes of every parent.
func (c *Commit) ParentHashes() []string {
	count := c.commit.ParentCount()

	out := make([]string, 0, count)
	for i := uint(0); i < count; i++ {
		out = append(out, c.commit.ParentId(i).String())
	}

	return out
}

// Changes diffs the commit against its first parent (or the empty tree for
// a root commit), with rename and copy detection, and returns per-file line
// statistics.
func (c *Commit) Changes() ([]FileChange, error) {
	tree, err := c.commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}
	defer tree.Free()

	var parentTree *git2go.Tree

	if c.commit.ParentCount() > 0 {
		parent := c.commit.Parent(0)
		defer parent.Free()

		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("parent tree: %w", err)
		}
		defer parentTree.Free()
	}

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("diff options: %w", err)
	}

	diff, err := c.repo.repo.DiffTreeToTree(parentTree, tree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return nil, fmt.Errorf("diff find options: %w", err)
	}

	if err := diff.FindSimilar(&findOpts); err != nil {
		return nil, fmt.Errorf("rename detection: %w", err)
	}

	return collectChanges(diff)
}

func collectChanges(diff *git2go.Diff) ([]FileChange, error) {
	deltaCount, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("delta count: %w", err)
	}

	changes := make([]FileChange, 0, deltaCount)

	for i := range deltaCount {
		delta, err := diff.Delta(i)
		if err != nil {
			return nil, fmt.Errorf("delta %d: %w", i, err)
		}

		change := FileChange{
			Kind:   kindFromDelta(delta.Status),
			Path:   delta.NewFile.Path,
			Binary: delta.Flags&git2go.DiffFlagBinary != 0,
		}

		if change.Kind == KindDeleted {
			change.Path = delta.OldFile.Path
		}

		if change.Kind == KindRenamed || change.Kind == KindCopied {
			change.OldPath = delta.OldFile.Path
		}

		if !change.Binary {
			patch, err := diff.Patch(i)
			if err == nil && patch != nil {
				_, additions, deletions, statsErr := patchLineStats(patch)
				if statsErr == nil {
					change.Insertions = additions
					change.Deletions = deletions
				}

				patch.Free()
			}
		}

		changes = append(changes, change)
	}

	return changes, nil
}

func patchLineStats(patch *git2go.Patch) (context, additions, deletions int, err error) {
	context, additions, deletions, err = patch.LineStats()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("line stats: %w", err)
	}

	return context, additions, deletions, nil
}

func kindFromDelta(status git2go.Delta) ChangeKind {
	switch status {
	case git2go.DeltaAdded:
		return KindAdded
	case git2go.DeltaDeleted:
		return KindDeleted
	case git2go.DeltaRenamed:
		return KindRenamed
	case git2go.DeltaCopied:
		return KindCopied
	default:
		return KindModified
	}
}
