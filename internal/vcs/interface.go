// Package vcs lists the files a git repository changed since a revision.
package vcs

import "github.com/go-git/go-git/v5/plumbing"

// Repository provides the git operations csflow needs.
type Repository interface {
	// Head returns the hash of the HEAD commit.
	Head() (plumbing.Hash, error)
	// Resolve resolves a revision such as a branch, tag, "HEAD~3" or hash.
	Resolve(rev string) (plumbing.Hash, error)
	// ChangedSince returns the files added or modified between rev and
	// HEAD, relative to the repository root. Deleted files are omitted.
	ChangedSince(rev string) ([]string, error)
	// Uncommitted returns staged, unstaged and untracked files relative to
	// the repository root. Deleted files are omitted.
	Uncommitted() ([]string, error)
	// RepoPath returns the root path of the working tree.
	RepoPath() string
}

// Opener opens git repositories.
type Opener interface {
	// PlainOpen opens the repository rooted at path.
	PlainOpen(path string) (Repository, error)
	// PlainOpenWithDetect opens the repository containing path, searching
	// parent directories for .git.
	PlainOpenWithDetect(path string) (Repository, error)
}
