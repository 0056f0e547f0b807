package vcs

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitOpener opens git repositories using go-git.
type GitOpener struct{}

// NewGitOpener creates a new GitOpener.
func NewGitOpener() *GitOpener {
	return &GitOpener{}
}

// PlainOpen opens an existing git repository.
func (o *GitOpener) PlainOpen(path string) (Repository, error) {
	return open(path, false)
}

// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
func (o *GitOpener) PlainOpenWithDetect(path string) (Repository, error) {
	return open(path, true)
}

func open(path string, detect bool) (Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: detect})
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("repository has no working tree: %w", err)
	}
	return &gitRepository{repo: repo, worktree: wt, root: wt.Filesystem.Root()}, nil
}

// gitRepository wraps go-git Repository.
type gitRepository struct {
	repo     *git.Repository
	worktree *git.Worktree
	root     string
}

func (r *gitRepository) RepoPath() string { return r.root }

func (r *gitRepository) Head() (plumbing.Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

func (r *gitRepository) Resolve(rev string) (plumbing.Hash, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve %q: %w", rev, err)
	}
	return *h, nil
}

func (r *gitRepository) tree(h plumbing.Hash) (*object.Tree, error) {
	c, err := r.repo.CommitObject(h)
	if err != nil {
		return nil, err
	}
	return c.Tree()
}

func (r *gitRepository) ChangedSince(rev string) ([]string, error) {
	from, err := r.Resolve(rev)
	if err != nil {
		return nil, err
	}
	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	fromTree, err := r.tree(from)
	if err != nil {
		return nil, err
	}
	headTree, err := r.tree(head)
	if err != nil {
		return nil, err
	}

	changes, err := fromTree.Diff(headTree)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range changes {
		// A change with no destination is a deletion.
		if c.To.Name != "" {
			out = append(out, c.To.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *gitRepository) Uncommitted() ([]string, error) {
	status, err := r.worktree.Status()
	if err != nil {
		return nil, err
	}
	var out []string
	for path, s := range status {
		if s.Worktree == git.Deleted || (s.Staging == git.Deleted && s.Worktree != git.Untracked) {
			continue
		}
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Default opener singleton
var defaultOpener Opener = NewGitOpener()

// DefaultOpener returns the default git opener.
func DefaultOpener() Opener {
	return defaultOpener
}

// SetDefaultOpener sets the default git opener (useful for testing).
func SetDefaultOpener(opener Opener) {
	defaultOpener = opener
}

// ChangedFiles returns the absolute paths of files under path's repository
// that changed since rev, including uncommitted work.
func ChangedFiles(path, rev string) ([]string, error) {
	repo, err := DefaultOpener().PlainOpenWithDetect(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	committed, err := repo.ChangedSince(rev)
	if err != nil {
		return nil, err
	}
	pending, err := repo.Uncommitted()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, rel := range append(committed, pending...) {
		abs := filepath.Join(repo.RepoPath(), filepath.FromSlash(rel))
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Intersect keeps the files that appear in changed. Both lists may mix
// relative and absolute paths.
func Intersect(files, changed []string) []string {
	set := make(map[string]bool, len(changed))
	for _, c := range changed {
		if abs, err := filepath.Abs(c); err == nil {
			set[abs] = true
		}
	}
	var out []string
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil && set[abs] {
			out = append(out, f)
		}
	}
	return out
}
