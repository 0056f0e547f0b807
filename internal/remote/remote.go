// Package remote clones git repositories named on the command line so they
// can be analyzed like local directories.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Source represents a remote repository to analyze.
type Source struct {
	URL      string // normalized git URL
	Ref      string // branch, tag, or SHA (empty = default branch)
	CloneDir string // temp directory after clone
}

// Parse detects if a path is a remote reference. It returns nil when the
// path exists locally or does not look like a repository.
func Parse(path string) (*Source, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, nil
	}

	ref := ""
	// The @ of git@host:owner/repo precedes every slash and is not a ref.
	if idx := strings.LastIndex(path, "@"); idx > 0 && strings.Contains(path[:idx], "/") {
		ref = path[idx+1:]
		path = path[:idx]
	}

	switch {
	case strings.HasPrefix(path, "https://"), strings.HasPrefix(path, "http://"),
		strings.HasPrefix(path, "ssh://"), strings.HasPrefix(path, "git@"):
		return &Source{URL: path, Ref: ref}, nil
	case isHostPath(path):
		return &Source{URL: "https://" + path, Ref: ref}, nil
	case isGitHubShorthand(path):
		return &Source{URL: "https://github.com/" + path, Ref: ref}, nil
	}
	return nil, nil
}

// isHostPath returns true for host/owner/repo paths such as
// github.com/owner/repo.
func isHostPath(path string) bool {
	parts := strings.Split(path, "/")
	host := parts[0]
	return len(parts) >= 3 && strings.Contains(host, ".") && !strings.HasPrefix(host, ".") &&
		parts[1] != "" && parts[2] != ""
}

// isGitHubShorthand returns true if path matches owner/repo pattern.
func isGitHubShorthand(path string) bool {
	slashIdx := strings.Index(path, "/")
	if slashIdx == -1 || strings.Count(path, "/") != 1 {
		return false
	}
	// A dot before the slash would indicate a domain or a relative path,
	// and a missing source file is not a repository.
	if strings.Contains(path[:slashIdx], ".") || strings.HasSuffix(path, ".cs") {
		return false
	}
	return slashIdx > 0 && slashIdx < len(path)-1
}

// Clone clones the repository into a temporary directory and checks out
// Ref. Progress messages go to progress. A shallow clone fetches only the
// tip of the ref, which is not possible for a commit SHA.
func (s *Source) Clone(ctx context.Context, progress io.Writer, shallow bool) error {
	dir, err := os.MkdirTemp("", "csflow-clone-*")
	if err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}
	s.CloneDir = dir

	opts := &git.CloneOptions{URL: s.URL, Progress: progress}
	if shallow {
		opts.Depth = 1
	}
	if s.Ref == "" || plumbing.IsHash(s.Ref) {
		if plumbing.IsHash(s.Ref) {
			opts.Depth = 0
		}
		repo, err := git.PlainCloneContext(ctx, dir, false, opts)
		if err != nil {
			s.Cleanup()
			return fmt.Errorf("failed to clone %s: %w", s.URL, err)
		}
		if s.Ref != "" {
			return s.checkoutHash(repo, plumbing.NewHash(s.Ref))
		}
		return nil
	}

	opts.SingleBranch = true
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(s.Ref),
		plumbing.NewTagReferenceName(s.Ref),
	} {
		opts.ReferenceName = name
		_, err = git.PlainCloneContext(ctx, dir, false, opts)
		if err == nil {
			return nil
		}
		if !isMissingRef(err) {
			break
		}
		// A failed attempt can leave a partial repository behind.
		if rmErr := resetDir(dir); rmErr != nil {
			err = rmErr
			break
		}
	}
	s.Cleanup()
	return fmt.Errorf("failed to clone %s at %s: %w", s.URL, s.Ref, err)
}

func (s *Source) checkoutHash(repo *git.Repository, hash plumbing.Hash) error {
	wt, err := repo.Worktree()
	if err == nil {
		err = wt.Checkout(&git.CheckoutOptions{Hash: hash})
	}
	if err != nil {
		s.Cleanup()
		return fmt.Errorf("failed to check out %s: %w", hash, err)
	}
	return nil
}

func isMissingRef(err error) bool {
	return errors.Is(err, plumbing.ErrReferenceNotFound) ||
		strings.Contains(err.Error(), "couldn't find remote ref")
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Cleanup removes the clone directory.
func (s *Source) Cleanup() {
	if s.CloneDir != "" {
		_ = os.RemoveAll(s.CloneDir)
		s.CloneDir = ""
	}
}
