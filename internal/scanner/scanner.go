// Package scanner finds the C# sources to analyze under a set of roots.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/csflow/pkg/config"
	"github.com/panbanda/csflow/pkg/syntax/csharp"
)

// Scanner finds source files in a directory.
type Scanner struct {
	config   *config.Config
	matchers []gitignore.Matcher
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// findGitRoot finds the root of the git repository by looking for a .git
// directory. Returns "" outside a repository.
func findGitRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns combines the configured patterns and directories with
// every .gitignore of the enclosing repository. Gitignore patterns are
// anchored at the repository root, so prefix is the path of root relative
// to it.
func (s *Scanner) loadExcludePatterns(root string) (prefix []string) {
	s.matchers = nil
	var patterns []gitignore.Pattern
	for _, p := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	for _, d := range s.config.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(d+"/", nil))
	}

	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
				patterns = append(patterns, gitPatterns...)
			}
			if abs, err := filepath.Abs(root); err == nil {
				if rel, err := filepath.Rel(gitRoot, abs); err == nil && rel != "." {
					prefix = strings.Split(filepath.ToSlash(rel), "/")
				}
			}
		}
	}

	if len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}
	return prefix
}

func (s *Scanner) isExcluded(parts []string, isDir bool) bool {
	for _, m := range s.matchers {
		if m.Match(parts, isDir) {
			return true
		}
	}
	return false
}

// ScanDir recursively scans a directory for C# source files. Symlinks that
// resolve outside root are skipped.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	prefix := s.loadExcludePatterns(root)
	files := make([]string, 0, 256)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		parts := append(append([]string{}, prefix...), strings.Split(filepath.ToSlash(rel), "/")...)
		if d.IsDir() {
			if s.isExcluded(parts, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.isExcluded(parts, false) && csharp.IsSource(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, walkErr
}

// Scan expands paths into source files. Directories are walked and files
// are taken as given when they are C# sources.
func (s *Scanner) Scan(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		var found []string
		if info.IsDir() {
			if found, err = s.ScanDir(p); err != nil {
				return nil, err
			}
		} else if csharp.IsSource(p) {
			found = []string{p}
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// isWithinRoot reports whether path is root or lies under it.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// IsGeneratedName reports whether the file name marks generated code,
// including the configured extra patterns.
func (s *Scanner) IsGeneratedName(path string) bool {
	return csharp.IsGeneratedName(path, s.config.Generated.Patterns...)
}

// FilterBySize drops files larger than maxSize bytes and returns the number
// dropped. A maxSize of zero or less keeps every file.
func FilterBySize(files []string, maxSize int64) ([]string, int) {
	if maxSize <= 0 {
		return files, 0
	}
	filtered := make([]string, 0, len(files))
	skipped := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.Size() > maxSize {
			skipped++
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered, skipped
}
