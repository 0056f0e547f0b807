package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/panbanda/csflow/pkg/config"
)

// extract writes every file of a txtar archive under a fresh directory.
func extract(t *testing.T, archive string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range txtar.Parse([]byte(archive)).Files {
		path := filepath.Join(root, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	}
	return root
}

func relative(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

const project = `
-- src/Widget.cs --
class Widget { }
-- src/Widget.Designer.cs --
partial class Widget { }
-- src/Part/Part.cs --
class Part { }
-- src/notes.txt --
not code
-- src/script.csx --
var x = 1;
-- obj/Debug/AssemblyInfo.cs --
class Generated { }
-- bin/Release/Copy.cs --
class Copy { }
-- tests/WidgetTests.cs --
class WidgetTests { }
`

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	require.NotNil(t, s.config)

	cfg := config.DefaultConfig()
	assert.Same(t, cfg, NewScanner(cfg).config)
}

func TestScanDir(t *testing.T) {
	root := extract(t, project)

	files, err := NewScanner(nil).ScanDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/Part/Part.cs",
		"src/Widget.Designer.cs",
		"src/Widget.cs",
		"tests/WidgetTests.cs",
	}, relative(t, root, files), "generated names are kept for the analyzer to decide")
}

func TestScanDirExcludePatterns(t *testing.T) {
	root := extract(t, project)
	cfg := config.DefaultConfig()
	cfg.Exclude.Patterns = []string{"tests/", "*.Designer.cs"}

	files, err := NewScanner(cfg).ScanDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/Part/Part.cs", "src/Widget.cs"}, relative(t, root, files))
}

func TestScanDirGitignore(t *testing.T) {
	root := extract(t, project+`
-- .gitignore --
src/Part/
`)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	tests := []struct {
		name      string
		gitignore bool
		want      []string
	}{
		{
			name:      "honored",
			gitignore: true,
			want:      []string{"src/Widget.Designer.cs", "src/Widget.cs", "tests/WidgetTests.cs"},
		},
		{
			name:      "disabled",
			gitignore: false,
			want:      []string{"src/Part/Part.cs", "src/Widget.Designer.cs", "src/Widget.cs", "tests/WidgetTests.cs"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Exclude.Gitignore = tt.gitignore
			files, err := NewScanner(cfg).ScanDir(root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, relative(t, root, files))
		})
	}
}

func TestScanDirGitignoreFromSubdirectory(t *testing.T) {
	root := extract(t, project+`
-- .gitignore --
src/Part/
`)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	sub := filepath.Join(root, "src")
	files, err := NewScanner(nil).ScanDir(sub)
	require.NoError(t, err)
	assert.Equal(t, []string{"Widget.Designer.cs", "Widget.cs"}, relative(t, sub, files))
}

func TestScan(t *testing.T) {
	root := extract(t, project)
	widget := filepath.Join(root, "src", "Widget.cs")

	files, err := NewScanner(nil).Scan([]string{
		filepath.Join(root, "src"),
		widget,
		filepath.Join(root, "src", "notes.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/Part/Part.cs", "src/Widget.Designer.cs", "src/Widget.cs"}, relative(t, root, files))

	_, err = NewScanner(nil).Scan([]string{filepath.Join(root, "missing")})
	assert.Error(t, err)
}

func TestScanDirEmpty(t *testing.T) {
	files, err := NewScanner(nil).ScanDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanDirSymlinks(t *testing.T) {
	root := extract(t, project)
	outside := extract(t, "-- Outside.cs --\nclass Outside { }\n")

	require.NoError(t, os.Symlink(filepath.Join(outside, "Outside.cs"), filepath.Join(root, "src", "Outside.cs")))
	require.NoError(t, os.Symlink(filepath.Join(root, "src", "Widget.cs"), filepath.Join(root, "src", "Alias.cs")))
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere.cs"), filepath.Join(root, "src", "Dangling.cs")))

	files, err := NewScanner(nil).ScanDir(filepath.Join(root, "src"))
	require.NoError(t, err)
	rel := relative(t, filepath.Join(root, "src"), files)
	assert.Contains(t, rel, "Alias.cs")
	assert.NotContains(t, rel, "Outside.cs")
	assert.NotContains(t, rel, "Dangling.cs")
}

func TestIsWithinRoot(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "repo")
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "src", "A.cs"), true},
		{root, true},
		{filepath.Join(string(filepath.Separator), "repository", "A.cs"), false},
		{filepath.Join(root, "..", "other", "A.cs"), false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isWithinRoot(tt.path, root))
		})
	}
}

func TestFindGitRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	want, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, want, findGitRoot(nested))
}

func TestIsGeneratedName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generated.Patterns = []string{"*.Proto.cs"}
	s := NewScanner(cfg)

	assert.True(t, s.IsGeneratedName("src/Widget.g.cs"))
	assert.True(t, s.IsGeneratedName("src/Messages.Proto.cs"))
	assert.False(t, s.IsGeneratedName("src/Widget.cs"))
}

func TestFilterBySize(t *testing.T) {
	root := extract(t, `
-- small.cs --
class A { }
-- large.cs --
class B { int x; int y; int z; int w; int v; }
`)
	files := []string{
		filepath.Join(root, "small.cs"),
		filepath.Join(root, "large.cs"),
		filepath.Join(root, "missing.cs"),
	}

	kept, skipped := FilterBySize(files, 20)
	assert.Equal(t, []string{filepath.Join(root, "small.cs")}, kept)
	assert.Equal(t, 2, skipped)

	kept, skipped = FilterBySize(files, 0)
	assert.Equal(t, files, kept)
	assert.Zero(t, skipped)
}
