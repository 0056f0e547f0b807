package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"golang.org/x/tools/txtar"

	"github.com/panbanda/csflow/internal/output"
	"github.com/panbanda/csflow/pkg/config"
	"github.com/panbanda/csflow/pkg/models"
)

const project = `
-- src/Orders.cs --
public class Orders
{
    public int Total(bool express)
    {
        string label = null;
        if (express)
        {
            label = "fast";
        }
        return label.Length;
    }

    public int Sum(int n)
    {
        int total = 0;
        for (int i = 0; i < n; i++)
        {
            total += i;
        }
        return total;
    }
}
-- src/Clean.cs --
public class Clean
{
    public int Twice(int x)
    {
        return x * 2;
    }
}
`

func extract(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range txtar.Parse([]byte(project)).Files {
		path := filepath.Join(root, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	}
	return root
}

// run executes the app with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"csflow", "--no-color"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestGetPaths(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"no args defaults to current dir", nil, []string{"."}},
		{"single path", []string{"/foo/bar"}, []string{"/foo/bar"}},
		{"multiple paths", []string{"/foo", "/bar"}, []string{"/foo", "/bar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			app := &cli.App{Action: func(c *cli.Context) error {
				got = getPaths(c)
				return nil
			}}
			require.NoError(t, app.Run(append([]string{"test"}, tt.args...)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzeCommand(t *testing.T) {
	root := extract(t)

	stdout, _, err := run(t, "analyze", "--no-cache", root)
	require.NoError(t, err, "findings alone never fail the run")
	assert.Contains(t, stdout, "null-dereference")
	assert.Contains(t, stdout, "Orders.Total")
	assert.Contains(t, stdout, "2 files analyzed")
}

func TestAnalyzeCommandJSON(t *testing.T) {
	root := extract(t)

	stdout, _, err := run(t, "analyze", "--no-cache", "--format", "json", root)
	require.NoError(t, err)
	require.NoError(t, output.ValidateJSON([]byte(stdout)))

	var a models.FlowAnalysis
	require.NoError(t, json.Unmarshal([]byte(stdout), &a))
	assert.Equal(t, 2, a.Summary.TotalFiles)
	assert.Equal(t, 1, a.Summary.TotalFindings)
}

func TestAnalyzeCommandOutputFile(t *testing.T) {
	root := extract(t)
	path := filepath.Join(t.TempDir(), "report.md")

	stdout, _, err := run(t, "analyze", "--no-cache", "-f", "markdown", "-o", path, root)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Findings")
}

func TestAnalyzeCommandNoFiles(t *testing.T) {
	_, stderr, err := run(t, "analyze", "--no-cache", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stderr, "No C# source files found")

	_, _, err = run(t, "analyze", "--no-cache", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestAnalyzeCommandSince(t *testing.T) {
	root := extract(t)
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("src/Orders.cs")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	// Clean.cs is untracked, so it is the only change since HEAD.
	stdout, _, err := run(t, "analyze", "--no-cache", "--format", "json", "--since", "HEAD", root)
	require.NoError(t, err)

	var a models.FlowAnalysis
	require.NoError(t, json.Unmarshal([]byte(stdout), &a))
	require.Len(t, a.Files, 1)
	assert.Equal(t, "Clean.cs", filepath.Base(a.Files[0].Path))
}

func TestCFGCommand(t *testing.T) {
	file := filepath.Join(extract(t), "src", "Orders.cs")

	stdout, _, err := run(t, "cfg", "--method", "Orders.Sum", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Orders.Sum in")
	assert.Contains(t, stdout, "(entry)")
	assert.Contains(t, stdout, "cyclomatic 2")

	stdout, _, err = run(t, "cfg", "--dot", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "digraph")

	_, _, err = run(t, "cfg")
	assert.ErrorIs(t, err, errFileRequired)

	_, _, err = run(t, "cfg", "-m", "Orders.Nope", file)
	assert.Error(t, err)
}

func TestLivenessCommand(t *testing.T) {
	file := filepath.Join(extract(t), "src", "Orders.cs")

	stdout, _, err := run(t, "liveness", "-m", "Orders.Sum", "-f", "json", file)
	require.NoError(t, err)

	var v models.LivenessView
	require.NoError(t, json.Unmarshal([]byte(stdout), &v))
	assert.Equal(t, "Orders.Sum", v.Method)
	assert.Contains(t, v.Blocks[0].LiveIn, "n")
}

func TestExploreCommand(t *testing.T) {
	file := filepath.Join(extract(t), "src", "Orders.cs")

	stdout, _, err := run(t, "explore", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Exploration of Orders.Total")
	assert.NotContains(t, stdout, "budget exceeded")

	stdout, _, err = run(t, "explore", "--max-steps", "1", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "budget exceeded")

	_, _, err = run(t, "explore", "--max-steps", "-1", file)
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "csflow.toml")

	stdout, _, err := run(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created")

	_, _, err = run(t, "config", "init", "-o", path)
	assert.ErrorContains(t, err, "already exists")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	defaults := config.DefaultConfig()
	assert.Equal(t, defaults.Analysis, cfg.Analysis, "init writes the defaults")
	assert.Equal(t, defaults.Exclude.Dirs, cfg.Exclude.Dirs)

	stdout, _, err = run(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration valid")

	stdout, _, err = run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Configuration from: "+path)
	assert.Contains(t, stdout, "max_steps = 4000")

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[analysis]\nmax_steps = 0\n"), 0o644))
	_, stderr, err := run(t, "config", "validate", bad)
	assert.Error(t, err)
	assert.Contains(t, stderr, "max_steps must be positive")
}

func TestCacheCommands(t *testing.T) {
	root := extract(t)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	cfgPath := filepath.Join(t.TempDir(), "csflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("cache:\n  enabled: true\n  dir: "+cacheDir+"\n"), 0o644))

	_, _, err := run(t, "--config", cfgPath, "analyze", root)
	require.NoError(t, err)

	stdout, _, err := run(t, "--config", cfgPath, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 entries")

	_, _, err = run(t, "--config", cfgPath, "cache", "clear")
	require.NoError(t, err)
	stdout, _, err = run(t, "--config", cfgPath, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 entries")
}

func TestMCPManifestCommand(t *testing.T) {
	stdout, _, err := run(t, "mcp", "manifest")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"name": "io.github.panbanda/csflow"`)
}
