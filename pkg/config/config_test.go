package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/csflow/pkg/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 4000, cfg.Analysis.MaxSteps)
	assert.Equal(t, 1000, cfg.Analysis.MaxStates)
	assert.Equal(t, 2, cfg.Analysis.MaxLoopVisits)
	assert.True(t, cfg.Analysis.PruneDeadBindings)
	assert.True(t, cfg.Findings.NullDereference)
	assert.True(t, cfg.Findings.ConstantCondition)
	assert.True(t, cfg.Findings.DeadStore)
	assert.False(t, cfg.Generated.AnalyzeGenerated)
	assert.Contains(t, cfg.Exclude.Dirs, "obj")
	assert.Equal(t, ".csflow/cache", cfg.Cache.Dir)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "csflow.toml",
			content: `
[analysis]
max_steps = 50
prune_dead_bindings = false

[findings]
dead_store = false

[generated]
patterns = ["*.Proto.cs"]
`,
		},
		{
			name: "yaml",
			file: "csflow.yaml",
			content: `
analysis:
  max_steps: 50
  prune_dead_bindings: false
findings:
  dead_store: false
generated:
  patterns: ["*.Proto.cs"]
`,
		},
		{
			name: "json",
			file: "csflow.json",
			content: `{
  "analysis": {"max_steps": 50, "prune_dead_bindings": false},
  "findings": {"dead_store": false},
  "generated": {"patterns": ["*.Proto.cs"]}
}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, 50, cfg.Analysis.MaxSteps)
			assert.False(t, cfg.Analysis.PruneDeadBindings)
			assert.Equal(t, 1000, cfg.Analysis.MaxStates, "unset keys keep their defaults")
			assert.False(t, cfg.Findings.DeadStore)
			assert.True(t, cfg.Findings.NullDereference)
			assert.Equal(t, []string{"*.Proto.cs"}, cfg.Generated.Patterns)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeFile(t, dir, "csflow.ini", "x=1"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "bad.toml", "[analysis\nmax_steps = "))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "zero.toml", "[analysis]\nmax_states = 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.max_states must be positive")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "xml"
	cfg.Exclude.Patterns = []string{"["}
	cfg.Analysis.MaxLoopVisits = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
	assert.Contains(t, err.Error(), "bad pattern")
	assert.Contains(t, err.Error(), "max_loop_visits")
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	assert.Empty(t, Find(root))

	nested := writeFile(t, root, ".csflow/csflow.yaml", "analysis:\n  max_steps: 10\n")
	assert.Equal(t, nested, Find(root))

	top := writeFile(t, root, ".csflow.toml", "")
	assert.Equal(t, top, Find(root), "the working directory wins over .csflow/")
}

func TestLoadOrDefaultWithExplicitPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.toml", "[output]\nformat = \"json\"\n")
	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Findings.ConstantCondition = false

	rules := cfg.Rules()
	assert.True(t, rules[models.RuleNullDereference])
	assert.False(t, rules[models.RuleConstantCondition])
	assert.True(t, rules[models.RuleDeadStore])
}

func TestFingerprintTracksAnalysisSettings(t *testing.T) {
	a, b := DefaultConfig(), DefaultConfig()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Output.Format = "json"
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "output settings do not affect results")

	b.Analysis.MaxSteps = 10
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Patterns = []string{"*.Tests.cs", "src/**/Migrations/*.cs"}

	tests := []struct {
		path string
		want bool
	}{
		{"src/obj/Debug/A.cs", true},
		{"src/Data/Migrations/Init.cs", true},
		{"src/Migrations/Init.cs", true},
		{"tools/Migrations/Init.cs", false},
		{"obj/A.cs", true},
		{"src/Widget.Tests.cs", true},
		{"src/Widget.cs", false},
		{"src/objects/A.cs", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ShouldExclude(tt.path))
		})
	}
}
