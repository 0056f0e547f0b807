package analyzer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/panbanda/csflow/internal/cache"
	"github.com/panbanda/csflow/internal/fileproc"
	"github.com/panbanda/csflow/pkg/config"
	"github.com/panbanda/csflow/pkg/models"
	"github.com/panbanda/csflow/pkg/syntax/csharp"
)

const shop = `
-- src/Orders.cs --
namespace Shop
{
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

        public int Count(string[] items)
        {
            return items.Length;
        }
    }
}
-- src/Orders.g.cs --
namespace Shop
{
    public partial class Orders
    {
        public int Broken()
        {
            string s = null;
            return s.Length;
        }
    }
}
-- src/Client.cs --
// <auto-generated>
//     This code was generated by a tool.
// </auto-generated>
public class Client
{
    public void Call() { }
}
-- src/notes.txt --
not code
`

func extract(t *testing.T, archive string) (string, []string) {
	t.Helper()
	root := t.TempDir()
	var files []string
	for _, f := range txtar.Parse([]byte(archive)).Files {
		path := filepath.Join(root, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
		if csharp.IsSource(path) {
			files = append(files, path)
		}
	}
	return root, files
}

func fileByName(t *testing.T, a *models.FlowAnalysis, name string) models.FileFlow {
	t.Helper()
	for _, f := range a.Files {
		if filepath.Base(f.Path) == name {
			return f
		}
	}
	require.Failf(t, "file not analyzed", "%s", name)
	return models.FileFlow{}
}

func TestAnalyze(t *testing.T) {
	_, files := extract(t, shop)
	s := New()
	defer s.Close()

	a, err := s.Analyze(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, a.Files, 3)

	orders := fileByName(t, a, "Orders.cs")
	assert.False(t, orders.Generated)
	require.Len(t, orders.Methods, 2)
	assert.Equal(t, "Orders.Total", orders.Methods[0].Name)
	assert.Equal(t, uint32(5), orders.Methods[0].Line)
	assert.False(t, orders.Methods[0].Exceeded)
	assert.Positive(t, orders.Methods[0].Blocks)

	require.Len(t, orders.Findings, 1)
	f := orders.Findings[0]
	assert.Equal(t, models.RuleNullDereference, f.Rule)
	assert.Equal(t, uint32(12), f.Line)
	assert.Equal(t, "Orders.Total", f.Method)

	for _, name := range []string{"Orders.g.cs", "Client.cs"} {
		g := fileByName(t, a, name)
		assert.True(t, g.Generated, name)
		assert.True(t, g.Skipped, name)
		assert.Empty(t, g.Methods, name)
	}

	assert.Equal(t, 3, a.Summary.TotalFiles)
	assert.Equal(t, 1, a.Summary.AnalyzedFiles)
	assert.Equal(t, 2, a.Summary.GeneratedFiles)
	assert.Equal(t, 1, a.Summary.ByRule[string(models.RuleNullDereference)])
}

func TestAnalyzeGeneratedWhenEnabled(t *testing.T) {
	_, files := extract(t, shop)
	cfg := config.DefaultConfig()
	cfg.Generated.AnalyzeGenerated = true
	s := New(WithConfig(cfg))
	defer s.Close()

	a, err := s.Analyze(context.Background(), files)
	require.NoError(t, err)

	g := fileByName(t, a, "Orders.g.cs")
	assert.True(t, g.Generated)
	assert.False(t, g.Skipped)
	require.Len(t, g.Findings, 1)
	assert.Equal(t, "Orders.Broken", g.Findings[0].Method)
}

func TestAnalyzeLogsSkippedGeneratedFiles(t *testing.T) {
	_, files := extract(t, shop)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := New(WithLogger(logger))
	defer s.Close()
	_, err := s.Analyze(context.Background(), files)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Skipping auto generated file")
	assert.Contains(t, buf.String(), "Orders.g.cs")
}

func TestAnalyzeRulesFromConfig(t *testing.T) {
	_, files := extract(t, shop)
	cfg := config.DefaultConfig()
	cfg.Findings.NullDereference = false
	s := New(WithConfig(cfg))
	defer s.Close()

	a, err := s.Analyze(context.Background(), files)
	require.NoError(t, err)
	assert.Empty(t, a.Findings())
}

func TestAnalyzeCollectsFileErrors(t *testing.T) {
	root, files := extract(t, shop)
	missing := filepath.Join(root, "src", "Missing.cs")
	s := New()
	defer s.Close()

	a, err := s.Analyze(context.Background(), append(files, missing))
	require.Error(t, err)

	var perrs *fileproc.ProcessingErrors
	require.True(t, errors.As(err, &perrs))
	require.Len(t, perrs.Errors, 1)
	assert.Equal(t, missing, perrs.Errors[0].Path)
	assert.Len(t, a.Files, 3, "the other files are still reported")
}

func TestAnalyzeReportsProgress(t *testing.T) {
	_, files := extract(t, shop)
	s := New()
	defer s.Close()

	var mu sync.Mutex
	var seen []string
	tracker := NewTracker(func(current, total int, path string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, path)
	})

	_, err := s.Analyze(WithTracker(context.Background(), tracker), files)
	require.NoError(t, err)
	assert.Equal(t, len(files), tracker.Total())
	assert.Equal(t, len(files), tracker.Current())
	assert.ElementsMatch(t, files, seen)
	assert.Nil(t, TrackerFromContext(context.Background()))
}

func TestAnalyzeUsesResultCache(t *testing.T) {
	_, files := extract(t, shop)
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), 0, true)
	require.NoError(t, err)

	first := New(WithResultCache(c), WithVersion("test"))
	a, err := first.Analyze(context.Background(), files)
	first.Close()
	require.NoError(t, err)

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, len(files), stats.Entries)

	second := New(WithResultCache(c), WithVersion("test"))
	defer second.Close()
	b, err := second.Analyze(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAnalyzeSourceRejectsOtherLanguages(t *testing.T) {
	s := New()
	defer s.Close()
	psr := csharp.New()
	defer psr.Close()

	_, err := s.AnalyzeSource(context.Background(), psr, "main.go", []byte("package main"))
	assert.ErrorIs(t, err, csharp.ErrUnsupportedLanguage)
}

func TestSessionGeneratedCacheIsPerSession(t *testing.T) {
	s := New()
	f, err := csharp.ParseString("// <auto-generated/>\nclass A { }\n")
	require.NoError(t, err)
	f.Path = "A.cs"

	assert.True(t, s.IsGenerated(f))
	assert.Equal(t, 1, s.generated.Len())
	s.Close()
	assert.Zero(t, s.generated.Len())
}
