package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/csflow/pkg/models"
)

func sample() *models.FileFlow {
	return &models.FileFlow{
		Path:    "src/A.cs",
		Methods: []models.MethodSummary{{Name: "A.M", Blocks: 3}},
		Findings: []models.Finding{{
			Rule: models.RuleDeadStore, Severity: models.SeverityWarning, File: "src/A.cs", Line: 4,
		}},
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	c, err := New(dir, 24, true)
	require.NoError(t, err)
	assert.True(t, c.Enabled())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSetAndGet(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	require.NoError(t, err)

	key := Key("src/A.cs", []byte("class A { }"), "1.0.0", "steps=4000")
	_, ok := c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Set(key, sample()))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, sample(), got)

	require.NoError(t, c.Invalidate(key))
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(key), "invalidating a missing key is not an error")
}

func TestKeyDependsOnEveryPart(t *testing.T) {
	base := Key("A.cs", []byte("class A { }"), "1", "x")
	assert.Len(t, base, 64)
	assert.Equal(t, base, Key("A.cs", []byte("class A { }"), "1", "x"))

	for _, other := range []string{
		Key("B.cs", []byte("class A { }"), "1", "x"),
		Key("A.cs", []byte("class B { }"), "1", "x"),
		Key("A.cs", []byte("class A { }"), "2", "x"),
		Key("A.cs", []byte("class A { }"), "1", "y"),
		// Length prefixes keep part boundaries distinct.
		Key("A.c", []byte("sclass A { }"), "1", "x"),
	} {
		assert.NotEqual(t, base, other)
	}
}

func TestDisabledCache(t *testing.T) {
	c, err := New("", 24, false)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	require.NoError(t, c.Set("k", sample()))
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.NoError(t, c.Clear())

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestTTLExpiration(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1, true)
	require.NoError(t, err)

	stale, err := json.Marshal(Entry{Key: "old", Timestamp: time.Now().Add(-2 * time.Hour), Result: sample()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.keyPath("old"), stale, 0o600))

	_, ok := c.Get("old")
	assert.False(t, ok)
	_, err = os.Stat(c.keyPath("old"))
	assert.True(t, os.IsNotExist(err), "expired entries are removed")
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	c, err := New(t.TempDir(), 0, true)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.keyPath("bad"), []byte("{"), 0o600))

	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestConcurrentWritersOfOneKey(t *testing.T) {
	c, err := New(t.TempDir(), 0, true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Set("same", sample()))
		}()
	}
	wg.Wait()

	got, ok := c.Get("same")
	require.True(t, ok)
	assert.Equal(t, sample(), got)

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	c, err := New(filepath.Join(dir, "cache"), 24, true)
	require.NoError(t, err)
	require.NoError(t, c.Set("k", sample()))

	require.NoError(t, c.Clear())
	_, err = os.Stat(filepath.Join(dir, "cache"))
	assert.True(t, os.IsNotExist(err))
}

func TestHashBytes(t *testing.T) {
	assert.Equal(t, HashBytes([]byte("a")), HashBytes([]byte("a")))
	assert.NotEqual(t, HashBytes([]byte("a")), HashBytes([]byte("b")))
	assert.Len(t, HashBytes(nil), 64)
}

func TestGeneratedCacheInsertIfAbsent(t *testing.T) {
	c := NewGeneratedCache()
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.IsGenerated("A.g.cs", func() bool {
				// Racing computations disagree; only one answer is kept.
				return calls.Add(1) == 1
			})
		}()
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, results[0], c.IsGenerated("A.g.cs", func() bool { return !results[0] }))
}

func TestGeneratedCacheClose(t *testing.T) {
	c := NewGeneratedCache()
	assert.True(t, c.IsGenerated("A.cs", func() bool { return true }))

	c.Close()
	assert.Zero(t, c.Len())
	assert.False(t, c.IsGenerated("A.cs", func() bool { return false }))
	assert.Zero(t, c.Len(), "a closed cache stores nothing")

	var nilCache *GeneratedCache
	assert.True(t, nilCache.IsGenerated("A.cs", func() bool { return true }))
}
