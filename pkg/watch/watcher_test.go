package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/csflow/pkg/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestWatcher(t *testing.T, dir string, cb Callback, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{WithOutput(&syncBuffer{}, false)}, opts...)
	w, err := NewWatcher(dir, config.DefaultConfig(), cb, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestNewWatcherDebounce(t *testing.T) {
	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{"default", 0, DefaultDebounce},
		{"negative", -time.Second, DefaultDebounce},
		{"custom", time.Second, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatcher(t, t.TempDir(), nil, WithDebounce(tt.debounce))
			assert.Equal(t, tt.want, w.debounce)
		})
	}
}

func TestHandleEvent(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, nil)

	tests := []struct {
		name string
		op   fsnotify.Op
		path string
		want bool
	}{
		{"write", fsnotify.Write, "A.cs", true},
		{"create", fsnotify.Create, "B.cs", true},
		{"rename", fsnotify.Rename, "C.cs", true},
		{"remove", fsnotify.Remove, "D.cs", false},
		{"chmod", fsnotify.Chmod, "E.cs", false},
		{"other language", fsnotify.Write, "main.go", false},
		{"excluded dir", fsnotify.Write, filepath.Join("obj", "F.cs"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.path)
			w.handleEvent(fsnotify.Event{Name: path, Op: tt.op})
			w.mu.Lock()
			_, ok := w.pending[path]
			w.mu.Unlock()
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestTakeReady(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), nil, WithDebounce(time.Second))
	now := time.Now()
	w.pending["/b.cs"] = now.Add(-2 * time.Second)
	w.pending["/a.cs"] = now.Add(-2 * time.Second)
	w.pending["/c.cs"] = now

	assert.Equal(t, []string{"/a.cs", "/b.cs"}, w.takeReady(now))
	assert.Len(t, w.pending, 1)
	assert.Empty(t, w.takeReady(now))
}

func TestAddTreeSkipsExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"src", filepath.Join("src", "obj"), "bin"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	w := newTestWatcher(t, dir, nil)
	require.NoError(t, w.addTree(dir))

	assert.ElementsMatch(t, []string{dir, filepath.Join(dir, "src")}, w.WatchedDirs())
}

func TestStartReportsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	var got []string
	out := &syncBuffer{}

	w := newTestWatcher(t, dir, func(_ context.Context, paths []string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, paths...)
	}, WithDebounce(50*time.Millisecond), WithOutput(out, false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return len(w.WatchedDirs()) > 0 }, 2*time.Second, 10*time.Millisecond)
	path := filepath.Join(dir, "Widget.cs")
	require.NoError(t, os.WriteFile(path, []byte("class Widget { }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	for _, p := range got {
		assert.Equal(t, path, p, "only the source file is reported")
	}
	assert.Contains(t, out.String(), "Changed: Widget.cs")
}
