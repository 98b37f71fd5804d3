package watch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.ch <- path
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func TestDebounceCollapsesBursts(t *testing.T) {
	rec := newRecorder()
	d := newDebouncer(20*time.Millisecond, rec.record)

	for i := 0; i < 5; i++ {
		d.trigger("/a")
	}
	d.trigger("/b")

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case p := <-rec.ch:
			seen[p] = true
		case <-time.After(2 * time.Second):
			t.Fatal("debounced callback never ran")
		}
	}
	assert.Equal(t, map[string]bool{"/a": true, "/b": true}, seen)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, rec.count())
	assert.Zero(t, d.pending())
}

func TestDebounceStopCancelsPending(t *testing.T) {
	rec := newRecorder()
	d := newDebouncer(20*time.Millisecond, rec.record)

	d.trigger("/a")
	d.stop()
	d.trigger("/b")

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, rec.count())
	assert.Zero(t, d.pending())
}

func TestDefaultDelay(t *testing.T) {
	d := newDebouncer(0, func(string) {})
	assert.Equal(t, DefaultDelay, d.delay)
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.dawn")
	require.NoError(t, os.WriteFile(path, []byte("int x = 1;\n"), 0o644))

	rec := newRecorder()
	w, err := New(Options{Delay: 10 * time.Millisecond, OnChange: rec.record}, nil)
	require.NoError(t, err)
	require.NoError(t, w.AddFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Polling watchers compare modification times, so make the change visible.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("int x = 2;\n"), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	select {
	case got := <-rec.ch:
		want, err := filepath.Abs(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, w.Close())
}

func TestWatchMissingFile(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("polling watchers accept files that do not exist yet")
	}
	w, err := New(Options{OnChange: func(string) {}}, nil)
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, w.AddFile(filepath.Join(t.TempDir(), "missing.dawn")))
}
