package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
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
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (r *recorder) rebuild(_ context.Context, changed []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changed)
	return r.err
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func start(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w, err := New(Options{Dirs: []string{dir}, Debounce: 50 * time.Millisecond, Rebuild: rec.rebuild})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := start(t, dir, rec)

	path := filepath.Join(dir, "Widget.java")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("class Widget { }\n"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	batches := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{path}, batches[0])
	assert.Equal(t, 1, w.Stats().Rebuilds)
	assert.GreaterOrEqual(t, w.Stats().Events, 1)
}

func TestWatcherBatchesFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	start(t, dir, rec)

	a := filepath.Join(dir, "A.java")
	b := filepath.Join(dir, "B.java")
	require.NoError(t, os.WriteFile(b, []byte("class B { }\n"), 0644))
	require.NoError(t, os.WriteFile(a, []byte("class A { }\n"), 0644))

	seen := func() map[string]bool {
		set := map[string]bool{}
		for _, batch := range rec.snapshot() {
			assert.True(t, sort.StringsAreSorted(batch))
			for _, p := range batch {
				set[p] = true
			}
		}
		return set
	}
	require.Eventually(t, func() bool { return len(seen()) == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, map[string]bool{a: true, b: true}, seen())
}

func TestWatcherCountsRebuildErrors(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{err: errors.New("syntax error")}
	w := start(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.java"), []byte("class {"), 0644))
	require.Eventually(t, func() bool { return w.Stats().Errors > 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherStopsOnContext(t *testing.T) {
	rec := &recorder{}
	w, err := New(Options{Dirs: []string{t.TempDir()}, Rebuild: rec.rebuild})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Dirs: []string{t.TempDir()}})
	assert.Error(t, err)
	_, err = New(Options{Rebuild: (&recorder{}).rebuild})
	assert.Error(t, err)
}

func TestStartMissingDir(t *testing.T) {
	w, err := New(Options{Dirs: []string{filepath.Join(t.TempDir(), "missing")}, Rebuild: (&recorder{}).rebuild})
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}
