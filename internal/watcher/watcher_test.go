package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/graph"
)

const siteV1 = `
us:
  - id: a
  - id: b
relations:
  - id: r1
    anterior_us: a
    posterior_us: b
`

const siteV2 = siteV1 + `  - id: r2
    anterior_us: b
    posterior_us: a
`

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yml")
	require.NoError(t, os.WriteFile(path, []byte(siteV1), 0o644))

	var calls atomic.Int32
	w := New(path, func() { calls.Add(1) }, zap.NewNop()).WithDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(siteV2), 0o644))
	}
	// Writes to other files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReloader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yml")
	require.NoError(t, os.WriteFile(path, []byte(siteV2), 0o644))

	store := graph.NewMemStore()
	Reloader(path, store, nil)()

	rels, err := store.Relations(context.Background())
	require.NoError(t, err)
	assert.Len(t, rels, 2)

	select {
	case c := <-store.Changes():
		assert.Equal(t, graph.ChangeReload, c.Kind)
	default:
		t.Fatal("expected a reload notification")
	}

	// A broken file keeps the previous content.
	require.NoError(t, os.WriteFile(path, []byte("relations: [{id: r3}]"), 0o644))
	Reloader(path, store, nil)()
	rels, err = store.Relations(context.Background())
	require.NoError(t, err)
	assert.Len(t, rels, 2)
}
