package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/index"
	"github.com/Aman-CERP/wordindex/internal/store"
	"github.com/Aman-CERP/wordindex/internal/watcher"
)

func newTestIndexer(t *testing.T, roots ...string) *Indexer {
	t.Helper()
	ix, err := New(Config{
		Index: index.DefaultConfig(),
		Watch: watcher.Options{DebounceWindow: 20 * time.Millisecond},
		Roots: roots,
	})
	require.NoError(t, err)
	require.NoError(t, ix.Start(context.Background()))
	t.Cleanup(func() {
		_ = ix.Stop()
		ix.WaitFinished(5 * time.Second)
	})
	return ix
}

func searchPaths(ix *Indexer, word string) []string {
	var out []string
	for _, e := range ix.Search(word) {
		if e.Valid {
			out = append(out, e.Path)
		}
	}
	return out
}

func TestIndexer_IndexesRootAndFollowsChanges(t *testing.T) {
	// Given: a tree with one file, registered at start
	root := t.TempDir()
	first := filepath.Join(root, "first.txt")
	require.NoError(t, os.WriteFile(first, []byte("cat dog"), 0o644))
	ix := newTestIndexer(t, root)

	// Then: the initial sync indexes it
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{first}, searchPaths(ix, "cat"))
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{root}, ix.Roots())

	// When: a new file appears in a new subdirectory
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	second := filepath.Join(sub, "second.txt")
	require.NoError(t, os.WriteFile(second, []byte("cat bird"), 0o644))

	// Then: the watcher picks it up
	require.Eventually(t, func() bool {
		return len(searchPaths(ix, "bird")) == 1 && len(searchPaths(ix, "cat")) == 2
	}, 5*time.Second, 20*time.Millisecond)

	// When: the first file is deleted
	require.NoError(t, os.Remove(first))

	// Then: it drops out of the index
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{second}, searchPaths(ix, "cat")) &&
			len(ix.Search("dog")) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestIndexer_RemoveRootDropsItsFiles(t *testing.T) {
	// Given: two indexed roots
	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(a, "a.txt"), []byte("shared alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b, "b.txt"), []byte("shared beta"), 0o644))
	ix := newTestIndexer(t)
	ctx := context.Background()
	require.NoError(t, ix.Add(ctx, a))
	require.NoError(t, ix.Add(ctx, b))
	require.Eventually(t, func() bool { return len(searchPaths(ix, "shared")) == 2 }, 5*time.Second, 20*time.Millisecond)

	// When: one root is removed
	require.NoError(t, ix.Remove(ctx, a))

	// Then: only the other root's files remain
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{filepath.Join(b, "b.txt")}, searchPaths(ix, "shared"))
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{b}, ix.Roots())
	assert.Empty(t, ix.Search("alpha"))
}

func TestIndexer_AddValidatesPath(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	// A missing path is rejected.
	err := ix.Add(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))

	// A regular file is rejected.
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	err = ix.Add(ctx, file)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))

	// Removing an unknown root is rejected.
	err = ix.Remove(ctx, t.TempDir())
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))
}

func TestIndexer_AddTwiceIsNoop(t *testing.T) {
	root := t.TempDir()
	ix := newTestIndexer(t, root)

	require.NoError(t, ix.Add(context.Background(), root))
	assert.Equal(t, []string{root}, ix.Roots())
}

func TestIndexer_StartFailsWhenRootCannotBeWatched(t *testing.T) {
	// Given: a watcher factory that always fails
	ix, err := New(Config{
		Roots: []string{t.TempDir()},
		NewWatcher: func(watcher.Options, *slog.Logger) (watcher.Watcher, error) {
			return nil, fmt.Errorf("no watches left")
		},
	})
	require.NoError(t, err)

	// When: starting
	err = ix.Start(context.Background())

	// Then: start fails and everything is stopped again
	require.Error(t, err)
	assert.False(t, ix.IsRunning())
	assert.False(t, ix.Manager().IsRunning())
	assert.True(t, ix.WaitFinished(time.Second))
}

func TestIndexer_Lifecycle(t *testing.T) {
	ix, err := New(Config{})
	require.NoError(t, err)

	// Stopping before starting reports not running.
	assert.ErrorIs(t, ix.Stop(), errors.ErrNotRunning)

	require.NoError(t, ix.Start(context.Background()))
	assert.ErrorIs(t, ix.Start(context.Background()), errors.ErrAlreadyRunning)
	assert.True(t, ix.IsRunning())

	require.NoError(t, ix.Stop())
	assert.True(t, ix.WaitFinished(5*time.Second))
	assert.False(t, ix.IsRunning())

	// Registration after stop is refused.
	err = ix.Add(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, errors.ErrServiceStopped)
	assert.Equal(t, store.Statistics{}, ix.Stats())
}
