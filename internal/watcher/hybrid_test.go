package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var watchModes = []struct {
	name    string
	polling bool
}{
	{name: "fsnotify"},
	{name: "polling", polling: true},
}

func startHybrid(t *testing.T, root string, opts Options) *HybridWatcher {
	t.Helper()
	opts.DebounceWindow = 20 * time.Millisecond
	opts.PollInterval = 20 * time.Millisecond

	w, err := NewHybridWatcher(opts, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	require.NoError(t, w.Start(ctx, root))
	return w
}

// collectUntil gathers events until done reports true for the collection.
func collectUntil(t *testing.T, w *HybridWatcher, done func(map[string]FileEvent) bool) map[string]FileEvent {
	t.Helper()
	seen := make(map[string]FileEvent)
	deadline := time.After(3 * time.Second)
	for !done(seen) {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events closed")
			for _, e := range batch {
				seen[e.Path] = e
			}
		case err := <-w.Errors():
			t.Fatalf("unexpected error: %v", err)
		case <-deadline:
			t.Fatalf("timeout; saw %v", seen)
		}
	}
	return seen
}

func has(path string) func(map[string]FileEvent) bool {
	return func(seen map[string]FileEvent) bool {
		_, ok := seen[path]
		return ok
	}
}

func TestHybridWatcher_ReportsFileLifecycle(t *testing.T) {
	for _, mode := range watchModes {
		t.Run(mode.name, func(t *testing.T) {
			// Given: a watched tree
			root := t.TempDir()
			w := startHybrid(t, root, Options{ForcePolling: mode.polling})
			if mode.polling {
				assert.Equal(t, "polling", w.WatcherType())
			}
			assert.Equal(t, root, w.RootPath())

			// When: a file is created
			file := filepath.Join(root, "notes.txt")
			require.NoError(t, os.WriteFile(file, []byte("cat dog"), 0o644))

			// Then: a create (or modify) for its absolute path arrives
			seen := collectUntil(t, w, has(file))
			assert.Contains(t, []Operation{OpCreate, OpModify}, seen[file].Operation)
			assert.False(t, seen[file].IsDir)

			// When: the file is removed
			require.NoError(t, os.Remove(file))

			// Then: its removal is reported
			seen = collectUntil(t, w, has(file))
			assert.Contains(t, []Operation{OpDelete, OpRename}, seen[file].Operation)
		})
	}
}

func TestHybridWatcher_ReportsDirectoriesAndWatchesNewOnes(t *testing.T) {
	for _, mode := range watchModes {
		t.Run(mode.name, func(t *testing.T) {
			// Given: a watched tree
			root := t.TempDir()
			w := startHybrid(t, root, Options{ForcePolling: mode.polling})

			// When: a subdirectory is created
			sub := filepath.Join(root, "sub")
			require.NoError(t, os.Mkdir(sub, 0o755))

			// Then: it is reported as a directory
			seen := collectUntil(t, w, has(sub))
			assert.True(t, seen[sub].IsDir)

			// When: a file is written inside it
			nested := filepath.Join(sub, "inner.txt")
			require.NoError(t, os.WriteFile(nested, []byte("x"), 0o644))

			// Then: the nested file is seen
			collectUntil(t, w, has(nested))

			// When: the directory is removed
			require.NoError(t, os.RemoveAll(sub))

			// Then: its removal is classified as a directory
			seen = collectUntil(t, w, has(sub))
			assert.True(t, seen[sub].IsDir)
		})
	}
}

func TestHybridWatcher_HonorsIgnorePatterns(t *testing.T) {
	for _, mode := range watchModes {
		t.Run(mode.name, func(t *testing.T) {
			// Given: a root .gitignore plus a configured pattern
			root := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("build/\n"), 0o644))
			require.NoError(t, os.Mkdir(filepath.Join(root, "build"), 0o755))
			require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
			w := startHybrid(t, root, Options{ForcePolling: mode.polling, IgnorePatterns: []string{"*.log"}})

			// When: ignored and regular files are written
			require.NoError(t, os.WriteFile(filepath.Join(root, "debug.log"), []byte("x"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(root, "build", "out.txt"), []byte("x"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("x"), 0o644))
			marker := filepath.Join(root, "kept.txt")
			require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))

			// Then: only the regular file is reported
			seen := collectUntil(t, w, has(marker))
			assert.NotContains(t, seen, filepath.Join(root, "debug.log"))
			assert.NotContains(t, seen, filepath.Join(root, "build", "out.txt"))
			assert.NotContains(t, seen, filepath.Join(root, ".git", "HEAD"))
		})
	}
}

func TestHybridWatcher_ShouldIgnore(t *testing.T) {
	// Given: a watcher with patterns loaded for a root
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("vendor/\n*.bak\n"), 0o644))
	w := startHybrid(t, root, Options{ForcePolling: true, IgnorePatterns: []string{"tmp"}})

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{rel: "main.txt", want: false},
		{rel: "old.bak", want: true},
		{rel: "vendor", isDir: true, want: true},
		{rel: "tmp", isDir: true, want: true},
		{rel: ".git", isDir: true, want: true},
		{rel: ".git/config", want: true},
		{rel: "docs", isDir: true, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, w.shouldIgnore(filepath.Join(root, filepath.FromSlash(tt.rel)), tt.isDir))
		})
	}

	// The root itself and paths outside it are never reported.
	assert.True(t, w.shouldIgnore(root, true))
	assert.True(t, w.shouldIgnore(filepath.Dir(root), true))
}

func TestHybridWatcher_StartRejectsFileRoot(t *testing.T) {
	// Given: a regular file
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	w, err := NewHybridWatcher(DefaultOptions(), nil)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	// When: it is used as the watch root
	err = w.Start(context.Background(), file)

	// Then: setup fails
	require.Error(t, err)
}

func TestHybridWatcher_RejectsInvalidOptions(t *testing.T) {
	_, err := NewHybridWatcher(Options{DebounceWindow: -1}, nil)
	require.Error(t, err)
}

func TestHybridWatcher_StopClosesChannels(t *testing.T) {
	// Given: a running watcher
	w := startHybrid(t, t.TempDir(), Options{})
	require.True(t, w.IsHealthy())

	// When: stopped twice
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	// Then: both channels close
	assert.False(t, w.IsHealthy())
	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
	_, ok := <-w.Errors()
	assert.False(t, ok)
}
