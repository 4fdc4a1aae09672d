package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/store"
)

// testConfig returns a config with short socket paths under a fresh directory.
func testConfig(t *testing.T) Config {
	t.Helper()
	dir, err := os.MkdirTemp("", "wi")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	cfg := DefaultConfig()
	cfg.SocketPath = filepath.Join(dir, "d.sock")
	cfg.PIDPath = filepath.Join(dir, "d.pid")
	cfg.Timeout = 5 * time.Second
	cfg.ShutdownGracePeriod = 5 * time.Second
	return cfg
}

// fakeIndex is an in-memory Index.
type fakeIndex struct {
	mu    sync.Mutex
	roots map[string]bool
	words map[string][]store.FileEntry
	files []store.FileStatistics
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		roots: make(map[string]bool),
		words: map[string][]store.FileEntry{
			"cat": {{Path: "/t/a.txt", Valid: true}, {Path: "/t/b.txt", Valid: false}},
		},
		files: []store.FileStatistics{
			{Path: "/t/a.txt", State: store.StateValid, WordCount: 2},
			{Path: "/t/b.txt", State: store.StateProcessing, WordCount: 1},
		},
	}
}

func (f *fakeIndex) Search(word string) []store.FileEntry { return f.words[word] }
func (f *fakeIndex) ListFiles() []store.FileStatistics    { return f.files }
func (f *fakeIndex) ListWords() []string                  { return []string{"cat", "dog"} }
func (f *fakeIndex) IsIdle() bool                         { return true }

func (f *fakeIndex) Stats() store.Statistics {
	return store.Statistics{Files: 2, NonEmpty: 2, Valid: 1, Processing: 1, Words: 2}
}

func (f *fakeIndex) Roots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.roots))
	for r := range f.roots {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (f *fakeIndex) Add(_ context.Context, path string) error {
	if path == "/missing" {
		return errors.New(errors.ErrCodeInvalidPath, "cannot register /missing", nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roots[path] = true
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.roots[path] {
		return errors.New(errors.ErrCodeInvalidPath, path+" is not a registered root", nil)
	}
	delete(f.roots, path)
	return nil
}

// startServer runs a server for idx until the test ends.
func startServer(t *testing.T, idx Index, opts ...func(*Server)) (*Server, *Client) {
	t.Helper()
	cfg := testConfig(t)
	srv := NewServer(cfg.SocketPath, idx, "test-instance", nil)
	for _, opt := range opts {
		opt(srv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := NewClient(cfg)
	require.NoError(t, client.WaitReady(context.Background(), errors.RetryConfig{
		MaxRetries:   20,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2,
	}))
	return srv, client
}
