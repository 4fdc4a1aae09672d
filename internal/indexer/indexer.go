// Package indexer composes the index manager with one file system watcher
// per registered root directory.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/index"
	"github.com/Aman-CERP/wordindex/internal/store"
	"github.com/Aman-CERP/wordindex/internal/watcher"
)

// Config configures an Indexer.
type Config struct {
	Index index.Config
	Watch watcher.Options

	// Roots are registered on Start.
	Roots []string

	// RegistrationQueueSize bounds concurrent Add and Remove calls.
	RegistrationQueueSize int

	Logger *slog.Logger

	// NewWatcher overrides watcher construction. Used in tests.
	NewWatcher func(watcher.Options, *slog.Logger) (watcher.Watcher, error)
}

// Indexer keeps an in-memory word index in sync with a set of directory trees.
type Indexer struct {
	cfg      Config
	logger   *slog.Logger
	manager  *index.Manager
	roots    *rootSet
	services []namedService
	regSem   *semaphore.Weighted

	mu      sync.Mutex
	running bool
}

// New creates a stopped Indexer.
func New(cfg Config) (*Indexer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RegistrationQueueSize <= 0 {
		cfg.RegistrationQueueSize = 10
	}
	if cfg.NewWatcher == nil {
		cfg.NewWatcher = func(opts watcher.Options, logger *slog.Logger) (watcher.Watcher, error) {
			return watcher.NewHybridWatcher(opts, logger)
		}
	}
	if cfg.Index.Logger == nil {
		cfg.Index.Logger = cfg.Logger
	}

	manager, err := index.NewManager(cfg.Index)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger.With(slog.String("component", "indexer"))
	roots := newRootSet(manager, cfg.Watch, cfg.NewWatcher, cfg.Logger)
	return &Indexer{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		roots:   roots,
		services: []namedService{
			{name: "index", service: manager},
			{name: "watchers", service: roots},
		},
		regSem: semaphore.NewWeighted(int64(cfg.RegistrationQueueSize)),
	}, nil
}

// Start starts the index and then the watchers, and registers the
// configured roots.
func (ix *Indexer) Start(ctx context.Context) error {
	ix.mu.Lock()
	if ix.running {
		ix.mu.Unlock()
		return errors.ErrAlreadyRunning
	}
	if err := startAll(ctx, ix.services, ix.logger); err != nil {
		ix.mu.Unlock()
		return err
	}
	ix.running = true
	ix.mu.Unlock()

	for _, root := range ix.cfg.Roots {
		if err := ix.Add(ctx, root); err != nil {
			_ = ix.Stop()
			return fmt.Errorf("register root %s: %w", root, err)
		}
	}
	return nil
}

// Stop stops the watchers and then the index.
func (ix *Indexer) Stop() error {
	ix.mu.Lock()
	if !ix.running {
		ix.mu.Unlock()
		return errors.ErrNotRunning
	}
	ix.running = false
	ix.mu.Unlock()

	return stopAll(ix.services, ix.logger)
}

// WaitFinished waits up to timeout for every component to exit.
func (ix *Indexer) WaitFinished(timeout time.Duration) bool {
	return waitAll(ix.services, timeout)
}

// IsRunning reports whether the indexer has been started and not stopped.
func (ix *Indexer) IsRunning() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.running
}

// IsIdle reports whether the index has caught up with every known change.
func (ix *Indexer) IsIdle() bool {
	return ix.manager.IsIdle()
}

// Add watches the directory tree at path and schedules its initial sync.
// Adding a registered root again is a no-op.
func (ix *Indexer) Add(ctx context.Context, path string) error {
	abs := index.Normalize(path)
	info, err := os.Stat(abs)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidPath, "cannot register "+abs, err)
	}
	if !info.IsDir() {
		return errors.New(errors.ErrCodeInvalidPath, abs+" is not a directory", nil)
	}

	if err := ix.regSem.Acquire(ctx, 1); err != nil {
		return errors.NotAdmitted("add root", err)
	}
	defer ix.regSem.Release(1)

	added, err := ix.roots.add(abs)
	if err != nil || !added {
		return err
	}
	if err := ix.manager.OnDirectoryChanged(ctx, abs); err != nil {
		return err
	}
	ix.logger.Info("root added", slog.String("path", abs))
	return nil
}

// Remove stops watching the root at path and drops it from the index.
func (ix *Indexer) Remove(ctx context.Context, path string) error {
	abs := index.Normalize(path)

	if err := ix.regSem.Acquire(ctx, 1); err != nil {
		return errors.NotAdmitted("remove root", err)
	}
	defer ix.regSem.Release(1)

	if !ix.roots.remove(abs) {
		return errors.New(errors.ErrCodeInvalidPath, abs+" is not a registered root", nil)
	}
	if err := ix.manager.OnDirectoryRemoved(ctx, abs); err != nil {
		return err
	}
	ix.logger.Info("root removed", slog.String("path", abs))
	return nil
}

// Roots returns the registered roots in sorted order.
func (ix *Indexer) Roots() []string {
	roots := ix.roots.list()
	sort.Strings(roots)
	return roots
}

// Search returns the files containing word.
func (ix *Indexer) Search(word string) []store.FileEntry {
	return ix.manager.Search(word)
}

// ListFiles returns every known file with its state.
func (ix *Indexer) ListFiles() []store.FileStatistics {
	return ix.manager.ListFiles()
}

// ListWords returns every indexed word.
func (ix *Indexer) ListWords() []string {
	return ix.manager.ListWords()
}

// Stats returns index counters.
func (ix *Indexer) Stats() store.Statistics {
	return ix.manager.Stats()
}

// Manager returns the underlying index manager.
func (ix *Indexer) Manager() *index.Manager {
	return ix.manager
}

// Collector exposes index metrics.
func (ix *Indexer) Collector() prometheus.Collector {
	return ix.manager.Collector()
}

// Rescan schedules a full sync of a registered root.
func (ix *Indexer) Rescan(ctx context.Context, path string) error {
	return ix.manager.OnDirectoryChanged(ctx, path)
}
