// Package index is the incremental indexing engine: a priority task queue
// with admission control, a single scheduler goroutine that owns every
// store mutation, and the per-file state machine that keeps the store
// consistent with files that change while they are being processed.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/processor"
	"github.com/Aman-CERP/wordindex/internal/store"
	"github.com/Aman-CERP/wordindex/internal/tokenizer"
)

// Config configures a Manager.
type Config struct {
	// QueueSize bounds outstanding structural tasks and, separately,
	// outstanding content tasks.
	QueueSize int
	// Workers is the number of parallel processing passes.
	Workers int
	// WorkerQueueSize is the number of admitted passes that may wait for a worker.
	WorkerQueueSize int
	Tokenizer       tokenizer.Kind
	// SearchCacheSize is the number of search results kept; 0 disables caching.
	SearchCacheSize int

	Clock  store.Clock
	Logger *slog.Logger

	// FileExists overrides the existence check used when pruning directories.
	FileExists func(path string) bool
	// NewProcessor overrides the worker pool. Used in tests.
	NewProcessor func(processor.Config, processor.Results) processor.FilesProcessor
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:       100,
		Workers:         3,
		WorkerQueueSize: 10,
		Tokenizer:       tokenizer.KindAlphanum,
		SearchCacheSize: 1024,
	}
}

// Manager owns the index store and the pipeline that feeds it.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	clock  store.Clock

	store   *store.Store
	tracker *tracker
	metrics *metrics
	cache   *searchCache

	mu      sync.Mutex
	queue   *Queue
	pool    processor.FilesProcessor
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	stagingMu    sync.Mutex
	staging      []string
	saturatedLog rate.Sometimes
}

var _ processor.Results = (*Manager)(nil)

// NewManager creates a stopped Manager with an empty index.
func NewManager(cfg Config) (*Manager, error) {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.WorkerQueueSize < 0 {
		cfg.WorkerQueueSize = def.WorkerQueueSize
	}
	if cfg.Tokenizer == "" {
		cfg.Tokenizer = def.Tokenizer
	}
	if _, err := tokenizer.ParseKind(string(cfg.Tokenizer)); err != nil {
		return nil, errors.ConfigError("invalid tokenizer", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = store.NewMonotonicClock()
	}
	if cfg.NewProcessor == nil {
		cfg.NewProcessor = func(pc processor.Config, r processor.Results) processor.FilesProcessor {
			return processor.NewPool(pc, r)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "index"))

	m := &Manager{
		cfg:          cfg,
		logger:       logger,
		clock:        cfg.Clock,
		store:        store.New(store.Options{FileExists: cfg.FileExists, Logger: logger}),
		metrics:      newMetrics(),
		saturatedLog: rate.Sometimes{Interval: 10 * time.Second},
	}
	m.tracker = &tracker{store: m.store, logger: logger, dispatch: m.dispatch, metrics: m.metrics}

	cache, err := newSearchCache(cfg.SearchCacheSize, m.store)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// Collector exposes the manager's metrics for registration.
func (m *Manager) Collector() prometheus.Collector {
	return newCollector(m)
}

// Start launches the worker pool and the scheduler goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.ErrAlreadyRunning
	}

	if n := m.store.ResetInFlight(); n > 0 {
		m.logger.Info("reset files left processing by previous run", slog.Int("files", n))
	}

	q := NewQueue(m.cfg.QueueSize, m.logger)
	pool := m.cfg.NewProcessor(processor.Config{
		Workers:     m.cfg.Workers,
		QueueSize:   m.cfg.WorkerQueueSize,
		Clock:       m.clock,
		Logger:      m.logger,
		OnSlotFreed: m.drain,
	}, m)

	runCtx, cancel := context.WithCancel(ctx)
	if err := pool.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start processor: %w", err)
	}

	m.queue = q
	m.pool = pool
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.run(runCtx, q, m.done)

	m.logger.Info("index started",
		slog.Int("queue_size", m.cfg.QueueSize),
		slog.Int("workers", m.cfg.Workers),
		slog.String("tokenizer", string(m.cfg.Tokenizer)))
	return nil
}

// Stop stops the scheduler, discards queued tasks and staged files, and
// wakes every blocked producer. Passes already running finish on their
// own; their results are ignored.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return errors.ErrNotRunning
	}
	m.running = false
	q, pool, cancel := m.queue, m.pool, m.cancel
	m.mu.Unlock()

	cancel()
	q.Close()
	err := pool.Stop()

	m.stagingMu.Lock()
	dropped := len(m.staging)
	m.staging = nil
	m.stagingMu.Unlock()

	m.logger.Info("index stopped", slog.Int("staged_dropped", dropped))
	return err
}

// IsRunning reports whether the scheduler goroutine is alive.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// WaitFinished waits up to timeout for the scheduler and the workers to exit.
func (m *Manager) WaitFinished(timeout time.Duration) bool {
	m.mu.Lock()
	done, pool := m.done, m.pool
	m.mu.Unlock()
	if done == nil {
		return true
	}

	deadline := time.Now().Add(timeout)
	select {
	case <-done:
	default:
		select {
		case <-done:
		case <-time.After(timeout):
			return false
		}
	}
	return pool.WaitFinished(time.Until(deadline))
}

// IsIdle reports whether no task is queued or being applied, no file is
// staged, and no pass is running.
func (m *Manager) IsIdle() bool {
	m.mu.Lock()
	q, pool, running := m.queue, m.pool, m.running
	m.mu.Unlock()
	if !running {
		return true
	}

	before := q.Completed()
	m.stagingMu.Lock()
	quiet := len(m.staging) == 0 && pool.Idle()
	m.stagingMu.Unlock()
	return quiet && q.Idle() && q.Completed() == before
}

func (m *Manager) run(ctx context.Context, q *Queue, done chan struct{}) {
	defer close(done)
	for {
		t, err := q.Take(ctx)
		if err != nil {
			m.logger.Debug("scheduler exiting", slog.String("reason", err.Error()))
			return
		}
		m.tracker.apply(t)
		m.metrics.applied.WithLabelValues(t.Kind.String()).Inc()
		if t.Kind == TaskProcessingFinished {
			result := "failed"
			if t.Success {
				result = "ok"
			}
			m.metrics.passes.WithLabelValues(result).Inc()
			m.drain()
		}
		q.Done(t)
	}
}

func (m *Manager) activeQueue() (*Queue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue, m.running
}

func (m *Manager) submit(ctx context.Context, t Task) error {
	q, running := m.activeQueue()
	if !running {
		return errors.Stopped(t.Kind.String())
	}
	return q.Submit(ctx, t)
}

// Normalize cleans path and makes it absolute.
func Normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// OnFileChanged schedules a sync of the file at path.
func (m *Manager) OnFileChanged(ctx context.Context, path string) error {
	return m.submit(ctx, Task{Kind: TaskSyncFile, Path: Normalize(path), Stamp: m.clock.Now()})
}

// OnFileRemoved schedules removal of the file at path.
func (m *Manager) OnFileRemoved(ctx context.Context, path string) error {
	return m.submit(ctx, Task{Kind: TaskRemoveFile, Path: Normalize(path)})
}

// OnDirectoryChanged schedules a recursive sync of the directory at path.
func (m *Manager) OnDirectoryChanged(ctx context.Context, path string) error {
	return m.submit(ctx, Task{Kind: TaskSyncDirectory, Path: Normalize(path), Stamp: m.clock.Now()})
}

// OnDirectoryRemoved schedules removal of path and everything under it.
func (m *Manager) OnDirectoryRemoved(ctx context.Context, path string) error {
	return m.submit(ctx, Task{Kind: TaskRemoveDirectory, Path: Normalize(path)})
}

// AddWordToIndex schedules linking word to the file at path.
func (m *Manager) AddWordToIndex(ctx context.Context, path, word string) error {
	return m.submit(ctx, Task{Kind: TaskAddWord, Path: path, Word: word})
}

// RemoveFromIndex schedules clearing the words of the file at path.
func (m *Manager) RemoveFromIndex(ctx context.Context, path string) error {
	return m.submit(ctx, Task{Kind: TaskRemoveWords, Path: path})
}

// SubmitFinishedProcessing reports a finished pass. It never blocks.
func (m *Manager) SubmitFinishedProcessing(path string, start store.Stamp, success bool) error {
	return m.submit(context.Background(), Task{
		Kind:    TaskProcessingFinished,
		Path:    path,
		Stamp:   start,
		Success: success,
	})
}

// NewTokenizer opens path with the configured tokenizer. It returns nil
// and no error if path is no longer a regular file.
func (m *Manager) NewTokenizer(path string) (tokenizer.Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.IOError("cannot open "+path, err)
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil
	}
	return tokenizer.New(m.cfg.Tokenizer, f), nil
}

// ProcessFile stages path for a processing pass. It never blocks and
// returns false only when the manager is stopped.
func (m *Manager) ProcessFile(path string) bool {
	if _, running := m.activeQueue(); !running {
		return false
	}
	m.stagingMu.Lock()
	m.staging = append(m.staging, path)
	m.stagingMu.Unlock()
	m.drain()
	return true
}

func (m *Manager) dispatch(path string) {
	if !m.ProcessFile(path) {
		m.logger.Debug("dispatch dropped, manager stopped", slog.String("path", path))
	}
}

// drain moves staged files into the worker pool until it declines.
func (m *Manager) drain() {
	m.mu.Lock()
	pool, running := m.pool, m.running
	m.mu.Unlock()
	if !running {
		return
	}

	m.stagingMu.Lock()
	defer m.stagingMu.Unlock()
	for len(m.staging) > 0 {
		if !pool.TryProcess(m.staging[0]) {
			m.metrics.declined.Inc()
			m.saturatedLog.Do(func() {
				m.logger.Info("workers saturated, files staged", slog.Int("staged", len(m.staging)))
			})
			return
		}
		m.staging[0] = ""
		m.staging = m.staging[1:]
	}
	m.staging = nil
}

// Staged returns the number of files waiting for a worker.
func (m *Manager) Staged() int {
	m.stagingMu.Lock()
	defer m.stagingMu.Unlock()
	return len(m.staging)
}

// QueueLen returns queued tasks per priority group.
func (m *Manager) QueueLen() [numGroups]int {
	q, _ := m.activeQueue()
	if q == nil {
		return [numGroups]int{}
	}
	return q.Len()
}
