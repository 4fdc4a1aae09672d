// Package processor runs file processing passes on a bounded worker pool.
//
// A pass clears a file's words, tokenizes its current content, reports
// every word, and finally reports completion with the stamp taken when
// the pass started. The pool never blocks its caller: TryProcess either
// admits the file or declines it.
package processor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/store"
	"github.com/Aman-CERP/wordindex/internal/tokenizer"
)

// Results receives the output of processing passes.
type Results interface {
	// RemoveFromIndex clears the file's words before a pass adds new ones.
	RemoveFromIndex(ctx context.Context, path string) error
	// NewTokenizer opens path. A nil Tokenizer and nil error mean the file is gone.
	NewTokenizer(path string) (tokenizer.Tokenizer, error)
	// AddWordToIndex links a word to the file. May block for admission.
	AddWordToIndex(ctx context.Context, path, word string) error
	// SubmitFinishedProcessing reports the end of a pass. Must not block.
	SubmitFinishedProcessing(path string, start store.Stamp, success bool) error
}

// FilesProcessor is the admission surface used by the index manager.
type FilesProcessor interface {
	Start(ctx context.Context) error
	Stop() error
	// TryProcess schedules a pass for path, or returns false if no slot is free.
	TryProcess(path string) bool
	WaitFinished(timeout time.Duration) bool
	// Idle reports whether no pass is queued or running.
	Idle() bool
}

// Config configures a Pool.
type Config struct {
	// Workers is the number of passes run in parallel.
	Workers int
	// QueueSize is the number of admitted passes that may wait for a worker.
	QueueSize int
	Clock     store.Clock
	Logger    *slog.Logger
	// OnSlotFreed is called after a pass releases its slot.
	OnSlotFreed func()
}

// Pool is a bounded FilesProcessor. Admission capacity is Workers+QueueSize.
type Pool struct {
	cfg     Config
	results Results
	logger  *slog.Logger

	slots *semaphore.Weighted

	mu      sync.RWMutex
	jobs    chan string
	stopped bool
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	admitted atomic.Int64
	passes   atomic.Int64
	failures atomic.Int64
}

var _ FilesProcessor = (*Pool)(nil)

// NewPool creates a pool reporting to results.
func NewPool(cfg Config, results Results) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = store.NewMonotonicClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	capacity := cfg.Workers + cfg.QueueSize
	return &Pool{
		cfg:     cfg,
		results: results,
		logger:  logger.With(slog.String("component", "processor")),
		slots:   semaphore.NewWeighted(int64(capacity)),
		jobs:    make(chan string, capacity),
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.ErrAlreadyRunning
	}
	if p.stopped {
		return errors.Stopped("processor start")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Debug("processor started", slog.Int("workers", p.cfg.Workers), slog.Int("queue", p.cfg.QueueSize))
	return nil
}

// Stop stops accepting passes and cancels running ones. Queued passes are
// drained quickly with a cancelled context. Stop does not wait; use
// WaitFinished.
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	close(p.jobs)
	return nil
}

// WaitFinished waits up to timeout for all workers to exit.
func (p *Pool) WaitFinished(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// TryProcess admits path if a slot is free.
func (p *Pool) TryProcess(path string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped || !p.running {
		return false
	}
	if !p.slots.TryAcquire(1) {
		return false
	}
	p.admitted.Add(1)
	p.jobs <- path
	return true
}

// Idle reports whether no pass is queued or running.
func (p *Pool) Idle() bool {
	return p.admitted.Load() == 0
}

// Passes returns the number of finished passes and how many of them failed.
func (p *Pool) Passes() (total, failed int64) {
	return p.passes.Load(), p.failures.Load()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for path := range p.jobs {
		p.run(ctx, path)
	}
}

func (p *Pool) run(ctx context.Context, path string) {
	defer func() {
		p.slots.Release(1)
		p.admitted.Add(-1)
		if p.cfg.OnSlotFreed != nil {
			p.cfg.OnSlotFreed()
		}
	}()

	success := p.process(ctx, path)

	p.passes.Add(1)
	if !success {
		p.failures.Add(1)
	}
}
