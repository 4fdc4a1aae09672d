package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/watcher"
)

type watchedRoot struct {
	w      watcher.Watcher
	cancel context.CancelFunc
}

// rootSet runs one watcher and one dispatcher per root.
type rootSet struct {
	sink       watcher.Sink
	opts       watcher.Options
	newWatcher func(watcher.Options, *slog.Logger) (watcher.Watcher, error)
	logger     *slog.Logger

	mu     sync.Mutex
	roots  map[string]*watchedRoot
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func newRootSet(sink watcher.Sink, opts watcher.Options, newWatcher func(watcher.Options, *slog.Logger) (watcher.Watcher, error), logger *slog.Logger) *rootSet {
	return &rootSet{
		sink:       sink,
		opts:       opts,
		newWatcher: newWatcher,
		logger:     logger,
		roots:      make(map[string]*watchedRoot),
	}
}

func (rs *rootSet) Start(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cancel != nil {
		return errors.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	rs.group, rs.ctx = errgroup.WithContext(ctx)
	rs.cancel = cancel
	return nil
}

func (rs *rootSet) Stop() error {
	rs.mu.Lock()
	if rs.cancel == nil {
		rs.mu.Unlock()
		return errors.ErrNotRunning
	}
	cancel := rs.cancel
	rs.cancel = nil
	roots := rs.roots
	rs.roots = make(map[string]*watchedRoot)
	rs.mu.Unlock()

	cancel()
	var errs []error
	for path, r := range roots {
		r.cancel()
		if err := r.w.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func (rs *rootSet) WaitFinished(timeout time.Duration) bool {
	rs.mu.Lock()
	group := rs.group
	rs.mu.Unlock()
	if group == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// add starts watching path. It reports false if path is already a root.
func (rs *rootSet) add(path string) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cancel == nil {
		return false, errors.Stopped("add root")
	}
	if _, ok := rs.roots[path]; ok {
		return false, nil
	}

	w, err := rs.newWatcher(rs.opts, rs.logger)
	if err != nil {
		return false, fmt.Errorf("create watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(rs.ctx)
	if err := w.Start(ctx, path); err != nil {
		cancel()
		_ = w.Stop()
		return false, fmt.Errorf("start watcher: %w", err)
	}
	rs.roots[path] = &watchedRoot{w: w, cancel: cancel}

	logger := rs.logger.With(slog.String("root", path))
	rs.group.Go(func() error {
		err := watcher.Dispatch(ctx, w.Events(), rs.sink, logger)
		if err != nil && ctx.Err() == nil && !errors.Is(err, errors.ErrServiceStopped) {
			return err
		}
		return nil
	})
	rs.group.Go(func() error {
		for err := range w.Errors() {
			logger.Warn("watcher error", slog.String("error", err.Error()))
		}
		return nil
	})
	return true, nil
}

// remove stops the watcher for path. It reports false if path is not a root.
func (rs *rootSet) remove(path string) bool {
	rs.mu.Lock()
	r, ok := rs.roots[path]
	delete(rs.roots, path)
	rs.mu.Unlock()
	if !ok {
		return false
	}
	r.cancel()
	if err := r.w.Stop(); err != nil {
		rs.logger.Warn("failed to stop watcher", slog.String("root", path), slog.String("error", err.Error()))
	}
	return true
}

func (rs *rootSet) list() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]string, 0, len(rs.roots))
	for path := range rs.roots {
		out = append(out, path)
	}
	return out
}
