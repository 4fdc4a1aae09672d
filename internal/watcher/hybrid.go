package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"
)

// HybridWatcher implements the Watcher interface using fsnotify as the primary
// watching mechanism with polling as a fallback.
type HybridWatcher struct {
	opts   Options
	logger *slog.Logger

	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool
	debouncer   *Debouncer

	events chan []FileEvent
	errors chan error
	stopCh chan struct{}

	mu       sync.RWMutex
	matcher  *ignore.GitIgnore
	dirs     map[string]struct{}
	rootPath string
	stopped  bool
}

var _ Watcher = (*HybridWatcher)(nil)

// NewHybridWatcher creates a new hybrid watcher with the given options.
// Attempts to use fsnotify first, falls back to polling if it fails.
func NewHybridWatcher(opts Options, logger *slog.Logger) (*HybridWatcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watcher options: %w", err)
	}
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	h := &HybridWatcher{
		opts:      opts,
		logger:    logger.With(slog.String("component", "watcher")),
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		dirs:      make(map[string]struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			h.fsWatcher = fsw
			h.useFsnotify = true
		} else {
			h.logger.Warn("fsnotify unavailable, falling back to polling", slog.String("error", err.Error()))
		}
	}

	return h, nil
}

// Start begins watching the given directory.
func (h *HybridWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", absPath)
	}

	h.mu.Lock()
	h.rootPath = absPath
	h.mu.Unlock()
	h.loadIgnore()

	if h.useFsnotify {
		if err := h.addRecursive(absPath); err != nil {
			return fmt.Errorf("add directories to watcher: %w", err)
		}
		go h.runFsnotify(ctx)
	} else {
		h.pollWatcher = NewPollingWatcher(h.opts.PollInterval, h.shouldIgnore)
		if err := h.pollWatcher.Start(ctx, absPath); err != nil {
			return err
		}
		go h.runPolling(ctx)
	}

	go h.forwardDebouncedEvents(ctx)

	h.logger.Info("watching", slog.String("root", absPath), slog.String("mode", h.WatcherType()))
	return nil
}

func (h *HybridWatcher) runFsnotify(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return
		case <-h.stopCh:
			return
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return
			}
			h.emitError(err)
		}
	}
}

func (h *HybridWatcher) runPolling(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return
		case <-h.stopCh:
			return
		case event := <-h.pollWatcher.Events():
			h.noteIgnoreChange(event.Path)
			h.debouncer.Add(event)
		case err := <-h.pollWatcher.Errors():
			h.emitError(err)
		}
	}
}

// handleFsnotifyEvent converts and filters fsnotify events.
func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	path := event.Name
	var fe FileEvent

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		isDir := h.forgetDir(path)
		if h.shouldIgnore(path, isDir) {
			return
		}
		fe = FileEvent{Path: path, Operation: OpDelete, IsDir: isDir}
		if event.Has(fsnotify.Rename) {
			fe.Operation = OpRename
		}

	case event.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err != nil {
			// Gone already; its removal event follows.
			return
		}
		isDir := info.IsDir()
		if h.shouldIgnore(path, isDir) {
			return
		}
		if isDir {
			if err := h.addRecursive(path); err != nil {
				h.emitError(fmt.Errorf("watch new directory %s: %w", path, err))
			}
		}
		fe = FileEvent{Path: path, Operation: OpCreate, IsDir: isDir}

	case event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || h.shouldIgnore(path, false) {
			return
		}
		fe = FileEvent{Path: path, Operation: OpModify}

	default:
		// Chmod only
		return
	}

	fe.Timestamp = time.Now()
	h.noteIgnoreChange(path)
	h.debouncer.Add(fe)
}

// forwardDebouncedEvents forwards debounced batches, waiting for the
// consumer rather than dropping. It owns and closes the events channel.
func (h *HybridWatcher) forwardDebouncedEvents(ctx context.Context) {
	defer close(h.events)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case events, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			select {
			case h.events <- events:
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			}
		}
	}
}

// addRecursive adds root and every non-ignored directory under it to the
// fsnotify watcher.
func (h *HybridWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			h.logger.Warn("skipping unreadable directory", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != h.RootPath() && h.shouldIgnore(path, true) {
			return filepath.SkipDir
		}
		if err := h.fsWatcher.Add(path); err != nil {
			if path == root {
				return err
			}
			h.logger.Warn("cannot watch directory", slog.String("path", path), slog.String("error", err.Error()))
			return filepath.SkipDir
		}

		h.mu.Lock()
		h.dirs[path] = struct{}{}
		h.mu.Unlock()
		return nil
	})
}

// forgetDir drops path and its descendants from the watched set and
// reports whether path was a watched directory.
func (h *HybridWatcher) forgetDir(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.dirs[path]; !ok {
		return false
	}
	prefix := path + string(filepath.Separator)
	for d := range h.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(h.dirs, d)
		}
	}
	return true
}

// shouldIgnore reports whether an absolute path under the root is excluded.
func (h *HybridWatcher) shouldIgnore(path string, isDir bool) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rel, err := filepath.Rel(h.rootPath, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return true
	}
	rel = filepath.ToSlash(rel)

	// Always ignore .git directory
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	if h.matcher == nil {
		return false
	}
	return h.matcher.MatchesPath(rel) || (isDir && h.matcher.MatchesPath(rel+"/"))
}

// noteIgnoreChange reloads patterns when the root .gitignore changes.
func (h *HybridWatcher) noteIgnoreChange(path string) {
	if path == filepath.Join(h.RootPath(), ".gitignore") {
		h.loadIgnore()
	}
}

// loadIgnore compiles the configured patterns plus the root .gitignore.
func (h *HybridWatcher) loadIgnore() {
	gitignorePath := filepath.Join(h.RootPath(), ".gitignore")

	var matcher *ignore.GitIgnore
	if _, err := os.Stat(gitignorePath); err == nil {
		m, err := ignore.CompileIgnoreFileAndLines(gitignorePath, h.opts.IgnorePatterns...)
		if err != nil {
			h.logger.Warn("failed to load root .gitignore",
				slog.String("path", gitignorePath),
				slog.String("error", err.Error()))
			m = ignore.CompileIgnoreLines(h.opts.IgnorePatterns...)
		}
		matcher = m
	} else {
		matcher = ignore.CompileIgnoreLines(h.opts.IgnorePatterns...)
	}

	h.mu.Lock()
	h.matcher = matcher
	h.mu.Unlock()
}

// emitError sends an error to the error channel.
func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
		h.logger.Warn("watcher error", slog.String("error", err.Error()))
	}
}

// Stop stops the watcher and releases resources.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	close(h.stopCh)

	if h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}
	close(h.errors)
	h.mu.Unlock()

	h.debouncer.Stop()
	return nil
}

// Events returns the channel of batched file events.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns the channel of errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// IsHealthy returns true if the watcher is running and hasn't stopped.
func (h *HybridWatcher) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.stopped
}

// WatcherType returns the type of watcher being used ("fsnotify" or "polling").
func (h *HybridWatcher) WatcherType() string {
	if h.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the root path being watched.
func (h *HybridWatcher) RootPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rootPath
}
