// Package watcher turns file system changes under a root directory into
// index events.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Events are debounced to coalesce rapid changes from editors and git
// operations, filtered against gitignore-style exclude patterns, and
// delivered in batches. Dispatch forwards batches to an index Sink and
// blocks while the index applies backpressure; no event is dropped.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, "/path/to/tree"); err != nil {
//	    return err
//	}
//	return watcher.Dispatch(ctx, w.Events(), manager, logger)
package watcher
