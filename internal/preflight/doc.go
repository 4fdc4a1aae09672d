// Package preflight checks that the host can run the index daemon.
//
// The checks cover:
//   - the open file descriptor limit
//   - the inotify watch limit (Linux only)
//   - write access to the data directory
//   - configured roots being readable directories
//
// Usage:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, Roots: roots})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
