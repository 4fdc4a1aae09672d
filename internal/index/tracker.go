package index

import (
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/store"
)

// tracker applies tasks to the store and drives the per-file state
// machine. It runs only on the scheduler goroutine.
//
// A file record moves Invalid -> Processing on a sync, and Processing ->
// Valid or Invalid when its pass finishes. A sync that arrives while the
// file is Processing only raises the event stamp; the pass in flight then
// sees a stamp newer than its start and is dispatched again.
type tracker struct {
	store    *store.Store
	logger   *slog.Logger
	dispatch func(path string)
	metrics  *metrics
}

func (tr *tracker) apply(t Task) {
	switch t.Kind {
	case TaskSyncFile:
		tr.syncFile(t.Path, t.Stamp)
	case TaskSyncDirectory:
		tr.syncDirectory(t.Path, t.Stamp)
	case TaskRemoveFile:
		tr.store.RemoveFile(t.Path)
	case TaskRemoveDirectory:
		n := tr.store.RemoveDirectory(t.Path)
		tr.logger.Debug("directory removed", slog.String("path", t.Path), slog.Int("files", n))
	case TaskAddWord:
		tr.store.AddWord(t.Path, t.Word)
	case TaskRemoveWords:
		tr.store.RemoveWords(t.Path)
	case TaskProcessingFinished:
		tr.fileFinished(t.Path, t.Stamp, t.Success)
	}
}

func (tr *tracker) syncFile(path string, stamp store.Stamp) {
	f, created := tr.store.GetOrAddFile(path, stamp)
	if !created && stamp < f.Stamp() {
		tr.logger.Debug("out-of-order sync event", slog.String("path", path),
			slog.Int64("stamp", stamp), slog.Int64("last", f.Stamp()))
		stamp = f.Stamp()
	}

	if f.State() == store.StateProcessing {
		f.SetStamp(stamp)
		tr.metrics.coalesced.Inc()
		return
	}

	// The record already reflects content read at or after this event.
	if !created && stamp <= f.Stamp() {
		return
	}

	f.SetStamp(stamp)
	tr.start(f, stamp)
}

// start marks f Processing for the pass covering events up to stamp.
func (tr *tracker) start(f *store.File, stamp store.Stamp) {
	f.SetProcessingStamp(stamp)
	f.SetState(store.StateProcessing)
	f.BeginPass()
	tr.dispatch(f.Path())
}

func (tr *tracker) fileFinished(path string, started store.Stamp, success bool) {
	f := tr.store.GetFile(path)
	if f == nil || f.State() != store.StateProcessing {
		// Removed, already settled, or reset by a restart.
		return
	}
	if f.EndPass() > 0 {
		// A later pass is still running and will settle the record.
		return
	}

	if f.Stamp() > started {
		tr.metrics.redispatched.Inc()
		tr.start(f, f.Stamp())
		return
	}

	f.ClearPasses()
	f.SetStamp(started)
	f.SetProcessingStamp(started)
	if success {
		f.SetState(store.StateValid)
	} else {
		f.SetState(store.StateInvalid)
	}
}

func (tr *tracker) syncDirectory(dir string, stamp store.Stamp) {
	files := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			tr.logger.Warn("walk error", append([]any{slog.String("path", path)},
				errors.LogAttrs(errors.New(errors.ErrCodeWalkFailed, "cannot walk "+path, err))...)...)
			return nil
		}
		if d.Type().IsRegular() {
			tr.syncFile(path, stamp)
			files++
		}
		return nil
	})
	if err != nil {
		tr.logger.Warn("directory sync aborted", slog.String("path", dir), slog.String("error", err.Error()))
	}

	pruned := tr.store.RemoveNonexistent(dir)
	tr.logger.Debug("directory synced", slog.String("path", dir),
		slog.Int("files", files), slog.Int("pruned", pruned))
}
