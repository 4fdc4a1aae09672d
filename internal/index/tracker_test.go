package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wordindex/internal/store"
)

type trackerFixture struct {
	tr         *tracker
	store      *store.Store
	dispatched []string
}

func newTrackerFixture(exists func(string) bool) *trackerFixture {
	fx := &trackerFixture{store: store.New(store.Options{FileExists: exists})}
	fx.tr = &tracker{
		store:    fx.store,
		logger:   slog.Default(),
		metrics:  newMetrics(),
		dispatch: func(p string) { fx.dispatched = append(fx.dispatched, p) },
	}
	return fx
}

func (fx *trackerFixture) file(t *testing.T, path string) *store.File {
	t.Helper()
	f := fx.store.GetFile(path)
	require.NotNil(t, f, "no record for %s", path)
	return f
}

func TestTracker_SyncFile_NewFileStartsProcessing(t *testing.T) {
	fx := newTrackerFixture(nil)

	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 5})

	f := fx.file(t, "/r/a")
	assert.Equal(t, store.StateProcessing, f.State())
	assert.Equal(t, store.Stamp(5), f.Stamp())
	assert.Equal(t, store.Stamp(5), f.ProcessingStamp())
	assert.Equal(t, []string{"/r/a"}, fx.dispatched)
}

func TestTracker_SyncFile_CoalescesWhileProcessing(t *testing.T) {
	fx := newTrackerFixture(nil)
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 5})

	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 7})
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 9})

	f := fx.file(t, "/r/a")
	assert.Equal(t, []string{"/r/a"}, fx.dispatched, "one pass in flight")
	assert.Equal(t, store.Stamp(9), f.Stamp())
	assert.Equal(t, store.Stamp(5), f.ProcessingStamp())
	assert.LessOrEqual(t, f.ProcessingStamp(), f.Stamp())
}

func TestTracker_ReprocessesWhenChangedDuringPass(t *testing.T) {
	// Given: a pass started for t1 and a change observed at t2 > t1
	fx := newTrackerFixture(nil)
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 1})
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 2})

	// When: the t1 pass finishes (it started before t2)
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 1, Success: true})

	// Then: the stale result is not finalized and a new pass starts for t2
	f := fx.file(t, "/r/a")
	assert.Equal(t, store.StateProcessing, f.State())
	assert.Equal(t, store.Stamp(2), f.ProcessingStamp())
	assert.Equal(t, []string{"/r/a", "/r/a"}, fx.dispatched)

	// And: the second pass settles the file
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 3, Success: true})
	assert.Equal(t, store.StateValid, f.State())
	assert.Equal(t, store.Stamp(3), f.Stamp())
	assert.Equal(t, store.Stamp(3), f.ProcessingStamp())
}

func TestTracker_FinishFinalizes(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		want    store.State
	}{
		{"success", true, store.StateValid},
		{"failure", false, store.StateInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newTrackerFixture(nil)
			fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 10})

			fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 12, Success: tt.success})

			f := fx.file(t, "/r/a")
			assert.Equal(t, tt.want, f.State())
			assert.Equal(t, store.Stamp(12), f.Stamp())
		})
	}
}

func TestTracker_ResyncWithOlderOrEqualStampIsNoop(t *testing.T) {
	// Given: a file settled from a pass started at 12
	fx := newTrackerFixture(nil)
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 10})
	fx.tr.apply(Task{Kind: TaskAddWord, Path: "/r/a", Word: "cat"})
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 12, Success: true})

	// When: syncs arrive for events already covered by that pass
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 11})
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 12})

	// Then: nothing is re-dispatched and the record is unchanged
	f := fx.file(t, "/r/a")
	assert.Len(t, fx.dispatched, 1)
	assert.Equal(t, store.StateValid, f.State())
	assert.Equal(t, store.Stamp(12), f.Stamp())
	assert.Equal(t, []string{"/r/a"}, paths(fx.store.Search("cat")))

	// And: a newer event does trigger a pass
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 13})
	assert.Len(t, fx.dispatched, 2)
	assert.Equal(t, store.StateProcessing, f.State())
}

func TestTracker_FinishAfterRemovalIsDiscarded(t *testing.T) {
	fx := newTrackerFixture(nil)
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 1})
	fx.tr.apply(Task{Kind: TaskRemoveFile, Path: "/r/a"})

	fx.tr.apply(Task{Kind: TaskAddWord, Path: "/r/a", Word: "late"})
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 2, Success: true})

	assert.Nil(t, fx.store.GetFile("/r/a"))
	assert.Empty(t, fx.store.ListWords())
}

func TestTracker_OrphanedPassIgnoredOnceSettled(t *testing.T) {
	// Given: a file removed and re-created while its first pass runs
	fx := newTrackerFixture(nil)
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 1})
	fx.tr.apply(Task{Kind: TaskRemoveFile, Path: "/r/a"})
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 5})
	require.Len(t, fx.dispatched, 2)

	// When: the new pass settles the file, then the orphaned failure arrives
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 6, Success: true})
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 2, Success: false})

	// Then: the orphaned result changes nothing
	f := fx.file(t, "/r/a")
	assert.Equal(t, store.StateValid, f.State())
	assert.Equal(t, store.Stamp(6), f.Stamp())
	assert.Len(t, fx.dispatched, 2)
}

func TestTracker_OrphanedPassDuringNewPassStillSettles(t *testing.T) {
	// Given: a re-created file whose new pass is running
	fx := newTrackerFixture(nil)
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 1})
	fx.tr.apply(Task{Kind: TaskRemoveFile, Path: "/r/a"})
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 5})

	// When: the orphaned pass reports first
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 2, Success: false})

	// Then: its stale start forces another pass
	f := fx.file(t, "/r/a")
	assert.Equal(t, store.StateProcessing, f.State())
	require.Len(t, fx.dispatched, 3)

	// When: the new pass and the re-dispatched pass both report
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 6, Success: true})
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 7, Success: true})

	// Then: the file is valid and a later change is still processed and settled
	assert.Equal(t, store.StateValid, f.State())
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 10})
	assert.Len(t, fx.dispatched, 4)
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 11, Success: true})
	assert.Equal(t, store.StateValid, f.State())
	assert.Equal(t, store.Stamp(11), f.Stamp())
}

func TestTracker_FinishForRecordNotProcessingIsIgnored(t *testing.T) {
	// Given: a record reset to Invalid while its pass was in flight
	fx := newTrackerFixture(nil)
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 1})
	assert.Equal(t, 1, fx.store.ResetInFlight())

	// When: the pass from before the reset reports
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 2, Success: true})

	// Then: the record stays Invalid and a new sync starts a pass that settles it
	f := fx.file(t, "/r/a")
	assert.Equal(t, store.StateInvalid, f.State())
	fx.tr.apply(Task{Kind: TaskSyncFile, Path: "/r/a", Stamp: 3})
	assert.Equal(t, store.StateProcessing, f.State())
	require.Len(t, fx.dispatched, 2)
	fx.tr.apply(Task{Kind: TaskProcessingFinished, Path: "/r/a", Stamp: 4, Success: true})
	assert.Equal(t, store.StateValid, f.State())
}

func TestTracker_SyncDirectory_WalksRecursivelyAndPrunes(t *testing.T) {
	// Given: a tree on disk and a stale record under it
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	for _, p := range []string{"a.txt", "sub/b.txt", "sub/deep/c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, p), []byte("x"), 0o644))
	}
	fx := newTrackerFixture(nil)
	stale := filepath.Join(root, "gone.txt")
	fx.store.GetOrAddFile(stale, 1)

	// When: syncing the directory
	fx.tr.apply(Task{Kind: TaskSyncDirectory, Path: root, Stamp: 10})

	// Then: every regular file is dispatched and the stale record is pruned
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub", "b.txt"),
		filepath.Join(root, "sub", "deep", "c.txt"),
	}, fx.dispatched)
	assert.Nil(t, fx.store.GetFile(stale))
	assert.Equal(t, 3, fx.store.Stats().Processing)
}

func TestTracker_SyncDirectory_MissingDirectoryPrunesEverything(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nope")
	fx := newTrackerFixture(nil)
	fx.store.GetOrAddFile(filepath.Join(root, "x.txt"), 1)

	fx.tr.apply(Task{Kind: TaskSyncDirectory, Path: root, Stamp: 10})

	assert.Empty(t, fx.dispatched)
	assert.Empty(t, fx.store.ListFiles())
}

func TestTracker_RemoveDirectory_LeavesSiblings(t *testing.T) {
	fx := newTrackerFixture(nil)
	for _, p := range []string{"/w/foo/a", "/w/foo/b/c", "/w/foobar/d", "/w/foo"} {
		fx.tr.apply(Task{Kind: TaskSyncFile, Path: p, Stamp: 1})
		fx.tr.apply(Task{Kind: TaskAddWord, Path: p, Word: "w"})
	}

	fx.tr.apply(Task{Kind: TaskRemoveDirectory, Path: "/w/foo"})

	assert.Equal(t, []string{"/w/foobar/d"}, paths(fx.store.Search("w")))
}

func paths(entries []store.FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}
