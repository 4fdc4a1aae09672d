package store

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// State is the indexing state of a file record.
type State int32

const (
	// StateInvalid means the last processing pass failed, or none has finished yet.
	StateInvalid State = iota
	// StateProcessing means a processing pass is scheduled or running.
	StateProcessing
	// StateValid means the file's words reflect its content as of Stamp.
	StateValid
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateProcessing:
		return "processing"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Marker returns the one-character marker used in file listings.
func (s State) Marker() string {
	switch s {
	case StateValid:
		return "+"
	case StateProcessing:
		return "*"
	default:
		return "-"
	}
}

// File is the record for one indexed path.
//
// State and stamps are written only by the index scheduler but may be read
// from any goroutine.
type File struct {
	id   uint64
	path string

	state           atomic.Int32
	stamp           atomic.Int64
	processingStamp atomic.Int64

	// passes counts processing passes dispatched and not yet finished.
	// Best effort: results arrive by path, so a pass orphaned by a remove
	// and re-add is counted against the new record. Freshness rests on the
	// stamp comparison alone; the count is cleared whenever the record settles.
	passes atomic.Int32

	words *xsync.MapOf[uint64, struct{}]
	gen   *atomic.Uint64
}

func newFile(id uint64, path string, stamp Stamp, gen *atomic.Uint64) *File {
	f := &File{
		id:    id,
		path:  path,
		words: xsync.NewMapOf[uint64, struct{}](),
		gen:   gen,
	}
	f.state.Store(int32(StateInvalid))
	f.stamp.Store(stamp)
	f.processingStamp.Store(stamp)
	return f
}

// Path returns the normalized path of the file.
func (f *File) Path() string { return f.path }

// State returns the current indexing state.
func (f *File) State() State { return State(f.state.Load()) }

// SetState changes the indexing state.
func (f *File) SetState(s State) {
	if State(f.state.Swap(int32(s))) != s {
		f.gen.Add(1)
	}
}

// Stamp returns the stamp of the newest observed change event.
func (f *File) Stamp() Stamp { return f.stamp.Load() }

// SetStamp sets the stamp of the newest observed change event.
func (f *File) SetStamp(s Stamp) { f.stamp.Store(s) }

// ProcessingStamp returns the event stamp the current pass was dispatched for.
func (f *File) ProcessingStamp() Stamp { return f.processingStamp.Load() }

// SetProcessingStamp sets the event stamp of the current pass.
func (f *File) SetProcessingStamp(s Stamp) { f.processingStamp.Store(s) }

// WordCount returns the number of distinct words linked to the file.
func (f *File) WordCount() int { return f.words.Size() }

// BeginPass records a dispatched processing pass.
func (f *File) BeginPass() { f.passes.Add(1) }

// EndPass records a finished pass and returns how many are still in flight.
func (f *File) EndPass() int {
	for {
		n := f.passes.Load()
		if n <= 0 {
			return 0
		}
		if f.passes.CompareAndSwap(n, n-1) {
			return int(n - 1)
		}
	}
}

// ClearPasses forgets any passes still counted as in flight.
func (f *File) ClearPasses() { f.passes.Store(0) }

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name. Unknown names decode as invalid.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "valid":
		*s = StateValid
	case "processing":
		*s = StateProcessing
	default:
		*s = StateInvalid
	}
	return nil
}
