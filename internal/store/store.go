// Package store holds the in-memory inverted index: word records, file
// records and the bidirectional links between them.
//
// All mutating methods must be called from a single goroutine (the index
// scheduler). Query methods (Search, ListFiles, ListWords, Stats, GetFile)
// are safe to call concurrently with mutations; a query may observe a
// state in the middle of a pass, but never a torn record.
package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/btree"
	"github.com/puzpuzpuz/xsync/v3"
)

// FileEntry is a search hit.
type FileEntry struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
}

// FileStatistics describes one file record in a listing.
type FileStatistics struct {
	Path      string `json:"path"`
	State     State  `json:"state"`
	WordCount int    `json:"words"`
}

// Statistics summarizes the whole index.
type Statistics struct {
	Files      int `json:"files"`
	NonEmpty   int `json:"non_empty"`
	Valid      int `json:"valid"`
	Processing int `json:"processing"`
	Invalid    int `json:"invalid"`
	Words      int `json:"words"`
}

type word struct {
	id    uint64
	text  string
	files *xsync.MapOf[uint64, struct{}]
}

// Options configures a Store.
type Options struct {
	// FileExists reports whether path is an existing regular file.
	// Used by RemoveNonexistent. Defaults to an os.Stat check.
	FileExists func(path string) bool

	Logger *slog.Logger
}

// Store is the bidirectional word/file index.
type Store struct {
	logger *slog.Logger
	exists func(string) bool

	files     *xsync.MapOf[string, *File]
	filesByID *xsync.MapOf[uint64, *File]
	words     *xsync.MapOf[string, *word]
	wordsByID *xsync.MapOf[uint64, *word]

	// mu guards paths, the path-ordered view used for subtree ranges.
	mu    sync.RWMutex
	paths *btree.BTreeG[*File]

	nextID     atomic.Uint64
	generation atomic.Uint64
}

// New creates an empty Store.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exists := opts.FileExists
	if exists == nil {
		exists = regularFileExists
	}
	return &Store{
		logger:    logger,
		exists:    exists,
		files:     xsync.NewMapOf[string, *File](),
		filesByID: xsync.NewMapOf[uint64, *File](),
		words:     xsync.NewMapOf[string, *word](),
		wordsByID: xsync.NewMapOf[uint64, *word](),
		paths:     btree.NewG(32, func(a, b *File) bool { return a.path < b.path }),
	}
}

func regularFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Generation changes whenever the content visible to Search changes.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// GetFile returns the record for path, or nil.
func (s *Store) GetFile(path string) *File {
	f, _ := s.files.Load(path)
	return f
}

// GetOrAddFile returns the record for path, creating an Invalid record
// stamped with stamp if none exists. created reports whether it was new.
func (s *Store) GetOrAddFile(path string, stamp Stamp) (f *File, created bool) {
	if f, ok := s.files.Load(path); ok {
		return f, false
	}
	f = newFile(s.nextID.Add(1), path, stamp, &s.generation)
	s.files.Store(path, f)
	s.filesByID.Store(f.id, f)

	s.mu.Lock()
	s.paths.ReplaceOrInsert(f)
	s.mu.Unlock()

	s.generation.Add(1)
	return f, true
}

// AddWord links text to the file at path. It is a no-op if the file has
// no record.
func (s *Store) AddWord(path, text string) bool {
	f, ok := s.files.Load(path)
	if !ok {
		return false
	}
	w, ok := s.words.Load(text)
	if !ok {
		w = &word{id: s.nextID.Add(1), text: text, files: xsync.NewMapOf[uint64, struct{}]()}
		s.words.Store(text, w)
		s.wordsByID.Store(w.id, w)
	}
	if _, loaded := w.files.LoadOrStore(f.id, struct{}{}); loaded {
		return true
	}
	f.words.Store(w.id, struct{}{})
	s.generation.Add(1)
	return true
}

// RemoveWords unlinks every word from the file at path. Words left with
// no files are deleted.
func (s *Store) RemoveWords(path string) {
	f, ok := s.files.Load(path)
	if !ok {
		return
	}
	s.unlinkWords(f)
}

func (s *Store) unlinkWords(f *File) {
	if f.words.Size() == 0 {
		return
	}
	f.words.Range(func(id uint64, _ struct{}) bool {
		f.words.Delete(id)
		w, ok := s.wordsByID.Load(id)
		if !ok {
			return true
		}
		w.files.Delete(f.id)
		if w.files.Size() == 0 {
			s.words.Delete(w.text)
			s.wordsByID.Delete(w.id)
		}
		return true
	})
	s.generation.Add(1)
}

// RemoveFile deletes the record for path and all of its word links.
func (s *Store) RemoveFile(path string) bool {
	f, ok := s.files.Load(path)
	if !ok {
		return false
	}
	s.removeFile(f)
	return true
}

func (s *Store) removeFile(f *File) {
	s.unlinkWords(f)

	s.mu.Lock()
	s.paths.Delete(f)
	s.mu.Unlock()

	s.files.Delete(f.path)
	s.filesByID.Delete(f.id)
	s.generation.Add(1)
}

// RemoveDirectory deletes the record for dir itself and every record
// strictly under dir. Sibling paths sharing a name prefix ("/a/foobar"
// for dir "/a/foo") are untouched. Returns the number of records removed.
func (s *Store) RemoveDirectory(dir string) int {
	removed := 0
	for _, f := range s.subtree(dir) {
		s.removeFile(f)
		removed++
	}
	return removed
}

// RemoveNonexistent deletes records at or under dir whose path is no
// longer an existing regular file.
func (s *Store) RemoveNonexistent(dir string) int {
	removed := 0
	for _, f := range s.subtree(dir) {
		if s.exists(f.path) {
			continue
		}
		s.logger.Debug("pruning missing file", slog.String("path", f.path))
		s.removeFile(f)
		removed++
	}
	return removed
}

// ResetInFlight moves every Processing record back to Invalid and forgets
// its outstanding passes, so the next sync dispatches a fresh pass. Used
// when the scheduler restarts after dropping queued results.
func (s *Store) ResetInFlight() int {
	reset := 0
	s.files.Range(func(_ string, f *File) bool {
		if f.State() == StateProcessing {
			f.ClearPasses()
			f.SetState(StateInvalid)
			reset++
		}
		return true
	})
	return reset
}

// subtree returns the record for dir (if any) followed by all records in
// the half-open range [dir+sep, dir+(sep+1)). Paths compare bytewise, so
// the upper bound holds names containing any byte, including invalid UTF-8.
func (s *Store) subtree(dir string) []*File {
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	prefix := dir + string(filepath.Separator)
	lo := &File{path: prefix}
	hi := &File{path: dir + string(filepath.Separator+1)}

	var out []*File
	if f, ok := s.files.Load(dir); ok {
		out = append(out, f)
	}

	s.mu.RLock()
	s.paths.AscendRange(lo, hi, func(f *File) bool {
		out = append(out, f)
		return true
	})
	s.mu.RUnlock()
	return out
}

// Search returns the files containing text, sorted by path.
func (s *Store) Search(text string) []FileEntry {
	w, ok := s.words.Load(text)
	if !ok {
		return []FileEntry{}
	}
	out := make([]FileEntry, 0, w.files.Size())
	w.files.Range(func(id uint64, _ struct{}) bool {
		if f, ok := s.filesByID.Load(id); ok {
			out = append(out, FileEntry{Path: f.path, Valid: f.State() == StateValid})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ListFiles returns statistics for every file record, sorted by path.
func (s *Store) ListFiles() []FileStatistics {
	s.mu.RLock()
	files := make([]*File, 0, s.paths.Len())
	s.paths.Ascend(func(f *File) bool {
		files = append(files, f)
		return true
	})
	s.mu.RUnlock()

	out := make([]FileStatistics, len(files))
	for i, f := range files {
		out[i] = FileStatistics{Path: f.path, State: f.State(), WordCount: f.WordCount()}
	}
	return out
}

// ListWords returns every indexed word, sorted.
func (s *Store) ListWords() []string {
	out := make([]string, 0, s.words.Size())
	s.words.Range(func(text string, _ *word) bool {
		out = append(out, text)
		return true
	})
	sort.Strings(out)
	return out
}

// Stats summarizes the index.
func (s *Store) Stats() Statistics {
	st := Statistics{Words: s.words.Size()}
	s.files.Range(func(_ string, f *File) bool {
		st.Files++
		if f.WordCount() > 0 {
			st.NonEmpty++
		}
		switch f.State() {
		case StateValid:
			st.Valid++
		case StateProcessing:
			st.Processing++
		default:
			st.Invalid++
		}
		return true
	})
	return st
}
