package index

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/wordindex/internal/store"
	"github.com/Aman-CERP/wordindex/internal/tokenizer"
)

type cachedSearch struct {
	generation uint64
	entries    []store.FileEntry
}

// searchCache memoizes Search results until the store changes.
type searchCache struct {
	store *store.Store
	lru   *lru.Cache[string, cachedSearch]
}

func newSearchCache(size int, s *store.Store) (*searchCache, error) {
	c := &searchCache{store: s}
	if size <= 0 {
		return c, nil
	}
	l, err := lru.New[string, cachedSearch](size)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

func (c *searchCache) search(word string) []store.FileEntry {
	if c.lru == nil {
		return c.store.Search(word)
	}
	gen := c.store.Generation()
	if hit, ok := c.lru.Get(word); ok && hit.generation == gen {
		return append([]store.FileEntry(nil), hit.entries...)
	}
	entries := c.store.Search(word)
	c.lru.Add(word, cachedSearch{generation: gen, entries: entries})
	return append([]store.FileEntry(nil), entries...)
}

// Search returns every file containing word, sorted by path. Files that
// are being reprocessed or failed their last pass are included with
// Valid set to false.
func (m *Manager) Search(word string) []store.FileEntry {
	word = tokenizer.Normalize(m.cfg.Tokenizer, word)
	if word == "" {
		return []store.FileEntry{}
	}
	return m.cache.search(word)
}

// ListFiles returns every file record, sorted by path.
func (m *Manager) ListFiles() []store.FileStatistics {
	return m.store.ListFiles()
}

// ListWords returns every indexed word, sorted.
func (m *Manager) ListWords() []string {
	return m.store.ListWords()
}

// Stats summarizes the index.
func (m *Manager) Stats() store.Statistics {
	return m.store.Stats()
}

// FileState returns the state of the file at path and whether it is known.
func (m *Manager) FileState(path string) (store.State, bool) {
	f := m.store.GetFile(Normalize(path))
	if f == nil {
		return store.StateInvalid, false
	}
	return f.State(), true
}
