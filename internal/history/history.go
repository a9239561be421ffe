// Package history keeps a local, disposable mirror of question records the
// client has seen, for offline display and navigation. The whole list is
// persisted as one JSON blob under a single key; corrupt storage degrades to
// an empty history rather than an error.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const storageKey = "doubtd_history"

// Entry is the client-side projection of a question record.
type Entry struct {
	ID        int64  `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// KV is the minimal key-value surface the cache persists through, so the
// history logic is testable without touching the filesystem.
type KV interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
}

// Cache reads and writes the ordered history list, newest first.
type Cache struct {
	kv KV
}

func NewCache(kv KV) *Cache {
	return &Cache{kv: kv}
}

// entryJSON mirrors Entry with pointer fields so required keys can be
// distinguished from absent ones during validation.
type entryJSON struct {
	ID        *int64  `json:"id"`
	Question  *string `json:"question"`
	Answer    *string `json:"answer"`
	Error     *string `json:"error"`
	CreatedAt *string `json:"createdAt"`
}

// Load returns the persisted history, silently discarding malformed entries.
// Any storage or decode failure yields an empty list.
func (c *Cache) Load() []Entry {
	blob, ok, err := c.kv.Get(storageKey)
	if err != nil || !ok {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil
	}

	var entries []Entry
	for _, item := range raw {
		var e entryJSON
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		if e.ID == nil || e.Question == nil || e.CreatedAt == nil {
			continue
		}
		entry := Entry{
			ID:        *e.ID,
			Question:  *e.Question,
			CreatedAt: *e.CreatedAt,
		}
		if e.Answer != nil {
			entry.Answer = *e.Answer
		}
		if e.Error != nil {
			entry.Error = *e.Error
		}
		entries = append(entries, entry)
	}
	return entries
}

// Save overwrites the entire persisted blob.
func (c *Cache) Save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	blob, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.kv.Set(storageKey, blob)
}

// Add merges one record into the history: an entry with the same id is
// replaced in place, otherwise the record is prepended. The updated list is
// persisted and returned.
func (c *Cache) Add(e Entry) []Entry {
	entries := c.Load()

	for i, existing := range entries {
		if existing.ID == e.ID {
			entries[i] = e
			c.Save(entries)
			return entries
		}
	}

	entries = append([]Entry{e}, entries...)
	c.Save(entries)
	return entries
}

// Clear empties the persisted blob and returns the empty list.
func (c *Cache) Clear() []Entry {
	c.Save(nil)
	return nil
}

// FileKV persists each key as a JSON file inside a directory.
type FileKV struct {
	dir string
}

func NewFileKV(dir string) *FileKV {
	return &FileKV{dir: dir}
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileKV) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (f *FileKV) Set(key string, value []byte) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path(key), value, 0o644)
}
