package entry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists entries in a single JSON file. It is not safe for concurrent
// use: after Load it belongs to the lifecycle manager actor, which serializes
// all access.
type Store struct {
	path    string
	entries []*Entry
}

type storeFile struct {
	Entries []*Entry `json:"entries"`
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the store file. A missing file is an empty store, a corrupt one
// is an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.entries = nil
		return nil
	}
	if err != nil {
		return err
	}
	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("entry store %s: %w", s.path, err)
	}
	s.entries = f.Entries
	return nil
}

// Save writes the store file atomically. Entries hold credentials, the file
// is readable by its owner only.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(storeFile{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Len() int {
	return len(s.entries)
}

// List returns the entries in stored order. Callers must not grow or reorder
// the returned slice.
func (s *Store) List() []*Entry {
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Get(id string) *Entry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// FindByUniqueID returns the entry bound to the given gateway, or nil. Unique
// ids are gateway ids, one entry per physical hub.
func (s *Store) FindByUniqueID(uniqueID string) *Entry {
	if uniqueID == "" {
		return nil
	}
	for _, e := range s.entries {
		if e.UniqueID == uniqueID {
			return e
		}
	}
	return nil
}

func (s *Store) Add(e *Entry) {
	s.entries = append(s.entries, e)
}

func (s *Store) Remove(id string) bool {
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}
