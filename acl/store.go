package acl

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store caches merged permission tables per user id. The cache is
// invalidated explicitly when roles or team membership change; entries
// never expire on their own.
type Store interface {
	Get(userID string) (*Table, bool)
	Put(userID string, table *Table) error
	Invalidate(userID string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*Table)}
}

func (s *MemoryStore) Get(userID string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[userID]
	return t, ok
}

func (s *MemoryStore) Put(userID string, table *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[userID] = table
	return nil
}

func (s *MemoryStore) Invalidate(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, userID)
	return nil
}

// FileStore persists one JSON file per user under a directory, so cached
// tables survive process restarts.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, cacheFileName(userID)+".json")
}

// cacheFileName reduces a user id to file-name-safe characters, so a
// crafted id cannot address files outside the store directory.
func cacheFileName(userID string) string {
	var b strings.Builder
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Get loads a cached table. An unreadable or unparseable file counts as a
// miss: the table will be recomputed from role data, which is always safe.
func (s *FileStore) Get(userID string) (*Table, bool) {
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		return nil, false
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		log.Printf("[quorm] WARNING: discarding corrupt acl cache for user %s: %v", userID, err)
		return nil, false
	}
	if t.Scopes == nil {
		t.Scopes = make(map[string]*ScopeData)
	}
	return &t, true
}

func (s *FileStore) Put(userID string, table *Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(userID), data, 0o644)
}

func (s *FileStore) Invalidate(userID string) error {
	err := os.Remove(s.path(userID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
