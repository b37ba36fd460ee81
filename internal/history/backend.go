package history

import (
	"path/filepath"
	"strings"
	"sync"
)

// Backend persists opaque values under string keys.
type Backend interface {
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
	Close() error
}

// NewBackend picks a backend from a location: empty keeps values in memory,
// a *.db / *.sqlite path opens SQLite, anything else is a directory of JSON files.
func NewBackend(location string) (Backend, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return NewMemoryBackend(), nil
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteBackend(location)
	default:
		return NewFileBackend(location)
	}
}

// MemoryBackend is a process-local backend for tests and ephemeral clients.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (b *MemoryBackend) Put(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = append([]byte(nil), value...)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
