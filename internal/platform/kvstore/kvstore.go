// Package kvstore provides the durable key-value substrate backing the
// client-side persistence layer: the record vault, the clinician registry,
// the activity log, and the intake draft slot each live under a fixed key
// as one JSON blob. It defines the Store interface, a file-backed
// implementation, and an in-memory implementation suitable for testing.
package kvstore

import (
	"errors"
	"sync"
)

// ErrKeyNotFound is returned when a key has never been written.
var ErrKeyNotFound = errors.New("key not found")

// Well-known keys. The names are the on-device format and must be kept
// stable across releases so existing installations rehydrate correctly.
const (
	KeyUsers       = "alcortex_db_users"
	KeyActivityLog = "alcortex_activity_log"
	KeyRecordVault = "alcortex_emr_vault"
	KeyDraft       = "alcortex_patient_draft"
)

// Store is a durable blob-per-key store with explicit lifecycle.
type Store interface {
	Init() error
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// MemoryStore is a thread-safe, in-memory Store for tests and ephemeral use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Init() error { return nil }

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
