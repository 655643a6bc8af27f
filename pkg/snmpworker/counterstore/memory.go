package counterstore

import (
	"sync"

	"github.com/gralabs/snmpworker/models"
)

// MemoryStore is a Store backed by a plain map guarded by a mutex. Counter
// history does not survive a process restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.CounterRecord
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.CounterRecord)}
}

func (s *MemoryStore) Get(ident string) (models.CounterRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[ident]
	return rec, ok, nil
}

func (s *MemoryStore) Put(ident string, value int64, ts float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ident] = models.CounterRecord{Value: value, TS: ts}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
