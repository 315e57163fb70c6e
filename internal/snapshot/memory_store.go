package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradeforge/poloniex-connector/internal/errs"
)

// MemoryStore is the in-process Store implementation used when no external
// cache is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// NewMemoryStore creates a memory-backed snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]Record)}
}

// Get returns the current snapshot for the provided key.
func (s *MemoryStore) Get(ctx context.Context, key Key) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return Record{}, fmt.Errorf("memory store get context: %w", ctx.Err())
		default:
		}
	}
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}, errs.New("snapshot", errs.CodeNotFound, errs.WithMessage("snapshot not found"))
	}
	return record.Clone(), nil
}

// Put overwrites the snapshot for the record's key.
func (s *MemoryStore) Put(ctx context.Context, record Record) error {
	if err := record.Key.Validate(); err != nil {
		return err
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("memory store put context: %w", ctx.Err())
		default:
		}
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.records[record.Key] = record.Clone()
	s.mu.Unlock()
	return nil
}
