package quotes

import (
	"context"
	"sync"
	"time"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// Memory is the default in-process store.
type Memory[T Record] struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]T
}

func NewMemory[T Record](now func() time.Time) *Memory[T] {
	if now == nil {
		now = time.Now
	}
	return &Memory[T]{now: now, entries: make(map[string]T)}
}

func (s *Memory[T]) Put(ctx context.Context, rec T) error {
	if rec.Key() == "" {
		return binkerr.New(binkerr.CodeInternal, "quote record has no id")
	}
	s.mu.Lock()
	s.entries[rec.Key()] = rec
	s.mu.Unlock()
	return nil
}

func (s *Memory[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return zero, false, nil
	}
	if !s.now().Before(rec.Expiry()) {
		delete(s.entries, id)
		return zero, false, nil
	}
	return rec, true, nil
}

func (s *Memory[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *Memory[T]) ClearExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.entries {
		if !now.Before(rec.Expiry()) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Memory[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
