package storage

import (
	"context"
	"sort"
	"sync"

	"templine/internal/telemetry"
)

// MemoryStore drží měření jen v paměti. Pro testy a lokální běh bez databáze (STORE=memory).
type MemoryStore struct {
	mu       sync.RWMutex
	readings []telemetry.Reading
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, reading telemetry.Reading) error {
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "insert", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
	return nil
}

func (s *MemoryStore) QueryLatest(ctx context.Context, nodeID string) (telemetry.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest telemetry.Reading
		found  bool
	)
	for _, r := range s.readings {
		if nodeID != "" && r.NodeID != nodeID {
			continue
		}
		// >= : při shodném čase vyhrává později uložené měření
		if !found || !r.ObservedAt.Before(latest.ObservedAt) {
			latest = r
			found = true
		}
	}
	if !found {
		return telemetry.Reading{}, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) QueryRecent(ctx context.Context, limit int) ([]telemetry.Reading, error) {
	s.mu.RLock()
	sorted := append([]telemetry.Reading(nil), s.readings...)
	s.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.After(sorted[j].ObservedAt)
	})
	if limit < 0 {
		limit = 0
	}
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}
