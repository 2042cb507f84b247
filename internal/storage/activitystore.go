package storage

import (
	"context"
	"sync"

	"github.com/squadra-app/livetrack/internal/models"
)

// ActivityStore persists the append-only ride event timeline. List returns
// newest first, optionally only entries older than the `before` activity id.
// An unknown before id yields an empty page.
type ActivityStore interface {
	Append(ctx context.Context, rideID string, ev models.ActivityEvent) error
	List(ctx context.Context, rideID string, before string, limit int) ([]models.ActivityEvent, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]models.ActivityEvent // newest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]models.ActivityEvent)}
}

func (m *MemoryStore) Append(_ context.Context, rideID string, ev models.ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[rideID] = append([]models.ActivityEvent{ev}, m.events[rideID]...)
	return nil
}

func (m *MemoryStore) List(_ context.Context, rideID string, before string, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	evs := m.events[rideID]
	if before != "" {
		idx := -1
		for i, ev := range evs {
			if ev.ID == before {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil
		}
		evs = evs[idx+1:]
	}
	if len(evs) > limit {
		evs = evs[:limit]
	}
	return append([]models.ActivityEvent(nil), evs...), nil
}
