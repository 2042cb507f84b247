package geo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/squadra-app/livetrack/internal/models"
)

// RiderStore holds the latest position fix per rider per ride. The gateway is
// the only writer; the live-data handler reads it on every poll.
type RiderStore interface {
	Upsert(ctx context.Context, fix models.RiderFix) error
	List(ctx context.Context, rideID string) ([]models.RiderFix, error)
}

type Index struct {
	mu    sync.RWMutex
	rides map[string]map[string]models.RiderFix
}

func NewIndex() *Index {
	return &Index{rides: make(map[string]map[string]models.RiderFix)}
}

func (g *Index) Upsert(_ context.Context, fix models.RiderFix) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}
	byUser, ok := g.rides[fix.RideID]
	if !ok {
		byUser = make(map[string]models.RiderFix)
		g.rides[fix.RideID] = byUser
	}
	// a newer fix already applied wins over a late arrival
	if prev, ok := byUser[fix.UserID]; ok && prev.Timestamp.After(fix.Timestamp) {
		return nil
	}
	byUser[fix.UserID] = fix
	return nil
}

func (g *Index) List(_ context.Context, rideID string) ([]models.RiderFix, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	byUser := g.rides[rideID]
	out := make([]models.RiderFix, 0, len(byUser))
	for _, f := range byUser {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
