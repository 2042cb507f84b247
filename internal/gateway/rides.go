package gateway

import (
	"sync"

	"github.com/squadra-app/livetrack/internal/models"
)

// Participant is a ride member's profile as known to the gateway. Live
// coordinates come from the rider store, not from here.
type Participant struct {
	UserID         string           `json:"user_id"`
	Name           string           `json:"name"`
	ProfilePicture string           `json:"profile_picture,omitempty"`
	Vehicle        *models.Vehicle  `json:"vehicle,omitempty"`
	PhoneNumber    string           `json:"phone_number,omitempty"`
	Role           models.RiderRole `json:"role"`
}

// RideMeta is everything about a ride that is fixed for its duration, plus
// the mutable status.
type RideMeta struct {
	Session      models.RideSession  `json:"session"`
	Checkpoints  []models.Checkpoint `json:"checkpoints"`
	Participants []Participant       `json:"participants"`
}

// RideRegistry is the gateway's in-memory ride directory. Ride creation and
// membership are owned by the main backend; the harness seeds this over HTTP.
type RideRegistry struct {
	mu    sync.RWMutex
	rides map[string]*RideMeta
}

func NewRideRegistry() *RideRegistry {
	return &RideRegistry{rides: make(map[string]*RideMeta)}
}

func (r *RideRegistry) Put(meta RideMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := meta
	r.rides[meta.Session.ID] = &m
}

func (r *RideRegistry) Get(rideID string) (RideMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.rides[rideID]
	if !ok {
		return RideMeta{}, false
	}
	return *m, true
}

func (r *RideRegistry) SetStatus(rideID string, status models.RideStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rides[rideID]
	if !ok {
		return false
	}
	m.Session.Status = status
	return true
}
