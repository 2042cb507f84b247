package surface

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/squadra-app/livetrack/internal/geo"
	"github.com/squadra-app/livetrack/internal/models"
	"github.com/squadra-app/livetrack/internal/riders"
)

// WSSession is one connected render surface. Writes are serialized with a
// per-session mutex because gorilla connections do not allow concurrent
// writers.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSSession(conn *websocket.Conn) *WSSession { return &WSSession{conn: conn} }

func (s *WSSession) send(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(m)
}

func (s *WSSession) SetRiders(rs []riders.Descriptor) error {
	return s.send(Message{Type: MsgUpdateRiders, Riders: rs})
}

func (s *WSSession) SetCheckpoints(cps []models.Checkpoint) error {
	return s.send(Message{Type: MsgUpdateCheckpoints, Checkpoints: cps})
}

func (s *WSSession) CenterOn(lat, lng float64) error {
	return s.send(Message{Type: MsgCenterOn, Center: &models.Coord{Lat: lat, Lon: lng}})
}

func (s *WSSession) FitAll(b geo.Bounds) error {
	return s.send(Message{Type: MsgFitAll, Bounds: &b})
}

// ReadActions consumes marker actions from the surface until the connection
// closes, invoking handle for each. It blocks; run it in its own goroutine.
func (s *WSSession) ReadActions(handle func(MarkerAction)) error {
	for {
		var a MarkerAction
		if err := s.conn.ReadJSON(&a); err != nil {
			return err
		}
		handle(a)
	}
}

func (s *WSSession) Close() error { return s.conn.Close() }

// ErrNoSession is returned when pushing to a surface that never connected or
// already went away.
var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no surface session" }

// WSRegistry holds connected surface sessions keyed by screen id. The gateway
// uses it to fan snapshots out to every surface watching a ride.
type WSRegistry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{logger: logger, sessions: make(map[string]*WSSession)}
}

func (r *WSRegistry) Add(screenID string, conn *websocket.Conn) *WSSession {
	s := NewWSSession(conn)
	r.mu.Lock()
	if old, ok := r.sessions[screenID]; ok {
		_ = old.Close()
	}
	r.sessions[screenID] = s
	r.mu.Unlock()
	return s
}

func (r *WSRegistry) Remove(screenID string) {
	r.mu.Lock()
	delete(r.sessions, screenID)
	r.mu.Unlock()
}

// Push sends a message to one screen's surface.
func (r *WSRegistry) Push(screenID string, m Message) error {
	r.mu.RLock()
	s, ok := r.sessions[screenID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(m); err != nil {
		r.logger.Warn("surface push failed", "screen_id", screenID, "error", err)
		return err
	}
	return nil
}
