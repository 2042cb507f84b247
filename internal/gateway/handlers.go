package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/squadra-app/livetrack/internal/models"
	"github.com/squadra-app/livetrack/internal/observability"
	"github.com/squadra-app/livetrack/internal/surface"
)

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var meta RideMeta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if meta.Session.ID == "" {
		meta.Session.ID = newID()
	}
	if meta.Session.Status == "" {
		meta.Session.Status = models.RidePlanned
	}
	s.rides.Put(meta)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(meta.Session)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	var body struct {
		Status models.RideStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.rides.SetStatus(rideID, body.Status) {
		http.NotFound(w, r)
		return
	}
	switch body.Status {
	case models.RideActive:
		s.appendActivity(r, rideID, models.ActivityEvent{ActivityType: models.ActivityRideStarted, Message: "Ride has started"})
	case models.RideCompleted:
		s.appendActivity(r, rideID, models.ActivityEvent{ActivityType: models.ActivityRideEnded, Message: "Ride has ended"})
		observability.RidersTracked.DeleteLabelValues(rideID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLiveData assembles the poll snapshot: ride metadata joined with the
// latest fix per participant, plus the most recent activities.
func (s *Server) handleLiveData(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	meta, ok := s.rides.Get(rideID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	fixes, err := s.fixes.List(r.Context(), rideID)
	if err != nil {
		s.logger.Error("rider store list failed", "ride_id", rideID, "error", err)
		http.Error(w, "rider store unavailable", http.StatusInternalServerError)
		return
	}
	byUser := make(map[string]models.RiderFix, len(fixes))
	for _, f := range fixes {
		byUser[f.UserID] = f
	}

	live := 0
	out := models.LiveData{
		Status:      meta.Session.Status,
		RideName:    meta.Session.Name,
		Checkpoints: meta.Checkpoints,
	}
	for _, p := range meta.Participants {
		rl := models.RiderLocation{
			UserID:         p.UserID,
			Name:           p.Name,
			ProfilePicture: p.ProfilePicture,
			Vehicle:        p.Vehicle,
			PhoneNumber:    p.PhoneNumber,
			Role:           p.Role,
		}
		if fix, ok := byUser[p.UserID]; ok {
			lat, lon, speed := fix.Latitude, fix.Longitude, fix.Speed
			ts := fix.Timestamp
			rl.HasLocation = true
			rl.Latitude = &lat
			rl.Longitude = &lon
			rl.Speed = &speed
			rl.LastUpdated = &ts
			if time.Since(ts) <= s.staleAfter {
				live++
			}
		}
		out.RiderLocations = append(out.RiderLocations, rl)
	}
	observability.RidersTracked.WithLabelValues(rideID).Set(float64(live))

	acts, err := s.activities.List(r.Context(), rideID, "", 50)
	if err != nil {
		s.logger.Error("activity list failed", "ride_id", rideID, "error", err)
		http.Error(w, "activity store unavailable", http.StatusInternalServerError)
		return
	}
	out.Activities = acts

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	if _, ok := s.rides.Get(rideID); !ok {
		http.NotFound(w, r)
		return
	}
	var fix models.RiderFix
	if err := json.NewDecoder(r.Body).Decode(&fix); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fix.RideID = rideID
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}
	if s.producer != nil {
		if err := s.producer.PublishFix(fix); err != nil {
			s.logger.Warn("fix publish failed", "ride_id", rideID, "user_id", fix.UserID, "error", err)
		}
	}
	if err := s.fixes.Upsert(r.Context(), fix); err != nil {
		s.logger.Error("fix upsert failed", "ride_id", rideID, "error", err)
		http.Error(w, "rider store unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	meta, ok := s.rides.Get(rideID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var body struct {
		AlertType models.ActivityType `json:"alert_type"`
		UserID    string              `json:"user_id,omitempty"`
		Message   string              `json:"message,omitempty"`
		Location  *models.Coord       `json:"location,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.AlertType == "" {
		http.Error(w, "alert_type required", http.StatusBadRequest)
		return
	}
	ev := models.ActivityEvent{
		ActivityType: body.AlertType,
		UserID:       body.UserID,
		Message:      body.Message,
	}
	for _, p := range meta.Participants {
		if p.UserID == body.UserID {
			ev.UserName = p.Name
			break
		}
	}
	// sos_alert events carry their own coordinates so clients don't have to
	// correlate against the rider list
	if body.Location != nil {
		lat, lon := body.Location.Lat, body.Location.Lon
		ev.Latitude = &lat
		ev.Longitude = &lon
	}
	s.appendActivity(r, rideID, ev)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	if _, ok := s.rides.Get(rideID); !ok {
		http.NotFound(w, r)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	acts, err := s.activities.List(r.Context(), rideID, r.URL.Query().Get("before"), limit)
	if err != nil {
		s.logger.Error("activity list failed", "ride_id", rideID, "error", err)
		http.Error(w, "activity store unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"activities": acts})
}

var upgrader = websocket.Upgrader{}

// handleSurfaceWS attaches a render surface. The gateway pushes snapshots to
// it and forwards its marker actions into the log; the production screen runs
// the controller in-process and reads actions directly.
func (s *Server) handleSurfaceWS(w http.ResponseWriter, r *http.Request) {
	screenID := mux.Vars(r)["screen_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	sess := s.surfaces.Add(screenID, conn)
	go func() {
		defer s.surfaces.Remove(screenID)
		_ = sess.ReadActions(func(a surface.MarkerAction) {
			s.logger.Debug("surface action", "screen_id", screenID, "action", a.Action, "rider", a.Rider.UserID)
		})
	}()
}

func (s *Server) appendActivity(r *http.Request, rideID string, ev models.ActivityEvent) {
	ev.ID = newID()
	ev.CreatedAt = time.Now()
	if err := s.activities.Append(r.Context(), rideID, ev); err != nil {
		s.logger.Error("activity append failed", "ride_id", rideID, "type", ev.ActivityType, "error", err)
	}
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
