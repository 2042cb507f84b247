package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/squadra-app/livetrack/internal/activity"
	"github.com/squadra-app/livetrack/internal/config"
	"github.com/squadra-app/livetrack/internal/eta"
	"github.com/squadra-app/livetrack/internal/geo"
	"github.com/squadra-app/livetrack/internal/intercom"
	"github.com/squadra-app/livetrack/internal/models"
	"github.com/squadra-app/livetrack/internal/observability"
	"github.com/squadra-app/livetrack/internal/poller"
	"github.com/squadra-app/livetrack/internal/ridedata"
	"github.com/squadra-app/livetrack/internal/riders"
	"github.com/squadra-app/livetrack/internal/surface"
	"github.com/squadra-app/livetrack/internal/tracking"
)

// State is the screen-level lifecycle. There is deliberately no Error state:
// poll failures during Ready keep the last snapshot on screen instead of
// regressing to a spinner.
type State int

const (
	Loading State = iota
	Ready
)

// Screen orchestrates the live tracking view: it owns the polled snapshot and
// fans it out to the render surface, the activity pipeline, and the location
// tracker. All snapshot fields are replaced atomically per poll; nothing else
// writes them.
type Screen struct {
	cfg      config.ScreenConfig
	svc      ridedata.Service
	surf     surface.Surface
	pipeline *activity.Pipeline
	bridge   *intercom.Bridge
	tracker  *tracking.Controller
	alerter  Alerter
	intents  IntentLauncher
	logger   *slog.Logger

	rideID string
	poll   *poller.Poller
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	ride        models.RideSession
	riderList   []models.RiderLocation
	checkpoints []models.Checkpoint
	runCtx      context.Context
	now         func() time.Time
}

type Deps struct {
	Config   config.ScreenConfig
	Service  ridedata.Service
	Surface  surface.Surface
	Pipeline *activity.Pipeline
	Bridge   *intercom.Bridge
	Tracker  *tracking.Controller
	Alerter  Alerter
	Intents  IntentLauncher
	Logger   *slog.Logger
}

func NewScreen(rideID string, d Deps) *Screen {
	s := &Screen{
		cfg:      d.Config,
		svc:      d.Service,
		surf:     d.Surface,
		pipeline: d.Pipeline,
		bridge:   d.Bridge,
		tracker:  d.Tracker,
		alerter:  d.Alerter,
		intents:  d.Intents,
		logger:   d.Logger,
		rideID:   rideID,
		state:    Loading,
		runCtx:   context.Background(),
		now:      time.Now,
	}
	s.ride = models.RideSession{ID: rideID}
	s.poll = poller.New(d.Service, rideID, d.Config.PollInterval, s.applyLiveData, d.Logger)
	return s
}

// Mount starts polling. The screen shows Loading until the first snapshot
// applies.
func (s *Screen) Mount(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.runCtx = runCtx
	s.mu.Unlock()
	go s.poll.Run(runCtx)
}

// Unmount tears down every live resource: the poll loop, the location
// subscription and the voice channel. Idempotent.
func (s *Screen) Unmount() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.tracker.Stop()
	s.bridge.Disconnect()
}

// OnFocus and OnAppForeground are the extra refresh triggers beyond the
// interval tick. They coalesce into the same serialized poll.
func (s *Screen) OnFocus()         { s.poll.Kick() }
func (s *Screen) OnAppForeground() { s.poll.Kick() }

// applyLiveData is the single write path for screen state, invoked by the
// poller in fetch-completion order.
func (s *Screen) applyLiveData(ld models.LiveData) {
	s.mu.Lock()
	s.state = Ready
	s.ride.Status = ld.Status
	if ld.RideName != "" {
		s.ride.Name = ld.RideName
	}
	s.riderList = ld.RiderLocations
	s.checkpoints = ld.Checkpoints
	now := s.now()
	ctx := s.runCtx
	s.mu.Unlock()

	if err := s.surf.SetRiders(riders.Describe(ld.RiderLocations, now)); err != nil {
		s.logger.Warn("surface rider update failed", "error", err)
	}
	if err := s.surf.SetCheckpoints(ld.Checkpoints); err != nil {
		s.logger.Warn("surface checkpoint update failed", "error", err)
	}
	s.pipeline.Apply(ld.Activities)
	// the mount context bounds the tracker: an apply that straddles unmount
	// cannot restart tracking after Stop ran
	s.tracker.EvaluateStatus(ctx, s.rideID, ld.Status, ld.Checkpoints)
}

func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Screen) Ride() models.RideSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ride
}

// RidersForDisplay returns the rider list for the side panel: current speaker
// first, then leads, then alphabetical.
func (s *Screen) RidersForDisplay() []models.RiderLocation {
	s.mu.Lock()
	rs := s.riderList
	s.mu.Unlock()
	return riders.SortForDisplay(rs, s.bridge.State().SpeakerName)
}

// RouteSummary returns the start-to-end distance and rough ETA for the
// header. ok is false when the route has fewer than two checkpoints.
func (s *Screen) RouteSummary() (distanceKm float64, etaText string, ok bool) {
	s.mu.Lock()
	cps := s.checkpoints
	s.mu.Unlock()
	km, ok := geo.RouteDistanceKm(cps)
	if !ok {
		return 0, "", false
	}
	text, _ := eta.Format(km, s.cfg.AverageSpeedKmh)
	return km, text, true
}

// SelectRider centers the map on a rider. Riders who never shared location
// get an informational alert instead.
func (s *Screen) SelectRider(userID string) {
	r, ok := s.findRider(userID)
	if !ok {
		return
	}
	if !r.HasLocation || r.Latitude == nil || r.Longitude == nil {
		s.alerter.Alert("No Location", r.Name+" hasn't shared their location yet.")
		return
	}
	if err := s.surf.CenterOn(*r.Latitude, *r.Longitude); err != nil {
		s.logger.Warn("surface center failed", "error", err)
	}
}

// FitAllMarkers zooms the map to the bounding box of every rider and
// checkpoint.
func (s *Screen) FitAllMarkers() {
	s.mu.Lock()
	rs, cps := s.riderList, s.checkpoints
	s.mu.Unlock()
	b, ok := geo.BoundsFor(rs, cps)
	if !ok {
		return
	}
	if err := s.surf.FitAll(b); err != nil {
		s.logger.Warn("surface fit failed", "error", err)
	}
}

// SendSOS runs the confirm-send-refresh flow. A failed send alerts and does
// not refresh: the user retries manually, duplicate SOS sends are worse than
// a delayed one.
func (s *Screen) SendSOS(ctx context.Context, message string, location *models.Coord) {
	s.alerter.Confirm("Send SOS?", "This alerts every rider in the group. Continue?", func() {
		if err := s.svc.SendAlert(ctx, s.rideID, models.ActivitySOSAlert, message, location); err != nil {
			s.logger.Error("sos send failed", "ride_id", s.rideID, "error", err)
			s.alerter.Alert("SOS Failed", "Could not send SOS. Please try again.")
			return
		}
		observability.SOSSent.Inc()
		s.alerter.Alert("SOS Sent", "The group has been alerted.")
		s.poll.Kick()
	})
}

// HandleMarkerAction reacts to marker-popup taps coming back from the render
// surface.
func (s *Screen) HandleMarkerAction(a surface.MarkerAction) {
	switch a.Action {
	case surface.ActionDirections:
		s.openDirections(a.Rider.Lat, a.Rider.Lng)
	case surface.ActionCall:
		s.callRider(a.Rider)
	default:
		s.logger.Warn("unknown marker action", "action", a.Action)
	}
}

// ViewSOSLocation resolves the rider behind an SOS timeline entry and opens
// directions to them. Resolution is best effort against the current rider
// list; a miss surfaces an alert rather than failing silently.
func (s *Screen) ViewSOSLocation(ev models.ActivityEvent) {
	if ev.Latitude != nil && ev.Longitude != nil {
		s.openDirections(*ev.Latitude, *ev.Longitude)
		return
	}
	s.mu.Lock()
	rs := s.riderList
	s.mu.Unlock()
	r, ok := activity.ResolveRider(ev, rs)
	if !ok || !r.HasLocation || r.Latitude == nil || r.Longitude == nil {
		s.alerter.Alert("Rider Not Found", "Couldn't locate this rider on the map.")
		return
	}
	s.openDirections(*r.Latitude, *r.Longitude)
}

func (s *Screen) openDirections(lat, lng float64) {
	native := directionsURL(lat, lng)
	if s.intents.CanOpenURL(native) {
		if err := s.intents.OpenURL(native); err == nil {
			return
		}
	}
	if err := s.intents.OpenURL(directionsWebURL(lat, lng)); err != nil {
		s.logger.Warn("directions intent failed", "error", err)
	}
}

func (s *Screen) callRider(d riders.Descriptor) {
	if d.PhoneNumber == "" {
		s.alerter.Alert("No Phone Number", d.Name+" has no phone number on file.")
		return
	}
	if err := s.intents.OpenURL(dialURL(d.PhoneNumber)); err != nil {
		s.logger.Warn("dial intent failed", "error", err)
	}
}

// TogglePTT and Intercom expose the voice bridge to the UI layer.
func (s *Screen) TogglePTT() { s.bridge.TogglePTT() }

func (s *Screen) Intercom() models.IntercomState { return s.bridge.State() }

// UnseenActivities and OpenTimeline pass through to the pipeline.
func (s *Screen) UnseenActivities() int { return s.pipeline.UnseenCount() }

func (s *Screen) OpenTimeline() []models.ActivityEvent { return s.pipeline.OpenTimeline() }

func (s *Screen) findRider(userID string) (models.RiderLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.riderList {
		if r.UserID == userID {
			return r, true
		}
	}
	return models.RiderLocation{}, false
}

// RefreshNow forces a synchronous poll; the debug overlay uses it.
func (s *Screen) RefreshNow(ctx context.Context) { s.poll.RefreshNow(ctx) }
