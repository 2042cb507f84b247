package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/squadra-app/livetrack/internal/logging"
	"github.com/squadra-app/livetrack/internal/models"
	"github.com/squadra-app/livetrack/internal/observability"
	"github.com/squadra-app/livetrack/internal/ridedata"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(logging.Nop(), Options{})
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func seedRide(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	meta := RideMeta{
		Session: models.RideSession{ID: "r1", Name: "Sunday Loop", Status: models.RidePlanned},
		Checkpoints: []models.Checkpoint{
			{Latitude: 0, Longitude: 0, Type: models.CheckpointMeetup},
			{Latitude: 1, Longitude: 1, Type: models.CheckpointDestination},
		},
		Participants: []Participant{
			{UserID: "u1", Name: "Amy", Role: models.RoleLead, PhoneNumber: "+100"},
			{UserID: "u2", Name: "Bob", Role: models.RoleNormal},
		},
	}
	b, _ := json.Marshal(meta)
	resp, err := http.Post(ts.URL+"/api/v1/rides", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create ride status %d", resp.StatusCode)
	}
	return "r1"
}

func TestLiveDataForUnknownRideIs404(t *testing.T) {
	_, ts := newTestServer(t)
	c := ridedata.NewClient(ts.URL)
	_, err := c.GetLiveData(context.Background(), "nope")
	if err != ridedata.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocationFlowsIntoLiveData(t *testing.T) {
	_, ts := newTestServer(t)
	rideID := seedRide(t, ts)
	c := ridedata.NewClient(ts.URL)
	ctx := context.Background()

	// Bob posts a fix; Amy never shares
	err := c.UpdateLocation(ctx, models.RiderFix{RideID: rideID, UserID: "u2", Latitude: 0.5, Longitude: 0.6, Speed: 62})
	if err != nil {
		t.Fatalf("update location: %v", err)
	}

	ld, err := c.GetLiveData(ctx, rideID)
	if err != nil {
		t.Fatalf("live data: %v", err)
	}
	if len(ld.RiderLocations) != 2 {
		t.Fatalf("expected both participants, got %d", len(ld.RiderLocations))
	}
	byID := map[string]models.RiderLocation{}
	for _, r := range ld.RiderLocations {
		byID[r.UserID] = r
	}
	bob := byID["u2"]
	if !bob.HasLocation || bob.Latitude == nil || *bob.Latitude != 0.5 || bob.LastUpdated == nil {
		t.Fatalf("bob's fix not reflected: %+v", bob)
	}
	amy := byID["u1"]
	if amy.HasLocation || amy.Latitude != nil {
		t.Fatalf("amy must have no location: %+v", amy)
	}
	if len(ld.Checkpoints) != 2 {
		t.Fatalf("checkpoints missing: %+v", ld.Checkpoints)
	}
}

func TestStatusChangeAppendsActivity(t *testing.T) {
	_, ts := newTestServer(t)
	rideID := seedRide(t, ts)
	c := ridedata.NewClient(ts.URL)
	ctx := context.Background()

	b, _ := json.Marshal(map[string]string{"status": "active"})
	resp, err := http.Post(ts.URL+"/api/v1/rides/"+rideID+"/status", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	resp.Body.Close()

	ld, err := c.GetLiveData(ctx, rideID)
	if err != nil {
		t.Fatalf("live data: %v", err)
	}
	if ld.Status != models.RideActive {
		t.Fatalf("expected active, got %s", ld.Status)
	}
	if len(ld.Activities) != 1 || ld.Activities[0].ActivityType != models.ActivityRideStarted {
		t.Fatalf("expected ride_started activity, got %+v", ld.Activities)
	}
}

func TestAlertAttachesCoordinatesAndUserName(t *testing.T) {
	_, ts := newTestServer(t)
	rideID := seedRide(t, ts)
	ctx := context.Background()

	body, _ := json.Marshal(map[string]interface{}{
		"alert_type": "sos_alert",
		"user_id":    "u2",
		"message":    "Crashed near the bridge",
		"location":   map[string]float64{"lat": 0.7, "lon": 0.8},
	})
	resp, err := http.Post(ts.URL+"/api/v1/rides/"+rideID+"/alerts", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("alert: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("alert status %d", resp.StatusCode)
	}

	c := ridedata.NewClient(ts.URL)
	acts, err := c.GetActivities(ctx, rideID, "", 0)
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(acts))
	}
	ev := acts[0]
	if ev.ActivityType != models.ActivitySOSAlert || !ev.IsPriority() {
		t.Fatalf("expected priority sos_alert, got %+v", ev)
	}
	if ev.UserName != "Bob" {
		t.Fatalf("expected resolved user name Bob, got %q", ev.UserName)
	}
	if ev.Latitude == nil || *ev.Latitude != 0.7 {
		t.Fatalf("expected attached coordinates, got %+v", ev)
	}
}

func TestActivitiesPagination(t *testing.T) {
	_, ts := newTestServer(t)
	rideID := seedRide(t, ts)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		body, _ := json.Marshal(map[string]string{"alert_type": "low_fuel", "user_id": "u1"})
		resp, err := http.Post(ts.URL+"/api/v1/rides/"+rideID+"/alerts", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("alert: %v", err)
		}
		resp.Body.Close()
	}

	c := ridedata.NewClient(ts.URL)
	page1, err := c.GetActivities(ctx, rideID, "", 2)
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(page1))
	}
	page2, err := c.GetActivities(ctx, rideID, page1[1].ID, 2)
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2) != 1 {
		t.Fatalf("expected 1 remaining activity, got %d", len(page2))
	}
	if page2[0].ID == page1[0].ID || page2[0].ID == page1[1].ID {
		t.Fatal("pages must not overlap")
	}
}

func TestRidersTrackedGaugeIsPerRide(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	c := ridedata.NewClient(ts.URL)

	for _, id := range []string{"ride-a", "ride-b"} {
		meta := RideMeta{
			Session: models.RideSession{ID: id, Status: models.RideActive},
			Participants: []Participant{
				{UserID: "u1", Name: "Amy"},
				{UserID: "u2", Name: "Bob"},
			},
		}
		b, _ := json.Marshal(meta)
		resp, err := http.Post(ts.URL+"/api/v1/rides", "application/json", bytes.NewReader(b))
		if err != nil {
			t.Fatalf("create ride: %v", err)
		}
		resp.Body.Close()
	}

	if err := c.UpdateLocation(ctx, models.RiderFix{RideID: "ride-a", UserID: "u1", Latitude: 1, Longitude: 1}); err != nil {
		t.Fatalf("fix: %v", err)
	}
	for _, u := range []string{"u1", "u2"} {
		if err := c.UpdateLocation(ctx, models.RiderFix{RideID: "ride-b", UserID: u, Latitude: 2, Longitude: 2}); err != nil {
			t.Fatalf("fix: %v", err)
		}
	}

	// polling one ride must not clobber the other ride's reading
	if _, err := c.GetLiveData(ctx, "ride-a"); err != nil {
		t.Fatalf("live ride-a: %v", err)
	}
	if _, err := c.GetLiveData(ctx, "ride-b"); err != nil {
		t.Fatalf("live ride-b: %v", err)
	}
	if got := testutil.ToFloat64(observability.RidersTracked.WithLabelValues("ride-a")); got != 1 {
		t.Fatalf("ride-a gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(observability.RidersTracked.WithLabelValues("ride-b")); got != 2 {
		t.Fatalf("ride-b gauge = %v, want 2", got)
	}

	before := testutil.CollectAndCount(observability.RidersTracked)
	b, _ := json.Marshal(map[string]string{"status": "completed"})
	resp, err := http.Post(ts.URL+"/api/v1/rides/ride-b/status", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("complete ride: %v", err)
	}
	resp.Body.Close()
	if after := testutil.CollectAndCount(observability.RidersTracked); after != before-1 {
		t.Fatalf("completed ride must drop its gauge series: before=%d after=%d", before, after)
	}
}

func TestEndToEndScreenAgainstGateway(t *testing.T) {
	_, ts := newTestServer(t)
	rideID := seedRide(t, ts)
	c := ridedata.NewClient(ts.URL)
	ctx := context.Background()

	b, _ := json.Marshal(map[string]string{"status": "active"})
	resp, err := http.Post(ts.URL+"/api/v1/rides/"+rideID+"/status", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	resp.Body.Close()

	if err := c.SendAlert(ctx, rideID, models.ActivityNeedHelp, "flat tire", nil); err != nil {
		t.Fatalf("send alert: %v", err)
	}
	ld, err := c.GetLiveData(ctx, rideID)
	if err != nil {
		t.Fatalf("live data: %v", err)
	}
	if len(ld.Activities) != 2 {
		t.Fatalf("expected ride_started + need_help, got %+v", ld.Activities)
	}
	if ld.Activities[0].ActivityType != models.ActivityNeedHelp {
		t.Fatalf("expected newest first, got %+v", ld.Activities[0])
	}
}
