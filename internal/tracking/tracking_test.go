package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/squadra-app/livetrack/internal/logging"
	"github.com/squadra-app/livetrack/internal/models"
)

type fakeGate struct {
	granted bool
	err     error
	calls   int
}

func (f *fakeGate) RequestForeground(ctx context.Context) (bool, error) {
	f.calls++
	return f.granted, f.err
}

type fakeSource struct {
	ch         chan models.RiderFix
	err        error
	subscribes int
}

func (f *fakeSource) Subscribe(ctx context.Context) (<-chan models.RiderFix, error) {
	f.subscribes++
	if f.err != nil {
		return nil, f.err
	}
	go func() {
		<-ctx.Done()
		close(f.ch)
	}()
	return f.ch, nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeAlerter) Alert(title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, title)
}

type fixRecorder struct {
	mu    sync.Mutex
	fixes []models.RiderFix
}

func (f *fixRecorder) GetLiveData(ctx context.Context, rideID string) (models.LiveData, error) {
	return models.LiveData{}, nil
}
func (f *fixRecorder) UpdateLocation(ctx context.Context, fix models.RiderFix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixes = append(f.fixes, fix)
	return nil
}
func (f *fixRecorder) SendAlert(ctx context.Context, rideID string, at models.ActivityType, msg string, loc *models.Coord) error {
	return nil
}
func (f *fixRecorder) GetActivities(ctx context.Context, rideID, before string, limit int) ([]models.ActivityEvent, error) {
	return nil, nil
}

func (f *fixRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fixes)
}

var route = []models.Checkpoint{
	{Latitude: 0, Longitude: 0, Type: models.CheckpointMeetup},
	{Latitude: 1, Longitude: 1, Type: models.CheckpointDestination},
}

func TestStartsOnceWhenActiveWithCheckpoints(t *testing.T) {
	gate := &fakeGate{granted: true}
	src := &fakeSource{ch: make(chan models.RiderFix)}
	c := NewController(gate, src, &fixRecorder{}, &fakeAlerter{}, logging.Nop())
	defer c.Stop()

	ctx := context.Background()
	c.EvaluateStatus(ctx, "r1", models.RideActive, route)
	if !c.Started() {
		t.Fatal("expected tracking started")
	}
	// identical poll result must not start again
	c.EvaluateStatus(ctx, "r1", models.RideActive, route)
	if src.subscribes != 1 {
		t.Fatalf("expected 1 subscription, got %d", src.subscribes)
	}
	if gate.calls != 1 {
		t.Fatalf("expected 1 permission request, got %d", gate.calls)
	}
}

func TestDoesNotStartForPlannedOrEmptyRoute(t *testing.T) {
	gate := &fakeGate{granted: true}
	src := &fakeSource{ch: make(chan models.RiderFix)}
	c := NewController(gate, src, &fixRecorder{}, &fakeAlerter{}, logging.Nop())

	ctx := context.Background()
	c.EvaluateStatus(ctx, "r1", models.RidePlanned, route)
	c.EvaluateStatus(ctx, "r1", models.RideActive, nil)
	if c.Started() || src.subscribes != 0 {
		t.Fatal("tracking must not start")
	}
}

func TestPermissionDeniedAlertsAndStaysStopped(t *testing.T) {
	gate := &fakeGate{granted: false}
	alerter := &fakeAlerter{}
	src := &fakeSource{ch: make(chan models.RiderFix)}
	c := NewController(gate, src, &fixRecorder{}, alerter, logging.Nop())

	c.EvaluateStatus(context.Background(), "r1", models.RideActive, route)
	if c.Started() {
		t.Fatal("denied permission must not start tracking")
	}
	if len(alerter.alerts) != 1 {
		t.Fatalf("expected one alert, got %v", alerter.alerts)
	}
	// next evaluation retries
	gate.granted = true
	c.EvaluateStatus(context.Background(), "r1", models.RideActive, route)
	if !c.Started() {
		t.Fatal("retry after grant must start")
	}
	c.Stop()
}

func TestSubscribeFailureLeavesNotStarted(t *testing.T) {
	src := &fakeSource{err: errors.New("gps unavailable")}
	c := NewController(&fakeGate{granted: true}, src, &fixRecorder{}, &fakeAlerter{}, logging.Nop())
	c.EvaluateStatus(context.Background(), "r1", models.RideActive, route)
	if c.Started() {
		t.Fatal("failed start must leave controller not-started")
	}
}

func TestFixesAreTaggedAndReported(t *testing.T) {
	src := &fakeSource{ch: make(chan models.RiderFix, 1)}
	rec := &fixRecorder{}
	c := NewController(&fakeGate{granted: true}, src, rec, &fakeAlerter{}, logging.Nop())
	defer c.Stop()

	c.EvaluateStatus(context.Background(), "r1", models.RideActive, route)
	src.ch <- models.RiderFix{Latitude: 5, Longitude: 6, UserID: "me"}

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fix never reported")
		}
		time.Sleep(5 * time.Millisecond)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.fixes[0].RideID != "r1" {
		t.Fatalf("fix must carry the ride id, got %+v", rec.fixes[0])
	}
}

func TestDoesNotStartAfterContextCancelled(t *testing.T) {
	gate := &fakeGate{granted: true}
	src := &fakeSource{ch: make(chan models.RiderFix)}
	c := NewController(gate, src, &fixRecorder{}, &fakeAlerter{}, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// a poll result that straddles teardown must not revive tracking
	c.EvaluateStatus(ctx, "r1", models.RideActive, route)
	if c.Started() || src.subscribes != 0 || gate.calls != 0 {
		t.Fatal("cancelled context must not start tracking")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	src := &fakeSource{ch: make(chan models.RiderFix)}
	c := NewController(&fakeGate{granted: true}, src, &fixRecorder{}, &fakeAlerter{}, logging.Nop())
	c.EvaluateStatus(context.Background(), "r1", models.RideActive, route)
	c.Stop()
	c.Stop()
	if c.Started() {
		t.Fatal("expected stopped")
	}
}
