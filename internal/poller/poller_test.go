package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/squadra-app/livetrack/internal/logging"
	"github.com/squadra-app/livetrack/internal/models"
)

// fakeService lets each GetLiveData call be scripted.
type fakeService struct {
	mu      sync.Mutex
	results []func() (models.LiveData, error)
	calls   int
}

func (f *fakeService) GetLiveData(ctx context.Context, rideID string) (models.LiveData, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()
	if idx < len(f.results) {
		return f.results[idx]()
	}
	return models.LiveData{}, errors.New("unscripted call")
}

func (f *fakeService) UpdateLocation(ctx context.Context, fix models.RiderFix) error { return nil }
func (f *fakeService) SendAlert(ctx context.Context, rideID string, at models.ActivityType, msg string, loc *models.Coord) error {
	return nil
}
func (f *fakeService) GetActivities(ctx context.Context, rideID, before string, limit int) ([]models.ActivityEvent, error) {
	return nil, nil
}

func snapshot(name string) models.LiveData {
	return models.LiveData{RideName: name, Status: models.RideActive}
}

func TestRefreshAppliesResult(t *testing.T) {
	svc := &fakeService{results: []func() (models.LiveData, error){
		func() (models.LiveData, error) { return snapshot("one"), nil },
	}}
	var got []string
	p := New(svc, "r1", time.Second, func(ld models.LiveData) { got = append(got, ld.RideName) }, logging.Nop())
	p.RefreshNow(context.Background())
	if len(got) != 1 || got[0] != "one" {
		t.Fatalf("expected one applied snapshot, got %v", got)
	}
}

func TestRefreshFailureKeepsLastKnownGood(t *testing.T) {
	svc := &fakeService{results: []func() (models.LiveData, error){
		func() (models.LiveData, error) { return snapshot("good"), nil },
		func() (models.LiveData, error) { return models.LiveData{}, errors.New("network down") },
	}}
	var got []string
	p := New(svc, "r1", time.Second, func(ld models.LiveData) { got = append(got, ld.RideName) }, logging.Nop())
	p.RefreshNow(context.Background())
	p.RefreshNow(context.Background())
	if len(got) != 1 || got[0] != "good" {
		t.Fatalf("failed poll must not apply anything, got %v", got)
	}
}

func TestRefreshSkippedWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeService{results: []func() (models.LiveData, error){
		func() (models.LiveData, error) {
			close(started)
			<-release
			return snapshot("slow"), nil
		},
	}}
	var mu sync.Mutex
	var applied int
	p := New(svc, "r1", time.Second, func(models.LiveData) { mu.Lock(); applied++; mu.Unlock() }, logging.Nop())

	done := make(chan struct{})
	go func() {
		p.RefreshNow(context.Background())
		close(done)
	}()
	<-started
	p.RefreshNow(context.Background()) // overlapping trigger: must be skipped
	close(release)
	<-done

	if svc.calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", svc.calls)
	}
	mu.Lock()
	defer mu.Unlock()
	if applied != 1 {
		t.Fatalf("expected 1 applied snapshot, got %d", applied)
	}
}

func TestOlderResponseNeverOverwritesNewer(t *testing.T) {
	var got []string
	p := New(&fakeService{}, "r1", time.Second, func(ld models.LiveData) { got = append(got, ld.RideName) }, logging.Nop())

	// simulate two in-flight fetches completing out of order
	seq1, ok := p.begin()
	if !ok {
		t.Fatal("begin failed")
	}
	p.mu.Lock()
	p.inFlight = false // pretend the first request is still on the wire
	p.mu.Unlock()
	seq2, ok := p.begin()
	if !ok {
		t.Fatal("second begin failed")
	}

	p.finish(seq2, snapshot("newer"), nil)
	p.finish(seq1, snapshot("older"), nil)

	if len(got) != 1 || got[0] != "newer" {
		t.Fatalf("older response must be dropped, got %v", got)
	}
}

func TestSlowApplyIsNotOvertakenByNewerSnapshot(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{}, 2)
	svc := &fakeService{results: []func() (models.LiveData, error){
		func() (models.LiveData, error) { return snapshot("older"), nil },
		func() (models.LiveData, error) { return snapshot("newer"), nil },
	}}

	var mu sync.Mutex
	var got []string
	p := New(svc, "r1", time.Second, func(ld models.LiveData) {
		entered <- struct{}{}
		if ld.RideName == "older" {
			<-block
		}
		mu.Lock()
		got = append(got, ld.RideName)
		mu.Unlock()
	}, logging.Nop())

	first := make(chan struct{})
	go func() {
		p.RefreshNow(context.Background())
		close(first)
	}()
	<-entered // the older snapshot is inside apply, past the in-flight window

	// a second refresh fetches a newer snapshot while the first apply is stuck
	second := make(chan struct{})
	go func() {
		p.RefreshNow(context.Background())
		close(second)
	}()
	time.Sleep(50 * time.Millisecond)
	close(block)
	<-first
	<-second

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[len(got)-1] != "newer" {
		t.Fatalf("newer snapshot must apply last, got %v", got)
	}
}

func TestKickCoalesces(t *testing.T) {
	p := New(&fakeService{}, "r1", time.Second, func(models.LiveData) {}, logging.Nop())
	p.Kick()
	p.Kick() // second kick while one is queued must not block
	select {
	case <-p.kick:
	default:
		t.Fatal("expected a queued kick")
	}
	select {
	case <-p.kick:
		t.Fatal("kicks must coalesce to one")
	default:
	}
}

func TestRunPollsImmediatelyThenOnKick(t *testing.T) {
	applied := make(chan string, 4)
	svc := &fakeService{results: []func() (models.LiveData, error){
		func() (models.LiveData, error) { return snapshot("first"), nil },
		func() (models.LiveData, error) { return snapshot("second"), nil },
	}}
	p := New(svc, "r1", time.Hour, func(ld models.LiveData) { applied <- ld.RideName }, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	waitFor(t, applied, "first")
	p.Kick()
	waitFor(t, applied, "second")
}

func waitFor(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}
