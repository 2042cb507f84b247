package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/squadra-app/livetrack/internal/models"
	"github.com/squadra-app/livetrack/internal/observability"
	"github.com/squadra-app/livetrack/internal/ridedata"
)

// Poller refreshes the live ride snapshot on a fixed interval and on demand
// (screen focus, app foregrounding, post-SOS refresh). All trigger sources
// funnel into one refresh path:
//
//   - a refresh is skipped while a previous one is still in flight, so at most
//     one request per screen is ever outstanding;
//   - responses carry a sequence number and an older response can never
//     overwrite a newer one that already applied;
//   - a failed poll keeps the previous snapshot untouched. Losing the map
//     mid-ride is worse than showing data a tick out of date.
type Poller struct {
	svc      ridedata.Service
	rideID   string
	interval time.Duration
	apply    func(models.LiveData)
	logger   *slog.Logger

	kick chan struct{}

	mu       sync.Mutex // in-flight bookkeeping; never held across apply
	inFlight bool
	seq      uint64

	applyMu sync.Mutex // serializes the ordering check with apply itself
	applied uint64
}

func New(svc ridedata.Service, rideID string, interval time.Duration, apply func(models.LiveData), logger *slog.Logger) *Poller {
	return &Poller{
		svc:      svc,
		rideID:   rideID,
		interval: interval,
		apply:    apply,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Run polls once immediately, then on every interval tick or kick, until ctx
// is cancelled. It blocks; callers run it in a goroutine and cancel ctx on
// screen unmount.
func (p *Poller) Run(ctx context.Context) {
	p.RefreshNow(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RefreshNow(ctx)
		case <-p.kick:
			p.RefreshNow(ctx)
		}
	}
}

// Kick requests an out-of-band refresh without blocking. A kick while one is
// already queued coalesces.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// RefreshNow performs one fetch-and-apply round trip synchronously.
func (p *Poller) RefreshNow(ctx context.Context) {
	seq, ok := p.begin()
	if !ok {
		observability.PollOverlapSkips.Inc()
		return
	}
	ld, err := p.svc.GetLiveData(ctx, p.rideID)
	p.finish(seq, ld, err)
}

func (p *Poller) begin() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight {
		return 0, false
	}
	p.inFlight = true
	p.seq++
	return p.seq, true
}

func (p *Poller) finish(seq uint64, ld models.LiveData, err error) {
	observability.PollsTotal.Inc()
	p.mu.Lock()
	p.inFlight = false
	p.mu.Unlock()
	if err != nil {
		observability.PollFailures.Inc()
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Warn("live data poll failed, keeping last snapshot", "ride_id", p.rideID, "error", err)
		return
	}
	// The ordering check and the apply are one critical section: an older
	// response must not pass the check, park, and land after a newer one.
	p.applyMu.Lock()
	defer p.applyMu.Unlock()
	if seq <= p.applied {
		observability.PollStaleDrops.Inc()
		p.logger.Warn("dropping out-of-order poll response", "ride_id", p.rideID, "seq", seq)
		return
	}
	p.applied = seq
	p.apply(ld)
}
