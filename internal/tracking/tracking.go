package tracking

import (
	"context"
	"log/slog"
	"sync"

	"github.com/squadra-app/livetrack/internal/models"
	"github.com/squadra-app/livetrack/internal/ridedata"
)

// PermissionGate asks the OS for foreground location permission.
type PermissionGate interface {
	RequestForeground(ctx context.Context) (granted bool, err error)
}

// PositionSource is the device's continuous location feed. Subscribe returns
// a channel that closes when ctx is cancelled.
type PositionSource interface {
	Subscribe(ctx context.Context) (<-chan models.RiderFix, error)
}

// Alerter surfaces the permission-denied case; everything else is logged.
type Alerter interface {
	Alert(title, message string)
}

// Controller starts continuous position reporting once the ride is active and
// has checkpoints, and stops it on unmount. Start failures leave the
// controller in the not-started state so the next status evaluation can
// retry.
type Controller struct {
	gate   PermissionGate
	source PositionSource
	svc    ridedata.Service
	alert  Alerter
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

func NewController(gate PermissionGate, source PositionSource, svc ridedata.Service, alert Alerter, logger *slog.Logger) *Controller {
	return &Controller{gate: gate, source: source, svc: svc, alert: alert, logger: logger}
}

// EvaluateStatus is called with every applied poll result. Tracking starts
// exactly once, when the ride is active and the route exists. The position
// subscription lives inside ctx: once the screen's mount context is cancelled
// no evaluation can start it again.
func (c *Controller) EvaluateStatus(ctx context.Context, rideID string, status models.RideStatus, checkpoints []models.Checkpoint) {
	if status != models.RideActive || len(checkpoints) == 0 {
		return
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.start(ctx, rideID)
}

func (c *Controller) start(ctx context.Context, rideID string) {
	if ctx.Err() != nil {
		return
	}
	granted, err := c.gate.RequestForeground(ctx)
	if err != nil {
		c.logger.Warn("location permission request failed", "error", err)
		return
	}
	if !granted {
		c.alert.Alert("Location Permission", "Squadra needs location access to share your position with the group.")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	fixes, err := c.source.Subscribe(runCtx)
	if err != nil {
		cancel()
		c.logger.Warn("position source subscribe failed", "error", err)
		return
	}

	c.mu.Lock()
	if c.started || ctx.Err() != nil {
		// lost the race to a concurrent evaluation or a teardown
		c.mu.Unlock()
		cancel()
		return
	}
	c.started = true
	c.cancel = cancel
	c.mu.Unlock()

	go c.report(runCtx, rideID, fixes)
}

func (c *Controller) report(ctx context.Context, rideID string, fixes <-chan models.RiderFix) {
	for fix := range fixes {
		fix.RideID = rideID
		if err := c.svc.UpdateLocation(ctx, fix); err != nil {
			c.logger.Warn("location report failed", "ride_id", rideID, "error", err)
		}
	}
}

// Started reports whether continuous reporting is running.
func (c *Controller) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Stop ends reporting. Idempotent; called unconditionally on unmount.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
