package intercom

import (
	"context"
	"log/slog"
	"sync"

	"github.com/squadra-app/livetrack/internal/models"
)

// ConnState is the voice channel connection lifecycle.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

// Service is the external intercom provider (audio transport is out of scope,
// this is its control plane).
type Service interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SetMuted(muted bool) error
}

// Feedback is how the bridge talks back at the user: short non-blocking
// notices plus a haptic tick on successful PTT toggles.
type Feedback interface {
	Info(message string)
	Haptic()
}

// Bridge wraps the intercom service and owns all transient voice state. The
// screen controller only reads the state; speaking/mute transitions happen
// here.
type Bridge struct {
	svc      Service
	feedback Feedback
	logger   *slog.Logger

	mu          sync.Mutex
	state       ConnState
	muted       bool
	speaking    bool
	speakerName string
	isLead      bool
}

func NewBridge(svc Service, feedback Feedback, isLead bool, logger *slog.Logger) *Bridge {
	return &Bridge{svc: svc, feedback: feedback, isLead: isLead, logger: logger, muted: true}
}

// Connect brings the channel up. Lead riders start muted; transmission is an
// explicit PTT action, never a side effect of connecting.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Disconnected {
		b.mu.Unlock()
		return nil
	}
	b.state = Connecting
	b.mu.Unlock()

	err := b.svc.Connect(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = Disconnected
		b.logger.Warn("intercom connect failed", "error", err)
		return err
	}
	b.state = Connected
	b.muted = true
	return nil
}

// Disconnect tears the channel down. Idempotent; called unconditionally on
// screen unmount.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	if b.state == Disconnected {
		b.mu.Unlock()
		return
	}
	b.state = Disconnected
	b.speaking = false
	b.speakerName = ""
	b.mu.Unlock()
	if err := b.svc.Disconnect(); err != nil {
		b.logger.Warn("intercom disconnect failed", "error", err)
	}
}

// CanBroadcast is the capability check behind PTT, kept separate from the
// connection state machine so each axis can be exercised alone.
func (b *Bridge) CanBroadcast() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isLead && b.state == Connected
}

// TogglePTT flips the lead's mute state. Non-leads only ever listen; a toggle
// while disconnected changes nothing.
func (b *Bridge) TogglePTT() {
	b.mu.Lock()
	state := b.state
	lead := b.isLead
	target := !b.muted
	b.mu.Unlock()

	if state != Connected {
		b.feedback.Info("Connecting to voice channel...")
		return
	}
	if !lead {
		b.feedback.Info("Listener Only")
		return
	}
	if err := b.svc.SetMuted(target); err != nil {
		b.logger.Warn("ptt toggle failed", "muted", target, "error", err)
		return
	}
	b.mu.Lock()
	b.muted = target
	b.mu.Unlock()
	b.feedback.Haptic()
}

// HandleSpeaker ingests speaker events from the service.
func (b *Bridge) HandleSpeaker(name string, speaking bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speaking = speaking
	if speaking {
		b.speakerName = name
	} else {
		b.speakerName = ""
	}
}

// State is a read-only snapshot for the screen.
func (b *Bridge) State() models.IntercomState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.IntercomState{
		IsConnected: b.state == Connected,
		IsSpeaking:  b.speaking,
		SpeakerName: b.speakerName,
		IsMuted:     b.muted,
		IsLead:      b.isLead,
	}
}
