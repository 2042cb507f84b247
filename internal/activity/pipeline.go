package activity

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/squadra-app/livetrack/internal/models"
	"github.com/squadra-app/livetrack/internal/observability"
)

// Notifier receives the side effects of a new activity arriving: a transient
// toast and a short haptic pulse. The screen wires in real UI; tests wire in
// a recorder.
type Notifier interface {
	ShowToast(text string)
	Haptic()
}

// Pipeline tracks the ride's activity timeline across polls. The server list
// is always canonical and replaces the local copy wholesale; the pipeline only
// diffs lengths to decide whether something new arrived since the last tick.
type Pipeline struct {
	notifier Notifier
	logger   *slog.Logger

	mu            sync.Mutex
	activities    []models.ActivityEvent
	previousCount int
	unseen        int
}

func NewPipeline(notifier Notifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{notifier: notifier, logger: logger}
}

// Apply ingests the activity list from one poll. A notification fires only
// when the list grew and this is not the first load: the initial snapshot of
// an in-progress ride would otherwise toast stale history at the user.
func (p *Pipeline) Apply(activities []models.ActivityEvent) {
	p.mu.Lock()
	grew := len(activities) > p.previousCount
	notify := grew && p.previousCount > 0
	delta := len(activities) - p.previousCount
	var latest models.ActivityEvent
	if notify {
		latest = activities[0] // server order is newest first
		p.unseen += delta
	}
	p.activities = append([]models.ActivityEvent(nil), activities...)
	p.previousCount = len(activities)
	p.mu.Unlock()

	if !notify {
		return
	}
	observability.ActivitiesNotified.Inc()
	p.notifier.ShowToast(toastText(latest))
	p.notifier.Haptic()
	p.logger.Debug("activity notification", "activity_id", latest.ID, "type", latest.ActivityType, "new", delta)
}

func toastText(a models.ActivityEvent) string {
	if a.UserName == "" {
		return a.Message
	}
	return a.UserName + ": " + a.Message
}

// UnseenCount is the badge value on the timeline button.
func (p *Pipeline) UnseenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unseen
}

// OpenTimeline returns the full timeline for the modal and clears the unseen
// badge.
func (p *Pipeline) OpenTimeline() []models.ActivityEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unseen = 0
	return append([]models.ActivityEvent(nil), p.activities...)
}

// Activities returns a copy of the current timeline without touching the
// unseen badge.
func (p *Pipeline) Activities() []models.ActivityEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ActivityEvent(nil), p.activities...)
}

// ResolveRider finds the rider an SOS event refers to, for the timeline's
// "View Location" action. Matching is best effort: event user id, then exact
// name, then rider name appearing inside the event message. The substring
// fallback can misattribute when one rider's name contains another's; the fix
// is server-attached coordinates on sos_alert events, which newer backends
// already send (see ActivityEvent.Latitude).
func ResolveRider(ev models.ActivityEvent, riders []models.RiderLocation) (models.RiderLocation, bool) {
	for _, r := range riders {
		if ev.UserID != "" && r.UserID == ev.UserID {
			return r, true
		}
	}
	for _, r := range riders {
		if ev.UserName != "" && strings.EqualFold(r.Name, ev.UserName) {
			return r, true
		}
	}
	for _, r := range riders {
		if r.Name != "" && strings.Contains(strings.ToLower(ev.Message), strings.ToLower(r.Name)) {
			return r, true
		}
	}
	return models.RiderLocation{}, false
}
