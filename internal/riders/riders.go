package riders

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/squadra-app/livetrack/internal/models"
)

// StaleAfter is how long a rider may go without a location update before the
// screen marks them stale. Strictly greater-than: exactly 120s is still fresh.
const StaleAfter = 120 * time.Second

// IsStale reports whether a rider shared location before but has gone quiet.
// A rider who never shared location is not stale: "unknown" is a distinct
// state from "offline" and the two render differently.
func IsStale(r models.RiderLocation, now time.Time) bool {
	if !r.HasLocation || r.LastUpdated == nil {
		return false
	}
	return now.Sub(*r.LastUpdated) > StaleAfter
}

// SortForDisplay orders riders for the list panel: whoever is currently
// broadcasting first, then ride leads, then everyone else by name. The sort is
// stable so equal riders keep their server order.
func SortForDisplay(rs []models.RiderLocation, speakerName string) []models.RiderLocation {
	out := make([]models.RiderLocation, len(rs))
	copy(out, rs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aSpeaking := speakerName != "" && a.Name == speakerName
		bSpeaking := speakerName != "" && b.Name == speakerName
		if aSpeaking != bSpeaking {
			return aSpeaking
		}
		aLead := a.Role == models.RoleLead
		bLead := b.Role == models.RoleLead
		if aLead != bLead {
			return aLead
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return out
}

// Descriptor is the serialized marker description shipped to the render
// surface. It carries everything the map needs so the surface never has to
// reach back into controller state.
type Descriptor struct {
	UserID       string  `json:"user_id"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Avatar       string  `json:"avatar,omitempty"`
	Initials     string  `json:"initials"`
	Color        string  `json:"color"`
	VehicleLabel string  `json:"vehicle_label,omitempty"`
	PhoneNumber  string  `json:"phone_number,omitempty"`
	IsLead       bool    `json:"is_lead"`
	IsStale      bool    `json:"is_stale"`
	SpeedKmh     float64 `json:"speed_kmh,omitempty"`
}

var markerColors = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#008080",
}

// Describe converts the riders that may appear on the map into marker
// descriptors. Riders without a usable location are excluded outright; the
// has_location flag is checked in addition to coordinate presence because the
// backend has been seen leaving stale lat/lng on riders who stopped sharing.
func Describe(rs []models.RiderLocation, now time.Time) []Descriptor {
	out := make([]Descriptor, 0, len(rs))
	for _, r := range rs {
		if !r.HasLocation || r.Latitude == nil || r.Longitude == nil {
			continue
		}
		d := Descriptor{
			UserID:      r.UserID,
			Name:        r.Name,
			Lat:         *r.Latitude,
			Lng:         *r.Longitude,
			Avatar:      r.ProfilePicture,
			Initials:    Initials(r.Name),
			Color:       ColorFor(r.UserID),
			PhoneNumber: r.PhoneNumber,
			IsLead:      r.Role == models.RoleLead,
			IsStale:     IsStale(r, now),
		}
		if r.Vehicle != nil {
			d.VehicleLabel = strings.TrimSpace(fmt.Sprintf("%s %s", r.Vehicle.Make, r.Vehicle.Model))
		}
		if r.Speed != nil {
			d.SpeedKmh = *r.Speed
		}
		out = append(out, d)
	}
	return out
}

// Initials returns up to two uppercase initials for avatar fallback bubbles.
func Initials(name string) string {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "?"
	case 1:
		return strings.ToUpper(firstRune(fields[0]))
	default:
		return strings.ToUpper(firstRune(fields[0]) + firstRune(fields[len(fields)-1]))
	}
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// ColorFor picks a stable marker color for a rider id.
func ColorFor(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return markerColors[h.Sum32()%uint32(len(markerColors))]
}
