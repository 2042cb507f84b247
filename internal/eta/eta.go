package eta

import (
	"fmt"
	"math"
)

// DefaultSpeedKmh is the assumed group cruising speed used for the route ETA
// shown on the live screen. Rides with traffic-aware routing are a future
// concern; the screen only needs a rough "about 2.5 hrs" figure.
const DefaultSpeedKmh = 40.0

// Format renders a rough travel-time estimate for a distance at the given
// average speed: whole minutes under an hour, hours to one decimal above.
// ok is false for non-positive inputs.
func Format(distanceKm, speedKmh float64) (string, bool) {
	if distanceKm <= 0 || speedKmh <= 0 {
		return "", false
	}
	hours := distanceKm / speedKmh
	if hours < 1 {
		return fmt.Sprintf("%d min", int(math.Round(hours*60))), true
	}
	return fmt.Sprintf("%.1f hrs", hours), true
}

// FormatDefault is Format at DefaultSpeedKmh.
func FormatDefault(distanceKm float64) (string, bool) {
	return Format(distanceKm, DefaultSpeedKmh)
}
