package geo

import (
	"math"

	"github.com/squadra-app/livetrack/internal/models"
)

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// RouteDistanceKm returns the great-circle distance between the first and last
// checkpoint of the route. Intermediate stops are deliberately ignored: the
// number shown on the live screen is a start-to-end approximation, not path
// length. ok is false with fewer than two checkpoints.
func RouteDistanceKm(checkpoints []models.Checkpoint) (km float64, ok bool) {
	if len(checkpoints) < 2 {
		return 0, false
	}
	first := checkpoints[0]
	last := checkpoints[len(checkpoints)-1]
	return Haversine(first.Latitude, first.Longitude, last.Latitude, last.Longitude) / 1000.0, true
}

// Bounds is a lat/lon bounding box used for fit-all-markers requests.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsFor computes the bounding box over every rider with a usable location
// plus every checkpoint. ok is false when there is nothing to fit.
func BoundsFor(riders []models.RiderLocation, checkpoints []models.Checkpoint) (Bounds, bool) {
	b := Bounds{MinLat: math.Inf(1), MinLon: math.Inf(1), MaxLat: math.Inf(-1), MaxLon: math.Inf(-1)}
	any := false
	grow := func(lat, lon float64) {
		any = true
		b.MinLat = math.Min(b.MinLat, lat)
		b.MinLon = math.Min(b.MinLon, lon)
		b.MaxLat = math.Max(b.MaxLat, lat)
		b.MaxLon = math.Max(b.MaxLon, lon)
	}
	for _, r := range riders {
		if !r.HasLocation || r.Latitude == nil || r.Longitude == nil {
			continue
		}
		grow(*r.Latitude, *r.Longitude)
	}
	for _, c := range checkpoints {
		grow(c.Latitude, c.Longitude)
	}
	if !any {
		return Bounds{}, false
	}
	return b, true
}
