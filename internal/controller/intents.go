package controller

import "fmt"

// directionsURL builds the native geo: intent for turn-by-turn to a point.
func directionsURL(lat, lng float64) string {
	return fmt.Sprintf("geo:%f,%f?q=%f,%f", lat, lng, lat, lng)
}

// directionsWebURL is the browser fallback when no native maps app answers
// the geo: scheme.
func directionsWebURL(lat, lng float64) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%f,%f", lat, lng)
}

func dialURL(phone string) string { return "tel:" + phone }
