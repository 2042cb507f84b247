// Package surface defines the message boundary between the screen controller
// and the geospatial render surface (the sandboxed map). The surface is a
// black box: it receives serialized snapshots one way and emits marker-popup
// actions the other way. Nothing behind this boundary ever sees live
// controller state.
package surface

import (
	"github.com/squadra-app/livetrack/internal/geo"
	"github.com/squadra-app/livetrack/internal/models"
	"github.com/squadra-app/livetrack/internal/riders"
)

// Surface is the controller-to-map direction. Calls are fire-and-forget;
// errors mean the channel itself broke, not that the map rejected an update.
type Surface interface {
	SetRiders(rs []riders.Descriptor) error
	SetCheckpoints(cps []models.Checkpoint) error
	CenterOn(lat, lng float64) error
	FitAll(b geo.Bounds) error
}

// Message types for the controller-to-surface direction.
const (
	MsgUpdateRiders      = "update_riders"
	MsgUpdateCheckpoints = "update_checkpoints"
	MsgCenterOn          = "center_on"
	MsgFitAll            = "fit_all"
)

// Message is the JSON envelope pushed to the surface. Exactly one payload
// field is set, selected by Type.
type Message struct {
	Type        string              `json:"type"`
	Riders      []riders.Descriptor `json:"riders,omitempty"`
	Checkpoints []models.Checkpoint `json:"checkpoints,omitempty"`
	Center      *models.Coord       `json:"center,omitempty"`
	Bounds      *geo.Bounds         `json:"bounds,omitempty"`
}

// Marker-popup actions the surface can emit.
const (
	ActionDirections = "directions"
	ActionCall       = "call"
)

// MarkerAction is the surface-to-controller envelope, emitted when the user
// taps a button on a marker popup.
type MarkerAction struct {
	Action string            `json:"action"`
	Rider  riders.Descriptor `json:"rider"`
}
