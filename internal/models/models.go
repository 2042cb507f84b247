package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type RideStatus string

const (
	RidePlanned   RideStatus = "planned"
	RideActive    RideStatus = "active"
	RideCompleted RideStatus = "completed"
)

type RiderRole string

const (
	RoleNormal RiderRole = "normal"
	RoleLead   RiderRole = "lead"
	RoleBanned RiderRole = "banned"
)

type CheckpointType string

const (
	CheckpointMeetup       CheckpointType = "meetup"
	CheckpointStop         CheckpointType = "stop"
	CheckpointDestination  CheckpointType = "destination"
	CheckpointDisbursement CheckpointType = "disbursement"
)

// RideSession identifies the ride being observed on the live screen.
type RideSession struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Status RideStatus `json:"status"`
}

type Vehicle struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	LicensePlate string `json:"license_plate"`
}

// RiderLocation is one participant as returned by the ride data service.
// Latitude/Longitude/LastUpdated/Speed are pointers because a rider who has
// never shared location sends nothing for them. HasLocation is the
// authoritative flag: a rider without it must never become a map marker,
// whatever stale coordinate values are still attached.
type RiderLocation struct {
	UserID         string     `json:"user_id"`
	Name           string     `json:"name"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	Vehicle        *Vehicle   `json:"vehicle,omitempty"`
	PhoneNumber    string     `json:"phone_number,omitempty"`
	Role           RiderRole  `json:"role"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	Speed          *float64   `json:"speed,omitempty"`
	HasLocation    bool       `json:"has_location"`
}

// Checkpoint is a waypoint on the planned route. The list is ordered: first
// entry is the route start, last is the route end. Checkpoints do not change
// after ride creation.
type Checkpoint struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Type      CheckpointType `json:"type"`
	Address   string         `json:"address,omitempty"`
}

type ActivityType string

const (
	ActivityArrivedMeetup      ActivityType = "arrived_meetup"
	ActivityCheckedInStop      ActivityType = "checked_in_stop"
	ActivityReachedDestination ActivityType = "reached_destination"
	ActivityReachedHome        ActivityType = "reached_home"
	ActivityRideStarted        ActivityType = "ride_started"
	ActivityRideEnded          ActivityType = "ride_ended"
	ActivityUserJoined         ActivityType = "user_joined"
	ActivityUserLeft           ActivityType = "user_left"
	ActivitySOSAlert           ActivityType = "sos_alert"
	ActivityLowFuel            ActivityType = "low_fuel"
	ActivityBreakdown          ActivityType = "breakdown"
	ActivityNeedHelp           ActivityType = "need_help"
)

// ActivityEvent is one entry in the ride's append-only event timeline.
type ActivityEvent struct {
	ID           string       `json:"id"`
	ActivityType ActivityType `json:"activity_type"`
	UserID       string       `json:"user_id,omitempty"`
	UserName     string       `json:"user_name,omitempty"`
	Message      string       `json:"message"`
	CreatedAt    time.Time    `json:"created_at"`
	Checkpoint   *Checkpoint  `json:"checkpoint,omitempty"`
	// Latitude/Longitude are attached server-side to sos_alert events so
	// consumers do not have to correlate against the rider list.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// IsPriority reports whether the event needs critical visual treatment.
func (a ActivityEvent) IsPriority() bool { return a.ActivityType == ActivitySOSAlert }

// LiveData is the full snapshot returned by one poll of the ride data service.
type LiveData struct {
	Status         RideStatus      `json:"status"`
	RideName       string          `json:"ride_name"`
	RiderLocations []RiderLocation `json:"rider_locations"`
	Checkpoints    []Checkpoint    `json:"checkpoints"`
	Activities     []ActivityEvent `json:"activities"`
}

// RiderFix is a single position report sent upstream while tracking is active.
type RiderFix struct {
	RideID    string    `json:"ride_id"`
	UserID    string    `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading"`
	Speed     float64   `json:"speed"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// IntercomState is the transient voice-channel state exposed to the screen.
type IntercomState struct {
	IsConnected bool   `json:"is_connected"`
	IsSpeaking  bool   `json:"is_speaking"`
	SpeakerName string `json:"speaker_name,omitempty"`
	IsMuted     bool   `json:"is_muted"`
	IsLead      bool   `json:"is_lead"`
}
