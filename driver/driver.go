// Package driver tracks driver state and answers eligibility queries.
package driver

import (
	"time"

	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/vehicle"
)

// Status is a driver's availability state.
type Status string

const (
	StatusOffline   Status = "offline"
	StatusOnline    Status = "online"
	StatusBusy      Status = "busy"
	StatusSuspended Status = "suspended"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusOffline, StatusOnline, StatusBusy, StatusSuspended:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition is allowed. Drivers move
// offline ⇄ online ⇄ busy on their own; suspended is reachable from any
// state by an admin and only an admin brings a driver back out of it.
func (s Status) CanTransitionTo(next Status, byAdmin bool) bool {
	if s == next {
		return true
	}
	if next == StatusSuspended {
		return byAdmin
	}
	if s == StatusSuspended {
		// Only an explicit admin reactivation leaves suspended.
		return byAdmin && next == StatusOffline
	}

	switch s {
	case StatusOffline:
		return next == StatusOnline
	case StatusOnline:
		return next == StatusOffline || next == StatusBusy
	case StatusBusy:
		return next == StatusOnline
	}
	return false
}

// Driver is a roster entry. Location is nil when no recent update has been
// received from the driver's client.
type Driver struct {
	ID            string              `json:"id"`
	Status        Status              `json:"status"`
	Verified      bool                `json:"verified"`
	Rating        float64             `json:"rating"`
	VehicleClass  vehicle.Class       `json:"vehicle_class"`
	Location      *geo.Point          `json:"location,omitempty"`
	LocationAt    time.Time           `json:"location_at,omitempty"`
	ActiveRideIDs map[string]struct{} `json:"-"`
}

// Eligible reports whether the driver may be offered a ride: online,
// verified, and holding no active ride.
func (d *Driver) Eligible() bool {
	return d.Status == StatusOnline && d.Verified && len(d.ActiveRideIDs) == 0
}

// HasFreshLocation reports whether the driver's last location ping is newer
// than the staleness horizon.
func (d *Driver) HasFreshLocation(now time.Time, staleness time.Duration) bool {
	if d.Location == nil {
		return false
	}
	if staleness <= 0 {
		return true
	}
	return now.Sub(d.LocationAt) <= staleness
}

// Clone returns a deep copy safe to hand outside the roster's locks.
func (d *Driver) Clone() *Driver {
	out := *d
	if d.Location != nil {
		loc := *d.Location
		out.Location = &loc
	}
	out.ActiveRideIDs = make(map[string]struct{}, len(d.ActiveRideIDs))
	for id := range d.ActiveRideIDs {
		out.ActiveRideIDs[id] = struct{}{}
	}
	return &out
}

// Candidate is an eligible driver ranked for a pickup point.
type Candidate struct {
	Driver     *Driver `json:"driver"`
	DistanceKm float64 `json:"distance_km"`
}

// RideEventType is a ride lifecycle transition observed on the state stream.
type RideEventType string

const (
	RideRequested     RideEventType = "requested"
	RideAccepted      RideEventType = "accepted"
	RideDriverArrived RideEventType = "driver_arrived"
	RideInProgress    RideEventType = "in_progress"
	RideCompleted     RideEventType = "completed"
	RideCancelled     RideEventType = "cancelled"
)

// IsValid checks if the ride event type is valid.
func (t RideEventType) IsValid() bool {
	switch t {
	case RideRequested, RideAccepted, RideDriverArrived, RideInProgress, RideCompleted, RideCancelled:
		return true
	}
	return false
}

// Active reports whether a ride in this state occupies the driver.
func (t RideEventType) Active() bool {
	switch t {
	case RideAccepted, RideDriverArrived, RideInProgress:
		return true
	}
	return false
}

// RideEvent is one ride lifecycle transition for a driver.
type RideEvent struct {
	RideID   string        `json:"ride_id"`
	DriverID string        `json:"driver_id"`
	Type     RideEventType `json:"type"`
	At       time.Time     `json:"at"`
}
