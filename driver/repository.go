// Package driver tracks driver state and answers eligibility queries.
package driver

import (
	"context"
	"time"

	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/vehicle"
)

// Repository is the dispatch-facing view of the roster. ListEligible is a
// best-effort snapshot; Claim re-validates eligibility, so a stale read
// costs a retry, never a double assignment.
type Repository interface {
	// Get returns a copy of a driver's current state.
	Get(ctx context.Context, driverID string) (*Driver, error)

	// ListEligible returns eligible drivers able to serve the requested
	// vehicle class, within radiusKm of pickup when radiusKm > 0, ordered
	// by ascending distance then descending rating.
	ListEligible(ctx context.Context, pickup geo.Point, radiusKm float64, class vehicle.Class) ([]Candidate, error)

	// Claim atomically reserves a driver for a ride. It succeeds only if
	// the driver is still online, verified, and free at claim time;
	// otherwise it fails with AlreadyAssigned and no side effects. Claims
	// are linearizable per driver: of two concurrent claims, at most one
	// succeeds.
	Claim(ctx context.Context, driverID, rideID string) error
}

// StateWriter is the stream-facing side of the roster: the driver client
// and ride service write through it, the engine only reads.
type StateWriter interface {
	// Upsert installs or replaces a driver record.
	Upsert(ctx context.Context, d *Driver) error

	// SetStatus applies a status transition, enforcing the state machine.
	SetStatus(ctx context.Context, driverID string, next Status, byAdmin bool) error

	// SetVerified flips the verification flag.
	SetVerified(ctx context.Context, driverID string, verified bool) error

	// UpdateLocation records a location ping.
	UpdateLocation(ctx context.Context, driverID string, p geo.Point, at time.Time) error

	// ApplyRideEvent folds a ride lifecycle transition into the driver's
	// active-ride set and status.
	ApplyRideEvent(ctx context.Context, ev RideEvent) error
}
