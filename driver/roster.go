// Package driver tracks driver state and answers eligibility queries.
package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/vehicle"
)

// entry pairs a driver record with its own lock. State reads and writes for
// one driver serialize on the entry lock, which is what makes Claim
// linearizable per driver without a roster-wide write lock.
type entry struct {
	mu sync.Mutex
	d  *Driver
}

// RosterConfig holds roster tuning.
type RosterConfig struct {
	// H3Resolution controls the nearby-driver cell size.
	H3Resolution geo.H3Resolution
	// LocationStaleness is how old a location ping may be before a driver
	// drops out of radius-ranked queries. Zero disables the check.
	LocationStaleness time.Duration
}

// DefaultRosterConfig returns sensible defaults.
func DefaultRosterConfig() RosterConfig {
	return RosterConfig{
		H3Resolution:      geo.H3ResolutionNeighborhood,
		LocationStaleness: 2 * time.Minute,
	}
}

// Roster is the in-memory DriverRepository. Driver location and status
// updates stream in continuously as independent per-driver writes; queries
// take a read lock on the map only long enough to collect entries.
type Roster struct {
	mu      sync.RWMutex
	drivers map[string]*entry
	cells   *geo.CellIndex

	config RosterConfig
	audit  *logging.AuditLogger
	now    func() time.Time
}

// NewRoster creates an empty roster.
func NewRoster(config RosterConfig, audit *logging.AuditLogger) *Roster {
	if config.H3Resolution == 0 {
		config.H3Resolution = geo.H3ResolutionNeighborhood
	}
	return &Roster{
		drivers: make(map[string]*entry),
		cells:   geo.NewCellIndex(config.H3Resolution),
		config:  config,
		audit:   audit,
		now:     time.Now,
	}
}

// Get returns a copy of a driver's current state.
func (r *Roster) Get(_ context.Context, driverID string) (*Driver, error) {
	e, err := r.entry(driverID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.d.Clone(), nil
}

// Upsert installs or replaces a driver record.
func (r *Roster) Upsert(_ context.Context, d *Driver) error {
	if d == nil || d.ID == "" {
		return errors.Validation("driver must have an id")
	}
	if !d.Status.IsValid() {
		return errors.Validation("unknown driver status " + string(d.Status))
	}
	stored := d.Clone()
	if stored.ActiveRideIDs == nil {
		stored.ActiveRideIDs = make(map[string]struct{})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.drivers[d.ID]
	if !exists {
		r.drivers[d.ID] = &entry{d: stored}
	} else {
		e.mu.Lock()
		e.d = stored
		e.mu.Unlock()
	}

	if stored.Location != nil {
		r.cells.Update(d.ID, *stored.Location)
	} else {
		r.cells.Remove(d.ID)
	}
	return nil
}

// Remove drops a driver from the roster.
func (r *Roster) Remove(_ context.Context, driverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drivers, driverID)
	r.cells.Remove(driverID)
}

// SetStatus applies a status transition, enforcing the state machine.
func (r *Roster) SetStatus(_ context.Context, driverID string, next Status, byAdmin bool) error {
	if !next.IsValid() {
		return errors.Validation("unknown driver status " + string(next))
	}
	e, err := r.entry(driverID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.d.Status.CanTransitionTo(next, byAdmin) {
		return errors.Conflict("driver " + driverID + " cannot move from " +
			string(e.d.Status) + " to " + string(next))
	}

	prev := e.d.Status
	e.d.Status = next

	if r.audit != nil && byAdmin && next == StatusSuspended {
		r.audit.Record(logging.AuditEvent{
			Type:     logging.AuditEventDriverSuspended,
			Resource: "driver/" + driverID,
			Details:  map[string]string{"from": string(prev)},
		})
	}
	if r.audit != nil && byAdmin && prev == StatusSuspended && next != StatusSuspended {
		r.audit.Record(logging.AuditEvent{
			Type:     logging.AuditEventDriverReactivated,
			Resource: "driver/" + driverID,
		})
	}
	return nil
}

// SetVerified flips the verification flag.
func (r *Roster) SetVerified(_ context.Context, driverID string, verified bool) error {
	e, err := r.entry(driverID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.d.Verified = verified
	return nil
}

// UpdateLocation records a location ping.
func (r *Roster) UpdateLocation(_ context.Context, driverID string, p geo.Point, at time.Time) error {
	if !p.IsValid() {
		return errors.InvalidInput("location is not a valid coordinate")
	}
	e, err := r.entry(driverID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	loc := p
	e.d.Location = &loc
	e.d.LocationAt = at
	e.mu.Unlock()

	r.mu.Lock()
	r.cells.Update(driverID, p)
	r.mu.Unlock()
	return nil
}

// ApplyRideEvent folds a ride lifecycle transition into the driver's
// active-ride set. Accepting a ride marks the driver busy; completing or
// cancelling the last active ride returns a busy driver to online.
func (r *Roster) ApplyRideEvent(_ context.Context, ev RideEvent) error {
	if !ev.Type.IsValid() {
		return errors.Validation("unknown ride event type " + string(ev.Type))
	}
	if ev.Type == RideRequested {
		// A request does not occupy any driver yet.
		return nil
	}
	e, err := r.entry(ev.DriverID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.Type.Active() {
		e.d.ActiveRideIDs[ev.RideID] = struct{}{}
		if e.d.Status == StatusOnline {
			e.d.Status = StatusBusy
		}
		return nil
	}

	// completed or cancelled
	delete(e.d.ActiveRideIDs, ev.RideID)
	if len(e.d.ActiveRideIDs) == 0 && e.d.Status == StatusBusy {
		e.d.Status = StatusOnline
	}
	return nil
}

// ListEligible returns eligible drivers able to serve the requested class,
// within radiusKm of pickup when radiusKm > 0, ordered by ascending
// distance then descending rating. The result is a snapshot; Claim
// re-validates before assigning.
func (r *Roster) ListEligible(_ context.Context, pickup geo.Point, radiusKm float64, class vehicle.Class) ([]Candidate, error) {
	now := r.now()

	var entries []*entry
	if radiusKm > 0 {
		// Cell index narrows the scan; cells over-cover the radius so the
		// exact haversine filter below stays authoritative.
		r.mu.RLock()
		for _, id := range r.cells.Nearby(pickup, radiusKm) {
			if e, ok := r.drivers[id]; ok {
				entries = append(entries, e)
			}
		}
		r.mu.RUnlock()
	} else {
		r.mu.RLock()
		entries = make([]*entry, 0, len(r.drivers))
		for _, e := range r.drivers {
			entries = append(entries, e)
		}
		r.mu.RUnlock()
	}

	var candidates []Candidate
	for _, e := range entries {
		e.mu.Lock()
		d := e.d
		ok := d.Eligible() &&
			(class == "" || d.VehicleClass.CanFulfill(class)) &&
			d.HasFreshLocation(now, r.config.LocationStaleness)
		var c Candidate
		if ok {
			c = Candidate{Driver: d.Clone(), DistanceKm: geo.HaversineDistance(*d.Location, pickup)}
		}
		e.mu.Unlock()

		if !ok {
			continue
		}
		if radiusKm > 0 && c.DistanceKm > radiusKm {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		if candidates[i].Driver.Rating != candidates[j].Driver.Rating {
			return candidates[i].Driver.Rating > candidates[j].Driver.Rating
		}
		return candidates[i].Driver.ID < candidates[j].Driver.ID
	})

	return candidates, nil
}

// Claim atomically reserves a driver for a ride. The entry lock makes the
// eligibility re-check and the active-ride write one indivisible step, so
// two concurrent claims for the same driver cannot both succeed.
func (r *Roster) Claim(_ context.Context, driverID, rideID string) error {
	if rideID == "" {
		return errors.Validation("ride id must not be empty")
	}
	e, err := r.entry(driverID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.d.Eligible() {
		return errors.AlreadyAssigned(driverID)
	}

	e.d.ActiveRideIDs[rideID] = struct{}{}
	e.d.Status = StatusBusy

	if r.audit != nil {
		r.audit.Record(logging.AuditEvent{
			Type:     logging.AuditEventDriverClaimed,
			Resource: "driver/" + driverID,
			Details:  map[string]string{"ride_id": rideID},
		})
	}
	return nil
}

// Len returns the roster size.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

func (r *Roster) entry(driverID string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.drivers[driverID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("driver " + driverID)
	}
	return e, nil
}

var (
	_ Repository  = (*Roster)(nil)
	_ StateWriter = (*Roster)(nil)
)
