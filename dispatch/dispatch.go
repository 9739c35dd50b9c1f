// Package dispatch matches ride requests to eligible drivers.
//
// A dispatch walks the full request pipeline: serviceability against the
// zone index, a fare quote from the rule table, candidate selection from
// the driver repository, and finally an atomic claim of the best candidate.
package dispatch

import (
	"context"
	"time"

	"github.com/gatiride/gati-platform/engine/driver"
	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/fare"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/telemetry"
	"github.com/gatiride/gati-platform/engine/zone"
)

// Outcome is the terminal state of a dispatch attempt.
type Outcome string

const (
	// OutcomeAssigned means a driver was claimed for the ride.
	OutcomeAssigned Outcome = "assigned"
	// OutcomeOutOfServiceArea means the pickup point is not covered by
	// any active zone.
	OutcomeOutOfServiceArea Outcome = "out_of_service_area"
	// OutcomeNoDrivers means no eligible driver could be claimed.
	OutcomeNoDrivers Outcome = "no_drivers_available"
)

// Request describes a ride to dispatch.
type Request struct {
	RideID string
	Trip   fare.Trip

	// Assign controls whether the best candidate is claimed. When false
	// the dispatcher only resolves serviceability, quote, and the ranked
	// candidate list (a "dry run" used by quote previews).
	Assign bool
}

// Result is the outcome of a dispatch attempt.
type Result struct {
	Outcome          Outcome            `json:"outcome"`
	ZoneID           string             `json:"zone_id,omitempty"`
	ZoneIDs          []string           `json:"zone_ids,omitempty"`
	Quote            *fare.Breakdown    `json:"quote,omitempty"`
	Candidates       []driver.Candidate `json:"candidates,omitempty"`
	AssignedDriverID string             `json:"assigned_driver_id,omitempty"`
	Attempts         int                `json:"attempts"`
}

// Config holds dispatcher tunables.
type Config struct {
	// SearchRadiusKm bounds the candidate search around the pickup point.
	SearchRadiusKm float64
	// MaxClaimAttempts bounds how many ranked candidates are tried when a
	// claim is lost to a concurrent assignment.
	MaxClaimAttempts int
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		SearchRadiusKm:   5.0,
		MaxClaimAttempts: 3,
	}
}

// Dispatcher composes the zone index, fare table and calculator, and the
// driver repository into the ride-matching pipeline.
type Dispatcher struct {
	zones   *zone.Index
	rules   *fare.Table
	calc    *fare.Calculator
	drivers driver.Repository
	config  Config
	logger  *logging.Logger
	metrics *telemetry.EngineMetrics
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(zones *zone.Index, rules *fare.Table, calc *fare.Calculator, drivers driver.Repository, config Config, logger *logging.Logger, metrics *telemetry.EngineMetrics) *Dispatcher {
	if config.SearchRadiusKm <= 0 {
		config.SearchRadiusKm = DefaultConfig().SearchRadiusKm
	}
	if config.MaxClaimAttempts <= 0 {
		config.MaxClaimAttempts = DefaultConfig().MaxClaimAttempts
	}
	return &Dispatcher{
		zones:   zones,
		rules:   rules,
		calc:    calc,
		drivers: drivers,
		config:  config,
		logger:  logger.WithComponent("dispatch"),
		metrics: metrics,
	}
}

// Dispatch runs the matching pipeline for a ride request.
//
// OutOfServiceArea and NoDrivers are expected outcomes and are reported in
// Result.Outcome with a nil error. A non-nil error means the request itself
// was bad (invalid trip, no fare rule) or something downstream failed.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := d.logger.WithRideID(req.RideID)

	result, err := d.dispatch(ctx, req, log)
	if err != nil {
		d.metrics.RecordDispatch(ctx, "error", time.Since(start))
		return nil, err
	}

	d.metrics.RecordDispatch(ctx, string(result.Outcome), time.Since(start))
	telemetry.SetSpanAttributes(ctx, telemetry.DispatchAttributes(req.RideID, result.ZoneID, string(result.Outcome), len(result.Candidates))...)
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request, log *logging.Logger) (*Result, error) {
	// Serviceability gate: the pickup must fall inside an active zone.
	lookup := d.zones.Lookup(req.Trip.Pickup)
	d.metrics.RecordZoneLookup(ctx, lookup.Covered)
	if !lookup.Covered {
		log.Info("pickup outside service area",
			"lat", req.Trip.Pickup.Lat, "lng", req.Trip.Pickup.Lng)
		return &Result{Outcome: OutcomeOutOfServiceArea}, nil
	}

	resolved, err := d.zones.Resolve(req.Trip.Pickup)
	if err != nil {
		return nil, err
	}

	rule, err := d.rules.RuleFor(req.Trip.BookingType, req.Trip.VehicleClass)
	if err != nil {
		return nil, err
	}

	quote, err := d.calc.Quote(req.Trip, rule, resolved.Fare)
	if err != nil {
		return nil, err
	}
	d.metrics.RecordQuote(ctx, string(req.Trip.BookingType))

	result := &Result{
		Outcome: OutcomeNoDrivers,
		ZoneID:  resolved.ID,
		ZoneIDs: lookup.ZoneIDs,
		Quote:   &quote,
	}

	candidates, err := d.drivers.ListEligible(ctx, req.Trip.Pickup, d.config.SearchRadiusKm, req.Trip.VehicleClass)
	if err != nil {
		return nil, err
	}
	result.Candidates = candidates

	if len(candidates) == 0 {
		log.Info("no eligible drivers", "zone_id", resolved.ID,
			"vehicle_class", string(req.Trip.VehicleClass),
			"radius_km", d.config.SearchRadiusKm)
		return result, nil
	}

	if !req.Assign {
		result.Outcome = OutcomeAssigned
		return result, nil
	}

	// Walk the ranked list. A lost claim means another ride took the
	// driver, or the driver left the roster, between listing and
	// claiming, so move to the next candidate.
	attempts := d.config.MaxClaimAttempts
	if attempts > len(candidates) {
		attempts = len(candidates)
	}
	for i := 0; i < attempts; i++ {
		cand := candidates[i]
		result.Attempts = i + 1
		d.metrics.RecordClaimAttempt(ctx)

		err := d.drivers.Claim(ctx, cand.Driver.ID, req.RideID)
		if err == nil {
			result.Outcome = OutcomeAssigned
			result.AssignedDriverID = cand.Driver.ID
			log.Info("driver assigned",
				"driver_id", cand.Driver.ID,
				"distance_km", cand.DistanceKm,
				"attempt", i+1)
			return result, nil
		}
		if errors.IsAlreadyAssigned(err) || errors.IsNotFound(err) {
			d.metrics.RecordClaimRace(ctx)
			log.Debug("claim lost, driver no longer claimable",
				"driver_id", cand.Driver.ID, "attempt", i+1)
			continue
		}
		return nil, err
	}

	log.Warn("claim attempts exhausted",
		"zone_id", resolved.ID, "attempts", result.Attempts)
	return result, nil
}

// Preview resolves serviceability, quote, and candidates without claiming
// a driver.
func (d *Dispatcher) Preview(ctx context.Context, trip fare.Trip) (*Result, error) {
	return d.Dispatch(ctx, Request{Trip: trip, Assign: false})
}
