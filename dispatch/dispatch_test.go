package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/gatiride/gati-platform/engine/dispatch"
	"github.com/gatiride/gati-platform/engine/driver"
	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/fare"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/testing/fixtures"
	"github.com/gatiride/gati-platform/engine/vehicle"
	"github.com/gatiride/gati-platform/engine/zone"
)

// flakyRepo wraps a Repository and fails the first N claims with
// AlreadyAssigned, simulating concurrent dispatches stealing candidates.
type flakyRepo struct {
	driver.Repository
	failClaims int
	claims     []string
}

func (f *flakyRepo) Claim(ctx context.Context, driverID, rideID string) error {
	f.claims = append(f.claims, driverID)
	if len(f.claims) <= f.failClaims {
		return errors.AlreadyAssigned(driverID)
	}
	return f.Repository.Claim(ctx, driverID, rideID)
}

func newDispatcher(t *testing.T, repo driver.Repository, cfg dispatch.Config) *dispatch.Dispatcher {
	t.Helper()

	zones := zone.NewIndex(nil)
	if err := zones.Create(fixtures.CityZone(), "test"); err != nil {
		t.Fatalf("Create zone: %v", err)
	}

	rules := fare.NewTable(nil)
	if err := rules.Upsert(fixtures.MeteredRule(), "test"); err != nil {
		t.Fatalf("Upsert rule: %v", err)
	}

	calc := fare.NewCalculator(fare.DefaultPolicy())
	logger := logging.NewLogger("error")
	return dispatch.NewDispatcher(zones, rules, calc, repo, cfg, logger, nil)
}

func cityTrip() fare.Trip {
	return fare.Trip{
		Pickup:       fixtures.HosurCenter,
		Dropoff:      fixtures.InsideHosur,
		BookingType:  fare.BookingRegular,
		VehicleClass: vehicle.ClassSedan,
		RequestedAt:  time.Now(),
		DistanceKm:   5,
		DurationMin:  12,
	}
}

func TestDispatcher_Assigns(t *testing.T) {
	ctx := context.Background()
	roster := driver.NewRoster(driver.DefaultRosterConfig(), nil)
	roster.Upsert(ctx, fixtures.OnlineDriver("d-near", 0.5))
	roster.Upsert(ctx, fixtures.OnlineDriver("d-far", 3))

	d := newDispatcher(t, roster, dispatch.Config{})

	res, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: cityTrip(), Assign: true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Outcome != dispatch.OutcomeAssigned {
		t.Fatalf("Outcome = %s, want assigned", res.Outcome)
	}
	if res.AssignedDriverID != "d-near" {
		t.Errorf("AssignedDriverID = %s, want the closest driver d-near", res.AssignedDriverID)
	}
	if res.ZoneID != "zone-hosur" {
		t.Errorf("ZoneID = %s, want zone-hosur", res.ZoneID)
	}
	if res.Quote == nil || res.Quote.Total != 168 {
		t.Errorf("Quote = %+v, want total 168", res.Quote)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}

	got, _ := roster.Get(ctx, "d-near")
	if got.Status != driver.StatusBusy {
		t.Errorf("claimed driver status = %s, want busy", got.Status)
	}
}

func TestDispatcher_RetriesLostClaims(t *testing.T) {
	ctx := context.Background()
	roster := driver.NewRoster(driver.DefaultRosterConfig(), nil)
	roster.Upsert(ctx, fixtures.OnlineDriver("d1", 0.5))
	roster.Upsert(ctx, fixtures.OnlineDriver("d2", 1))
	roster.Upsert(ctx, fixtures.OnlineDriver("d3", 1.5))

	repo := &flakyRepo{Repository: roster, failClaims: 2}
	d := newDispatcher(t, repo, dispatch.Config{})

	res, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: cityTrip(), Assign: true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Outcome != dispatch.OutcomeAssigned {
		t.Fatalf("Outcome = %s, want assigned", res.Outcome)
	}
	if res.AssignedDriverID != "d3" {
		t.Errorf("AssignedDriverID = %s, want d3 after two lost claims", res.AssignedDriverID)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
}

// vanishingRepo reports the named driver as gone at claim time,
// simulating deregistration between listing and claiming.
type vanishingRepo struct {
	driver.Repository
	vanished string
}

func (v *vanishingRepo) Claim(ctx context.Context, driverID, rideID string) error {
	if driverID == v.vanished {
		return errors.NotFound("driver " + driverID)
	}
	return v.Repository.Claim(ctx, driverID, rideID)
}

func TestDispatcher_WalksPastRemovedDriver(t *testing.T) {
	ctx := context.Background()
	roster := driver.NewRoster(driver.DefaultRosterConfig(), nil)
	roster.Upsert(ctx, fixtures.OnlineDriver("d1", 0.5))
	roster.Upsert(ctx, fixtures.OnlineDriver("d2", 1))

	repo := &vanishingRepo{Repository: roster, vanished: "d1"}
	d := newDispatcher(t, repo, dispatch.Config{})

	res, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: cityTrip(), Assign: true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Outcome != dispatch.OutcomeAssigned {
		t.Fatalf("Outcome = %s, want assigned", res.Outcome)
	}
	if res.AssignedDriverID != "d2" {
		t.Errorf("AssignedDriverID = %s, want d2 after d1 left the roster", res.AssignedDriverID)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
}

func TestDispatcher_ClaimAttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	roster := driver.NewRoster(driver.DefaultRosterConfig(), nil)
	roster.Upsert(ctx, fixtures.OnlineDriver("d1", 0.5))
	roster.Upsert(ctx, fixtures.OnlineDriver("d2", 1))
	roster.Upsert(ctx, fixtures.OnlineDriver("d3", 1.5))
	roster.Upsert(ctx, fixtures.OnlineDriver("d4", 2))

	// Every claim loses; the dispatcher stops at MaxClaimAttempts.
	repo := &flakyRepo{Repository: roster, failClaims: 100}
	d := newDispatcher(t, repo, dispatch.Config{MaxClaimAttempts: 2})

	res, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: cityTrip(), Assign: true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Outcome != dispatch.OutcomeNoDrivers {
		t.Errorf("Outcome = %s, want no_drivers_available", res.Outcome)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if len(repo.claims) != 2 {
		t.Errorf("claim calls = %d, want 2", len(repo.claims))
	}
}

func TestDispatcher_OutOfServiceArea(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t, driver.NewRoster(driver.DefaultRosterConfig(), nil), dispatch.Config{})

	trip := cityTrip()
	trip.Pickup = fixtures.OutsideHosur

	res, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: trip, Assign: true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Outcome != dispatch.OutcomeOutOfServiceArea {
		t.Errorf("Outcome = %s, want out_of_service_area", res.Outcome)
	}
	if res.Quote != nil {
		t.Error("no quote expected outside the service area")
	}
}

func TestDispatcher_NoDrivers(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t, driver.NewRoster(driver.DefaultRosterConfig(), nil), dispatch.Config{})

	res, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: cityTrip(), Assign: true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Outcome != dispatch.OutcomeNoDrivers {
		t.Errorf("Outcome = %s, want no_drivers_available", res.Outcome)
	}
	// Serviceability and pricing still resolve for an empty roster.
	if res.Quote == nil {
		t.Error("quote should be present even with no drivers")
	}
}

func TestDispatcher_NoFareRule(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t, driver.NewRoster(driver.DefaultRosterConfig(), nil), dispatch.Config{})

	trip := cityTrip()
	trip.BookingType = fare.BookingRental

	_, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: trip, Assign: true})
	if !errors.IsNoFareConfigured(err) {
		t.Errorf("err = %v, want no-fare-configured", err)
	}
}

func TestDispatcher_InvalidTrip(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t, driver.NewRoster(driver.DefaultRosterConfig(), nil), dispatch.Config{})

	trip := cityTrip()
	trip.DistanceKm = -1

	_, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: trip, Assign: true})
	if !errors.IsInvalidInput(err) {
		t.Errorf("err = %v, want invalid input", err)
	}
}

func TestDispatcher_Preview(t *testing.T) {
	ctx := context.Background()
	roster := driver.NewRoster(driver.DefaultRosterConfig(), nil)
	roster.Upsert(ctx, fixtures.OnlineDriver("d1", 0.5))

	d := newDispatcher(t, roster, dispatch.Config{})

	res, err := d.Preview(ctx, cityTrip())
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.AssignedDriverID != "" {
		t.Errorf("preview assigned %s, want no assignment", res.AssignedDriverID)
	}
	if len(res.Candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(res.Candidates))
	}

	// The driver is untouched by a preview.
	got, _ := roster.Get(ctx, "d1")
	if got.Status != driver.StatusOnline {
		t.Errorf("driver status = %s, want online", got.Status)
	}
}

func TestDispatcher_RadiusLimitsCandidates(t *testing.T) {
	ctx := context.Background()
	roster := driver.NewRoster(driver.DefaultRosterConfig(), nil)
	roster.Upsert(ctx, fixtures.OnlineDriver("d-far", 4))

	d := newDispatcher(t, roster, dispatch.Config{SearchRadiusKm: 2})

	res, err := d.Dispatch(ctx, dispatch.Request{RideID: "ride-1", Trip: cityTrip(), Assign: true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Outcome != dispatch.OutcomeNoDrivers {
		t.Errorf("Outcome = %s, want no drivers inside a 2km radius", res.Outcome)
	}
}
