package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gatiride/gati-platform/engine/dispatch"
	"github.com/gatiride/gati-platform/engine/driver"
	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/fare"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/health"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/stream"
	"github.com/gatiride/gati-platform/engine/validation"
	"github.com/gatiride/gati-platform/engine/vehicle"
	"github.com/gatiride/gati-platform/engine/zone"
)

// API bundles the engine components behind the HTTP handlers.
type API struct {
	zones      *zone.Index
	rules      *fare.Table
	calc       *fare.Calculator
	cache      *fare.QuoteCache // optional
	dispatcher *dispatch.Dispatcher
	drivers    driver.Repository
	writer     driver.StateWriter
	applier    *stream.Applier
	checker    *health.Checker
	logger     *logging.Logger
	now        func() time.Time
}

// NewAPI creates the handler set. cache may be nil to disable quote caching.
func NewAPI(zones *zone.Index, rules *fare.Table, calc *fare.Calculator, cache *fare.QuoteCache, dispatcher *dispatch.Dispatcher, drivers driver.Repository, writer driver.StateWriter, applier *stream.Applier, checker *health.Checker, logger *logging.Logger) *API {
	return &API{
		zones:      zones,
		rules:      rules,
		calc:       calc,
		cache:      cache,
		dispatcher: dispatcher,
		drivers:    drivers,
		writer:     writer,
		applier:    applier,
		checker:    checker,
		logger:     logger.WithComponent("httpapi"),
		now:        time.Now,
	}
}

// decode unmarshals and validates a JSON request body.
func decode(r *http.Request, out interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.InvalidInput("malformed JSON body").WithDetails(map[string]string{
			"error": err.Error(),
		})
	}
	if err := validation.GetValidator().Struct(out); err != nil {
		return errors.Validation("request validation failed").WithDetails(validation.ValidationErrors(err))
	}
	return nil
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.HTTPStatus(err) >= http.StatusInternalServerError {
		a.logger.WithError(err).Error("request failed", "path", r.URL.Path)
	}
	errors.WriteError(w, err, RequestIDFromContext(r.Context()))
}

// pointPayload is a coordinate pair on the wire.
type pointPayload struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

func (p pointPayload) toPoint() geo.Point {
	return geo.Point{Lat: p.Lat, Lng: p.Lng}
}

// tripPayload is the trip portion shared by quote and dispatch requests.
type tripPayload struct {
	Pickup       pointPayload `json:"pickup" validate:"required"`
	Dropoff      pointPayload `json:"dropoff"`
	BookingType  string       `json:"booking_type" validate:"required,booking_type"`
	VehicleClass string       `json:"vehicle_class" validate:"required,vehicle_class"`
	ScheduledAt  *time.Time   `json:"scheduled_at,omitempty"`
	RentalHours  int          `json:"rental_hours" validate:"gte=0"`
	Days         int          `json:"days" validate:"gte=0"`
	DistanceKm   float64      `json:"distance_km" validate:"gte=0"`
	DurationMin  float64      `json:"duration_min" validate:"gte=0"`
	TollEstimate float64      `json:"toll_estimate" validate:"gte=0"`
}

func (p tripPayload) toTrip(now time.Time) fare.Trip {
	return fare.Trip{
		Pickup:       p.Pickup.toPoint(),
		Dropoff:      p.Dropoff.toPoint(),
		BookingType:  fare.BookingType(p.BookingType),
		VehicleClass: vehicle.Class(p.VehicleClass),
		RequestedAt:  now,
		ScheduledAt:  p.ScheduledAt,
		RentalHours:  p.RentalHours,
		Days:         p.Days,
		DistanceKm:   p.DistanceKm,
		DurationMin:  p.DurationMin,
		TollEstimate: p.TollEstimate,
	}
}

// quoteResponse pairs a fare breakdown with the zone that priced it.
type quoteResponse struct {
	ZoneID string         `json:"zone_id"`
	Quote  fare.Breakdown `json:"quote"`
	Cached bool           `json:"cached"`
}

// handleQuote prices a trip without touching driver state.
// POST /v1/quotes
func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req tripPayload
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	trip := req.toTrip(a.now())

	z, err := a.zones.Resolve(trip.Pickup)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	rule, err := a.rules.RuleFor(trip.BookingType, trip.VehicleClass)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if a.cache != nil {
		key := a.cache.Key(trip, z.Fare)
		if cached, err := a.cache.Get(r.Context(), key); err == nil && cached != nil {
			OK(w, quoteResponse{ZoneID: z.ID, Quote: *cached, Cached: true})
			return
		}
	}

	quote, err := a.calc.Quote(trip, rule, z.Fare)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if a.cache != nil {
		key := a.cache.Key(trip, z.Fare)
		if err := a.cache.Set(r.Context(), key, quote); err != nil {
			a.logger.WithError(err).Warn("quote cache write failed")
		}
	}

	OK(w, quoteResponse{ZoneID: z.ID, Quote: quote})
}

// cancellationRequest identifies the rule whose cancellation fee applies.
type cancellationRequest struct {
	BookingType  string `json:"booking_type" validate:"required,booking_type"`
	VehicleClass string `json:"vehicle_class" validate:"required,vehicle_class"`
}

// handleCancellationQuote prices cancelling a booked ride.
// POST /v1/quotes/cancellation
func (a *API) handleCancellationQuote(w http.ResponseWriter, r *http.Request) {
	var req cancellationRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	rule, err := a.rules.RuleFor(fare.BookingType(req.BookingType), vehicle.Class(req.VehicleClass))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	quote, err := a.calc.QuoteCancellation(rule)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	OK(w, quote)
}

// dispatchRequest asks for a driver to be assigned to a ride.
type dispatchRequest struct {
	RideID string      `json:"ride_id" validate:"required"`
	Trip   tripPayload `json:"trip" validate:"required"`
}

// handleDispatch runs the full matching pipeline and claims a driver.
// POST /v1/dispatch
func (a *API) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.dispatcher.Dispatch(r.Context(), dispatch.Request{
		RideID: req.RideID,
		Trip:   req.Trip.toTrip(a.now()),
		Assign: true,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	switch result.Outcome {
	case dispatch.OutcomeOutOfServiceArea:
		a.writeError(w, r, errors.OutOfServiceArea("pickup point is not in a serviceable zone"))
	case dispatch.OutcomeNoDrivers:
		a.writeError(w, r, errors.NoDriversAvailable("no driver could be assigned"))
	default:
		OK(w, result)
	}
}

// handlePreviewDispatch resolves candidates without claiming a driver.
// POST /v1/dispatch/preview
func (a *API) handlePreviewDispatch(w http.ResponseWriter, r *http.Request) {
	var req tripPayload
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.dispatcher.Preview(r.Context(), req.toTrip(a.now()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	OK(w, result)
}

// handleServiceability reports zone coverage for a point.
// GET /v1/serviceability?lat=..&lng=..
func (a *API) handleServiceability(w http.ResponseWriter, r *http.Request) {
	p, err := parsePointQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	OK(w, a.zones.Lookup(p))
}

// handleDriverEvent ingests one driver-state event over HTTP. The Event
// Hubs stream is the primary path; this webhook serves tooling and tests.
// POST /v1/driver-events
func (a *API) handleDriverEvent(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.applier.ApplyRaw(r.Context(), body); err != nil {
		a.writeError(w, r, err)
		return
	}
	Accepted(w, nil)
}

// handleGetDriver returns a driver's current state.
// GET /v1/drivers/{id}
func (a *API) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	d, err := a.drivers.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	OK(w, d)
}
