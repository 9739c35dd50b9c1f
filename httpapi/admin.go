package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gatiride/gati-platform/engine/driver"
	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/fare"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/vehicle"
	"github.com/gatiride/gati-platform/engine/zone"
)

// actorID identifies the admin performing a mutation, for the audit trail.
func actorID(r *http.Request) string {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		return id
	}
	return "unknown"
}

// zonePayload is the wire form of a zone. Shape is the discriminated
// geometry document.
type zonePayload struct {
	ID     string          `json:"id" validate:"required"`
	Name   string          `json:"name" validate:"required"`
	Shape  json.RawMessage `json:"shape" validate:"required"`
	Active bool            `json:"active"`
	Fare   zone.FareParams `json:"fare"`
}

// zoneView is the response form of a zone, with the geometry re-encoded.
type zoneView struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Shape   json.RawMessage `json:"shape"`
	Active  bool            `json:"active"`
	Fare    zone.FareParams `json:"fare"`
	AreaKm2 float64         `json:"area_km2"`
}

func newZoneView(z *zone.Zone) (zoneView, error) {
	shape, err := geo.EncodeShape(z.Shape)
	if err != nil {
		return zoneView{}, err
	}
	return zoneView{
		ID:      z.ID,
		Name:    z.Name,
		Shape:   shape,
		Active:  z.Active,
		Fare:    z.Fare,
		AreaKm2: z.AreaKm2(),
	}, nil
}

// handleListZones returns all zones.
// GET /v1/zones
func (a *API) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones := a.zones.List()
	views := make([]zoneView, 0, len(zones))
	for _, z := range zones {
		v, err := newZoneView(z)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		views = append(views, v)
	}
	OK(w, views)
}

// handleGetZone returns one zone.
// GET /v1/zones/{id}
func (a *API) handleGetZone(w http.ResponseWriter, r *http.Request) {
	z, err := a.zones.Get(pathParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	v, err := newZoneView(z)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	OK(w, v)
}

// handleCreateZone creates a zone. Geometry is validated here, once; a
// zone that decodes is a zone the hot path can trust.
// POST /v1/zones
func (a *API) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req zonePayload
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	shape, err := geo.ParseShape(req.Shape)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	z, err := zone.NewZone(req.ID, req.Name, shape, req.Active, req.Fare)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.zones.Create(z, actorID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}

	v, err := newZoneView(z)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	Created(w, v)
}

// toggleZoneRequest flips a zone's active flag.
type toggleZoneRequest struct {
	Active bool `json:"active"`
}

// handleToggleZone activates or deactivates a zone.
// PATCH /v1/zones/{id}/active
func (a *API) handleToggleZone(w http.ResponseWriter, r *http.Request) {
	var req toggleZoneRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.zones.Toggle(pathParam(r, "id"), req.Active, actorID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	NoContent(w)
}

// handleDeleteZone removes a zone.
// DELETE /v1/zones/{id}
func (a *API) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := a.zones.Delete(pathParam(r, "id"), actorID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	NoContent(w)
}

// handleListFareRules returns every configured fare rule.
// GET /v1/fares
func (a *API) handleListFareRules(w http.ResponseWriter, r *http.Request) {
	OK(w, a.rules.List())
}

// handleUpsertFareRule installs or replaces a fare rule.
// PUT /v1/fares
func (a *API) handleUpsertFareRule(w http.ResponseWriter, r *http.Request) {
	var rule fare.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		a.writeError(w, r, errors.InvalidInput("malformed JSON body").WithDetails(map[string]string{
			"error": err.Error(),
		}))
		return
	}

	// Rule.Validate covers the cross-field invariants struct tags cannot.
	if err := a.rules.Upsert(&rule, actorID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	OK(w, &rule)
}

// handleDeleteFareRule removes a fare rule.
// DELETE /v1/fares/{booking_type}/{vehicle_class}
func (a *API) handleDeleteFareRule(w http.ResponseWriter, r *http.Request) {
	booking := fare.BookingType(pathParam(r, "booking_type"))
	class := vehicle.Class(pathParam(r, "vehicle_class"))

	if err := a.rules.Delete(booking, class, actorID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	NoContent(w)
}

// suspendDriverRequest carries the admin suspension flag.
type suspendDriverRequest struct {
	Suspended bool `json:"suspended"`
}

// handleSuspendDriver suspends or reinstates a driver. Suspension is the
// one transition only admins may make.
// PATCH /v1/drivers/{id}/suspension
func (a *API) handleSuspendDriver(w http.ResponseWriter, r *http.Request) {
	var req suspendDriverRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	next := driver.StatusSuspended
	if !req.Suspended {
		next = driver.StatusOffline
	}
	if err := a.writer.SetStatus(r.Context(), pathParam(r, "id"), next, true); err != nil {
		a.writeError(w, r, err)
		return
	}
	NoContent(w)
}
