// Package zone maintains the set of service zones and answers membership queries.
package zone

import (
	"fmt"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/geo"
)

// FareParams are the zone-level pricing parameters applied on top of the
// fare rule when a trip originates in the zone.
type FareParams struct {
	BaseFare        float64 `json:"base_fare"`
	PerKmRate       float64 `json:"per_km_rate"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
}

// Validate checks the fare parameter invariants.
func (f FareParams) Validate() error {
	if f.BaseFare < 0 {
		return errors.Validation(fmt.Sprintf("base fare must be >= 0, got %v", f.BaseFare))
	}
	if f.PerKmRate < 0 {
		return errors.Validation(fmt.Sprintf("per-km rate must be >= 0, got %v", f.PerKmRate))
	}
	if f.SurgeMultiplier <= 0 {
		return errors.Validation(fmt.Sprintf("surge multiplier must be > 0, got %v", f.SurgeMultiplier))
	}
	return nil
}

// Zone is a service area with its own fare parameters. Zones are created and
// edited by an admin collaborator and read-only to the engine.
type Zone struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Shape  geo.Shape  `json:"-"`
	Active bool       `json:"active"`
	Fare   FareParams `json:"fare"`
}

// NewZone creates a validated zone. Geometry is validated here, at creation
// time; containment checks assume valid shapes afterwards.
func NewZone(id, name string, shape geo.Shape, active bool, fare FareParams) (*Zone, error) {
	if id == "" {
		return nil, errors.Validation("zone id must not be empty")
	}
	if name == "" {
		return nil, errors.Validation("zone name must not be empty")
	}
	if shape == nil {
		return nil, errors.InvalidGeometry("zone shape must not be nil")
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if err := fare.Validate(); err != nil {
		return nil, err
	}

	return &Zone{
		ID:     id,
		Name:   name,
		Shape:  shape,
		Active: active,
		Fare:   fare,
	}, nil
}

// Contains reports whether the zone's shape contains the point.
func (z *Zone) Contains(p geo.Point) bool {
	return z.Shape.Contains(p)
}

// AreaKm2 returns the zone's approximate area in square kilometers.
func (z *Zone) AreaKm2() float64 {
	return z.Shape.AreaKm2()
}
