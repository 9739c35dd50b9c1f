// Package fixtures provides test data for unit and integration tests.
package fixtures

import (
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/zone"
)

// HosurCenter is the reference pickup area used across tests.
var HosurCenter = geo.Point{Lat: 12.1266, Lng: 77.8308}

// InsideHosur is a point ~300m from HosurCenter, inside the 5km circle.
var InsideHosur = geo.Point{Lat: 12.1290, Lng: 77.8310}

// OutsideHosur is well outside every fixture zone.
var OutsideHosur = geo.Point{Lat: 13.0827, Lng: 80.2707}

// CityZone returns a 5km circular zone around HosurCenter.
func CityZone() *zone.Zone {
	shape, err := geo.NewCircle(HosurCenter, 5000)
	if err != nil {
		panic(err)
	}
	z, err := zone.NewZone("zone-hosur", "Hosur City", shape, true, zone.FareParams{
		SurgeMultiplier: 1.0,
	})
	if err != nil {
		panic(err)
	}
	return z
}

// SurgeZone returns a small zone nested inside CityZone with surge pricing.
// Its area is smaller, so overlap resolution prefers it.
func SurgeZone() *zone.Zone {
	shape, err := geo.NewCircle(HosurCenter, 1000)
	if err != nil {
		panic(err)
	}
	z, err := zone.NewZone("zone-hosur-core", "Hosur Bus Stand", shape, true, zone.FareParams{
		SurgeMultiplier: 1.5,
	})
	if err != nil {
		panic(err)
	}
	return z
}

// SquareZone returns a polygon zone: the unit square of degrees at the
// equator, handy for exact containment assertions.
func SquareZone() *zone.Zone {
	shape, err := geo.NewPolygon([]geo.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
	})
	if err != nil {
		panic(err)
	}
	z, err := zone.NewZone("zone-square", "Unit Square", shape, true, zone.FareParams{
		SurgeMultiplier: 1.0,
	})
	if err != nil {
		panic(err)
	}
	return z
}
