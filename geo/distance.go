// Package geo provides geospatial primitives for the ride engine.
package geo

import (
	"math"
)

const (
	// EarthRadiusKm is the Earth's radius in kilometers.
	EarthRadiusKm = 6371.0
	// MetersPerKm converts kilometers to meters.
	MetersPerKm = 1000.0
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint creates a new Point.
func NewPoint(lat, lng float64) Point {
	return Point{Lat: lat, Lng: lng}
}

// IsValid checks if the point has valid, finite coordinates.
func (p Point) IsValid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HaversineDistance calculates the great-circle distance between two points
// using the Haversine formula. Returns distance in kilometers.
func HaversineDistance(p1, p2 Point) float64 {
	lat1 := degreesToRadians(p1.Lat)
	lat2 := degreesToRadians(p2.Lat)
	deltaLat := degreesToRadians(p2.Lat - p1.Lat)
	deltaLng := degreesToRadians(p2.Lng - p1.Lng)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// HaversineDistanceMeters returns distance in meters.
func HaversineDistanceMeters(p1, p2 Point) float64 {
	return HaversineDistance(p1, p2) * MetersPerKm
}

// BoundingBox is an axis-aligned lat/lng rectangle used for cheap pre-filtering
// before an exact containment or distance check.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// BoundingBoxFromPoint creates a bounding box around a point.
func BoundingBoxFromPoint(center Point, radiusKm float64) BoundingBox {
	// Approximate degrees per km at different latitudes
	latDelta := radiusKm / 111.0 // ~111 km per degree of latitude
	lngDelta := radiusKm / (111.0 * math.Cos(degreesToRadians(center.Lat)))

	return BoundingBox{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLng: center.Lng - lngDelta,
		MaxLng: center.Lng + lngDelta,
	}
}

// Contains checks if a point is within the bounding box.
func (bb BoundingBox) Contains(p Point) bool {
	return p.Lat >= bb.MinLat && p.Lat <= bb.MaxLat &&
		p.Lng >= bb.MinLng && p.Lng <= bb.MaxLng
}

// Center returns the center point of the bounding box.
func (bb BoundingBox) Center() Point {
	return Point{
		Lat: (bb.MinLat + bb.MaxLat) / 2,
		Lng: (bb.MinLng + bb.MaxLng) / 2,
	}
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
