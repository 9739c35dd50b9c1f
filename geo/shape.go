// Package geo provides geospatial primitives for the ride engine.
package geo

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/gatiride/gati-platform/engine/errors"
)

// ShapeKind discriminates the shape variants.
type ShapeKind string

const (
	// KindCircle is a center-plus-radius shape.
	KindCircle ShapeKind = "circle"
	// KindPolygon is a closed ring of vertices.
	KindPolygon ShapeKind = "polygon"
)

// Shape is a validated service-area geometry. A Shape is constructed once,
// validated at construction, and treated as immutable afterwards; Contains
// assumes valid input.
type Shape interface {
	// Kind returns the shape variant.
	Kind() ShapeKind
	// Contains reports whether the point falls inside the shape. The region
	// is closed: boundary points are contained.
	Contains(p Point) bool
	// AreaKm2 returns the approximate shape area in square kilometers.
	AreaKm2() float64
	// Bounds returns the shape's bounding box.
	Bounds() BoundingBox
	// Validate checks the shape's geometric invariants.
	Validate() error
}

// Circle is a center point with a radius in meters.
type Circle struct {
	Center  Point   `json:"center"`
	RadiusM float64 `json:"radius_m"`
}

// NewCircle creates a validated Circle.
func NewCircle(center Point, radiusM float64) (*Circle, error) {
	c := &Circle{Center: center, RadiusM: radiusM}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Kind returns KindCircle.
func (c *Circle) Kind() ShapeKind { return KindCircle }

// Contains reports whether p is within RadiusM meters of the center along the
// great circle. Haversine avoids the latitude-dependent distortion a planar
// check would have at city scale.
func (c *Circle) Contains(p Point) bool {
	return HaversineDistanceMeters(c.Center, p) <= c.RadiusM
}

// AreaKm2 returns the circle's area in square kilometers.
func (c *Circle) AreaKm2() float64 {
	radiusKm := c.RadiusM / MetersPerKm
	return math.Pi * radiusKm * radiusKm
}

// Bounds returns the circle's bounding box.
func (c *Circle) Bounds() BoundingBox {
	return BoundingBoxFromPoint(c.Center, c.RadiusM/MetersPerKm)
}

// Validate checks that the center is a valid coordinate and the radius is a
// positive, finite number of meters.
func (c *Circle) Validate() error {
	if !c.Center.IsValid() {
		return errors.InvalidGeometry("circle center is not a valid coordinate")
	}
	if math.IsNaN(c.RadiusM) || math.IsInf(c.RadiusM, 0) || c.RadiusM <= 0 {
		return errors.InvalidGeometry(fmt.Sprintf("circle radius must be > 0, got %v", c.RadiusM))
	}
	return nil
}

// shapeEnvelope is the wire form of a Shape with a type discriminator.
type shapeEnvelope struct {
	Type     ShapeKind       `json:"type"`
	Center   *Point          `json:"center,omitempty"`
	RadiusM  float64         `json:"radius_m,omitempty"`
	Vertices json.RawMessage `json:"vertices,omitempty"`
}

// ParseShape decodes a discriminated shape document and validates it. Raw
// blobs with a type tag are resolved into a concrete variant exactly once,
// here, rather than being re-interpreted at every read.
func ParseShape(data []byte) (Shape, error) {
	var env shapeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.InvalidGeometry(fmt.Sprintf("malformed shape document: %v", err))
	}

	switch env.Type {
	case KindCircle:
		if env.Center == nil {
			return nil, errors.InvalidGeometry("circle shape missing center")
		}
		return NewCircle(*env.Center, env.RadiusM)
	case KindPolygon:
		var vertices []Point
		if len(env.Vertices) > 0 {
			if err := json.Unmarshal(env.Vertices, &vertices); err != nil {
				return nil, errors.InvalidGeometry(fmt.Sprintf("malformed polygon vertices: %v", err))
			}
		}
		return NewPolygon(vertices)
	default:
		return nil, errors.InvalidGeometry(fmt.Sprintf("unknown shape type %q", env.Type))
	}
}

// EncodeShape serializes a Shape into its discriminated wire form.
func EncodeShape(s Shape) ([]byte, error) {
	switch v := s.(type) {
	case *Circle:
		return json.Marshal(shapeEnvelope{Type: KindCircle, Center: &v.Center, RadiusM: v.RadiusM})
	case *Polygon:
		vertices, err := json.Marshal(v.Vertices)
		if err != nil {
			return nil, err
		}
		return json.Marshal(shapeEnvelope{Type: KindPolygon, Vertices: vertices})
	default:
		return nil, fmt.Errorf("unsupported shape type %T", s)
	}
}
