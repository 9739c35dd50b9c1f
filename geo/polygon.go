// Package geo provides geospatial primitives for the ride engine.
package geo

import (
	"fmt"
	"math"

	"github.com/gatiride/gati-platform/engine/errors"
)

// Polygon is a closed ring of vertices. Vertices are treated as planar
// coordinates for containment; an acceptable approximation for zones that
// span at most a few tens of kilometers.
type Polygon struct {
	Vertices []Point `json:"vertices"`
}

// NewPolygon creates a validated Polygon.
func NewPolygon(vertices []Point) (*Polygon, error) {
	p := &Polygon{Vertices: vertices}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Kind returns KindPolygon.
func (p *Polygon) Kind() ShapeKind { return KindPolygon }

// Contains reports whether the point is inside the polygon using a ray
// casting test. The region is closed: a point on an edge or vertex counts
// as contained so requests do not flap at zone borders.
func (p *Polygon) Contains(point Point) bool {
	n := len(p.Vertices)
	if n < 3 {
		return false
	}

	// Boundary first: ray casting is unreliable exactly on edges.
	j := n - 1
	for i := 0; i < n; i++ {
		if onSegment(p.Vertices[j], p.Vertices[i], point) {
			return true
		}
		j = i
	}

	inside := false
	j = n - 1
	for i := 0; i < n; i++ {
		pi := p.Vertices[i]
		pj := p.Vertices[j]

		if ((pi.Lat > point.Lat) != (pj.Lat > point.Lat)) &&
			(point.Lng < (pj.Lng-pi.Lng)*(point.Lat-pi.Lat)/(pj.Lat-pi.Lat)+pi.Lng) {
			inside = !inside
		}
		j = i
	}

	return inside
}

// AreaKm2 returns the approximate polygon area in square kilometers using
// the shoelace formula over radian coordinates.
func (p *Polygon) AreaKm2() float64 {
	n := len(p.Vertices)
	if n < 3 {
		return 0
	}

	var area float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		xi := degreesToRadians(p.Vertices[i].Lng)
		yi := degreesToRadians(p.Vertices[i].Lat)
		xj := degreesToRadians(p.Vertices[j].Lng)
		yj := degreesToRadians(p.Vertices[j].Lat)

		area += xi*yj - xj*yi
	}

	area = math.Abs(area) / 2.0
	return area * EarthRadiusKm * EarthRadiusKm
}

// Bounds returns the polygon's bounding box.
func (p *Polygon) Bounds() BoundingBox {
	if len(p.Vertices) == 0 {
		return BoundingBox{}
	}

	bb := BoundingBox{
		MinLat: p.Vertices[0].Lat, MaxLat: p.Vertices[0].Lat,
		MinLng: p.Vertices[0].Lng, MaxLng: p.Vertices[0].Lng,
	}
	for _, pt := range p.Vertices[1:] {
		bb.MinLat = math.Min(bb.MinLat, pt.Lat)
		bb.MaxLat = math.Max(bb.MaxLat, pt.Lat)
		bb.MinLng = math.Min(bb.MinLng, pt.Lng)
		bb.MaxLng = math.Max(bb.MaxLng, pt.Lng)
	}
	return bb
}

// Centroid returns the vertex centroid of the polygon.
func (p *Polygon) Centroid() Point {
	if len(p.Vertices) == 0 {
		return Point{}
	}

	var sumLat, sumLng float64
	for _, pt := range p.Vertices {
		sumLat += pt.Lat
		sumLng += pt.Lng
	}

	n := float64(len(p.Vertices))
	return Point{Lat: sumLat / n, Lng: sumLng / n}
}

// Validate checks the polygon invariants: at least three vertices, every
// vertex a valid coordinate, and no self-intersecting edges.
func (p *Polygon) Validate() error {
	if len(p.Vertices) < 3 {
		return errors.InvalidGeometry(fmt.Sprintf("polygon needs at least 3 vertices, got %d", len(p.Vertices)))
	}

	for i, pt := range p.Vertices {
		if !pt.IsValid() {
			return errors.InvalidGeometry(fmt.Sprintf("polygon vertex %d is not a valid coordinate", i))
		}
	}

	if p.selfIntersects() {
		return errors.InvalidGeometry("polygon edges self-intersect")
	}

	return nil
}

// selfIntersects reports whether any two non-adjacent edges cross. O(n²) over
// the edge set; zone rings are small enough that this runs at creation time
// without an index.
func (p *Polygon) selfIntersects() bool {
	n := len(p.Vertices)
	for i := 0; i < n; i++ {
		a1 := p.Vertices[i]
		a2 := p.Vertices[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges; they share an endpoint by definition.
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1 := p.Vertices[j]
			b2 := p.Vertices[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports whether segments a1-a2 and b1-b2 properly intersect.
func segmentsCross(a1, a2, b1, b2 Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)

	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// cross returns the 2D cross product of (b-a) and (c-a).
func cross(a, b, c Point) float64 {
	return (b.Lng-a.Lng)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lng-a.Lng)
}

// onSegment reports whether point c lies on the segment a-b, within a small
// epsilon to absorb float error.
func onSegment(a, b, c Point) bool {
	const eps = 1e-12
	if math.Abs(cross(a, b, c)) > eps {
		return false
	}
	return c.Lat >= math.Min(a.Lat, b.Lat)-eps && c.Lat <= math.Max(a.Lat, b.Lat)+eps &&
		c.Lng >= math.Min(a.Lng, b.Lng)-eps && c.Lng <= math.Max(a.Lng, b.Lng)+eps
}
