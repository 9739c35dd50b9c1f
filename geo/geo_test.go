package geo

import (
	"math"
	"testing"
)

func TestPoint_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		valid bool
	}{
		{"hosur", Point{Lat: 12.1266, Lng: 77.8308}, true},
		{"origin", Point{}, true},
		{"north pole", Point{Lat: 90, Lng: 0}, true},
		{"date line", Point{Lat: 0, Lng: -180}, true},
		{"lat too high", Point{Lat: 90.01, Lng: 0}, false},
		{"lng too low", Point{Lat: 0, Lng: -180.01}, false},
		{"nan lat", Point{Lat: math.NaN(), Lng: 0}, false},
		{"inf lng", Point{Lat: 0, Lng: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestHaversineDistance(t *testing.T) {
	// Bangalore to Chennai, roughly 290km
	bangalore := Point{Lat: 12.9716, Lng: 77.5946}
	chennai := Point{Lat: 13.0827, Lng: 80.2707}

	d := HaversineDistance(bangalore, chennai)
	if d < 280 || d > 300 {
		t.Errorf("Bangalore-Chennai distance = %f km, want ~290", d)
	}

	// Zero distance to self
	if d := HaversineDistance(bangalore, bangalore); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}

	// Symmetry
	if HaversineDistance(bangalore, chennai) != HaversineDistance(chennai, bangalore) {
		t.Error("distance is not symmetric")
	}
}

func TestHaversineDistanceMeters(t *testing.T) {
	p1 := Point{Lat: 12.1266, Lng: 77.8308}
	p2 := Point{Lat: 12.1290, Lng: 77.8310}

	m := HaversineDistanceMeters(p1, p2)
	km := HaversineDistance(p1, p2)
	if math.Abs(m-km*1000) > 1e-6 {
		t.Errorf("meters (%f) and km (%f) disagree", m, km)
	}
	// ~270m between these two fixture points
	if m < 200 || m > 350 {
		t.Errorf("distance = %f m, want ~270", m)
	}
}

func TestCircle_Contains(t *testing.T) {
	center := Point{Lat: 12.1266, Lng: 77.8308}
	circle, err := NewCircle(center, 5000)
	if err != nil {
		t.Fatalf("NewCircle: %v", err)
	}

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"center", center, true},
		{"nearby", Point{Lat: 12.1290, Lng: 77.8310}, true},
		{"far away", Point{Lat: 13.0827, Lng: 80.2707}, false},
		{"just inside 5km north", Point{Lat: center.Lat + 4.9/111.0, Lng: center.Lng}, true},
		{"just outside 5km north", Point{Lat: center.Lat + 5.1/111.0, Lng: center.Lng}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := circle.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestCircle_Validate(t *testing.T) {
	center := Point{Lat: 12.1266, Lng: 77.8308}

	if _, err := NewCircle(center, 0); err == nil {
		t.Error("expected error for zero radius")
	}
	if _, err := NewCircle(center, -100); err == nil {
		t.Error("expected error for negative radius")
	}
	if _, err := NewCircle(center, math.NaN()); err == nil {
		t.Error("expected error for NaN radius")
	}
	if _, err := NewCircle(Point{Lat: 91, Lng: 0}, 1000); err == nil {
		t.Error("expected error for invalid center")
	}
}

func TestPolygon_Contains(t *testing.T) {
	// Unit square of degrees at the equator
	square, err := NewPolygon([]Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
	})
	if err != nil {
		t.Fatalf("NewPolygon: %v", err)
	}

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"center", Point{Lat: 0.5, Lng: 0.5}, true},
		{"outside", Point{Lat: 2, Lng: 2}, false},
		{"outside same lat", Point{Lat: 0.5, Lng: 1.5}, false},
		{"vertex", Point{Lat: 0, Lng: 0}, true},
		{"edge midpoint", Point{Lat: 0, Lng: 0.5}, true},
		{"just inside edge", Point{Lat: 0.0001, Lng: 0.5}, true},
		{"just outside edge", Point{Lat: -0.0001, Lng: 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := square.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestPolygon_Validate(t *testing.T) {
	if _, err := NewPolygon([]Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}); err == nil {
		t.Error("expected error for fewer than 3 vertices")
	}

	if _, err := NewPolygon([]Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: math.NaN()}}); err == nil {
		t.Error("expected error for invalid vertex")
	}

	// Bowtie: edges cross, not a simple polygon
	if _, err := NewPolygon([]Point{
		{Lat: 0, Lng: 0},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
		{Lat: 0, Lng: 1},
	}); err == nil {
		t.Error("expected error for self-intersecting polygon")
	}
}

func TestPolygon_AreaKm2(t *testing.T) {
	square, err := NewPolygon([]Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
	})
	if err != nil {
		t.Fatalf("NewPolygon: %v", err)
	}

	// One square degree at the equator is ~12,364 km²
	area := square.AreaKm2()
	expected := math.Pow(degreesToRadians(1)*EarthRadiusKm, 2)
	if math.Abs(area-expected)/expected > 0.01 {
		t.Errorf("area = %f km², want ~%f", area, expected)
	}
}

func TestPolygon_Centroid(t *testing.T) {
	square, _ := NewPolygon([]Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
	})

	c := square.Centroid()
	if c.Lat != 0.5 || c.Lng != 0.5 {
		t.Errorf("centroid = %v, want (0.5, 0.5)", c)
	}
}

func TestParseShape(t *testing.T) {
	t.Run("circle", func(t *testing.T) {
		s, err := ParseShape([]byte(`{"type":"circle","center":{"lat":12.1266,"lng":77.8308},"radius_m":5000}`))
		if err != nil {
			t.Fatalf("ParseShape: %v", err)
		}
		if s.Kind() != KindCircle {
			t.Errorf("kind = %q, want circle", s.Kind())
		}
		if !s.Contains(Point{Lat: 12.1290, Lng: 77.8310}) {
			t.Error("expected nearby point inside circle")
		}
	})

	t.Run("polygon", func(t *testing.T) {
		s, err := ParseShape([]byte(`{"type":"polygon","vertices":[{"lat":0,"lng":0},{"lat":0,"lng":1},{"lat":1,"lng":1},{"lat":1,"lng":0}]}`))
		if err != nil {
			t.Fatalf("ParseShape: %v", err)
		}
		if s.Kind() != KindPolygon {
			t.Errorf("kind = %q, want polygon", s.Kind())
		}
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		if _, err := ParseShape([]byte(`{"type":"hexagon"}`)); err == nil {
			t.Error("expected error for unknown shape type")
		}
	})

	t.Run("rejects invalid geometry", func(t *testing.T) {
		if _, err := ParseShape([]byte(`{"type":"circle","center":{"lat":12,"lng":77},"radius_m":-1}`)); err == nil {
			t.Error("expected error for negative radius")
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		if _, err := ParseShape([]byte(`{`)); err == nil {
			t.Error("expected error for malformed document")
		}
	})
}

func TestEncodeShape_RoundTrip(t *testing.T) {
	circle, _ := NewCircle(Point{Lat: 12.1266, Lng: 77.8308}, 5000)
	data, err := EncodeShape(circle)
	if err != nil {
		t.Fatalf("EncodeShape: %v", err)
	}

	decoded, err := ParseShape(data)
	if err != nil {
		t.Fatalf("ParseShape: %v", err)
	}
	got, ok := decoded.(*Circle)
	if !ok {
		t.Fatalf("decoded to %T, want *Circle", decoded)
	}
	if got.RadiusM != circle.RadiusM || got.Center != circle.Center {
		t.Errorf("round trip mismatch: %+v vs %+v", got, circle)
	}
}

func TestBoundingBox(t *testing.T) {
	center := Point{Lat: 12.1266, Lng: 77.8308}
	bb := BoundingBoxFromPoint(center, 5)

	if !bb.Contains(center) {
		t.Error("bounding box must contain its center")
	}
	if bb.Contains(Point{Lat: 13.5, Lng: 77.8308}) {
		t.Error("point 150km north must be outside")
	}

	c := bb.Center()
	if math.Abs(c.Lat-center.Lat) > 1e-9 || math.Abs(c.Lng-center.Lng) > 1e-9 {
		t.Errorf("center = %v, want %v", c, center)
	}
}
