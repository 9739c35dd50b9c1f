// Package geo provides geospatial primitives for the ride engine.
package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3Resolution defines the H3 resolution levels used by the engine.
// Resolution 7: ~5.16 km² average hexagon area (~1.22 km edge)
// Resolution 8: ~0.74 km² average hexagon area (~0.46 km edge)
// Resolution 9: ~0.11 km² average hexagon area (~0.17 km edge)
type H3Resolution int

const (
	// H3ResolutionCity is for city-level operations (resolution 7)
	H3ResolutionCity H3Resolution = 7
	// H3ResolutionNeighborhood is for neighborhood-level operations (resolution 8)
	H3ResolutionNeighborhood H3Resolution = 8
	// H3ResolutionBlock is for block-level operations (resolution 9)
	H3ResolutionBlock H3Resolution = 9
)

// H3Index wraps H3 cell operations at a fixed resolution.
type H3Index struct {
	resolution int
}

// NewH3Index creates a new H3 indexer with the specified resolution.
func NewH3Index(resolution H3Resolution) *H3Index {
	return &H3Index{resolution: int(resolution)}
}

// CellString returns the H3 cell string for a point.
func (h *H3Index) CellString(p Point) string {
	return h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lng}, h.resolution).String()
}

// NeighborStrings returns the cell strings within kRings of the point's cell.
// k=1 yields 7 cells (center + 6 neighbors), k=2 yields 19.
func (h *H3Index) NeighborStrings(p Point, kRings int) []string {
	cell := h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lng}, h.resolution)
	neighbors := h3.GridDisk(cell, kRings)

	result := make([]string, len(neighbors))
	for i, c := range neighbors {
		result[i] = c.String()
	}
	return result
}

// RingsForRadius returns the number of rings needed to cover a radius at this
// resolution, capped to keep candidate sets bounded.
func (h *H3Index) RingsForRadius(radiusKm float64) int {
	edgeLength := h.approximateEdgeLengthKm()
	kRings := int(radiusKm/edgeLength) + 1
	if kRings < 1 {
		kRings = 1
	}
	if kRings > 10 {
		kRings = 10
	}
	return kRings
}

func (h *H3Index) approximateEdgeLengthKm() float64 {
	switch h.resolution {
	case 7:
		return 1.22
	case 8:
		return 0.46
	case 9:
		return 0.17
	case 10:
		return 0.065
	default:
		return 1.0
	}
}

// CellIndex buckets member IDs by H3 cell for cheap nearby lookups. It is not
// safe for concurrent use; the owner serializes access.
type CellIndex struct {
	h3Index *H3Index
	cells   map[string][]string // cell -> member IDs
	members map[string]string   // member ID -> cell
}

// NewCellIndex creates a new cell index.
func NewCellIndex(resolution H3Resolution) *CellIndex {
	return &CellIndex{
		h3Index: NewH3Index(resolution),
		cells:   make(map[string][]string),
		members: make(map[string]string),
	}
}

// Update moves a member to the cell containing location.
func (idx *CellIndex) Update(memberID string, location Point) {
	newCell := idx.h3Index.CellString(location)

	if oldCell, exists := idx.members[memberID]; exists {
		if oldCell == newCell {
			return
		}
		idx.removeFromCell(memberID, oldCell)
	}

	idx.members[memberID] = newCell
	idx.cells[newCell] = append(idx.cells[newCell], memberID)
}

// Remove drops a member from the index.
func (idx *CellIndex) Remove(memberID string) {
	if cell, exists := idx.members[memberID]; exists {
		idx.removeFromCell(memberID, cell)
		delete(idx.members, memberID)
	}
}

func (idx *CellIndex) removeFromCell(memberID, cell string) {
	members := idx.cells[cell]
	for i, id := range members {
		if id == memberID {
			idx.cells[cell] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(idx.cells[cell]) == 0 {
		delete(idx.cells, cell)
	}
}

// Nearby returns member IDs whose cells lie within radiusKm of the center.
// Cell coverage over-approximates the radius; callers re-check with exact
// distances.
func (idx *CellIndex) Nearby(center Point, radiusKm float64) []string {
	kRings := idx.h3Index.RingsForRadius(radiusKm)
	cells := idx.h3Index.NeighborStrings(center, kRings)

	var members []string
	seen := make(map[string]bool)

	for _, cell := range cells {
		for _, memberID := range idx.cells[cell] {
			if !seen[memberID] {
				seen[memberID] = true
				members = append(members, memberID)
			}
		}
	}

	return members
}

// Len returns the number of indexed members.
func (idx *CellIndex) Len() int {
	return len(idx.members)
}
