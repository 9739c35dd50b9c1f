// Package zone maintains the set of service zones and answers membership queries.
package zone

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/logging"
)

// LookupResult is the answer to a zone-membership query.
type LookupResult struct {
	Covered bool     `json:"covered"`
	ZoneIDs []string `json:"zone_ids"`
}

// snapshot is an immutable view of the zone set. Lookups run against one
// snapshot for their whole duration; admin updates build a new snapshot and
// swap the pointer, so readers never observe a partially-updated zone list.
type snapshot struct {
	zones []*Zone          // sorted by ID for deterministic iteration
	byID  map[string]*Zone
}

// Index answers zone-membership queries over an atomically swapped snapshot.
type Index struct {
	current atomic.Pointer[snapshot]

	// mu serializes admin mutations only; lookups never take it.
	mu    sync.Mutex
	audit *logging.AuditLogger
}

// NewIndex creates an empty zone index.
func NewIndex(audit *logging.AuditLogger) *Index {
	idx := &Index{audit: audit}
	idx.current.Store(&snapshot{byID: make(map[string]*Zone)})
	return idx
}

// Lookup returns every active zone whose shape contains the point. Zone IDs
// come back sorted, so repeated lookups against an unchanged snapshot return
// identical results.
func (idx *Index) Lookup(p geo.Point) LookupResult {
	snap := idx.current.Load()

	var ids []string
	for _, z := range snap.zones {
		if !z.Active {
			continue
		}
		// Bounding-box precheck keeps the exact test off most zones.
		if !z.Shape.Bounds().Contains(p) {
			continue
		}
		if z.Contains(p) {
			ids = append(ids, z.ID)
		}
	}

	return LookupResult{Covered: len(ids) > 0, ZoneIDs: ids}
}

// Resolve picks the single zone whose fare parameters apply to a point. When
// several active zones overlap, the smallest zone by area wins, with ties
// broken by lexicographically smallest zone ID. Smallest-area wins because
// the most specific zone (an airport inside a city ring) is the one an
// operator priced deliberately for that spot.
func (idx *Index) Resolve(p geo.Point) (*Zone, error) {
	snap := idx.current.Load()

	var chosen *Zone
	for _, z := range snap.zones {
		if !z.Active || !z.Shape.Bounds().Contains(p) || !z.Contains(p) {
			continue
		}
		if chosen == nil {
			chosen = z
			continue
		}
		za, ca := z.AreaKm2(), chosen.AreaKm2()
		if za < ca || (za == ca && z.ID < chosen.ID) {
			chosen = z
		}
	}

	if chosen == nil {
		return nil, errors.OutOfServiceArea("")
	}
	return chosen, nil
}

// Get returns a zone by ID from the current snapshot.
func (idx *Index) Get(id string) (*Zone, error) {
	snap := idx.current.Load()
	z, ok := snap.byID[id]
	if !ok {
		return nil, errors.NotFound("zone " + id)
	}
	return z, nil
}

// List returns all zones in the current snapshot, sorted by ID.
func (idx *Index) List() []*Zone {
	snap := idx.current.Load()
	out := make([]*Zone, len(snap.zones))
	copy(out, snap.zones)
	return out
}

// ActiveCount returns the number of active zones in the current snapshot.
func (idx *Index) ActiveCount() int {
	snap := idx.current.Load()
	n := 0
	for _, z := range snap.zones {
		if z.Active {
			n++
		}
	}
	return n
}

// Create adds a new zone. Fails with a conflict if the ID is taken and with
// an invalid geometry error if the shape does not validate.
func (idx *Index) Create(z *Zone, actorID string) error {
	if z == nil {
		return errors.Validation("zone must not be nil")
	}
	if err := z.Shape.Validate(); err != nil {
		idx.recordFailure(logging.AuditEventZoneCreated, z.ID, actorID, err)
		return err
	}
	if err := z.Fare.Validate(); err != nil {
		idx.recordFailure(logging.AuditEventZoneCreated, z.ID, actorID, err)
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	snap := idx.current.Load()
	if _, exists := snap.byID[z.ID]; exists {
		err := errors.Conflict("zone " + z.ID + " already exists")
		idx.recordFailure(logging.AuditEventZoneCreated, z.ID, actorID, err)
		return err
	}

	idx.swap(append(idx.cloneZones(snap), z))
	idx.record(logging.AuditEventZoneCreated, z.ID, actorID, map[string]string{
		"name":  z.Name,
		"shape": string(z.Shape.Kind()),
	})
	return nil
}

// Toggle sets a zone's active flag.
func (idx *Index) Toggle(id string, active bool, actorID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	snap := idx.current.Load()
	existing, ok := snap.byID[id]
	if !ok {
		err := errors.NotFound("zone " + id)
		idx.recordFailure(logging.AuditEventZoneToggled, id, actorID, err)
		return err
	}
	if existing.Active == active {
		return nil
	}

	zones := idx.cloneZones(snap)
	for i, z := range zones {
		if z.ID == id {
			updated := *z
			updated.Active = active
			zones[i] = &updated
			break
		}
	}

	idx.swap(zones)
	state := "inactive"
	if active {
		state = "active"
	}
	idx.record(logging.AuditEventZoneToggled, id, actorID, map[string]string{"state": state})
	return nil
}

// Delete removes a zone.
func (idx *Index) Delete(id, actorID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	snap := idx.current.Load()
	if _, ok := snap.byID[id]; !ok {
		err := errors.NotFound("zone " + id)
		idx.recordFailure(logging.AuditEventZoneDeleted, id, actorID, err)
		return err
	}

	zones := make([]*Zone, 0, len(snap.zones)-1)
	for _, z := range snap.zones {
		if z.ID != id {
			zones = append(zones, z)
		}
	}

	idx.swap(zones)
	idx.record(logging.AuditEventZoneDeleted, id, actorID, nil)
	return nil
}

// Replace swaps in a whole new zone set at once, validating every zone first.
// Used when configuration is reloaded from an external store.
func (idx *Index) Replace(zones []*Zone) error {
	for _, z := range zones {
		if err := z.Shape.Validate(); err != nil {
			return err
		}
		if err := z.Fare.Validate(); err != nil {
			return err
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.swap(append([]*Zone(nil), zones...))
	return nil
}

// swap builds and publishes a new snapshot. Caller holds mu.
func (idx *Index) swap(zones []*Zone) {
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })

	byID := make(map[string]*Zone, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
	}

	idx.current.Store(&snapshot{zones: zones, byID: byID})
}

func (idx *Index) cloneZones(snap *snapshot) []*Zone {
	return append([]*Zone(nil), snap.zones...)
}

func (idx *Index) record(event logging.AuditEventType, zoneID, actorID string, details map[string]string) {
	if idx.audit == nil {
		return
	}
	idx.audit.Record(logging.AuditEvent{
		Type:     event,
		ActorID:  actorID,
		Resource: "zone/" + zoneID,
		Details:  details,
	})
}

func (idx *Index) recordFailure(event logging.AuditEventType, zoneID, actorID string, err error) {
	if idx.audit == nil {
		return
	}
	idx.audit.RecordFailure(logging.AuditEvent{
		Type:     event,
		ActorID:  actorID,
		Resource: "zone/" + zoneID,
	}, err)
}
