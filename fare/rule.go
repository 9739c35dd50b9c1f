// Package fare computes trip fares from configured pricing rules.
package fare

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/vehicle"
)

// BookingType distinguishes the product a rider selected.
type BookingType string

const (
	BookingRegular        BookingType = "regular"
	BookingRental         BookingType = "rental"
	BookingOutstation     BookingType = "outstation"
	BookingOutstationSlab BookingType = "outstation_slab"
	BookingAirport        BookingType = "airport"
)

// IsValid checks if the booking type is valid.
func (b BookingType) IsValid() bool {
	switch b {
	case BookingRegular, BookingRental, BookingOutstation, BookingOutstationSlab, BookingAirport:
		return true
	}
	return false
}

// PricingModel selects how a rule prices a trip.
type PricingModel string

const (
	ModelMetered PricingModel = "metered"
	ModelHourly  PricingModel = "hourly"
	ModelSlab    PricingModel = "slab"
)

// IsValid checks if the pricing model is valid.
func (m PricingModel) IsValid() bool {
	switch m {
	case ModelMetered, ModelHourly, ModelSlab:
		return true
	}
	return false
}

// MeteredParams price a trip by distance and time.
type MeteredParams struct {
	BaseFare        float64 `json:"base_fare"`
	PerKmRate       float64 `json:"per_km_rate"`
	PerMinuteRate   float64 `json:"per_minute_rate"`
	MinimumFare     float64 `json:"minimum_fare"`
	CancellationFee float64 `json:"cancellation_fee"`
}

// HourlyParams price a rental by the hour.
type HourlyParams struct {
	HourlyRate float64 `json:"hourly_rate"`
}

// SlabBoundary maps a round-trip distance boundary to a fixed fare.
type SlabBoundary struct {
	DistanceKm float64 `json:"distance_km"`
	Fare       float64 `json:"fare"`
}

// SlabParams price an outstation package by distance slabs.
type SlabParams struct {
	// Boundaries must be sorted by strictly increasing distance.
	Boundaries            []SlabBoundary `json:"boundaries"`
	ExtraKmRate           float64        `json:"extra_km_rate"`
	DriverAllowancePerDay float64        `json:"driver_allowance_per_day"`
	NightChargePercent    float64        `json:"night_charge_percent"`
	TollIncluded          bool           `json:"toll_included"`
}

// Rule is the pricing configuration for one (booking type, vehicle class)
// pair. Exactly one of the parameter blocks matching Model must be set.
type Rule struct {
	BookingType  BookingType    `json:"booking_type"`
	VehicleClass vehicle.Class  `json:"vehicle_class"`
	Model        PricingModel   `json:"pricing_model"`
	Metered      *MeteredParams `json:"metered,omitempty"`
	Hourly       *HourlyParams  `json:"hourly,omitempty"`
	Slab         *SlabParams    `json:"slab,omitempty"`
}

// Validate checks the rule invariants: a known booking type and vehicle
// class, the parameter block matching the model, non-negative rates, and
// strictly increasing slab boundaries.
func (r *Rule) Validate() error {
	if !r.BookingType.IsValid() {
		return errors.Validation(fmt.Sprintf("unknown booking type %q", r.BookingType))
	}
	if !r.VehicleClass.IsValid() {
		return errors.Validation(fmt.Sprintf("unknown vehicle class %q", r.VehicleClass))
	}
	if !r.Model.IsValid() {
		return errors.Validation(fmt.Sprintf("unknown pricing model %q", r.Model))
	}

	switch r.Model {
	case ModelMetered:
		if r.Metered == nil {
			return errors.Validation("metered rule missing metered parameters")
		}
		return r.Metered.validate()
	case ModelHourly:
		if r.Hourly == nil {
			return errors.Validation("hourly rule missing hourly parameters")
		}
		return r.Hourly.validate()
	case ModelSlab:
		if r.Slab == nil {
			return errors.Validation("slab rule missing slab parameters")
		}
		return r.Slab.validate()
	}
	return nil
}

func (m *MeteredParams) validate() error {
	for name, v := range map[string]float64{
		"base_fare":        m.BaseFare,
		"per_km_rate":      m.PerKmRate,
		"per_minute_rate":  m.PerMinuteRate,
		"minimum_fare":     m.MinimumFare,
		"cancellation_fee": m.CancellationFee,
	} {
		if v < 0 {
			return errors.Validation(fmt.Sprintf("metered %s must be >= 0, got %v", name, v))
		}
	}
	return nil
}

func (h *HourlyParams) validate() error {
	if h.HourlyRate < 0 {
		return errors.Validation(fmt.Sprintf("hourly rate must be >= 0, got %v", h.HourlyRate))
	}
	return nil
}

func (s *SlabParams) validate() error {
	if len(s.Boundaries) == 0 {
		return errors.Validation("slab rule needs at least one boundary")
	}
	prev := 0.0
	for i, b := range s.Boundaries {
		if b.DistanceKm <= prev {
			return errors.Validation(fmt.Sprintf("slab boundaries must be strictly increasing, boundary %d is %v km", i, b.DistanceKm))
		}
		if b.Fare < 0 {
			return errors.Validation(fmt.Sprintf("slab fare must be >= 0, got %v", b.Fare))
		}
		prev = b.DistanceKm
	}
	if s.ExtraKmRate < 0 {
		return errors.Validation(fmt.Sprintf("extra-km rate must be >= 0, got %v", s.ExtraKmRate))
	}
	if s.DriverAllowancePerDay < 0 {
		return errors.Validation(fmt.Sprintf("driver allowance must be >= 0, got %v", s.DriverAllowancePerDay))
	}
	if s.NightChargePercent < 0 {
		return errors.Validation(fmt.Sprintf("night charge percent must be >= 0, got %v", s.NightChargePercent))
	}
	return nil
}

// ruleKey identifies a rule in the table.
type ruleKey struct {
	booking BookingType
	class   vehicle.Class
}

// Table holds the configured fare rules. Reads run against an immutable
// snapshot swapped atomically on admin update.
type Table struct {
	current atomic.Pointer[map[ruleKey]*Rule]

	mu    sync.Mutex
	audit *logging.AuditLogger
}

// NewTable creates an empty rule table.
func NewTable(audit *logging.AuditLogger) *Table {
	t := &Table{audit: audit}
	empty := make(map[ruleKey]*Rule)
	t.current.Store(&empty)
	return t
}

// RuleFor returns the rule for a booking/vehicle pair, or NoFareConfigured.
// Missing configuration is surfaced, never papered over with defaults.
func (t *Table) RuleFor(booking BookingType, class vehicle.Class) (*Rule, error) {
	rules := *t.current.Load()
	r, ok := rules[ruleKey{booking, class}]
	if !ok {
		return nil, errors.NoFareConfigured(string(booking), string(class))
	}
	return r, nil
}

// Upsert validates and installs a rule, replacing any existing rule for the
// same booking/vehicle pair.
func (t *Table) Upsert(r *Rule, actorID string) error {
	if r == nil {
		return errors.Validation("rule must not be nil")
	}
	if err := r.Validate(); err != nil {
		if t.audit != nil {
			t.audit.RecordFailure(logging.AuditEvent{
				Type:     logging.AuditEventFareRuleUpserted,
				ActorID:  actorID,
				Resource: ruleResource(r.BookingType, r.VehicleClass),
			}, err)
		}
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.cloneRules()
	next[ruleKey{r.BookingType, r.VehicleClass}] = r
	t.current.Store(&next)

	if t.audit != nil {
		t.audit.Record(logging.AuditEvent{
			Type:     logging.AuditEventFareRuleUpserted,
			ActorID:  actorID,
			Resource: ruleResource(r.BookingType, r.VehicleClass),
			Details:  map[string]string{"model": string(r.Model)},
		})
	}
	return nil
}

// Delete removes the rule for a booking/vehicle pair.
func (t *Table) Delete(booking BookingType, class vehicle.Class, actorID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := ruleKey{booking, class}
	rules := *t.current.Load()
	if _, ok := rules[key]; !ok {
		return errors.NotFound("fare rule " + ruleResource(booking, class))
	}

	next := t.cloneRules()
	delete(next, key)
	t.current.Store(&next)

	if t.audit != nil {
		t.audit.Record(logging.AuditEvent{
			Type:     logging.AuditEventFareRuleDeleted,
			ActorID:  actorID,
			Resource: ruleResource(booking, class),
		})
	}
	return nil
}

// List returns every configured rule.
func (t *Table) List() []*Rule {
	rules := *t.current.Load()
	out := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, r)
	}
	return out
}

// Len returns the number of configured rules.
func (t *Table) Len() int {
	return len(*t.current.Load())
}

// cloneRules copies the current rule map. Caller holds mu.
func (t *Table) cloneRules() map[ruleKey]*Rule {
	rules := *t.current.Load()
	next := make(map[ruleKey]*Rule, len(rules)+1)
	for k, v := range rules {
		next[k] = v
	}
	return next
}

func ruleResource(booking BookingType, class vehicle.Class) string {
	return "fare-rule/" + string(booking) + "/" + string(class)
}
