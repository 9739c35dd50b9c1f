// Package fare computes trip fares from configured pricing rules.
package fare

import (
	"fmt"
	"math"
	"time"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/vehicle"
	"github.com/gatiride/gati-platform/engine/zone"
)

// Trip describes the priced portion of a trip request. Distance, duration
// and toll estimates are supplied by the routing collaborator; the engine
// only computes with them.
type Trip struct {
	Pickup       geo.Point     `json:"pickup"`
	Dropoff      geo.Point     `json:"dropoff"`
	BookingType  BookingType   `json:"booking_type"`
	VehicleClass vehicle.Class `json:"vehicle_class"`
	RequestedAt  time.Time     `json:"requested_at"`
	ScheduledAt  *time.Time    `json:"scheduled_at,omitempty"`
	RentalHours  int           `json:"rental_hours,omitempty"`
	Days         int           `json:"days,omitempty"`

	DistanceKm   float64 `json:"distance_km"`
	DurationMin  float64 `json:"duration_min"`
	TollEstimate float64 `json:"toll_estimate,omitempty"`
}

// StartTime returns the time fare policies evaluate against: the scheduled
// time for future-dated bookings, otherwise the request time.
func (t Trip) StartTime() time.Time {
	if t.ScheduledAt != nil {
		return *t.ScheduledAt
	}
	return t.RequestedAt
}

// Breakdown is a computed fare, immutable once produced. Component amounts
// are in whole currency units at output; nothing rounds mid-calculation.
type Breakdown struct {
	BaseFare       float64 `json:"base_fare"`
	DistanceFare   float64 `json:"distance_fare"`
	TimeFare       float64 `json:"time_fare"`
	Allowance      float64 `json:"allowance"`
	NightSurcharge float64 `json:"night_surcharge"`
	SurgeApplied   float64 `json:"surge_applied"`
	PlatformFee    float64 `json:"platform_fee"`
	Tolls          float64 `json:"tolls"`
	Total          float64 `json:"total"`
	Currency       string  `json:"currency"`
}

// Policy holds operator-wide fare policy that is not part of any single rule.
type Policy struct {
	MinRentalHours   int
	NightWindowStart int // hour of day, inclusive
	NightWindowEnd   int // hour of day, exclusive
	PlatformFeeFlat  float64
	PlatformFeePct   float64 // percent of subtotal; used when > 0
	Currency         string
}

// DefaultPolicy returns the stock policy: 4-hour rental minimum, 22:00-06:00
// night window, no platform fee.
func DefaultPolicy() Policy {
	return Policy{
		MinRentalHours:   4,
		NightWindowStart: 22,
		NightWindowEnd:   6,
		Currency:         "INR",
	}
}

// Calculator produces fare quotes. Quote is a pure function of its inputs:
// no I/O, no clocks, no hidden state.
type Calculator struct {
	policy Policy
}

// NewCalculator creates a calculator with the given policy.
func NewCalculator(policy Policy) *Calculator {
	if policy.Currency == "" {
		policy.Currency = "INR"
	}
	return &Calculator{policy: policy}
}

// Quote computes a fare breakdown for a trip under a rule, with the
// zone-level parameters of the pickup zone. Surge applies to the subtotal
// before the metered minimum-fare clamp; the platform fee is added after the
// clamp; the total rounds to a whole currency unit only at the very end.
func (c *Calculator) Quote(t Trip, rule *Rule, zp zone.FareParams) (Breakdown, error) {
	if rule == nil {
		return Breakdown{}, errors.NoFareConfigured(string(t.BookingType), string(t.VehicleClass))
	}
	if err := c.validateTrip(t); err != nil {
		return Breakdown{}, err
	}

	switch rule.Model {
	case ModelMetered:
		return c.quoteMetered(t, rule.Metered, zp), nil
	case ModelHourly:
		return c.quoteHourly(t, rule.Hourly, zp), nil
	case ModelSlab:
		return c.quoteSlab(t, rule.Slab), nil
	default:
		return Breakdown{}, errors.Internal(fmt.Sprintf("unhandled pricing model %q", rule.Model))
	}
}

// QuoteCancellation returns the fee charged when a metered booking is
// cancelled after acceptance. Non-metered rules carry no cancellation fee.
func (c *Calculator) QuoteCancellation(rule *Rule) (Breakdown, error) {
	if rule == nil {
		return Breakdown{}, errors.NoFareConfigured("", "")
	}
	if rule.Model != ModelMetered || rule.Metered == nil {
		return Breakdown{SurgeApplied: 1, Currency: c.policy.Currency}, nil
	}
	return Breakdown{
		SurgeApplied: 1,
		Total:        math.Round(rule.Metered.CancellationFee),
		Currency:     c.policy.Currency,
	}, nil
}

// validateTrip rejects negative or non-finite trip parameters before any
// computation runs.
func (c *Calculator) validateTrip(t Trip) error {
	for name, v := range map[string]float64{
		"distance_km":   t.DistanceKm,
		"duration_min":  t.DurationMin,
		"toll_estimate": t.TollEstimate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.InvalidInput(fmt.Sprintf("%s is not a finite number", name))
		}
		if v < 0 {
			return errors.InvalidInput(fmt.Sprintf("%s must be >= 0, got %v", name, v))
		}
	}
	if t.RentalHours < 0 {
		return errors.InvalidInput(fmt.Sprintf("rental_hours must be >= 0, got %d", t.RentalHours))
	}
	if t.Days < 0 {
		return errors.InvalidInput(fmt.Sprintf("days must be >= 0, got %d", t.Days))
	}
	return nil
}

// quoteMetered prices by distance and time:
//
//	subtotal = base + distance*perKm + duration*perMin
//	total    = max(subtotal*surge, minimumFare) + platformFee
//
// Zone base fare and per-km rate override the rule's when the zone sets
// them; the surge multiplier always comes from the zone.
func (c *Calculator) quoteMetered(t Trip, m *MeteredParams, zp zone.FareParams) Breakdown {
	base := m.BaseFare
	if zp.BaseFare > 0 {
		base = zp.BaseFare
	}
	perKm := m.PerKmRate
	if zp.PerKmRate > 0 {
		perKm = zp.PerKmRate
	}
	surge := surgeOrOne(zp.SurgeMultiplier)

	distanceFare := t.DistanceKm * perKm
	timeFare := t.DurationMin * m.PerMinuteRate
	subtotal := base + distanceFare + timeFare

	surged := subtotal * surge
	clamped := math.Max(surged, m.MinimumFare)
	fee := c.platformFee(subtotal)

	return Breakdown{
		BaseFare:     roundCurrency(base),
		DistanceFare: roundCurrency(distanceFare),
		TimeFare:     roundCurrency(timeFare),
		SurgeApplied: surge,
		PlatformFee:  roundCurrency(fee),
		Total:        math.Round(clamped + fee),
		Currency:     c.policy.Currency,
	}
}

// quoteHourly prices a rental: total = round(hourlyRate * hours * surge).
// The minimum-hours policy is enforced before quoting.
func (c *Calculator) quoteHourly(t Trip, h *HourlyParams, zp zone.FareParams) Breakdown {
	hours := t.RentalHours
	if hours < c.policy.MinRentalHours {
		hours = c.policy.MinRentalHours
	}
	surge := surgeOrOne(zp.SurgeMultiplier)

	timeFare := h.HourlyRate * float64(hours)

	return Breakdown{
		TimeFare:     roundCurrency(timeFare),
		SurgeApplied: surge,
		Total:        math.Round(timeFare * surge),
		Currency:     c.policy.Currency,
	}
}

// quoteSlab prices an outstation package. The slab lookup key is the
// round-trip distance (twice the one-way distance); the smallest boundary at
// or above it wins, and distance beyond the largest boundary bills at the
// extra-km rate. The night surcharge applies to the slab fare only, never
// the driver allowance. Slab packages are fixed-price: zone surge does not
// apply.
func (c *Calculator) quoteSlab(t Trip, s *SlabParams) Breakdown {
	roundTripKm := t.DistanceKm * 2

	slabFare, slabKm := selectSlab(s.Boundaries, roundTripKm)
	var extraFare float64
	if roundTripKm > slabKm {
		extraFare = s.ExtraKmRate * (roundTripKm - slabKm)
	}

	days := t.Days
	if days < 1 {
		days = 1
	}
	allowance := s.DriverAllowancePerDay * float64(days)

	distanceFare := slabFare + extraFare

	var nightSurcharge float64
	if c.inNightWindow(t.StartTime()) {
		nightSurcharge = distanceFare * s.NightChargePercent / 100
	}

	var tolls float64
	if s.TollIncluded {
		tolls = t.TollEstimate
	}

	return Breakdown{
		DistanceFare:   roundCurrency(distanceFare),
		Allowance:      roundCurrency(allowance),
		NightSurcharge: roundCurrency(nightSurcharge),
		SurgeApplied:   1,
		Tolls:          roundCurrency(tolls),
		Total:          math.Round(distanceFare + nightSurcharge + allowance + tolls),
		Currency:       c.policy.Currency,
	}
}

// selectSlab returns the fare and boundary distance of the smallest boundary
// at or above roundTripKm. Beyond the largest boundary, the largest applies.
// Boundaries are validated sorted at rule creation.
func selectSlab(boundaries []SlabBoundary, roundTripKm float64) (fare, boundaryKm float64) {
	for _, b := range boundaries {
		if b.DistanceKm >= roundTripKm {
			return b.Fare, b.DistanceKm
		}
	}
	last := boundaries[len(boundaries)-1]
	return last.Fare, last.DistanceKm
}

// inNightWindow reports whether the hour of start falls in the configured
// night window. The window may cross midnight (22 -> 6).
func (c *Calculator) inNightWindow(start time.Time) bool {
	hour := start.Hour()
	from, to := c.policy.NightWindowStart, c.policy.NightWindowEnd
	if from == to {
		return false
	}
	if from < to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}

// platformFee computes the configured fee: a flat amount, or a percentage of
// the pre-surge subtotal when the percentage is set.
func (c *Calculator) platformFee(subtotal float64) float64 {
	if c.policy.PlatformFeePct > 0 {
		return subtotal * c.policy.PlatformFeePct / 100
	}
	return c.policy.PlatformFeeFlat
}

func surgeOrOne(surge float64) float64 {
	if surge <= 0 {
		return 1
	}
	return surge
}

// roundCurrency rounds a component amount to the smallest displayed unit.
func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
