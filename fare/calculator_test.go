package fare_test

import (
	"math"
	"testing"
	"time"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/fare"
	"github.com/gatiride/gati-platform/engine/testing/fixtures"
	"github.com/gatiride/gati-platform/engine/vehicle"
	"github.com/gatiride/gati-platform/engine/zone"
)

var dayTime = time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
var nightTime = time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

func meteredTrip(distanceKm, durationMin float64) fare.Trip {
	return fare.Trip{
		Pickup:       fixtures.HosurCenter,
		Dropoff:      fixtures.InsideHosur,
		BookingType:  fare.BookingRegular,
		VehicleClass: vehicle.ClassSedan,
		RequestedAt:  dayTime,
		DistanceKm:   distanceKm,
		DurationMin:  durationMin,
	}
}

func TestCalculator_QuoteMetered(t *testing.T) {
	calc := fare.NewCalculator(fare.DefaultPolicy())
	rule := fixtures.MeteredRule()

	t.Run("base plus distance plus time", func(t *testing.T) {
		// 70 + 5*16 + 12*1.5 = 168
		bd, err := calc.Quote(meteredTrip(5, 12), rule, zone.FareParams{SurgeMultiplier: 1})
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if bd.Total != 168 {
			t.Errorf("Total = %v, want 168", bd.Total)
		}
		if bd.BaseFare != 70 || bd.DistanceFare != 80 || bd.TimeFare != 18 {
			t.Errorf("components = %v/%v/%v, want 70/80/18", bd.BaseFare, bd.DistanceFare, bd.TimeFare)
		}
		if bd.Currency != "INR" {
			t.Errorf("Currency = %q, want INR", bd.Currency)
		}
	})

	t.Run("minimum fare clamps short trips", func(t *testing.T) {
		// Zone base 50 overrides rule base; 50 + 0 + 0 = 50 < minimum 70
		bd, err := calc.Quote(meteredTrip(0, 0), rule, zone.FareParams{BaseFare: 50, SurgeMultiplier: 1})
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if bd.Total != 70 {
			t.Errorf("Total = %v, want minimum fare 70", bd.Total)
		}
	})

	t.Run("surge applies before the clamp", func(t *testing.T) {
		// Zone base 40 + 1km*16 = 56; 56*1.5 = 84 >= 70, so the surged
		// subtotal stands. Clamping first would have given 105.
		bd, err := calc.Quote(meteredTrip(1, 0), rule, zone.FareParams{BaseFare: 40, SurgeMultiplier: 1.5})
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if bd.Total != 84 {
			t.Errorf("Total = %v, want 84", bd.Total)
		}
		if bd.SurgeApplied != 1.5 {
			t.Errorf("SurgeApplied = %v, want 1.5", bd.SurgeApplied)
		}
	})

	t.Run("zone per-km rate overrides rule", func(t *testing.T) {
		// 70 + 5*20 = 170
		bd, err := calc.Quote(meteredTrip(5, 0), rule, zone.FareParams{PerKmRate: 20, SurgeMultiplier: 1})
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if bd.Total != 170 {
			t.Errorf("Total = %v, want 170", bd.Total)
		}
	})

	t.Run("platform fee added after clamp", func(t *testing.T) {
		c := fare.NewCalculator(fare.Policy{MinRentalHours: 4, PlatformFeeFlat: 10, Currency: "INR"})
		bd, err := c.Quote(meteredTrip(5, 12), rule, zone.FareParams{SurgeMultiplier: 1})
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if bd.Total != 178 {
			t.Errorf("Total = %v, want 178", bd.Total)
		}
		if bd.PlatformFee != 10 {
			t.Errorf("PlatformFee = %v, want 10", bd.PlatformFee)
		}
	})

	t.Run("monotone in distance", func(t *testing.T) {
		prev := -1.0
		for d := 0.0; d <= 50; d += 2.5 {
			bd, err := calc.Quote(meteredTrip(d, 10), rule, zone.FareParams{SurgeMultiplier: 1})
			if err != nil {
				t.Fatalf("Quote(%v km): %v", d, err)
			}
			if bd.Total < prev {
				t.Fatalf("total dropped from %v to %v at %v km", prev, bd.Total, d)
			}
			prev = bd.Total
		}
	})
}

func TestCalculator_QuoteHourly(t *testing.T) {
	calc := fare.NewCalculator(fare.DefaultPolicy())
	rule := fixtures.HourlyRule()

	tests := []struct {
		name  string
		hours int
		surge float64
		want  float64
	}{
		{"minimum hours enforced", 2, 1, 720},  // clamped to 4h * 180
		{"at minimum", 4, 1, 720},
		{"above minimum", 6, 1, 1080},
		{"surge applies", 4, 1.5, 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := meteredTrip(0, 0)
			trip.BookingType = fare.BookingRental
			trip.RentalHours = tt.hours

			bd, err := calc.Quote(trip, rule, zone.FareParams{SurgeMultiplier: tt.surge})
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}
			if bd.Total != tt.want {
				t.Errorf("Total = %v, want %v", bd.Total, tt.want)
			}
		})
	}
}

func TestCalculator_QuoteSlab(t *testing.T) {
	calc := fare.NewCalculator(fare.DefaultPolicy())
	rule := fixtures.SlabRule()

	slabTrip := func(oneWayKm float64, at time.Time) fare.Trip {
		return fare.Trip{
			Pickup:       fixtures.HosurCenter,
			Dropoff:      fixtures.OutsideHosur,
			BookingType:  fare.BookingOutstationSlab,
			VehicleClass: vehicle.ClassSedan,
			RequestedAt:  at,
			DistanceKm:   oneWayKm,
		}
	}

	tests := []struct {
		name   string
		oneWay float64
		at     time.Time
		days   int
		tolls  float64
		want   float64
	}{
		// Slab boundaries are round-trip: 80->2000, 150->3400, 320->6800,
		// extra km at 14, driver allowance 400/day, night +10% on the fare.
		{"exact first boundary", 40, dayTime, 0, 0, 2400},      // 2000 + 400
		{"between boundaries rounds up", 50, dayTime, 0, 0, 3800}, // 3400 + 400
		{"exact last boundary", 160, dayTime, 0, 0, 7200},      // 6800 + 400
		{"beyond last bills extra km", 200, dayTime, 0, 0, 8320}, // 6800 + 80*14 + 400
		{"night surcharge on fare only", 40, nightTime, 0, 0, 2600}, // 2000 + 200 + 400
		{"multi-day allowance", 40, dayTime, 3, 0, 3200},       // 2000 + 3*400
		{"tolls included", 40, dayTime, 0, 150, 2550},          // 2000 + 400 + 150
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := slabTrip(tt.oneWay, tt.at)
			trip.Days = tt.days
			trip.TollEstimate = tt.tolls

			bd, err := calc.Quote(trip, rule, zone.FareParams{SurgeMultiplier: 2})
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}
			if bd.Total != tt.want {
				t.Errorf("Total = %v, want %v", bd.Total, tt.want)
			}
			// Fixed-price packages never surge
			if bd.SurgeApplied != 1 {
				t.Errorf("SurgeApplied = %v, want 1", bd.SurgeApplied)
			}
		})
	}

	t.Run("scheduled time drives the night window", func(t *testing.T) {
		trip := slabTrip(40, dayTime)
		at := nightTime
		trip.ScheduledAt = &at

		bd, err := calc.Quote(trip, rule, zone.FareParams{SurgeMultiplier: 1})
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if bd.NightSurcharge != 200 {
			t.Errorf("NightSurcharge = %v, want 200", bd.NightSurcharge)
		}
	})
}

func TestCalculator_QuoteCancellation(t *testing.T) {
	calc := fare.NewCalculator(fare.DefaultPolicy())

	t.Run("metered charges the configured fee", func(t *testing.T) {
		bd, err := calc.QuoteCancellation(fixtures.MeteredRule())
		if err != nil {
			t.Fatalf("QuoteCancellation: %v", err)
		}
		if bd.Total != 60 {
			t.Errorf("Total = %v, want 60", bd.Total)
		}
	})

	t.Run("non-metered rules carry no fee", func(t *testing.T) {
		bd, err := calc.QuoteCancellation(fixtures.HourlyRule())
		if err != nil {
			t.Fatalf("QuoteCancellation: %v", err)
		}
		if bd.Total != 0 {
			t.Errorf("Total = %v, want 0", bd.Total)
		}
	})

	t.Run("nil rule errors", func(t *testing.T) {
		if _, err := calc.QuoteCancellation(nil); !errors.IsNoFareConfigured(err) {
			t.Errorf("err = %v, want no-fare-configured", err)
		}
	})
}

func TestCalculator_RejectsBadInput(t *testing.T) {
	calc := fare.NewCalculator(fare.DefaultPolicy())
	rule := fixtures.MeteredRule()

	tests := []struct {
		name   string
		mutate func(*fare.Trip)
	}{
		{"negative distance", func(tr *fare.Trip) { tr.DistanceKm = -1 }},
		{"nan distance", func(tr *fare.Trip) { tr.DistanceKm = math.NaN() }},
		{"infinite duration", func(tr *fare.Trip) { tr.DurationMin = math.Inf(1) }},
		{"negative toll", func(tr *fare.Trip) { tr.TollEstimate = -5 }},
		{"negative rental hours", func(tr *fare.Trip) { tr.RentalHours = -1 }},
		{"negative days", func(tr *fare.Trip) { tr.Days = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := meteredTrip(5, 10)
			tt.mutate(&trip)
			if _, err := calc.Quote(trip, rule, zone.FareParams{SurgeMultiplier: 1}); !errors.IsInvalidInput(err) {
				t.Errorf("err = %v, want invalid input", err)
			}
		})
	}

	t.Run("nil rule", func(t *testing.T) {
		if _, err := calc.Quote(meteredTrip(5, 10), nil, zone.FareParams{}); !errors.IsNoFareConfigured(err) {
			t.Errorf("err = %v, want no-fare-configured", err)
		}
	})
}

func TestTable(t *testing.T) {
	t.Run("rule lookup", func(t *testing.T) {
		table := fare.NewTable(nil)
		if err := table.Upsert(fixtures.MeteredRule(), "test"); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		r, err := table.RuleFor(fare.BookingRegular, vehicle.ClassSedan)
		if err != nil {
			t.Fatalf("RuleFor: %v", err)
		}
		if r.Model != fare.ModelMetered {
			t.Errorf("Model = %q, want metered", r.Model)
		}

		if _, err := table.RuleFor(fare.BookingRental, vehicle.ClassSedan); !errors.IsNoFareConfigured(err) {
			t.Errorf("err = %v, want no-fare-configured", err)
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		table := fare.NewTable(nil)
		if err := table.Upsert(fixtures.MeteredRule(), "test"); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		updated := fixtures.MeteredRule()
		updated.Metered.BaseFare = 90
		if err := table.Upsert(updated, "test"); err != nil {
			t.Fatalf("second Upsert: %v", err)
		}

		r, _ := table.RuleFor(fare.BookingRegular, vehicle.ClassSedan)
		if r.Metered.BaseFare != 90 {
			t.Errorf("BaseFare = %v, want 90", r.Metered.BaseFare)
		}
		if table.Len() != 1 {
			t.Errorf("Len = %d, want 1", table.Len())
		}
	})

	t.Run("upsert validates", func(t *testing.T) {
		table := fare.NewTable(nil)

		bad := fixtures.MeteredRule()
		bad.Metered.PerKmRate = -1
		if err := table.Upsert(bad, "test"); !errors.IsValidation(err) {
			t.Errorf("err = %v, want validation", err)
		}

		missing := fixtures.MeteredRule()
		missing.Metered = nil
		if err := table.Upsert(missing, "test"); !errors.IsValidation(err) {
			t.Errorf("err = %v, want validation", err)
		}

		if err := table.Upsert(nil, "test"); !errors.IsValidation(err) {
			t.Errorf("err = %v, want validation", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		table := fare.NewTable(nil)
		if err := table.Upsert(fixtures.MeteredRule(), "test"); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		if err := table.Delete(fare.BookingRegular, vehicle.ClassSedan, "test"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := table.RuleFor(fare.BookingRegular, vehicle.ClassSedan); !errors.IsNoFareConfigured(err) {
			t.Errorf("err = %v, want no-fare-configured", err)
		}
		if err := table.Delete(fare.BookingRegular, vehicle.ClassSedan, "test"); !errors.IsNotFound(err) {
			t.Errorf("second delete = %v, want not found", err)
		}
	})
}

func TestRule_Validate_Slab(t *testing.T) {
	t.Run("boundaries must strictly increase", func(t *testing.T) {
		r := fixtures.SlabRule()
		r.Slab.Boundaries = []fare.SlabBoundary{
			{DistanceKm: 80, Fare: 2000},
			{DistanceKm: 80, Fare: 3400},
		}
		if err := r.Validate(); !errors.IsValidation(err) {
			t.Errorf("err = %v, want validation", err)
		}
	})

	t.Run("needs at least one boundary", func(t *testing.T) {
		r := fixtures.SlabRule()
		r.Slab.Boundaries = nil
		if err := r.Validate(); !errors.IsValidation(err) {
			t.Errorf("err = %v, want validation", err)
		}
	})
}
