package fixtures

import (
	"github.com/gatiride/gati-platform/engine/fare"
	"github.com/gatiride/gati-platform/engine/vehicle"
)

// MeteredRule returns the stock city fare for sedans: base 70, 16/km,
// 1.5/min, minimum 70, cancellation 60.
func MeteredRule() *fare.Rule {
	return &fare.Rule{
		BookingType:  fare.BookingRegular,
		VehicleClass: vehicle.ClassSedan,
		Model:        fare.ModelMetered,
		Metered: &fare.MeteredParams{
			BaseFare:        70,
			PerKmRate:       16,
			PerMinuteRate:   1.5,
			MinimumFare:     70,
			CancellationFee: 60,
		},
	}
}

// HourlyRule returns a rental rule at 180/hour.
func HourlyRule() *fare.Rule {
	return &fare.Rule{
		BookingType:  fare.BookingRental,
		VehicleClass: vehicle.ClassSedan,
		Model:        fare.ModelHourly,
		Hourly: &fare.HourlyParams{
			HourlyRate: 180,
		},
	}
}

// SlabRule returns an outstation slab rule with boundaries at 80, 150 and
// 320 round-trip km.
func SlabRule() *fare.Rule {
	return &fare.Rule{
		BookingType:  fare.BookingOutstationSlab,
		VehicleClass: vehicle.ClassSedan,
		Model:        fare.ModelSlab,
		Slab: &fare.SlabParams{
			Boundaries: []fare.SlabBoundary{
				{DistanceKm: 80, Fare: 2000},
				{DistanceKm: 150, Fare: 3400},
				{DistanceKm: 320, Fare: 6800},
			},
			ExtraKmRate:           14,
			DriverAllowancePerDay: 400,
			NightChargePercent:    10,
			TollIncluded:          true,
		},
	}
}
