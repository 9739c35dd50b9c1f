package fixtures

import (
	"time"

	"github.com/gatiride/gati-platform/engine/driver"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/vehicle"
)

// OnlineDriver returns an online, verified sedan driver near HosurCenter.
// The offset shifts the driver away from the center so ranking by distance
// is deterministic.
func OnlineDriver(id string, offsetKm float64) *driver.Driver {
	loc := geo.Point{
		Lat: HosurCenter.Lat + offsetKm/111.0, // ~1 degree latitude per 111km
		Lng: HosurCenter.Lng,
	}
	return &driver.Driver{
		ID:            id,
		Status:        driver.StatusOnline,
		Verified:      true,
		Rating:        4.5,
		VehicleClass:  vehicle.ClassSedan,
		Location:      &loc,
		LocationAt:    time.Now(),
		ActiveRideIDs: make(map[string]struct{}),
	}
}

// OfflineDriver returns an offline driver at HosurCenter.
func OfflineDriver(id string) *driver.Driver {
	d := OnlineDriver(id, 0)
	d.Status = driver.StatusOffline
	return d
}

// BusyDriver returns a driver mid-ride.
func BusyDriver(id, rideID string) *driver.Driver {
	d := OnlineDriver(id, 0)
	d.Status = driver.StatusBusy
	d.ActiveRideIDs[rideID] = struct{}{}
	return d
}

// UnverifiedDriver returns an online driver whose documents are pending.
func UnverifiedDriver(id string) *driver.Driver {
	d := OnlineDriver(id, 0)
	d.Verified = false
	return d
}
