package driver

import "github.com/gatiride/gati-platform/engine/database"

// RegisterMigrations adds the roster schema to a migrator. The claim query
// depends on the drivers/driver_active_rides split: claiming row-locks the
// driver and inserts the ride in one transaction.
func RegisterMigrations(m *database.Migrator) {
	m.AddMigration(1, "create_drivers", `
CREATE TABLE drivers (
	id NVARCHAR(64) PRIMARY KEY,
	status NVARCHAR(16) NOT NULL DEFAULT 'offline',
	is_verified BIT NOT NULL DEFAULT 0,
	rating FLOAT NOT NULL DEFAULT 0,
	vehicle_class NVARCHAR(16) NOT NULL,
	lat FLOAT NULL,
	lng FLOAT NULL,
	location_at DATETIME2 NULL,
	updated_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
)
GO
CREATE INDEX ix_drivers_status ON drivers (status, is_verified)
GO
CREATE INDEX ix_drivers_location ON drivers (lat, lng) WHERE lat IS NOT NULL
`, `
DROP TABLE drivers
`)

	m.AddMigration(2, "create_driver_active_rides", `
CREATE TABLE driver_active_rides (
	driver_id NVARCHAR(64) NOT NULL REFERENCES drivers(id),
	ride_id NVARCHAR(64) NOT NULL,
	assigned_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
	PRIMARY KEY (driver_id, ride_id)
)
GO
CREATE INDEX ix_active_rides_ride ON driver_active_rides (ride_id)
`, `
DROP TABLE driver_active_rides
`)
}
