// Package driver tracks driver state and answers eligibility queries.
package driver

import (
	"context"
	"database/sql"
	"sort"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/vehicle"
)

// SQLRepository is a DriverRepository over an external roster in Azure SQL.
// The claim is a single conditional update, so the row lock gives the same
// per-driver linearizability the in-memory roster gets from its entry lock.
type SQLRepository struct {
	db                *sql.DB
	locationStaleness time.Duration
	now               func() time.Time
}

// NewSQLRepository creates a SQL-backed repository.
func NewSQLRepository(db *sql.DB, locationStaleness time.Duration) *SQLRepository {
	return &SQLRepository{
		db:                db,
		locationStaleness: locationStaleness,
		now:               time.Now,
	}
}

// Get returns a driver's current state.
func (r *SQLRepository) Get(ctx context.Context, driverID string) (*Driver, error) {
	const query = `
		SELECT d.id, d.status, d.is_verified, d.rating, d.vehicle_class,
		       d.lat, d.lng, d.location_at,
		       (SELECT COUNT(*) FROM driver_active_rides ar WHERE ar.driver_id = d.id) AS active_rides
		FROM drivers d
		WHERE d.id = @p1`

	d, activeRides, err := scanDriver(r.db.QueryRowContext(ctx, query, driverID))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("driver " + driverID)
	}
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to load driver")
	}

	if activeRides > 0 {
		rideIDs, err := r.loadActiveRideIDs(ctx, driverID)
		if err != nil {
			return nil, err
		}
		for _, id := range rideIDs {
			d.ActiveRideIDs[id] = struct{}{}
		}
	}
	return d, nil
}

func (r *SQLRepository) loadActiveRideIDs(ctx context.Context, driverID string) ([]string, error) {
	const query = `SELECT ride_id FROM driver_active_rides WHERE driver_id = @p1`
	rows, err := r.db.QueryContext(ctx, query, driverID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to load active rides")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.InternalWrap(err, "failed to scan ride id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListEligible returns eligible drivers near the pickup. A bounding-box
// predicate narrows the SQL scan; exact haversine filtering and ranking
// happen here, consistent with the in-memory roster.
func (r *SQLRepository) ListEligible(ctx context.Context, pickup geo.Point, radiusKm float64, class vehicle.Class) ([]Candidate, error) {
	query := `
		SELECT d.id, d.status, d.is_verified, d.rating, d.vehicle_class,
		       d.lat, d.lng, d.location_at,
		       (SELECT COUNT(*) FROM driver_active_rides ar WHERE ar.driver_id = d.id) AS active_rides
		FROM drivers d
		WHERE d.status = 'online' AND d.is_verified = 1 AND d.lat IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM driver_active_rides ar WHERE ar.driver_id = d.id)`
	args := []interface{}{}

	if radiusKm > 0 {
		bb := geo.BoundingBoxFromPoint(pickup, radiusKm)
		query += ` AND d.lat BETWEEN @p1 AND @p2 AND d.lng BETWEEN @p3 AND @p4`
		args = append(args, bb.MinLat, bb.MaxLat, bb.MinLng, bb.MaxLng)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to query eligible drivers")
	}
	defer rows.Close()

	now := r.now()
	var candidates []Candidate
	for rows.Next() {
		d, activeRides, err := scanDriver(rows)
		if err != nil {
			return nil, errors.InternalWrap(err, "failed to scan driver row")
		}
		if activeRides > 0 || !d.Eligible() ||
			(class != "" && !d.VehicleClass.CanFulfill(class)) ||
			!d.HasFreshLocation(now, r.locationStaleness) {
			continue
		}
		dist := geo.HaversineDistance(*d.Location, pickup)
		if radiusKm > 0 && dist > radiusKm {
			continue
		}
		candidates = append(candidates, Candidate{Driver: d, DistanceKm: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalWrap(err, "failed to iterate driver rows")
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		if candidates[i].Driver.Rating != candidates[j].Driver.Rating {
			return candidates[i].Driver.Rating > candidates[j].Driver.Rating
		}
		return candidates[i].Driver.ID < candidates[j].Driver.ID
	})

	return candidates, nil
}

// Claim statements, held at package level so tests can check their column
// references against the registered schema.
const (
	claimGuardSQL = `
		UPDATE drivers WITH (UPDLOCK)
		SET status = 'busy'
		WHERE id = @p1 AND status = 'online' AND is_verified = 1
		  AND NOT EXISTS (SELECT 1 FROM driver_active_rides ar WHERE ar.driver_id = @p1)`

	claimInsertSQL = `INSERT INTO driver_active_rides (driver_id, ride_id, assigned_at) VALUES (@p1, @p2, @p3)`
)

// Claim reserves the driver for a ride with a guarded update inside one
// transaction: the status flip only lands if the driver is still online,
// verified, and free, and the ride insert rides on the same row lock.
func (r *SQLRepository) Claim(ctx context.Context, driverID, rideID string) error {
	if rideID == "" {
		return errors.Validation("ride id must not be empty")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.InternalWrap(err, "failed to begin claim transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, claimGuardSQL, driverID)
	if err != nil {
		return errors.InternalWrap(err, "failed to run claim guard")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.InternalWrap(err, "failed to read claim guard result")
	}
	if affected == 0 {
		return errors.AlreadyAssigned(driverID)
	}

	if _, err := tx.ExecContext(ctx, claimInsertSQL, driverID, rideID, r.now().UTC()); err != nil {
		return errors.InternalWrap(err, "failed to record claimed ride")
	}

	if err := tx.Commit(); err != nil {
		return errors.InternalWrap(err, "failed to commit claim")
	}
	return nil
}

// rowScanner covers sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDriver(row rowScanner) (*Driver, int, error) {
	var (
		d           Driver
		status      string
		class       string
		lat, lng    sql.NullFloat64
		locationAt  sql.NullTime
		activeRides int
	)
	if err := row.Scan(&d.ID, &status, &d.Verified, &d.Rating, &class, &lat, &lng, &locationAt, &activeRides); err != nil {
		return nil, 0, err
	}

	d.Status = Status(status)
	d.VehicleClass = vehicle.Class(class)
	if lat.Valid && lng.Valid {
		d.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if locationAt.Valid {
		d.LocationAt = locationAt.Time
	}
	d.ActiveRideIDs = make(map[string]struct{}, activeRides)

	return &d, activeRides, nil
}

var _ Repository = (*SQLRepository)(nil)
