package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/timeclock/internal/geo"
)

// PerimeterRepository stores the single geofence each organization may have.
type PerimeterRepository struct {
	pool *pgxpool.Pool
}

// NewPerimeterRepository constructs a PerimeterRepository.
func NewPerimeterRepository(pool *pgxpool.Pool) *PerimeterRepository {
	return &PerimeterRepository{pool: pool}
}

// Get returns the organization's perimeter, or nil when none is configured.
func (r *PerimeterRepository) Get(ctx context.Context, organizationID string) (*geo.Perimeter, error) {
	const query = `SELECT organization_id, display_name, latitude, longitude, radius_meters
        FROM perimeters WHERE organization_id=$1`

	var perimeter geo.Perimeter
	err := r.pool.QueryRow(ctx, query, organizationID).Scan(
		&perimeter.OrganizationID,
		&perimeter.DisplayName,
		&perimeter.Center.Lat,
		&perimeter.Center.Lon,
		&perimeter.RadiusMeters,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &perimeter, nil
}

// Set replaces the organization's perimeter in a single upsert, so readers
// never observe a half-updated record.
func (r *PerimeterRepository) Set(ctx context.Context, perimeter geo.Perimeter) (*geo.Perimeter, error) {
	const stmt = `INSERT INTO perimeters (organization_id, display_name, latitude, longitude, radius_meters, updated_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        ON CONFLICT (organization_id) DO UPDATE
        SET display_name=EXCLUDED.display_name,
            latitude=EXCLUDED.latitude,
            longitude=EXCLUDED.longitude,
            radius_meters=EXCLUDED.radius_meters,
            updated_at=NOW()`

	_, err := r.pool.Exec(ctx, stmt,
		perimeter.OrganizationID,
		perimeter.DisplayName,
		perimeter.Center.Lat,
		perimeter.Center.Lon,
		perimeter.RadiusMeters,
	)
	if err != nil {
		return nil, err
	}
	return &perimeter, nil
}
