package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// POIRepo implements ports.POIRepository with PostGIS.
type POIRepo struct {
	db *DB
}

// NewPOIRepo creates a new POIRepo.
func NewPOIRepo(db *DB) *POIRepo {
	return &POIRepo{db: db}
}

const poiColumns = `id, name, type,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	region_id, COALESCE(metadata, '{}')`

// GetByID returns a POI by UUID.
func (r *POIRepo) GetByID(ctx context.Context, id string) (*domain.POI, error) {
	p, err := scanPOI(r.db.Pool.QueryRow(ctx, `SELECT `+poiColumns+` FROM pois WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("poi %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListByRegion returns the POIs of a region ordered by name.
func (r *POIRepo) ListByRegion(ctx context.Context, regionID string) ([]domain.POI, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+poiColumns+` FROM pois WHERE region_id = $1 ORDER BY name`, regionID)
	if err != nil {
		return nil, err
	}
	return collectPOIs(rows)
}

// FindInBounds returns POIs inside a lat/lon rectangle using the spatial index.
func (r *POIRepo) FindInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.POI, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+poiColumns+`
		FROM pois
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)::geography
		ORDER BY name
		LIMIT $5
	`, b.MinLon, b.MinLat, b.MaxLon, b.MaxLat, limit)
	if err != nil {
		return nil, err
	}
	return collectPOIs(rows)
}

func collectPOIs(rows pgx.Rows) ([]domain.POI, error) {
	defer rows.Close()
	var pois []domain.POI
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		pois = append(pois, *p)
	}
	return pois, rows.Err()
}

func scanPOI(row pgx.Row) (*domain.POI, error) {
	var p domain.POI
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Location.Lat, &p.Location.Lon, &p.RegionID, &p.Metadata); err != nil {
		return nil, err
	}
	return &p, nil
}
