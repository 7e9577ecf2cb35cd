package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
)

// RouteRepo implements ports.RouteRepository.
type RouteRepo struct {
	db *DB
}

func NewRouteRepo(db *DB) *RouteRepo { return &RouteRepo{db: db} }

const routeColumns = `id, code, name, color, geometry, snapped_geometry, length_meters,
	region_id, status, created_at, updated_at`

func (r *RouteRepo) Create(ctx context.Context, rt *domain.RouteRecord) error {
	if rt.Status == "" {
		rt.Status = domain.RouteStatusDraft
	}
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO routes (id, code, name, color, geometry, snapped_geometry, length_meters, region_id, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, rt.ID, rt.Code, rt.Name, rt.Color, jsonb(rt.Geometry), jsonb(rt.SnappedGeometry),
		rt.LengthMeters, rt.RegionID, rt.Status,
	).Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt)
}

func (r *RouteRepo) Update(ctx context.Context, rt *domain.RouteRecord) error {
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE routes
		SET code = $2, name = $3, color = $4, geometry = $5, snapped_geometry = $6,
		    length_meters = $7, region_id = $8, status = COALESCE(NULLIF($9, ''), status),
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, rt.ID, rt.Code, rt.Name, rt.Color, jsonb(rt.Geometry), jsonb(rt.SnappedGeometry),
		rt.LengthMeters, rt.RegionID, rt.Status,
	).Scan(&rt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("route %s: %w", rt.ID, domain.ErrNotFound)
	}
	return err
}

func (r *RouteRepo) GetByID(ctx context.Context, id string) (*domain.RouteRecord, error) {
	rt, err := scanRoute(r.db.Pool.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("route %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// List returns routes newest first.
func (r *RouteRepo) List(ctx context.Context, filter ports.RouteFilter) ([]domain.RouteRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.RegionID != "" {
		args = append(args, filter.RegionID)
		where = append(where, fmt.Sprintf("region_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + routeColumns + ` FROM routes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []domain.RouteRecord
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, *rt)
	}
	return routes, rows.Err()
}

func (r *RouteRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("route %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanRoute(row pgx.Row) (*domain.RouteRecord, error) {
	var (
		rt       domain.RouteRecord
		geometry []byte
		snapped  []byte
	)
	if err := row.Scan(&rt.ID, &rt.Code, &rt.Name, &rt.Color, &geometry, &snapped,
		&rt.LengthMeters, &rt.RegionID, &rt.Status, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
		return nil, err
	}
	rt.Geometry = geometry
	if len(snapped) > 0 {
		rt.SnappedGeometry = snapped
	}
	return &rt, nil
}

// jsonb passes raw JSON through as a jsonb parameter, or NULL when empty.
func jsonb(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
