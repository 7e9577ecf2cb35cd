package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// RegionRepo implements ports.RegionRepository.
type RegionRepo struct {
	db *DB
}

func NewRegionRepo(db *DB) *RegionRepo { return &RegionRepo{db: db} }

func (r *RegionRepo) List(ctx context.Context, activeOnly bool) ([]domain.Region, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, code, is_active FROM regions
		WHERE is_active OR NOT $1
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []domain.Region
	for rows.Next() {
		var rg domain.Region
		if err := rows.Scan(&rg.ID, &rg.Name, &rg.Code, &rg.IsActive); err != nil {
			return nil, err
		}
		regions = append(regions, rg)
	}
	return regions, rows.Err()
}

func (r *RegionRepo) GetByID(ctx context.Context, id string) (*domain.Region, error) {
	var rg domain.Region
	err := r.db.Pool.QueryRow(ctx, `SELECT id, name, code, is_active FROM regions WHERE id = $1`, id).
		Scan(&rg.ID, &rg.Name, &rg.Code, &rg.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("region %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rg, nil
}
