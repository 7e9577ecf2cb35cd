package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

// CatalogService serves the read-only regions and POIs shown on the map.
type CatalogService struct {
	regions ports.RegionRepository
	pois    ports.POIRepository
	cache   ports.CacheService
}

// NewCatalogService creates a new CatalogService. cache may be nil.
func NewCatalogService(regions ports.RegionRepository, pois ports.POIRepository, cache ports.CacheService) *CatalogService {
	return &CatalogService{regions: regions, pois: pois, cache: cache}
}

// Regions lists regions, optionally only active ones.
func (s *CatalogService) Regions(ctx context.Context, activeOnly bool) ([]domain.Region, error) {
	cacheKey := fmt.Sprintf("regions:active=%t", activeOnly)
	var regions []domain.Region
	if s.cached(ctx, cacheKey, &regions) {
		return regions, nil
	}

	regions, err := s.regions.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}

	// Regions rarely change
	s.store(ctx, cacheKey, regions, 600)
	return regions, nil
}

// Region returns one region.
func (s *CatalogService) Region(ctx context.Context, id string) (*domain.Region, error) {
	return s.regions.GetByID(ctx, id)
}

// POI returns one POI.
func (s *CatalogService) POI(ctx context.Context, id string) (*domain.POI, error) {
	return s.pois.GetByID(ctx, id)
}

// POIsByRegion lists the POIs assigned to a region.
func (s *CatalogService) POIsByRegion(ctx context.Context, regionID string) ([]domain.POI, error) {
	if regionID == "" {
		return nil, domain.NewValidationError("region_id", "region is required")
	}
	cacheKey := "pois:region:" + regionID
	var pois []domain.POI
	if s.cached(ctx, cacheKey, &pois) {
		return pois, nil
	}

	pois, err := s.pois.ListByRegion(ctx, regionID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cacheKey, pois, 300)
	return pois, nil
}

// POIsInBounds lists POIs inside b.
func (s *CatalogService) POIsInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.POI, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return nil, domain.NewValidationError("bounds", "min must not exceed max")
	}
	return s.pois.FindInBounds(ctx, b, limit)
}

// POIsNear lists POIs inside the square of radiusMeters around a point.
func (s *CatalogService) POIsNear(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.POI, error) {
	if radiusMeters <= 0 || radiusMeters > 10000 {
		radiusMeters = 1000
	}
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)
	return s.POIsInBounds(ctx, domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}, limit)
}

func (s *CatalogService) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CatalogService) store(ctx context.Context, key string, v any, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttlSeconds)
	}
}
