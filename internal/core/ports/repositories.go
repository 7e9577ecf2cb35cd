package ports

import (
	"context"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// RouteFilter narrows RouteRepository.List.
type RouteFilter struct {
	RegionID string
	Status   domain.RouteStatus
	Limit    int
	Offset   int
}

// RouteRepository persists route records.
type RouteRepository interface {
	Create(ctx context.Context, route *domain.RouteRecord) error
	Update(ctx context.Context, route *domain.RouteRecord) error
	GetByID(ctx context.Context, id string) (*domain.RouteRecord, error)
	List(ctx context.Context, filter RouteFilter) ([]domain.RouteRecord, error)
	Delete(ctx context.Context, id string) error
}

// RegionRepository reads regions.
type RegionRepository interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Region, error)
	GetByID(ctx context.Context, id string) (*domain.Region, error)
}

// POIRepository reads points of interest.
type POIRepository interface {
	GetByID(ctx context.Context, id string) (*domain.POI, error)
	ListByRegion(ctx context.Context, regionID string) ([]domain.POI, error)
	FindInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.POI, error)
}
