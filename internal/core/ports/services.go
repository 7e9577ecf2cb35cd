package ports

import (
	"context"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// MatchResult is a road-following geometry returned by the routing service.
type MatchResult struct {
	Points       []domain.GeoPoint
	DistanceM    float64
	DurationSecs float64
}

// OptimizeRequest describes a waypoint-order optimization call.
type OptimizeRequest struct {
	Profile     string
	Waypoints   []domain.GeoPoint
	Roundtrip   bool
	Source      string // "any" | "first"
	Destination string // "any" | "last"
}

// OptimizeResult is the optimized visiting order and trip geometry.
// Order[i] is the input index visited at position i.
type OptimizeResult struct {
	Order        []int
	Points       []domain.GeoPoint
	DistanceM    float64
	DurationSecs float64
}

// RoutingService is the external road network service. Implementations
// return domain.ErrNoMatch and domain.ErrNoFeasibleTrip when the service
// answers but finds nothing; any other error is a transport failure.
type RoutingService interface {
	Match(ctx context.Context, profile string, points []domain.GeoPoint) (*MatchResult, error)
	Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error)
}

// EventPublisher publishes route events to a message broker.
type EventPublisher interface {
	PublishRouteEvent(ctx context.Context, event *domain.RouteEvent) error
}

// LocationSubscriber delivers samples from the external location provider.
type LocationSubscriber interface {
	SubscribeLocationSamples(ctx context.Context, handler func(ctx context.Context, s *domain.LocationSample) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ConformanceScheduler starts background conformance runs for saved routes.
type ConformanceScheduler interface {
	ScheduleConformance(ctx context.Context, routeID string) (runID string, err error)
}
