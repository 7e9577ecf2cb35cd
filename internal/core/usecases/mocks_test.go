package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
)

// --- Mock RoutingService ---

type mockRouting struct {
	matchFn    func(ctx context.Context, profile string, points []domain.GeoPoint) (*ports.MatchResult, error)
	optimizeFn func(ctx context.Context, req ports.OptimizeRequest) (*ports.OptimizeResult, error)

	mu       sync.Mutex
	matches  int
	optimize []ports.OptimizeRequest
}

func (m *mockRouting) Match(ctx context.Context, profile string, points []domain.GeoPoint) (*ports.MatchResult, error) {
	m.mu.Lock()
	m.matches++
	m.mu.Unlock()
	if m.matchFn != nil {
		return m.matchFn(ctx, profile, points)
	}
	return nil, errors.New("dial tcp: connection refused")
}

func (m *mockRouting) Optimize(ctx context.Context, req ports.OptimizeRequest) (*ports.OptimizeResult, error) {
	m.mu.Lock()
	m.optimize = append(m.optimize, req)
	m.mu.Unlock()
	if m.optimizeFn != nil {
		return m.optimizeFn(ctx, req)
	}
	return nil, errors.New("dial tcp: connection refused")
}

// --- Mock RouteRepository ---

type mockRouteRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.RouteRecord, error)
	listFn    func(ctx context.Context, filter ports.RouteFilter) ([]domain.RouteRecord, error)

	created []*domain.RouteRecord
	updated []*domain.RouteRecord
}

func (m *mockRouteRepo) Create(ctx context.Context, r *domain.RouteRecord) error {
	m.created = append(m.created, r)
	return nil
}

func (m *mockRouteRepo) Update(ctx context.Context, r *domain.RouteRecord) error {
	m.updated = append(m.updated, r)
	return nil
}

func (m *mockRouteRepo) GetByID(ctx context.Context, id string) (*domain.RouteRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRouteRepo) List(ctx context.Context, filter ports.RouteFilter) ([]domain.RouteRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockRouteRepo) Delete(ctx context.Context, id string) error { return nil }

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.RouteEvent
}

func (m *mockPublisher) PublishRouteEvent(ctx context.Context, ev *domain.RouteEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockPublisher) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Kind
	}
	return out
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock RegionRepository / POIRepository ---

type mockRegionRepo struct {
	listFn func(ctx context.Context, activeOnly bool) ([]domain.Region, error)
	calls  int
}

func (m *mockRegionRepo) List(ctx context.Context, activeOnly bool) ([]domain.Region, error) {
	m.calls++
	if m.listFn != nil {
		return m.listFn(ctx, activeOnly)
	}
	return nil, nil
}

func (m *mockRegionRepo) GetByID(ctx context.Context, id string) (*domain.Region, error) {
	return nil, domain.ErrNotFound
}

type mockPOIRepo struct {
	findInBoundsFn func(ctx context.Context, b domain.Bounds, limit int) ([]domain.POI, error)
}

func (m *mockPOIRepo) GetByID(ctx context.Context, id string) (*domain.POI, error) {
	return nil, domain.ErrNotFound
}

func (m *mockPOIRepo) ListByRegion(ctx context.Context, regionID string) ([]domain.POI, error) {
	return nil, nil
}

func (m *mockPOIRepo) FindInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.POI, error) {
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, b, limit)
	}
	return nil, nil
}

// line returns n points heading north-east from Quiapo.
func line(n int) []domain.GeoPoint {
	out := make([]domain.GeoPoint, n)
	for i := range out {
		out[i] = domain.GeoPoint{Lat: 14.60 + float64(i)*0.002, Lon: 120.98 + float64(i)*0.003}
	}
	return out
}
