package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/editor"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
	"github.com/samirrijal/routekit/internal/pkg/telemetry"
)

// RouteService loads and saves route records.
type RouteService struct {
	routes    ports.RouteRepository
	publisher ports.EventPublisher
	extractor *geospatial.Extractor
	tracer    trace.Tracer
}

// NewRouteService creates a new RouteService. publisher may be nil.
func NewRouteService(routes ports.RouteRepository, publisher ports.EventPublisher, extractor *geospatial.Extractor) *RouteService {
	if extractor == nil {
		extractor = geospatial.NewExtractor(geospatial.AxisAuto, nil)
	}
	return &RouteService{
		routes:    routes,
		publisher: publisher,
		extractor: extractor,
		tracer:    telemetry.Tracer("routekit/routes"),
	}
}

// GetByID returns a route record by its UUID.
func (s *RouteService) GetByID(ctx context.Context, id string) (*domain.RouteRecord, error) {
	return s.routes.GetByID(ctx, id)
}

// List returns route records matching filter.
func (s *RouteService) List(ctx context.Context, filter ports.RouteFilter) ([]domain.RouteRecord, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.routes.List(ctx, filter)
}

// Delete removes a route record.
func (s *RouteService) Delete(ctx context.Context, id string) error {
	return s.routes.Delete(ctx, id)
}

// Seed decodes a stored record into editor seed data. Geometry that cannot
// be parsed yields an empty path rather than an error.
func (s *RouteService) Seed(rec *domain.RouteRecord) editor.Seed {
	seed := editor.Seed{
		ID:       rec.ID,
		Name:     rec.Name,
		Code:     rec.Code,
		Color:    rec.Color,
		RegionID: rec.RegionID,
	}
	if len(rec.Geometry) > 0 {
		seed.Raw = s.extractor.Extract([]byte(rec.Geometry))
	}
	if len(rec.SnappedGeometry) > 0 && string(rec.SnappedGeometry) != "null" {
		if snapped := s.extractor.Extract([]byte(rec.SnappedGeometry)); len(snapped) > 0 {
			seed.Snapped = snapped
		}
	}
	return seed
}

// Load fetches a record and seeds a Route from it.
func (s *RouteService) Load(ctx context.Context, id string) (*editor.Route, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanRouteLoad, trace.WithAttributes(
		attribute.String(telemetry.AttrRouteID, id),
	))
	defer span.End()

	rec, err := s.routes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load route %s: %w", id, err)
	}
	return editor.SeedRoute(s.Seed(rec)), nil
}

// ValidateForSave reports the first blocking problem with route.
func ValidateForSave(route *editor.Route) error {
	if strings.TrimSpace(route.Name()) == "" {
		return domain.NewValidationError("name", "route name is required")
	}
	if route.Len() < domain.MinPathPoints {
		return domain.NewValidationError("points", fmt.Sprintf("a route needs at least %d points", domain.MinPathPoints))
	}
	return nil
}

// Save persists route. New routes are created, known ones updated. The
// stored length is measured over the displayed path.
func (s *RouteService) Save(ctx context.Context, route *editor.Route) (*domain.RouteRecord, error) {
	if err := ValidateForSave(route); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, telemetry.SpanRouteSave, trace.WithAttributes(
		attribute.String(telemetry.AttrRouteID, route.ID()),
		attribute.Int(telemetry.AttrPointCount, route.Len()),
	))
	defer span.End()

	rec, err := recordFromRoute(route)
	if err != nil {
		return nil, err
	}

	if route.IsNew() {
		if err := s.routes.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("create route: %w", err)
		}
		route.MarkPersisted(rec.ID)
	} else if err := s.routes.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update route %s: %w", rec.ID, err)
	}

	s.publish(ctx, &domain.RouteEvent{
		RouteID:    rec.ID,
		Kind:       "saved",
		PointCount: route.Len(),
		Revision:   route.Revision(),
		Time:       time.Now(),
	})
	return rec, nil
}

// SaveSnapped stores a conformed geometry for an existing record.
func (s *RouteService) SaveSnapped(ctx context.Context, id string, raw, snapped []domain.GeoPoint) (*domain.RouteRecord, error) {
	rec, err := s.routes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load route %s: %w", id, err)
	}
	geometry, err := geospatial.LineStringGeoJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	rec.Geometry = geometry
	rec.SnappedGeometry = nil
	rec.LengthMeters = geospatial.PathLength(raw)
	if len(snapped) >= domain.MinPathPoints {
		if rec.SnappedGeometry, err = geospatial.LineStringGeoJSON(snapped); err != nil {
			return nil, fmt.Errorf("encode snapped geometry: %w", err)
		}
		rec.LengthMeters = geospatial.PathLength(snapped)
	}
	if err := s.routes.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update route %s: %w", id, err)
	}
	s.publish(ctx, &domain.RouteEvent{RouteID: id, Kind: "snapped", PointCount: len(raw), Time: time.Now()})
	return rec, nil
}

// PublishEdited announces an edit to subscribers. Failures are logged.
func (s *RouteService) PublishEdited(ctx context.Context, routeID string, pointCount int, revision uint64) {
	s.publish(ctx, &domain.RouteEvent{
		RouteID:    routeID,
		Kind:       "edited",
		PointCount: pointCount,
		Revision:   revision,
		Time:       time.Now(),
	})
}

func (s *RouteService) publish(ctx context.Context, ev *domain.RouteEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRouteEvent(ctx, ev); err != nil {
		slog.Warn("publish route event failed", "route_id", ev.RouteID, "kind", ev.Kind, "error", err)
	}
}

func recordFromRoute(route *editor.Route) (*domain.RouteRecord, error) {
	geometry, err := geospatial.LineStringGeoJSON(route.RawPoints())
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	rec := &domain.RouteRecord{
		ID:           route.ID(),
		Code:         route.Code(),
		Name:         strings.TrimSpace(route.Name()),
		Color:        route.Color(),
		Geometry:     geometry,
		LengthMeters: geospatial.PathLength(route.DisplayPoints()),
		RegionID:     route.RegionID(),
		Status:       domain.RouteStatusDraft,
	}
	if route.HasSnapped() {
		if rec.SnappedGeometry, err = geospatial.LineStringGeoJSON(route.SnappedPoints()); err != nil {
			return nil, fmt.Errorf("encode snapped geometry: %w", err)
		}
	}
	return rec, nil
}
