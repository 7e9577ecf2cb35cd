package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/usecases"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

// SnapOutcome is the serializable part of a snap result.
type SnapOutcome struct {
	Points   []domain.GeoPoint
	Fallback bool
	Warnings []string
}

// ConformanceActivities holds the activity implementations for the conformance workflow.
type ConformanceActivities struct {
	Routes      *usecases.RouteService
	Conformance *usecases.ConformanceService
}

// LoadRoutePoints returns the stored waypoints of a route.
func (a *ConformanceActivities) LoadRoutePoints(ctx context.Context, routeID string) ([]domain.GeoPoint, error) {
	rec, err := a.Routes.GetByID(ctx, routeID)
	if err != nil {
		return nil, classify(fmt.Errorf("load route %s: %w", routeID, err))
	}
	return a.Routes.Seed(rec).Raw, nil
}

// SimplifyPoints runs Douglas-Peucker over points. meters selects a
// tolerance in meters instead of degrees.
func (a *ConformanceActivities) SimplifyPoints(ctx context.Context, points []domain.GeoPoint, tolerance float64, meters bool) ([]domain.GeoPoint, error) {
	if meters {
		return geospatial.SimplifyMeters(points, tolerance), nil
	}
	return geospatial.Simplify(points, tolerance), nil
}

// SnapPoints conforms points to roads. Service failures come back as a
// fallback outcome, not an error.
func (a *ConformanceActivities) SnapPoints(ctx context.Context, routeID string, points []domain.GeoPoint) (*SnapOutcome, error) {
	res, err := a.Conformance.Snap(ctx, "workflow:"+routeID, points)
	if err != nil {
		return nil, classify(fmt.Errorf("snap route %s: %w", routeID, err))
	}
	return &SnapOutcome{Points: res.Points, Fallback: res.Fallback, Warnings: res.Warnings}, nil
}

// SaveConformed stores the simplified waypoints and, when present, the
// snapped path.
func (a *ConformanceActivities) SaveConformed(ctx context.Context, routeID string, raw, snapped []domain.GeoPoint) error {
	if _, err := a.Routes.SaveSnapped(ctx, routeID, raw, snapped); err != nil {
		return classify(err)
	}
	slog.Info("conformed route stored", "route_id", routeID, "points", len(raw), "snapped", len(snapped))
	return nil
}

// classify marks errors that retrying cannot fix.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), "NotFound", err)
	case domain.IsValidation(err):
		return temporal.NewNonRetryableApplicationError(err.Error(), "Validation", err)
	}
	return err
}
