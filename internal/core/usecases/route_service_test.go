package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/editor"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/core/usecases"
)

func TestRouteService_LoadParsesStoredGeometry(t *testing.T) {
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.RouteRecord, error) {
			return &domain.RouteRecord{
				ID:       id,
				Name:     "Quiapo - Cubao",
				Geometry: json.RawMessage(`{"type":"Feature","geometry":{"type":"LineString","coordinates":[[14.60,120.98],[14.62,121.00]]}}`),
			}, nil
		},
	}
	svc := usecases.NewRouteService(repo, nil, nil)

	route, err := svc.Load(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.GeoPoint{{Lat: 14.60, Lon: 120.98}, {Lat: 14.62, Lon: 121.00}}
	if !domain.EqualPoints(route.RawPoints(), want) {
		t.Errorf("expected %v, got %v", want, route.RawPoints())
	}
	if route.IsNew() || route.HasSnapped() {
		t.Error("loaded route should be persisted without snapped path")
	}
}

func TestRouteService_LoadMalformedGeometryIsEmpty(t *testing.T) {
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.RouteRecord, error) {
			return &domain.RouteRecord{ID: id, Geometry: json.RawMessage(`{"broken":true}`)}, nil
		},
	}
	svc := usecases.NewRouteService(repo, nil, nil)

	route, err := svc.Load(context.Background(), "r1")
	if err != nil {
		t.Fatalf("parse failure must not be fatal: %v", err)
	}
	if route.Len() != 0 {
		t.Errorf("expected empty path, got %d points", route.Len())
	}
}

func TestRouteService_LoadNotFound(t *testing.T) {
	svc := usecases.NewRouteService(&mockRouteRepo{}, nil, nil)
	_, err := svc.Load(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRouteService_SaveValidates(t *testing.T) {
	repo := &mockRouteRepo{}
	svc := usecases.NewRouteService(repo, nil, nil)

	e := editor.NewEngine(nil)
	_ = e.Append(line(1)[0])
	_, err := svc.Save(context.Background(), e.Route())
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}

	name := "Quiapo - Cubao"
	e.SetMetadata(editor.Metadata{Name: &name})
	_, err = svc.Save(context.Background(), e.Route())
	if !errors.As(err, &ve) || ve.Field != "points" {
		t.Fatalf("expected points validation error, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestRouteService_SaveCreatesThenUpdates(t *testing.T) {
	repo := &mockRouteRepo{}
	pub := &mockPublisher{}
	svc := usecases.NewRouteService(repo, pub, nil)

	name := "Quiapo - Cubao"
	e := editor.NewEngine(nil)
	e.SetMetadata(editor.Metadata{Name: &name})
	_ = e.Replace(line(3))

	rec, err := svc.Save(context.Background(), e.Route())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(repo.created) != 1 || rec.LengthMeters <= 0 {
		t.Fatalf("expected create with length, got %+v", rec)
	}
	if e.Route().IsNew() {
		t.Error("route should be marked persisted")
	}

	_ = e.Append(line(4)[3])
	if _, err := svc.Save(context.Background(), e.Route()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if len(repo.updated) != 1 {
		t.Errorf("expected update, got %d", len(repo.updated))
	}
	if kinds := pub.kinds(); len(kinds) != 2 || kinds[0] != "saved" {
		t.Errorf("unexpected events %v", kinds)
	}
}

func TestRouteService_ListClampsLimit(t *testing.T) {
	repo := &mockRouteRepo{
		listFn: func(ctx context.Context, filter ports.RouteFilter) ([]domain.RouteRecord, error) {
			if filter.Limit != 50 {
				t.Errorf("expected limit clamped to 50, got %d", filter.Limit)
			}
			return nil, nil
		},
	}
	svc := usecases.NewRouteService(repo, nil, nil)
	_, _ = svc.List(context.Background(), ports.RouteFilter{Limit: 999})
}
