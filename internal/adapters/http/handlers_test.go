package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/routekit/internal/adapters/http"
	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/core/usecases"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

// ---- Mock ports ----

type mockRouteRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.RouteRecord, error)
	listFn    func(ctx context.Context, filter ports.RouteFilter) ([]domain.RouteRecord, error)
	deleteFn  func(ctx context.Context, id string) error

	created []*domain.RouteRecord
}

func (m *mockRouteRepo) Create(ctx context.Context, r *domain.RouteRecord) error {
	r.ID = fmt.Sprintf("route-%d", len(m.created)+1)
	m.created = append(m.created, r)
	return nil
}
func (m *mockRouteRepo) Update(ctx context.Context, r *domain.RouteRecord) error { return nil }
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
func (m *mockRouteRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockRegionRepo struct {
	listFn func(ctx context.Context, activeOnly bool) ([]domain.Region, error)
}

func (m *mockRegionRepo) List(ctx context.Context, activeOnly bool) ([]domain.Region, error) {
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

type mockRouting struct {
	matchFn func(ctx context.Context, profile string, points []domain.GeoPoint) (*ports.MatchResult, error)
}

func (m *mockRouting) Match(ctx context.Context, profile string, points []domain.GeoPoint) (*ports.MatchResult, error) {
	if m.matchFn != nil {
		return m.matchFn(ctx, profile, points)
	}
	return nil, errors.New("dial tcp: connection refused")
}
func (m *mockRouting) Optimize(ctx context.Context, req ports.OptimizeRequest) (*ports.OptimizeResult, error) {
	return nil, errors.New("dial tcp: connection refused")
}

type mockScheduler struct {
	routeIDs []string
}

func (m *mockScheduler) ScheduleConformance(ctx context.Context, routeID string) (string, error) {
	m.routeIDs = append(m.routeIDs, routeID)
	return "run-" + routeID, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

type depsOptions struct {
	repo    *mockRouteRepo
	routing *mockRouting
	regions *mockRegionRepo
	pois    *mockPOIRepo
}

func makeDeps(opts ...func(*depsOptions)) *handler.Dependencies {
	o := &depsOptions{
		repo:    &mockRouteRepo{},
		routing: &mockRouting{},
		regions: &mockRegionRepo{},
		pois:    &mockPOIRepo{},
	}
	for _, fn := range opts {
		fn(o)
	}

	routes := usecases.NewRouteService(o.repo, nil, nil)
	conformance := usecases.NewConformanceService(o.routing, nil, usecases.ConformanceConfig{})
	calc := usecases.NewMetricsCalculator(usecases.DefaultEstimateConfig(), geospatial.DefaultRegionOptions())
	return &handler.Dependencies{
		Sessions: usecases.NewSessionService(routes, conformance, calc, usecases.SessionConfig{}),
		Routes:   routes,
		Catalog:  usecases.NewCatalogService(o.regions, o.pois, nil),
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

type sessionBody struct {
	ID    string `json:"id"`
	Route struct {
		ID         string            `json:"id"`
		Name       string            `json:"name"`
		RawPoints  []domain.GeoPoint `json:"raw_points"`
		Snapped    []domain.GeoPoint `json:"snapped_points"`
		Revision   uint64            `json:"revision"`
		CanUndo    bool              `json:"can_undo"`
		CanRedo    bool              `json:"can_redo"`
		HistoryLen int               `json:"history_len"`
	} `json:"route"`
}

func decodeSession(t *testing.T, resp *http.Response) sessionBody {
	t.Helper()
	var s sessionBody
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return s
}

func openSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doJSON(t, app, "POST", "/v1/sessions", map[string]string{"device_id": "dev-1"})
	if resp.StatusCode != 201 {
		t.Fatalf("open session: expected 201, got %d", resp.StatusCode)
	}
	return decodeSession(t, resp).ID
}

func storedRoute() *domain.RouteRecord {
	return &domain.RouteRecord{
		ID:       "r1",
		Name:     "Quiapo - Cubao",
		Code:     "QC-01",
		Color:    "#ff6600",
		Geometry: json.RawMessage(`{"type":"LineString","coordinates":[[120.984,14.598],[121.001,14.605],[121.052,14.619]]}`),
		Status:   domain.RouteStatusActive,
	}
}

// ---- Route handler tests ----

func TestListRoutes_Success(t *testing.T) {
	var got ports.RouteFilter
	deps := makeDeps(func(o *depsOptions) {
		o.repo.listFn = func(ctx context.Context, f ports.RouteFilter) ([]domain.RouteRecord, error) {
			got = f
			return []domain.RouteRecord{*storedRoute(), *storedRoute()}, nil
		}
	})
	app := setupApp(deps)

	resp := doJSON(t, app, "GET", "/v1/routes?region_id=ncr&status=active&limit=2", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.RouteRecord `json:"data"`
		Pagination struct {
			Count   int  `json:"count"`
			HasMore bool `json:"has_more"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 2 || result.Pagination.Count != 2 {
		t.Errorf("expected 2 routes, got %d", len(result.Data))
	}
	if !result.Pagination.HasMore {
		t.Error("a full page should report has_more")
	}
	if got.RegionID != "ncr" || got.Status != domain.RouteStatusActive || got.Limit != 2 {
		t.Errorf("unexpected filter %+v", got)
	}

	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, "region_id=ncr") {
		t.Errorf("expected next link keeping filters, got %s", link)
	}
}

func TestListRoutes_BadStatus(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "GET", "/v1/routes?status=deleted", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetRoute_DecodesPoints(t *testing.T) {
	deps := makeDeps(func(o *depsOptions) {
		o.repo.getByIDFn = func(ctx context.Context, id string) (*domain.RouteRecord, error) {
			return storedRoute(), nil
		}
	})
	app := setupApp(deps)

	resp := doJSON(t, app, "GET", "/v1/routes/r1", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Name   string            `json:"name"`
		Points []domain.GeoPoint `json:"points"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(result.Points))
	}
	if result.Points[0].Lat != 14.598 || result.Points[0].Lon != 120.984 {
		t.Errorf("expected lon/lat order to be decoded, got %+v", result.Points[0])
	}
}

func TestGetRoute_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "GET", "/v1/routes/missing", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %q", apiErr.Code)
	}
}

func TestRouteKML(t *testing.T) {
	deps := makeDeps(func(o *depsOptions) {
		o.repo.getByIDFn = func(ctx context.Context, id string) (*domain.RouteRecord, error) {
			return storedRoute(), nil
		}
	})
	app := setupApp(deps)

	resp := doJSON(t, app, "GET", "/v1/routes/r1/kml", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.google-earth.kml+xml" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := string(readBody(t, resp.Body))
	if !strings.Contains(body, "<kml") || !strings.Contains(body, "Quiapo - Cubao") {
		t.Errorf("unexpected KML body: %s", body)
	}
}

func TestConformRoute(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		app := setupApp(makeDeps())
		resp := doJSON(t, app, "POST", "/v1/routes/r1/conform", nil)
		if resp.StatusCode != 503 {
			t.Fatalf("expected 503, got %d", resp.StatusCode)
		}
	})

	t.Run("scheduled", func(t *testing.T) {
		deps := makeDeps(func(o *depsOptions) {
			o.repo.getByIDFn = func(ctx context.Context, id string) (*domain.RouteRecord, error) {
				return storedRoute(), nil
			}
		})
		sched := &mockScheduler{}
		deps.Scheduler = sched
		app := setupApp(deps)

		resp := doJSON(t, app, "POST", "/v1/routes/r1/conform", nil)
		if resp.StatusCode != 202 {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
		if len(sched.routeIDs) != 1 || sched.routeIDs[0] != "r1" {
			t.Errorf("expected one run for r1, got %v", sched.routeIDs)
		}
	})
}

// ---- Session handler tests ----

func TestSession_EditFlow(t *testing.T) {
	app := setupApp(makeDeps())
	id := openSession(t, app)
	base := "/v1/sessions/" + id

	for _, p := range []interface{}{
		map[string]float64{"lat": 14.598, "lon": 120.984},
		[]float64{121.001, 14.605},
	} {
		resp := doJSON(t, app, "POST", base+"/points", map[string]interface{}{"point": p})
		if resp.StatusCode != 200 {
			t.Fatalf("insert: expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
		}
	}

	resp := doJSON(t, app, "POST", base+"/points", map[string]interface{}{
		"point":    map[string]float64{"lat": 14.590, "lon": 120.970},
		"position": "head",
	})
	s := decodeSession(t, resp)
	if len(s.Route.RawPoints) != 3 || s.Route.RawPoints[0].Lat != 14.590 {
		t.Fatalf("expected head insert, got %+v", s.Route.RawPoints)
	}

	resp = doJSON(t, app, "DELETE", base+"/points/7", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("delete out of range: expected 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "POST", base+"/undo", nil)
	s = decodeSession(t, resp)
	if len(s.Route.RawPoints) != 2 || !s.Route.CanRedo {
		t.Fatalf("undo: expected 2 points and redo available, got %+v", s.Route)
	}

	resp = doJSON(t, app, "POST", base+"/redo", nil)
	s = decodeSession(t, resp)
	if len(s.Route.RawPoints) != 3 {
		t.Fatalf("redo: expected 3 points, got %d", len(s.Route.RawPoints))
	}

	resp = doJSON(t, app, "GET", base+"/metrics", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
	var m usecases.RouteMetrics
	json.NewDecoder(resp.Body).Decode(&m)
	if m.PointCount != 3 || m.LengthMeters <= 0 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestSession_SaveRequiresName(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	id := openSession(t, app)
	base := "/v1/sessions/" + id

	doJSON(t, app, "PUT", base+"/points", map[string]interface{}{
		"geometry": [][]float64{{120.984, 14.598}, {121.001, 14.605}},
	})

	resp := doJSON(t, app, "POST", base+"/save", nil)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Field != "name" {
		t.Errorf("expected name field error, got %+v", apiErr)
	}

	resp = doJSON(t, app, "PATCH", base, map[string]string{"name": "Quiapo - Cubao"})
	if resp.StatusCode != 200 {
		t.Fatalf("metadata: expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "POST", base+"/save", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("save: expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	var rec domain.RouteRecord
	json.NewDecoder(resp.Body).Decode(&rec)
	if rec.ID != "route-1" || rec.Name != "Quiapo - Cubao" {
		t.Errorf("unexpected saved record %+v", rec)
	}
}

func TestSession_InsertBadPosition(t *testing.T) {
	app := setupApp(makeDeps())
	id := openSession(t, app)

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/points", map[string]interface{}{
		"point":    map[string]float64{"lat": 14.6, "lon": 121.0},
		"position": "middle",
	})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSession_InsertInvalidCoordinate(t *testing.T) {
	app := setupApp(makeDeps())
	id := openSession(t, app)

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/points", map[string]interface{}{
		"point": map[string]string{"name": "Quiapo"},
	})
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestSession_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "GET", "/v1/sessions/nope", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSession_SnapFallback(t *testing.T) {
	app := setupApp(makeDeps())
	id := openSession(t, app)
	base := "/v1/sessions/" + id

	doJSON(t, app, "PUT", base+"/points", map[string]interface{}{
		"geometry": [][]float64{{120.984, 14.598}, {121.001, 14.605}, {121.052, 14.619}},
	})

	resp := doJSON(t, app, "POST", base+"/snap", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res usecases.SnapResult
	json.NewDecoder(resp.Body).Decode(&res)
	if !res.Fallback || len(res.Points) != 3 {
		t.Errorf("expected straight-line fallback, got %+v", res)
	}
}

func TestSession_SnapInstallsRoadPath(t *testing.T) {
	road := []domain.GeoPoint{{Lat: 14.598, Lon: 120.984}, {Lat: 14.600, Lon: 120.990}, {Lat: 14.605, Lon: 121.001}}
	deps := makeDeps(func(o *depsOptions) {
		o.routing.matchFn = func(ctx context.Context, profile string, points []domain.GeoPoint) (*ports.MatchResult, error) {
			return &ports.MatchResult{Points: road, DistanceM: 1900}, nil
		}
	})
	app := setupApp(deps)
	id := openSession(t, app)
	base := "/v1/sessions/" + id

	doJSON(t, app, "PUT", base+"/points", map[string]interface{}{
		"geometry": [][]float64{{120.984, 14.598}, {121.001, 14.605}},
	})
	if resp := doJSON(t, app, "POST", base+"/snap", nil); resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	s := decodeSession(t, doJSON(t, app, "GET", base, nil))
	if len(s.Route.Snapped) != 3 {
		t.Fatalf("expected snapped path installed, got %+v", s.Route.Snapped)
	}

	s = decodeSession(t, doJSON(t, app, "DELETE", base+"/snapped", nil))
	if len(s.Route.Snapped) != 0 {
		t.Errorf("expected snapped path cleared, got %+v", s.Route.Snapped)
	}
}

func TestSession_OptimizeValidation(t *testing.T) {
	app := setupApp(makeDeps())
	id := openSession(t, app)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad source", map[string]interface{}{"source": "last"}},
		{"bad destination", map[string]interface{}{"destination": "first"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/optimize", tt.body)
			if resp.StatusCode != 400 {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestSession_Simplify(t *testing.T) {
	app := setupApp(makeDeps())
	id := openSession(t, app)
	base := "/v1/sessions/" + id

	doJSON(t, app, "PUT", base+"/points", map[string]interface{}{
		"geometry": [][]float64{{121.0, 14.60}, {121.0, 14.61}, {121.0, 14.62}},
	})

	resp := doJSON(t, app, "POST", base+"/simplify", map[string]interface{}{"tolerance": 0.001})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Session sessionBody `json:"session"`
		Removed int         `json:"removed"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Removed != 1 || len(result.Session.Route.RawPoints) != 2 {
		t.Errorf("expected midpoint removed, got %+v", result)
	}

	doJSON(t, app, "PUT", base+"/points", map[string]interface{}{
		"geometry": [][]float64{{121.0, 14.60}, {121.0, 14.61}, {121.0, 14.62}},
	})
	resp = doJSON(t, app, "POST", base+"/simplify", map[string]interface{}{"tolerance": 0})
	if resp.StatusCode != 200 {
		t.Fatalf("zero tolerance: expected 200, got %d", resp.StatusCode)
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Removed != 1 {
		t.Errorf("zero tolerance should drop the collinear midpoint, got %+v", result)
	}

	resp = doJSON(t, app, "POST", base+"/simplify", map[string]interface{}{"tolerance": -1})
	if resp.StatusCode != 400 {
		t.Fatalf("negative tolerance: expected 400, got %d", resp.StatusCode)
	}
}

func TestSession_CloseAndList(t *testing.T) {
	app := setupApp(makeDeps())
	id := openSession(t, app)

	var views []map[string]interface{}
	json.NewDecoder(doJSON(t, app, "GET", "/v1/sessions", nil).Body).Decode(&views)
	if len(views) != 1 {
		t.Fatalf("expected 1 open session, got %d", len(views))
	}

	resp := doJSON(t, app, "DELETE", "/v1/sessions/"+id, nil)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = doJSON(t, app, "DELETE", "/v1/sessions/"+id, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("second close: expected 404, got %d", resp.StatusCode)
	}
}

func TestSession_NoStoreCacheControl(t *testing.T) {
	app := setupApp(makeDeps())
	id := openSession(t, app)

	resp := doJSON(t, app, "GET", "/v1/sessions/"+id, nil)
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}
	if resp.Header.Get("ETag") != "" {
		t.Error("session reads should not carry an ETag")
	}
}

// ---- Catalog handler tests ----

func TestListRegions(t *testing.T) {
	var activeOnly bool
	deps := makeDeps(func(o *depsOptions) {
		o.regions.listFn = func(ctx context.Context, active bool) ([]domain.Region, error) {
			activeOnly = active
			return []domain.Region{{ID: "ncr", Name: "Metro Manila", Code: "NCR", IsActive: true}}, nil
		}
	})
	app := setupApp(deps)

	resp := doJSON(t, app, "GET", "/v1/regions", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !activeOnly {
		t.Error("default listing should be active-only")
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
}

func TestPOIsInBounds(t *testing.T) {
	var got domain.Bounds
	deps := makeDeps(func(o *depsOptions) {
		o.pois.findInBoundsFn = func(ctx context.Context, b domain.Bounds, limit int) ([]domain.POI, error) {
			got = b
			return []domain.POI{{ID: "p1", Name: "Quiapo Church", Type: "landmark"}}, nil
		}
	})
	app := setupApp(deps)

	resp := doJSON(t, app, "GET", "/v1/pois?min_lat=14.5&min_lon=120.9&max_lat=14.7&max_lon=121.1", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.MinLat != 14.5 || got.MaxLon != 121.1 {
		t.Errorf("unexpected bounds %+v", got)
	}

	resp = doJSON(t, app, "GET", "/v1/pois?min_lat=14.5", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("missing bounds: expected 400, got %d", resp.StatusCode)
	}
}

func TestNearbyPOIs_BadRadius(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "GET", "/v1/pois/nearby?lat=14.6&lon=121.0&radius=50000", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPostLocation(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)

	resp := doJSON(t, app, "POST", "/v1/locations", map[string]interface{}{
		"device_id": "dev-1",
		"location":  map[string]float64{"latitude": 14.6, "longitude": 121.0},
	})
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if s, ok := deps.Sessions.LatestLocation("dev-1"); !ok || s.Location.Lat != 14.6 {
		t.Errorf("expected sample recorded, got %+v", s)
	}

	resp = doJSON(t, app, "POST", "/v1/locations", map[string]interface{}{
		"location": map[string]float64{"lat": 14.6, "lon": 121.0},
	})
	if resp.StatusCode != 422 {
		t.Fatalf("missing device: expected 422, got %d", resp.StatusCode)
	}
}

func TestGraphQL_Regions(t *testing.T) {
	deps := makeDeps(func(o *depsOptions) {
		o.regions.listFn = func(ctx context.Context, active bool) ([]domain.Region, error) {
			return []domain.Region{{ID: "ncr", Name: "Metro Manila", Code: "NCR", IsActive: true}}, nil
		}
	})
	app := setupApp(deps)

	resp := doJSON(t, app, "POST", "/graphql", map[string]string{"query": "{ regions { id code } }"})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := string(readBody(t, resp.Body))
	if !strings.Contains(body, `"code":"NCR"`) {
		t.Errorf("unexpected GraphQL result %s", body)
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "GET", "/v1/health", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_NoDB(t *testing.T) {
	// DB, NATS, Cache are nil
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "GET", "/v1/ready", nil)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	resp := doJSON(t, app, "GET", "/v1/health", nil)
	if v := resp.Header.Get("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
