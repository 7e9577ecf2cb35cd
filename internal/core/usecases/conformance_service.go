package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
	"github.com/samirrijal/routekit/internal/pkg/metrics"
	"github.com/samirrijal/routekit/internal/pkg/telemetry"
)

// DefaultMaxWaypoints is the optimize endpoint's waypoint limit.
const DefaultMaxWaypoints = 12

// ConformanceConfig tunes the conformance service.
type ConformanceConfig struct {
	Profile      string
	MaxWaypoints int
	CacheTTL     time.Duration
	Timeout      time.Duration
}

// SnapResult is the outcome of a snap call. When Fallback is set, Points is
// the input reinterpreted as a straight line and Warnings says why.
type SnapResult struct {
	Points       []domain.GeoPoint `json:"points"`
	DistanceM    float64           `json:"distance_m,omitempty"`
	DurationSecs float64           `json:"duration_secs,omitempty"`
	Fallback     bool              `json:"fallback"`
	Cached       bool              `json:"cached"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// OptimizeOptions are the caller-facing optimize parameters.
type OptimizeOptions struct {
	Profile     string `json:"profile,omitempty"`
	Roundtrip   bool   `json:"roundtrip"`
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// OptimizeResult is the outcome of an optimize call. Order covers only the
// Considered leading points; with Truncated set the remainder was ignored.
type OptimizeResult struct {
	Order        []int             `json:"order"`
	Points       []domain.GeoPoint `json:"points"`
	DistanceM    float64           `json:"distance_m,omitempty"`
	DurationSecs float64           `json:"duration_secs,omitempty"`
	Considered   int               `json:"considered"`
	Truncated    bool              `json:"truncated"`
	Fallback     bool              `json:"fallback"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// ConformanceService snaps paths to roads and optimizes waypoint order
// through the routing service. It never mutates a route: callers apply
// results to their engine.
type ConformanceService struct {
	routing ports.RoutingService
	cache   ports.CacheService
	cfg     ConformanceConfig
	tracer  trace.Tracer
	seq     *sequencer
}

// NewConformanceService creates a ConformanceService. cache may be nil.
func NewConformanceService(routing ports.RoutingService, cache ports.CacheService, cfg ConformanceConfig) *ConformanceService {
	if cfg.Profile == "" {
		cfg.Profile = "driving"
	}
	if cfg.MaxWaypoints <= 0 {
		cfg.MaxWaypoints = DefaultMaxWaypoints
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ConformanceService{
		routing: routing,
		cache:   cache,
		cfg:     cfg,
		tracer:  telemetry.Tracer("routekit/conformance"),
		seq:     newSequencer(),
	}
}

// Snap conforms points to the road network. key identifies the route; a new
// call for the same key cancels the one in flight, which then returns
// domain.ErrSuperseded. Transport failures and empty matches fall back to
// the input as a straight line.
func (s *ConformanceService) Snap(ctx context.Context, key string, points []domain.GeoPoint) (*SnapResult, error) {
	if len(points) < domain.MinPathPoints {
		return nil, domain.NewValidationError("points", fmt.Sprintf("snapping needs at least %d points", domain.MinPathPoints))
	}

	ctx, span := s.tracer.Start(ctx, telemetry.SpanConformanceSnap, trace.WithAttributes(
		attribute.String(telemetry.AttrRouteID, key),
		attribute.Int(telemetry.AttrPointCount, len(points)),
		attribute.String(telemetry.AttrProfile, s.cfg.Profile),
	))
	defer span.End()

	cacheKey := fmt.Sprintf("snap:%s:%s", s.cfg.Profile, geospatial.EncodePolyline(points))
	if cached := s.cachedSnap(ctx, cacheKey); cached != nil {
		metrics.RoutingRequests.WithLabelValues("snap", "cached").Inc()
		return cached, nil
	}

	callCtx, ticket := s.seq.begin(ctx, "snap:"+key)
	defer s.seq.end("snap:"+key, ticket)
	callCtx, cancel := context.WithTimeout(callCtx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	match, err := s.routing.Match(callCtx, s.cfg.Profile, points)
	metrics.RoutingDuration.WithLabelValues("snap").Observe(time.Since(start).Seconds())

	if !s.seq.current("snap:"+key, ticket) {
		metrics.RoutingRequests.WithLabelValues("snap", "superseded").Inc()
		return nil, fmt.Errorf("snap %s: %w", key, domain.ErrSuperseded)
	}

	var reason string
	switch {
	case errors.Is(err, domain.ErrNoMatch):
		reason = "routing service found no road match"
	case err != nil:
		reason = "routing service unavailable"
	case match == nil || len(match.Points) < domain.MinPathPoints:
		reason = "routing service returned an empty geometry"
	}
	if reason != "" {
		slog.Warn("snap fell back to straight line", "route_id", key, "reason", reason, "error", err)
		metrics.RoutingRequests.WithLabelValues("snap", "fallback").Inc()
		metrics.RoutingFallbacks.WithLabelValues("snap").Inc()
		span.SetAttributes(attribute.Bool(telemetry.AttrFallback, true))
		if err != nil {
			span.RecordError(err)
		}
		return &SnapResult{
			Points:   domain.ClonePoints(points),
			Fallback: true,
			Warnings: []string{reason + "; showing straight-line path"},
		}, nil
	}

	metrics.RoutingRequests.WithLabelValues("snap", "ok").Inc()
	res := &SnapResult{
		Points:       match.Points,
		DistanceM:    match.DistanceM,
		DurationSecs: match.DurationSecs,
	}
	s.storeSnap(ctx, cacheKey, res)
	return res, nil
}

func (s *ConformanceService) cachedSnap(ctx context.Context, key string) *SnapResult {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("snap").Inc()
		return nil
	}
	var res SnapResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil
	}
	metrics.CacheHits.WithLabelValues("snap").Inc()
	res.Cached = true
	return &res
}

func (s *ConformanceService) storeSnap(ctx context.Context, key string, res *SnapResult) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	if data, err := json.Marshal(res); err == nil {
		_ = s.cache.Set(ctx, key, data, int(s.cfg.CacheTTL.Seconds()))
	}
}

// Optimize asks the routing service for the shortest visiting order. Only
// the first MaxWaypoints points are sent; the truncation is reported in the
// result. A service answer of "no feasible trip" returns
// domain.ErrNoFeasibleTrip. Transport failures keep the original order.
func (s *ConformanceService) Optimize(ctx context.Context, key string, points []domain.GeoPoint, opts OptimizeOptions) (*OptimizeResult, error) {
	if len(points) < domain.MinPathPoints {
		return nil, domain.NewValidationError("points", fmt.Sprintf("optimizing needs at least %d points", domain.MinPathPoints))
	}
	profile := opts.Profile
	if profile == "" {
		profile = s.cfg.Profile
	}

	considered := points
	var warnings []string
	truncated := len(points) > s.cfg.MaxWaypoints
	if truncated {
		considered = points[:s.cfg.MaxWaypoints]
		warnings = append(warnings, fmt.Sprintf("only the first %d of %d points were optimized", s.cfg.MaxWaypoints, len(points)))
		metrics.WaypointTruncations.Inc()
		slog.Info("optimize truncated waypoints", "route_id", key, "points", len(points), "limit", s.cfg.MaxWaypoints)
	}

	ctx, span := s.tracer.Start(ctx, telemetry.SpanConformanceOptimize, trace.WithAttributes(
		attribute.String(telemetry.AttrRouteID, key),
		attribute.Int(telemetry.AttrPointCount, len(considered)),
		attribute.String(telemetry.AttrProfile, profile),
		attribute.Bool(telemetry.AttrTruncated, truncated),
	))
	defer span.End()

	callCtx, ticket := s.seq.begin(ctx, "optimize:"+key)
	defer s.seq.end("optimize:"+key, ticket)
	callCtx, cancel := context.WithTimeout(callCtx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	trip, err := s.routing.Optimize(callCtx, ports.OptimizeRequest{
		Profile:     profile,
		Waypoints:   domain.ClonePoints(considered),
		Roundtrip:   opts.Roundtrip,
		Source:      opts.Source,
		Destination: opts.Destination,
	})
	metrics.RoutingDuration.WithLabelValues("optimize").Observe(time.Since(start).Seconds())

	if !s.seq.current("optimize:"+key, ticket) {
		metrics.RoutingRequests.WithLabelValues("optimize", "superseded").Inc()
		return nil, fmt.Errorf("optimize %s: %w", key, domain.ErrSuperseded)
	}

	if errors.Is(err, domain.ErrNoFeasibleTrip) {
		metrics.RoutingRequests.WithLabelValues("optimize", "no_trip").Inc()
		span.SetStatus(codes.Error, "no feasible trip")
		return nil, fmt.Errorf("optimize %d waypoints: %w", len(considered), err)
	}
	if err == nil && !validOrder(trip, len(considered)) {
		err = fmt.Errorf("routing service returned an invalid order for %d waypoints", len(considered))
	}
	if err != nil {
		slog.Warn("optimize kept original order", "route_id", key, "error", err)
		metrics.RoutingRequests.WithLabelValues("optimize", "fallback").Inc()
		metrics.RoutingFallbacks.WithLabelValues("optimize").Inc()
		span.RecordError(err)
		span.SetAttributes(attribute.Bool(telemetry.AttrFallback, true))

		order := make([]int, len(considered))
		for i := range order {
			order[i] = i
		}
		return &OptimizeResult{
			Order:      order,
			Points:     domain.ClonePoints(considered),
			Considered: len(considered),
			Truncated:  truncated,
			Fallback:   true,
			Warnings:   append(warnings, "routing service unavailable; keeping original order"),
		}, nil
	}

	metrics.RoutingRequests.WithLabelValues("optimize", "ok").Inc()
	return &OptimizeResult{
		Order:        trip.Order,
		Points:       trip.Points,
		DistanceM:    trip.DistanceM,
		DurationSecs: trip.DurationSecs,
		Considered:   len(considered),
		Truncated:    truncated,
		Warnings:     warnings,
	}, nil
}

func validOrder(trip *ports.OptimizeResult, n int) bool {
	if trip == nil || len(trip.Order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range trip.Order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

// sequencer tracks the latest request per key. Starting a new request
// cancels the previous one for the same key.
type sequencer struct {
	mu     sync.Mutex
	next   uint64
	active map[string]ticket
}

type ticket struct {
	id     uint64
	cancel context.CancelFunc
}

func newSequencer() *sequencer {
	return &sequencer{active: make(map[string]ticket)}
}

func (q *sequencer) begin(ctx context.Context, key string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()
	if prev, ok := q.active[key]; ok {
		prev.cancel()
	}
	q.next++
	q.active[key] = ticket{id: q.next, cancel: cancel}
	return ctx, q.next
}

func (q *sequencer) current(key string, id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.active[key]
	return ok && t.id == id
}

func (q *sequencer) end(key string, id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.active[key]; ok && t.id == id {
		t.cancel()
		delete(q.active, key)
	}
}
