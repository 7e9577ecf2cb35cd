package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/editor"
	"github.com/samirrijal/routekit/internal/core/mapsync"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
	"github.com/samirrijal/routekit/internal/pkg/metrics"
)

// SessionConfig tunes editing sessions.
type SessionConfig struct {
	HistoryLimit      int
	InsertPolicy      mapsync.InsertPolicy
	SimplifyTolerance float64
	IdleTimeout       time.Duration
}

// Session is one editing session over one route. All access goes through
// its mutex so HTTP handlers, websocket gestures and conformance callbacks
// are serialized.
type Session struct {
	ID       string
	DeviceID string

	mu        sync.Mutex
	engine    *editor.Engine
	machine   *editor.Machine
	layers    map[uint64]*mapsync.Layer
	nextLayer uint64
	opened    time.Time
	touched   time.Time
}

// SessionView is a JSON-friendly read of a session.
type SessionView struct {
	ID       string          `json:"id"`
	DeviceID string          `json:"device_id,omitempty"`
	Route    editor.Snapshot `json:"route"`
	State    editor.State    `json:"state"`
	Opened   time.Time       `json:"opened_at"`
}

// View returns the current state of the session.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() SessionView {
	return SessionView{
		ID:       s.ID,
		DeviceID: s.DeviceID,
		Route:    s.engine.Route().Snapshot(),
		State:    s.machine.State(),
		Opened:   s.opened,
	}
}

// Edit runs fn against the session's engine under the session lock.
func (s *Session) Edit(fn func(e *editor.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	return fn(s.engine)
}

// begin starts a remote unit of work on the state machine. A unit already
// in flight is superseded.
func (s *Session) begin(label string) {
	if s.machine.Status() == editor.StatusLoading {
		_ = s.machine.Reset()
	}
	_ = s.machine.Begin(label)
}

// OpenOptions describe a new session.
type OpenOptions struct {
	RouteID  string // empty starts a new route
	DeviceID string
}

// SessionService owns the open editing sessions.
type SessionService struct {
	routes      *RouteService
	conformance *ConformanceService
	calculator  *MetricsCalculator
	cfg         SessionConfig

	mu        sync.RWMutex
	sessions  map[string]*Session
	locations map[string]domain.LocationSample
}

// NewSessionService creates a SessionService.
func NewSessionService(routes *RouteService, conformance *ConformanceService, calculator *MetricsCalculator, cfg SessionConfig) *SessionService {
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = editor.DefaultHistoryLimit
	}
	if cfg.InsertPolicy == "" {
		cfg.InsertPolicy = mapsync.InsertTail
	}
	return &SessionService{
		routes:      routes,
		conformance: conformance,
		calculator:  calculator,
		cfg:         cfg,
		sessions:    make(map[string]*Session),
		locations:   make(map[string]domain.LocationSample),
	}
}

// InsertPolicy is where points without an explicit index are added.
func (s *SessionService) InsertPolicy() mapsync.InsertPolicy { return s.cfg.InsertPolicy }

// Open starts a session on a new or stored route.
func (s *SessionService) Open(ctx context.Context, opts OpenOptions) (*Session, error) {
	var route *editor.Route
	if opts.RouteID != "" {
		r, err := s.routes.Load(ctx, opts.RouteID)
		if err != nil {
			return nil, err
		}
		route = r
	}

	now := time.Now()
	sess := &Session{
		ID:       uuid.NewString(),
		DeviceID: opts.DeviceID,
		engine:   editor.NewEngine(route, editor.WithHistoryLimit(s.cfg.HistoryLimit)),
		machine:  editor.NewMachine(),
		layers:   make(map[uint64]*mapsync.Layer),
		opened:   now,
		touched:  now,
	}
	sess.engine.Subscribe(func(c editor.Change) {
		metrics.EditOperations.WithLabelValues(string(c.Kind)).Inc()
	})

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()

	slog.Info("session opened", "session_id", sess.ID, "route_id", sess.engine.Route().ID(), "points", sess.engine.Route().Len())
	return sess, nil
}

// Get returns an open session.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

// List returns the open sessions ordered by opening time.
func (s *SessionService) List() []SessionView {
	s.mu.RLock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	views := make([]SessionView, 0, len(all))
	for _, sess := range all {
		views = append(views, sess.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Opened.Before(views[j].Opened) })
	return views
}

// Close disposes every map layer of the session and forgets it.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	metrics.ActiveSessions.Dec()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	var errs []error
	for key, l := range sess.layers {
		errs = append(errs, l.Dispose())
		delete(sess.layers, key)
	}
	return errors.Join(errs...)
}

// EvictIdle closes sessions untouched for longer than the idle timeout.
func (s *SessionService) EvictIdle(now time.Time) int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	s.mu.RLock()
	var stale []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if now.Sub(sess.touched) > s.cfg.IdleTimeout {
			stale = append(stale, id)
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, id := range stale {
		if err := s.Close(id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("evict session", "session_id", id, "error", err)
		}
	}
	return len(stale)
}

// Attach binds a map surface to the session. The returned function
// disposes the layer.
func (s *SessionService) Attach(id string, surface mapsync.Surface, opts ...mapsync.LayerOption) (*mapsync.Layer, func() error, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	opts = append([]mapsync.LayerOption{mapsync.WithInsertPolicy(s.cfg.InsertPolicy)}, opts...)
	layer, err := mapsync.NewLayer(sess.engine, surface, opts...)
	if err != nil {
		return nil, nil, err
	}
	sess.nextLayer++
	key := sess.nextLayer
	sess.layers[key] = layer

	detach := func() error {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		delete(sess.layers, key)
		return layer.Dispose()
	}
	return layer, detach, nil
}

// Gesture applies a surface gesture to a layer under the session lock.
func (s *SessionService) Gesture(ctx context.Context, id string, layer *mapsync.Layer, g mapsync.Gesture) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	var before, after editor.Snapshot
	err = sess.Edit(func(e *editor.Engine) error {
		before = e.Route().Snapshot()
		err := layer.HandleGesture(g)
		after = e.Route().Snapshot()
		return err
	})
	if err == nil && after.Revision != before.Revision {
		s.routes.PublishEdited(ctx, after.ID, len(after.RawPoints), after.Revision)
	}
	return err
}

// Apply runs one edit and announces it.
func (s *SessionService) Apply(ctx context.Context, id string, fn func(e *editor.Engine) error) (SessionView, error) {
	sess, err := s.Get(id)
	if err != nil {
		return SessionView{}, err
	}
	var (
		rev  uint64
		view SessionView
	)
	err = func() error {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.touched = time.Now()
		rev = sess.engine.Route().Revision()
		err := fn(sess.engine)
		view = sess.viewLocked()
		return err
	}()
	if err != nil {
		return view, err
	}
	if view.Route.Revision != rev {
		s.routes.PublishEdited(ctx, view.Route.ID, len(view.Route.RawPoints), view.Route.Revision)
	}
	return view, nil
}

// Snap conforms the session's raw path. A successful match replaces the
// snapped path; a fallback leaves it absent and reports warnings. Edits
// made while the call was in flight make the result stale.
func (s *SessionService) Snap(ctx context.Context, id string) (*SnapResult, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	route := sess.engine.Route()
	points := route.RawPoints()
	rev := route.Revision()
	routeID := route.ID()
	if len(points) < domain.MinPathPoints {
		sess.mu.Unlock()
		return nil, domain.NewValidationError("points", fmt.Sprintf("snapping needs at least %d points", domain.MinPathPoints))
	}
	sess.begin("snap")
	sess.mu.Unlock()

	res, err := s.conformance.Snap(ctx, routeID, points)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err != nil {
		if !errors.Is(err, domain.ErrSuperseded) {
			_ = sess.machine.Fail(err)
		}
		return nil, err
	}
	if !res.Fallback {
		if err := sess.engine.SetSnapped(res.Points, rev); err != nil {
			_ = sess.machine.Reset()
			return nil, err
		}
	}
	_ = sess.machine.Succeed()
	return res, nil
}

// Optimize computes the shortest visiting order for the session's leading
// points. With apply set, a non-fallback order is applied as one undoable
// reorder.
func (s *SessionService) Optimize(ctx context.Context, id string, opts OptimizeOptions, apply bool) (*OptimizeResult, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	route := sess.engine.Route()
	points := route.RawPoints()
	rev := route.Revision()
	routeID := route.ID()
	if len(points) < domain.MinPathPoints {
		sess.mu.Unlock()
		return nil, domain.NewValidationError("points", fmt.Sprintf("optimizing needs at least %d points", domain.MinPathPoints))
	}
	sess.begin("optimize")
	sess.mu.Unlock()

	res, err := s.conformance.Optimize(ctx, routeID, points, opts)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err != nil {
		if !errors.Is(err, domain.ErrSuperseded) {
			_ = sess.machine.Fail(err)
		}
		return nil, err
	}
	if apply && !res.Fallback {
		if sess.engine.Route().Revision() != rev {
			_ = sess.machine.Reset()
			return nil, fmt.Errorf("optimize %s: %w", routeID, domain.ErrSuperseded)
		}
		if err := sess.engine.Reorder(res.Order); err != nil {
			_ = sess.machine.Fail(err)
			return nil, err
		}
	}
	_ = sess.machine.Succeed()
	return res, nil
}

// Simplify replaces the raw path with its Douglas-Peucker reduction as one
// undoable edit. A nil tolerance uses the configured default; zero drops only
// collinear points. With meters set the tolerance is in meters rather than
// degrees.
func (s *SessionService) Simplify(ctx context.Context, id string, tolerance *float64, meters bool) (SessionView, int, error) {
	tol := s.cfg.SimplifyTolerance
	if tolerance == nil {
		meters = false
	} else {
		if *tolerance < 0 {
			return SessionView{}, 0, domain.NewValidationError("tolerance", "tolerance must not be negative")
		}
		tol = *tolerance
	}
	removed := 0
	view, err := s.Apply(ctx, id, func(e *editor.Engine) error {
		points := e.Route().RawPoints()
		if len(points) <= domain.MinPathPoints {
			return nil
		}
		var simplified []domain.GeoPoint
		if meters {
			simplified = geospatial.SimplifyMeters(points, tol)
		} else {
			simplified = geospatial.Simplify(points, tol)
		}
		removed = len(points) - len(simplified)
		return e.Replace(simplified)
	})
	return view, removed, err
}

// Metrics computes figures for the displayed path, framing the region
// around the session device's latest location when one is known.
func (s *SessionService) Metrics(id string) (RouteMetrics, error) {
	sess, err := s.Get(id)
	if err != nil {
		return RouteMetrics{}, err
	}
	var user *domain.GeoPoint
	if sess.DeviceID != "" {
		if sample, ok := s.LatestLocation(sess.DeviceID); ok {
			user = &sample.Location
		}
	}

	sess.mu.Lock()
	route := sess.engine.Route()
	points := route.DisplayPoints()
	snapped := route.HasSnapped()
	sess.mu.Unlock()

	return s.calculator.Compute(points, snapped, user), nil
}

// Save validates and persists the session's route.
func (s *SessionService) Save(ctx context.Context, id string) (*domain.RouteRecord, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touched = time.Now()
	return s.routes.Save(ctx, sess.engine.Route())
}

// ObserveLocation records the latest sample per device.
func (s *SessionService) ObserveLocation(_ context.Context, sample *domain.LocationSample) error {
	if sample == nil || sample.DeviceID == "" {
		return domain.NewValidationError("device_id", "location sample without device")
	}
	metrics.LocationSamples.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.locations[sample.DeviceID]; ok && prev.Time.After(sample.Time) {
		return nil
	}
	s.locations[sample.DeviceID] = *sample
	return nil
}

// LatestLocation returns the newest sample seen for a device.
func (s *SessionService) LatestLocation(deviceID string) (domain.LocationSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.locations[deviceID]
	return sample, ok
}
