package mapsync

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/editor"
)

type marker struct {
	handle   Handle
	at       domain.GeoPoint
	selected bool
}

type line struct {
	handle Handle
	points []domain.GeoPoint
	opts   LineOptions
}

// Layer owns the markers and line drawn for one route. Markers are kept in
// a table indexed by point position; every surface object the layer creates
// is released by Dispose.
//
// A Layer is driven by the same caller that drives its engine and is not
// safe for concurrent use.
type Layer struct {
	engine  *editor.Engine
	surface Surface
	logger  *slog.Logger

	mode       Mode
	insert     InsertPolicy
	onActivate func(routeID string)

	markers  []marker
	line     *line
	selected int
	active   bool
	next     uint64

	unsubscribe func()
	disposeOnce sync.Once
	disposed    bool
}

// LayerOption configures a Layer.
type LayerOption func(*Layer)

// WithInsertPolicy sets where add-point clicks insert. Default InsertTail.
func WithInsertPolicy(p InsertPolicy) LayerOption {
	return func(l *Layer) { l.insert = p }
}

// WithMode sets the initial interaction mode. Default ModeView.
func WithMode(m Mode) LayerOption {
	return func(l *Layer) { l.mode = m }
}

// WithActivateFunc is called when the route line is clicked in ModeSelect.
func WithActivateFunc(fn func(routeID string)) LayerOption {
	return func(l *Layer) { l.onActivate = fn }
}

// WithLogger sets the logger used for render failures inside change callbacks.
func WithLogger(logger *slog.Logger) LayerOption {
	return func(l *Layer) { l.logger = logger }
}

// NewLayer draws the engine's route on surface and re-renders after every
// engine change until Dispose.
func NewLayer(engine *editor.Engine, surface Surface, opts ...LayerOption) (*Layer, error) {
	l := &Layer{
		engine:   engine,
		surface:  surface,
		logger:   slog.Default(),
		mode:     ModeView,
		insert:   InsertTail,
		selected: -1,
	}
	for _, o := range opts {
		o(l)
	}

	if err := l.Render(); err != nil {
		_ = l.Dispose()
		return nil, fmt.Errorf("initial render: %w", err)
	}
	l.unsubscribe = engine.Subscribe(func(c editor.Change) {
		if err := l.Render(); err != nil {
			l.logger.Warn("map render failed", "route_id", c.RouteID, "change", c.Kind, "error", err)
		}
	})
	return l, nil
}

func (l *Layer) routeID() string { return l.engine.Route().ID() }

func (l *Layer) newHandle(kind string) Handle {
	l.next++
	return Handle(fmt.Sprintf("%s/%s%d", l.routeID(), kind, l.next))
}

// Render brings the surface in line with the route: markers beyond the
// point count are removed, new points get markers, moved points are
// repositioned, and the line is redrawn only when its geometry or style
// changed. Surface errors are collected; the table only records objects
// the surface accepted.
func (l *Layer) Render() error {
	if l.disposed {
		return ErrDisposed
	}
	route := l.engine.Route()
	points := route.RawPoints()
	var errs []error

	for len(l.markers) > len(points) {
		last := len(l.markers) - 1
		if err := l.surface.RemoveMarker(l.markers[last].handle); err != nil {
			errs = append(errs, err)
			break
		}
		l.markers = l.markers[:last]
	}
	if l.selected >= len(points) {
		l.selected = -1
	}

	// Surplus markers left by a failed removal are retried next render.
	for i := 0; i < min(len(l.markers), len(points)); i++ {
		m := &l.markers[i]
		if m.at != points[i] {
			if err := l.surface.MoveMarker(m.handle, points[i]); err != nil {
				errs = append(errs, err)
				continue
			}
			m.at = points[i]
		}
		if want := i == l.selected; m.selected != want {
			if err := l.surface.StyleMarker(m.handle, l.pointOptions(i, want)); err != nil {
				errs = append(errs, err)
				continue
			}
			m.selected = want
		}
	}

	for i := len(l.markers); i < len(points); i++ {
		h := l.newHandle("m")
		sel := i == l.selected
		if err := l.surface.CreateMarker(h, points[i], l.pointOptions(i, sel)); err != nil {
			errs = append(errs, err)
			break
		}
		l.markers = append(l.markers, marker{handle: h, at: points[i], selected: sel})
	}

	if err := l.renderLine(route); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (l *Layer) pointOptions(i int, selected bool) MarkerOptions {
	return MarkerOptions{
		Kind:      MarkerPoint,
		Label:     fmt.Sprintf("%d", i+1),
		Selected:  selected,
		Draggable: true,
	}
}

func (l *Layer) renderLine(route *editor.Route) error {
	display := route.DisplayPoints()
	opts := LineOptions{Color: route.Color(), Snapped: route.HasSnapped(), Active: l.active}

	if len(display) < domain.MinPathPoints {
		if l.line == nil {
			return nil
		}
		if err := l.surface.RemoveLine(l.line.handle); err != nil {
			return err
		}
		l.line = nil
		return nil
	}

	if l.line != nil && l.line.opts == opts && domain.EqualPoints(l.line.points, display) {
		return nil
	}
	h := Handle(l.routeID() + "/line")
	if l.line != nil {
		h = l.line.handle
	}
	if err := l.surface.DrawLine(h, display, opts); err != nil {
		return err
	}
	l.line = &line{handle: h, points: display, opts: opts}
	return nil
}

// Select highlights the marker at index; -1 clears the selection.
func (l *Layer) Select(index int) error {
	if l.disposed {
		return ErrDisposed
	}
	if index < -1 || index >= len(l.markers) {
		return fmt.Errorf("select %d of %d: %w", index, len(l.markers), domain.ErrIndexOutOfRange)
	}
	l.selected = index
	return l.Render()
}

// Selected returns the highlighted point index or -1.
func (l *Layer) Selected() int { return l.selected }

// SetMode changes how clicks are interpreted.
func (l *Layer) SetMode(m Mode) { l.mode = m }

// Mode returns the current interaction mode.
func (l *Layer) Mode() Mode { return l.mode }

// Active reports whether the route was designated active by a line click.
func (l *Layer) Active() bool { return l.active }

// SetActive marks the route line active or inactive.
func (l *Layer) SetActive(active bool) error {
	if l.disposed {
		return ErrDisposed
	}
	l.active = active
	return l.Render()
}

// HandleGesture applies a surface gesture. Drags update the dragged point,
// marker clicks select, a line click in ModeSelect activates the route and
// a canvas click in ModeAddPoint inserts a point. Gestures on handles the
// layer does not own are ignored.
func (l *Layer) HandleGesture(g Gesture) error {
	if l.disposed {
		return ErrDisposed
	}

	switch g.Type {
	case GestureMarkerDrag:
		idx := l.indexOf(g.Handle)
		if idx < 0 {
			return nil
		}
		return l.engine.Update(idx, g.Point)

	case GestureMarkerClick:
		idx := l.indexOf(g.Handle)
		if idx < 0 {
			return nil
		}
		return l.Select(idx)

	case GestureLineClick:
		if l.mode != ModeSelect || l.line == nil || g.Handle != l.line.handle {
			return nil
		}
		if err := l.SetActive(true); err != nil {
			return err
		}
		if l.onActivate != nil {
			l.onActivate(l.routeID())
		}
		return nil

	case GestureCanvasClick:
		if l.mode != ModeAddPoint {
			if l.selected >= 0 {
				return l.Select(-1)
			}
			return nil
		}
		if l.insert == InsertHead {
			return l.engine.Prepend(g.Point)
		}
		return l.engine.Append(g.Point)
	}
	return fmt.Errorf("unknown gesture %q", g.Type)
}

func (l *Layer) indexOf(h Handle) int {
	for i, m := range l.markers {
		if m.handle == h {
			return i
		}
	}
	return -1
}

// Handles lists every surface object the layer currently owns.
func (l *Layer) Handles() []Handle {
	out := make([]Handle, 0, len(l.markers)+1)
	for _, m := range l.markers {
		out = append(out, m.handle)
	}
	if l.line != nil {
		out = append(out, l.line.handle)
	}
	return out
}

// Dispose stops following the engine and removes every marker and the line
// from the surface. It is safe to call more than once.
func (l *Layer) Dispose() error {
	var errs []error
	l.disposeOnce.Do(func() {
		if l.unsubscribe != nil {
			l.unsubscribe()
		}
		for i := len(l.markers) - 1; i >= 0; i-- {
			if err := l.surface.RemoveMarker(l.markers[i].handle); err != nil {
				errs = append(errs, err)
			}
		}
		if l.line != nil {
			if err := l.surface.RemoveLine(l.line.handle); err != nil {
				errs = append(errs, err)
			}
		}
		l.markers = nil
		l.line = nil
		l.selected = -1
		l.disposed = true
	})
	return errors.Join(errs...)
}
