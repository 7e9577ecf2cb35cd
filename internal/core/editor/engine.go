package editor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// DefaultHistoryLimit bounds the undo stack when no limit is configured.
const DefaultHistoryLimit = 100

// ChangeKind names what an engine operation did to the route.
type ChangeKind string

const (
	ChangeInsert   ChangeKind = "insert"
	ChangeUpdate   ChangeKind = "update"
	ChangeDelete   ChangeKind = "delete"
	ChangeReorder  ChangeKind = "reorder"
	ChangeReplace  ChangeKind = "replace"
	ChangeUndo     ChangeKind = "undo"
	ChangeRedo     ChangeKind = "redo"
	ChangeSnapped  ChangeKind = "snapped"
	ChangeMetadata ChangeKind = "metadata"
)

// Change is delivered to subscribers after every successful mutation.
type Change struct {
	Kind     ChangeKind
	RouteID  string
	Index    int // affected point index, -1 when not applicable
	Revision uint64
	Points   int
}

// Engine applies point edits to a Route and keeps its undo/redo stacks.
// An Engine is not safe for concurrent use; callers serialize access.
type Engine struct {
	route        *Route
	historyLimit int

	mu        sync.Mutex // guards listeners only
	listeners map[int]func(Change)
	nextID    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistoryLimit caps the number of undo snapshots. Values <= 0 mean unbounded.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) { e.historyLimit = n }
}

// NewEngine wraps route. A nil route starts a new empty one.
func NewEngine(route *Route, opts ...Option) *Engine {
	if route == nil {
		route = NewRoute()
	}
	e := &Engine{
		route:        route,
		historyLimit: DefaultHistoryLimit,
		listeners:    make(map[int]func(Change)),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Route returns the aggregate being edited.
func (e *Engine) Route() *Route { return e.route }

// Subscribe registers fn to be called after each change. The returned
// function removes the subscription.
func (e *Engine) Subscribe(fn func(Change)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *Engine) notify(kind ChangeKind, index int) {
	c := Change{
		Kind:     kind,
		RouteID:  e.route.id,
		Index:    index,
		Revision: e.route.revision,
		Points:   len(e.route.raw),
	}
	e.mu.Lock()
	fns := make([]func(Change), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// commit records the current path in history, drops the redo stack and
// installs next as the new raw path.
func (e *Engine) commit(next []domain.GeoPoint) {
	r := e.route
	r.history = append(r.history, domain.ClonePoints(r.raw))
	if e.historyLimit > 0 && len(r.history) > e.historyLimit {
		// Shift in place so dropped snapshots are released.
		n := copy(r.history, r.history[len(r.history)-e.historyLimit:])
		clear(r.history[n:])
		r.history = r.history[:n]
	}
	r.future = nil
	r.raw = next
	r.snapped = nil
	r.revision++
}

// Insert places p at index, shifting later points back. index may equal Len()
// to append.
func (e *Engine) Insert(index int, p domain.GeoPoint) error {
	r := e.route
	if index < 0 || index > len(r.raw) {
		return fmt.Errorf("insert at %d of %d: %w", index, len(r.raw), domain.ErrIndexOutOfRange)
	}
	next := make([]domain.GeoPoint, 0, len(r.raw)+1)
	next = append(next, r.raw[:index]...)
	next = append(next, p)
	next = append(next, r.raw[index:]...)

	e.commit(next)
	e.notify(ChangeInsert, index)
	return nil
}

// Append adds p at the tail of the path.
func (e *Engine) Append(p domain.GeoPoint) error {
	return e.Insert(len(e.route.raw), p)
}

// Prepend adds p at the head of the path.
func (e *Engine) Prepend(p domain.GeoPoint) error {
	return e.Insert(0, p)
}

// Update moves the point at index to p. Moving a point onto its current
// position is a no-op and records no history.
func (e *Engine) Update(index int, p domain.GeoPoint) error {
	r := e.route
	if index < 0 || index >= len(r.raw) {
		return fmt.Errorf("update %d of %d: %w", index, len(r.raw), domain.ErrIndexOutOfRange)
	}
	if r.raw[index] == p {
		return nil
	}
	next := domain.ClonePoints(r.raw)
	next[index] = p

	e.commit(next)
	e.notify(ChangeUpdate, index)
	return nil
}

// Delete removes the point at index. Removing the last point is allowed;
// an empty path is a valid intermediate state.
func (e *Engine) Delete(index int) error {
	r := e.route
	if index < 0 || index >= len(r.raw) {
		return fmt.Errorf("delete %d of %d: %w", index, len(r.raw), domain.ErrIndexOutOfRange)
	}
	next := make([]domain.GeoPoint, 0, len(r.raw)-1)
	next = append(next, r.raw[:index]...)
	next = append(next, r.raw[index+1:]...)

	e.commit(next)
	e.notify(ChangeDelete, index)
	return nil
}

// Reorder rearranges the leading points so that position i holds the point
// previously at order[i]. Points beyond len(order) keep their relative order
// at the tail. order must be a permutation of 0..len(order)-1.
func (e *Engine) Reorder(order []int) error {
	r := e.route
	if len(order) > len(r.raw) {
		return domain.NewValidationError("order", fmt.Sprintf("permutation of %d exceeds %d points", len(order), len(r.raw)))
	}
	seen := make([]bool, len(order))
	for _, idx := range order {
		if idx < 0 || idx >= len(order) || seen[idx] {
			return domain.NewValidationError("order", "not a permutation")
		}
		seen[idx] = true
	}

	next := make([]domain.GeoPoint, 0, len(r.raw))
	for _, idx := range order {
		next = append(next, r.raw[idx])
	}
	next = append(next, r.raw[len(order):]...)
	if domain.EqualPoints(next, r.raw) {
		return nil
	}

	e.commit(next)
	e.notify(ChangeReorder, -1)
	return nil
}

// Replace swaps the whole path in one undoable step (e.g. after simplification).
func (e *Engine) Replace(points []domain.GeoPoint) error {
	if domain.EqualPoints(points, e.route.raw) {
		return nil
	}
	next := domain.ClonePoints(points)
	if next == nil {
		next = []domain.GeoPoint{}
	}
	e.commit(next)
	e.notify(ChangeReplace, -1)
	return nil
}

// Undo restores the most recent history snapshot. It reports false and does
// nothing when there is no history.
func (e *Engine) Undo() bool {
	r := e.route
	if len(r.history) == 0 {
		return false
	}
	last := len(r.history) - 1
	prev := r.history[last]
	r.history = r.history[:last]
	r.future = append(r.future, r.raw)
	r.raw = prev
	r.snapped = nil
	r.revision++

	e.notify(ChangeUndo, -1)
	return true
}

// Redo re-applies the most recently undone snapshot. It reports false and
// does nothing when there is nothing to redo.
func (e *Engine) Redo() bool {
	r := e.route
	if len(r.future) == 0 {
		return false
	}
	last := len(r.future) - 1
	next := r.future[last]
	r.future = r.future[:last]
	r.history = append(r.history, r.raw)
	r.raw = next
	r.snapped = nil
	r.revision++

	e.notify(ChangeRedo, -1)
	return true
}

// SetSnapped installs a road-conformed path computed from the raw path at
// revision. A result computed against an older revision is discarded.
func (e *Engine) SetSnapped(points []domain.GeoPoint, revision uint64) error {
	r := e.route
	if revision != r.revision {
		slog.Debug("discarding stale snapped path",
			"route_id", r.id, "computed_at", revision, "current", r.revision)
		return fmt.Errorf("snapped at revision %d, route at %d: %w", revision, r.revision, domain.ErrSuperseded)
	}
	r.snapped = domain.ClonePoints(points)
	if r.snapped == nil {
		r.snapped = []domain.GeoPoint{}
	}
	e.notify(ChangeSnapped, -1)
	return nil
}

// ClearSnapped drops the snapped path without touching raw history.
func (e *Engine) ClearSnapped() {
	if e.route.snapped == nil {
		return
	}
	e.route.snapped = nil
	e.notify(ChangeSnapped, -1)
}

// Metadata holds the display fields of a route. Nil fields are left unchanged.
type Metadata struct {
	Name     *string
	Code     *string
	Color    *string
	RegionID **string
}

// SetMetadata updates display fields. Metadata is not part of point history.
func (e *Engine) SetMetadata(m Metadata) {
	r := e.route
	if m.Name != nil {
		r.name = *m.Name
	}
	if m.Code != nil {
		r.code = *m.Code
	}
	if m.Color != nil {
		r.color = *m.Color
	}
	if m.RegionID != nil {
		if *m.RegionID == nil {
			r.regionID = nil
		} else {
			id := **m.RegionID
			r.regionID = &id
		}
	}
	e.notify(ChangeMetadata, -1)
}
