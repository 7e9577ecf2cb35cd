// Package editor holds the mutable route aggregate and the engine that edits it.
//
// A Route is only ever mutated through an Engine. Read accessors return copies,
// so callers can never alias the point slices kept in history.
package editor

import (
	"github.com/google/uuid"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// Route is the aggregate edited during a session: the raw drawn path, its
// road-conformed derivative, display metadata and the undo/redo stacks.
type Route struct {
	id       string
	raw      []domain.GeoPoint
	snapped  []domain.GeoPoint // nil means absent
	color    string
	name     string
	code     string
	regionID *string

	history  [][]domain.GeoPoint
	future   [][]domain.GeoPoint
	revision uint64
	isNew    bool
}

// NewRoute creates an empty route with a locally generated identifier.
func NewRoute() *Route {
	return &Route{id: uuid.NewString(), isNew: true}
}

// Seed describes a route pre-populated from a persisted record.
type Seed struct {
	ID       string
	Name     string
	Code     string
	Color    string
	RegionID *string
	Raw      []domain.GeoPoint
	Snapped  []domain.GeoPoint
}

// SeedRoute creates a route from persisted state. History starts empty.
func SeedRoute(s Seed) *Route {
	r := &Route{
		id:      s.ID,
		raw:     domain.ClonePoints(s.Raw),
		snapped: domain.ClonePoints(s.Snapped),
		color:   s.Color,
		name:    s.Name,
		code:    s.Code,
	}
	if r.id == "" {
		r.id = uuid.NewString()
		r.isNew = true
	}
	if r.raw == nil {
		r.raw = []domain.GeoPoint{}
	}
	if s.RegionID != nil {
		id := *s.RegionID
		r.regionID = &id
	}
	return r
}

func (r *Route) ID() string    { return r.id }
func (r *Route) Name() string  { return r.name }
func (r *Route) Code() string  { return r.code }
func (r *Route) Color() string { return r.color }

// IsNew reports whether the route has never been persisted.
func (r *Route) IsNew() bool { return r.isNew }

// RegionID returns the assigned region, or nil.
func (r *Route) RegionID() *string {
	if r.regionID == nil {
		return nil
	}
	id := *r.regionID
	return &id
}

// RawPoints returns a copy of the drawn path.
func (r *Route) RawPoints() []domain.GeoPoint { return domain.ClonePoints(r.raw) }

// SnappedPoints returns a copy of the road-conformed path, or nil when absent.
func (r *Route) SnappedPoints() []domain.GeoPoint { return domain.ClonePoints(r.snapped) }

// HasSnapped reports whether a snapped path is present.
func (r *Route) HasSnapped() bool { return r.snapped != nil }

// DisplayPoints returns the path that should be drawn and measured:
// the snapped path when present, otherwise the raw path.
func (r *Route) DisplayPoints() []domain.GeoPoint {
	if r.snapped != nil {
		return domain.ClonePoints(r.snapped)
	}
	return domain.ClonePoints(r.raw)
}

// Len returns the number of raw points.
func (r *Route) Len() int { return len(r.raw) }

// Revision increases by one on every change to the raw path.
func (r *Route) Revision() uint64 { return r.revision }

// HistoryLen returns the number of undo snapshots.
func (r *Route) HistoryLen() int { return len(r.history) }

// FutureLen returns the number of redo snapshots.
func (r *Route) FutureLen() int { return len(r.future) }

// CanUndo reports whether Undo would change the route.
func (r *Route) CanUndo() bool { return len(r.history) > 0 }

// CanRedo reports whether Redo would change the route.
func (r *Route) CanRedo() bool { return len(r.future) > 0 }

// MarkPersisted records the identifier assigned by the persistence service.
func (r *Route) MarkPersisted(id string) {
	if id != "" {
		r.id = id
	}
	r.isNew = false
}

// Snapshot is a read-only view of the aggregate.
type Snapshot struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Code       string            `json:"code"`
	Color      string            `json:"color"`
	RegionID   *string           `json:"region_id,omitempty"`
	RawPoints  []domain.GeoPoint `json:"raw_points"`
	Snapped    []domain.GeoPoint `json:"snapped_points,omitempty"`
	Revision   uint64            `json:"revision"`
	CanUndo    bool              `json:"can_undo"`
	CanRedo    bool              `json:"can_redo"`
	IsNew      bool              `json:"is_new"`
	HistoryLen int               `json:"history_len"`
}

// Snapshot returns a copy of the aggregate's visible state.
func (r *Route) Snapshot() Snapshot {
	return Snapshot{
		ID:         r.id,
		Name:       r.name,
		Code:       r.code,
		Color:      r.color,
		RegionID:   r.RegionID(),
		RawPoints:  r.RawPoints(),
		Snapped:    r.SnappedPoints(),
		Revision:   r.revision,
		CanUndo:    r.CanUndo(),
		CanRedo:    r.CanRedo(),
		IsNew:      r.isNew,
		HistoryLen: len(r.history),
	}
}
