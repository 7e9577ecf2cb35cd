// Package mapsync keeps a map rendering surface consistent with a route
// being edited and turns surface gestures back into edits.
package mapsync

import (
	"errors"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// ErrDisposed is returned by a layer after Dispose.
var ErrDisposed = errors.New("map layer disposed")

// Handle identifies an object created on a Surface.
type Handle string

// MarkerKind distinguishes route point markers from POI pins.
type MarkerKind string

const (
	MarkerPoint MarkerKind = "point"
	MarkerPOI   MarkerKind = "poi"
)

// MarkerOptions describe how a marker is drawn.
type MarkerOptions struct {
	Kind      MarkerKind `json:"kind"`
	Label     string     `json:"label,omitempty"`
	Category  string     `json:"category,omitempty"`
	Selected  bool       `json:"selected,omitempty"`
	Draggable bool       `json:"draggable,omitempty"`
}

// LineOptions describe how a route line is drawn.
type LineOptions struct {
	Color   string `json:"color,omitempty"`
	Snapped bool   `json:"snapped"`
	Active  bool   `json:"active"`
}

// Surface is the map being drawn on. Coordinates are (longitude, latitude)
// on the wire; implementations must not call back into a layer.
type Surface interface {
	CreateMarker(h Handle, at domain.GeoPoint, opts MarkerOptions) error
	MoveMarker(h Handle, to domain.GeoPoint) error
	StyleMarker(h Handle, opts MarkerOptions) error
	RemoveMarker(h Handle) error
	DrawLine(h Handle, points []domain.GeoPoint, opts LineOptions) error
	RemoveLine(h Handle) error
}

// GestureType names a user interaction reported by the surface.
type GestureType string

const (
	GestureMarkerDrag  GestureType = "marker_drag"
	GestureMarkerClick GestureType = "marker_click"
	GestureLineClick   GestureType = "line_click"
	GestureCanvasClick GestureType = "canvas_click"
)

// Gesture is a click or drag with its coordinate payload.
type Gesture struct {
	Type   GestureType     `json:"type"`
	Handle Handle          `json:"handle,omitempty"`
	Point  domain.GeoPoint `json:"point"`
}

// Mode decides what a click means.
type Mode string

const (
	ModeView     Mode = "view"
	ModeSelect   Mode = "select"
	ModeAddPoint Mode = "add_point"
)

// ParseMode accepts the Mode names.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeView, ModeSelect, ModeAddPoint:
		return m, true
	}
	return "", false
}

// InsertPolicy decides where a canvas click in add-point mode lands.
type InsertPolicy string

const (
	InsertTail InsertPolicy = "tail"
	InsertHead InsertPolicy = "head"
)
