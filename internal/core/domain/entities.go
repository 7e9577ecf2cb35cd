package domain

import (
	"encoding/json"
	"time"
)

// RouteStatus is the lifecycle state of a persisted route record.
type RouteStatus string

const (
	RouteStatusDraft    RouteStatus = "draft"
	RouteStatusActive   RouteStatus = "active"
	RouteStatusArchived RouteStatus = "archived"
)

// RouteRecord is a route as stored by the persistence service.
// Geometry columns are kept raw because producers disagree on their encoding;
// they are decoded through the geometry extractor.
type RouteRecord struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Color           string          `json:"color"`
	Geometry        json.RawMessage `json:"geometry"`
	SnappedGeometry json.RawMessage `json:"snapped_geometry,omitempty"`
	LengthMeters    float64         `json:"length_meters"`
	RegionID        *string         `json:"region_id,omitempty"`
	Status          RouteStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Region is an operating area routes can be assigned to.
type Region struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	IsActive bool   `json:"is_active"`
}

// POI is a labeled map pin owned by the persistence service.
type POI struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Location GeoPoint       `json:"location"`
	RegionID *string        `json:"region_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LocationSample is a periodic position reported by the external location provider.
type LocationSample struct {
	DeviceID string    `json:"device_id"`
	Location GeoPoint  `json:"location"`
	Accuracy float64   `json:"accuracy,omitempty"` // meters
	Time     time.Time `json:"time"`
}

// RouteEvent is published whenever a route is edited or saved.
type RouteEvent struct {
	RouteID    string    `json:"route_id"`
	Kind       string    `json:"kind"` // "edited" | "saved" | "snapped"
	PointCount int       `json:"point_count"`
	Revision   uint64    `json:"revision"`
	Time       time.Time `json:"time"`
}
