package domain

import "github.com/paulmach/orb"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LonLat returns the point in map-surface order.
func (p GeoPoint) LonLat() [2]float64 { return [2]float64{p.Lon, p.Lat} }

// Orb converts the point to an orb.Point (X = longitude, Y = latitude).
func (p GeoPoint) Orb() orb.Point { return orb.Point{p.Lon, p.Lat} }

// PointFromOrb converts an orb.Point back to a GeoPoint.
func PointFromOrb(p orb.Point) GeoPoint { return GeoPoint{Lat: p.Lat(), Lon: p.Lon()} }

// GeoLineString represents an ordered sequence of geographic coordinates.
type GeoLineString struct {
	Coordinates []GeoPoint `json:"coordinates"`
}

// Orb converts the path to an orb.LineString.
func (l GeoLineString) Orb() orb.LineString {
	return ToLineString(l.Coordinates)
}

// ToLineString converts points to an orb.LineString.
func ToLineString(points []GeoPoint) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = p.Orb()
	}
	return ls
}

// FromLineString converts an orb.LineString to points.
func FromLineString(ls orb.LineString) []GeoPoint {
	points := make([]GeoPoint, len(ls))
	for i, p := range ls {
		points[i] = PointFromOrb(p)
	}
	return points
}

// ClonePoints returns a deep copy of points. A nil slice stays nil.
func ClonePoints(points []GeoPoint) []GeoPoint {
	if points == nil {
		return nil
	}
	out := make([]GeoPoint, len(points))
	copy(out, points)
	return out
}

// EqualPoints reports whether two paths are identical point by point.
func EqualPoints(a, b []GeoPoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}
