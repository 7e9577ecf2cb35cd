package geospatial

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/routekit/internal/core/domain"
)

const maxExtractDepth = 32

// ParseError reports input the extractor could not interpret. It is never
// fatal: Extract logs it and returns an empty path.
type ParseError struct {
	Path   string // location inside the input, e.g. "$.features[2].geometry"
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "geometry parse: " + e.Reason
	}
	return fmt.Sprintf("geometry parse at %s: %s", e.Path, e.Reason)
}

// Extractor flattens heterogeneous geometry encodings into one ordered path.
type Extractor struct {
	order  AxisOrder
	logger *slog.Logger
}

// NewExtractor creates an extractor. A nil logger uses slog.Default().
func NewExtractor(order AxisOrder, logger *slog.Logger) *Extractor {
	if order == "" {
		order = AxisAuto
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{order: order, logger: logger}
}

var defaultExtractor = NewExtractor(AxisAuto, nil)

// Extract flattens input with automatic axis detection.
func Extract(input any) []domain.GeoPoint {
	return defaultExtractor.Extract(input)
}

// Extract flattens input. On failure it logs the ParseError and returns an
// empty, non-nil path so callers can fall back to defaults.
func (x *Extractor) Extract(input any) []domain.GeoPoint {
	points, err := x.Parse(input)
	if err != nil {
		x.logger.Warn("geometry extraction failed", "error", err)
		return []domain.GeoPoint{}
	}
	return points
}

// Parse flattens input and returns a *ParseError when nothing usable is
// found. Accepted shapes, unwrapped one layer at a time:
//
//   - a bare list of pairs, or a single pair
//   - GeoJSON LineString, MultiLineString (concatenated), Point, MultiPoint
//   - Feature, FeatureCollection, GeometryCollection
//   - any object carrying geometry, coordinates, path or points
//   - named points {"lat": .., "lng": ..}
//   - JSON text of any of the above
//   - an encoded polyline string
//   - orb and geojson values, []domain.GeoPoint
func (x *Extractor) Parse(input any) ([]domain.GeoPoint, error) {
	out, err := x.walk(input, "$", 0)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.GeoPoint{}
	}
	return out, nil
}

func (x *Extractor) walk(v any, path string, depth int) ([]domain.GeoPoint, error) {
	if depth > maxExtractDepth {
		return nil, &ParseError{Path: path, Reason: "nesting too deep"}
	}

	switch t := v.(type) {
	case nil:
		return nil, &ParseError{Path: path, Reason: "empty input"}

	case []domain.GeoPoint:
		return domain.ClonePoints(t), nil
	case domain.GeoLineString:
		return domain.ClonePoints(t.Coordinates), nil
	case *domain.GeoLineString:
		if t == nil {
			return nil, &ParseError{Path: path, Reason: "empty input"}
		}
		return domain.ClonePoints(t.Coordinates), nil
	case domain.GeoPoint:
		return []domain.GeoPoint{t}, nil

	case [][2]float64:
		out := make([]domain.GeoPoint, 0, len(t))
		for _, p := range t {
			out = append(out, Normalize(p[0], p[1], x.order))
		}
		return out, nil
	case [][]float64:
		return NormalizePairs(t, x.order), nil

	case *geojson.Geometry:
		if t == nil || t.Geometry() == nil {
			return nil, &ParseError{Path: path, Reason: "geometry without coordinates"}
		}
		return fromOrb(t.Geometry()), nil
	case *geojson.Feature:
		if t == nil || t.Geometry == nil {
			return nil, &ParseError{Path: path, Reason: "feature without geometry"}
		}
		return fromOrb(t.Geometry), nil
	case *geojson.FeatureCollection:
		if t == nil {
			return nil, &ParseError{Path: path, Reason: "empty input"}
		}
		var out []domain.GeoPoint
		for _, f := range t.Features {
			if f != nil && f.Geometry != nil {
				out = append(out, fromOrb(f.Geometry)...)
			}
		}
		return out, nil
	case orb.Geometry:
		return fromOrb(t), nil

	case json.RawMessage:
		return x.walkText(t, path, depth)
	case []byte:
		return x.walkText(t, path, depth)
	case string:
		return x.walkText([]byte(t), path, depth)

	case []any:
		return x.walkList(t, path, depth)
	case map[string]any:
		return x.walkObject(t, path, depth)
	}

	return nil, &ParseError{Path: path, Reason: fmt.Sprintf("unsupported type %T", v)}
}

func (x *Extractor) walkText(raw []byte, path string, depth int) ([]domain.GeoPoint, error) {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return nil, &ParseError{Path: path, Reason: "empty input"}
	}
	if text[0] == '{' || text[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			// '[' and '{' are also valid polyline characters
			if pts, perr := decodePolyline(string(text), path); perr == nil {
				return pts, nil
			}
			return nil, &ParseError{Path: path, Reason: "invalid JSON: " + err.Error()}
		}
		return x.walk(v, path, depth+1)
	}
	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(text, &s); err != nil {
			return nil, &ParseError{Path: path, Reason: "invalid JSON string: " + err.Error()}
		}
		return x.walkText([]byte(s), path, depth+1)
	}
	return decodePolyline(string(text), path)
}

// walkList handles both a list of pairs and a list of paths. A list whose
// leading element is a scalar is a single pair.
func (x *Extractor) walkList(list []any, path string, depth int) ([]domain.GeoPoint, error) {
	if len(list) == 0 {
		return []domain.GeoPoint{}, nil
	}
	if isScalar(list[0]) {
		p, ok := NormalizeValues(list, x.order)
		if !ok {
			return []domain.GeoPoint{}, nil
		}
		return []domain.GeoPoint{p}, nil
	}

	out := make([]domain.GeoPoint, 0, len(list))
	for i, item := range list {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if pair, ok := item.([]any); ok && (len(pair) < 2 || isScalar(pair[0])) {
			// short or non-numeric pairs are dropped without failing the path
			if p, ok := NormalizeValues(pair, x.order); ok {
				out = append(out, p)
			}
			continue
		}
		pts, err := x.walk(item, itemPath, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, pts...)
	}
	return out, nil
}

var wrapperKeys = []string{"geometry", "coordinates", "path", "points"}

func (x *Extractor) walkObject(obj map[string]any, path string, depth int) ([]domain.GeoPoint, error) {
	if typ, _ := obj["type"].(string); typ != "" {
		switch typ {
		case "Feature":
			return x.walkKey(obj, "geometry", path, depth)
		case "FeatureCollection":
			return x.walkKey(obj, "features", path, depth)
		case "GeometryCollection":
			return x.walkKey(obj, "geometries", path, depth)
		case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon":
			return x.walkKey(obj, "coordinates", path, depth)
		}
	}

	if p, ok := namedPoint(obj); ok {
		return []domain.GeoPoint{p}, nil
	}

	for _, key := range wrapperKeys {
		if _, ok := obj[key]; ok {
			return x.walkKey(obj, key, path, depth)
		}
	}
	return nil, &ParseError{Path: path, Reason: "unrecognized object"}
}

func (x *Extractor) walkKey(obj map[string]any, key, path string, depth int) ([]domain.GeoPoint, error) {
	v, ok := obj[key]
	if !ok {
		return nil, &ParseError{Path: path, Reason: "missing " + key}
	}
	return x.walk(v, path+"."+key, depth+1)
}

// namedPoint recognizes {"lat","lng"}, {"lat","lon"} and
// {"latitude","longitude"}. Named axes bypass the heuristic.
func namedPoint(obj map[string]any) (domain.GeoPoint, bool) {
	latKeys := []string{"lat", "latitude"}
	lonKeys := []string{"lng", "lon", "long", "longitude"}

	lat, ok := firstFloat(obj, latKeys)
	if !ok {
		return domain.GeoPoint{}, false
	}
	lon, ok := firstFloat(obj, lonKeys)
	if !ok {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, true
}

func firstFloat(obj map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return toFloat(v)
		}
	}
	return 0, false
}

func isScalar(v any) bool {
	switch v.(type) {
	case []any, map[string]any, nil:
		return false
	}
	return true
}

func decodePolyline(s, path string) ([]domain.GeoPoint, error) {
	if strings.ContainsAny(s, " \t\n") {
		return nil, &ParseError{Path: path, Reason: "not an encoded polyline"}
	}
	coords, rest, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "invalid polyline: " + err.Error()}
	}
	if len(rest) > 0 {
		return nil, &ParseError{Path: path, Reason: "trailing polyline data"}
	}
	out := make([]domain.GeoPoint, 0, len(coords))
	for _, c := range coords {
		out = append(out, domain.GeoPoint{Lat: c[0], Lon: c[1]})
	}
	return out, nil
}

// EncodePolyline encodes points with the precision-5 polyline algorithm.
func EncodePolyline(points []domain.GeoPoint) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes a precision-5 polyline.
func DecodePolyline(s string) ([]domain.GeoPoint, error) {
	return decodePolyline(s, "")
}

func fromOrb(g orb.Geometry) []domain.GeoPoint {
	switch t := g.(type) {
	case orb.Point:
		return []domain.GeoPoint{domain.PointFromOrb(t)}
	case orb.MultiPoint:
		return pointsFromOrb(t)
	case orb.LineString:
		return pointsFromOrb(t)
	case orb.Ring:
		return pointsFromOrb(t)
	case orb.MultiLineString:
		var out []domain.GeoPoint
		for _, ls := range t {
			out = append(out, pointsFromOrb(ls)...)
		}
		return out
	case orb.Polygon:
		var out []domain.GeoPoint
		for _, r := range t {
			out = append(out, pointsFromOrb(r)...)
		}
		return out
	case orb.MultiPolygon:
		var out []domain.GeoPoint
		for _, p := range t {
			out = append(out, fromOrb(p)...)
		}
		return out
	case orb.Collection:
		var out []domain.GeoPoint
		for _, c := range t {
			out = append(out, fromOrb(c)...)
		}
		return out
	}
	return nil
}

func pointsFromOrb[S ~[]orb.Point](pts S) []domain.GeoPoint {
	out := make([]domain.GeoPoint, len(pts))
	for i, p := range pts {
		out[i] = domain.PointFromOrb(p)
	}
	return out
}

// LineStringGeoJSON renders points as a GeoJSON LineString geometry.
func LineStringGeoJSON(points []domain.GeoPoint) ([]byte, error) {
	return geojson.NewGeometry(domain.ToLineString(points)).MarshalJSON()
}
