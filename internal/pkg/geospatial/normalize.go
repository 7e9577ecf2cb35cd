package geospatial

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// AxisOrder tells the normalizer how a raw pair is laid out.
type AxisOrder string

const (
	// AxisAuto applies the decision table below.
	AxisAuto AxisOrder = "auto"
	// AxisLonLat treats pairs as (longitude, latitude), as GeoJSON does.
	AxisLonLat AxisOrder = "lonlat"
	// AxisLatLon treats pairs as (latitude, longitude).
	AxisLatLon AxisOrder = "latlon"
)

// ParseAxisOrder accepts "", "auto", "lonlat" and "latlon".
func ParseAxisOrder(s string) (AxisOrder, error) {
	switch AxisOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", AxisAuto:
		return AxisAuto, nil
	case AxisLonLat:
		return AxisLonLat, nil
	case AxisLatLon:
		return AxisLatLon, nil
	default:
		return "", fmt.Errorf("unknown axis order %q", s)
	}
}

// Regional box used by the first rule of the decision table.
var (
	regionLat = [2]float64{4, 21}
	regionLon = [2]float64{116, 127}
)

// AxisRule names the row of the decision table that resolved a pair.
type AxisRule string

const (
	RuleExplicit  AxisRule = "explicit"
	RuleRegional  AxisRule = "regional"
	RuleMagnitude AxisRule = "magnitude"
	RuleDefault   AxisRule = "default"
)

// Normalize resolves a pair (a, b) of unknown axis order.
//
// With AxisAuto the rows below are tried in order:
//
//	regional   a in [4,21] and b in [116,127]    -> lat=a, lon=b
//	           a in [116,127] and b in [4,21]    -> lon=a, lat=b
//	magnitude  |a| > 100 and |b| <= 100          -> lon=a, lat=b
//	           |b| > 100 and |a| <= 100          -> lat=a, lon=b
//	default                                      -> lon=a, lat=b
//
// Inputs near the boundaries can be misclassified. Producers that know their
// layout should pass AxisLonLat or AxisLatLon.
func Normalize(a, b float64, order AxisOrder) domain.GeoPoint {
	p, _ := NormalizeRule(a, b, order)
	return p
}

// NormalizeRule is Normalize that also reports which row matched.
func NormalizeRule(a, b float64, order AxisOrder) (domain.GeoPoint, AxisRule) {
	switch order {
	case AxisLonLat:
		return domain.GeoPoint{Lon: a, Lat: b}, RuleExplicit
	case AxisLatLon:
		return domain.GeoPoint{Lat: a, Lon: b}, RuleExplicit
	}

	switch {
	case within(a, regionLat) && within(b, regionLon):
		return domain.GeoPoint{Lat: a, Lon: b}, RuleRegional
	case within(a, regionLon) && within(b, regionLat):
		return domain.GeoPoint{Lon: a, Lat: b}, RuleRegional
	case math.Abs(a) > 100 && math.Abs(b) <= 100:
		return domain.GeoPoint{Lon: a, Lat: b}, RuleMagnitude
	case math.Abs(b) > 100 && math.Abs(a) <= 100:
		return domain.GeoPoint{Lat: a, Lon: b}, RuleMagnitude
	default:
		return domain.GeoPoint{Lon: a, Lat: b}, RuleDefault
	}
}

func within(v float64, r [2]float64) bool {
	return v >= r[0] && v <= r[1]
}

// NormalizeValues resolves a raw decoded pair. Elements may be any JSON
// number representation or a numeric string; extra elements (altitude, time)
// are ignored. It reports false when fewer than two leading elements are
// numeric.
func NormalizeValues(values []any, order AxisOrder) (domain.GeoPoint, bool) {
	if len(values) < 2 {
		return domain.GeoPoint{}, false
	}
	a, ok := toFloat(values[0])
	if !ok {
		return domain.GeoPoint{}, false
	}
	b, ok := toFloat(values[1])
	if !ok {
		return domain.GeoPoint{}, false
	}
	return Normalize(a, b, order), true
}

// NormalizePairs resolves every pair and silently drops short ones.
func NormalizePairs(pairs [][]float64, order AxisOrder) []domain.GeoPoint {
	out := make([]domain.GeoPoint, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		out = append(out, Normalize(p[0], p[1], order))
	}
	return out
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
