package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// Simplify reduces points with Douglas-Peucker. tolerance is the maximum
// perpendicular deviation in coordinate units (degrees). The first and last
// points are always kept and paths of two or fewer points pass through.
func Simplify(points []domain.GeoPoint, tolerance float64) []domain.GeoPoint {
	if len(points) <= domain.MinPathPoints || tolerance < 0 {
		return domain.ClonePoints(points)
	}
	ls := domain.ToLineString(points)
	out, ok := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone()).(orb.LineString)
	if !ok || len(out) < domain.MinPathPoints || len(out) > len(points) {
		return domain.ClonePoints(points)
	}
	return domain.FromLineString(out)
}

// SimplifyMeters is Simplify with the tolerance given in meters. Points are
// projected onto a local equirectangular plane at the path's mean latitude,
// so the tolerance holds equally along both axes. Kept points are returned
// unmodified.
func SimplifyMeters(points []domain.GeoPoint, toleranceMeters float64) []domain.GeoPoint {
	if len(points) <= domain.MinPathPoints || toleranceMeters < 0 {
		return domain.ClonePoints(points)
	}

	var sumLat float64
	for _, p := range points {
		sumLat += p.Lat
	}
	kx := metersPerDegreeLat * math.Cos(toRad(sumLat/float64(len(points))))

	projected := make(orb.LineString, len(points))
	index := make(map[orb.Point]int, len(points))
	for i, p := range points {
		q := orb.Point{p.Lon * kx, p.Lat * metersPerDegreeLat}
		projected[i] = q
		if _, seen := index[q]; !seen {
			index[q] = i
		}
	}

	out, ok := simplify.DouglasPeucker(toleranceMeters).Simplify(projected).(orb.LineString)
	if !ok || len(out) < domain.MinPathPoints {
		return domain.ClonePoints(points)
	}

	kept := make([]domain.GeoPoint, 0, len(out))
	for i, q := range out {
		idx, found := index[q]
		if !found {
			return domain.ClonePoints(points)
		}
		// a repeated coordinate maps to its first index; the endpoint must stay last
		if i == len(out)-1 {
			idx = len(points) - 1
		}
		kept = append(kept, points[idx])
	}
	return kept
}
