package geospatial

import (
	"math"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// Region framing defaults.
const (
	DefaultPadding = 0.1
	DefaultMinSpan = 0.005
)

// RegionOptions controls how a bounding region is framed.
type RegionOptions struct {
	// Padding is the fraction of the span added on each side.
	Padding float64
	// MinSpan is the smallest allowed height and width, in degrees.
	MinSpan float64
	// Include is an extra point (usually the user's location) to cover.
	Include *domain.GeoPoint
}

// DefaultRegionOptions returns padding 0.1 and a 0.005 degree floor.
func DefaultRegionOptions() RegionOptions {
	return RegionOptions{Padding: DefaultPadding, MinSpan: DefaultMinSpan}
}

// Region returns the padded bounding region covering points and opts.Include.
// It reports false when there is nothing to cover.
func Region(points []domain.GeoPoint, opts RegionOptions) (domain.Bounds, bool) {
	all := points
	if opts.Include != nil {
		all = append(domain.ClonePoints(points), *opts.Include)
	}
	if len(all) == 0 {
		return domain.Bounds{}, false
	}

	b := domain.Bounds{MinLat: all[0].Lat, MaxLat: all[0].Lat, MinLon: all[0].Lon, MaxLon: all[0].Lon}
	for _, p := range all[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}

	padding := math.Max(opts.Padding, 0)
	latPad := (b.MaxLat - b.MinLat) * padding
	lonPad := (b.MaxLon - b.MinLon) * padding
	b.MinLat -= latPad
	b.MaxLat += latPad
	b.MinLon -= lonPad
	b.MaxLon += lonPad

	minSpan := opts.MinSpan
	if minSpan <= 0 {
		minSpan = DefaultMinSpan
	}
	c := b.Center()
	if b.MaxLat-b.MinLat < minSpan {
		b.MinLat = math.Min(b.MinLat, c.Lat-minSpan/2)
		b.MaxLat = math.Max(b.MaxLat, c.Lat+minSpan/2)
	}
	if b.MaxLon-b.MinLon < minSpan {
		b.MinLon = math.Min(b.MinLon, c.Lon-minSpan/2)
		b.MaxLon = math.Max(b.MaxLon, c.Lon+minSpan/2)
	}
	return b, true
}
