package usecases

import (
	"math"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

// EstimateConfig holds the constants of the fare and travel-time bands.
type EstimateConfig struct {
	FareBase        float64 // covers the first FareFreeKm
	FareFreeKm      float64
	FarePerKm       float64
	FareBand        float64
	AvgSpeedKmh     float64
	TimeBandMinutes float64
}

// DefaultEstimateConfig returns base fare 13 for the first 4 km, 1.8 per
// extra km (±3), and 20 km/h (±15 min).
func DefaultEstimateConfig() EstimateConfig {
	return EstimateConfig{
		FareBase:        13,
		FareFreeKm:      4,
		FarePerKm:       1.8,
		FareBand:        3,
		AvgSpeedKmh:     20,
		TimeBandMinutes: 15,
	}
}

// Band is an illustrative [Min, Max] range.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RouteMetrics are the figures derived from a displayed path.
type RouteMetrics struct {
	PointCount   int            `json:"point_count"`
	LengthMeters float64        `json:"length_meters"`
	LengthKm     float64        `json:"length_km"`
	Snapped      bool           `json:"snapped"`
	Bounds       *domain.Bounds `json:"bounds,omitempty"`
	Fare         Band           `json:"fare"`
	TimeMinutes  Band           `json:"time_minutes"`
}

// MetricsCalculator derives length, bounding region and estimates.
type MetricsCalculator struct {
	estimates EstimateConfig
	region    geospatial.RegionOptions
}

// NewMetricsCalculator creates a calculator.
func NewMetricsCalculator(estimates EstimateConfig, region geospatial.RegionOptions) *MetricsCalculator {
	return &MetricsCalculator{estimates: estimates, region: region}
}

// Compute derives metrics for points. user, when set, is included in the
// bounding region only. Paths under two points report zero length and
// zero bands.
func (m *MetricsCalculator) Compute(points []domain.GeoPoint, snapped bool, user *domain.GeoPoint) RouteMetrics {
	out := RouteMetrics{PointCount: len(points), Snapped: snapped}

	opts := m.region
	opts.Include = user
	if b, ok := geospatial.Region(points, opts); ok {
		out.Bounds = &b
	}

	if len(points) < domain.MinPathPoints {
		return out
	}
	out.LengthMeters = geospatial.PathLength(points)
	out.LengthKm = out.LengthMeters / 1000
	out.Fare = m.Fare(out.LengthKm)
	out.TimeMinutes = m.Time(out.LengthKm)
	return out
}

// Fare returns the fare band for km. It is monotonic in km.
func (m *MetricsCalculator) Fare(km float64) Band {
	if km <= 0 {
		return Band{}
	}
	fare := m.estimates.FareBase + math.Max(0, km-m.estimates.FareFreeKm)*m.estimates.FarePerKm
	return band(fare, m.estimates.FareBand)
}

// Time returns the travel-time band in minutes for km.
func (m *MetricsCalculator) Time(km float64) Band {
	if km <= 0 || m.estimates.AvgSpeedKmh <= 0 {
		return Band{}
	}
	minutes := km / m.estimates.AvgSpeedKmh * 60
	return band(minutes, m.estimates.TimeBandMinutes)
}

func band(center, width float64) Band {
	return Band{
		Min: roundTo(math.Max(0, center-width), 2),
		Max: roundTo(center+width, 2),
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
