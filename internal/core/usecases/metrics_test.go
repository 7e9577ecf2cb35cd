package usecases_test

import (
	"testing"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/usecases"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

func newCalculator() *usecases.MetricsCalculator {
	return usecases.NewMetricsCalculator(usecases.DefaultEstimateConfig(), geospatial.DefaultRegionOptions())
}

func TestMetricsCalculator_FareBands(t *testing.T) {
	calc := newCalculator()
	tests := []struct {
		km       float64
		min, max float64
	}{
		{0, 0, 0},
		{2, 10, 16},
		{4, 10, 16},
		{10, 20.8, 26.8},
	}
	for _, tt := range tests {
		got := calc.Fare(tt.km)
		if got.Min != tt.min || got.Max != tt.max {
			t.Errorf("fare(%v) = %+v, want [%v, %v]", tt.km, got, tt.min, tt.max)
		}
	}
}

func TestMetricsCalculator_FareIsMonotonic(t *testing.T) {
	calc := newCalculator()
	prev := calc.Fare(0.1)
	for km := 0.5; km < 50; km += 0.5 {
		cur := calc.Fare(km)
		if cur.Min < prev.Min || cur.Max < prev.Max {
			t.Fatalf("fare decreased at %v km: %+v < %+v", km, cur, prev)
		}
		prev = cur
	}
}

func TestMetricsCalculator_TimeBands(t *testing.T) {
	calc := newCalculator()

	got := calc.Time(10) // 30 minutes at 20 km/h
	if got.Min != 15 || got.Max != 45 {
		t.Errorf("time(10) = %+v", got)
	}
	got = calc.Time(2) // 6 minutes, lower bound floored at zero
	if got.Min != 0 || got.Max != 21 {
		t.Errorf("time(2) = %+v", got)
	}
}

func TestMetricsCalculator_ShortPathIsZero(t *testing.T) {
	calc := newCalculator()
	m := calc.Compute(line(1), false, nil)
	if m.LengthMeters != 0 || m.Fare != (usecases.Band{}) || m.TimeMinutes != (usecases.Band{}) {
		t.Errorf("expected zero metrics, got %+v", m)
	}
	if m.Bounds == nil {
		t.Error("single point still has a bounding region")
	}

	if m := calc.Compute(nil, false, nil); m.Bounds != nil {
		t.Error("empty path has no bounding region")
	}
}

func TestMetricsCalculator_ComputeIncludesUserLocation(t *testing.T) {
	calc := newCalculator()
	user := domain.GeoPoint{Lat: 14.50, Lon: 121.10}
	m := calc.Compute(line(5), false, &user)

	if m.LengthMeters <= 0 {
		t.Fatal("expected positive length")
	}
	if !m.Bounds.Contains(user) {
		t.Error("bounds must contain the user location")
	}
	for _, p := range line(5) {
		if !m.Bounds.Contains(p) {
			t.Errorf("bounds miss %v", p)
		}
	}
}
