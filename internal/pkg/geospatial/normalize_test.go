package geospatial_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

func TestNormalize_DecisionTable(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want domain.GeoPoint
		rule geospatial.AxisRule
	}{
		{"regional lat first", 14.5995, 120.9842, domain.GeoPoint{Lat: 14.5995, Lon: 120.9842}, geospatial.RuleRegional},
		{"regional lon first", 120.9842, 14.5995, domain.GeoPoint{Lat: 14.5995, Lon: 120.9842}, geospatial.RuleRegional},
		{"regional box edges", 4, 127, domain.GeoPoint{Lat: 4, Lon: 127}, geospatial.RuleRegional},
		{"magnitude lon first", 151.2093, -33.8688, domain.GeoPoint{Lat: -33.8688, Lon: 151.2093}, geospatial.RuleMagnitude},
		{"magnitude lat first", 37.7749, -122.4194, domain.GeoPoint{Lat: 37.7749, Lon: -122.4194}, geospatial.RuleMagnitude},
		{"default lon first", -2.9350, 43.2630, domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}, geospatial.RuleDefault},
		{"both large falls to default", 150, 110, domain.GeoPoint{Lat: 110, Lon: 150}, geospatial.RuleDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := geospatial.NormalizeRule(tt.a, tt.b, geospatial.AxisAuto)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rule, rule)
		})
	}
}

func TestNormalize_RegionalBoxIsConsistent(t *testing.T) {
	for lat := 4.0; lat <= 21.0; lat += 0.5 {
		for lon := 116.0; lon <= 127.0; lon += 0.5 {
			latFirst := geospatial.Normalize(lat, lon, geospatial.AxisAuto)
			lonFirst := geospatial.Normalize(lon, lat, geospatial.AxisAuto)
			require.Equal(t, domain.GeoPoint{Lat: lat, Lon: lon}, latFirst)
			require.Equal(t, latFirst, lonFirst)
		}
	}
}

func TestNormalize_ExplicitOrderBypassesHeuristic(t *testing.T) {
	p := geospatial.Normalize(14.5995, 120.9842, geospatial.AxisLonLat)
	assert.Equal(t, domain.GeoPoint{Lat: 120.9842, Lon: 14.5995}, p)

	p = geospatial.Normalize(-2.9350, 43.2630, geospatial.AxisLatLon)
	assert.Equal(t, domain.GeoPoint{Lat: -2.9350, Lon: 43.2630}, p)
}

func TestNormalize_IdempotentOnLonLatOutput(t *testing.T) {
	inputs := [][2]float64{
		{14.5995, 120.9842}, {151.2093, -33.8688}, {37.7749, -122.4194}, {-2.9350, 43.2630}, {150, 110},
	}
	for _, in := range inputs {
		p := geospatial.Normalize(in[0], in[1], geospatial.AxisAuto)
		again := geospatial.Normalize(p.Lon, p.Lat, geospatial.AxisAuto)
		assert.Equal(t, p, again, "input %v", in)
	}
}

func TestNormalizeValues(t *testing.T) {
	p, ok := geospatial.NormalizeValues([]any{json.Number("120.98"), "14.60", 12.0}, geospatial.AxisAuto)
	require.True(t, ok)
	assert.Equal(t, domain.GeoPoint{Lat: 14.60, Lon: 120.98}, p)

	_, ok = geospatial.NormalizeValues([]any{120.98}, geospatial.AxisAuto)
	assert.False(t, ok)

	_, ok = geospatial.NormalizeValues([]any{"abc", 14.6}, geospatial.AxisAuto)
	assert.False(t, ok)
}

func TestNormalizePairs_DropsShortPairs(t *testing.T) {
	got := geospatial.NormalizePairs([][]float64{{120.98, 14.60}, {121.0}, {}, {121.02, 14.64}}, geospatial.AxisAuto)
	assert.Len(t, got, 2)
}

func TestParseAxisOrder(t *testing.T) {
	for in, want := range map[string]geospatial.AxisOrder{
		"":        geospatial.AxisAuto,
		"AUTO":    geospatial.AxisAuto,
		"lonlat":  geospatial.AxisLonLat,
		" latlon": geospatial.AxisLatLon,
	} {
		got, err := geospatial.ParseAxisOrder(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := geospatial.ParseAxisOrder("xy")
	assert.Error(t, err)
}
