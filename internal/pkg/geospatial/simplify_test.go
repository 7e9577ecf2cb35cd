package geospatial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

func TestSimplify_CollapsesToEndpoints(t *testing.T) {
	got := geospatial.Simplify(manilaPath, 0.01)
	assert.Equal(t, []domain.GeoPoint{manilaPath[0], manilaPath[2]}, got)
}

func TestSimplify_KeepsSignificantVertex(t *testing.T) {
	in := []domain.GeoPoint{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 2}}
	assert.Equal(t, in, geospatial.Simplify(in, 0.5))
}

func TestSimplify_ShortPathsPassThrough(t *testing.T) {
	assert.Empty(t, geospatial.Simplify(nil, 1))
	one := manilaPath[:1]
	assert.Equal(t, one, geospatial.Simplify(one, 1))
	two := manilaPath[:2]
	assert.Equal(t, two, geospatial.Simplify(two, 1))
}

func TestSimplify_PreservesEndpointsAndNeverGrows(t *testing.T) {
	zigzag := make([]domain.GeoPoint, 0, 50)
	for i := 0; i < 50; i++ {
		off := 0.0005
		if i%2 == 1 {
			off = -off
		}
		zigzag = append(zigzag, domain.GeoPoint{Lat: 14.6 + float64(i)*0.001 + off, Lon: 121 + float64(i)*0.001})
	}

	for _, tol := range []float64{0, 0.0001, 0.0005, 0.001, 0.01, 1} {
		got := geospatial.Simplify(zigzag, tol)
		assert.LessOrEqual(t, len(got), len(zigzag), "tolerance %v", tol)
		assert.Equal(t, zigzag[0], got[0], "tolerance %v", tol)
		assert.Equal(t, zigzag[len(zigzag)-1], got[len(got)-1], "tolerance %v", tol)
	}
}

func TestSimplify_DoesNotMutateInput(t *testing.T) {
	in := domain.ClonePoints(manilaPath)
	_ = geospatial.Simplify(in, 1)
	assert.Equal(t, manilaPath, in)
}

func TestSimplifyMeters(t *testing.T) {
	// middle point sits roughly 110 m off the chord
	in := []domain.GeoPoint{
		{Lat: 14.600, Lon: 121.000},
		{Lat: 14.601, Lon: 121.005},
		{Lat: 14.600, Lon: 121.010},
	}
	assert.Len(t, geospatial.SimplifyMeters(in, 50), 3)

	got := geospatial.SimplifyMeters(in, 500)
	assert.Equal(t, []domain.GeoPoint{in[0], in[2]}, got)
}
