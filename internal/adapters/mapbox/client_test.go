package mapbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var quiapoCubao = []domain.GeoPoint{
	{Lat: 14.59900, Lon: 120.98400},
	{Lat: 14.61000, Lon: 121.00500},
	{Lat: 14.61900, Lon: 121.05300},
}

func TestMatch_Success(t *testing.T) {
	road := []domain.GeoPoint{
		{Lat: 14.59900, Lon: 120.98400},
		{Lat: 14.60300, Lon: 120.99100},
		{Lat: 14.61000, Lon: 121.00500},
		{Lat: 14.61900, Lon: 121.05300},
	}
	body := fmt.Sprintf(`{"code":"Ok","matchings":[{"geometry":%q,"distance":8421.5,"duration":1210.2}]}`,
		geospatial.EncodePolyline(road))

	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.Path == "/matching/v5/mapbox/driving/120.984000,14.599000;121.005000,14.610000;121.053000,14.619000" &&
			req.URL.Query().Get("access_token") == "test-token" &&
			req.URL.Query().Get("geometries") == "polyline"
	})).Return(createMockResponse(200, body), nil)

	client := NewClientWithHTTPDoer("test-token", "https://api.mapbox.com", mockHTTP)
	res, err := client.Match(context.Background(), "driving", quiapoCubao)

	require.NoError(t, err)
	require.Len(t, res.Points, len(road))
	for i := range road {
		assert.InDelta(t, road[i].Lat, res.Points[i].Lat, 1e-5)
		assert.InDelta(t, road[i].Lon, res.Points[i].Lon, 1e-5)
	}
	assert.InDelta(t, 8421.5, res.DistanceM, 0.01)
	mockHTTP.AssertExpectations(t)
}

func TestMatch_JoinsSplitMatchings(t *testing.T) {
	first := geospatial.EncodePolyline(quiapoCubao[:2])
	second := geospatial.EncodePolyline(quiapoCubao[1:])
	body := fmt.Sprintf(`{"code":"Ok","matchings":[{"geometry":%q,"distance":100},{"geometry":%q,"distance":200}]}`, first, second)

	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(200, body), nil)

	client := NewClientWithHTTPDoer("test-token", "", mockHTTP)
	res, err := client.Match(context.Background(), "driving", quiapoCubao)

	require.NoError(t, err)
	assert.Len(t, res.Points, 3, "shared joint point should appear once")
	assert.InDelta(t, 300, res.DistanceM, 0.01)
}

func TestMatch_NoMatch(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		body   string
	}{
		{"no match code", 200, `{"code":"NoMatch","message":"Could not match the trace."}`},
		{"unprocessable", 422, `{"code":"NoSegment","message":"No road segment"}`},
		{"empty geometry", 200, `{"code":"Ok","matchings":[]}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(tc.status, tc.body), nil)

			client := NewClientWithHTTPDoer("test-token", "", mockHTTP)
			res, err := client.Match(context.Background(), "driving", quiapoCubao)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrNoMatch)
		})
	}
}

func TestMatch_TransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		mockHTTP := &MockHTTPDoer{}
		mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(nil, errors.New("dial tcp: connection refused"))

		client := NewClientWithHTTPDoer("test-token", "", mockHTTP)
		_, err := client.Match(context.Background(), "driving", quiapoCubao)

		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNoMatch)
	})

	t.Run("unauthorized", func(t *testing.T) {
		mockHTTP := &MockHTTPDoer{}
		mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
			createMockResponse(401, `{"message":"Not Authorized - Invalid Token"}`), nil)

		client := NewClientWithHTTPDoer("bad-token", "", mockHTTP)
		_, err := client.Match(context.Background(), "driving", quiapoCubao)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("rate limited", func(t *testing.T) {
		mockHTTP := &MockHTTPDoer{}
		mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(429, ""), nil)

		client := NewClientWithHTTPDoer("test-token", "", mockHTTP)
		_, err := client.Match(context.Background(), "driving", quiapoCubao)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limit")
	})
}

func TestOptimize_Success(t *testing.T) {
	// input 0 is visited first, input 2 second, input 1 last
	body := fmt.Sprintf(`{
		"code":"Ok",
		"waypoints":[{"waypoint_index":0,"trips_index":0},{"waypoint_index":2,"trips_index":0},{"waypoint_index":1,"trips_index":0}],
		"trips":[{"geometry":%q,"distance":12000,"duration":1800}]
	}`, geospatial.EncodePolyline(quiapoCubao))

	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		q := req.URL.Query()
		return strings.HasPrefix(req.URL.Path, "/optimized-trips/v1/mapbox/driving/") &&
			q.Get("roundtrip") == "false" && q.Get("source") == "first" && q.Get("destination") == "last"
	})).Return(createMockResponse(200, body), nil)

	client := NewClientWithHTTPDoer("test-token", "", mockHTTP)
	res, err := client.Optimize(context.Background(), ports.OptimizeRequest{
		Profile:     "driving",
		Waypoints:   quiapoCubao,
		Source:      "first",
		Destination: "last",
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, res.Order)
	assert.Len(t, res.Points, 3)
	assert.InDelta(t, 1800, res.DurationSecs, 0.01)
	mockHTTP.AssertExpectations(t)
}

func TestOptimize_NoTrips(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"code":"NoTrips","message":"No trips found"}`), nil)

	client := NewClientWithHTTPDoer("test-token", "", mockHTTP)
	_, err := client.Optimize(context.Background(), ports.OptimizeRequest{Profile: "driving", Waypoints: quiapoCubao})

	assert.ErrorIs(t, err, domain.ErrNoFeasibleTrip)
}

func TestOptimize_BadWaypointIndex(t *testing.T) {
	body := `{"code":"Ok","waypoints":[{"waypoint_index":0},{"waypoint_index":7}],"trips":[{"geometry":""}]}`
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(200, body), nil)

	client := NewClientWithHTTPDoer("test-token", "", mockHTTP)
	_, err := client.Optimize(context.Background(), ports.OptimizeRequest{Profile: "driving", Waypoints: quiapoCubao[:2]})

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoFeasibleTrip)
}
