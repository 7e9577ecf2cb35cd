package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
	"github.com/samirrijal/routekit/internal/pkg/telemetry"
)

// DefaultBaseURL is the public Mapbox API host.
const DefaultBaseURL = "https://api.mapbox.com"

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Mapbox Map Matching and Optimization APIs.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  HTTPDoer
	tracer      trace.Tracer
}

var _ ports.RoutingService = (*Client)(nil)

// NewClient creates a Mapbox client with its own HTTP client.
func NewClient(accessToken, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewClientWithHTTPDoer(accessToken, baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a Mapbox client over an existing HTTPDoer.
func NewClientWithHTTPDoer(accessToken, baseURL string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  doer,
		tracer:      telemetry.Tracer("routekit/mapbox"),
	}
}

type matchResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Matchings []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"matchings"`
}

type optimizeResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Waypoints []struct {
		WaypointIndex int `json:"waypoint_index"`
		TripsIndex    int `json:"trips_index"`
	} `json:"waypoints"`
	Trips []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"trips"`
}

// Match snaps points to the road network. Split matchings are joined in order.
func (c *Client) Match(ctx context.Context, profile string, points []domain.GeoPoint) (*ports.MatchResult, error) {
	ctx, span := c.tracer.Start(ctx, telemetry.SpanRoutingMatch, trace.WithAttributes(
		attribute.String(telemetry.AttrProfile, profile),
		attribute.Int(telemetry.AttrPointCount, len(points)),
	))
	defer span.End()

	q := url.Values{}
	q.Set("geometries", "polyline")
	q.Set("overview", "full")
	q.Set("tidy", "true")

	var resp matchResponse
	if err := c.get(ctx, "/matching/v5/mapbox/"+profile+"/"+formatCoords(points), q, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("map matching: %w", err)
	}

	switch resp.Code {
	case "Ok":
	case "NoMatch", "NoSegment":
		return nil, fmt.Errorf("map matching: %s: %w", resp.Message, domain.ErrNoMatch)
	default:
		err := fmt.Errorf("map matching: %s: %s", resp.Code, resp.Message)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := &ports.MatchResult{}
	for i, m := range resp.Matchings {
		pts, err := geospatial.DecodePolyline(m.Geometry)
		if err != nil {
			return nil, fmt.Errorf("decode matching %d: %w", i, err)
		}
		if len(out.Points) > 0 && len(pts) > 0 && out.Points[len(out.Points)-1] == pts[0] {
			pts = pts[1:]
		}
		out.Points = append(out.Points, pts...)
		out.DistanceM += m.Distance
		out.DurationSecs += m.Duration
	}
	if len(out.Points) == 0 {
		return nil, fmt.Errorf("map matching: empty geometry: %w", domain.ErrNoMatch)
	}
	return out, nil
}

// Optimize solves the visiting order for req.Waypoints.
func (c *Client) Optimize(ctx context.Context, req ports.OptimizeRequest) (*ports.OptimizeResult, error) {
	ctx, span := c.tracer.Start(ctx, telemetry.SpanRoutingOptimize, trace.WithAttributes(
		attribute.String(telemetry.AttrProfile, req.Profile),
		attribute.Int(telemetry.AttrPointCount, len(req.Waypoints)),
	))
	defer span.End()

	q := url.Values{}
	q.Set("geometries", "polyline")
	q.Set("overview", "full")
	q.Set("roundtrip", strconv.FormatBool(req.Roundtrip))
	if req.Source != "" {
		q.Set("source", req.Source)
	}
	if req.Destination != "" {
		q.Set("destination", req.Destination)
	}

	var resp optimizeResponse
	if err := c.get(ctx, "/optimized-trips/v1/mapbox/"+req.Profile+"/"+formatCoords(req.Waypoints), q, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("optimization: %w", err)
	}

	switch resp.Code {
	case "Ok":
	case "NoTrips", "NoRoute":
		return nil, fmt.Errorf("optimization: %s: %w", resp.Message, domain.ErrNoFeasibleTrip)
	default:
		err := fmt.Errorf("optimization: %s: %s", resp.Code, resp.Message)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(resp.Trips) == 0 {
		return nil, fmt.Errorf("optimization: no trips: %w", domain.ErrNoFeasibleTrip)
	}

	// waypoints come back in input order; waypoint_index is the visit position.
	order := make([]int, len(resp.Waypoints))
	for i := range order {
		order[i] = -1
	}
	for input, wp := range resp.Waypoints {
		if wp.WaypointIndex < 0 || wp.WaypointIndex >= len(order) {
			return nil, fmt.Errorf("optimization: waypoint %d has position %d", input, wp.WaypointIndex)
		}
		order[wp.WaypointIndex] = input
	}

	trip := resp.Trips[0]
	pts, err := geospatial.DecodePolyline(trip.Geometry)
	if err != nil {
		return nil, fmt.Errorf("decode trip: %w", err)
	}
	return &ports.OptimizeResult{
		Order:        order,
		Points:       pts,
		DistanceM:    trip.Distance,
		DurationSecs: trip.Duration,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	q.Set("access_token", c.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limit exceeded")
	}
	// Mapbox reports NoMatch and friends with a JSON body on 200 or 422.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnprocessableEntity {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// formatCoords renders points as the "lng,lat;lng,lat" path segment.
func formatCoords(points []domain.GeoPoint) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	return strings.Join(parts, ";")
}
