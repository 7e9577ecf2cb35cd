package http

import (
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

// routeView is a stored route with its geometry decoded for clients.
type routeView struct {
	domain.RouteRecord
	Points        []domain.GeoPoint `json:"points"`
	SnappedPoints []domain.GeoPoint `json:"snapped_points,omitempty"`
}

func newRouteView(deps *Dependencies, rec *domain.RouteRecord) routeView {
	seed := deps.Routes.Seed(rec)
	if seed.Raw == nil {
		seed.Raw = []domain.GeoPoint{}
	}
	return routeView{RouteRecord: *rec, Points: seed.Raw, SnappedPoints: seed.Snapped}
}

// ListRoutesHandler lists stored routes, optionally filtered by region and status.
func ListRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c, 50, 200)
		status := domain.RouteStatus(c.Query("status"))
		switch status {
		case "", domain.RouteStatusDraft, domain.RouteStatusActive, domain.RouteStatusArchived:
		default:
			return errBadRequest(c, "status must be draft, active or archived")
		}

		routes, err := deps.Routes.List(c.UserContext(), ports.RouteFilter{
			RegionID: c.Query("region_id"),
			Status:   status,
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return errFromDomain(c, err)
		}
		if routes == nil {
			routes = []domain.RouteRecord{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Count: len(routes), HasMore: len(routes) == limit}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: routes, Pagination: pg})
	}
}

// GetRouteHandler returns a route by ID with decoded points.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		rec, err := deps.Routes.GetByID(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(newRouteView(deps, rec))
	}
}

// DeleteRouteHandler removes a stored route.
func DeleteRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Routes.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RouteKMLHandler exports a stored route as KML.
func RouteKMLHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := deps.Routes.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		seed := deps.Routes.Seed(rec)
		return sendKML(c, geospatial.KMLRoute{
			Name:    rec.Name,
			Code:    rec.Code,
			Color:   rec.Color,
			Raw:     seed.Raw,
			Snapped: seed.Snapped,
		})
	}
}

func sendKML(c *fiber.Ctx, r geospatial.KMLRoute) error {
	var buf bytes.Buffer
	if err := geospatial.WriteKML(&buf, r); err != nil {
		return errInternal(c, err.Error())
	}
	c.Set("Content-Type", "application/vnd.google-earth.kml+xml")
	c.Set("Content-Disposition", `attachment; filename="route.kml"`)
	return c.Send(buf.Bytes())
}

// ConformRouteHandler starts a background conformance run for a stored route.
func ConformRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Scheduler == nil {
			return errUnavailable(c, "background conformance not configured")
		}
		id := c.Params("id")
		if _, err := deps.Routes.GetByID(c.UserContext(), id); err != nil {
			return errFromDomain(c, err)
		}
		runID, err := deps.Scheduler.ScheduleConformance(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"route_id": id, "run_id": runID})
	}
}

// ListRegionsHandler returns regions; ?all=true includes inactive ones.
func ListRegionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		regions, err := deps.Catalog.Regions(c.UserContext(), !c.QueryBool("all", false))
		if err != nil {
			return errFromDomain(c, err)
		}
		if regions == nil {
			regions = []domain.Region{}
		}
		c.Set("Cache-Control", "public, max-age=600")
		return c.JSON(regions)
	}
}

// GetRegionHandler returns a single region.
func GetRegionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region, err := deps.Catalog.Region(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(region)
	}
}

// RegionPOIsHandler returns the POIs of a region.
func RegionPOIsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pois, err := deps.Catalog.POIsByRegion(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		if pois == nil {
			pois = []domain.POI{}
		}
		return c.JSON(pois)
	}
}

// POIsInBoundsHandler returns POIs inside a viewport.
// GET /v1/pois?min_lat=&min_lon=&max_lat=&max_lon=
func POIsInBoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, k := range []string{"min_lat", "min_lon", "max_lat", "max_lon"} {
			if c.Query(k) == "" {
				return errBadRequest(c, "min_lat, min_lon, max_lat and max_lon are required")
			}
		}
		b := domain.Bounds{
			MinLat: c.QueryFloat("min_lat"),
			MinLon: c.QueryFloat("min_lon"),
			MaxLat: c.QueryFloat("max_lat"),
			MaxLon: c.QueryFloat("max_lon"),
		}
		pois, err := deps.Catalog.POIsInBounds(c.UserContext(), b, c.QueryInt("limit", 200))
		if err != nil {
			return errFromDomain(c, err)
		}
		if pois == nil {
			pois = []domain.POI{}
		}
		return c.JSON(pois)
	}
}

// NearbyPOIsHandler returns POIs within a radius of a point.
func NearbyPOIsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 500)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}

		pois, err := deps.Catalog.POIsNear(c.UserContext(), lat, lon, radius, c.QueryInt("limit", 50))
		if err != nil {
			return errFromDomain(c, err)
		}
		if pois == nil {
			pois = []domain.POI{}
		}
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(pois)
	}
}

// GetPOIHandler returns a single POI.
func GetPOIHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		poi, err := deps.Catalog.POI(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(poi)
	}
}

// locationRequest is a location sample posted directly by a device.
type locationRequest struct {
	DeviceID string      `json:"device_id"`
	Location interface{} `json:"location"`
	Accuracy float64     `json:"accuracy"`
	Time     *time.Time  `json:"time"`
}

// PostLocationHandler records a device location sample.
func PostLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		p, err := parsePoint(deps, req.Location)
		if err != nil {
			return errFromDomain(c, err)
		}
		sample := &domain.LocationSample{DeviceID: req.DeviceID, Location: p, Accuracy: req.Accuracy, Time: time.Now()}
		if req.Time != nil {
			sample.Time = *req.Time
		}
		if err := deps.Sessions.ObserveLocation(c.UserContext(), sample); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// parsePoint reads one coordinate in any shape the extractor understands.
func parsePoint(deps *Dependencies, v interface{}) (domain.GeoPoint, error) {
	if v == nil {
		return domain.GeoPoint{}, domain.NewValidationError("point", "point is required")
	}
	pts, err := deps.extractor().Parse(v)
	if err != nil {
		return domain.GeoPoint{}, domain.NewValidationError("point", err.Error())
	}
	if len(pts) != 1 {
		return domain.GeoPoint{}, domain.NewValidationError("point", "expected exactly one coordinate")
	}
	return pts[0], nil
}
