package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/editor"
	"github.com/samirrijal/routekit/internal/core/mapsync"
	"github.com/samirrijal/routekit/internal/core/usecases"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

type openSessionRequest struct {
	RouteID  string `json:"route_id"`
	DeviceID string `json:"device_id"`
}

// OpenSessionHandler starts an editing session on a new or stored route.
func OpenSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req openSessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		sess, err := deps.Sessions.Open(c.UserContext(), usecases.OpenOptions{RouteID: req.RouteID, DeviceID: req.DeviceID})
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/sessions/" + sess.ID)
		return c.Status(fiber.StatusCreated).JSON(sess.View())
	}
}

// ListSessionsHandler lists open sessions.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Sessions.List())
	}
}

// GetSessionHandler returns the current state of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(sess.View())
	}
}

// CloseSessionHandler closes a session and releases its map layers.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// edit runs fn as one edit on the session named by :id and returns the new view.
func edit(deps *Dependencies, c *fiber.Ctx, fn func(e *editor.Engine) error) error {
	view, err := deps.Sessions.Apply(c.UserContext(), c.Params("id"), fn)
	if err != nil {
		return errFromDomain(c, err)
	}
	return c.JSON(view)
}

type pointRequest struct {
	Point    interface{} `json:"point"`
	Index    *int        `json:"index"`
	Position string      `json:"position"` // "head" | "tail"
}

// InsertPointHandler adds a point at index, or at the head or tail.
// Without index or position the session's insert policy applies.
func InsertPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req pointRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		p, err := parsePoint(deps, req.Point)
		if err != nil {
			return errFromDomain(c, err)
		}

		position := mapsync.InsertPolicy(req.Position)
		if position == "" {
			position = deps.Sessions.InsertPolicy()
		}
		if position != mapsync.InsertHead && position != mapsync.InsertTail {
			return errBadRequest(c, "position must be head or tail")
		}

		return edit(deps, c, func(e *editor.Engine) error {
			switch {
			case req.Index != nil:
				return e.Insert(*req.Index, p)
			case position == mapsync.InsertHead:
				return e.Prepend(p)
			default:
				return e.Append(p)
			}
		})
	}
}

func pointIndex(c *fiber.Ctx) (int, bool) {
	i, err := strconv.Atoi(c.Params("index"))
	return i, err == nil
}

// UpdatePointHandler moves the point at :index.
func UpdatePointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		i, ok := pointIndex(c)
		if !ok {
			return errBadRequest(c, "index must be an integer")
		}
		var req pointRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		p, err := parsePoint(deps, req.Point)
		if err != nil {
			return errFromDomain(c, err)
		}
		return edit(deps, c, func(e *editor.Engine) error { return e.Update(i, p) })
	}
}

// DeletePointHandler removes the point at :index.
func DeletePointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		i, ok := pointIndex(c)
		if !ok {
			return errBadRequest(c, "index must be an integer")
		}
		return edit(deps, c, func(e *editor.Engine) error { return e.Delete(i) })
	}
}

type replaceRequest struct {
	Geometry interface{} `json:"geometry"`
}

// ReplacePointsHandler replaces the whole path with geometry in any
// supported encoding (GeoJSON, coordinate pairs, named points, polyline).
func ReplacePointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req replaceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		points, err := deps.extractor().Parse(req.Geometry)
		if err != nil {
			return errFromDomain(c, domain.NewValidationError("geometry", err.Error()))
		}
		return edit(deps, c, func(e *editor.Engine) error { return e.Replace(points) })
	}
}

type reorderRequest struct {
	Order []int `json:"order"`
}

// ReorderPointsHandler applies a visiting order to the leading points.
func ReorderPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req reorderRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		return edit(deps, c, func(e *editor.Engine) error { return e.Reorder(req.Order) })
	}
}

// UndoHandler reverts the last edit. Undo with nothing to undo is a no-op.
func UndoHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return edit(deps, c, func(e *editor.Engine) error { e.Undo(); return nil })
	}
}

// RedoHandler re-applies the last undone edit.
func RedoHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return edit(deps, c, func(e *editor.Engine) error { e.Redo(); return nil })
	}
}

// ClearSnappedHandler drops the snapped path.
func ClearSnappedHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return edit(deps, c, func(e *editor.Engine) error { e.ClearSnapped(); return nil })
	}
}

// metadataRequest changes display fields. clear_region unassigns the
// region and wins over region_id.
type metadataRequest struct {
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Color       *string `json:"color"`
	RegionID    *string `json:"region_id"`
	ClearRegion bool    `json:"clear_region"`
}

// UpdateMetadataHandler changes the route's display fields.
func UpdateMetadataHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req metadataRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		m := editor.Metadata{Name: req.Name, Code: req.Code, Color: req.Color}
		switch {
		case req.ClearRegion:
			var none *string
			m.RegionID = &none
		case req.RegionID != nil:
			m.RegionID = &req.RegionID
		}
		return edit(deps, c, func(e *editor.Engine) error { e.SetMetadata(m); return nil })
	}
}

// SnapHandler conforms the session's path to the road network.
func SnapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := deps.Sessions.Snap(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

type optimizeRequest struct {
	Profile     string `json:"profile"`
	Roundtrip   bool   `json:"roundtrip"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Apply       bool   `json:"apply"`
}

// OptimizeHandler finds the shortest visiting order; with apply it reorders the path.
func OptimizeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req optimizeRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if req.Source != "" && req.Source != "any" && req.Source != "first" {
			return errBadRequest(c, "source must be any or first")
		}
		if req.Destination != "" && req.Destination != "any" && req.Destination != "last" {
			return errBadRequest(c, "destination must be any or last")
		}
		res, err := deps.Sessions.Optimize(c.UserContext(), c.Params("id"), usecases.OptimizeOptions{
			Profile:     req.Profile,
			Roundtrip:   req.Roundtrip,
			Source:      req.Source,
			Destination: req.Destination,
		}, req.Apply)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

type simplifyRequest struct {
	Tolerance *float64 `json:"tolerance"` // absent uses the configured default
	Meters    bool     `json:"meters"`
}

// SimplifyHandler reduces the path with Douglas-Peucker as one undoable edit.
func SimplifyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req simplifyRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if req.Tolerance != nil && *req.Tolerance < 0 {
			return errBadRequest(c, "tolerance must not be negative")
		}
		view, removed, err := deps.Sessions.Simplify(c.UserContext(), c.Params("id"), req.Tolerance, req.Meters)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"session": view, "removed": removed})
	}
}

// MetricsHandler returns length, fare and time estimates for the session.
func MetricsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := deps.Sessions.Metrics(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(m)
	}
}

// SaveSessionHandler persists the session's route.
func SaveSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := deps.Sessions.Save(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(rec)
	}
}

// SessionKMLHandler exports the session's current path as KML.
func SessionKMLHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		r := sess.View().Route
		return sendKML(c, geospatial.KMLRoute{
			Name:    r.Name,
			Code:    r.Code,
			Color:   r.Color,
			Raw:     r.RawPoints,
			Snapped: r.Snapped,
		})
	}
}
