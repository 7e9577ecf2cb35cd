package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/routekit/internal/pkg/metrics"
)

const (
	requestTimeout = 15 * time.Second
	// Snap and optimize wait on the routing provider.
	remoteTimeout = 30 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP. Drag edits are chatty.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	t := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }
	slow := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, remoteTimeout) }

	// Stored routes
	v1.Get("/routes", t(ListRoutesHandler(deps)))
	v1.Get("/routes/:id", t(GetRouteHandler(deps)))
	v1.Delete("/routes/:id", t(DeleteRouteHandler(deps)))
	v1.Get("/routes/:id/kml", t(RouteKMLHandler(deps)))
	v1.Post("/routes/:id/conform", t(ConformRouteHandler(deps)))

	// Catalog
	v1.Get("/regions", t(ListRegionsHandler(deps)))
	v1.Get("/regions/:id", t(GetRegionHandler(deps)))
	v1.Get("/regions/:id/pois", t(RegionPOIsHandler(deps)))
	v1.Get("/pois", t(POIsInBoundsHandler(deps)))
	v1.Get("/pois/nearby", t(NearbyPOIsHandler(deps)))
	v1.Get("/pois/:id", t(GetPOIHandler(deps)))

	v1.Post("/locations", t(PostLocationHandler(deps)))

	// Editing sessions
	v1.Post("/sessions", t(OpenSessionHandler(deps)))
	v1.Get("/sessions", t(ListSessionsHandler(deps)))
	v1.Get("/sessions/:id", t(GetSessionHandler(deps)))
	v1.Delete("/sessions/:id", t(CloseSessionHandler(deps)))
	v1.Post("/sessions/:id/points", t(InsertPointHandler(deps)))
	v1.Put("/sessions/:id/points", t(ReplacePointsHandler(deps)))
	v1.Put("/sessions/:id/points/:index", t(UpdatePointHandler(deps)))
	v1.Delete("/sessions/:id/points/:index", t(DeletePointHandler(deps)))
	v1.Post("/sessions/:id/reorder", t(ReorderPointsHandler(deps)))
	v1.Post("/sessions/:id/undo", t(UndoHandler(deps)))
	v1.Post("/sessions/:id/redo", t(RedoHandler(deps)))
	v1.Delete("/sessions/:id/snapped", t(ClearSnappedHandler(deps)))
	v1.Patch("/sessions/:id", t(UpdateMetadataHandler(deps)))
	v1.Post("/sessions/:id/snap", slow(SnapHandler(deps)))
	v1.Post("/sessions/:id/optimize", slow(OptimizeHandler(deps)))
	v1.Post("/sessions/:id/simplify", t(SimplifyHandler(deps)))
	v1.Get("/sessions/:id/metrics", t(MetricsHandler(deps)))
	v1.Post("/sessions/:id/save", t(SaveSessionHandler(deps)))
	v1.Get("/sessions/:id/kml", t(SessionKMLHandler(deps)))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.SpecPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(EventsWebSocketHandler(deps.NATS)))
	app.Get("/ws/sessions/:id", websocket.New(SessionWebSocketHandler(deps)))
}
