package telemetry

// Span names used for instrumentation.
const (
	// Routing service
	SpanRoutingMatch    = "routing.match"
	SpanRoutingOptimize = "routing.optimize"

	// Conformance
	SpanConformanceSnap     = "conformance.snap"
	SpanConformanceOptimize = "conformance.optimize"

	// Persistence
	SpanRouteSave = "route.save"
	SpanRouteLoad = "route.load"
)

// Span attribute keys.
const (
	AttrRouteID    = "route.id"
	AttrPointCount = "route.point_count"
	AttrProfile    = "routing.profile"
	AttrFallback   = "routing.fallback"
	AttrTruncated  = "routing.truncated"
)
