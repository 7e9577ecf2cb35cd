package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routekit",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routekit",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Routing and editing metrics
	RoutingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "routing",
		Name:      "requests_total",
		Help:      "Total routing service calls by operation and outcome",
	}, []string{"operation", "outcome"})

	RoutingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routekit",
		Subsystem: "routing",
		Name:      "request_duration_seconds",
		Help:      "Latency of routing service calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	RoutingFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "routing",
		Name:      "fallbacks_total",
		Help:      "Total straight-line or original-order fallbacks after a routing failure",
	}, []string{"operation"})

	WaypointTruncations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "routing",
		Name:      "waypoint_truncations_total",
		Help:      "Total optimize calls truncated to the waypoint limit",
	})

	EditOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "editor",
		Name:      "operations_total",
		Help:      "Total edit operations applied to routes",
	}, []string{"kind"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routekit",
		Subsystem: "editor",
		Name:      "active_sessions",
		Help:      "Current number of open editing sessions",
	})

	LocationSamples = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "location",
		Name:      "samples_received_total",
		Help:      "Total location samples received from the location provider",
	})

	LocationSamplesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "location",
		Name:      "samples_dropped_total",
		Help:      "Total location samples dropped before reaching a session",
	}, []string{"reason"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routekit",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routekit",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routekit",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routekit",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routekit",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolMaxConns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routekit",
		Subsystem: "db",
		Name:      "pool_max_conns",
		Help:      "Configured maximum size of the database pool",
	})

)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of *pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
}

// UpdateDBPoolMetrics copies a pool snapshot into the db gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	if s == nil {
		return
	}
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
	DBPoolMaxConns.Set(float64(s.MaxConns()))
}
