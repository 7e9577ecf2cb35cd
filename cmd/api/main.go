package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/routekit/internal/adapters/http"
	"github.com/samirrijal/routekit/internal/adapters/mapbox"
	natsadapter "github.com/samirrijal/routekit/internal/adapters/nats"
	"github.com/samirrijal/routekit/internal/adapters/postgres"
	"github.com/samirrijal/routekit/internal/adapters/valkey"
	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/mapsync"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/core/usecases"
	"github.com/samirrijal/routekit/internal/pkg/config"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
	"github.com/samirrijal/routekit/internal/pkg/logging"
	"github.com/samirrijal/routekit/internal/pkg/metrics"
	"github.com/samirrijal/routekit/internal/pkg/telemetry"
	"github.com/samirrijal/routekit/internal/workflows"
)

func main() {
	cfg, err := config.Load("routekit-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.SetupFromEnv("routekit-api", "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, "routekit")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
		pub = nil
	} else {
		publisher = pub
		defer pub.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Temporal (optional: background conformance)
	var scheduler ports.ConformanceScheduler
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		slog.Warn("temporal unavailable, background conformance disabled", "error", err)
	} else {
		defer tc.Close()
		scheduler = workflows.NewScheduler(tc, cfg.Temporal.TaskQueue, cfg.Editor.SimplifyTolerance)
	}

	axis, err := geospatial.ParseAxisOrder(cfg.Editor.AxisOrder)
	if err != nil {
		log.Fatalf("axis order: %v", err)
	}
	extractor := geospatial.NewExtractor(axis, slog.Default())

	// Repos
	routeRepo := postgres.NewRouteRepo(db)
	regionRepo := postgres.NewRegionRepo(db)
	poiRepo := postgres.NewPOIRepo(db)

	// Use cases
	routing := mapbox.NewClient(cfg.Routing.AccessToken, cfg.Routing.BaseURL, time.Duration(cfg.Routing.TimeoutSeconds)*time.Second)
	routeSvc := usecases.NewRouteService(routeRepo, publisher, extractor)
	conformanceSvc := usecases.NewConformanceService(routing, cacheSvc, usecases.ConformanceConfig{
		Profile:      cfg.Routing.Profile,
		MaxWaypoints: cfg.Routing.MaxWaypoints,
		CacheTTL:     time.Duration(cfg.Routing.CacheTTLSeconds) * time.Second,
		Timeout:      time.Duration(cfg.Routing.TimeoutSeconds) * time.Second,
	})
	calculator := usecases.NewMetricsCalculator(usecases.EstimateConfig{
		FareBase:        cfg.Estimates.FareBase,
		FareFreeKm:      cfg.Estimates.FareFreeKm,
		FarePerKm:       cfg.Estimates.FarePerKm,
		FareBand:        cfg.Estimates.FareBand,
		AvgSpeedKmh:     cfg.Estimates.AvgSpeedKmh,
		TimeBandMinutes: cfg.Estimates.TimeBandMinutes,
	}, geospatial.RegionOptions{
		Padding: cfg.Editor.RegionPadding,
		MinSpan: cfg.Editor.RegionMinSpan,
	})
	sessionSvc := usecases.NewSessionService(routeSvc, conformanceSvc, calculator, usecases.SessionConfig{
		HistoryLimit:      cfg.Editor.HistoryLimit,
		InsertPolicy:      mapsync.InsertPolicy(cfg.Editor.InsertPosition),
		SimplifyTolerance: cfg.Editor.SimplifyTolerance,
		IdleTimeout:       time.Duration(cfg.Editor.SessionIdleMinutes) * time.Minute,
	})
	catalogSvc := usecases.NewCatalogService(regionRepo, poiRepo, cacheSvc)

	// Location samples from the external provider
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL,
		natsadapter.WithMaxAge(time.Duration(cfg.Locations.MaxAgeSecs)*time.Second))
	if err != nil {
		slog.Warn("location subscription unavailable", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribeLocationSamples(ctx, func(ctx context.Context, s *domain.LocationSample) error {
			if err := sessionSvc.ObserveLocation(ctx, s); err != nil && !domain.IsValidation(err) {
				return err
			}
			return nil
		})
		if err != nil {
			slog.Warn("subscribe location samples failed", "error", err)
		}
	}

	// Background housekeeping: idle sessions and pool gauges
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := sessionSvc.EvictIdle(now); n > 0 {
					slog.Info("evicted idle sessions", "count", n)
				}
				metrics.UpdateDBPoolMetrics(db.Stat())
			}
		}
	}()

	deps := &http.Dependencies{
		Sessions:  sessionSvc,
		Routes:    routeSvc,
		Catalog:   catalogSvc,
		Scheduler: scheduler,
		Extractor: extractor,
		NATS:      natsConn,
		DB:        db,
		Cache:     cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // full-path replaces can be large
		AppName:      "RouteKit API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, Link, Location",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
