package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/routekit/internal/adapters/mapbox"
	natsadapter "github.com/samirrijal/routekit/internal/adapters/nats"
	"github.com/samirrijal/routekit/internal/adapters/postgres"
	"github.com/samirrijal/routekit/internal/adapters/valkey"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/core/usecases"
	"github.com/samirrijal/routekit/internal/pkg/config"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
	"github.com/samirrijal/routekit/internal/pkg/logging"
	"github.com/samirrijal/routekit/internal/pkg/telemetry"
	"github.com/samirrijal/routekit/internal/workflows"
)

func main() {
	cfg, err := config.Load("routekit-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.SetupFromEnv("routekit-worker", "json")

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr, "routekit"); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	axis, err := geospatial.ParseAxisOrder(cfg.Editor.AxisOrder)
	if err != nil {
		log.Fatalf("axis order: %v", err)
	}

	routing := mapbox.NewClient(cfg.Routing.AccessToken, cfg.Routing.BaseURL, time.Duration(cfg.Routing.TimeoutSeconds)*time.Second)
	activities := &workflows.ConformanceActivities{
		Routes: usecases.NewRouteService(postgres.NewRouteRepo(db), publisher, geospatial.NewExtractor(axis, slog.Default())),
		Conformance: usecases.NewConformanceService(routing, cacheSvc, usecases.ConformanceConfig{
			Profile:      cfg.Routing.Profile,
			MaxWaypoints: cfg.Routing.MaxWaypoints,
			CacheTTL:     time.Duration(cfg.Routing.CacheTTLSeconds) * time.Second,
			Timeout:      time.Duration(cfg.Routing.TimeoutSeconds) * time.Second,
		}),
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ConformanceWorkflow)
	w.RegisterActivity(activities)

	slog.Info("conformance worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
