package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/routekit/internal/adapters/postgres"
	"github.com/samirrijal/routekit/internal/core/editor"
	"github.com/samirrijal/routekit/internal/core/usecases"
	"github.com/samirrijal/routekit/internal/pkg/config"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
	"github.com/samirrijal/routekit/internal/pkg/logging"
)

// importer loads routes from a GeoJSON FeatureCollection, one route per
// feature. Feature properties name, code, color and region_id become the
// route's metadata.
//
//	importer <file-or-url> [name,name,...]
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: importer <file-or-url> [names]")
	}

	cfg, err := config.Load("routekit-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.SetupFromEnv("routekit-importer", "text")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	data, err := load(os.Args[1])
	if err != nil {
		log.Fatalf("load %s: %v", os.Args[1], err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		log.Fatalf("parse feature collection: %v", err)
	}

	// Optional name filter
	nameFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			nameFilter[strings.TrimSpace(s)] = true
		}
	}

	axis, err := geospatial.ParseAxisOrder(cfg.Editor.AxisOrder)
	if err != nil {
		log.Fatalf("axis order: %v", err)
	}
	extractor := geospatial.NewExtractor(axis, slog.Default())
	routes := usecases.NewRouteService(postgres.NewRouteRepo(db), nil, extractor)

	slog.Info("importing routes", "features", len(fc.Features), "source", os.Args[1])

	var (
		wg       sync.WaitGroup
		imported atomic.Int64
		sem      = make(chan struct{}, 4) // max 4 concurrent inserts
	)
	for i, f := range fc.Features {
		name := f.Properties.MustString("name", "")
		if len(nameFilter) > 0 && !nameFilter[name] {
			continue
		}

		wg.Add(1)
		go func(i int, f *geojson.Feature) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importFeature(ctx, routes, extractor, f); err != nil {
				slog.Error("import feature failed", "index", i, "name", name, "error", err)
				return
			}
			imported.Add(1)
		}(i, f)
	}

	wg.Wait()
	slog.Info("import complete", "imported", imported.Load())
}

func importFeature(ctx context.Context, routes *usecases.RouteService, x *geospatial.Extractor, f *geojson.Feature) error {
	points, err := x.Parse(f.Geometry)
	if err != nil {
		return fmt.Errorf("geometry: %w", err)
	}

	seed := editor.Seed{
		Name:  f.Properties.MustString("name", ""),
		Code:  f.Properties.MustString("code", ""),
		Color: f.Properties.MustString("color", ""),
		Raw:   points,
	}
	if region := f.Properties.MustString("region_id", ""); region != "" {
		seed.RegionID = &region
	}

	rec, err := routes.Save(ctx, editor.SeedRoute(seed))
	if err != nil {
		return err
	}
	slog.Info("route imported", "id", rec.ID, "name", rec.Name, "points", len(points))
	return nil
}

func load(src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Get(src)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src)
	}
	return io.ReadAll(resp.Body)
}
