package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/routekit/internal/adapters/nats"
	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/pkg/config"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
	"github.com/samirrijal/routekit/internal/pkg/logging"
)

// feedEntry is one device position as served by the location provider.
// location accepts any single-coordinate shape the extractor understands.
type feedEntry struct {
	DeviceID string          `json:"device_id"`
	Location json.RawMessage `json:"location"`
	Accuracy float64         `json:"accuracy"`
	Time     time.Time       `json:"time"`
}

// locrelay polls the location provider and feeds samples onto the bus.
func main() {
	cfg, err := config.Load("routekit-locrelay")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.SetupFromEnv("routekit-locrelay", "json")

	if cfg.Locations.FeedURL == "" {
		log.Fatal("locations.feed_url is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	axis, err := geospatial.ParseAxisOrder(cfg.Editor.AxisOrder)
	if err != nil {
		log.Fatalf("axis order: %v", err)
	}

	r := &relay{
		client:    &http.Client{Timeout: 30 * time.Second},
		feedURL:   cfg.Locations.FeedURL,
		pub:       pub,
		extractor: geospatial.NewExtractor(axis, slog.Default()),
		last:      make(map[string]time.Time),
	}

	pollInterval := time.Duration(cfg.Locations.PollSeconds) * time.Second
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	slog.Info("location relay started", "feed", cfg.Locations.FeedURL, "interval", pollInterval.String())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run once immediately
	r.poll(ctx)

	for {
		select {
		case <-ticker.C:
			r.poll(ctx)
		case sig := <-quit:
			slog.Info("shutting down location relay", "signal", sig.String())
			return
		}
	}
}

type relay struct {
	client    *http.Client
	feedURL   string
	pub       *natsadapter.Publisher
	extractor *geospatial.Extractor
	last      map[string]time.Time // device -> newest sample relayed
}

func (r *relay) poll(ctx context.Context) {
	entries, err := r.fetch(ctx)
	if err != nil {
		slog.Warn("location feed fetch failed", "error", err)
		return
	}

	relayed := 0
	for _, e := range entries {
		if e.DeviceID == "" {
			continue
		}
		if e.Time.IsZero() {
			e.Time = time.Now()
		} else if !e.Time.After(r.last[e.DeviceID]) {
			continue
		}

		pts, err := r.extractor.Parse(e.Location)
		if err != nil || len(pts) != 1 {
			slog.Debug("skipping sample without a single coordinate", "device_id", e.DeviceID, "error", err)
			continue
		}

		sample := &domain.LocationSample{DeviceID: e.DeviceID, Location: pts[0], Accuracy: e.Accuracy, Time: e.Time}
		if err := r.pub.PublishLocationSample(ctx, sample); err != nil {
			slog.Warn("publish location sample failed", "device_id", e.DeviceID, "error", err)
			continue
		}
		r.last[e.DeviceID] = e.Time
		relayed++
	}

	if relayed > 0 {
		slog.Info("location samples relayed", "count", relayed)
	}
}

func (r *relay) fetch(ctx context.Context) ([]feedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", r.feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, r.feedURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var entries []feedEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return entries, nil
}
