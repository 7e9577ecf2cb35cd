package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routekit/internal/adapters/postgres"
	"github.com/samirrijal/routekit/internal/adapters/valkey"
	"github.com/samirrijal/routekit/internal/core/ports"
	"github.com/samirrijal/routekit/internal/core/usecases"
	"github.com/samirrijal/routekit/internal/pkg/geospatial"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions  *usecases.SessionService
	Routes    *usecases.RouteService
	Catalog   *usecases.CatalogService
	Scheduler ports.ConformanceScheduler
	Extractor *geospatial.Extractor
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache

	// SpecPath overrides the OpenAPI document served under /docs.
	SpecPath string
}

func (d *Dependencies) extractor() *geospatial.Extractor {
	if d.Extractor != nil {
		return d.Extractor
	}
	return geospatial.NewExtractor(geospatial.AxisAuto, nil)
}
