package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/ports"
)

// routeMap flattens a stored route for the GraphQL default resolver.
func routeMap(deps *Dependencies, rec *domain.RouteRecord) map[string]interface{} {
	v := newRouteView(deps, rec)
	return map[string]interface{}{
		"id":             v.ID,
		"code":           v.Code,
		"name":           v.Name,
		"color":          v.Color,
		"status":         string(v.Status),
		"region_id":      v.RegionID,
		"length_meters":  v.LengthMeters,
		"points":         v.Points,
		"snapped_points": v.SnappedPoints,
		"updated_at":     v.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// buildSchema creates the read-only GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"code":           &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"color":          &graphql.Field{Type: graphql.String},
			"status":         &graphql.Field{Type: graphql.String},
			"region_id":      &graphql.Field{Type: graphql.String},
			"length_meters":  &graphql.Field{Type: graphql.Float},
			"points":         &graphql.Field{Type: graphql.NewList(geoPointType)},
			"snapped_points": &graphql.Field{Type: graphql.NewList(geoPointType)},
			"updated_at":     &graphql.Field{Type: graphql.String},
		},
	})

	regionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Region",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"code":      &graphql.Field{Type: graphql.String},
			"is_active": &graphql.Field{Type: graphql.Boolean},
		},
	})

	poiType := graphql.NewObject(graphql.ObjectConfig{
		Name: "POI",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"type":      &graphql.Field{Type: graphql.String},
			"location":  &graphql.Field{Type: geoPointType},
			"region_id": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Get a stored route by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rec, err := deps.Routes.GetByID(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return routeMap(deps, rec), nil
				},
			},
			"routes": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "List stored routes, newest first",
				Args: graphql.FieldConfigArgument{
					"region_id": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"status":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					recs, err := deps.Routes.List(p.Context, ports.RouteFilter{
						RegionID: p.Args["region_id"].(string),
						Status:   domain.RouteStatus(p.Args["status"].(string)),
						Limit:    p.Args["limit"].(int),
						Offset:   p.Args["offset"].(int),
					})
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(recs))
					for i := range recs {
						out = append(out, routeMap(deps, &recs[i]))
					}
					return out, nil
				},
			},
			"regions": &graphql.Field{
				Type:        graphql.NewList(regionType),
				Description: "List regions",
				Args: graphql.FieldConfigArgument{
					"all": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Catalog.Regions(p.Context, !p.Args["all"].(bool))
				},
			},
			"poisInBounds": &graphql.Field{
				Type:        graphql.NewList(poiType),
				Description: "POIs inside a viewport",
				Args: graphql.FieldConfigArgument{
					"min_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"min_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 200},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b := domain.Bounds{
						MinLat: p.Args["min_lat"].(float64),
						MinLon: p.Args["min_lon"].(float64),
						MaxLat: p.Args["max_lat"].(float64),
						MaxLon: p.Args["max_lon"].(float64),
					}
					return deps.Catalog.POIsInBounds(p.Context, b, p.Args["limit"].(int))
				},
			},
			"poisByRegion": &graphql.Field{
				Type:        graphql.NewList(poiType),
				Description: "POIs assigned to a region",
				Args: graphql.FieldConfigArgument{
					"region_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Catalog.POIsByRegion(p.Context, p.Args["region_id"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
