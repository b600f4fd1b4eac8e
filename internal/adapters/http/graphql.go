package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/vastmap/internal/core/domain"
	"github.com/samirrijal/vastmap/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to the snapshot cache.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	vehicleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Vehicle",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lon":         &graphql.Field{Type: graphql.Float},
			"line":        &graphql.Field{Type: graphql.String},
			"type":        &graphql.Field{Type: graphql.String},
			"color":       &graphql.Field{Type: graphql.String},
			"fgColor":     &graphql.Field{Type: graphql.String},
			"destination": &graphql.Field{Type: graphql.String},
			"isRealtime":  &graphql.Field{Type: graphql.Boolean},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"line":      &graphql.Field{Type: graphql.String},
			"direction": &graphql.Field{Type: graphql.String},
			"color":     &graphql.Field{Type: graphql.String},
			"coords":    &graphql.Field{Type: graphql.NewList(graphql.NewList(graphql.Float))},
		},
	})

	weatherType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Weather",
		Fields: graphql.Fields{
			"temperature_c": &graphql.Field{Type: graphql.Float},
			"wind_speed_ms": &graphql.Field{Type: graphql.Float},
			"condition":     &graphql.Field{Type: graphql.String},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stats",
		Fields: graphql.Fields{
			"vehicles":           &graphql.Field{Type: graphql.Int},
			"routes":             &graphql.Field{Type: graphql.Int},
			"snapshotAgeSeconds": &graphql.Field{Type: graphql.Float},
		},
	})

	filterVehicles := func(vtype, line string) []domain.Vehicle {
		snapshot := deps.Snapshots.Read()
		if vtype == "" && line == "" {
			return snapshot.Vehicles
		}
		out := make([]domain.Vehicle, 0, len(snapshot.Vehicles))
		for _, v := range snapshot.Vehicles {
			if vtype != "" && string(v.Type) != vtype {
				continue
			}
			if line != "" && v.Line != line {
				continue
			}
			out = append(out, v)
		}
		return out
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"vehicles": &graphql.Field{
				Type:        graphql.NewList(vehicleType),
				Description: "Live vehicle positions from the latest snapshot",
				Args: graphql.FieldConfigArgument{
					"type": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"line": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return filterVehicles(p.Args["type"].(string), p.Args["line"].(string)), nil
				},
			},
			"vehiclesNearby": &graphql.Field{
				Type:        graphql.NewList(vehicleType),
				Description: "Live vehicles within a radius of a point",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)

					snapshot := deps.Snapshots.Read()
					out := make([]domain.Vehicle, 0)
					for _, v := range snapshot.Vehicles {
						if geospatial.Haversine(lat, lon, v.Lat, v.Lon) <= radius {
							out = append(out, v)
						}
					}
					return out, nil
				},
			},
			"routes": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "Static route geometries",
				Args: graphql.FieldConfigArgument{
					"line": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					line := p.Args["line"].(string)
					if line == "" {
						return deps.Routes, nil
					}
					out := make([]domain.RouteShape, 0, 4)
					for _, r := range deps.Routes {
						if r.Line == line {
							out = append(out, r)
						}
					}
					return out, nil
				},
			},
			"weather": &graphql.Field{
				Type:        weatherType,
				Description: "Current conditions for the serviced area",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Weather == nil {
						return nil, nil
					}
					return deps.Weather.Current(p.Context)
				},
			},
			"stats": &graphql.Field{
				Type:        statsType,
				Description: "Snapshot summary",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snapshot := deps.Snapshots.Read()
					var age float64
					if !snapshot.FetchedAt.IsZero() {
						age = time.Since(snapshot.FetchedAt).Seconds()
					}
					return map[string]interface{}{
						"vehicles":           snapshot.Count,
						"routes":             len(deps.Routes),
						"snapshotAgeSeconds": age,
					}, nil
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
