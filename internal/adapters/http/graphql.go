package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/sirius/internal/core/domain"
)

// stopTypeField resolves a domain.StopType, which the default int coercion
// does not recognise.
func stopTypeField() *graphql.Field {
	return &graphql.Field{
		Type: graphql.Int,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			switch v := p.Source.(type) {
			case domain.TimetableRow:
				return int(v.StopType), nil
			case *domain.TimetableRow:
				return int(v.StopType), nil
			case domain.BoardEntry:
				return int(v.StopType), nil
			case *domain.BoardEntry:
				return int(v.StopType), nil
			}
			return nil, nil
		},
	}
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	stationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Station",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"name":            &graphql.Field{Type: graphql.String},
			"secondary_posts": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"platform":        &graphql.Field{Type: coordinateType},
		},
	})

	speedLimitType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SpeedLimit",
		Fields: graphql.Fields{
			"axis_start": &graphql.Field{Type: graphql.Float},
			"vmax":       &graphql.Field{Type: graphql.String},
			"velocity":   &graphql.Field{Type: graphql.Int},
			"band":       &graphql.Field{Type: graphql.String},
			"line_no":    &graphql.Field{Type: graphql.Int},
			"track":      &graphql.Field{Type: graphql.String},
		},
	})

	timetableRowType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TimetableRow",
		Fields: graphql.Fields{
			"index":               &graphql.Field{Type: graphql.Int},
			"mileage":             &graphql.Field{Type: graphql.Float},
			"line":                &graphql.Field{Type: graphql.Int},
			"track":               &graphql.Field{Type: graphql.String},
			"platform":            &graphql.Field{Type: graphql.String},
			"name":                &graphql.Field{Type: graphql.String},
			"post_id":             &graphql.Field{Type: graphql.String},
			"scheduled_arrival":   &graphql.Field{Type: graphql.DateTime},
			"scheduled_departure": &graphql.Field{Type: graphql.DateTime},
			"stop_type":           stopTypeField(),
			"stop_letters":        &graphql.Field{Type: graphql.String},
			"layover":             &graphql.Field{Type: graphql.Float},
			"speed_limits":        &graphql.Field{Type: graphql.NewList(speedLimitType)},
		},
	})

	liveType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Live",
		Fields: graphql.Fields{
			"position":       &graphql.Field{Type: coordinateType},
			"velocity":       &graphql.Field{Type: graphql.Float},
			"progress_index": &graphql.Field{Type: graphql.Int},
		},
	})

	estimateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Estimate",
		Fields: graphql.Fields{
			"nearest_station":     &graphql.Field{Type: stationType},
			"nearest_distance_km": &graphql.Field{Type: graphql.Float},
			"nearest_index":       &graphql.Field{Type: graphql.Int},
			"nearest_found":       &graphql.Field{Type: graphql.Boolean},
			"next_station":        &graphql.Field{Type: graphql.String},
			"target_distance_km":  &graphql.Field{Type: graphql.Float},
			"velocity_eta_min":    &graphql.Field{Type: graphql.Float},
			"schedule_eta_min":    &graphql.Field{Type: graphql.Float},
			"eta_min":             &graphql.Field{Type: graphql.Float},
		},
	})

	trainType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Train",
		Fields: graphql.Fields{
			"number":        &graphql.Field{Type: graphql.String},
			"name":          &graphql.Field{Type: graphql.String},
			"category":      &graphql.Field{Type: graphql.String},
			"max_velocity":  &graphql.Field{Type: graphql.Int},
			"start_station": &graphql.Field{Type: graphql.String},
			"end_station":   &graphql.Field{Type: graphql.String},
			"vehicles":      &graphql.Field{Type: graphql.NewList(graphql.String)},
			"controlled_by": &graphql.Field{Type: graphql.String},
			"live":          &graphql.Field{Type: liveType},
			"timetable":     &graphql.Field{Type: graphql.NewList(timetableRowType)},
			"estimate":      &graphql.Field{Type: estimateType},
		},
	})

	boardEntryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BoardEntry",
		Fields: graphql.Fields{
			"train_number":        &graphql.Field{Type: graphql.String},
			"train_name":          &graphql.Field{Type: graphql.String},
			"vehicles":            &graphql.Field{Type: graphql.NewList(graphql.String)},
			"scheduled_arrival":   &graphql.Field{Type: graphql.DateTime},
			"scheduled_departure": &graphql.Field{Type: graphql.DateTime},
			"stop_type":           stopTypeField(),
			"track":               &graphql.Field{Type: graphql.String},
			"platform":            &graphql.Field{Type: graphql.String},
			"next_station":        &graphql.Field{Type: graphql.String},
			"distance_km":         &graphql.Field{Type: graphql.Float},
			"eta_min":             &graphql.Field{Type: graphql.Float},
			"show_eta":            &graphql.Field{Type: graphql.Boolean},
			"passed":              &graphql.Field{Type: graphql.Boolean},
			"approaching":         &graphql.Field{Type: graphql.Boolean},
			"offline":             &graphql.Field{Type: graphql.Boolean},
		},
	})

	boardType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Board",
		Fields: graphql.Fields{
			"server":     &graphql.Field{Type: graphql.String},
			"post":       &graphql.Field{Type: stationType},
			"fetched_at": &graphql.Field{Type: graphql.DateTime},
			"entries":    &graphql.Field{Type: graphql.NewList(boardEntryType)},
		},
	})

	serverType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Server",
		Fields: graphql.Fields{
			"code":         &graphql.Field{Type: graphql.String},
			"last_update":  &graphql.Field{Type: graphql.DateTime},
			"train_count":  &graphql.Field{Type: graphql.Int},
			"snapshot_age": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"servers": &graphql.Field{
				Type:        graphql.NewList(serverType),
				Description: "Configured game servers",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Dispatch.Servers(), nil
				},
			},
			"stations": &graphql.Field{
				Type:        graphql.NewList(stationType),
				Description: "Configured signal posts",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Dispatch.Stations().All(), nil
				},
			},
			"station": &graphql.Field{
				Type:        stationType,
				Description: "Get a post by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if post, ok := deps.Dispatch.Stations().ByID(p.Args["id"].(string)); ok {
						return post, nil
					}
					return nil, nil
				},
			},
			"trains": &graphql.Field{
				Type:        graphql.NewList(trainType),
				Description: "Trains running on a server",
				Args: graphql.FieldConfigArgument{
					"server": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := deps.Dispatch.Snapshot(p.Args["server"].(string))
					if err != nil {
						return nil, err
					}
					return snap.Trains, nil
				},
			},
			"train": &graphql.Field{
				Type:        trainType,
				Description: "A train with its timetable and estimate",
				Args: graphql.FieldConfigArgument{
					"server": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"number": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Dispatch.Train(p.Args["server"].(string), p.Args["number"].(string))
				},
			},
			"board": &graphql.Field{
				Type:        boardType,
				Description: "Dispatch board of a post",
				Args: graphql.FieldConfigArgument{
					"server": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"post":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Dispatch.Board(p.Args["server"].(string), p.Args["post"].(string))
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
			return errBadRequest(c, "invalid request body")
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
