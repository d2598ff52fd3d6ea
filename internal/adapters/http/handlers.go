package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/sirius/internal/core/domain"
)

// TrainSummary is the list view of a train.
type TrainSummary struct {
	Number       string             `json:"number"`
	Name         string             `json:"name"`
	Category     string             `json:"category,omitempty"`
	StartStation string             `json:"start_station"`
	EndStation   string             `json:"end_station"`
	Position     *domain.Coordinate `json:"position,omitempty"`
	Velocity     *float64           `json:"velocity,omitempty"`
	NextStation  string             `json:"next_station,omitempty"`
	ETA          *float64           `json:"eta_min,omitempty"`
	Offline      bool               `json:"offline"`
	Controlled   bool               `json:"controlled"`
}

func summarize(t domain.TrainState) TrainSummary {
	return TrainSummary{
		Number:       t.Number,
		Name:         t.Name,
		Category:     t.Category,
		StartStation: t.StartStation,
		EndStation:   t.EndStation,
		Position:     t.Live.Position,
		Velocity:     t.Live.Velocity,
		NextStation:  t.Estimate.NextStation,
		ETA:          t.Estimate.ETA,
		Offline:      t.Live.Position == nil,
		Controlled:   t.ControlledBy != "",
	}
}

// TrainPage is a page of train summaries for one server.
type TrainPage struct {
	Server     string         `json:"server"`
	FetchedAt  time.Time      `json:"fetched_at"`
	Data       []TrainSummary `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// ListServersHandler returns the configured game servers.
func ListServersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Dispatch.Servers())
	}
}

// ListTrainsHandler returns the trains running on a server.
// Optional filters: category, post (trains calling at a post ID).
func ListTrainsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Dispatch.Snapshot(c.Params("code"))
		if err != nil {
			return errFromService(c, err)
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		category := strings.ToUpper(c.Query("category"))
		var names map[string]bool
		if postID := c.Query("post"); postID != "" {
			post, ok := deps.Dispatch.Stations().ByID(postID)
			if !ok {
				return errBadRequest(c, "unknown post "+postID)
			}
			names = make(map[string]bool)
			for _, n := range deps.Dispatch.Stations().Names(post) {
				names[n] = true
			}
		}

		trains := make([]TrainSummary, 0, len(snap.Trains))
		for _, t := range snap.Trains {
			if category != "" && t.Category != category {
				continue
			}
			if names != nil && !callsAt(t, names) {
				continue
			}
			trains = append(trains, summarize(t))
		}

		total := len(trains)
		if offset >= total {
			trains = []TrainSummary{}
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			trains = trains[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(TrainPage{Server: snap.Server, FetchedAt: snap.FetchedAt, Data: trains, Pagination: pg})
	}
}

func callsAt(t domain.TrainState, names map[string]bool) bool {
	for _, r := range t.Timetable {
		if names[r.Name] {
			return true
		}
	}
	return false
}

// GetTrainHandler returns a train with its normalized timetable and estimate.
func GetTrainHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		train, err := deps.Dispatch.Train(c.Params("code"), c.Params("number"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(train)
	}
}

// PostBoardHandler returns the dispatch board of a post.
func PostBoardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		board, err := deps.Dispatch.Board(c.Params("code"), c.Params("post"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(board)
	}
}

// ListStationsHandler returns every configured post.
func ListStationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Dispatch.Stations().All())
	}
}

// GetStationHandler returns one post by ID.
func GetStationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		post, ok := deps.Dispatch.Stations().ByID(id)
		if !ok {
			return errNotFound(c, "unknown post "+id)
		}
		return c.JSON(post)
	}
}
