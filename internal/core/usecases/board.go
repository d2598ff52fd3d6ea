package usecases

import (
	"math"
	"sort"
	"time"

	"github.com/samirrijal/sirius/internal/core/domain"
	"github.com/samirrijal/sirius/internal/pkg/geospatial"
)

const (
	approachRadiusKm = 3.0  // next stop is the post and the train is this close
	etaMinDistanceKm = 1.0  // closer than this the train is considered at the post
	etaMaxMinutes    = 20.0 // ETAs beyond this are not shown on the board
)

// BuildBoard lists the trains whose timetable calls at a post. names are the
// display names identifying the post (its own and its secondary posts').
func BuildBoard(snap *domain.ServerSnapshot, post domain.StationConfig, names []string, now time.Time) domain.Board {
	board := domain.Board{
		Server:    snap.Server,
		Post:      post,
		FetchedAt: snap.FetchedAt,
		Entries:   []domain.BoardEntry{},
	}

	isPost := make(map[string]bool, len(names))
	for _, n := range names {
		isPost[n] = true
	}

	for _, train := range snap.Trains {
		postIdx := -1
		for i, r := range train.Timetable {
			if isPost[r.Name] {
				postIdx = i
				break
			}
		}
		if postIdx < 0 {
			continue
		}
		board.Entries = append(board.Entries, boardEntry(train, &train.Timetable[postIdx], post, isPost, now))
	}

	sort.SliceStable(board.Entries, func(i, j int) bool {
		a, b := board.Entries[i].ScheduledArrival, board.Entries[j].ScheduledArrival
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return board.Entries[i].TrainNumber < board.Entries[j].TrainNumber
	})
	return board
}

func boardEntry(train domain.TrainState, row *domain.TimetableRow, post domain.StationConfig, isPost map[string]bool, now time.Time) domain.BoardEntry {
	e := domain.BoardEntry{
		TrainNumber:        train.Number,
		TrainName:          train.Name,
		Vehicles:           train.Vehicles,
		ScheduledArrival:   row.ScheduledArrival,
		ScheduledDeparture: row.ScheduledDeparture,
		StopType:           row.StopType,
		Track:              row.Track,
		Platform:           row.Platform,
		Passed:             row.Index < train.Live.ProgressIndex,
		Offline:            train.Live.Position == nil,
	}

	prev, next := TimetableNeighbours(train.Timetable, train.Live.ProgressIndex)
	switch {
	case next != nil:
		e.NextStation = next.Name
	case train.Estimate.NearestStation != nil:
		e.NextStation = train.Estimate.NearestStation.Name
	}

	if e.Offline {
		return e
	}

	d := geospatial.Round(domain.Distance(*train.Live.Position, post.Platform), 2)
	e.Distance = &d
	e.ETA = CombineETA(VelocityETA(d, train.Live.Velocity), ScheduleETA(prev, row, now))

	if e.Passed {
		return e
	}
	e.Approaching = isPost[e.NextStation] && d < approachRadiusKm
	e.ShowETA = e.ETA != nil && math.Round(*e.ETA) <= etaMaxMinutes && d > etaMinDistanceKm
	return e
}
