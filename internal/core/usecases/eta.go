package usecases

import (
	"math"
	"time"

	"github.com/samirrijal/sirius/internal/core/domain"
)

// Estimate finds the station nearest to the train and computes its ETA to the
// next scheduled stop. It runs on every poll with possibly partial data, so
// every missing input yields an absent field rather than an error.
//
// now stands in for the previous departure when the train has not left its
// first stop yet.
func Estimate(train domain.TrainSnapshot, stationsOnPath []domain.StationConfig, timetable []domain.TimetableRow, now time.Time) domain.Estimate {
	est := domain.Estimate{NearestIndex: -1}

	var nearestDist *float64
	if train.Position != nil {
		if s, d, ok := NearestStation(*train.Position, stationsOnPath); ok {
			est.NearestStation = &s
			nearestDist = &d
			est.NearestDistance = &d
			est.NearestIndex, est.NearestFound = rowIndexByName(timetable, s.Name)
		}
	}

	prev, next := TimetableNeighbours(timetable, train.ProgressIndex)
	if next != nil {
		est.NextStation = next.Name
	}

	if train.Position != nil {
		est.TargetDistance = nearestDist
		if next != nil {
			for _, s := range stationsOnPath {
				if s.Name == next.Name {
					d := domain.Distance(*train.Position, s.Platform)
					est.TargetDistance = &d
					break
				}
			}
		}
	}

	if est.TargetDistance != nil {
		est.VelocityETA = VelocityETA(*est.TargetDistance, train.Velocity)
	}
	est.ScheduleETA = ScheduleETA(prev, next, now)
	est.ETA = CombineETA(est.VelocityETA, est.ScheduleETA)
	return est
}

// NearestStation returns the station whose platform is closest to pos. Ties
// go to the station listed first.
func NearestStation(pos domain.Coordinate, stations []domain.StationConfig) (domain.StationConfig, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range stations {
		if d := domain.Distance(pos, s.Platform); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return domain.StationConfig{}, 0, false
	}
	return stations[best], bestDist, true
}

// TimetableNeighbours returns the last row before the train's progress index
// and the first row at or after it. Either may be nil.
func TimetableNeighbours(rows []domain.TimetableRow, progress int) (prev, next *domain.TimetableRow) {
	for i := range rows {
		if rows[i].Index < progress {
			prev = &rows[i]
			continue
		}
		if next == nil {
			next = &rows[i]
		}
	}
	return prev, next
}

// VelocityETA projects the minutes needed to cover distanceKm at the current
// velocity (km/h). A missing, zero or negative velocity gives no estimate.
func VelocityETA(distanceKm float64, velocity *float64) *float64 {
	if velocity == nil || *velocity <= 0 {
		return nil
	}
	eta := distanceKm / *velocity * 60
	return &eta
}

// ScheduleETA is the scheduled running time, in whole minutes, from the
// previous stop's departure to the next stop's arrival. now replaces a missing
// previous departure; a zero now leaves the estimate undefined.
func ScheduleETA(prev, next *domain.TimetableRow, now time.Time) *float64 {
	if next == nil || next.ScheduledArrival == nil {
		return nil
	}

	from := now
	if prev != nil && prev.ScheduledDeparture != nil {
		from = *prev.ScheduledDeparture
	}
	if from.IsZero() {
		return nil
	}

	eta := math.Abs(math.Trunc(next.ScheduledArrival.Sub(from).Minutes()))
	return &eta
}

// CombineETA keeps the smaller of two estimates, or whichever one is defined.
func CombineETA(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a <= *b:
		return a
	default:
		return b
	}
}

func rowIndexByName(rows []domain.TimetableRow, name string) (int, bool) {
	for i, r := range rows {
		if r.Name == name {
			return i, true
		}
	}
	return -1, false
}
