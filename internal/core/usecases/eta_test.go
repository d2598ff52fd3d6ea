package usecases_test

import (
	"math"
	"testing"
	"time"

	"github.com/samirrijal/sirius/internal/core/domain"
	"github.com/samirrijal/sirius/internal/core/usecases"
)

func ptr[T any](v T) *T { return &v }

var (
	stationA = domain.StationConfig{ID: "A", Name: "Alpha", Platform: domain.Coordinate{Lon: 0, Lat: 0}}
	stationB = domain.StationConfig{ID: "B", Name: "Bravo", Platform: domain.Coordinate{Lon: 1, Lat: 0}}
)

func at(hour, minute int) *time.Time {
	t := time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
	return &t
}

func TestEstimate_NearestStation(t *testing.T) {
	train := domain.TrainSnapshot{Position: &domain.Coordinate{Lon: 0.01, Lat: 0}}
	timetable := []domain.TimetableRow{
		{Index: 0, Name: "Alpha"},
		{Index: 1, Name: "Bravo"},
	}

	est := usecases.Estimate(train, []domain.StationConfig{stationA, stationB}, timetable, time.Time{})

	if est.NearestStation == nil || est.NearestStation.ID != "A" {
		t.Fatalf("expected nearest station A, got %+v", est.NearestStation)
	}
	if !est.NearestFound || est.NearestIndex != 0 {
		t.Errorf("expected nearest index 0, got %d (found=%v)", est.NearestIndex, est.NearestFound)
	}
	if est.NearestDistance == nil || math.Abs(*est.NearestDistance-1.11) > 0.01 {
		t.Errorf("expected ~1.11 km, got %v", est.NearestDistance)
	}
}

func TestEstimate_NearestNotInTimetable(t *testing.T) {
	train := domain.TrainSnapshot{Position: &domain.Coordinate{Lon: 0.01, Lat: 0}}
	timetable := []domain.TimetableRow{{Index: 0, Name: "Bravo"}}

	est := usecases.Estimate(train, []domain.StationConfig{stationA, stationB}, timetable, time.Time{})

	if est.NearestFound {
		t.Error("expected nearest station not to be found in the timetable")
	}
	if est.NearestIndex != -1 {
		t.Errorf("expected index -1, got %d", est.NearestIndex)
	}
}

func TestEstimate_VelocityProjection(t *testing.T) {
	// Bravo is about 10 km east of the train along the equator.
	train := domain.TrainSnapshot{
		Position:      &domain.Coordinate{Lon: 1 - 10/111.195, Lat: 0},
		Velocity:      ptr(50.0),
		ProgressIndex: 1,
	}
	timetable := []domain.TimetableRow{
		{Index: 0, Name: "Alpha", ScheduledDeparture: at(10, 0)},
		{Index: 1, Name: "Bravo", ScheduledArrival: at(11, 0)},
	}

	est := usecases.Estimate(train, []domain.StationConfig{stationA, stationB}, timetable, time.Time{})

	if est.NextStation != "Bravo" {
		t.Errorf("expected next station Bravo, got %q", est.NextStation)
	}
	if est.VelocityETA == nil || math.Abs(*est.VelocityETA-12) > 0.01 {
		t.Fatalf("expected velocity ETA ~12, got %v", est.VelocityETA)
	}
	if est.ScheduleETA == nil || *est.ScheduleETA != 60 {
		t.Errorf("expected schedule ETA 60, got %v", est.ScheduleETA)
	}
	if est.ETA == nil || *est.ETA != *est.VelocityETA {
		t.Errorf("expected ETA to be the smaller velocity ETA, got %v", est.ETA)
	}
}

func TestEstimate_ZeroVelocityUsesSchedule(t *testing.T) {
	train := domain.TrainSnapshot{
		Position:      &domain.Coordinate{Lon: 0.5, Lat: 0},
		Velocity:      ptr(0.0),
		ProgressIndex: 1,
	}
	timetable := []domain.TimetableRow{
		{Index: 0, Name: "Alpha", ScheduledDeparture: at(10, 0)},
		{Index: 1, Name: "Bravo", ScheduledArrival: at(10, 7)},
	}

	est := usecases.Estimate(train, []domain.StationConfig{stationA, stationB}, timetable, time.Time{})

	if est.VelocityETA != nil {
		t.Errorf("expected no velocity ETA, got %v", *est.VelocityETA)
	}
	if est.ETA == nil || *est.ETA != 7 {
		t.Errorf("expected ETA 7 from the schedule, got %v", est.ETA)
	}
}

func TestEstimate_NothingKnown(t *testing.T) {
	est := usecases.Estimate(domain.TrainSnapshot{}, nil, nil, time.Time{})

	if est.NearestStation != nil || est.NearestFound || est.NearestIndex != -1 {
		t.Errorf("expected no nearest station, got %+v", est)
	}
	if est.ETA != nil || est.VelocityETA != nil || est.ScheduleETA != nil {
		t.Errorf("expected no ETA, got %+v", est)
	}
}

func TestEstimate_NoPosition(t *testing.T) {
	timetable := []domain.TimetableRow{
		{Index: 0, Name: "Alpha", ScheduledDeparture: at(10, 0)},
		{Index: 1, Name: "Bravo", ScheduledArrival: at(10, 15)},
	}
	est := usecases.Estimate(domain.TrainSnapshot{Velocity: ptr(80.0), ProgressIndex: 1},
		[]domain.StationConfig{stationA, stationB}, timetable, time.Time{})

	if est.NearestStation != nil || est.VelocityETA != nil {
		t.Errorf("expected no position-derived values, got %+v", est)
	}
	if est.ETA == nil || *est.ETA != 15 {
		t.Errorf("expected schedule ETA 15, got %v", est.ETA)
	}
}

func TestNearestStation_TieGoesToFirst(t *testing.T) {
	twin := domain.StationConfig{ID: "A2", Name: "Alpha bis", Platform: stationA.Platform}

	s, d, ok := usecases.NearestStation(domain.Coordinate{}, []domain.StationConfig{stationA, twin})
	if !ok || s.ID != "A" || d != 0 {
		t.Errorf("expected A at 0 km, got %s at %v (ok=%v)", s.ID, d, ok)
	}

	if _, _, ok := usecases.NearestStation(domain.Coordinate{}, nil); ok {
		t.Error("expected no station for an empty list")
	}
}

func TestTimetableNeighbours(t *testing.T) {
	rows := []domain.TimetableRow{{Index: 0}, {Index: 1}, {Index: 2}}

	tests := []struct {
		progress int
		prev     int // -1 for nil
		next     int
	}{
		{0, -1, 0},
		{1, 0, 1},
		{2, 1, 2},
		{3, 2, -1},
	}
	for _, tc := range tests {
		prev, next := usecases.TimetableNeighbours(rows, tc.progress)
		if got := indexOf(prev); got != tc.prev {
			t.Errorf("progress %d: expected prev %d, got %d", tc.progress, tc.prev, got)
		}
		if got := indexOf(next); got != tc.next {
			t.Errorf("progress %d: expected next %d, got %d", tc.progress, tc.next, got)
		}
	}
}

func indexOf(r *domain.TimetableRow) int {
	if r == nil {
		return -1
	}
	return r.Index
}

func TestVelocityETA(t *testing.T) {
	tests := []struct {
		name     string
		dist     float64
		velocity *float64
		want     *float64
	}{
		{"moving", 10, ptr(50.0), ptr(12.0)},
		{"stopped", 10, ptr(0.0), nil},
		{"negative", 10, ptr(-5.0), nil},
		{"unknown", 10, nil, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := usecases.VelocityETA(tc.dist, tc.velocity)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if got != nil && math.Abs(*got-*tc.want) > 1e-9 {
				t.Errorf("expected %v, got %v", *tc.want, *got)
			}
		})
	}
}

func TestScheduleETA(t *testing.T) {
	prev := &domain.TimetableRow{ScheduledDeparture: at(10, 0)}
	next := &domain.TimetableRow{ScheduledArrival: at(10, 12)}
	now := time.Date(2024, 5, 1, 10, 5, 30, 0, time.UTC)

	if got := usecases.ScheduleETA(prev, next, now); got == nil || *got != 12 {
		t.Errorf("expected 12, got %v", got)
	}
	// Without a previous departure the clock is used, truncated to whole minutes.
	if got := usecases.ScheduleETA(nil, next, now); got == nil || *got != 6 {
		t.Errorf("expected 6, got %v", got)
	}
	if got := usecases.ScheduleETA(nil, next, time.Time{}); got != nil {
		t.Errorf("expected nil without a reference time, got %v", *got)
	}
	if got := usecases.ScheduleETA(prev, &domain.TimetableRow{}, now); got != nil {
		t.Errorf("expected nil without an arrival, got %v", *got)
	}
}

func TestCombineETA(t *testing.T) {
	if got := usecases.CombineETA(ptr(12.0), ptr(30.0)); *got != 12 {
		t.Errorf("expected 12, got %v", *got)
	}
	if got := usecases.CombineETA(ptr(45.0), ptr(30.0)); *got != 30 {
		t.Errorf("expected 30, got %v", *got)
	}
	if got := usecases.CombineETA(nil, ptr(30.0)); *got != 30 {
		t.Errorf("expected 30, got %v", *got)
	}
	if got := usecases.CombineETA(ptr(12.0), nil); *got != 12 {
		t.Errorf("expected 12, got %v", *got)
	}
	if got := usecases.CombineETA(nil, nil); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
}
