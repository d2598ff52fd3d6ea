package usecases

import (
	"sort"
	"strings"
	"time"

	"github.com/samirrijal/sirius/internal/core/domain"
)

// The game API encodes "no arrival" and "no departure" as far-past and
// far-future instants. They are turned into nil here and nowhere else.
const (
	noArrivalYear   = 1970 // arrivals in or before this year mark the first stop
	noDepartureYear = 3000 // departures in or after this year mark the terminus
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// StationLookup resolves a timetable display name to a configured post.
type StationLookup interface {
	ByName(name string) (domain.StationConfig, bool)
}

// Normalizer turns raw schedule entries into display-ready timetable rows.
type Normalizer struct {
	Stations StationLookup  // optional
	Location *time.Location // zone for timestamps without an offset, UTC if nil

	// OnMalformed is called for every timestamp that could not be parsed.
	OnMalformed func(field, value string)
}

// NormalizeTimetable is a convenience wrapper around Normalizer.
func NormalizeTimetable(raw []domain.RawEntry, lookup StationLookup, loc *time.Location) []domain.TimetableRow {
	return Normalizer{Stations: lookup, Location: loc}.Normalize(raw)
}

// Normalize produces exactly one row per entry, in input order. Bad
// timestamps are recorded as absent and never stop the remaining rows.
func (n Normalizer) Normalize(raw []domain.RawEntry) []domain.TimetableRow {
	rows := make([]domain.TimetableRow, 0, len(raw))
	for _, e := range raw {
		stopType := domain.StopTypeFromCode(e.StopTypeNumber)
		row := domain.TimetableRow{
			Index:       e.IndexOfPoint,
			Mileage:     e.Mileage,
			Line:        e.Line,
			Track:       e.Track,
			Platform:    e.Platform,
			Name:        e.NameForPerson,
			StopType:    stopType,
			StopLetters: stopType.Letters(),
			Layover:     e.PlannedStop,
			SpeedLimits: normalizeSpeedLimits(e.SpeedLimits),
		}

		if n.Stations != nil {
			if post, ok := n.Stations.ByName(e.NameForPerson); ok {
				row.PostID = post.ID
			}
		}

		if t, ok := n.parse("scheduled_arrival", e.ScheduledArrival); ok && t.Year() > noArrivalYear {
			row.ScheduledArrival = &t
		}
		if t, ok := n.parse("scheduled_departure", e.ScheduledDeparture); ok && t.Year() < noDepartureYear {
			row.ScheduledDeparture = &t
		}

		rows = append(rows, row)
	}
	return rows
}

func (n Normalizer) parse(field, value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}

	if n.OnMalformed != nil {
		n.OnMalformed(field, value)
	}
	return time.Time{}, false
}

func normalizeSpeedLimits(raw []domain.RawSpeedLimit) []domain.SpeedLimitSegment {
	segs := make([]domain.SpeedLimitSegment, len(raw))
	for i, r := range raw {
		segs[i] = domain.NewSpeedLimitSegment(r)
	}
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].AxisStart < segs[j].AxisStart
	})
	return DedupSpeedLimits(segs)
}

// DedupSpeedLimits keeps the first segment of every run of equal velocity.
// The result is a subsequence of segs; segs itself is not modified.
func DedupSpeedLimits(segs []domain.SpeedLimitSegment) []domain.SpeedLimitSegment {
	out := make([]domain.SpeedLimitSegment, 0, len(segs))
	for _, s := range segs {
		if len(out) > 0 && out[len(out)-1].SameVelocity(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
