package domain

import (
	"strconv"
	"strings"
	"time"
)

// StopType classifies a scheduled stop.
type StopType int

const (
	StopNone      StopType = 0 // pass-through
	StopTechnical StopType = 1
	StopPassenger StopType = 2
)

// StopTypeFromCode maps the numeric code used by the game API. Unknown codes
// are treated as pass-through.
func StopTypeFromCode(code int) StopType {
	switch code {
	case 1:
		return StopTechnical
	case 2:
		return StopPassenger
	default:
		return StopNone
	}
}

// Letters returns the short badge used on timetables ("ph" technical, "pt" passenger).
func (s StopType) Letters() string {
	switch s {
	case StopTechnical:
		return "ph"
	case StopPassenger:
		return "pt"
	default:
		return ""
	}
}

// SpeedBand groups maximum velocities for display.
type SpeedBand string

const (
	SpeedHigh    SpeedBand = "high"
	SpeedMedium  SpeedBand = "medium"
	SpeedLow     SpeedBand = "low"
	SpeedUnknown SpeedBand = "unknown"
)

// SpeedBandFor classifies a velocity: above 100 km/h is high, 70-100 medium,
// below 70 low.
func SpeedBandFor(vmax *int) SpeedBand {
	switch {
	case vmax == nil:
		return SpeedUnknown
	case *vmax > 100:
		return SpeedHigh
	case *vmax >= 70:
		return SpeedMedium
	default:
		return SpeedLow
	}
}

// RawSpeedLimit is a speed-limit segment as delivered by the game API.
type RawSpeedLimit struct {
	AxisStart float64 `json:"axisStart"`
	VMax      string  `json:"vMax"`
	LineNo    int     `json:"lineNo"`
	Track     string  `json:"track"`
}

// RawEntry is one stop of a train run as delivered by the game API.
type RawEntry struct {
	IndexOfPoint       int             `json:"indexOfPoint"`
	NameForPerson      string          `json:"nameForPerson"`
	PointID            string          `json:"pointId"`
	Mileage            float64         `json:"mileage"`
	Line               int             `json:"line"`
	Track              string          `json:"track"`
	Platform           string          `json:"platform"`
	ScheduledArrival   string          `json:"scheduledArrival"`
	ScheduledDeparture string          `json:"scheduledDeparture"`
	StopTypeNumber     int             `json:"stopTypeNumber"`
	PlannedStop        float64         `json:"plannedStop"`
	SpeedLimits        []RawSpeedLimit `json:"speedLimitsToNextStation"`
}

// SpeedLimitSegment is a speed restriction starting at a mileage offset.
type SpeedLimitSegment struct {
	AxisStart float64   `json:"axis_start"` // km
	VMax      string    `json:"vmax"`
	Velocity  *int      `json:"velocity,omitempty"` // parsed VMax, nil when not numeric
	Band      SpeedBand `json:"band"`
	LineNo    int       `json:"line_no"`
	Track     string    `json:"track,omitempty"`
}

// NewSpeedLimitSegment parses the textual velocity of a raw segment.
func NewSpeedLimitSegment(raw RawSpeedLimit) SpeedLimitSegment {
	seg := SpeedLimitSegment{
		AxisStart: raw.AxisStart,
		VMax:      raw.VMax,
		LineNo:    raw.LineNo,
		Track:     raw.Track,
	}
	if v, err := strconv.Atoi(strings.TrimSpace(raw.VMax)); err == nil {
		seg.Velocity = &v
	}
	seg.Band = SpeedBandFor(seg.Velocity)
	return seg
}

// SameVelocity reports whether both segments carry the same numeric velocity.
// Segments without a numeric velocity never compare equal.
func (s SpeedLimitSegment) SameVelocity(o SpeedLimitSegment) bool {
	return s.Velocity != nil && o.Velocity != nil && *s.Velocity == *o.Velocity
}

// TimetableRow is one display-ready scheduled stop of a train run.
// A nil arrival marks the first stop of the run, a nil departure the terminus.
type TimetableRow struct {
	Index              int                 `json:"index"`
	Mileage            float64             `json:"mileage"`
	Line               int                 `json:"line"`
	Track              string              `json:"track,omitempty"`
	Platform           string              `json:"platform,omitempty"`
	Name               string              `json:"name"`
	PostID             string              `json:"post_id,omitempty"`
	ScheduledArrival   *time.Time          `json:"scheduled_arrival,omitempty"`
	ScheduledDeparture *time.Time          `json:"scheduled_departure,omitempty"`
	StopType           StopType            `json:"stop_type"`
	StopLetters        string              `json:"stop_letters,omitempty"`
	Layover            float64             `json:"layover"` // minutes
	SpeedLimits        []SpeedLimitSegment `json:"speed_limits"`
}

// HasLayover reports whether the row should show a layover marker.
func (r TimetableRow) HasLayover() bool {
	return int(r.Layover) > 0 || r.StopType > StopNone
}
