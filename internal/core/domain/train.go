package domain

import (
	"strings"
	"time"
)

// RawTrainData is the live part of a train object from the game API.
// Field names (including the misspelt coordinates) follow the upstream payload.
type RawTrainData struct {
	ControlledBySteamID     string   `json:"ControlledBySteamID"`
	InBorderStationArea     bool     `json:"InBorderStationArea"`
	Latitude                float64  `json:"Latititute"`
	Longitude               float64  `json:"Longitute"`
	Velocity                *float64 `json:"Velocity"`
	SignalInFront           string   `json:"SignalInFront"`
	DistanceToSignalInFront float64  `json:"DistanceToSignalInFront"`
	SignalInFrontSpeed      int      `json:"SignalInFrontSpeed"`
	VDDelayedTimetableIndex int      `json:"VDDelayedTimetableIndex"`
}

// RawTrain is a train object from the game API.
type RawTrain struct {
	ID           string       `json:"id"`
	TrainNoLocal string       `json:"TrainNoLocal"`
	TrainName    string       `json:"TrainName"`
	StartStation string       `json:"StartStation"`
	EndStation   string       `json:"EndStation"`
	Vehicles     []string     `json:"Vehicles"`
	ServerCode   string       `json:"ServerCode"`
	Type         string       `json:"Type"`
	TrainData    RawTrainData `json:"TrainData"`
}

// Snapshot extracts the live state used by the estimator. A (0,0) position
// is reported as unknown.
func (t RawTrain) Snapshot() TrainSnapshot {
	pos := Coordinate{Lon: t.TrainData.Longitude, Lat: t.TrainData.Latitude}
	snap := TrainSnapshot{
		Velocity:      t.TrainData.Velocity,
		ProgressIndex: t.TrainData.VDDelayedTimetableIndex,
	}
	if !pos.IsZero() {
		snap.Position = &pos
	}
	return snap
}

// TrainSnapshot is the live position of a train for one poll cycle.
type TrainSnapshot struct {
	Position      *Coordinate `json:"position,omitempty"`
	Velocity      *float64    `json:"velocity,omitempty"` // km/h
	ProgressIndex int         `json:"progress_index"`
}

// Estimate is the nearest-station and ETA result for one train.
// NearestFound distinguishes "not in the timetable" from index 0.
type Estimate struct {
	NearestStation  *StationConfig `json:"nearest_station,omitempty"`
	NearestDistance *float64       `json:"nearest_distance_km,omitempty"`
	NearestIndex    int            `json:"nearest_index"`
	NearestFound    bool           `json:"nearest_found"`
	NextStation     string         `json:"next_station,omitempty"`
	TargetDistance  *float64       `json:"target_distance_km,omitempty"`
	VelocityETA     *float64       `json:"velocity_eta_min,omitempty"`
	ScheduleETA     *float64       `json:"schedule_eta_min,omitempty"`
	ETA             *float64       `json:"eta_min,omitempty"`
}

// TrainState is everything the dashboards need about one train.
type TrainState struct {
	Number       string         `json:"number"`
	Name         string         `json:"name"`
	Category     string         `json:"category,omitempty"`
	MaxVelocity  int            `json:"max_velocity,omitempty"`
	StartStation string         `json:"start_station"`
	EndStation   string         `json:"end_station"`
	Vehicles     []string       `json:"vehicles,omitempty"`
	ControlledBy string         `json:"controlled_by,omitempty"`
	Live         TrainSnapshot  `json:"live"`
	Timetable    []TimetableRow `json:"timetable,omitempty"`
	Estimate     Estimate       `json:"estimate"`
}

// ServerSnapshot is the result of one poll cycle for one game server.
type ServerSnapshot struct {
	ID        string       `json:"id"`
	Server    string       `json:"server"`
	FetchedAt time.Time    `json:"fetched_at"`
	Trains    []TrainState `json:"trains"`
}

// Server summarises a configured game server.
type Server struct {
	Code        string     `json:"code"`
	LastUpdate  *time.Time `json:"last_update,omitempty"`
	TrainCount  int        `json:"train_count"`
	SnapshotAge string     `json:"snapshot_age,omitempty"`
}

// BoardEntry is one train on a post's dispatch board.
type BoardEntry struct {
	TrainNumber        string     `json:"train_number"`
	TrainName          string     `json:"train_name"`
	Vehicles           []string   `json:"vehicles,omitempty"`
	ScheduledArrival   *time.Time `json:"scheduled_arrival,omitempty"`
	ScheduledDeparture *time.Time `json:"scheduled_departure,omitempty"`
	StopType           StopType   `json:"stop_type"`
	Track              string     `json:"track,omitempty"`
	Platform           string     `json:"platform,omitempty"`
	NextStation        string     `json:"next_station,omitempty"`
	Distance           *float64   `json:"distance_km,omitempty"`
	ETA                *float64   `json:"eta_min,omitempty"`
	ShowETA            bool       `json:"show_eta"`
	Passed             bool       `json:"passed"`
	Approaching        bool       `json:"approaching"`
	Offline            bool       `json:"offline"`
}

// Board is the dispatch view of a single post.
type Board struct {
	Server    string        `json:"server"`
	Post      StationConfig `json:"post"`
	FetchedAt time.Time     `json:"fetched_at"`
	Entries   []BoardEntry  `json:"entries"`
}

var maxVelocityByCategory = map[string]int{
	"EIJ": 200,
	"ECE": 125,
	"MPE": 125,
	"RPJ": 120,
	"ROJ": 120,
	"LTE": 125,
	"TME": 80,
	"TLE": 80,
	"TCE": 85,
}

// MaxVelocityForCategory returns the timetable velocity for a train category
// such as "EIJ" or "ROJ", or 0 when the category is unknown.
func MaxVelocityForCategory(category string) int {
	return maxVelocityByCategory[strings.ToUpper(strings.TrimSpace(category))]
}
