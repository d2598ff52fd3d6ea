package simrail_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samirrijal/sirius/internal/adapters/simrail"
)

const trainsBody = `{
  "result": true,
  "count": 1,
  "description": "List of trains",
  "data": [{
    "id": "abc",
    "TrainNoLocal": "14101",
    "TrainName": "ROJ",
    "StartStation": "Katowice",
    "EndStation": "Zawiercie",
    "Vehicles": ["EN57/EN57-1000"],
    "ServerCode": "pl1",
    "Type": "user",
    "TrainData": {
      "ControlledBySteamID": "7656",
      "Latititute": 50.27,
      "Longitute": 19.10,
      "Velocity": 87.5,
      "VDDelayedTimetableIndex": 3,
      "UnknownField": "ignored"
    }
  }]
}`

const timetableBody = `[
  {"indexOfPoint": 0, "nameForPerson": "Katowice_Zawodzie", "scheduledArrival": "1970-01-01 00:00:00",
   "scheduledDeparture": "2024-05-01 10:00:00", "stopTypeNumber": 2, "plannedStop": 1,
   "speedLimitsToNextStation": [{"axisStart": 0.5, "vMax": "100", "lineNo": 1, "track": "1"}]}
]`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/trains-open", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("serverCode") != "pl1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("xx-client") != "Sirius" {
			t.Errorf("expected xx-client header, got %q", r.Header.Get("xx-client"))
		}
		if r.Header.Get("User-Agent") != "Sirius test" {
			t.Errorf("expected user agent, got %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(trainsBody))
	})
	mux.HandleFunc("/timetable", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("train") != "14101" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(timetableBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *simrail.Client {
	return simrail.New(simrail.Options{
		TrainsURL:    srv.URL,
		TimetableURL: srv.URL,
		Timeout:      2 * time.Second,
		UserAgent:    "Sirius test",
		ClientName:   "Sirius",
	})
}

func TestClient_Trains(t *testing.T) {
	c := newClient(newTestServer(t))

	trains, err := c.Trains(context.Background(), "pl1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trains) != 1 {
		t.Fatalf("expected 1 train, got %d", len(trains))
	}
	tr := trains[0]
	if tr.TrainNoLocal != "14101" || tr.TrainName != "ROJ" {
		t.Errorf("unexpected train %+v", tr)
	}
	if tr.TrainData.Latitude != 50.27 || tr.TrainData.Longitude != 19.10 {
		t.Errorf("unexpected position %v,%v", tr.TrainData.Latitude, tr.TrainData.Longitude)
	}
	if tr.TrainData.Velocity == nil || *tr.TrainData.Velocity != 87.5 {
		t.Errorf("unexpected velocity %v", tr.TrainData.Velocity)
	}
	if tr.TrainData.VDDelayedTimetableIndex != 3 {
		t.Errorf("expected progress index 3, got %d", tr.TrainData.VDDelayedTimetableIndex)
	}
}

func TestClient_Timetable(t *testing.T) {
	c := newClient(newTestServer(t))

	entries, err := c.Timetable(context.Background(), "pl1", "14101")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.NameForPerson != "Katowice_Zawodzie" || e.StopTypeNumber != 2 || e.PlannedStop != 1 {
		t.Errorf("unexpected entry %+v", e)
	}
	if len(e.SpeedLimits) != 1 || e.SpeedLimits[0].VMax != "100" {
		t.Errorf("unexpected speed limits %+v", e.SpeedLimits)
	}
}

func TestClient_HTTPError(t *testing.T) {
	c := newClient(newTestServer(t))

	if _, err := c.Timetable(context.Background(), "pl1", "99999"); err == nil {
		t.Error("expected error for a 404")
	}
	if _, err := c.Trains(context.Background(), "xx9"); err == nil {
		t.Error("expected error for a 400")
	}
}

func TestClient_CancelledContext(t *testing.T) {
	c := newClient(newTestServer(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Trains(ctx, "pl1"); err == nil {
		t.Error("expected error for a cancelled context")
	}
}
