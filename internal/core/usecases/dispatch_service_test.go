package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/sirius/internal/core/domain"
	"github.com/samirrijal/sirius/internal/core/ports"
	"github.com/samirrijal/sirius/internal/core/stations"
	"github.com/samirrijal/sirius/internal/core/usecases"
)

// --- Mock GameClient ---

type mockGameClient struct {
	trainsFn    func(ctx context.Context, server string) ([]domain.RawTrain, error)
	timetableFn func(ctx context.Context, server, trainNo string) ([]domain.RawEntry, error)

	mu             sync.Mutex
	timetableCalls int
}

func (m *mockGameClient) Trains(ctx context.Context, server string) ([]domain.RawTrain, error) {
	if m.trainsFn != nil {
		return m.trainsFn(ctx, server)
	}
	return nil, nil
}

func (m *mockGameClient) Timetable(ctx context.Context, server, trainNo string) ([]domain.RawEntry, error) {
	m.mu.Lock()
	m.timetableCalls++
	m.mu.Unlock()
	if m.timetableFn != nil {
		return m.timetableFn(ctx, server, trainNo)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock SnapshotPublisher ---

type mockPublisher struct {
	published []*domain.ServerSnapshot
}

func (m *mockPublisher) PublishSnapshot(ctx context.Context, snap *domain.ServerSnapshot) error {
	m.published = append(m.published, snap)
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)

func rawTrain(number string, lon, lat float64, progress int) domain.RawTrain {
	v := 80.0
	return domain.RawTrain{
		TrainNoLocal: number,
		TrainName:    "ROJ",
		StartStation: "Katowice",
		EndStation:   "Zawiercie",
		ServerCode:   "pl1",
		TrainData: domain.RawTrainData{
			Latitude:                lat,
			Longitude:               lon,
			Velocity:                &v,
			VDDelayedTimetableIndex: progress,
		},
	}
}

func katowiceRun() []domain.RawEntry {
	return []domain.RawEntry{
		{IndexOfPoint: 0, NameForPerson: "Katowice_Zawodzie", ScheduledArrival: "1970-01-01 00:00:00", ScheduledDeparture: "2024-05-01 10:00:00"},
		{IndexOfPoint: 1, NameForPerson: "Sosnowiec_Główny", ScheduledArrival: "2024-05-01 10:08:00", ScheduledDeparture: "2024-05-01 10:09:00", StopTypeNumber: 2},
		{IndexOfPoint: 2, NameForPerson: "Będzin", ScheduledArrival: "2024-05-01 10:15:00", ScheduledDeparture: "3000-01-01 00:00:00"},
	}
}

func newDispatch(client *mockGameClient, cache *mockCache, pub *mockPublisher) *usecases.DispatchService {
	opts := usecases.DispatchOptions{
		Servers:      []string{"pl1", "de1"},
		Location:     time.UTC,
		TimetableTTL: time.Hour,
		Concurrency:  2,
	}
	var c ports.CacheService
	if cache != nil {
		c = cache
	}
	var p ports.SnapshotPublisher
	if pub != nil {
		p = pub
	}
	svc := usecases.NewDispatchService(client, stations.Default(), c, p, opts)
	return svc.WithClock(func() time.Time { return fixedNow })
}

func TestDispatchService_Refresh(t *testing.T) {
	client := &mockGameClient{
		trainsFn: func(ctx context.Context, server string) ([]domain.RawTrain, error) {
			if server != "pl1" {
				t.Errorf("expected server pl1, got %s", server)
			}
			return []domain.RawTrain{
				rawTrain("4102", 19.10, 50.27, 1),
				rawTrain("4101", 0, 0, 0),
			}, nil
		},
		timetableFn: func(ctx context.Context, server, trainNo string) ([]domain.RawEntry, error) {
			return katowiceRun(), nil
		},
	}
	pub := &mockPublisher{}
	svc := newDispatch(client, nil, pub)

	snap, err := svc.Refresh(context.Background(), "pl1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ID == "" || snap.Server != "pl1" || !snap.FetchedAt.Equal(fixedNow) {
		t.Errorf("unexpected snapshot header %+v", snap)
	}
	if len(snap.Trains) != 2 {
		t.Fatalf("expected 2 trains, got %d", len(snap.Trains))
	}
	if snap.Trains[0].Number != "4101" || snap.Trains[1].Number != "4102" {
		t.Errorf("expected trains sorted by number, got %s, %s", snap.Trains[0].Number, snap.Trains[1].Number)
	}

	offline := snap.Trains[0]
	if offline.Live.Position != nil {
		t.Error("expected (0,0) position to be reported as unknown")
	}

	moving := snap.Trains[1]
	if moving.MaxVelocity != 120 {
		t.Errorf("expected ROJ max velocity 120, got %d", moving.MaxVelocity)
	}
	if len(moving.Timetable) != 3 {
		t.Fatalf("expected 3 timetable rows, got %d", len(moving.Timetable))
	}
	if moving.Timetable[0].ScheduledArrival != nil || moving.Timetable[2].ScheduledDeparture != nil {
		t.Error("expected sentinel timestamps to be absent")
	}
	if moving.Estimate.NearestStation == nil || moving.Estimate.NearestStation.ID != "SG" {
		t.Errorf("expected nearest station SG, got %+v", moving.Estimate.NearestStation)
	}
	if moving.Estimate.NextStation != "Sosnowiec_Główny" {
		t.Errorf("expected next station Sosnowiec_Główny, got %q", moving.Estimate.NextStation)
	}
	if moving.Estimate.ETA == nil {
		t.Error("expected an ETA")
	}

	if len(pub.published) != 1 || pub.published[0] != snap {
		t.Errorf("expected the snapshot to be published once, got %d", len(pub.published))
	}

	stored, err := svc.Snapshot("pl1")
	if err != nil || stored != snap {
		t.Errorf("expected refreshed snapshot to be stored, got %v, %v", stored, err)
	}
}

func TestDispatchService_TimetableFailureKeepsTrain(t *testing.T) {
	client := &mockGameClient{
		trainsFn: func(ctx context.Context, server string) ([]domain.RawTrain, error) {
			return []domain.RawTrain{rawTrain("4101", 19.10, 50.27, 0), rawTrain("4102", 19.10, 50.27, 0)}, nil
		},
		timetableFn: func(ctx context.Context, server, trainNo string) ([]domain.RawEntry, error) {
			if trainNo == "4101" {
				return nil, errors.New("boom")
			}
			return katowiceRun(), nil
		},
	}
	svc := newDispatch(client, nil, nil)

	snap, err := svc.Refresh(context.Background(), "pl1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Trains) != 2 {
		t.Fatalf("expected both trains, got %d", len(snap.Trains))
	}
	if len(snap.Trains[0].Timetable) != 0 || len(snap.Trains[1].Timetable) != 3 {
		t.Errorf("unexpected timetables: %d and %d rows", len(snap.Trains[0].Timetable), len(snap.Trains[1].Timetable))
	}
	if snap.Trains[0].Estimate.NearestIndex != -1 {
		t.Errorf("expected no nearest station without a timetable, got index %d", snap.Trains[0].Estimate.NearestIndex)
	}
}

func TestDispatchService_RefreshErrors(t *testing.T) {
	client := &mockGameClient{
		trainsFn: func(ctx context.Context, server string) ([]domain.RawTrain, error) {
			return nil, errors.New("upstream down")
		},
	}
	svc := newDispatch(client, nil, nil)

	if _, err := svc.Refresh(context.Background(), "xx9"); !errors.Is(err, usecases.ErrUnknownServer) {
		t.Errorf("expected ErrUnknownServer, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), "pl1"); err == nil {
		t.Error("expected upstream error")
	}
	if _, err := svc.Snapshot("pl1"); !errors.Is(err, usecases.ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot after a failed refresh, got %v", err)
	}
}

func TestDispatchService_TimetableCache(t *testing.T) {
	client := &mockGameClient{
		trainsFn: func(ctx context.Context, server string) ([]domain.RawTrain, error) {
			return []domain.RawTrain{rawTrain("4101", 19.10, 50.27, 0)}, nil
		},
		timetableFn: func(ctx context.Context, server, trainNo string) ([]domain.RawEntry, error) {
			return katowiceRun(), nil
		},
	}
	cache := newMockCache()
	svc := newDispatch(client, cache, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.Refresh(context.Background(), "pl1"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if client.timetableCalls != 1 {
		t.Errorf("expected 1 upstream timetable call, got %d", client.timetableCalls)
	}
	if _, ok := cache.data["timetable:pl1:4101"]; !ok {
		t.Error("expected timetable to be cached under timetable:pl1:4101")
	}
}

func TestDispatchService_ApplyLastWriteWins(t *testing.T) {
	svc := newDispatch(&mockGameClient{}, nil, nil)

	newer := &domain.ServerSnapshot{ID: "b", Server: "pl1", FetchedAt: fixedNow}
	older := &domain.ServerSnapshot{ID: "a", Server: "pl1", FetchedAt: fixedNow.Add(-time.Minute)}

	var seen []string
	stop := svc.Watch(func(s *domain.ServerSnapshot) { seen = append(seen, s.ID) })

	if !svc.Apply(newer) {
		t.Fatal("expected first snapshot to be stored")
	}
	if svc.Apply(older) {
		t.Error("expected older snapshot to be ignored")
	}
	if svc.Apply(&domain.ServerSnapshot{Server: "xx9"}) {
		t.Error("expected snapshot for an unknown server to be ignored")
	}

	got, _ := svc.Snapshot("pl1")
	if got.ID != "b" {
		t.Errorf("expected snapshot b, got %s", got.ID)
	}

	stop()
	svc.Apply(&domain.ServerSnapshot{ID: "c", Server: "pl1", FetchedAt: fixedNow.Add(time.Minute)})
	if len(seen) != 1 || seen[0] != "b" {
		t.Errorf("expected watcher to see only b, got %v", seen)
	}
}

func TestDispatchService_Queries(t *testing.T) {
	svc := newDispatch(&mockGameClient{}, nil, nil)
	svc.Apply(&domain.ServerSnapshot{
		Server:    "pl1",
		FetchedAt: fixedNow.Add(-90 * time.Second),
		Trains: []domain.TrainState{{
			Number:    "4101",
			Timetable: []domain.TimetableRow{{Index: 0, Name: "Sosnowiec_Gł._pzs_R52"}},
		}},
	})

	servers := svc.Servers()
	if len(servers) != 2 || servers[0].Code != "pl1" || servers[1].Code != "de1" {
		t.Fatalf("unexpected servers %+v", servers)
	}
	if servers[0].TrainCount != 1 || servers[0].SnapshotAge != "1m30s" || servers[0].LastUpdate == nil {
		t.Errorf("unexpected pl1 summary %+v", servers[0])
	}
	if servers[1].LastUpdate != nil {
		t.Errorf("expected de1 without snapshot, got %+v", servers[1])
	}

	if tr, err := svc.Train("pl1", "4101"); err != nil || tr.Number != "4101" {
		t.Errorf("expected train 4101, got %v, %v", tr, err)
	}
	if _, err := svc.Train("pl1", "9999"); !errors.Is(err, usecases.ErrTrainNotFound) {
		t.Errorf("expected ErrTrainNotFound, got %v", err)
	}
	if _, err := svc.Train("de1", "4101"); !errors.Is(err, usecases.ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}

	board, err := svc.Board("pl1", "SG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board.Entries) != 1 {
		t.Errorf("expected the secondary post call on the SG board, got %d entries", len(board.Entries))
	}
	if _, err := svc.Board("pl1", "NOPE"); !errors.Is(err, usecases.ErrUnknownPost) {
		t.Errorf("expected ErrUnknownPost, got %v", err)
	}
}
