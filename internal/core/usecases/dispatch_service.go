package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/sirius/internal/core/domain"
	"github.com/samirrijal/sirius/internal/core/ports"
	"github.com/samirrijal/sirius/internal/core/stations"
	"github.com/samirrijal/sirius/internal/pkg/metrics"
	"github.com/samirrijal/sirius/internal/pkg/telemetry"
)

var (
	ErrUnknownServer = errors.New("unknown server")
	ErrNoSnapshot    = errors.New("no snapshot yet")
	ErrTrainNotFound = errors.New("train not found")
	ErrUnknownPost   = errors.New("unknown post")
)

var tracer = otel.Tracer("github.com/samirrijal/sirius/internal/core/usecases")

// DispatchOptions tunes a DispatchService.
type DispatchOptions struct {
	Servers      []string
	Location     *time.Location
	TimetableTTL time.Duration
	Concurrency  int
}

// DispatchService builds and holds the latest snapshot of every game server.
type DispatchService struct {
	client     ports.GameClient
	stations   *stations.Table
	cache      ports.CacheService
	publisher  ports.SnapshotPublisher
	normalizer Normalizer
	opts       DispatchOptions
	now        func() time.Time

	mu        sync.RWMutex
	snapshots map[string]*domain.ServerSnapshot
	watchers  map[int]func(*domain.ServerSnapshot)
	nextWatch int
}

// NewDispatchService creates a new DispatchService. cache and publisher may be nil.
func NewDispatchService(
	client ports.GameClient,
	table *stations.Table,
	cache ports.CacheService,
	publisher ports.SnapshotPublisher,
	opts DispatchOptions,
) *DispatchService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &DispatchService{
		client:    client,
		stations:  table,
		cache:     cache,
		publisher: publisher,
		normalizer: Normalizer{
			Stations: table,
			Location: opts.Location,
			OnMalformed: func(field, value string) {
				metrics.MalformedTimestamps.WithLabelValues(field).Inc()
				slog.Debug("malformed timestamp", "field", field, "value", value)
			},
		},
		opts:      opts,
		now:       time.Now,
		snapshots: make(map[string]*domain.ServerSnapshot),
		watchers:  make(map[int]func(*domain.ServerSnapshot)),
	}
}

// WithClock replaces the wall clock, for tests.
func (s *DispatchService) WithClock(now func() time.Time) *DispatchService {
	s.now = now
	return s
}

// Stations returns the post table.
func (s *DispatchService) Stations() *stations.Table { return s.stations }

// Refresh polls one server, rebuilds its snapshot, stores it and publishes it.
// A timetable that cannot be fetched leaves that train without a timetable;
// only a failed train list fails the refresh.
func (s *DispatchService) Refresh(ctx context.Context, server string) (*domain.ServerSnapshot, error) {
	if !s.known(server) {
		return nil, ErrUnknownServer
	}

	ctx, span := tracer.Start(ctx, "dispatch.refresh", trace.WithAttributes(attribute.String("server", server)))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.PollDuration.WithLabelValues(server).Observe(time.Since(start).Seconds())
	}()

	raw, err := s.client.Trains(ctx, server)
	if err != nil {
		metrics.PollErrors.WithLabelValues(server).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch trains")
		return nil, fmt.Errorf("fetch trains for %s: %w", server, err)
	}

	now := s.now()
	p := pool.NewWithResults[domain.TrainState]().WithMaxGoroutines(s.opts.Concurrency)
	for _, rt := range raw {
		rt := rt
		p.Go(func() domain.TrainState {
			return s.buildTrain(ctx, server, rt, now)
		})
	}
	trains := p.Wait()
	sort.Slice(trains, func(i, j int) bool { return trains[i].Number < trains[j].Number })

	snap := &domain.ServerSnapshot{
		ID:        uuid.NewString(),
		Server:    server,
		FetchedAt: now,
		Trains:    trains,
	}

	var offline, missing int
	for _, t := range trains {
		if t.Live.Position == nil {
			offline++
		}
		if len(t.Timetable) == 0 {
			missing++
		}
	}
	span.SetAttributes(
		attribute.Int(telemetry.MetricTrainsTracked, len(trains)),
		attribute.Int(telemetry.MetricTrainsOffline, offline),
		attribute.Int(telemetry.MetricTimetableMissed, missing),
		attribute.Float64(telemetry.MetricRefreshTime, time.Since(start).Seconds()),
	)

	s.Apply(snap)

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, snap); err != nil {
			slog.Warn("publish snapshot", "server", server, "error", err)
		}
	}

	slog.Info("server refreshed",
		"server", server,
		"trains", len(trains),
		"offline", offline,
		"without_timetable", missing,
		"took", time.Since(start).String(),
	)
	return snap, nil
}

func (s *DispatchService) buildTrain(ctx context.Context, server string, rt domain.RawTrain, now time.Time) domain.TrainState {
	state := domain.TrainState{
		Number:       rt.TrainNoLocal,
		Name:         rt.TrainName,
		Category:     rt.TrainName,
		MaxVelocity:  domain.MaxVelocityForCategory(rt.TrainName),
		StartStation: rt.StartStation,
		EndStation:   rt.EndStation,
		Vehicles:     rt.Vehicles,
		ControlledBy: rt.TrainData.ControlledBySteamID,
		Live:         rt.Snapshot(),
	}

	entries, err := s.timetable(ctx, server, rt.TrainNoLocal)
	if err != nil {
		metrics.TimetableErrors.WithLabelValues(server).Inc()
		slog.Warn("timetable unavailable", "server", server, "train", rt.TrainNoLocal, "error", err)
	} else {
		state.Timetable = s.normalizer.Normalize(entries)
	}

	path := s.stations.InPath(state.Timetable)
	state.Estimate = Estimate(state.Live, path, state.Timetable, now)
	return state
}

// timetable reads a train's schedule through the cache. Schedules do not
// change during a run, so they are cached for TimetableTTL.
func (s *DispatchService) timetable(ctx context.Context, server, trainNo string) ([]domain.RawEntry, error) {
	cacheKey := fmt.Sprintf("timetable:%s:%s", server, trainNo)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var entries []domain.RawEntry
			if err := json.Unmarshal(data, &entries); err == nil {
				metrics.CacheHits.WithLabelValues("timetable").Inc()
				return entries, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("timetable").Inc()
	}

	entries, err := s.client.Timetable(ctx, server, trainNo)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.opts.TimetableTTL > 0 && len(entries) > 0 {
		if data, err := json.Marshal(entries); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, int(s.opts.TimetableTTL.Seconds()))
		}
	}
	return entries, nil
}

// Apply stores a snapshot unless a newer one for the same server is already
// held. It reports whether the snapshot was stored.
func (s *DispatchService) Apply(snap *domain.ServerSnapshot) bool {
	if snap == nil || !s.known(snap.Server) {
		return false
	}

	s.mu.Lock()
	if cur, ok := s.snapshots[snap.Server]; ok && snap.FetchedAt.Before(cur.FetchedAt) {
		s.mu.Unlock()
		metrics.SnapshotsApplied.WithLabelValues(snap.Server, "stale").Inc()
		return false
	}
	s.snapshots[snap.Server] = snap
	watchers := make([]func(*domain.ServerSnapshot), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	metrics.SnapshotsApplied.WithLabelValues(snap.Server, "stored").Inc()
	metrics.TrainsTracked.WithLabelValues(snap.Server).Set(float64(len(snap.Trains)))
	for _, w := range watchers {
		w(snap)
	}
	return true
}

// Watch registers fn to be called with every stored snapshot. The returned
// func removes the registration.
func (s *DispatchService) Watch(fn func(*domain.ServerSnapshot)) func() {
	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Servers lists the configured servers with the state of their last snapshot.
func (s *DispatchService) Servers() []domain.Server {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Server, 0, len(s.opts.Servers))
	for _, code := range s.opts.Servers {
		srv := domain.Server{Code: code}
		if snap, ok := s.snapshots[code]; ok {
			fetched := snap.FetchedAt
			srv.LastUpdate = &fetched
			srv.TrainCount = len(snap.Trains)
			srv.SnapshotAge = now.Sub(fetched).Truncate(time.Second).String()
		}
		out = append(out, srv)
	}
	return out
}

// Snapshot returns the latest snapshot of a server.
func (s *DispatchService) Snapshot(server string) (*domain.ServerSnapshot, error) {
	if !s.known(server) {
		return nil, ErrUnknownServer
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[server]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Train returns one train of a server's latest snapshot.
func (s *DispatchService) Train(server, number string) (*domain.TrainState, error) {
	snap, err := s.Snapshot(server)
	if err != nil {
		return nil, err
	}
	for i := range snap.Trains {
		if snap.Trains[i].Number == number {
			return &snap.Trains[i], nil
		}
	}
	return nil, ErrTrainNotFound
}

// Board builds the dispatch board of a post from a server's latest snapshot.
func (s *DispatchService) Board(server, postID string) (*domain.Board, error) {
	post, ok := s.stations.ByID(postID)
	if !ok {
		return nil, ErrUnknownPost
	}
	snap, err := s.Snapshot(server)
	if err != nil {
		return nil, err
	}
	board := BuildBoard(snap, post, s.stations.Names(post), s.now())
	return &board, nil
}

// LastUpdate returns the fetch time of the oldest held snapshot, or the zero
// time when no server has a snapshot yet.
func (s *DispatchService) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest time.Time
	for _, snap := range s.snapshots {
		if oldest.IsZero() || snap.FetchedAt.Before(oldest) {
			oldest = snap.FetchedAt
		}
	}
	return oldest
}

func (s *DispatchService) known(server string) bool {
	return slices.Contains(s.opts.Servers, server)
}
