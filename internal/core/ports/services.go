package ports

import (
	"context"

	"github.com/samirrijal/sirius/internal/core/domain"
)

// GameClient reads live data from the game's public API.
type GameClient interface {
	Trains(ctx context.Context, server string) ([]domain.RawTrain, error)
	Timetable(ctx context.Context, server, trainNo string) ([]domain.RawEntry, error)
}

// SnapshotPublisher fans a computed server snapshot out to other instances.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap *domain.ServerSnapshot) error
}

// SnapshotSubscriber receives snapshots computed elsewhere.
type SnapshotSubscriber interface {
	SubscribeSnapshots(ctx context.Context, handler func(ctx context.Context, snap *domain.ServerSnapshot) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
