package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/sirius/internal/core/usecases"
)

// Pinger is a dependency that can report its own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Dispatch *usecases.DispatchService
	NATS     *nats.Conn
	Cache    Pinger

	// MaxSnapshotAge is how old the oldest snapshot may get before /v1/ready
	// reports the instance as not ready. Zero disables the check.
	MaxSnapshotAge time.Duration
}
