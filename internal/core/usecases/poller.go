package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Refresher rebuilds the snapshot of one server.
type Refresher interface {
	Refresh(ctx context.Context, server string) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context, server string) error

func (f RefreshFunc) Refresh(ctx context.Context, server string) error { return f(ctx, server) }

// Poller refreshes every configured server on a fixed interval.
type Poller struct {
	refresher   Refresher
	servers     []string
	interval    time.Duration
	concurrency int
}

// NewPoller creates a new Poller.
func NewPoller(r Refresher, servers []string, interval time.Duration, concurrency int) *Poller {
	if concurrency <= 0 {
		concurrency = 4
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{refresher: r, servers: servers, interval: interval, concurrency: concurrency}
}

// NewDispatchPoller polls through a DispatchService.
func NewDispatchPoller(svc *DispatchService, interval time.Duration, concurrency int) *Poller {
	return NewPoller(RefreshFunc(func(ctx context.Context, server string) error {
		_, err := svc.Refresh(ctx, server)
		return err
	}), svc.opts.Servers, interval, concurrency)
}

// Run polls once immediately and then on every tick until ctx is done.
// A tick that arrives while the previous poll is still running is skipped.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("poller started", "servers", len(p.servers), "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	done := p.start(ctx)
	for {
		select {
		case <-ticker.C:
			select {
			case <-done:
				done = p.start(ctx)
			default:
				slog.Warn("previous poll still running, skipping tick")
			}
		case <-ctx.Done():
			<-done
			slog.Info("poller stopped")
			return
		}
	}
}

// start runs PollAll in the background; the returned channel is closed when it finishes.
func (p *Poller) start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.PollAll(ctx)
	}()
	return done
}

// PollAll refreshes every server once with bounded concurrency. Failures are
// logged and do not affect the other servers.
func (p *Poller) PollAll(ctx context.Context) {
	wp := pool.New().WithMaxGoroutines(p.concurrency)
	for _, server := range p.servers {
		server := server
		wp.Go(func() {
			if ctx.Err() != nil {
				return
			}
			if err := p.refresher.Refresh(ctx, server); err != nil {
				slog.Error("poll failed", "server", server, "error", err)
			}
		})
	}
	wp.Wait()
}
