// Command realtime polls the game API and publishes server snapshots to NATS
// for API instances running with poller.enabled=false.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	natsadapter "github.com/samirrijal/sirius/internal/adapters/nats"
	"github.com/samirrijal/sirius/internal/adapters/simrail"
	"github.com/samirrijal/sirius/internal/adapters/valkey"
	"github.com/samirrijal/sirius/internal/core/ports"
	"github.com/samirrijal/sirius/internal/core/stations"
	"github.com/samirrijal/sirius/internal/core/usecases"
	"github.com/samirrijal/sirius/internal/pkg/config"
	"github.com/samirrijal/sirius/internal/pkg/logging"
	"github.com/samirrijal/sirius/internal/pkg/metrics"
	"github.com/samirrijal/sirius/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("sirius-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	loc, err := cfg.Simrail.Location()
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}

	// NATS is the whole point of this process.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache = c
	}

	client := simrail.New(simrail.Options{
		TrainsURL:    cfg.Simrail.TrainsURL,
		TimetableURL: cfg.Simrail.TimetableURL,
		Timeout:      cfg.Simrail.RequestTimeout,
		UserAgent:    cfg.Simrail.UserAgent,
		ClientName:   cfg.Simrail.ClientName,
		Contact:      cfg.Simrail.Contact,
	})

	svc := usecases.NewDispatchService(client, stations.Default(), cache, pub, usecases.DispatchOptions{
		Servers:      cfg.Simrail.Servers,
		Location:     loc,
		TimetableTTL: cfg.Simrail.TimetableTTL,
		Concurrency:  cfg.Simrail.Concurrency,
	})

	// Metrics endpoint for Prometheus
	app := fiber.New(fiber.Config{DisableStartupMessage: true, AppName: "Sirius Realtime"})
	app.Get("/metrics", metrics.Handler())
	app.Get("/v1/health", func(c *fiber.Ctx) error {
		last := svc.LastUpdate()
		if last.IsZero() || time.Since(last) > max(6*cfg.Simrail.PollInterval, time.Minute) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "stale", "last_update": last})
		}
		return c.JSON(fiber.Map{"status": "healthy", "last_update": last})
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := app.Listen(addr); err != nil {
			slog.Error("metrics listener stopped", "error", err)
		}
	}()

	poller := usecases.NewDispatchPoller(svc, cfg.Simrail.PollInterval, cfg.Simrail.Concurrency)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		poller.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("received signal, shutting down realtime poller", "signal", sig.String())
	cancel()

	// Let the in-flight poll finish publishing
	select {
	case <-stopped:
	case <-time.After(15 * time.Second):
		slog.Warn("poll did not finish in time")
	}
	_ = app.Shutdown()
}
