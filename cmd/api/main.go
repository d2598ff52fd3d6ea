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
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/sirius/internal/adapters/http"
	natsadapter "github.com/samirrijal/sirius/internal/adapters/nats"
	"github.com/samirrijal/sirius/internal/adapters/simrail"
	"github.com/samirrijal/sirius/internal/adapters/valkey"
	"github.com/samirrijal/sirius/internal/core/domain"
	"github.com/samirrijal/sirius/internal/core/ports"
	"github.com/samirrijal/sirius/internal/core/stations"
	"github.com/samirrijal/sirius/internal/core/usecases"
	"github.com/samirrijal/sirius/internal/pkg/config"
	"github.com/samirrijal/sirius/internal/pkg/logging"
	"github.com/samirrijal/sirius/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("sirius-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
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

	// Cache (optional: timetables are refetched every poll without it)
	var cache ports.CacheService
	var pinger http.Pinger
	if c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache, pinger = c, c
	}

	client := simrail.New(simrail.Options{
		TrainsURL:    cfg.Simrail.TrainsURL,
		TimetableURL: cfg.Simrail.TimetableURL,
		Timeout:      cfg.Simrail.RequestTimeout,
		UserAgent:    cfg.Simrail.UserAgent,
		ClientName:   cfg.Simrail.ClientName,
		Contact:      cfg.Simrail.Contact,
	})

	opts := usecases.DispatchOptions{
		Servers:      cfg.Simrail.Servers,
		Location:     loc,
		TimetableTTL: cfg.Simrail.TimetableTTL,
		Concurrency:  cfg.Simrail.Concurrency,
	}

	deps := &http.Dependencies{
		Cache:          pinger,
		MaxSnapshotAge: max(6*cfg.Simrail.PollInterval, time.Minute),
	}

	if cfg.Poller.Enabled {
		// This instance polls the game API itself and shares its snapshots.
		var publisher ports.SnapshotPublisher
		if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
			slog.Warn("nats unavailable, snapshots stay local", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			deps.NATS = pub.Conn()
		}

		deps.Dispatch = usecases.NewDispatchService(client, stations.Default(), cache, publisher, opts)
		poller := usecases.NewDispatchPoller(deps.Dispatch, cfg.Simrail.PollInterval, cfg.Simrail.Concurrency)
		go poller.Run(ctx)
	} else {
		// Snapshots come from a cmd/realtime instance.
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer sub.Close()
		deps.NATS = sub.Conn()

		deps.Dispatch = usecases.NewDispatchService(client, stations.Default(), cache, nil, opts)
		err = sub.SubscribeSnapshots(ctx, func(ctx context.Context, snap *domain.ServerSnapshot) error {
			deps.Dispatch.Apply(snap)
			return nil
		})
		if err != nil {
			log.Fatalf("subscribe: %v", err)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024, // GraphQL queries only
		AppName:      "Sirius Dispatch API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Link, Retry-After, X-Request-Id",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "poller", cfg.Poller.Enabled, "servers", len(cfg.Simrail.Servers))
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
