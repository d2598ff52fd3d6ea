package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/sirius/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("sirius-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Simrail.PollInterval != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %s", cfg.Simrail.PollInterval)
	}
	if len(cfg.Simrail.Servers) != len(config.DefaultServers) {
		t.Errorf("expected %d default servers, got %d", len(config.DefaultServers), len(cfg.Simrail.Servers))
	}
	if cfg.Telemetry.ServiceName != "sirius-test" {
		t.Errorf("expected service name sirius-test, got %s", cfg.Telemetry.ServiceName)
	}

	loc, err := cfg.Simrail.Location()
	if err != nil || loc.String() != "Europe/Paris" {
		t.Errorf("expected Europe/Paris, got %v (%v)", loc, err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SIRIUS_SERVER_PORT", "9090")
	t.Setenv("SIRIUS_SIMRAIL_POLL_INTERVAL", "30s")
	t.Setenv("SIRIUS_POLLER_ENABLED", "false")

	cfg, err := config.Load("sirius-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Simrail.PollInterval != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.Simrail.PollInterval)
	}
	if cfg.Poller.Enabled {
		t.Error("expected poller to be disabled")
	}
}

func TestValidate(t *testing.T) {
	cfg := config.Config{
		Server: config.ServerConfig{Port: 0, ReadTimeout: 10, WriteTimeout: 10},
		Simrail: config.SimrailConfig{
			TrainsURL:      "http://localhost",
			TimetableURL:   "http://localhost",
			Timezone:       "Mars/Olympus",
			PollInterval:   100 * time.Millisecond,
			RequestTimeout: time.Second,
			Concurrency:    1,
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "simrail.servers", "simrail.timezone", "simrail.poll_interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}
