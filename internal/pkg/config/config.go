package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal container images

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultServers are the public game servers polled when none are configured.
var DefaultServers = []string{
	"fr1", "fr2", "cz1", "cz2",
	"de1", "de2", "de3", "de4", "de5",
	"ua1", "es1", "es2",
	"en1", "en2", "en3", "en4", "en5", "en6", "en8", "en9",
	"it1",
	"pl1", "pl2", "pl3", "pl4", "pl5", "pl6", "pl7",
	"pt1", "cn1",
}

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Simrail   SimrailConfig   `mapstructure:"simrail"`
	Poller    PollerConfig    `mapstructure:"poller"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

// SimrailConfig describes the upstream game API and how it is polled.
type SimrailConfig struct {
	TrainsURL      string        `mapstructure:"trains_url"`
	TimetableURL   string        `mapstructure:"timetable_url"`
	Servers        []string      `mapstructure:"servers"`
	Timezone       string        `mapstructure:"timezone"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TimetableTTL   time.Duration `mapstructure:"timetable_ttl"`
	Concurrency    int           `mapstructure:"concurrency"`
	UserAgent      string        `mapstructure:"user_agent"`
	ClientName     string        `mapstructure:"client_name"`
	Contact        string        `mapstructure:"contact"`
}

// Location loads the configured timezone.
func (s SimrailConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

type PollerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.cors_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("simrail.trains_url", "https://panel.simrail.eu:8084")
	v.SetDefault("simrail.timetable_url", "https://panel.simrail.eu:8091")
	v.SetDefault("simrail.servers", DefaultServers)
	v.SetDefault("simrail.timezone", "Europe/Paris")
	v.SetDefault("simrail.poll_interval", 10*time.Second)
	v.SetDefault("simrail.request_timeout", 10*time.Second)
	v.SetDefault("simrail.timetable_ttl", 30*time.Minute)
	v.SetDefault("simrail.concurrency", 8)
	v.SetDefault("simrail.user_agent", "Sirius EDR")
	v.SetDefault("simrail.client_name", "Sirius EDR")
	v.SetDefault("simrail.contact", "")
	v.SetDefault("poller.enabled", true)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.prefix", "sirius:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SIRIUS_SIMRAIL_POLL_INTERVAL → simrail.poll_interval
	v.SetEnvPrefix("SIRIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Simrail.TrainsURL == "" {
		errs = append(errs, "simrail.trains_url is required")
	}
	if c.Simrail.TimetableURL == "" {
		errs = append(errs, "simrail.timetable_url is required")
	}
	if len(c.Simrail.Servers) == 0 {
		errs = append(errs, "simrail.servers must list at least one server")
	}
	if _, err := time.LoadLocation(c.Simrail.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("simrail.timezone %q is not a known zone", c.Simrail.Timezone))
	}
	if c.Simrail.PollInterval < time.Second {
		errs = append(errs, "simrail.poll_interval must be at least 1s")
	}
	if c.Simrail.RequestTimeout <= 0 {
		errs = append(errs, "simrail.request_timeout must be positive")
	}
	if c.Simrail.Concurrency <= 0 {
		errs = append(errs, "simrail.concurrency must be positive")
	}
	if c.Simrail.TimetableTTL < 0 {
		errs = append(errs, "simrail.timetable_ttl must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
