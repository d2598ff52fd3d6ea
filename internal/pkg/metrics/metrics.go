package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sirius",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sirius",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sirius",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Dispatch metrics
	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sirius",
		Subsystem: "dispatch",
		Name:      "poll_duration_seconds",
		Help:      "Duration of a full refresh of one game server",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"server"})

	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sirius",
		Subsystem: "dispatch",
		Name:      "poll_errors_total",
		Help:      "Total failed train list fetches",
	}, []string{"server"})

	TimetableErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sirius",
		Subsystem: "dispatch",
		Name:      "timetable_errors_total",
		Help:      "Total failed timetable fetches",
	}, []string{"server"})

	TrainsTracked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sirius",
		Subsystem: "dispatch",
		Name:      "trains_tracked",
		Help:      "Trains in the latest snapshot of each server",
	}, []string{"server"})

	SnapshotsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sirius",
		Subsystem: "dispatch",
		Name:      "snapshots_applied_total",
		Help:      "Snapshots stored, by outcome (stored or stale)",
	}, []string{"server", "outcome"})

	MalformedTimestamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sirius",
		Subsystem: "dispatch",
		Name:      "malformed_timestamps_total",
		Help:      "Timetable timestamps that could not be parsed",
	}, []string{"field"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sirius",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sirius",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sirius",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// route pattern, not the raw path, to keep label cardinality bounded
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
