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
		Namespace: "vastmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vastmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Fetch pipeline metrics
	RefreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vastmap",
		Subsystem: "fetch",
		Name:      "refresh_cycles_total",
		Help:      "Total refresh cycles by outcome",
	}, []string{"outcome"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vastmap",
		Subsystem: "fetch",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of one full refresh cycle",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	CellFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vastmap",
		Subsystem: "fetch",
		Name:      "cell_errors_total",
		Help:      "Cells that yielded no data after exhausting retries",
	})

	CellFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vastmap",
		Subsystem: "fetch",
		Name:      "cell_retries_total",
		Help:      "Retried cell fetch attempts (429 or transient failure)",
	})

	VehiclesPublished = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vastmap",
		Subsystem: "fetch",
		Name:      "vehicles_published",
		Help:      "Vehicle count in the most recently published snapshot",
	})

	SnapshotAge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vastmap",
		Subsystem: "fetch",
		Name:      "snapshot_age_seconds",
		Help:      "Age of the published snapshot at last read",
	})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vastmap",
		Subsystem: "auth",
		Name:      "token_refreshes_total",
		Help:      "OAuth2 token refresh attempts by outcome",
	}, []string{"outcome"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vastmap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vastmap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vastmap",
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
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
