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
		Namespace: "firewatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "firewatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "firewatch",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Acquisition pipeline metrics
	ImagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "firewatch",
		Subsystem: "acquisition",
		Name:      "images_fetched_total",
		Help:      "Total true-color captures fetched and cached",
	})

	TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "firewatch",
		Subsystem: "acquisition",
		Name:      "token_refreshes_total",
		Help:      "Total imagery provider token exchanges performed",
	})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firewatch",
		Subsystem: "acquisition",
		Name:      "provider_errors_total",
		Help:      "Total imagery provider failures by stage",
	}, []string{"stage"})

	ProviderRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "firewatch",
		Subsystem: "acquisition",
		Name:      "provider_request_duration_seconds",
		Help:      "Duration of Process API calls, retries included",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// Inference metrics
	InferenceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firewatch",
		Subsystem: "inference",
		Name:      "requests_total",
		Help:      "Total classifier calls by outcome",
	}, []string{"outcome"})

	Detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firewatch",
		Subsystem: "inference",
		Name:      "detections_total",
		Help:      "Total verdicts by label",
	}, []string{"label"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "firewatch",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firewatch",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firewatch",
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
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

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
