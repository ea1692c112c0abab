package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the canteen collectors; it is served on /metrics.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "canteen",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Order placement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	orderStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "orders",
			Name:      "status_changes_total",
			Help:      "Order status transitions by target status and outcome.",
		},
		[]string{"status", "outcome"},
	)

	topUps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "balance",
			Name:      "topups_total",
			Help:      "Balance top-ups by payment method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by key kind and result.",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		ordersPlaced,
		orderStatusChanges,
		topUps,
		cacheLookups,
	)
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency by route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func RecordOrderPlaced(outcome string) {
	ordersPlaced.WithLabelValues(outcome).Inc()
}

func RecordStatusChange(status, outcome string) {
	orderStatusChanges.WithLabelValues(status, outcome).Inc()
}

func RecordTopUp(method, outcome string) {
	topUps.WithLabelValues(method, outcome).Inc()
}

func RecordCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(kind, result).Inc()
}
