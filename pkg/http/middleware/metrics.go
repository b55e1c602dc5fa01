package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applogger "MarketPulse/pkg/logger"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	size     *prometheus.HistogramVec
}

var (
	httpMetricsMu  sync.Mutex
	httpMetricsFor = map[prometheus.Registerer]*httpMetrics{}
)

func metricsFor(reg prometheus.Registerer) *httpMetrics {
	httpMetricsMu.Lock()
	defer httpMetricsMu.Unlock()
	if m, ok := httpMetricsFor[reg]; ok {
		return m
	}
	f := promauto.With(reg)
	m := &httpMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketpulse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method", "class"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		size: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketpulse_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{200, 1_000, 5_000, 20_000, 100_000, 500_000},
		}, []string{"route", "method"}),
	}
	httpMetricsFor[reg] = m
	return m
}

// Metrics records per-route request metrics and warns about slow requests. Routes are echo
// templates such as /api/predictions/:symbol, which keeps label cardinality bounded.
func Metrics(reg prometheus.Registerer, l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	m := metricsFor(reg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			m.inFlight.Dec()

			route, method := routeOf(c), c.Request().Method
			status := c.Response().Status
			elapsed := time.Since(start)

			m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(route, method, statusClass(status)).Observe(elapsed.Seconds())
			m.size.WithLabelValues(route, method).Observe(float64(c.Response().Size))

			if slowThreshold > 0 && elapsed >= slowThreshold {
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", status),
					applogger.Duration("duration_ms", elapsed),
				)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
