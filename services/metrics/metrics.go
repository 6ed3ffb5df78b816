// Package metrics exposes prometheus metrics for workflow events and HTTP traffic.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/evidencehub/core"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidencehub_events_total",
			Help: "Number of published workflow events.",
		},
		[]string{"type", "to"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidencehub_http_requests_total",
			Help: "Number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evidencehub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// HandleEvent counts events; `to` is only set for submission transitions to keep cardinality low.
func HandleEvent(_ context.Context, evt core.Event) {
	to := ""
	if evt.Type == core.EventSubmissionTransitioned {
		to = evt.To
	}
	eventsTotal.WithLabelValues(string(evt.Type), to).Inc()
}

// Middleware records request counts and durations per route.
// The route pattern (e.g. /v1/submissions/:id) is used as path label.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the status we record
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			httpRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
