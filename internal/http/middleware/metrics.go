// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// kept to method, registered route (falling back to the raw path when no
// route matched) and status code so cardinality stays bounded.
//
// Long-lived Server-Sent Events routes are counted but excluded from the
// latency and size histograms; a 30 minute stream would otherwise dominate
// every bucket. They are tracked by the http_streams_open gauge instead.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges in-flight non-stream requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// httpStreams gauges open event streams.
	httpStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_streams_open",
			Help: "Current number of open Server-Sent Events streams.",
		},
	)

	// httpRespSize captures response sizes in bytes. Notification payloads
	// are small, so buckets stop at 1MiB.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				100, 250, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 50 << 10, 100 << 10, 1 << 20,
			},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpStreams, httpRespSize)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
// Routes listed in streamPaths (as reported by c.FullPath) are treated as
// event streams.
//
//	r.Use(middleware.Metrics("/api/notifications/stream"))
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics(streamPaths ...string) gin.HandlerFunc {
	streams := make(map[string]struct{}, len(streamPaths))
	for _, p := range streamPaths {
		streams[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		_, stream := streams[path]

		start := time.Now()
		gauge := httpInflight
		if stream {
			gauge = httpStreams
		}
		gauge.Inc()
		defer gauge.Dec()

		c.Next()

		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		if stream {
			return
		}
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
