package observability

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfanzaky/refledger/pkg/logger"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// MetricsHandler provides Prometheus metrics and health endpoints
type MetricsHandler struct {
	service      string
	gatherer     prometheus.Gatherer
	dependencies map[string]Pinger
	pingTimeout  time.Duration
}

// NewMetricsHandler creates a new metrics handler. Metrics registered through
// promauto live in the default registry, which also carries the Go and
// process collectors.
func NewMetricsHandler(service string, dependencies map[string]Pinger) *MetricsHandler {
	return &MetricsHandler{
		service:      service,
		gatherer:     prometheus.DefaultGatherer,
		dependencies: dependencies,
		pingTimeout:  2 * time.Second,
	}
}

// MetricsEndpoint returns the Prometheus metrics handler
func (h *MetricsHandler) MetricsEndpoint() gin.HandlerFunc {
	handler := promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})

	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// HealthEndpoint provides a basic health check
func (h *MetricsHandler) HealthEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   h.service,
			"timestamp": time.Now().Unix(),
		})
	}
}

// ReadinessEndpoint pings every dependency and reports 503 if any fails
func (h *MetricsHandler) ReadinessEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.pingTimeout)
		defer cancel()

		names := make([]string, 0, len(h.dependencies))
		for name := range h.dependencies {
			names = append(names, name)
		}
		sort.Strings(names)

		checks := make(gin.H, len(names))
		ready := true
		for _, name := range names {
			if err := h.dependencies[name].Ping(ctx); err != nil {
				ready = false
				checks[name] = err.Error()
				logger.Warn("Readiness check failed", logger.String("dependency", name), logger.ErrorField(err))
				continue
			}
			checks[name] = "ok"
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
	}
}

// LivenessEndpoint provides liveness check
func (h *MetricsHandler) LivenessEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "alive",
		})
	}
}
