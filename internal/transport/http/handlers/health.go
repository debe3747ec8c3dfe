package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessCheckTimeout = 2 * time.Second

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt time.Time
	checks    []readinessCheck
}

// HealthOption configures optional HealthHandler behaviour.
type HealthOption func(*HealthHandler)

// WithReadinessCheck registers a named dependency probe for the readiness endpoint.
func WithReadinessCheck(name string, check func(ctx context.Context) error) HealthOption {
	return func(h *HealthHandler) {
		if name == "" || check == nil {
			return
		}
		h.checks = append(h.checks, readinessCheck{name: name, check: check})
	}
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	handler := &HealthHandler{startedAt: time.Now().UTC()}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

// Status godoc
// @Summary Service health check
// @Description Returns the status and start time of the service.
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
		Timestamp: time.Now().UTC(),
	})
}

// Readiness godoc
// @Summary Service readiness check
// @Description Probes registered dependencies and reports per-check results.
// @Tags Health
// @Produce json
// @Success 200 {object} ReadyResponse
// @Failure 503 {object} ReadyResponse
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	ready := true

	for _, probe := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessCheckTimeout)
		err := probe.check(ctx)
		cancel()

		if err != nil {
			results[probe.name] = err.Error()
			ready = false
			continue
		}
		results[probe.name] = "ok"
	}

	status := http.StatusOK
	payload := ReadyResponse{
		Status:    "ready",
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}
	if !ready {
		status = http.StatusServiceUnavailable
		payload.Status = "degraded"
	}

	c.JSON(status, payload)
}
