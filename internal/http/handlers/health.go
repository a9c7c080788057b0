package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type HealthHandler struct {
	checks       map[string]ReadinessCheck
	soft         map[string]ReadinessCheck
	info         func() gin.H
	shuttingDown atomic.Bool
}

// NewHealthHandler takes named dependency checks and an optional info func
// whose fields are merged into the readiness body.
func NewHealthHandler(checks map[string]ReadinessCheck, info func() gin.H) *HealthHandler {
	return &HealthHandler{checks: checks, soft: map[string]ReadinessCheck{}, info: info}
}

// AddInformational registers a check that is reported in the readiness
// body but never makes the instance unready.
func (h *HealthHandler) AddInformational(name string, check ReadinessCheck) {
	h.soft[name] = check
}

// SetShuttingDown makes Readyz fail so load balancers drain the instance.
func (h *HealthHandler) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.shuttingDown.Load() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks)+len(h.soft))
	for name, check := range h.checks {
		if err := check(checkCtx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	degraded := false
	for name, check := range h.soft {
		if err := check(checkCtx); err != nil {
			degraded = true
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	body := gin.H{"status": "ready", "checks": results}
	switch {
	case status != http.StatusOK:
		body["status"] = "not_ready"
	case degraded:
		body["status"] = "degraded"
	}
	if h.info != nil {
		for k, v := range h.info() {
			body[k] = v
		}
	}

	ctx.JSON(status, body)
}
