package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/brucki/mg-test/internal/http/handlers"
)

func setupHealthRouter(h *handlers.HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	return r
}

func TestReadyz(t *testing.T) {
	var redisErr error
	h := handlers.NewHealthHandler(
		map[string]handlers.ReadinessCheck{
			"cache": func(context.Context) error { return redisErr },
		},
		func() gin.H { return gin.H{"circuit": "closed"} },
	)
	r := setupHealthRouter(h)

	w := doJSON(r, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "ready" || body["circuit"] != "closed" {
		t.Fatalf("unexpected body: %v", body)
	}

	redisErr = errors.New("dial tcp: connection refused")
	w = doJSON(r, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when a check fails, got %d", w.Code)
	}

	redisErr = nil
	var cacheErr error
	h.AddInformational("redis", func(context.Context) error { return cacheErr })
	cacheErr = errors.New("dial tcp: connection refused")
	w = doJSON(r, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("an informational check must not fail readiness, got %d", w.Code)
	}
	body = nil
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	checks, _ := body["checks"].(map[string]any)
	if body["status"] != "degraded" || checks["redis"] != cacheErr.Error() {
		t.Fatalf("unexpected body: %v", body)
	}

	h.SetShuttingDown()
	w = doJSON(r, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while shutting down, got %d", w.Code)
	}

	if w := doJSON(r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("liveness must stay ok while shutting down, got %d", w.Code)
	}
}
