package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brucki/mg-test/internal/cache"
	"github.com/brucki/mg-test/internal/config"
	apphttp "github.com/brucki/mg-test/internal/http"
	"github.com/brucki/mg-test/internal/http/handlers"
	"github.com/brucki/mg-test/internal/observability"
	"github.com/brucki/mg-test/internal/phoenix"
	"github.com/brucki/mg-test/internal/users"
)

// fakePhoenix serves the users API in the shapes the real backend uses.
type fakePhoenix struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]map[string]any
	hits   atomic.Int32
	down   atomic.Bool
}

func newFakePhoenix() *fakePhoenix {
	return &fakePhoenix{nextID: 1, users: map[int64]map[string]any{}}
}

func (f *fakePhoenix) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	if f.down.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/api/users")

	f.mu.Lock()
	defer f.mu.Unlock()

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			list := make([]map[string]any, 0, len(f.users))
			for id := int64(1); id < f.nextID; id++ {
				if u, ok := f.users[id]; ok {
					list = append(list, u)
				}
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": list})
		case http.MethodPost:
			body, ok := readUser(w, r)
			if !ok {
				return
			}
			id := f.nextID
			f.nextID++
			body["id"] = id
			body["inserted_at"] = "2024-01-01T10:00:00"
			body["updated_at"] = "2024-01-01T10:00:00"
			f.users[id] = body
			writeJSON(w, http.StatusCreated, map[string]any{"data": body})
		}
		return
	}

	id, _ := strconv.ParseInt(strings.TrimPrefix(path, "/"), 10, 64)
	u, found := f.users[id]
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "User not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"data": u})
	case http.MethodPut:
		body, ok := readUser(w, r)
		if !ok {
			return
		}
		for k, v := range body {
			u[k] = v
		}
		u["updated_at"] = "2024-01-02T10:00:00"
		writeJSON(w, http.StatusOK, map[string]any{"data": u})
	case http.MethodDelete:
		delete(f.users, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func readUser(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad json"})
		return nil, false
	}
	if body["last_name"] == "Taken" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Validation failed",
			"errors":  map[string][]string{"last_name": {"has already been taken"}},
		})
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type gateway struct {
	router  *gin.Engine
	phoenix *fakePhoenix
	breaker *users.ProtectedService
	prom    *observability.Prom
}

func setupGateway(t *testing.T) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fp := newFakePhoenix()
	upstream := httptest.NewServer(fp)
	t.Cleanup(upstream.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	client, err := phoenix.New(
		phoenix.Config{BaseURL: upstream.URL + "/api", MaxRetryAttempts: 2, BaseBackoff: time.Millisecond},
		phoenix.WithHTTPClient(upstream.Client()),
		phoenix.WithLogger(logger),
		phoenix.WithRecorder(prom),
	)
	if err != nil {
		t.Fatalf("phoenix client: %v", err)
	}

	svc, breaker := users.Stack(client, users.StackConfig{
		Store: cache.NewMemory(),
		Cached: users.CachedConfig{
			TTL:      time.Minute,
			OnLookup: prom.ObserveCacheLookup,
		},
		Protected: users.ProtectedConfig{
			FailureThreshold: 2,
			Cooldown:         time.Minute,
			OnStateChange:    func(_, to users.State) { prom.SetCircuitState(string(to)) },
		},
	}, logger)

	cfg := config.Config{
		Env:         "test",
		ServiceName: "mg-gateway-test",
	}
	router := apphttp.NewRouter(logger, cfg, apphttp.Deps{
		Users:    svc,
		Health:   handlers.NewHealthHandler(nil, nil),
		Prom:     prom,
		Gatherer: reg,
	})

	return &gateway{router: router, phoenix: fp, breaker: breaker, prom: prom}
}

func (g *gateway) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

type listResponse struct {
	Items []handlers.UserView `json:"items"`
	Count int                 `json:"count"`
}

func TestGateway_UserLifecycle(t *testing.T) {
	g := setupGateway(t)

	w := g.do(t, http.MethodPost, "/api/users", `{"first_name":"Jan","last_name":"Kowalski","gender":"male","birthdate":"1990-05-15"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var created handlers.UserView
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == nil || *created.ID != 1 || created.InsertedAt != "2024-01-01 10:00:00" {
		t.Fatalf("unexpected created view: %+v", created)
	}

	// list twice: second read is served from cache
	hitsBefore := g.phoenix.hits.Load()
	for i := 0; i < 2; i++ {
		w = g.do(t, http.MethodGet, "/api/users", "")
		if w.Code != http.StatusOK {
			t.Fatalf("list: expected 200, got %d", w.Code)
		}
	}
	if got := g.phoenix.hits.Load() - hitsBefore; got != 1 {
		t.Fatalf("expected one upstream list call, got %d", got)
	}

	w = g.do(t, http.MethodPut, "/api/users/1", `{"first_name":"Janusz","last_name":"Kowalski","gender":"male","birthdate":"1990-05-15"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	// update invalidated the cached list
	w = g.do(t, http.MethodGet, "/api/users", "")
	var list listResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Count != 1 || list.Items[0].FirstName != "Janusz" {
		t.Fatalf("expected updated list, got %+v", list)
	}

	w = g.do(t, http.MethodDelete, "/api/users/1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}

	w = g.do(t, http.MethodGet, "/api/users/1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
}

func TestGateway_UpstreamValidation(t *testing.T) {
	g := setupGateway(t)

	w := g.do(t, http.MethodPost, "/api/users", `{"first_name":"Jan","last_name":"Taken","gender":"male","birthdate":"1990-05-15"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "has already been taken") {
		t.Fatalf("expected upstream field message, got %s", w.Body.String())
	}
}

func TestGateway_CircuitOpensWhenUpstreamDown(t *testing.T) {
	g := setupGateway(t)
	g.phoenix.down.Store(true)

	for i := 0; i < 2; i++ {
		w := g.do(t, http.MethodGet, "/api/users", "")
		if w.Code != http.StatusBadGateway {
			t.Fatalf("call %d: expected 502, got %d body=%s", i, w.Code, w.Body.String())
		}
	}

	hits := g.phoenix.hits.Load()
	w := g.do(t, http.MethodGet, "/api/users", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with open circuit, got %d", w.Code)
	}
	if g.phoenix.hits.Load() != hits {
		t.Fatalf("open circuit must not reach upstream")
	}
	if g.breaker.State() != users.StateOpen {
		t.Fatalf("expected open state, got %s", g.breaker.State())
	}
}

func TestGateway_CachedReadsSurviveOpenCircuit(t *testing.T) {
	g := setupGateway(t)

	if w := g.do(t, http.MethodGet, "/api/users", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	g.phoenix.down.Store(true)
	for i := 0; i < 2; i++ {
		if w := g.do(t, http.MethodGet, "/api/users/42", ""); w.Code != http.StatusBadGateway {
			t.Fatalf("call %d: expected 502, got %d", i, w.Code)
		}
	}
	if g.breaker.State() != users.StateOpen {
		t.Fatalf("expected open state, got %s", g.breaker.State())
	}

	hits := g.phoenix.hits.Load()
	if w := g.do(t, http.MethodGet, "/api/users", ""); w.Code != http.StatusOK {
		t.Fatalf("expected cached list with open circuit, got %d", w.Code)
	}
	if w := g.do(t, http.MethodGet, "/api/users/7", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on cache miss with open circuit, got %d", w.Code)
	}
	if g.phoenix.hits.Load() != hits {
		t.Fatalf("open circuit must not reach upstream")
	}
}

func TestGateway_Metrics(t *testing.T) {
	g := setupGateway(t)

	_ = g.do(t, http.MethodGet, "/api/users", "")

	w := g.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{
		`mg_gateway_upstream_attempts_total{op="list_users",outcome="2xx"} 1`,
		`mg_gateway_http_requests_total{method="GET",route="/api/users",status="200"} 1`,
		`mg_gateway_cache_lookups_total{op="list",result="miss"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics to contain %q\n%s", want, body)
		}
	}
}

func TestGateway_HealthAndUnknownRoutes(t *testing.T) {
	g := setupGateway(t)

	if w := g.do(t, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}

	w := g.do(t, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"not_found"`) {
		t.Fatalf("expected JSON 404, got %d %s", w.Code, w.Body.String())
	}

	if w := g.do(t, http.MethodPost, "/api/users", ""); w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 without JSON content type, got %d", w.Code)
	}
}
