package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/brucki/mg-test/internal/domain/user"
	"github.com/brucki/mg-test/internal/phoenix"
	"github.com/brucki/mg-test/internal/reqctx"
)

func TestLoggerAddsRequestIDAndService(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "dev", "mg-gateway")

	ctx := reqctx.WithRequestID(context.Background(), "req-1")
	logger.DebugContext(ctx, "hello", "k", "v")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if got["msg"] != "hello" || got["request_id"] != "req-1" || got["service"] != "mg-gateway" || got["k"] != "v" {
		t.Fatalf("unexpected log line: %v", got)
	}
}

func TestLoggerLevelByEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "prod", "")

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be dropped outside dev, got %q", buf.String())
	}
}

func TestObserveUpstream(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	p.ObserveAttempt(phoenix.OpGetUser, 0, errors.New("dial"), time.Millisecond)
	p.ObserveRetry(phoenix.OpGetUser, 1, 100*time.Millisecond)
	p.ObserveAttempt(phoenix.OpGetUser, 404, nil, time.Millisecond)
	p.ObserveCall(phoenix.OpGetUser, &phoenix.Error{Kind: phoenix.KindNotFound}, 150*time.Millisecond)
	p.ObserveCall(phoenix.OpListUsers, nil, 50*time.Millisecond)

	if got := p.Stats.Snapshot().LastErrorKind; got != "not_found" {
		t.Fatalf("expected last error kind not_found, got %q", got)
	}
	p.ObserveCall(phoenix.OpGetUser, &user.MalformedDateError{Field: "birthdate", Value: "nope"}, 0)
	if v := testutil.ToFloat64(p.UpstreamErrorsTotal.WithLabelValues(phoenix.OpGetUser, "malformed_date")); v != 1 {
		t.Fatalf("expected 1 malformed_date error, got %v", v)
	}
	if got := p.Stats.Snapshot().LastErrorKind; got != "malformed_date" {
		t.Fatalf("expected last error kind malformed_date, got %q", got)
	}

	if v := testutil.ToFloat64(p.UpstreamAttempts.WithLabelValues(phoenix.OpGetUser, "transport_error")); v != 1 {
		t.Fatalf("expected 1 transport error attempt, got %v", v)
	}
	if v := testutil.ToFloat64(p.UpstreamAttempts.WithLabelValues(phoenix.OpGetUser, "4xx")); v != 1 {
		t.Fatalf("expected 1 4xx attempt, got %v", v)
	}
	if v := testutil.ToFloat64(p.UpstreamRetries.WithLabelValues(phoenix.OpGetUser)); v != 1 {
		t.Fatalf("expected 1 retry, got %v", v)
	}
	if v := testutil.ToFloat64(p.UpstreamErrorsTotal.WithLabelValues(phoenix.OpGetUser, "not_found")); v != 1 {
		t.Fatalf("expected 1 not_found error, got %v", v)
	}

	snap := p.Stats.Snapshot()
	if snap.Calls != 3 || snap.Failed != 2 || snap.Retried != 1 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
	if snap.MaxDuration != 150*time.Millisecond || snap.AverageDuration != 200*time.Millisecond/3 {
		t.Fatalf("unexpected durations: %+v", snap)
	}
}

func TestClassifyUpstreamErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&phoenix.Error{Kind: phoenix.KindConnection}, "connection"},
		{&phoenix.Error{Kind: phoenix.KindProtocol}, "protocol"},
		{&phoenix.Error{Kind: phoenix.KindValidation}, "validation"},
		{&phoenix.Error{Kind: phoenix.KindNotFound}, "not_found"},
		{&phoenix.Error{Kind: phoenix.KindConnection, Err: context.DeadlineExceeded}, "timeout"},
		{&phoenix.Error{Kind: phoenix.KindConnection, Err: context.Canceled}, "canceled"},
		{fmt.Errorf("item 0: %w", &user.MalformedDateError{Field: "birthdate", Value: "x"}), "malformed_date"},
		{errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		if got := classifyUpstreamErr(tt.err); got != tt.want {
			t.Fatalf("classify(%v): expected %s, got %s", tt.err, tt.want, got)
		}
	}
}

func TestCacheAndCircuitMetrics(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	p.ObserveCacheLookup("list", true)
	p.ObserveCacheLookup("list", false)
	p.ObserveCacheLookup("list", true)
	if v := testutil.ToFloat64(p.CacheLookups.WithLabelValues("list", "hit")); v != 2 {
		t.Fatalf("expected 2 hits, got %v", v)
	}

	if v := testutil.ToFloat64(p.CircuitState.WithLabelValues("closed")); v != 1 {
		t.Fatalf("expected closed=1 initially, got %v", v)
	}
	p.SetCircuitState("open")
	if testutil.ToFloat64(p.CircuitState.WithLabelValues("open")) != 1 || testutil.ToFloat64(p.CircuitState.WithLabelValues("closed")) != 0 {
		t.Fatalf("expected only open to be set")
	}
}

func TestGinHandleMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewProm(prometheus.NewRegistry())

	r := gin.New()
	r.Use(p.GinHandleMiddleware())
	r.GET("/api/users/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/api/users/1", "/api/users/2", "/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if v := testutil.ToFloat64(p.RequestsTotal.WithLabelValues("GET", "/api/users/:id", "204")); v != 2 {
		t.Fatalf("expected 2 requests on route template, got %v", v)
	}
	if v := testutil.ToFloat64(p.RequestsTotal.WithLabelValues("GET", "unmatched", "404")); v != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", v)
	}
}
