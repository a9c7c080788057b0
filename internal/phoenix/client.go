package phoenix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/brucki/mg-test/internal/reqctx"
)

const (
	tracerName      = "github.com/brucki/mg-test/internal/phoenix"
	maxResponseBody = 4 << 20
)

// Client talks to the Phoenix users API.
type Client struct {
	cfg     Config
	baseURL string

	http   Doer
	log    *slog.Logger
	rec    Recorder
	sleep  func(ctx context.Context, d time.Duration) error
	tracer trace.Tracer
}

func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("phoenix: invalid base url %q", cfg.BaseURL)
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{},
		log:     slog.Default(),
		rec:     nopRecorder{},
		sleep:   sleepContext,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// CallBudget is the longest a single operation can take: every attempt
// timing out plus the backoff sleeps between them.
func (c *Client) CallBudget() time.Duration {
	budget := time.Duration(c.cfg.MaxRetryAttempts) * c.cfg.Timeout
	for attempt := 0; attempt+1 < c.cfg.MaxRetryAttempts; attempt++ {
		budget += backoffDelay(c.cfg.BaseBackoff, attempt)
	}
	return budget
}

type call struct {
	op     string
	method string
	path   string
	body   []byte
}

type response struct {
	status int
	body   []byte
}

// do runs one logical call: the attempt loop, then decode on the envelope.
// The span and the call observation see the final error, decode included.
func (c *Client) do(ctx context.Context, cl call, decode func(envelope) error) (err error) {
	ctx, span := c.tracer.Start(ctx, "phoenix."+cl.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.path", cl.path),
		),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.rec.ObserveCall(cl.op, err, time.Since(start))
	}()

	env, err := c.exchange(ctx, span, cl)
	if err != nil || decode == nil {
		return err
	}
	return decode(env)
}

// exchange runs the attempt loop and classifies the final response.
func (c *Client) exchange(ctx context.Context, span trace.Span, cl call) (envelope, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetryAttempts; attempt++ {
		span.SetAttributes(attribute.Int("phoenix.attempts", attempt+1))

		res, terr := c.attempt(ctx, cl)
		if terr == nil {
			env, err := classify(res.status, res.body)
			if err == nil {
				return env, nil
			}
			if !c.cfg.RetryServerErrors || res.status < 500 {
				return envelope{}, withOp(err, cl.op)
			}
			lastErr = err
		} else {
			var fatal *Error
			if errors.As(terr, &fatal) {
				return envelope{}, withOp(fatal, cl.op)
			}
			lastErr = terr
		}

		c.log.WarnContext(ctx, "phoenix attempt failed",
			"op", cl.op,
			"attempt", attempt+1,
			"err", lastErr,
		)

		if ctx.Err() != nil {
			break
		}
		if attempt+1 >= c.cfg.MaxRetryAttempts {
			break
		}

		delay := backoffDelay(c.cfg.BaseBackoff, attempt)
		c.log.DebugContext(ctx, "phoenix retry scheduled",
			"op", cl.op,
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"err", lastErr,
		)
		c.rec.ObserveRetry(cl.op, attempt+1, delay)

		if serr := c.sleep(ctx, delay); serr != nil {
			break
		}
	}

	var classified *Error
	if errors.As(lastErr, &classified) {
		return envelope{}, withOp(classified, cl.op)
	}
	e := connectionError("could not connect to the API", lastErr)
	if lastErr != nil {
		e.Message = "could not connect to the API: " + lastErr.Error()
	}
	return envelope{}, withOp(e, cl.op)
}

// attempt performs exactly one network call. A nil error means a response
// was received. A transport failure is returned as-is; failures that must
// not be retried are returned as *Error.
func (c *Client) attempt(ctx context.Context, cl call) (response, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}

	req, err := http.NewRequestWithContext(actx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return response{}, connectionError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if id, ok := reqctx.RequestIDFrom(ctx); ok {
		req.Header.Set("X-Request-Id", id)
	}
	otel.GetTextMapPropagator().Inject(actx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.rec.ObserveAttempt(cl.op, 0, err, time.Since(start))
		return response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		e := connectionError("failed to read API response", err)
		e.Status = resp.StatusCode
		c.rec.ObserveAttempt(cl.op, resp.StatusCode, e, time.Since(start))
		return response{}, e
	}

	c.rec.ObserveAttempt(cl.op, resp.StatusCode, nil, time.Since(start))
	return response{status: resp.StatusCode, body: data}, nil
}

func withOp(err error, op string) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		e.Op = op
	}
	return err
}
