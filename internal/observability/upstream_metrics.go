package observability

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/brucki/mg-test/internal/domain/user"
	"github.com/brucki/mg-test/internal/phoenix"
)

// Prom implements phoenix.Recorder.
var _ phoenix.Recorder = (*Prom)(nil)

func (p *Prom) ObserveAttempt(op string, status int, err error, _ time.Duration) {
	outcome := "transport_error"
	if status > 0 {
		outcome = strconv.Itoa(status/100) + "xx"
	}
	p.UpstreamAttempts.WithLabelValues(op, outcome).Inc()
}

func (p *Prom) ObserveRetry(op string, _ int, _ time.Duration) {
	p.UpstreamRetries.WithLabelValues(op).Inc()
	p.Stats.IncRetried()
}

func (p *Prom) ObserveCall(op string, err error, d time.Duration) {
	status := "ok"
	var class string

	if err != nil {
		status = "error"
		class = classifyUpstreamErr(err)
		p.UpstreamErrorsTotal.WithLabelValues(op, class).Inc()
	}
	p.UpstreamCallDuration.WithLabelValues(op, status).Observe(d.Seconds())
	p.Stats.ObserveCall(class, d)
}

func classifyUpstreamErr(err error) string {
	var dateErr *user.MalformedDateError
	if errors.As(err, &dateErr) {
		return "malformed_date"
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	switch phoenix.KindOf(err) {
	case phoenix.KindNotFound:
		return "not_found"
	case phoenix.KindValidation:
		return "validation"
	case phoenix.KindProtocol:
		return "protocol"
	case phoenix.KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}
