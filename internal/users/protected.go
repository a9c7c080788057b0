package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brucki/mg-test/internal/domain/user"
	"github.com/brucki/mg-test/internal/phoenix"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type ProtectedConfig struct {
	FailureThreshold int           // consecutive upstream failures to open the circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // trial calls allowed in half-open
	OnStateChange    func(from, to State)
}

// ProtectedService fails fast with ErrCircuitOpen while the upstream is
// considered down. Only connection and protocol failures count against it;
// not-found and validation answers prove the upstream is alive.
type ProtectedService struct {
	inner Service
	cfg   ProtectedConfig
	now   func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
	halfOpenGen         uint64
}

func NewProtected(inner Service, cfg ProtectedConfig) *ProtectedService {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedService{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

func (p *ProtectedService) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *ProtectedService) ListUsers(ctx context.Context) ([]user.Record, error) {
	adm, ok := p.allowRequest()
	if !ok {
		return nil, ErrCircuitOpen
	}
	recs, err := p.inner.ListUsers(ctx)
	p.afterRequest(ctx, adm, err)
	return recs, err
}

func (p *ProtectedService) GetUser(ctx context.Context, id int64) (user.Record, error) {
	adm, ok := p.allowRequest()
	if !ok {
		return user.Record{}, ErrCircuitOpen
	}
	rec, err := p.inner.GetUser(ctx, id)
	p.afterRequest(ctx, adm, err)
	return rec, err
}

func (p *ProtectedService) CreateUser(ctx context.Context, rec user.Record) (user.Record, error) {
	adm, ok := p.allowRequest()
	if !ok {
		return user.Record{}, ErrCircuitOpen
	}
	out, err := p.inner.CreateUser(ctx, rec)
	p.afterRequest(ctx, adm, err)
	return out, err
}

func (p *ProtectedService) UpdateUser(ctx context.Context, rec user.Record) (user.Record, error) {
	if _, ok := rec.ID(); !ok {
		return user.Record{}, phoenix.ErrMissingID
	}
	adm, ok := p.allowRequest()
	if !ok {
		return user.Record{}, ErrCircuitOpen
	}
	out, err := p.inner.UpdateUser(ctx, rec)
	p.afterRequest(ctx, adm, err)
	return out, err
}

func (p *ProtectedService) DeleteUser(ctx context.Context, id int64) error {
	adm, ok := p.allowRequest()
	if !ok {
		return ErrCircuitOpen
	}
	err := p.inner.DeleteUser(ctx, id)
	p.afterRequest(ctx, adm, err)
	return err
}

// admission records how a call was let through. Only half-open trials
// decide whether the circuit closes again.
type admission struct {
	trial bool
	gen   uint64
}

func (p *ProtectedService) allowRequest() (admission, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateOpen:
		if p.now().Sub(p.openedAt) < p.cfg.Cooldown {
			return admission{}, false
		}
		p.setState(StateHalfOpen)
		p.halfOpenGen++
		p.halfOpenInFlight = 1
		return admission{trial: true, gen: p.halfOpenGen}, true
	case StateHalfOpen:
		if p.halfOpenInFlight >= p.cfg.HalfOpenMaxCalls {
			return admission{}, false
		}
		p.halfOpenInFlight++
		return admission{trial: true, gen: p.halfOpenGen}, true
	default:
		return admission{}, true
	}
}

func (p *ProtectedService) afterRequest(ctx context.Context, adm admission, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := adm.trial && p.state == StateHalfOpen && adm.gen == p.halfOpenGen
	if current && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}

	// a caller that gave up says nothing about upstream health
	if err != nil && ctx.Err() != nil {
		return
	}

	if adm.trial {
		if !current {
			return
		}
		if upstreamFailure(err) {
			p.open()
			return
		}
		p.consecutiveFailures = 0
		p.setState(StateClosed)
		return
	}

	// calls admitted while closed only count while the circuit is still closed
	if p.state != StateClosed {
		return
	}
	if !upstreamFailure(err) {
		p.consecutiveFailures = 0
		return
	}
	p.consecutiveFailures++
	if p.consecutiveFailures >= p.cfg.FailureThreshold {
		p.open()
	}
}

// open must be called with p.mu held.
func (p *ProtectedService) open() {
	p.setState(StateOpen)
	p.openedAt = p.now()
}

// setState must be called with p.mu held.
func (p *ProtectedService) setState(to State) {
	from := p.state
	if from == to {
		return
	}
	p.state = to
	if p.cfg.OnStateChange != nil {
		p.cfg.OnStateChange(from, to)
	}
}

func upstreamFailure(err error) bool {
	return err != nil && errors.Is(err, phoenix.ErrConnection)
}
