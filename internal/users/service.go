// Package users composes the Phoenix client with the gateway's read cache
// and circuit breaker. Every layer implements Service.
package users

import (
	"context"
	"log/slog"

	"github.com/brucki/mg-test/internal/cache"
	"github.com/brucki/mg-test/internal/domain/user"
)

// Service is the five user operations. *phoenix.Client implements it.
type Service interface {
	ListUsers(ctx context.Context) ([]user.Record, error)
	GetUser(ctx context.Context, id int64) (user.Record, error)
	CreateUser(ctx context.Context, rec user.Record) (user.Record, error)
	UpdateUser(ctx context.Context, rec user.Record) (user.Record, error)
	DeleteUser(ctx context.Context, id int64) error
}

type StackConfig struct {
	// Store enables the read cache when non-nil and Cached.TTL > 0.
	Store  cache.Store
	Cached CachedConfig
	// Protected.FailureThreshold > 0 enables the circuit breaker.
	Protected ProtectedConfig
}

// Stack wraps base as cache(breaker(base)): cache hits are served while the
// circuit is open. The breaker is returned for state reporting and is nil
// when disabled.
func Stack(base Service, cfg StackConfig, log *slog.Logger) (Service, *ProtectedService) {
	svc := base

	var breaker *ProtectedService
	if cfg.Protected.FailureThreshold > 0 {
		breaker = NewProtected(svc, cfg.Protected)
		svc = breaker
	}
	if cfg.Store != nil && cfg.Cached.TTL > 0 {
		svc = NewCached(svc, cfg.Store, cfg.Cached, log)
	}
	return svc, breaker
}
