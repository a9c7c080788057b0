package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/brucki/mg-test/internal/cache"
	"github.com/brucki/mg-test/internal/config"
	httpx "github.com/brucki/mg-test/internal/http"
	"github.com/brucki/mg-test/internal/http/handlers"
	"github.com/brucki/mg-test/internal/observability"
	"github.com/brucki/mg-test/internal/phoenix"
	"github.com/brucki/mg-test/internal/users"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env, cfg.ServiceName)
	slog.SetDefault(log)

	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	client, err := phoenix.New(phoenix.Config{
		BaseURL:           cfg.PhoenixBaseURL,
		Timeout:           cfg.PhoenixTimeout,
		MaxRetryAttempts:  cfg.PhoenixRetryAttempts,
		RetryServerErrors: cfg.PhoenixRetryServerErrors,
		UserAgent:         cfg.ServiceName,
	},
		phoenix.WithLogger(log),
		phoenix.WithRecorder(prom),
	)
	if err != nil {
		log.Error("phoenix client init failed", "err", err)
		os.Exit(1)
	}

	var store cache.Store
	var memStore *cache.MemoryStore
	var redisStore *cache.RedisStore
	switch {
	case cfg.CacheTTL <= 0:
	case cfg.RedisAddr != "":
		redisStore = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.ServiceName + ":",
		})
		store = redisStore
	default:
		memStore = cache.NewMemory()
		store = memStore
	}

	// cache(breaker(client))
	svc, breaker := users.Stack(client, users.StackConfig{
		Store: store,
		Cached: users.CachedConfig{
			TTL:      cfg.CacheTTL,
			OnLookup: prom.ObserveCacheLookup,
		},
		Protected: users.ProtectedConfig{
			FailureThreshold: cfg.CircuitFailureThreshold,
			Cooldown:         cfg.CircuitCooldown,
			OnStateChange: func(from, to users.State) {
				prom.SetCircuitState(string(to))
				log.Warn("circuit breaker state changed", "from", from, "to", to)
			},
		},
	}, log)

	health := handlers.NewHealthHandler(nil, func() gin.H {
		info := gin.H{"upstream": prom.Stats.Snapshot()}
		if breaker != nil {
			info["circuit"] = breaker.State()
		}
		if memStore != nil {
			info["cache_entries"] = memStore.Len()
		}
		return info
	})
	if redisStore != nil {
		// cache failures degrade to misses, so redis never fails readiness
		health.AddInformational("redis", redisStore.Ping)
	}

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Users:    svc,
		Health:   health,
		Prom:     prom,
		Gatherer: reg,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// upstream calls may retry: attempts x timeout plus backoff
		WriteTimeout: client.CallBudget() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting",
			"port", cfg.Port,
			"env", cfg.Env,
			"phoenix_base_url", client.BaseURL(),
			"cache_ttl", cfg.CacheTTL.String(),
			"redis", cfg.RedisAddr != "",
		)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")
	health.SetShuttingDown()

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
		if redisStore != nil {
			if err := redisStore.Close(); err != nil {
				log.Error("redis close failed", "err", err)
			}
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
