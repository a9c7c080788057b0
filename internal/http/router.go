package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/brucki/mg-test/internal/config"
	"github.com/brucki/mg-test/internal/http/handlers"
	"github.com/brucki/mg-test/internal/http/middlewares"
	"github.com/brucki/mg-test/internal/observability"
	"github.com/brucki/mg-test/internal/users"
)

const maxBodyBytes = 64 << 10

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Users    users.Service
	Health   *handlers.HealthHandler
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health
	h := deps.Health
	if h == nil {
		h = handlers.NewHealthHandler(nil, nil)
	}
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// users API
	api := r.Group("/api")
	if cfg.RateLimitPerMinute > 0 {
		api.Use(middlewares.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware())
	}
	api.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	api.Use(middlewares.RequireJSON())

	usersHandler := handlers.NewUsersHandler(deps.Users)
	api.GET("/users", usersHandler.ListUsers)
	api.POST("/users", usersHandler.CreateUser)
	api.GET("/users/:id", usersHandler.GetUser)
	api.PUT("/users/:id", usersHandler.UpdateUser)
	api.DELETE("/users/:id", usersHandler.DeleteUser)

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Route not found")
	})

	return r
}
