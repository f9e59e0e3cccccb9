package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventify-trnc/eventify/internal/auth"
	"github.com/eventify-trnc/eventify/internal/cache"
	"github.com/eventify-trnc/eventify/internal/config"
	"github.com/eventify-trnc/eventify/internal/domain/user"
	"github.com/eventify-trnc/eventify/internal/http/handlers"
	"github.com/eventify-trnc/eventify/internal/http/middlewares"
	"github.com/eventify-trnc/eventify/internal/jobs"
	"github.com/eventify-trnc/eventify/internal/ledger"
	"github.com/eventify-trnc/eventify/internal/observability"
	"github.com/eventify-trnc/eventify/internal/queue/redisclient"
	"github.com/eventify-trnc/eventify/internal/repo/postgres"
	"github.com/eventify-trnc/eventify/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter wires repositories, services and handlers onto one engine.
func NewRouter(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, queue *redisclient.Client) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	promRegistry := prometheus.NewRegistry()
	prom := observability.NewProm(promRegistry)

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("eventify-api"))
	r.Use(prom.GinHandleMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	// health
	pingDB := func(ctx context.Context) error {
		if pool == nil {
			return nil
		}
		return pool.Ping(ctx)
	}
	var pingRedis handlers.PingFunc
	if queue != nil {
		pingRedis = queue.Ping
	}

	healthHandler := handlers.NewHealthHandler(pingDB, pingRedis)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)

	// repositories
	eventsRepo := postgres.NewEventsRepo(pool, prom)
	ledgerStore := postgres.NewLedgerStore(pool, prom)
	usersRepo := postgres.NewUsersRepo(pool)
	refreshRepo := postgres.NewRefreshTokensRepo(pool)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	// services
	producer := jobs.NewProducer(jobsRepo, queue, log, postgres.IsUniqueViolation)
	eventsCache := cache.New(cfg.CacheTTL)
	eventsService := service.NewEventsService(eventsRepo, eventsCache)
	registrationsService := service.NewRegistrationsService(
		ledger.New(ledgerStore), usersRepo, eventsRepo, producer, eventsCache, log, prom)

	// handlers
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	authMW := middlewares.NewAuthMiddleware(jwtManager)

	eventsHandler := handlers.NewEventsHandler(eventsService)
	registrationsHandler := handlers.NewRegistrationsHandler(registrationsService)
	authHandler := handlers.NewAuthHandler(usersRepo, jwtManager, refreshRepo, cfg)

	authLimiter := middlewares.NewRateLimiter(10, time.Minute)
	registerLimiter := middlewares.NewRateLimiter(30, time.Minute)

	// auth
	authGroup := r.Group("/auth")
	authGroup.POST("/signup", authLimiter.Middleware(middlewares.KeyByIP), authHandler.SignUp)
	authGroup.POST("/login", authLimiter.Middleware(middlewares.KeyByIP), authHandler.Login)
	authGroup.POST("/refresh", authLimiter.Middleware(middlewares.KeyByIP), authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)

	// public event browsing
	r.GET("/events", eventsHandler.ListEvents)
	r.GET("/events/:id", eventsHandler.GetEventByID)

	// authenticated surface
	authed := r.Group("/", authMW.RequireAuth())
	authed.POST("/registrations",
		registerLimiter.Middleware(middlewares.KeyByUserOrIP), registrationsHandler.Register)
	authed.GET("/registrations", registrationsHandler.MyRegistrations)
	authed.PUT("/registrations/:id/cancel", registrationsHandler.Cancel)

	// admin surface
	admin := r.Group("/admin", authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	admin.POST("/events", eventsHandler.CreateEvent)
	admin.PUT("/events/:id", eventsHandler.UpdateEvent)
	admin.DELETE("/events/:id", eventsHandler.DeleteEvent)
	admin.GET("/events/:eventId/registrations", registrationsHandler.ListForEvent)

	return r
}
