package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/auth"
	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/handlers"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/middleware"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/tracing"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/SAP-F-2025/exam-service/pkg"
	"github.com/gin-gonic/gin"
)

// App owns every long-lived dependency of the service.
type App struct {
	Config    *config.Config
	Logger    utils.Logger
	Services  services.ServiceManager
	Validator *validator.Validator

	closers []func() error
}

// New connects storage, cache and the event publisher and builds the
// services. Without DATABASE_URL the in-memory store is used; without
// REDIS_URL leaderboards are always computed from the store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := utils.NewLogger(cfg.Environment, cfg.LogFile)
	slogger := utils.ToSlogLogger(logger)
	a := &App{Config: cfg, Logger: logger, Validator: validator.New()}

	repo, err := a.initRepository()
	if err != nil {
		a.Close()
		return nil, err
	}

	cacheStore := cache.NewNoopCache()
	if cfg.RedisURL != "" {
		client, err := pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		cacheStore = cache.NewRedisCache(client, logger)
	}

	publisher, err := cfg.Events.CreateEventPublisher(ctx, slogger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)

	a.Services = services.NewServiceManager(services.Dependencies{
		Repo:      repo,
		Publisher: publisher,
		Cache:     cacheStore,
		Logger:    slogger,
		Validator: a.Validator,
	})
	return a, nil
}

func (a *App) initRepository() (repositories.Repository, error) {
	if a.Config.DatabaseURL == "" {
		a.Logger.Warn("DATABASE_URL not set, using in-memory store")
		return memory.NewRepository(memory.Open()), nil
	}

	db, err := pkg.InitDatabase(a.Config)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)

	if err := pkg.Migrate(db); err != nil {
		return nil, err
	}
	return postgres.NewRepository(db), nil
}

// IdentityProvider picks casdoor or the shared-secret JWT provider.
func (a *App) IdentityProvider() auth.IdentityProvider {
	if a.Config.Auth.Provider == "casdoor" {
		return auth.NewCasdoorProvider(auth.CasdoorConfig{
			Endpoint:     a.Config.Auth.CasdoorURL,
			ClientID:     a.Config.Auth.ClientID,
			ClientSecret: a.Config.Auth.ClientSecret,
			Certificate:  a.Config.Auth.Certificate,
			Organization: a.Config.Auth.Organization,
			Application:  a.Config.Auth.AppName,
		})
	}
	return auth.NewJWTProvider(a.Config.JWTSecret)
}

// Router builds the gin engine with the middleware chain and all routes.
func (a *App) Router() *gin.Engine {
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(a.Logger))
	router.Use(utils.LoggerMiddleware(a.Logger))
	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}
	router.Use(metrics.MetricsMiddleware())
	router.Use(middleware.RateLimiter(a.Config.RateLimit.MaxRequests, a.Config.RateLimit.Window()))

	handlers.NewHandlerManager(a.Services, a.Validator, a.Logger).
		SetupRoutes(router, auth.Middleware(a.IdentityProvider()))
	return router
}

// Run serves HTTP until SIGINT or SIGTERM, sweeping expired attempts in the
// background when an interval is configured.
func (a *App) Run() error {
	metrics.Init()

	if a.Config.Tracing.Enabled {
		tp, err := tracing.InitTracer(a.Config.Tracing.ServiceName, a.Config.Tracing.CollectorEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
		a.closers = append(a.closers, func() error { return tp.Shutdown(context.Background()) })
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if interval := a.Config.Sweep.Interval(); interval > 0 {
		go a.sweepLoop(ctx, interval)
	}

	srv := &http.Server{
		Addr:         ":" + a.Config.Port,
		Handler:      a.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
		a.Logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.Logger.Info("HTTP server stopped")
	return nil
}

func (a *App) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := a.Services.Attempt().SweepExpired(ctx, now, a.Config.Sweep.BatchSize); err != nil && ctx.Err() == nil {
				a.Logger.Error("Expiry sweep failed", "error", err)
			}
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

// Exit logs err and terminates the process with status 1.
func Exit(logger utils.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
