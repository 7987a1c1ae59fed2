package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/internal/infra/http"
	"github.com/webscanio/api/internal/infra/http/middleware"
	"github.com/webscanio/api/internal/infra/http/routes"
	"github.com/webscanio/api/internal/infra/jobs"
	"github.com/webscanio/api/internal/infra/postgres"
	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/internal/infra/websocket"
	"github.com/webscanio/api/internal/observability"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/validator"
)

// @title           WebScan API
// @version         1.0
// @description     Website security scanning service API

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

// Command line flags.
var (
	showRoutes  = flag.Bool("routes", false, "Print all registered routes and exit")
	routeFormat = flag.String("route-format", "table", "Route output format: table, json, csv, simple")
	routeMethod = flag.String("route-method", "", "Filter routes by HTTP method")
	routePath   = flag.String("route-path", "", "Filter routes containing this path")
	routeSort   = flag.String("route-sort", "path", "Sort routes by: path, method, handler")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Tracing
	// ==========================================================================
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("failed to shut down tracing", "error", err)
		}
	}()
	if cfg.Tracing.Enabled {
		log.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint, "sample_rate", cfg.Tracing.SampleRate)
	}

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	tokenStore, err := redis.NewTokenStore(redisClient, log)
	if err != nil {
		log.Error("failed to initialize token store", "error", err)
		return 1
	}

	// The admitter stays nil when rate limiting is off; routes.Register
	// skips the admission middleware in that case.
	var admitter middleware.Admitter
	if cfg.RateLimit.Enabled {
		limiter, err := redis.NewRateLimiter(redisClient, "ratelimit", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, log)
		if err != nil {
			log.Error("failed to initialize rate limiter", "error", err)
			return 1
		}
		admitter = limiter
		log.Info("rate limiter initialized",
			"max_requests", cfg.RateLimit.MaxRequests,
			"window", cfg.RateLimit.Window,
		)
	}

	stateStore := redis.NewScanStateStore(redisClient, log)

	eventBus := redis.NewScanEventBus(redisClient, cfg.Scan.EventChannel, log)
	if err := eventBus.StartListener(ctx); err != nil {
		log.Error("failed to start scan event listener", "error", err)
		return 1
	}
	log.Info("scan event bus initialized", "channel", cfg.Scan.EventChannel)

	// ==========================================================================
	// Job Queue
	// ==========================================================================
	jobClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Queue:         cfg.Jobs.Queue,
		MaxRetry:      cfg.Jobs.MaxRetry,
		Timeout:       cfg.Jobs.TaskTimeout,
	}, log)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		return 1
	}
	defer closeWithLog(jobClient, "job client", log)

	scanQueue := jobs.NewScanQueueAdapter(jobClient, stateStore)
	scanEvents := jobs.NewScanEventRecorder(eventBus, stateStore)

	// ==========================================================================
	// Repositories
	// ==========================================================================
	repos := NewRepositories(db)
	log.Info("repositories initialized")

	// ==========================================================================
	// Services
	// ==========================================================================
	notifier, err := newReportNotifier(cfg, log)
	if err != nil {
		log.Error("failed to initialize report notifier", "error", err)
		return 1
	}

	exporter, err := newReportExporter(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize report exporter", "error", err)
		return 1
	}

	services, err := NewServices(&ServiceDeps{
		Config:      cfg,
		Log:         log,
		Repos:       repos,
		RedisClient: redisClient,
		TokenStore:  tokenStore,
		ScanQueue:   scanQueue,
		ScanEvents:  scanEvents,
		Notifier:    notifier,
		Exporter:    exporter,
	})
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		return 1
	}
	log.Info("services initialized")

	// ==========================================================================
	// WebSocket Hub
	// ==========================================================================
	// Create cancellable context for graceful shutdown
	wsCtx, wsCancel := context.WithCancel(ctx)
	defer wsCancel()

	hub := websocket.NewHub(eventBus, services.Scan, log)
	go hub.Run(wsCtx)
	log.Info("websocket hub started")

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	v := validator.New()
	handlers := NewHandlers(&HandlerDeps{
		Log:          log,
		Validator:    v,
		DB:           db,
		RedisClient:  redisClient,
		WebSocketHub: hub,
		Services:     services,
	})

	authCfg := routes.AuthConfig{
		Validator: services.JWTGenerator,
		Users:     repos.User,
	}

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), handlers, cfg, log, authCfg, admitter)

	// Handle --routes flag
	if *showRoutes {
		stats := http.CollectRoutes(server.Router())
		filters := http.RouteFilters{
			Method: *routeMethod,
			Path:   *routePath,
			SortBy: *routeSort,
		}
		http.PrintRoutes(os.Stdout, stats, *routeFormat, filters)
		return 0
	}

	// ==========================================================================
	// Workers
	// ==========================================================================
	workers, err := NewWorkers(&WorkerDeps{
		Config:     cfg,
		Log:        log,
		Repos:      repos,
		ScanEvents: scanEvents,
	})
	if err != nil {
		log.Error("failed to initialize workers", "error", err)
		return 1
	}

	if err := workers.Start(log); err != nil {
		log.Error("failed to start workers", "error", err)
		return 1
	}

	// ==========================================================================
	// Start Server
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop WebSocket hub first (closes all connections)
	wsCancel()
	log.Info("websocket hub stopped")

	// Stop workers
	workers.Stop(log)

	// Then stop server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// =============================================================================
// Helper Functions
// =============================================================================

func initLogger(cfg *config.Config) *logger.Logger {
	var log *logger.Logger
	if cfg.App.Env == "production" {
		// SamplingThreshold is validated to be non-negative in config validation
		//nolint:gosec // G115: safe conversion, value validated non-negative in config.Validate()
		threshold := uint64(cfg.Log.SamplingThreshold)
		log = logger.NewProductionWithConfig(logger.SamplingConfig{
			Enabled:   cfg.Log.SamplingEnabled,
			Tick:      time.Second,
			Threshold: threshold,
			Rate:      cfg.Log.SamplingRate,
			ErrorRate: cfg.Log.ErrorSamplingRate,
		})
	} else {
		log = logger.NewDevelopment()
	}
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
