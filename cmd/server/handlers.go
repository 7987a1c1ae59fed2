package main

import (
	"github.com/webscanio/api/internal/infra/http/handler"
	"github.com/webscanio/api/internal/infra/http/routes"
	"github.com/webscanio/api/internal/infra/postgres"
	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/internal/infra/websocket"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/validator"
)

// HandlerDeps contains dependencies needed to create handlers.
type HandlerDeps struct {
	Log          *logger.Logger
	Validator    *validator.Validator
	DB           *postgres.DB
	RedisClient  *redis.Client
	WebSocketHub *websocket.Hub
	Services     *Services
}

// NewHandlers creates all HTTP handlers.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	log := deps.Log
	v := deps.Validator
	svc := deps.Services

	return routes.Handlers{
		Health: handler.NewHealthHandler(
			handler.WithDependency("database", deps.DB),
			handler.WithDependency("redis", deps.RedisClient),
		),

		Auth:   handler.NewAuthHandler(svc.Auth, v, log),
		Scan:   handler.NewScanHandler(svc.Scan, v, log),
		Report: handler.NewReportHandler(svc.Report, svc.Analytics, v, log),

		// Real-time scan status stream
		WebSocket: websocket.NewHandler(deps.WebSocketHub, log),
	}
}
