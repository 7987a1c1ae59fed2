package main

import (
	"context"
	"fmt"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/internal/infra/export"
	"github.com/webscanio/api/internal/infra/notification"
	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/pkg/jwt"
	"github.com/webscanio/api/pkg/logger"
)

// Services holds all service instances.
type Services struct {
	Auth      *app.AuthService
	Scan      *app.ScanService
	Report    *app.ReportService
	Analytics *app.AnalyticsService

	// JWTGenerator verifies access tokens at the HTTP edge. It is built
	// from the same settings the auth service mints tokens with.
	JWTGenerator *jwt.Generator
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Repos       *Repositories
	RedisClient *redis.Client
	TokenStore  *redis.TokenStore
	ScanQueue   app.ScanQueue
	ScanEvents  app.ScanEventPublisher
	Notifier    app.ReportNotifier
	Exporter    app.ReportExporter
}

// NewServices creates all application services.
func NewServices(d *ServiceDeps) (*Services, error) {
	analytics, err := app.NewAnalyticsService(d.Repos.Scan, d.Repos.Report, d.RedisClient, d.Log)
	if err != nil {
		return nil, fmt.Errorf("analytics service: %w", err)
	}

	return &Services{
		Auth:      app.NewAuthService(d.Repos.User, d.TokenStore, d.Config.Auth, d.Log),
		Scan:      app.NewScanService(d.Repos.Scan, d.ScanQueue, d.ScanEvents, d.Log),
		Report:    app.NewReportService(d.Repos.Report, d.Repos.Scan, d.Notifier, d.Exporter, d.Log),
		Analytics: analytics,
		JWTGenerator: jwt.NewGenerator(jwt.TokenConfig{
			Secret:               d.Config.Auth.JWTSecret,
			Issuer:               d.Config.Auth.JWTIssuer,
			AccessTokenDuration:  d.Config.Auth.AccessTokenDuration,
			RefreshTokenDuration: d.Config.Auth.RefreshTokenDuration,
		}),
	}, nil
}

// newReportNotifier picks the SMTP mailer when it is configured and falls
// back to the log notifier so sharing keeps working in development.
func newReportNotifier(cfg *config.Config, log *logger.Logger) (app.ReportNotifier, error) {
	if !cfg.SMTP.IsConfigured() {
		log.Warn("smtp not configured - report shares are logged instead of mailed")
		return notification.NewLogNotifier(log), nil
	}

	mailer, err := notification.NewMailer(cfg.SMTP, log)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	log.Info("mailer initialized", "host", cfg.SMTP.Host, "from", cfg.SMTP.From)
	return mailer, nil
}

// newReportExporter builds the export pipeline against S3-compatible
// storage when enabled, local disk otherwise.
func newReportExporter(ctx context.Context, cfg *config.Config, log *logger.Logger) (app.ReportExporter, error) {
	var store export.ObjectStore

	if cfg.Export.S3Enabled {
		s3Store, err := export.NewS3Store(ctx, cfg.Export, log)
		if err != nil {
			return nil, fmt.Errorf("s3 export store: %w", err)
		}
		log.Info("export store initialized",
			"bucket", cfg.Export.S3Bucket,
			"region", cfg.Export.S3Region,
		)
		store = s3Store
	} else {
		fsStore, err := export.NewFSStore(cfg.Export.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("filesystem export store: %w", err)
		}
		log.Warn("export S3 disabled - artifacts are written to local disk")
		store = fsStore
	}

	return export.NewExporter(store, cfg.Export.S3Prefix, log), nil
}
