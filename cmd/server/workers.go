package main

import (
	"fmt"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/internal/infra/jobs"
	"github.com/webscanio/api/internal/infra/scheduler"
	"github.com/webscanio/api/pkg/logger"
)

// Workers holds all background worker instances.
type Workers struct {
	JobWorker *jobs.Worker
	Watchdog  *scheduler.Watchdog
}

// WorkerDeps contains dependencies needed to create workers.
type WorkerDeps struct {
	Config     *config.Config
	Log        *logger.Logger
	Repos      *Repositories
	ScanEvents app.ScanEventPublisher
}

// NewWorkers initializes all background workers.
func NewWorkers(deps *WorkerDeps) (*Workers, error) {
	cfg := deps.Config
	log := deps.Log

	// The engine runs the actual website checks; the worker feeds it
	// tasks from the scan queue.
	engine := jobs.NewEngine(deps.Repos.Scan, deps.ScanEvents, cfg.Scan, log)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Jobs.Concurrency,
		Queue:         cfg.Jobs.Queue,
	}, engine, log)
	if err != nil {
		return nil, fmt.Errorf("job worker: %w", err)
	}

	watchdog := scheduler.NewWatchdog(deps.Repos.Scan, deps.ScanEvents, cfg.Scan, log)
	log.Info("scan watchdog initialized",
		"interval", cfg.Scan.WatchdogInterval,
		"stale_after", cfg.Scan.StaleAfter,
	)

	return &Workers{
		JobWorker: worker,
		Watchdog:  watchdog,
	}, nil
}

// Start starts all background workers.
func (w *Workers) Start(log *logger.Logger) error {
	go func() {
		if err := w.JobWorker.Start(); err != nil {
			log.Error("job worker error", "error", err)
		}
	}()

	if err := w.Watchdog.Start(); err != nil {
		w.JobWorker.Stop()
		return fmt.Errorf("scan watchdog: %w", err)
	}

	return nil
}

// Stop stops all background workers gracefully. The watchdog goes first
// so a scan draining in the worker cannot be marked stale mid-flight.
func (w *Workers) Stop(log *logger.Logger) {
	log.Info("stopping scan watchdog...")
	w.Watchdog.Stop()
	log.Info("scan watchdog stopped")

	log.Info("stopping job worker...")
	w.JobWorker.Stop()
	log.Info("job worker stopped")
}
