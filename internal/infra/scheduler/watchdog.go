// Package scheduler runs the periodic maintenance work of the scan
// pipeline.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/logger"
)

// sweepTimeout bounds one watchdog pass, listing included.
const sweepTimeout = 30 * time.Second

// staleBatchLimit caps how many scans one sweep repairs. A backlog larger
// than this drains over the following sweeps.
const staleBatchLimit = 100

// Watchdog fails scans stuck in_progress past the staleness deadline.
// A scan gets stuck when a worker dies between claiming it and recording
// a result; the guarded status write keeps the watchdog from touching
// scans the engine or a cancellation settled in the meantime.
type Watchdog struct {
	scanRepo   scan.Repository
	events     app.ScanEventPublisher
	interval   time.Duration
	staleAfter time.Duration
	cron       *cron.Cron
	logger     *logger.Logger
}

// NewWatchdog creates a Watchdog from the scan settings. Interval
// defaults to 5 minutes and the staleness deadline to 30 minutes.
func NewWatchdog(
	scanRepo scan.Repository,
	events app.ScanEventPublisher,
	cfg config.ScanConfig,
	log *logger.Logger,
) *Watchdog {
	interval := cfg.WatchdogInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}

	return &Watchdog{
		scanRepo:   scanRepo,
		events:     events,
		interval:   interval,
		staleAfter: staleAfter,
		cron:       cron.New(),
		logger:     log.With("component", "scan_watchdog"),
	}
}

// Start schedules the sweep and begins running it.
func (w *Watchdog) Start() error {
	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.interval), w.sweep); err != nil {
		return fmt.Errorf("schedule watchdog sweep: %w", err)
	}
	w.cron.Start()
	w.logger.Info("scan watchdog started",
		"interval", w.interval.String(),
		"stale_after", w.staleAfter.String(),
	)
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (w *Watchdog) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("scan watchdog stopped")
}

func (w *Watchdog) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.scanRepo.ListStaleInProgress(ctx, cutoff, staleBatchLimit)
	if err != nil {
		w.logger.Error("failed to list stale scans", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	w.logger.Info("found stale scans", "count", len(stale))

	for _, sc := range stale {
		w.failStale(ctx, sc)
	}
}

func (w *Watchdog) failStale(ctx context.Context, sc *scan.Scan) {
	if err := sc.Fail("Scan execution timed out"); err != nil {
		w.logger.Error("cannot fail stale scan",
			"scan_id", sc.ID.String(),
			"error", err,
		)
		return
	}

	updated, err := w.scanRepo.UpdateIfStatus(ctx, sc, scan.StatusInProgress)
	if err != nil {
		w.logger.Error("failed to update stale scan",
			"scan_id", sc.ID.String(),
			"error", err,
		)
		return
	}
	if !updated {
		// Finished or cancelled between the listing and the write.
		return
	}

	if err := w.events.PublishStatus(ctx, sc); err != nil {
		w.logger.Warn("failed to publish scan failed event",
			"scan_id", sc.ID.String(),
			"error", err,
		)
	}

	metrics.ScansStaleFailedTotal.Inc()
	metrics.ScansFinishedTotal.WithLabelValues(string(scan.StatusFailed)).Inc()

	w.logger.Info("stale scan failed",
		"scan_id", sc.ID.String(),
		"owner_id", sc.OwnerID.String(),
		"started_at", sc.StartedAt.UTC().Format(time.RFC3339),
	)
}
