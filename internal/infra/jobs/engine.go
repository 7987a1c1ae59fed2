package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

// cancelPollInterval is how often a running scan re-reads its record to
// notice a cancellation issued through the API.
const cancelPollInterval = 2 * time.Second

// errScanInterrupted marks a run stopped because the scan was cancelled
// or deleted out from under the engine. Not a task failure.
var errScanInterrupted = errors.New("scan interrupted")

// Engine executes scans. It is the only writer of the in_progress,
// completed and failed states; every status write is guarded on the
// stored status so a cancellation issued through the API always wins.
type Engine struct {
	scanRepo   scan.Repository
	events     app.ScanEventPublisher
	httpClient *http.Client
	userAgent  string
	logger     *logger.Logger
}

// NewEngine creates a scan engine with an HTTP client bounded by the
// configured per-check timeout and redirect limit.
func NewEngine(
	scanRepo scan.Repository,
	events app.ScanEventPublisher,
	cfg config.ScanConfig,
	log *logger.Logger,
) *Engine {
	client := &http.Client{
		Timeout: cfg.CheckTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}

	return &Engine{
		scanRepo:   scanRepo,
		events:     events,
		httpClient: client,
		userAgent:  cfg.UserAgent,
		logger:     log.With("component", "scan_engine"),
	}
}

// ProcessScan loads the scan, runs its checks and records the outcome.
// Safe to retry: terminal scans are left alone, and a scan already
// in_progress from a crashed attempt is resumed.
func (e *Engine) ProcessScan(ctx context.Context, scanID shared.ID) error {
	sc, err := e.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		if shared.IsNotFound(err) {
			e.logger.Info("scan deleted before execution", "scan_id", scanID.String())
			return nil
		}
		return fmt.Errorf("load scan: %w", err)
	}

	if sc.IsTerminal() {
		e.logger.Info("scan already settled",
			"scan_id", scanID.String(),
			"status", string(sc.Status),
		)
		return nil
	}

	if sc.Status == scan.StatusPending {
		if err := sc.Start(); err != nil {
			return err
		}
		updated, err := e.scanRepo.UpdateIfStatus(ctx, sc, scan.StatusPending)
		if err != nil {
			return fmt.Errorf("start scan: %w", err)
		}
		if !updated {
			e.logger.Info("scan withdrawn before start", "scan_id", scanID.String())
			return nil
		}
		e.publish(ctx, sc)
	}

	vulns, runErr := e.runChecks(ctx, sc)

	if errors.Is(runErr, errScanInterrupted) {
		e.logger.Info("scan interrupted, dropping partial results", "scan_id", scanID.String())
		return nil
	}
	if ctx.Err() != nil {
		// Worker shutdown; leave in_progress for the retry or watchdog.
		return ctx.Err()
	}

	if runErr != nil {
		if err := sc.Fail(runErr.Error()); err != nil {
			return err
		}
	} else {
		if err := sc.Complete(vulns); err != nil {
			return err
		}
	}

	updated, err := e.scanRepo.UpdateIfStatus(ctx, sc, scan.StatusInProgress)
	if err != nil {
		return fmt.Errorf("record scan result: %w", err)
	}
	if !updated {
		// Cancelled while the checks ran; the cancellation wins.
		e.logger.Info("scan cancelled during execution, dropping results", "scan_id", scanID.String())
		return nil
	}

	e.publish(ctx, sc)

	metrics.ScansFinishedTotal.WithLabelValues(string(sc.Status)).Inc()
	if sc.StartedAt != nil && sc.CompletedAt != nil {
		metrics.ScanDuration.WithLabelValues(string(sc.Status)).Observe(sc.CompletedAt.Sub(*sc.StartedAt).Seconds())
	}
	for _, v := range sc.Vulnerabilities {
		metrics.ScanVulnerabilitiesTotal.WithLabelValues(v.Severity).Inc()
	}

	e.logger.Info("scan finished",
		"scan_id", scanID.String(),
		"status", string(sc.Status),
		"vulnerabilities", len(sc.Vulnerabilities),
	)

	return nil
}

// runChecks runs the scan's enabled checks concurrently and returns the
// findings in canonical check order.
func (e *Engine) runChecks(ctx context.Context, sc *scan.Scan) ([]scan.Vulnerability, error) {
	target, err := url.Parse(sc.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid target url: %w", err)
	}

	runCtx, interrupt := context.WithCancelCause(ctx)
	defer interrupt(nil)

	go e.watchCancellation(runCtx, sc.ID, interrupt)

	var (
		mu      sync.Mutex
		done    int
		results = make([][]scan.Vulnerability, len(sc.Types))
	)

	g, gctx := errgroup.WithContext(runCtx)
	for i, ct := range sc.Types {
		g.Go(func() error {
			found, err := e.runCheck(gctx, ct, target)
			if err != nil {
				return fmt.Errorf("%s check: %w", ct, err)
			}
			results[i] = found

			mu.Lock()
			done++
			e.recordProgress(ctx, sc, done, len(sc.Types), interrupt)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(context.Cause(runCtx), errScanInterrupted) {
			return nil, errScanInterrupted
		}
		return nil, err
	}

	var vulns []scan.Vulnerability
	for _, found := range results {
		vulns = append(vulns, found...)
	}
	return vulns, nil
}

// recordProgress persists and publishes check completion. The guarded
// write doubles as a status re-read: if the scan is no longer
// in_progress the run is interrupted. Callers hold the progress lock.
func (e *Engine) recordProgress(ctx context.Context, sc *scan.Scan, done, total int, interrupt context.CancelCauseFunc) {
	if done >= total {
		// The final status write reports 100.
		return
	}

	pct := done * 100 / total
	if pct <= sc.Progress {
		return
	}
	if err := sc.SetProgress(pct); err != nil {
		return
	}

	updated, err := e.scanRepo.UpdateIfStatus(ctx, sc, scan.StatusInProgress)
	if err != nil {
		e.logger.Warn("failed to record scan progress",
			"scan_id", sc.ID.String(),
			"error", err,
		)
		return
	}
	if !updated {
		interrupt(errScanInterrupted)
		return
	}

	e.publish(ctx, sc)
}

// watchCancellation polls the stored status so a long-running check
// notices a cancellation without waiting for its own timeout.
func (e *Engine) watchCancellation(ctx context.Context, scanID shared.ID, interrupt context.CancelCauseFunc) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := e.scanRepo.GetByID(ctx, scanID)
			if err != nil {
				if shared.IsNotFound(err) {
					interrupt(errScanInterrupted)
					return
				}
				e.logger.Warn("cancellation watch read failed",
					"scan_id", scanID.String(),
					"error", err,
				)
				continue
			}
			if current.Status != scan.StatusInProgress {
				interrupt(errScanInterrupted)
				return
			}
		}
	}
}

func (e *Engine) publish(ctx context.Context, sc *scan.Scan) {
	if err := e.events.PublishStatus(ctx, sc); err != nil {
		e.logger.Warn("failed to publish scan status",
			"scan_id", sc.ID.String(),
			"status", string(sc.Status),
			"error", err,
		)
	}
}
