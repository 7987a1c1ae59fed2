package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/pkg/domain/report"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

const (
	analyticsCachePrefix = "analytics"
	analyticsCacheTTL    = time.Minute
	analyticsTopN        = 5
	analyticsRecentSpan  = 7 * 24 * time.Hour
)

// ScanAnalytics aggregates the caller's scan activity.
type ScanAnalytics struct {
	Total            int64                 `json:"total"`
	ByStatus         map[scan.Status]int64 `json:"byStatus"`
	TopDomains       []scan.DomainCount    `json:"topDomains"`
	CreatedLast7Days int64                 `json:"createdLast7Days"`
}

// ReportAnalytics aggregates the caller's report activity.
type ReportAnalytics struct {
	Total            int64                     `json:"total"`
	BySeverity       map[report.Severity]int64 `json:"bySeverity"`
	TopScans         []report.ScanCount        `json:"topScans"`
	CreatedLast7Days int64                     `json:"createdLast7Days"`
}

// AnalyticsResult is the full analytics view for one owner.
type AnalyticsResult struct {
	Scans       ScanAnalytics   `json:"scans"`
	Reports     ReportAnalytics `json:"reports"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// AnalyticsService computes per-owner aggregates over scans and
// reports. Results are cached briefly, so the view may lag writes by up
// to the cache TTL.
type AnalyticsService struct {
	scanRepo   scan.Repository
	reportRepo report.Repository
	cache      *redis.Cache[AnalyticsResult]
	logger     *logger.Logger
}

// NewAnalyticsService creates a new AnalyticsService. A nil redis
// client disables caching.
func NewAnalyticsService(
	scanRepo scan.Repository,
	reportRepo report.Repository,
	redisClient *redis.Client,
	log *logger.Logger,
) (*AnalyticsService, error) {
	var cache *redis.Cache[AnalyticsResult]
	if redisClient != nil {
		c, err := redis.NewCache[AnalyticsResult](redisClient, analyticsCachePrefix, analyticsCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create analytics cache: %w", err)
		}
		cache = c
	}

	return &AnalyticsService{
		scanRepo:   scanRepo,
		reportRepo: reportRepo,
		cache:      cache,
		logger:     log.With("service", "analytics"),
	}, nil
}

// GetAnalytics returns the caller's analytics view. The independent
// aggregates are fetched concurrently; any single failure fails the
// whole request.
func (s *AnalyticsService) GetAnalytics(ctx context.Context, callerID shared.ID) (*AnalyticsResult, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, callerID.String())
		if err == nil && cached != nil {
			s.logger.Debug("analytics cache hit", "owner_id", callerID.String())
			return cached, nil
		}
	}

	result, err := s.compute(ctx, callerID)
	if err != nil {
		s.logger.Error("failed to compute analytics",
			"owner_id", callerID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to compute analytics: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, callerID.String(), *result); err != nil {
			s.logger.Warn("failed to cache analytics",
				"owner_id", callerID.String(),
				"error", err,
			)
		}
	}

	return result, nil
}

func (s *AnalyticsService) compute(ctx context.Context, ownerID shared.ID) (*AnalyticsResult, error) {
	since := time.Now().UTC().Add(-analyticsRecentSpan)

	var (
		scanStats    *scan.Stats
		topDomains   []scan.DomainCount
		recentScans  int64
		bySeverity   map[report.Severity]int64
		topScans     []report.ScanCount
		recentReport int64
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := s.scanRepo.GetStats(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("scan stats: %w", err)
		}
		scanStats = stats
		return nil
	})

	g.Go(func() error {
		domains, err := s.scanRepo.TopDomains(gctx, ownerID, analyticsTopN)
		if err != nil {
			return fmt.Errorf("top domains: %w", err)
		}
		topDomains = domains
		return nil
	})

	g.Go(func() error {
		count, err := s.scanRepo.CountCreatedSince(gctx, ownerID, since)
		if err != nil {
			return fmt.Errorf("recent scans: %w", err)
		}
		recentScans = count
		return nil
	})

	g.Go(func() error {
		counts, err := s.reportRepo.CountBySeverity(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("severity counts: %w", err)
		}
		bySeverity = counts
		return nil
	})

	g.Go(func() error {
		scans, err := s.reportRepo.TopScans(gctx, ownerID, analyticsTopN)
		if err != nil {
			return fmt.Errorf("top scans: %w", err)
		}
		topScans = scans
		return nil
	})

	g.Go(func() error {
		count, err := s.reportRepo.CountCreatedSince(gctx, ownerID, since)
		if err != nil {
			return fmt.Errorf("recent reports: %w", err)
		}
		recentReport = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var reportTotal int64
	for _, count := range bySeverity {
		reportTotal += count
	}

	return &AnalyticsResult{
		Scans: ScanAnalytics{
			Total:            scanStats.Total,
			ByStatus:         scanStats.ByStatus,
			TopDomains:       topDomains,
			CreatedLast7Days: recentScans,
		},
		Reports: ReportAnalytics{
			Total:            reportTotal,
			BySeverity:       bySeverity,
			TopScans:         topScans,
			CreatedLast7Days: recentReport,
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}
