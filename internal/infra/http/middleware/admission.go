package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/apierror"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

// Admitter is the slice of the distributed rate limiter the admission gate
// consumes. *redis.RateLimiter satisfies it.
type Admitter interface {
	Allow(ctx context.Context, key string) (*redis.RateLimitResult, error)
	Limit() int
}

// Admission returns the admission-control middleware. Every request
// consumes one slot from a fixed-window counter keyed by client IP,
// method, and path, so distinct endpoints deplete independent budgets and
// one noisy endpoint cannot starve the rest.
//
// The gate is fail-closed: when the counter store is unreachable the
// request is refused with a 500, never waved through unmetered. That
// outage response is deliberately distinct from the 429 a spent budget
// produces.
func Admission(limiter Admitter, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r) + ":" + r.Method + ":" + r.URL.Path

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.WithContext(r.Context()).Error("admission counter unavailable",
					"key", key,
					"error", err,
				)
				metrics.AdmissionDecisionsTotal.WithLabelValues("error").Inc()
				apierror.FromError(shared.RateLimiterUnavailable("Rate limit error", err)).WriteJSON(w)
				return
			}

			// Budget headers go on every response, allowed or not.
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(time.Until(result.RetryAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				metrics.AdmissionDecisionsTotal.WithLabelValues("limited").Inc()
				apierror.FromError(shared.RateLimited("Too many requests")).WriteJSON(w)
				return
			}

			metrics.AdmissionDecisionsTotal.WithLabelValues("allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}
