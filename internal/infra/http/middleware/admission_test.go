package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/pkg/logger"
)

type fakeAdmitter struct {
	limit   int
	result  *redis.RateLimitResult
	err     error
	lastKey string
	calls   int
}

func (f *fakeAdmitter) Allow(_ context.Context, key string) (*redis.RateLimitResult, error) {
	f.lastKey = key
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAdmitter) Limit() int { return f.limit }

func TestAdmission_AllowedRequestCarriesBudgetHeaders(t *testing.T) {
	resetAt := time.Now().Add(42 * time.Second)
	admitter := &fakeAdmitter{
		limit:  100,
		result: &redis.RateLimitResult{Allowed: true, Remaining: 57, ResetAt: resetAt},
	}

	called := false
	handler := Admission(admitter, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.RemoteAddr = "203.0.113.5:4444"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "57", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(resetAt.Unix(), 10), rec.Header().Get("X-RateLimit-Reset"))
}

func TestAdmission_KeyIsClientMethodPath(t *testing.T) {
	admitter := &fakeAdmitter{
		limit:  100,
		result: &redis.RateLimitResult{Allowed: true, Remaining: 99, ResetAt: time.Now().Add(time.Minute)},
	}
	handler := Admission(admitter, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	t.Run("remote addr fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", nil)
		req.RemoteAddr = "203.0.113.5:4444"
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "203.0.113.5:POST:/api/v1/scans", admitter.lastKey)
	})

	t.Run("x-real-ip wins over remote addr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.RemoteAddr = "10.0.0.1:9999"
		req.Header.Set("X-Real-IP", "198.51.100.7")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "198.51.100.7:GET:/api/v1/reports", admitter.lastKey)
	})

	t.Run("distinct endpoints get distinct keys", func(t *testing.T) {
		reqA := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
		reqA.RemoteAddr = "203.0.113.5:4444"
		handler.ServeHTTP(httptest.NewRecorder(), reqA)
		keyA := admitter.lastKey

		reqB := httptest.NewRequest(http.MethodDelete, "/api/v1/scans", nil)
		reqB.RemoteAddr = "203.0.113.5:4444"
		handler.ServeHTTP(httptest.NewRecorder(), reqB)

		assert.NotEqual(t, keyA, admitter.lastKey)
	})
}

func TestAdmission_SpentBudgetIs429(t *testing.T) {
	resetAt := time.Now().Add(30 * time.Second)
	admitter := &fakeAdmitter{
		limit: 100,
		result: &redis.RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   resetAt,
			RetryAt:   resetAt,
		},
	}

	handler := Admission(admitter, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run once the budget is spent")
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.RemoteAddr = "203.0.113.5:4444"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	_, message := decodeEnvelope(t, rec)
	assert.Equal(t, "Too many requests", message)
}

func TestAdmission_CounterOutageFailsClosed(t *testing.T) {
	admitter := &fakeAdmitter{limit: 100, err: errors.New("dial tcp: connection refused")}

	handler := Admission(admitter, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("an unmetered request must not pass during a counter outage")
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.RemoteAddr = "203.0.113.5:4444"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	// Outage is a 500, never conflated with the 429 a spent budget produces.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	_, message := decodeEnvelope(t, rec)
	assert.Equal(t, "Rate limit error", message)
}
