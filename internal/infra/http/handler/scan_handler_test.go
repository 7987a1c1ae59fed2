package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/validator"
)

type scanHarness struct {
	repo   *memScanRepo
	queue  *fakeScanQueue
	events *fakeScanEvents
	caller shared.ID
	router http.Handler
}

func newScanHarness(t *testing.T) *scanHarness {
	t.Helper()
	log := logger.NewNop()

	h := &scanHarness{
		repo:   newMemScanRepo(),
		queue:  &fakeScanQueue{},
		events: &fakeScanEvents{},
		caller: shared.NewID(),
	}
	svc := app.NewScanService(h.repo, h.queue, h.events, log)
	handler := NewScanHandler(svc, validator.New(), log)

	r := chi.NewRouter()
	r.Use(asSubject(h.caller))
	r.Post("/scans", Wrap(log, handler.CreateScan))
	r.Get("/scans", Wrap(log, handler.ListScans))
	r.Get("/scans/{id}", Wrap(log, handler.GetScan))
	r.Patch("/scans/{id}/cancel", Wrap(log, handler.CancelScan))
	r.Delete("/scans/{id}", Wrap(log, handler.DeleteScan))
	h.router = r

	return h
}

func (h *scanHarness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// seedScan stores a scan owned by the given subject and returns it.
func (h *scanHarness) seedScan(t *testing.T, owner shared.ID, url string) *scan.Scan {
	t.Helper()
	sc, err := scan.NewScan(owner, url, []scan.CheckType{scan.CheckHeaders})
	require.NoError(t, err)
	require.NoError(t, h.repo.Create(context.Background(), sc))
	return sc
}

func TestCreateScan_PersistsPendingAndEnqueues(t *testing.T) {
	h := newScanHarness(t)

	rec := h.do(t, http.MethodPost, "/scans",
		`{"url": "https://shop.example.co.uk/checkout", "scanType": ["headers", "ssl"]}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ScanResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, h.caller.String(), resp.OwnerID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "example.co.uk", resp.Domain)
	assert.Equal(t, []string{"headers", "ssl"}, resp.ScanType)
	assert.Equal(t, 0, resp.Progress)
	assert.Empty(t, resp.Vulnerabilities)

	require.Len(t, h.queue.enqueued, 1)
	assert.Equal(t, resp.ID, h.queue.enqueued[0].String())
}

func TestCreateScan_RejectsBadInput(t *testing.T) {
	h := newScanHarness(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing url", body: `{"scanType": ["headers"]}`},
		{name: "relative url", body: `{"url": "/just/a/path", "scanType": ["headers"]}`},
		{name: "unsupported scheme", body: `{"url": "ftp://example.com", "scanType": ["headers"]}`},
		{name: "empty scan types", body: `{"url": "https://example.com", "scanType": []}`},
		{name: "unknown scan type", body: `{"url": "https://example.com", "scanType": ["portKnock"]}`},
		{name: "not json", body: `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/scans", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			status, _ := decodeEnvelope(t, rec)
			assert.Equal(t, "error", status)
		})
	}

	assert.Empty(t, h.queue.enqueued, "nothing may reach the engine on invalid input")
}

func TestCreateScan_EnqueueFailureFailsRequest(t *testing.T) {
	h := newScanHarness(t)
	h.queue.enqueueErr = assert.AnError

	rec := h.do(t, http.MethodPost, "/scans",
		`{"url": "https://example.com", "scanType": ["headers"]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	_, message := decodeEnvelope(t, rec)
	assert.Equal(t, "Internal server error", message)
	assert.Empty(t, h.repo.scans, "the unqueued record must not linger")
}

func TestGetScan_MalformedIDIsNotFound(t *testing.T) {
	h := newScanHarness(t)

	rec := h.do(t, http.MethodGet, "/scans/not-a-uuid", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, message := decodeEnvelope(t, rec)
	assert.Equal(t, "Scan not found", message)
}

func TestGetScan_ForeignScanIsForbidden(t *testing.T) {
	h := newScanHarness(t)
	foreign := h.seedScan(t, shared.NewID(), "https://private.example.com")

	rec := h.do(t, http.MethodGet, "/scans/"+foreign.ID.String(), "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, message := decodeEnvelope(t, rec)
	assert.Equal(t, "Access denied", message)
	assert.NotContains(t, rec.Body.String(), "private.example.com")
}

func TestGetScan_ReturnsOwnScan(t *testing.T) {
	h := newScanHarness(t)
	own := h.seedScan(t, h.caller, "https://example.com/login")

	rec := h.do(t, http.MethodGet, "/scans/"+own.ID.String(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScanResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, own.ID.String(), resp.ID)
	assert.Equal(t, "https://example.com/login", resp.URL)
}

func TestListScans_PaginatesWithinOwnership(t *testing.T) {
	h := newScanHarness(t)
	for i := 0; i < 3; i++ {
		h.seedScan(t, h.caller, "https://example.com")
	}
	h.seedScan(t, shared.NewID(), "https://other.example.org")

	t.Run("defaults", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/scans", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Items []ScanResponse `json:"items"`
			Total int64          `json:"total"`
			Page  int            `json:"page"`
			Limit int            `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp.Items, 3)
		assert.Equal(t, int64(3), resp.Total)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 10, resp.Limit)
		for _, item := range resp.Items {
			assert.Equal(t, h.caller.String(), item.OwnerID)
		}
	})

	t.Run("bounded page", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/scans?page=2&limit=2", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Items []ScanResponse `json:"items"`
			Total int64          `json:"total"`
			Page  int            `json:"page"`
			Limit int            `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp.Items, 1)
		assert.Equal(t, int64(3), resp.Total)
		assert.Equal(t, 2, resp.Page)
		assert.Equal(t, 2, resp.Limit)
	})

	t.Run("oversized limit clamps", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/scans?limit=5000", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Limit int `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 100, resp.Limit)
	})

	t.Run("unknown status filter", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/scans?status=paused", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCancelScan_Lifecycle(t *testing.T) {
	t.Run("pending scan cancels", func(t *testing.T) {
		h := newScanHarness(t)
		sc := h.seedScan(t, h.caller, "https://example.com")

		rec := h.do(t, http.MethodPatch, "/scans/"+sc.ID.String()+"/cancel", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ScanResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "cancelled", resp.Status)
		assert.NotNil(t, resp.CompletedAt)
	})

	t.Run("repeated cancel is a no-op success", func(t *testing.T) {
		h := newScanHarness(t)
		sc := h.seedScan(t, h.caller, "https://example.com")

		first := h.do(t, http.MethodPatch, "/scans/"+sc.ID.String()+"/cancel", "")
		require.Equal(t, http.StatusOK, first.Code)

		second := h.do(t, http.MethodPatch, "/scans/"+sc.ID.String()+"/cancel", "")
		require.Equal(t, http.StatusOK, second.Code)
		var resp ScanResponse
		require.NoError(t, json.NewDecoder(second.Body).Decode(&resp))
		assert.Equal(t, "cancelled", resp.Status)
	})

	t.Run("completed scan rejects cancel", func(t *testing.T) {
		h := newScanHarness(t)
		sc, err := scan.NewScan(h.caller, "https://example.com", []scan.CheckType{scan.CheckHeaders})
		require.NoError(t, err)
		require.NoError(t, sc.Start())
		require.NoError(t, sc.Complete(nil))
		require.NoError(t, h.repo.Create(context.Background(), sc))

		rec := h.do(t, http.MethodPatch, "/scans/"+sc.ID.String()+"/cancel", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		_, message := decodeEnvelope(t, rec)
		assert.Equal(t, "Cannot cancel scan in status completed", message)

		stored, err := h.repo.GetByID(context.Background(), sc.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCompleted, stored.Status, "a terminal status never changes")
	})
}

func TestDeleteScan_CleansEngineFirst(t *testing.T) {
	t.Run("delete removes queue entry and record", func(t *testing.T) {
		h := newScanHarness(t)
		sc := h.seedScan(t, h.caller, "https://example.com")

		rec := h.do(t, http.MethodDelete, "/scans/"+sc.ID.String(), "")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		require.Len(t, h.queue.removed, 1)
		assert.True(t, h.queue.removed[0].Equals(sc.ID))
		assert.Empty(t, h.repo.scans)
	})

	t.Run("engine cleanup failure keeps the record", func(t *testing.T) {
		h := newScanHarness(t)
		sc := h.seedScan(t, h.caller, "https://example.com")
		h.queue.removeErr = assert.AnError

		rec := h.do(t, http.MethodDelete, "/scans/"+sc.ID.String(), "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		_, err := h.repo.GetByID(context.Background(), sc.ID)
		assert.NoError(t, err, "a scan still known to the engine must not vanish")
	})

	t.Run("foreign scan is forbidden", func(t *testing.T) {
		h := newScanHarness(t)
		foreign := h.seedScan(t, shared.NewID(), "https://example.com")

		rec := h.do(t, http.MethodDelete, "/scans/"+foreign.ID.String(), "")

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, h.queue.removed)
	})
}
