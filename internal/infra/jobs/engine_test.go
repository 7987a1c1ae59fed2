package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/pagination"
)

// fakeScanRepo is an in-memory scan.Repository. UpdateIfStatus mimics
// the guarded write: the stored status must match one of the expected
// statuses, and an optional denyUpdate hook can refuse the write the
// way a concurrent transition would.
type fakeScanRepo struct {
	mu         sync.Mutex
	scans      map[string]*scan.Scan
	updates    int
	denyUpdate func(sc *scan.Scan, expected []scan.Status) bool
}

func newFakeScanRepo() *fakeScanRepo {
	return &fakeScanRepo{scans: make(map[string]*scan.Scan)}
}

func (f *fakeScanRepo) put(sc *scan.Scan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *sc
	f.scans[sc.ID.String()] = &cp
}

func (f *fakeScanRepo) get(id shared.ID) *scan.Scan {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc, ok := f.scans[id.String()]
	if !ok {
		return nil
	}
	cp := *sc
	return &cp
}

func (f *fakeScanRepo) Create(_ context.Context, sc *scan.Scan) error {
	f.put(sc)
	return nil
}

func (f *fakeScanRepo) GetByID(_ context.Context, id shared.ID) (*scan.Scan, error) {
	if sc := f.get(id); sc != nil {
		return sc, nil
	}
	return nil, scan.NotFoundError()
}

func (f *fakeScanRepo) UpdateIfStatus(_ context.Context, sc *scan.Scan, expected ...scan.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.scans[sc.ID.String()]
	if !ok {
		return false, nil
	}
	match := false
	for _, st := range expected {
		if stored.Status == st {
			match = true
			break
		}
	}
	if !match {
		return false, nil
	}
	if f.denyUpdate != nil && f.denyUpdate(sc, expected) {
		return false, nil
	}

	cp := *sc
	f.scans[sc.ID.String()] = &cp
	f.updates++
	return true, nil
}

func (f *fakeScanRepo) List(_ context.Context, _ scan.Filter, _ pagination.Pagination) (pagination.Result[*scan.Scan], error) {
	return pagination.Result[*scan.Scan]{}, nil
}

func (f *fakeScanRepo) Delete(_ context.Context, id shared.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scans, id.String())
	return nil
}

func (f *fakeScanRepo) GetStats(_ context.Context, _ shared.ID) (*scan.Stats, error) {
	return &scan.Stats{ByStatus: map[scan.Status]int64{}}, nil
}

func (f *fakeScanRepo) TopDomains(_ context.Context, _ shared.ID, _ int) ([]scan.DomainCount, error) {
	return nil, nil
}

func (f *fakeScanRepo) CountCreatedSince(_ context.Context, _ shared.ID, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeScanRepo) ListStaleInProgress(_ context.Context, _ time.Time, _ int) ([]*scan.Scan, error) {
	return nil, nil
}

type publishedEvent struct {
	status   scan.Status
	progress int
}

// fakeEventSink records published statuses in order.
type fakeEventSink struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeEventSink) PublishStatus(_ context.Context, sc *scan.Scan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{status: sc.Status, progress: sc.Progress})
	return nil
}

func (f *fakeEventSink) all() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func newTestEngine(repo *fakeScanRepo, events *fakeEventSink) *Engine {
	return NewEngine(repo, events, config.ScanConfig{
		CheckTimeout: 5 * time.Second,
		MaxRedirects: 3,
		UserAgent:    "webscan-test/1.0",
	}, logger.NewNop())
}

func newStoredScan(t *testing.T, repo *fakeScanRepo, rawURL string, types ...scan.CheckType) *scan.Scan {
	t.Helper()
	sc, err := scan.NewScan(shared.NewID(), rawURL, types)
	if err != nil {
		t.Fatalf("NewScan() unexpected error: %v", err)
	}
	repo.put(sc)
	return sc
}

func TestEngine_ProcessScan_Completes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><form action="/login"><input type="password" name="p"></form></body></html>`))
	}))
	defer srv.Close()

	repo := newFakeScanRepo()
	events := &fakeEventSink{}
	sc := newStoredScan(t, repo, srv.URL, scan.CheckHeaders, scan.CheckContentAnalysis)

	e := newTestEngine(repo, events)
	if err := e.ProcessScan(context.Background(), sc.ID); err != nil {
		t.Fatalf("ProcessScan() unexpected error: %v", err)
	}

	got := repo.get(sc.ID)
	if got.Status != scan.StatusCompleted {
		t.Fatalf("Status = %v, want %v (error: %q)", got.Status, scan.StatusCompleted, got.Error)
	}
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want 100", got.Progress)
	}

	types := make(map[string]bool)
	for _, v := range got.Vulnerabilities {
		types[v.Type] = true
	}
	for _, want := range []string{"missing_content_type_options", "missing_csp", "clickjacking", "insecure_password_field"} {
		if !types[want] {
			t.Errorf("Vulnerabilities missing %q, got %v", want, got.Vulnerabilities)
		}
	}

	// One event after the guarded start, one at 50%, one terminal.
	evs := events.all()
	if len(evs) != 3 {
		t.Fatalf("events = %d, want 3: %v", len(evs), evs)
	}
	if evs[0].status != scan.StatusInProgress || evs[0].progress != 0 {
		t.Errorf("events[0] = %+v, want in_progress at 0", evs[0])
	}
	if evs[1].status != scan.StatusInProgress || evs[1].progress != 50 {
		t.Errorf("events[1] = %+v, want in_progress at 50", evs[1])
	}
	if evs[2].status != scan.StatusCompleted || evs[2].progress != 100 {
		t.Errorf("events[2] = %+v, want completed at 100", evs[2])
	}
}

func TestEngine_ProcessScan_FailsWhenTargetUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	repo := newFakeScanRepo()
	events := &fakeEventSink{}
	sc := newStoredScan(t, repo, target, scan.CheckHeaders)

	e := newTestEngine(repo, events)
	if err := e.ProcessScan(context.Background(), sc.ID); err != nil {
		t.Fatalf("ProcessScan() unexpected error: %v", err)
	}

	got := repo.get(sc.ID)
	if got.Status != scan.StatusFailed {
		t.Fatalf("Status = %v, want %v", got.Status, scan.StatusFailed)
	}
	if !strings.Contains(got.Error, "headers check") {
		t.Errorf("Error = %q, want the failing check named", got.Error)
	}

	evs := events.all()
	if len(evs) != 2 || evs[1].status != scan.StatusFailed {
		t.Errorf("events = %v, want in_progress then failed", evs)
	}
}

func TestEngine_ProcessScan_MissingScan(t *testing.T) {
	repo := newFakeScanRepo()
	events := &fakeEventSink{}

	e := newTestEngine(repo, events)
	if err := e.ProcessScan(context.Background(), shared.NewID()); err != nil {
		t.Fatalf("ProcessScan() on missing scan should succeed, got: %v", err)
	}
	if len(events.all()) != 0 {
		t.Error("no events should be published for a missing scan")
	}
}

func TestEngine_ProcessScan_TerminalScanIsNoop(t *testing.T) {
	repo := newFakeScanRepo()
	events := &fakeEventSink{}

	sc, _ := scan.NewScan(shared.NewID(), "https://example.com", []scan.CheckType{scan.CheckHeaders})
	_ = sc.Start()
	_ = sc.Complete(nil)
	repo.put(sc)

	e := newTestEngine(repo, events)
	if err := e.ProcessScan(context.Background(), sc.ID); err != nil {
		t.Fatalf("ProcessScan() unexpected error: %v", err)
	}
	if repo.updates != 0 {
		t.Errorf("updates = %d, want 0 for a terminal scan", repo.updates)
	}
	if len(events.all()) != 0 {
		t.Error("no events should be published for a terminal scan")
	}
}

func TestEngine_ProcessScan_WithdrawnBeforeStart(t *testing.T) {
	repo := newFakeScanRepo()
	events := &fakeEventSink{}
	sc := newStoredScan(t, repo, "https://example.com", scan.CheckHeaders)

	// Refuse the pending -> in_progress write, as if the scan was
	// cancelled between the load and the claim.
	repo.denyUpdate = func(_ *scan.Scan, expected []scan.Status) bool {
		return len(expected) == 1 && expected[0] == scan.StatusPending
	}

	e := newTestEngine(repo, events)
	if err := e.ProcessScan(context.Background(), sc.ID); err != nil {
		t.Fatalf("ProcessScan() unexpected error: %v", err)
	}

	if got := repo.get(sc.ID); got.Status != scan.StatusPending {
		t.Errorf("Status = %v, want untouched pending", got.Status)
	}
	if len(events.all()) != 0 {
		t.Error("no events should be published for a withdrawn scan")
	}
}

func TestEngine_ProcessScan_CancelledDuringRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	repo := newFakeScanRepo()
	events := &fakeEventSink{}
	sc := newStoredScan(t, repo, srv.URL, scan.CheckHeaders)

	// Let the claim through but refuse the terminal write, as if a
	// cancellation landed while checks were running.
	repo.denyUpdate = func(sc *scan.Scan, expected []scan.Status) bool {
		return len(expected) == 1 && expected[0] == scan.StatusInProgress && sc.Status.IsTerminal()
	}

	e := newTestEngine(repo, events)
	if err := e.ProcessScan(context.Background(), sc.ID); err != nil {
		t.Fatalf("ProcessScan() unexpected error: %v", err)
	}

	// Results are dropped; only the start event went out.
	evs := events.all()
	if len(evs) != 1 || evs[0].status != scan.StatusInProgress {
		t.Errorf("events = %v, want only the in_progress event", evs)
	}
	if got := repo.get(sc.ID); got.Status != scan.StatusInProgress {
		t.Errorf("Status = %v, results should not have been written", got.Status)
	}
}

func TestEngine_ProcessScan_ResumesInProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
	}))
	defer srv.Close()

	repo := newFakeScanRepo()
	events := &fakeEventSink{}

	// A scan left in_progress by a crashed worker attempt.
	sc, err := scan.NewScan(shared.NewID(), srv.URL, []scan.CheckType{scan.CheckHeaders})
	if err != nil {
		t.Fatalf("NewScan() unexpected error: %v", err)
	}
	_ = sc.Start()
	repo.put(sc)

	e := newTestEngine(repo, events)
	if err := e.ProcessScan(context.Background(), sc.ID); err != nil {
		t.Fatalf("ProcessScan() unexpected error: %v", err)
	}

	got := repo.get(sc.ID)
	if got.Status != scan.StatusCompleted {
		t.Fatalf("Status = %v, want %v (error: %q)", got.Status, scan.StatusCompleted, got.Error)
	}
	if len(got.Vulnerabilities) != 0 {
		t.Errorf("Vulnerabilities = %v, want none for a hardened response", got.Vulnerabilities)
	}

	// Resuming skips the claim, so only the terminal event goes out.
	evs := events.all()
	if len(evs) != 1 || evs[0].status != scan.StatusCompleted {
		t.Errorf("events = %v, want only the completed event", evs)
	}
}
