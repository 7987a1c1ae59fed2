package scan

import (
	"testing"

	"github.com/webscanio/api/pkg/domain/shared"
)

func TestNewScan(t *testing.T) {
	ownerID := shared.NewID()

	tests := []struct {
		name    string
		ownerID shared.ID
		url     string
		types   []CheckType
		wantErr bool
	}{
		{
			name:    "valid https scan",
			ownerID: ownerID,
			url:     "https://example.com",
			types:   []CheckType{CheckHeaders, CheckSSL},
			wantErr: false,
		},
		{
			name:    "valid http scan",
			ownerID: ownerID,
			url:     "http://example.com/login",
			types:   []CheckType{CheckVulnDetection},
			wantErr: false,
		},
		{
			name:    "zero owner ID",
			ownerID: shared.ID{},
			url:     "https://example.com",
			types:   []CheckType{CheckHeaders},
			wantErr: true,
		},
		{
			name:    "empty URL",
			ownerID: ownerID,
			url:     "",
			types:   []CheckType{CheckHeaders},
			wantErr: true,
		},
		{
			name:    "relative URL",
			ownerID: ownerID,
			url:     "example.com/path",
			types:   []CheckType{CheckHeaders},
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			ownerID: ownerID,
			url:     "ftp://example.com",
			types:   []CheckType{CheckHeaders},
			wantErr: true,
		},
		{
			name:    "missing host",
			ownerID: ownerID,
			url:     "https://",
			types:   []CheckType{CheckHeaders},
			wantErr: true,
		},
		{
			name:    "no check types",
			ownerID: ownerID,
			url:     "https://example.com",
			types:   nil,
			wantErr: true,
		},
		{
			name:    "unknown check type",
			ownerID: ownerID,
			url:     "https://example.com",
			types:   []CheckType{CheckType("dnsEnum")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScan(tt.ownerID, tt.url, tt.types)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewScan() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if shared.KindOf(err) != shared.KindInvalidInput {
					t.Errorf("NewScan() error kind = %v, want %v", shared.KindOf(err), shared.KindInvalidInput)
				}
				return
			}
			if s.Status != StatusPending {
				t.Errorf("Status = %v, want %v", s.Status, StatusPending)
			}
			if s.Progress != 0 {
				t.Errorf("Progress = %d, want 0", s.Progress)
			}
			if s.Vulnerabilities == nil {
				t.Error("Vulnerabilities should be initialized to an empty slice")
			}
			if s.ID.IsZero() {
				t.Error("ID should be generated")
			}
		})
	}
}

func TestNewScan_DerivesDomain(t *testing.T) {
	ownerID := shared.NewID()

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/path?q=1", "example.com"},
		{"https://deep.sub.example.co.uk", "example.co.uk"},
		{"http://192.168.1.10:8080/admin", "192.168.1.10"},
		{"http://localhost:3000", "localhost"},
		{"https://EXAMPLE.COM", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			s, err := NewScan(ownerID, tt.url, []CheckType{CheckHeaders})
			if err != nil {
				t.Fatalf("NewScan() unexpected error: %v", err)
			}
			if s.Domain != tt.want {
				t.Errorf("Domain = %q, want %q", s.Domain, tt.want)
			}
		})
	}
}

func TestParseCheckTypes(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []CheckType
		wantErr bool
	}{
		{
			name: "all supported types",
			raw:  []string{"headers", "ssl", "portScan", "vulnDetection", "contentAnalysis", "performanceCheck"},
			want: AllCheckTypes(),
		},
		{
			name: "duplicates removed in order",
			raw:  []string{"ssl", "headers", "ssl"},
			want: []CheckType{CheckSSL, CheckHeaders},
		},
		{
			name:    "empty list",
			raw:     []string{},
			wantErr: true,
		},
		{
			name:    "unknown type",
			raw:     []string{"headers", "xss"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCheckTypes(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCheckTypes() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseCheckTypes() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseCheckTypes()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScan_Start(t *testing.T) {
	ownerID := shared.NewID()

	t.Run("start pending scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})

		if err := s.Start(); err != nil {
			t.Fatalf("Start() unexpected error: %v", err)
		}
		if s.Status != StatusInProgress {
			t.Errorf("Status = %v, want %v", s.Status, StatusInProgress)
		}
		if s.StartedAt == nil {
			t.Error("StartedAt should be set")
		}
	})

	t.Run("cannot start twice", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})
		_ = s.Start()

		if err := s.Start(); err == nil {
			t.Error("Start() should fail for in_progress scan")
		}
	})

	t.Run("cannot start cancelled scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})
		_ = s.Cancel()

		if err := s.Start(); err == nil {
			t.Error("Start() should fail for cancelled scan")
		}
	})
}

func TestScan_Complete(t *testing.T) {
	ownerID := shared.NewID()

	t.Run("complete in_progress scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckSSL})
		_ = s.Start()

		vulns := []Vulnerability{{Type: "expiredCertificate", Severity: "high", Description: "certificate expired 12 days ago"}}
		if err := s.Complete(vulns); err != nil {
			t.Fatalf("Complete() unexpected error: %v", err)
		}
		if s.Status != StatusCompleted {
			t.Errorf("Status = %v, want %v", s.Status, StatusCompleted)
		}
		if s.Progress != 100 {
			t.Errorf("Progress = %d, want 100", s.Progress)
		}
		if s.CompletedAt == nil {
			t.Error("CompletedAt should be set")
		}
		if len(s.Vulnerabilities) != 1 {
			t.Errorf("Vulnerabilities = %d, want 1", len(s.Vulnerabilities))
		}
	})

	t.Run("complete with nil results", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckSSL})
		_ = s.Start()

		if err := s.Complete(nil); err != nil {
			t.Fatalf("Complete() unexpected error: %v", err)
		}
		if s.Vulnerabilities == nil {
			t.Error("Vulnerabilities should be an empty slice, not nil")
		}
	})

	t.Run("cannot complete pending scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckSSL})

		if err := s.Complete(nil); err == nil {
			t.Error("Complete() should fail for pending scan")
		}
	})
}

func TestScan_Fail(t *testing.T) {
	ownerID := shared.NewID()

	t.Run("fail in_progress scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckPortScan})
		_ = s.Start()

		if err := s.Fail("target unreachable"); err != nil {
			t.Fatalf("Fail() unexpected error: %v", err)
		}
		if s.Status != StatusFailed {
			t.Errorf("Status = %v, want %v", s.Status, StatusFailed)
		}
		if s.Error != "target unreachable" {
			t.Errorf("Error = %q, want %q", s.Error, "target unreachable")
		}
	})

	t.Run("cannot fail completed scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckPortScan})
		_ = s.Start()
		_ = s.Complete(nil)

		if err := s.Fail("too late"); err == nil {
			t.Error("Fail() should fail for completed scan")
		}
	})
}

func TestScan_Cancel(t *testing.T) {
	ownerID := shared.NewID()

	t.Run("cancel pending scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})

		if err := s.Cancel(); err != nil {
			t.Fatalf("Cancel() unexpected error: %v", err)
		}
		if s.Status != StatusCancelled {
			t.Errorf("Status = %v, want %v", s.Status, StatusCancelled)
		}
	})

	t.Run("cancel in_progress scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})
		_ = s.Start()

		if err := s.Cancel(); err != nil {
			t.Fatalf("Cancel() unexpected error: %v", err)
		}
		if s.Status != StatusCancelled {
			t.Errorf("Status = %v, want %v", s.Status, StatusCancelled)
		}
	})

	t.Run("cancel cancelled scan is a no-op", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})
		_ = s.Cancel()
		firstCompletedAt := s.CompletedAt

		if err := s.Cancel(); err != nil {
			t.Fatalf("Cancel() on cancelled scan should be a no-op, got error: %v", err)
		}
		if s.Status != StatusCancelled {
			t.Errorf("Status = %v, want %v", s.Status, StatusCancelled)
		}
		if s.CompletedAt != firstCompletedAt {
			t.Error("Cancel() no-op should not touch CompletedAt")
		}
	})

	t.Run("cannot cancel completed scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})
		_ = s.Start()
		_ = s.Complete(nil)

		err := s.Cancel()
		if err == nil {
			t.Fatal("Cancel() should fail for completed scan")
		}
		if shared.KindOf(err) != shared.KindInvalidInput {
			t.Errorf("Cancel() error kind = %v, want %v", shared.KindOf(err), shared.KindInvalidInput)
		}
	})

	t.Run("cannot cancel failed scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})
		_ = s.Start()
		_ = s.Fail("boom")

		if err := s.Cancel(); err == nil {
			t.Error("Cancel() should fail for failed scan")
		}
	})
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusFailed, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusFailed, StatusCancelled, false},
		{StatusCancelled, StatusInProgress, false},
		{StatusCancelled, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%v -> %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestScan_SetProgress(t *testing.T) {
	ownerID := shared.NewID()

	t.Run("progress on in_progress scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})
		_ = s.Start()

		if err := s.SetProgress(40); err != nil {
			t.Fatalf("SetProgress() unexpected error: %v", err)
		}
		if s.Progress != 40 {
			t.Errorf("Progress = %d, want 40", s.Progress)
		}
	})

	t.Run("progress out of range", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})
		_ = s.Start()

		if err := s.SetProgress(101); err == nil {
			t.Error("SetProgress(101) should fail")
		}
		if err := s.SetProgress(-1); err == nil {
			t.Error("SetProgress(-1) should fail")
		}
	})

	t.Run("progress on pending scan", func(t *testing.T) {
		s, _ := NewScan(ownerID, "https://example.com", []CheckType{CheckHeaders})

		if err := s.SetProgress(10); err == nil {
			t.Error("SetProgress() should fail for pending scan")
		}
	})
}
