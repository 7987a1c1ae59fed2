package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webscanio/api/pkg/domain/shared"
)

func TestFromError_DomainKinds(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "unauthenticated",
			err:         shared.Unauthenticated("no credential presented"),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "no credential presented",
		},
		{
			name:        "forbidden",
			err:         shared.Forbidden("Access denied"),
			wantStatus:  http.StatusForbidden,
			wantMessage: "Access denied",
		},
		{
			name:        "not found",
			err:         shared.NotFound("Scan not found"),
			wantStatus:  http.StatusNotFound,
			wantMessage: "Scan not found",
		},
		{
			name:        "invalid input",
			err:         shared.InvalidInput("Invalid URL format"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid URL format",
		},
		{
			name:        "rate limited",
			err:         shared.RateLimited("Too many requests"),
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: "Too many requests",
		},
		{
			name:        "rate limiter unavailable keeps its message",
			err:         shared.RateLimiterUnavailable("Rate limit error", errors.New("dial tcp: refused")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Rate limit error",
		},
		{
			name:        "internal hides its message",
			err:         shared.Internal("enqueue failed: broker down", errors.New("broker down")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromError(tt.err)
			if apiErr.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", apiErr.Status, tt.wantStatus)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestFromError_PlainError(t *testing.T) {
	apiErr := FromError(errors.New("pq: connection reset"))

	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", apiErr.Status, http.StatusInternalServerError)
	}
	if apiErr.Message != "Internal server error" {
		t.Errorf("Message = %q, internal detail must not leak", apiErr.Message)
	}
}

func TestFromError_Nil(t *testing.T) {
	if FromError(nil) != nil {
		t.Error("FromError(nil) should return nil")
	}
}

func TestFromError_PreservesAPIError(t *testing.T) {
	original := NotFound("Report")
	if got := FromError(original); got != original {
		t.Error("FromError should return an existing *Error unchanged")
	}
}

func TestFromError_WrappedDomainError(t *testing.T) {
	err := fmt.Errorf("listing reports: %w", shared.Forbidden("Access denied"))
	apiErr := FromError(err)

	if apiErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want %d", apiErr.Status, http.StatusForbidden)
	}
	if apiErr.Message != "Access denied" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "Access denied")
	}
}

func TestWriteJSON_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound("Scan").WriteJSON(rec)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "error" {
		t.Errorf("status field = %v, want %q", body["status"], "error")
	}
	if body["statusCode"] != float64(http.StatusNotFound) {
		t.Errorf("statusCode field = %v, want %d", body["statusCode"], http.StatusNotFound)
	}
	if body["message"] != "Scan not found" {
		t.Errorf("message field = %v, want %q", body["message"], "Scan not found")
	}
	if _, present := body["details"]; present {
		t.Error("details should be omitted when empty")
	}
}

func TestValidationErrors(t *testing.T) {
	var verrs ValidationErrors
	verrs.Add("url", "URL is required")
	verrs.Add("scanType", "At least one scan type is required")

	if !verrs.HasErrors() {
		t.Fatal("HasErrors() = false, want true")
	}

	apiErr := verrs.ToAPIError()
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", apiErr.Status, http.StatusBadRequest)
	}
	details, ok := apiErr.Details.(ValidationErrors)
	if !ok || len(details) != 2 {
		t.Errorf("Details = %v, want two field errors", apiErr.Details)
	}
}
