package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestConstructorsTagKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"unauthenticated", Unauthenticated("no credential presented"), KindUnauthenticated},
		{"forbidden", Forbidden("Access denied"), KindForbidden},
		{"not found", NotFound("Scan not found"), KindNotFound},
		{"invalid input", InvalidInput("Invalid URL format"), KindInvalidInput},
		{"rate limited", RateLimited("Too many requests"), KindRateLimited},
		{"rate limiter unavailable", RateLimiterUnavailable("Rate limit error", errors.New("dial tcp")), KindRateLimiterUnavailable},
		{"internal", Internal("boom", errors.New("cause")), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf_WrappedError(t *testing.T) {
	inner := NotFound("Report not found")
	wrapped := fmt.Errorf("deleting report: %w", inner)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindNotFound)
	}
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound(wrapped) = false, want true")
	}
}

func TestKindOf_UnknownError(t *testing.T) {
	if got := KindOf(errors.New("plain failure")); got != KindInternal {
		t.Errorf("KindOf(plain error) = %v, want %v", got, KindInternal)
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := RateLimiterUnavailable("Rate limit error", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatal("errors.As should find *DomainError")
	}
	if domainErr.Kind != KindRateLimiterUnavailable {
		t.Errorf("Kind = %v, want %v", domainErr.Kind, KindRateLimiterUnavailable)
	}
}

func TestDomainError_WithDetails(t *testing.T) {
	err := InvalidInput("Validation failed").WithDetails(map[string]string{"url": "required"})

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatal("errors.As should find *DomainError")
	}
	details, ok := domainErr.Details.(map[string]string)
	if !ok || details["url"] != "required" {
		t.Errorf("Details = %v, want url=required", domainErr.Details)
	}
}

func TestIsKindHelpers(t *testing.T) {
	if !IsForbidden(Forbidden("Access denied")) {
		t.Error("IsForbidden should match a forbidden error")
	}
	if IsForbidden(NotFound("nope")) {
		t.Error("IsForbidden should not match a not found error")
	}
	if !IsInvalidInput(InvalidInput("bad")) {
		t.Error("IsInvalidInput should match an invalid input error")
	}
	if !IsKind(RateLimited("slow down"), KindRateLimited) {
		t.Error("IsKind should match the tagged kind")
	}
}
