package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the WebScan API HTTP client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	verbose    bool
}

// NewClient creates a new API client.
func NewClient(baseURL, token string, verbose bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		verbose: verbose,
	}
}

// Do performs an HTTP request and returns the response body.
func (c *Client) Do(method, path string, body any) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(context.Background(), method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.verbose {
		fmt.Printf(">>> %s %s\n", method, url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if c.verbose {
		fmt.Printf("<<< %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, resp.StatusCode, nil
}

// Get performs a GET request.
func (c *Client) Get(path string) ([]byte, error) {
	data, _, err := c.Do(http.MethodGet, path, nil)
	return data, err
}

// Post performs a POST request.
func (c *Client) Post(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPost, path, body)
	return data, err
}

// Patch performs a PATCH request.
func (c *Client) Patch(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPatch, path, body)
	return data, err
}

// Delete performs a DELETE request.
func (c *Client) Delete(path string) error {
	_, _, err := c.Do(http.MethodDelete, path, nil)
	return err
}

// APIError represents an error envelope from the API.
type APIError struct {
	StatusCode int
	Message    string
	Details    any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed struct {
		Status     string `json:"status"`
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
		Details    any    `json:"details"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		apiErr.Message = parsed.Message
		apiErr.Details = parsed.Details
	}

	if apiErr.Message == "" {
		switch statusCode {
		case 401:
			apiErr.Message = "unauthorized: invalid or missing token"
		case 403:
			apiErr.Message = "forbidden: resource belongs to another account"
		case 404:
			apiErr.Message = "resource not found"
		case 429:
			apiErr.Message = "rate limited: too many requests"
		default:
			apiErr.Message = fmt.Sprintf("API error: %d %s", statusCode, http.StatusText(statusCode))
		}
	}

	return apiErr
}

// Response types matching server handler structs.

type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	LastLoginAt *string `json:"lastLoginAt,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    string       `json:"expiresAt"`
}

type VulnerabilityView struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type ScanResponse struct {
	ID                 string              `json:"id"`
	OwnerID            string              `json:"ownerId"`
	URL                string              `json:"url"`
	Domain             string              `json:"domain"`
	ScanType           []string            `json:"scanType"`
	Status             string              `json:"status"`
	Progress           int                 `json:"progress"`
	Vulnerabilities    []VulnerabilityView `json:"vulnerabilities"`
	VulnerabilityCount int                 `json:"vulnerabilityCount"`
	Error              string              `json:"error,omitempty"`
	StartedAt          *string             `json:"startedAt,omitempty"`
	CompletedAt        *string             `json:"completedAt,omitempty"`
	CreatedAt          string              `json:"createdAt"`
	UpdatedAt          string              `json:"updatedAt"`
}

type ScanListResponse struct {
	Items []ScanResponse `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type FindingView struct {
	Type        string `json:"type"`
	Severity    string `json:"severity,omitempty"`
	Description string `json:"description,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

type ReportResponse struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"ownerId"`
	ScanID    string        `json:"scanId"`
	Title     string        `json:"title"`
	Summary   string        `json:"summary"`
	Severity  string        `json:"severity"`
	Findings  []FindingView `json:"findings"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

type ReportListResponse struct {
	Items []ReportResponse `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

type BulkDeleteResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

type ExportResponse struct {
	Format      string `json:"format"`
	ObjectKey   string `json:"objectKey"`
	URL         string `json:"url,omitempty"`
	Size        int64  `json:"size"`
	Count       int    `json:"count"`
	ContentType string `json:"contentType"`
}

type AnalyticsResponse struct {
	Scans struct {
		Total    int64            `json:"total"`
		ByStatus map[string]int64 `json:"byStatus"`
		TopDomains []struct {
			Domain string `json:"domain"`
			Count  int64  `json:"count"`
		} `json:"topDomains"`
		CreatedLast7Days int64 `json:"createdLast7Days"`
	} `json:"scans"`
	Reports struct {
		Total      int64            `json:"total"`
		BySeverity map[string]int64 `json:"bySeverity"`
		TopScans   []struct {
			ScanID string `json:"scanId"`
			Count  int64  `json:"count"`
		} `json:"topScans"`
		CreatedLast7Days int64 `json:"createdLast7Days"`
	} `json:"reports"`
	GeneratedAt string `json:"generatedAt"`
}
