// Package unipile is the typed client for the unification provider's API.
// All methods classify failures into the domain error kinds: 5xx and rate
// limits surface as TransientError after bounded retries, other 4xx as
// PermanentError.
package unipile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// Config holds client construction parameters. Retry bounds follow the
// documented contract: bounded attempts with exponential growth.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client talks to the provider API with auth, timeout and retry built in.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Logger = nil

	return &Client{
		http:    rc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Account is one provider account visible to this API key.
type Account struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// Location is a provider search parameter of type LOCATION. Only the ID is
// accepted by the job-create endpoint; free text is rejected there.
type Location struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CreateJobRequest is the POST /linkedin/jobs payload. Title and company
// are objects with a text field per the provider schema; location must be
// a previously resolved parameter ID.
type CreateJobRequest struct {
	AccountID        string   `json:"account_id"`
	JobTitle         TextWrap `json:"job_title"`
	Company          TextWrap `json:"company"`
	Workplace        string   `json:"workplace"`
	EmploymentStatus string   `json:"employment_status"`
	Description      string   `json:"description"`
	Location         string   `json:"location"`
}

type TextWrap struct {
	Text string `json:"text"`
}

type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// PublishOptions selects the listing mode. The provider defaults the rest.
type PublishOptions struct {
	Mode string `json:"mode"` // FREE or PROMOTED
}

type PublishResponse struct {
	URL string `json:"url,omitempty"`
}

// JobDetails is the provider's view of an existing job posting.
type JobDetails struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
}

type Applicant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Profile string `json:"profile_url,omitempty"`
}

// ListAccounts returns all accounts connected under this API key.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out struct {
		Items []Account `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return out.Items, nil
}

// SearchLocations resolves free-text location queries to provider IDs.
func (c *Client) SearchLocations(ctx context.Context, accountID, query string) ([]Location, error) {
	params := url.Values{
		"account_id": {accountID},
		"type":       {"LOCATION"},
		"keywords":   {query},
	}
	var out struct {
		Items []Location `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/linkedin/search/parameters", nil, params, &out); err != nil {
		return nil, fmt.Errorf("searching locations: %w", err)
	}
	return out.Items, nil
}

// CreateJob creates an unpublished job posting and returns its provider ID.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*CreateJobResponse, error) {
	var out CreateJobResponse
	if err := c.do(ctx, http.MethodPost, "/linkedin/jobs", req, nil, &out); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return &out, nil
}

// PublishJob publishes a previously created posting.
func (c *Client) PublishJob(ctx context.Context, accountID, jobID string, opts PublishOptions) (*PublishResponse, error) {
	if opts.Mode == "" {
		opts.Mode = "FREE"
	}
	body := struct {
		AccountID        string `json:"account_id"`
		Service          string `json:"service"`
		HiringPhotoFrame bool   `json:"hiring_photo_frame"`
		Mode             string `json:"mode"`
	}{accountID, "CLASSIC", true, opts.Mode}

	var out PublishResponse
	path := fmt.Sprintf("/linkedin/jobs/%s/publish", jobID)
	if err := c.do(ctx, http.MethodPost, path, body, nil, &out); err != nil {
		return nil, fmt.Errorf("publishing job %s: %w", jobID, err)
	}
	return &out, nil
}

// GetJob reads a posting back from the provider. Used to disambiguate a
// publish whose response was lost.
func (c *Client) GetJob(ctx context.Context, accountID, jobID string) (*JobDetails, error) {
	params := url.Values{"account_id": {accountID}}
	var out JobDetails
	path := fmt.Sprintf("/linkedin/jobs/%s", jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, params, &out); err != nil {
		return nil, fmt.Errorf("getting job %s: %w", jobID, err)
	}
	return &out, nil
}

// CloseJob takes a published posting down.
func (c *Client) CloseJob(ctx context.Context, accountID, jobID string) error {
	body := struct {
		AccountID string `json:"account_id"`
	}{accountID}
	path := fmt.Sprintf("/linkedin/jobs/%s/close", jobID)
	if err := c.do(ctx, http.MethodPost, path, body, nil, nil); err != nil {
		return fmt.Errorf("closing job %s: %w", jobID, err)
	}
	return nil
}

// ListApplicants returns applicants for a posting.
func (c *Client) ListApplicants(ctx context.Context, accountID, jobID string) ([]Applicant, error) {
	params := url.Values{"account_id": {accountID}}
	var out struct {
		Applicants []Applicant `json:"applicants"`
	}
	path := fmt.Sprintf("/linkedin/jobs/%s/applicants", jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, params, &out); err != nil {
		return nil, fmt.Errorf("listing applicants for job %s: %w", jobID, err)
	}
	return out.Applicants, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failure or retries exhausted. The context error stays
		// reachable through the wrap chain for callers that need to know
		// whether the call may have been applied.
		return &domain.TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(snippet))
		c.logger.Warn("provider request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &domain.TransientError{Err: apiErr}
		}
		return &domain.PermanentError{Err: apiErr}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
