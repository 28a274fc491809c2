package unipile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		Timeout:      2 * time.Second,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListAccounts_UnwrapsItems(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "test-key" {
			t.Errorf("X-API-KEY = %q, want test-key", got)
		}
		if r.URL.Path != "/accounts" {
			t.Errorf("path = %q, want /accounts", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"id": "acct_1", "type": "LINKEDIN", "name": "Recruiting"},
			},
		})
	})

	accounts, err := c.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "acct_1" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}

func TestSearchLocations_QueryParams(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "LOCATION" {
			t.Errorf("type = %q, want LOCATION", q.Get("type"))
		}
		if q.Get("keywords") != "Berlin" {
			t.Errorf("keywords = %q, want Berlin", q.Get("keywords"))
		}
		if q.Get("account_id") != "acct_1" {
			t.Errorf("account_id = %q, want acct_1", q.Get("account_id"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{{"id": "102277331", "title": "Berlin, Germany"}},
		})
	})

	locs, err := c.SearchLocations(context.Background(), "acct_1", "Berlin")
	if err != nil {
		t.Fatalf("SearchLocations: %v", err)
	}
	if len(locs) != 1 || locs[0].ID != "102277331" {
		t.Fatalf("unexpected locations: %+v", locs)
	}
}

func TestCreateJob_PayloadShape(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		title, _ := body["job_title"].(map[string]any)
		if title["text"] != "Go Engineer" {
			t.Errorf("job_title.text = %v, want Go Engineer", title["text"])
		}
		if body["location"] != "102277331" {
			t.Errorf("location = %v, want resolved ID", body["location"])
		}
		if body["workplace"] != "REMOTE" {
			t.Errorf("workplace = %v, want REMOTE", body["workplace"])
		}
		json.NewEncoder(w).Encode(map[string]string{"job_id": "li_job_42"})
	})

	resp, err := c.CreateJob(context.Background(), CreateJobRequest{
		AccountID:        "acct_1",
		JobTitle:         TextWrap{Text: "Go Engineer"},
		Company:          TextWrap{Text: "Recruitflow"},
		Workplace:        "REMOTE",
		EmploymentStatus: "FULL_TIME",
		Description:      "<p>desc</p>",
		Location:         "102277331",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if resp.JobID != "li_job_42" {
		t.Errorf("JobID = %q, want li_job_42", resp.JobID)
	}
}

func TestPublishJob_DefaultsToFree(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["mode"] != "FREE" {
			t.Errorf("mode = %v, want FREE", body["mode"])
		}
		if body["service"] != "CLASSIC" {
			t.Errorf("service = %v, want CLASSIC", body["service"])
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://example.com/jobs/42"})
	})

	resp, err := c.PublishJob(context.Background(), "acct_1", "li_job_42", PublishOptions{})
	if err != nil {
		t.Fatalf("PublishJob: %v", err)
	}
	if resp.URL != "https://example.com/jobs/42" {
		t.Errorf("URL = %q", resp.URL)
	}
}

func TestDo_ClassifiesPermanentErrors(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid location"}`, http.StatusUnprocessableEntity)
	})

	_, err := c.CreateJob(context.Background(), CreateJobRequest{})
	var perm *domain.PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("want PermanentError, got %T: %v", err, err)
	}
}

func TestDo_ClassifiesTransientErrors(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.ListAccounts(context.Background())
	var transient *domain.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("want TransientError, got %T: %v", err, err)
	}
	// RetryMax=1 means the original attempt plus one retry.
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (bounded retry)", calls)
	}
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := c.ListAccounts(context.Background())
	var perm *domain.PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("want PermanentError, got %T: %v", err, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx is never retried)", calls)
	}
}
