package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

type fakeRecorder struct {
	mu       sync.Mutex
	stored   []domain.WebhookEvent
	existing map[string]bool // event IDs already recorded
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{existing: make(map[string]bool)}
}

func (f *fakeRecorder) RecordEvent(_ context.Context, ev domain.WebhookEvent) (*domain.WebhookEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existing[ev.EventID] {
		return &ev, false, nil
	}
	f.existing[ev.EventID] = true
	f.stored = append(f.stored, ev)
	return &ev, true, nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []domain.WebhookEvent
}

func (f *fakeSubmitter) Submit(ev domain.WebhookEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, ev)
}

func newTestWebhookHandler() (*WebhookHandler, *fakeRecorder, *fakeSubmitter) {
	recorder := newFakeRecorder()
	submitter := &fakeSubmitter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWebhookHandler(recorder, submitter, logger), recorder, submitter
}

func postDelivery(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/unipile/messaging", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestReceive_StoresThenAcks(t *testing.T) {
	h, recorder, submitter := newTestWebhookHandler()
	body := `{"id":"evt_1","event_type":"message.sent","account_id":"acc_1","timestamp":"2026-08-20T12:00:00Z","data":{}}`

	w := postDelivery(h.Receive(domain.FamilyMessaging), body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp intakeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.EventID != "evt_1" || resp.Duplicate {
		t.Errorf("response = %+v, want evt_1 / not duplicate", resp)
	}

	if len(recorder.stored) != 1 {
		t.Fatalf("stored %d events, want 1", len(recorder.stored))
	}
	// The full envelope is preserved for the handler, not just the data field.
	if string(recorder.stored[0].Payload) != body {
		t.Errorf("stored payload = %s, want the raw delivery body", recorder.stored[0].Payload)
	}
	if len(submitter.submitted) != 1 {
		t.Errorf("submitted %d events, want 1", len(submitter.submitted))
	}
}

func TestReceive_DuplicateAckedNotResubmitted(t *testing.T) {
	h, _, submitter := newTestWebhookHandler()
	body := `{"id":"evt_1","event_type":"message.sent","account_id":"acc_1","data":{}}`

	first := postDelivery(h.Receive(domain.FamilyMessaging), body)
	second := postDelivery(h.Receive(domain.FamilyMessaging), body)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d, want 200 for both", first.Code, second.Code)
	}
	var resp intakeResponse
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Duplicate {
		t.Error("second delivery must be flagged duplicate")
	}
	if len(submitter.submitted) != 1 {
		t.Errorf("submitted %d events, want 1: duplicates are acked but not reprocessed", len(submitter.submitted))
	}
}

func TestReceive_RejectsBadEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"id":`},
		{name: "missing id", body: `{"event_type":"message.sent"}`},
		{name: "missing event_type", body: `{"id":"evt_1"}`},
		{name: "known type on wrong family endpoint", body: `{"id":"evt_1","event_type":"email.opened"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, recorder, submitter := newTestWebhookHandler()
			w := postDelivery(h.Receive(domain.FamilyMessaging), tt.body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if len(recorder.stored) != 0 {
				t.Error("rejected deliveries must not be stored")
			}
			if len(submitter.submitted) != 0 {
				t.Error("rejected deliveries must not be submitted")
			}
		})
	}
}

func TestReceive_UnknownTypeStoredForAudit(t *testing.T) {
	h, recorder, submitter := newTestWebhookHandler()
	body := `{"id":"evt_1","event_type":"provider.surprise","data":{}}`

	w := postDelivery(h.Receive(domain.FamilyMessaging), body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: unknown types are stored, never dropped", w.Code)
	}
	if len(recorder.stored) != 1 {
		t.Errorf("stored %d events, want 1", len(recorder.stored))
	}
	if len(submitter.submitted) != 1 {
		t.Errorf("submitted %d events, want 1", len(submitter.submitted))
	}
}
