package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

const maxDeliveryBytes = 1 << 20

// EventRecorder durably stores a delivery before it is acknowledged.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev domain.WebhookEvent) (*domain.WebhookEvent, bool, error)
}

// Submitter hands a stored event to background processing.
type Submitter interface {
	Submit(ev domain.WebhookEvent)
}

// WebhookHandler serves the provider's intake endpoints, one per webhook
// family. The request path does the minimum: validate the envelope, store
// durably, acknowledge. Handler effects run in the worker pool.
type WebhookHandler struct {
	events EventRecorder
	pool   Submitter
	logger *slog.Logger
}

func NewWebhookHandler(events EventRecorder, pool Submitter, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, pool: pool, logger: logger}
}

type intakeResponse struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// Receive returns the intake handler for one webhook family. The 200 is
// sent once the event row is durable, regardless of what the handler
// later does with it.
func (h *WebhookHandler) Receive(family domain.WebhookFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxDeliveryBytes))
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable request body")
			return
		}

		var delivery domain.Delivery
		if err := json.Unmarshal(body, &delivery); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if delivery.ID == "" {
			respondError(w, http.StatusBadRequest, "id is required")
			return
		}
		if delivery.EventType == "" {
			respondError(w, http.StatusBadRequest, "event_type is required")
			return
		}
		// Known types must arrive on their own family's endpoint. Types
		// outside the taxonomy are stored anyway and recorded as
		// unhandled by the dispatcher, never silently dropped.
		if f, known := domain.Family(delivery.EventType); known && f != family {
			respondError(w, http.StatusBadRequest, "event_type does not belong to this webhook")
			return
		}

		stored, isNew, err := h.events.RecordEvent(r.Context(), domain.WebhookEvent{
			EventID:   delivery.ID,
			EventType: delivery.EventType,
			AccountID: delivery.AccountID,
			Payload:   body,
		})
		if err != nil {
			h.logger.Error("failed to store webhook delivery",
				"event_id", delivery.ID,
				"event_type", delivery.EventType,
				"error", err,
			)
			respondError(w, http.StatusInternalServerError, "failed to store event")
			return
		}

		if isNew {
			h.pool.Submit(*stored)
		} else {
			h.logger.Info("duplicate delivery ignored",
				"event_id", stored.EventID,
				"event_type", stored.EventType,
			)
		}

		respondJSON(w, http.StatusOK, intakeResponse{
			EventID:   stored.EventID,
			Duplicate: !isNew,
		})
	}
}
