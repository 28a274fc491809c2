package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/recruitflow/unipile-sync/internal/domain"
	"github.com/recruitflow/unipile-sync/internal/store"
)

// AccountStore is the account mirror as seen by the account-status
// handler, the table's only writer.
type AccountStore interface {
	UpsertAccountStatus(ctx context.Context, acct domain.ExternalAccount) (bool, error)
}

// EngagementStore updates the read-only engagement counters on jobs.
type EngagementStore interface {
	IncrementEngagement(ctx context.Context, externalJobID, counter string) error
}

// DefaultHandlers wires every known event type to its handler.
func DefaultHandlers(accounts AccountStore, jobs EngagementStore, logger *slog.Logger) map[domain.EventType]Handler {
	account := &accountStatusHandler{accounts: accounts, logger: logger}
	messaging := &auditHandler{logger: logger}
	mailing := &auditHandler{logger: logger}
	tracking := &mailTrackingHandler{jobs: jobs, logger: logger}
	relations := &relationsHandler{jobs: jobs, logger: logger}

	return map[domain.EventType]Handler{
		domain.EventAccountStatusUpdated: account,
		domain.EventAccountConnected:     account,
		domain.EventAccountDisconnected:  account,

		domain.EventMessageSent:     messaging,
		domain.EventMessageReceived: messaging,
		domain.EventMessageFailed:   messaging,

		domain.EventEmailSent:      mailing,
		domain.EventEmailDelivered: mailing,
		domain.EventEmailFailed:    mailing,
		domain.EventEmailBounced:   mailing,

		domain.EventEmailOpened:       tracking,
		domain.EventEmailClicked:      tracking,
		domain.EventEmailUnsubscribed: tracking,

		domain.EventConnectionAdded:   relations,
		domain.EventConnectionRemoved: relations,
		domain.EventProfileUpdated:    relations,
	}
}

// accountStatusHandler owns the external_accounts table. Conflicts between
// out-of-order deliveries are settled by the payload timestamp: the upsert
// only applies observations strictly newer than the stored row.
type accountStatusHandler struct {
	accounts AccountStore
	logger   *slog.Logger
}

func (h *accountStatusHandler) Apply(ctx context.Context, ev domain.WebhookEvent) error {
	var delivery struct {
		AccountID string    `json:"account_id"`
		Timestamp time.Time `json:"timestamp"`
		Data      struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(ev.Payload, &delivery); err != nil {
		return &domain.ValidationError{Msg: fmt.Sprintf("malformed account-status payload: %v", err)}
	}
	if delivery.AccountID == "" {
		return &domain.ValidationError{Msg: "account-status payload missing account_id"}
	}
	if delivery.Timestamp.IsZero() {
		return &domain.ValidationError{Msg: "account-status payload missing timestamp"}
	}

	status, err := accountStatusFor(ev.EventType, delivery.Data.Status)
	if err != nil {
		return err
	}

	applied, err := h.accounts.UpsertAccountStatus(ctx, domain.ExternalAccount{
		AccountID:   delivery.AccountID,
		Provider:    "linkedin",
		Status:      status,
		LastUpdated: delivery.Timestamp,
	})
	if err != nil {
		return err
	}
	if !applied {
		h.logger.Info("stale account status discarded",
			"event_id", ev.EventID,
			"account_id", delivery.AccountID,
			"status", status,
		)
		return nil
	}

	h.logger.Info("account status updated",
		"account_id", delivery.AccountID,
		"status", status,
	)
	return nil
}

func accountStatusFor(t domain.EventType, payloadStatus string) (domain.AccountStatus, error) {
	switch t {
	case domain.EventAccountConnected:
		return domain.AccountConnected, nil
	case domain.EventAccountDisconnected:
		return domain.AccountDisconnected, nil
	case domain.EventAccountStatusUpdated:
		switch payloadStatus {
		case "pending":
			return domain.AccountPending, nil
		case "connected":
			return domain.AccountConnected, nil
		case "disconnected":
			return domain.AccountDisconnected, nil
		case "error":
			return domain.AccountError, nil
		default:
			return "", &domain.ValidationError{Msg: fmt.Sprintf("unknown account status %q", payloadStatus)}
		}
	default:
		return "", &domain.ValidationError{Msg: fmt.Sprintf("event %s is not an account-status event", t)}
	}
}

// auditHandler covers the messaging and mailing families: the stored event
// row is the whole effect, nothing else mutates.
type auditHandler struct {
	logger *slog.Logger
}

func (h *auditHandler) Apply(_ context.Context, ev domain.WebhookEvent) error {
	h.logger.Info("event recorded",
		"event_id", ev.EventID,
		"event_type", ev.EventType,
		"account_id", ev.AccountID,
	)
	return nil
}

type trackedJobRef struct {
	ExternalJobID string `json:"external_job_id"`
}

func externalJobRef(payload json.RawMessage) string {
	var delivery struct {
		Data trackedJobRef `json:"data"`
	}
	if err := json.Unmarshal(payload, &delivery); err != nil {
		return ""
	}
	return delivery.Data.ExternalJobID
}

// mailTrackingHandler bumps engagement counters for opens and clicks that
// reference a known posting. Events without a job reference are recorded
// and nothing more.
type mailTrackingHandler struct {
	jobs   EngagementStore
	logger *slog.Logger
}

func (h *mailTrackingHandler) Apply(ctx context.Context, ev domain.WebhookEvent) error {
	ref := externalJobRef(ev.Payload)
	if ref == "" {
		return nil
	}

	switch ev.EventType {
	case domain.EventEmailOpened:
		return h.jobs.IncrementEngagement(ctx, ref, store.CounterEmailOpens)
	case domain.EventEmailClicked:
		return h.jobs.IncrementEngagement(ctx, ref, store.CounterEmailClicks)
	default:
		return nil
	}
}

// relationsHandler counts new connections attributed to a posting.
type relationsHandler struct {
	jobs   EngagementStore
	logger *slog.Logger
}

func (h *relationsHandler) Apply(ctx context.Context, ev domain.WebhookEvent) error {
	if ev.EventType != domain.EventConnectionAdded {
		return nil
	}
	ref := externalJobRef(ev.Payload)
	if ref == "" {
		return nil
	}
	return h.jobs.IncrementEngagement(ctx, ref, store.CounterConnections)
}
