package domain

import (
	"encoding/json"
	"time"
)

// EventType is one of the provider-defined webhook event subtypes.
type EventType string

const (
	EventAccountStatusUpdated EventType = "account.status_updated"
	EventAccountConnected     EventType = "account.connected"
	EventAccountDisconnected  EventType = "account.disconnected"

	EventMessageSent     EventType = "message.sent"
	EventMessageReceived EventType = "message.received"
	EventMessageFailed   EventType = "message.failed"

	EventEmailSent      EventType = "email.sent"
	EventEmailDelivered EventType = "email.delivered"
	EventEmailFailed    EventType = "email.failed"
	EventEmailBounced   EventType = "email.bounced"

	EventEmailOpened       EventType = "email.opened"
	EventEmailClicked      EventType = "email.clicked"
	EventEmailUnsubscribed EventType = "email.unsubscribed"

	EventConnectionAdded   EventType = "connection.added"
	EventConnectionRemoved EventType = "connection.removed"
	EventProfileUpdated    EventType = "profile.updated"
)

// WebhookFamily groups event types by the provider webhook that delivers
// them. One intake endpoint exists per family.
type WebhookFamily string

const (
	FamilyAccountStatus  WebhookFamily = "account-status"
	FamilyMessaging      WebhookFamily = "messaging"
	FamilyMailing        WebhookFamily = "mailing"
	FamilyMailTracking   WebhookFamily = "mail-tracking"
	FamilyUsersRelations WebhookFamily = "users-relations"
)

var eventFamilies = map[EventType]WebhookFamily{
	EventAccountStatusUpdated: FamilyAccountStatus,
	EventAccountConnected:     FamilyAccountStatus,
	EventAccountDisconnected:  FamilyAccountStatus,

	EventMessageSent:     FamilyMessaging,
	EventMessageReceived: FamilyMessaging,
	EventMessageFailed:   FamilyMessaging,

	EventEmailSent:      FamilyMailing,
	EventEmailDelivered: FamilyMailing,
	EventEmailFailed:    FamilyMailing,
	EventEmailBounced:   FamilyMailing,

	EventEmailOpened:       FamilyMailTracking,
	EventEmailClicked:      FamilyMailTracking,
	EventEmailUnsubscribed: FamilyMailTracking,

	EventConnectionAdded:   FamilyUsersRelations,
	EventConnectionRemoved: FamilyUsersRelations,
	EventProfileUpdated:    FamilyUsersRelations,
}

// Family returns the webhook family an event type belongs to.
// The second return value is false for types outside the known taxonomy.
func Family(t EventType) (WebhookFamily, bool) {
	f, ok := eventFamilies[t]
	return f, ok
}

// WebhookEvent is one durably recorded webhook delivery. Rows are
// append-only: processing outcome is updated in place, the row itself
// is never deleted.
type WebhookEvent struct {
	EventID         string          `json:"event_id"`
	EventType       EventType       `json:"event_type"`
	AccountID       string          `json:"account_id"`
	ReceivedAt      time.Time       `json:"received_at"`
	Payload         json.RawMessage `json:"payload"`
	Processed       bool            `json:"processed"`
	ProcessingError *string         `json:"processing_error,omitempty"`
	AttemptCount    int             `json:"attempt_count"`
}

// Delivery is the wire shape the provider posts to every intake endpoint.
// Data is kept opaque; only the handler for the event type parses it.
type Delivery struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	AccountID string          `json:"account_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
