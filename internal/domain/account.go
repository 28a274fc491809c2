package domain

import "time"

// AccountStatus is the local view of an external account's usability.
type AccountStatus string

const (
	AccountPending      AccountStatus = "pending"
	AccountConnected    AccountStatus = "connected"
	AccountDisconnected AccountStatus = "disconnected"
	AccountError        AccountStatus = "error"
)

// ExternalAccount mirrors a provider account. Rows are written only by the
// account-status event handler; everyone else reads through the store
// accessor. LastUpdated carries the payload timestamp of the event that
// produced the row, not the delivery time, so out-of-order deliveries
// resolve to the newest payload.
type ExternalAccount struct {
	AccountID   string        `json:"account_id"`
	Provider    string        `json:"provider"`
	Status      AccountStatus `json:"status"`
	LastUpdated time.Time     `json:"last_updated"`
}
