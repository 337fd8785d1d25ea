// Package queue defines the domain events exchanged over the message broker,
// the publisher used by the services and the audit-log consumer.
package queue

// Queue names.
const (
	AccountEventsQueue = "account.events"
	MessageSentQueue   = "message.sent"
)

// Account event types.
const (
	EventAccountCreated  = "account.created"
	EventPasswordChanged = "password.changed"
	EventPlanExpired     = "plan_expired"
	EventAccountDeleted  = "account.deleted"
)

// AccountEvent is published on account lifecycle changes.  It carries enough
// for the audit consumer to log without querying the database.
type AccountEvent struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	At        string `json:"at"`
}

// MessageSentEvent is published after a direct message is stored.
type MessageSentEvent struct {
	MessageID   uint64 `json:"message_id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Length      int    `json:"length"`
	SentAt      string `json:"sent_at"`
}
