package model

import "time"

// Message is a direct message between the coach and one client.  ReadAt is
// set when the recipient fetches the conversation.
type Message struct {
	ID          uint64     `json:"id"`
	SenderID    string     `json:"sender_id"`
	RecipientID string     `json:"recipient_id"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at"`
}

// Thread summarizes a conversation for the inbox view.
type Thread struct {
	OtherID       string     `json:"other_id"`
	Name          string     `json:"name"`
	Email         *string    `json:"email"`
	LastBody      *string    `json:"last_body"`
	LastCreatedAt *time.Time `json:"last_created_at"`
	UnreadCount   int        `json:"unread_count"`
}
