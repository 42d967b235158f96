package models

import "time"

// Message represents a direct message between two users.
type Message struct {
	ID         int       `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	ReceiverID string    `db:"receiver_id" json:"receiver_id"`
	Content    string    `db:"content" json:"content"`
	Seen       bool      `db:"seen" json:"seen"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ConversationSummary is the per-counterpart view a client renders in its
// conversation list. LastMessage is nil when the pair never exchanged messages.
type ConversationSummary struct {
	LastMessage *Message `json:"last_message"`
	UnseenCount int      `json:"unseen_count"`
}

// DeliveryEvent is broadcasted through websockets.
type DeliveryEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}
