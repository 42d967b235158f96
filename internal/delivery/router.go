package delivery

import (
	"context"
	"errors"
	"strings"

	"dm-relay/internal/models"
	"dm-relay/internal/observability"
	"dm-relay/internal/repositories"
)

var (
	ErrEmptyContent    = errors.New("content is required")
	ErrMissingIdentity = errors.New("sender and receiver are required")
)

// Pusher delivers a persisted message to the recipient's live connections and
// reports how many received it. Implemented by the websocket hub.
type Pusher interface {
	PushMessage(userID string, msg models.Message) int
	IsOnline(userID string) bool
}

// Router persists each message and then pushes it to the recipient if a
// session is live. Persistence is authoritative; the push is best-effort and
// an offline recipient simply pulls the history later.
type Router struct {
	messages repositories.MessageRepository
	pusher   Pusher
}

// NewRouter constructs a Router.
func NewRouter(messages repositories.MessageRepository, pusher Pusher) *Router {
	return &Router{messages: messages, pusher: pusher}
}

// Send validates, persists, and routes a message. The returned Message is the
// stored row with its assigned id and timestamp; push failures never surface
// here.
func (r *Router) Send(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	if senderID == "" || receiverID == "" {
		return models.Message{}, ErrMissingIdentity
	}
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}

	msg, err := r.messages.CreateMessage(ctx, senderID, receiverID, content)
	if err != nil {
		return models.Message{}, err
	}

	if r.pusher != nil && r.pusher.IsOnline(receiverID) {
		delivered := r.pusher.PushMessage(receiverID, msg)
		observability.AddMessagesDelivered(delivered)
	}
	observability.IncMessagesSent()

	return msg, nil
}
