package delivery

import (
	"context"

	"dm-relay/internal/models"
	"dm-relay/internal/repositories"
)

// ReceiptTracker computes conversation summaries and transitions messages to
// seen. Marking seen is always an explicit client action, never a side effect
// of reading history.
type ReceiptTracker struct {
	messages repositories.MessageRepository
}

// NewReceiptTracker constructs a ReceiptTracker.
func NewReceiptTracker(messages repositories.MessageRepository) *ReceiptTracker {
	return &ReceiptTracker{messages: messages}
}

// Summary returns the newest message of the conversation and how many
// messages from the counterpart the viewer has not seen.
func (t *ReceiptTracker) Summary(ctx context.Context, viewerID, counterpartID string) (models.ConversationSummary, error) {
	last, err := t.messages.LastMessage(ctx, viewerID, counterpartID)
	if err != nil {
		return models.ConversationSummary{}, err
	}
	unseen, err := t.messages.CountUnseen(ctx, counterpartID, viewerID)
	if err != nil {
		return models.ConversationSummary{}, err
	}
	return models.ConversationSummary{LastMessage: last, UnseenCount: unseen}, nil
}

// MarkConversationSeen marks everything the counterpart sent to the viewer as
// seen and returns the number of messages that changed.
func (t *ReceiptTracker) MarkConversationSeen(ctx context.Context, viewerID, counterpartID string) (int, error) {
	return t.messages.MarkSeen(ctx, counterpartID, viewerID)
}
