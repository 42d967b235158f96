package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dm-relay/internal/delivery"
	"dm-relay/internal/models"
	"dm-relay/internal/repositories"
	"dm-relay/internal/telemetry"
)

// MessageHandler manages direct-message endpoints.
type MessageHandler struct {
	router   *delivery.Router
	receipts *delivery.ReceiptTracker
	messages repositories.MessageRepository
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(router *delivery.Router, receipts *delivery.ReceiptTracker, messages repositories.MessageRepository, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		router:   router,
		receipts: receipts,
		messages: messages,
		audit:    audit,
	}
}

// SendMessage persists a message and pushes it to the recipient's live
// sessions. The response is the stored message whether or not a push landed.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
		Content    string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver_id and content are required"})
		return
	}
	if _, err := uuid.Parse(req.ReceiverID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver id"})
		return
	}

	msg, err := h.router.Send(c.Request.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		if errors.Is(err, delivery.ErrEmptyContent) || errors.Is(err, delivery.ErrMissingIdentity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("message %d sent", msg.ID), requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusCreated, msg)
}

// GetConversation returns the full ordered history with the counterpart.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	counterpartID, ok := counterpartParam(c)
	if !ok {
		return
	}
	userID := c.GetString("userID")

	msgs, err := h.messages.History(c.Request.Context(), userID, counterpartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetSummary returns the last message and unseen count for the conversation.
func (h *MessageHandler) GetSummary(c *gin.Context) {
	counterpartID, ok := counterpartParam(c)
	if !ok {
		return
	}
	userID := c.GetString("userID")

	summary, err := h.receipts.Summary(c.Request.Context(), userID, counterpartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// MarkSeen marks everything the counterpart sent to the caller as seen.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	counterpartID, ok := counterpartParam(c)
	if !ok {
		return
	}
	userID := c.GetString("userID")

	modified, err := h.receipts.MarkConversationSeen(c.Request.Context(), userID, counterpartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark seen"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"modified_count": modified})
}

func counterpartParam(c *gin.Context) (string, bool) {
	id := c.Param("user_id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return "", false
	}
	return id, true
}
