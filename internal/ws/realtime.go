package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"dm-relay/internal/auth"
	"dm-relay/internal/delivery"
	"dm-relay/internal/models"
	"dm-relay/internal/observability"
)

// RealtimeHandler accepts websocket connections, binds them to an
// authenticated identity on an explicit join frame, and unbinds them the
// moment the transport drops.
type RealtimeHandler struct {
	hub      *Hub
	router   *delivery.Router
	verifier auth.TokenVerifier
}

// NewRealtimeHandler constructs a RealtimeHandler.
func NewRealtimeHandler(hub *Hub, router *delivery.Router, verifier auth.TokenVerifier) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, router: router, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is an inbound realtime frame.
type clientFrame struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Content    string `json:"content,omitempty"`
}

// Handle upgrades the connection and runs its read loop. The handshake
// requires the same verified token as the REST paths; the join frame can only
// bind the identity the token proved.
func (h *RealtimeHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dm-relay/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.verifier.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycleEvent(ctx, "ws_connect", info, "")

	// The request context dies when this handler returns, but the read loop
	// outlives the handshake by the whole life of the connection. Keep the
	// trace and request values while severing the cancellation.
	go h.readLoop(context.WithoutCancel(ctx), NewClient(conn), info)
}

func (h *RealtimeHandler) readLoop(ctx context.Context, client *Client, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.Leave(client)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycleEvent(ctx, "ws_disconnect", info, closeReason)
		client.Close()
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycleEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.writeError(client, "malformed frame")
			continue
		}

		switch frame.Type {
		case "join":
			// The registry only ever binds the identity the token proved.
			if frame.UserID != "" && frame.UserID != info.UserID {
				h.writeError(client, "identity mismatch")
				continue
			}
			h.hub.Join(info.UserID, client, info)
			observability.IncWSEvent("join")
		case "message":
			// The realtime path is a notification of a persisted message,
			// never a second write path: it goes through the same router.
			if _, err := h.router.Send(ctx, info.UserID, frame.ReceiverID, frame.Content); err != nil {
				if errors.Is(err, delivery.ErrEmptyContent) || errors.Is(err, delivery.ErrMissingIdentity) {
					h.writeError(client, err.Error())
					continue
				}
				h.writeError(client, "failed to send message")
			}
		default:
			h.writeError(client, "unknown frame type")
		}
	}
}

func (h *RealtimeHandler) writeError(client *Client, reason string) {
	payload, _ := json.Marshal(models.DeliveryEvent{Type: "error", Error: reason})
	_ = client.write(payload)
}

func (h *RealtimeHandler) publishLifecycleEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.dm", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}
