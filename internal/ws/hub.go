package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"dm-relay/internal/models"
	"dm-relay/internal/observability"
)

// Hub is the session registry: it maps a user identity to the set of live
// websocket connections bound to it. A connection belongs to at most one
// user's set at any time; rebinding detaches the previous owner first.
type Hub struct {
	rooms    map[string]map[*Client]bool
	owner    map[*Client]string
	connInfo map[*Client]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]bool),
		owner:    make(map[*Client]string),
		connInfo: make(map[*Client]ConnInfo),
	}
}

// Join binds a connection to a user identity. Joining again with the same
// pair is a no-op; joining under a different identity moves the connection.
func (h *Hub) Join(userID string, client *Client, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.owner[client]; ok && prev != userID {
		h.detachLocked(client, prev)
	}
	if _, ok := h.rooms[userID]; !ok {
		h.rooms[userID] = make(map[*Client]bool)
	}
	h.rooms[userID][client] = true
	h.owner[client] = userID
	h.connInfo[client] = info
}

// Leave removes a connection from whichever user set currently holds it.
// Called on every transport disconnect so a dead connection can never stay a
// delivery target.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userID, ok := h.owner[client]; ok {
		h.detachLocked(client, userID)
	}
	delete(h.connInfo, client)
}

func (h *Hub) detachLocked(client *Client, userID string) {
	if conns, ok := h.rooms[userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.rooms, userID)
		}
	}
	delete(h.owner, client)
}

// ConnectionsFor returns the live connections bound to the user.
func (h *Hub) ConnectionsFor(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Client, 0, len(h.rooms[userID]))
	for client := range h.rooms[userID] {
		conns = append(conns, client)
	}
	return conns
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID]) > 0
}

// PushMessage sends a delivery event to every connection bound to the user
// and returns how many writes succeeded. A failed write closes and unbinds
// the connection; it never propagates to the caller.
func (h *Hub) PushMessage(userID string, msg models.Message) int {
	event := models.DeliveryEvent{Type: "message", Message: &msg}
	payload, _ := json.Marshal(event)

	delivered := 0
	for _, client := range h.ConnectionsFor(userID) {
		if err := client.write(payload); err != nil {
			log.Printf("websocket write error: %v", err)
			client.Close()
			h.publishWSError(userID, client, err)
			h.Leave(client)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) publishWSError(userID string, client *Client, err error) {
	h.mu.RLock()
	info, ok := h.connInfo[client]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   userID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.dm", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
