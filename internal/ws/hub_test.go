package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"dm-relay/internal/models"
)

func TestHubJoinAndLeave(t *testing.T) {
	hub := NewHub()
	client := &Client{}

	hub.Join("u1", client, ConnInfo{ConnID: "c1", UserID: "u1"})
	if !hub.IsOnline("u1") {
		t.Fatalf("expected u1 to be online after join")
	}
	if got := len(hub.ConnectionsFor("u1")); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}

	hub.Leave(client)
	if hub.IsOnline("u1") {
		t.Fatalf("expected u1 to be offline after leave")
	}
	if len(hub.rooms) != 0 {
		t.Fatalf("expected empty room map after last leave")
	}
	if len(hub.owner) != 0 {
		t.Fatalf("expected owner index to be cleared")
	}
}

func TestHubJoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	client := &Client{}

	hub.Join("u1", client, ConnInfo{ConnID: "c1"})
	hub.Join("u1", client, ConnInfo{ConnID: "c1"})

	if got := len(hub.ConnectionsFor("u1")); got != 1 {
		t.Fatalf("expected joining twice to keep 1 connection, got %d", got)
	}
}

func TestHubMultipleConnectionsPerUser(t *testing.T) {
	hub := NewHub()
	first := &Client{}
	second := &Client{}

	hub.Join("u1", first, ConnInfo{ConnID: "c1"})
	hub.Join("u1", second, ConnInfo{ConnID: "c2"})

	if got := len(hub.ConnectionsFor("u1")); got != 2 {
		t.Fatalf("expected both connections in the room, got %d", got)
	}

	hub.Leave(first)
	if got := len(hub.ConnectionsFor("u1")); got != 1 {
		t.Fatalf("expected one connection left, got %d", got)
	}
	if !hub.IsOnline("u1") {
		t.Fatalf("expected u1 to stay online while one connection remains")
	}
}

func TestHubRejoinMovesConnection(t *testing.T) {
	hub := NewHub()
	client := &Client{}

	hub.Join("u1", client, ConnInfo{ConnID: "c1"})
	hub.Join("u2", client, ConnInfo{ConnID: "c1"})

	if hub.IsOnline("u1") {
		t.Fatalf("expected the connection to be detached from u1")
	}
	if got := len(hub.ConnectionsFor("u2")); got != 1 {
		t.Fatalf("expected the connection to belong to u2, got %d", got)
	}
}

func TestHubLeaveUnknownConnIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Leave(&Client{})

	if len(hub.rooms) != 0 || len(hub.owner) != 0 {
		t.Fatalf("expected hub to stay empty")
	}
}

func TestHubConcurrentJoinLeaveLookup(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &Client{}
			hub.Join("u1", client, ConnInfo{})
			hub.ConnectionsFor("u1")
			hub.IsOnline("u1")
			hub.Leave(client)
		}()
	}
	wg.Wait()

	if hub.IsOnline("u1") {
		t.Fatalf("expected no connections to survive their leave")
	}
	if len(hub.owner) != 0 {
		t.Fatalf("expected owner index to be empty, got %d entries", len(hub.owner))
	}
}

// dialDrainedConn dials a throwaway websocket server that discards every
// inbound frame, so tests can exercise the write side of a real connection.
func dialDrainedConn(t *testing.T) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientSerializesConcurrentWrites(t *testing.T) {
	client := NewClient(dialDrainedConn(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if err := client.write([]byte(`{"type":"message"}`)); err != nil {
					t.Errorf("write: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestHubPushRacesErrorWritesOnOneConnection(t *testing.T) {
	hub := NewHub()
	handler := NewRealtimeHandler(hub, nil, nil)
	client := NewClient(dialDrainedConn(t))
	hub.Join("u1", client, ConnInfo{ConnID: "c1", UserID: "u1"})

	msg := models.Message{ID: 1, SenderID: "u2", ReceiverID: "u1", Content: "hi"}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			hub.PushMessage("u1", msg)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			handler.writeError(client, "bad frame")
		}
	}()
	wg.Wait()

	if !hub.IsOnline("u1") {
		t.Fatalf("expected the connection to survive concurrent writes")
	}
}
