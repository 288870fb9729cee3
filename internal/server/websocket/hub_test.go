package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	hub := NewHub(&logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient("c1", hub, nil)
	hub.Register(client)
	waitClients(t, hub, 1)

	hub.Broadcast(Message{Type: "record.deleted", Timestamp: time.Now(), Data: map[string]any{"registration_number": "B"}})

	select {
	case got := <-client.send:
		if got.Type != "record.deleted" {
			t.Errorf("unexpected type %s", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
	}
}

func TestHubUnregister(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient("c1", hub, nil)
	hub.Register(client)
	waitClients(t, hub, 1)

	hub.Unregister(client)
	waitClients(t, hub, 0)

	if _, ok := <-client.send; ok {
		t.Error("expected send channel to be closed")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient("slow", hub, nil)
	hub.Register(client)
	waitClients(t, hub, 1)

	for i := 0; i < cap(client.send)+1; i++ {
		hub.Broadcast(Message{Type: "sync.completed"})
	}
	waitClients(t, hub, 0)
}

func TestHubShutdown(t *testing.T) {
	hub, cancel := startHub(t)

	clients := []*Client{NewClient("a", hub, nil), NewClient("b", hub, nil)}
	for _, c := range clients {
		hub.Register(c)
	}
	waitClients(t, hub, 2)

	cancel()
	waitClients(t, hub, 0)

	// Register after shutdown must not block.
	done := make(chan struct{})
	go func() {
		hub.Register(NewClient("late", hub, nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Register blocked after shutdown")
	}
}

func TestServeHTTP(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitClients(t, hub, 1)
	hub.Broadcast(Message{ID: 3, Type: "key.quarantined", Data: map[string]any{"registration_number": "C"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "key.quarantined" || msg.ID != 3 {
		t.Errorf("unexpected message %+v", msg)
	}

	_ = conn.Close()
	waitClients(t, hub, 0)
}
