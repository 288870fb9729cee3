package adapters

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/mirrorsync/internal/server/events"
	"github.com/agentstation/mirrorsync/internal/server/sse"
	ws "github.com/agentstation/mirrorsync/internal/server/websocket"
	"github.com/agentstation/mirrorsync/pkg/records"
)

func TestSubscribersNeverFail(t *testing.T) {
	logger := zerolog.Nop()
	subs := []events.Subscriber{
		NewSSESubscriber(sse.NewBroadcaster(&logger)),
		NewWebSocketSubscriber(ws.NewHub(&logger, nil)),
	}
	for _, sub := range subs {
		// Transports are not running; Send must still return promptly.
		for i := 0; i < 300; i++ {
			if err := sub.Send(events.Event{ID: uint64(i), Type: events.RecordAdded}); err != nil {
				t.Fatalf("%T: Send returned %v", sub, err)
			}
		}
		if err := sub.Close(); err != nil {
			t.Errorf("%T: Close returned %v", sub, err)
		}
	}
}

func TestBrokerToWebSocket(t *testing.T) {
	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := events.NewBroker(&logger)
	hub := ws.NewHub(&logger, nil)
	go broker.Run(ctx)
	go hub.Run(ctx)
	broker.Subscribe(NewWebSocketSubscriber(hub))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 || broker.SubscriberCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client or subscriber not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.Publish(events.KeyReleased, events.QuarantinePayload{Origin: records.OriginForm, Key: "C"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg struct {
		ID   uint64 `json:"id"`
		Type string `json:"type"`
		Data struct {
			Origin string `json:"origin"`
			Key    string `json:"registration_number"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "key.released" || msg.ID != 1 || msg.Data.Key != "C" || msg.Data.Origin != "form" {
		t.Errorf("unexpected message %+v", msg)
	}
}
