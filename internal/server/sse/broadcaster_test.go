package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startBroadcaster(t *testing.T) (*Broadcaster, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	b := NewBroadcaster(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	t.Cleanup(cancel)
	return b, cancel
}

func waitClients(t *testing.T, b *Broadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, b.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcasterFanOut(t *testing.T) {
	b, _ := startBroadcaster(t)

	c1 := make(chan Event, 4)
	c2 := make(chan Event, 4)
	b.newClients <- c1
	b.newClients <- c2
	waitClients(t, b, 2)

	b.Broadcast(Event{Event: "record.added", ID: "1", Data: map[string]any{"registration_number": "A"}})

	for i, c := range []chan Event{c1, c2} {
		select {
		case got := <-c:
			if got.Event != "record.added" || got.ID != "1" {
				t.Errorf("client %d: unexpected event %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Errorf("client %d did not receive event", i)
		}
	}
}

func TestBroadcasterShutdown(t *testing.T) {
	b, cancel := startBroadcaster(t)

	c := make(chan Event, 1)
	b.newClients <- c
	waitClients(t, b, 1)

	cancel()
	select {
	case _, ok := <-c:
		if ok {
			t.Error("expected client channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed on shutdown")
	}
	waitClients(t, b, 0)
}

func TestServeHTTPStreams(t *testing.T) {
	b, _ := startBroadcaster(t)
	srv := httptest.NewServer(b)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
	waitClients(t, b, 1)

	b.Broadcast(Event{Event: "sync.completed", ID: "7", Data: map[string]any{"origin": "sheet"}})

	reader := bufio.NewReader(resp.Body)
	var frames []string
	var frame strings.Builder
	deadline := time.Now().Add(2 * time.Second)
	for len(frames) < 2 && time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		if line == "\n" {
			frames = append(frames, frame.String())
			frame.Reset()
			continue
		}
		frame.WriteString(line)
	}

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !strings.HasPrefix(frames[0], "event: connected\n") {
		t.Errorf("unexpected first frame %q", frames[0])
	}
	want := "event: sync.completed\nid: 7\ndata: {\"origin\":\"sheet\"}\n"
	if frames[1] != want {
		t.Errorf("unexpected frame %q, want %q", frames[1], want)
	}
}

func TestServeHTTPAfterShutdown(t *testing.T) {
	b, cancel := startBroadcaster(t)
	cancel()
	<-b.done

	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", w.Code)
	}
}
