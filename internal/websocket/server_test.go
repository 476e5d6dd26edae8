package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wsusd/wsusd/internal/offering"
	"github.com/wsusd/wsusd/internal/workerpool"
)

func newTestServer(t *testing.T) (*EventServer, *offering.Bus, *httptest.Server) {
	t.Helper()
	bus := offering.NewBus()
	pool := workerpool.New(2, 8)
	t.Cleanup(func() { pool.Drain(context.Background()) })

	es := NewEventServer(bus, pool)
	srv := httptest.NewServer(es)
	t.Cleanup(srv.Close)
	return es, bus, srv
}

func dialEventStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial event stream: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventServerRelaysPublishedEvents(t *testing.T) {
	_, bus, srv := newTestServer(t)
	conn := dialEventStream(t, srv)

	published := offering.UnapprovedEvent{Phase: "leaf"}
	time.AfterFunc(50*time.Millisecond, func() { bus.Publish(published) })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var msg eventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal event message: %v", err)
	}
	if msg.Type != "unapproved" || msg.Phase != "leaf" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestEventServerClientDisconnectIsTracked(t *testing.T) {
	es, _, srv := newTestServer(t)
	conn := dialEventStream(t, srv)

	waitForClientCount(t, es, 1)

	conn.Close()

	waitForClientCount(t, es, 0)
}

func waitForClientCount(t *testing.T, es *EventServer, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		es.mu.Lock()
		got := len(es.clients)
		es.mu.Unlock()
		if got == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count did not reach %d in time", want)
}
