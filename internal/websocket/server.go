// Package websocket implements the admin event stream (SPEC_FULL.md
// §4.13): an accept-side WebSocket server fanning offering.UnapprovedEvent
// out to subscribed admin clients. Write pump, ping/pong keepalive and
// buffered-send-channel idiom are grounded on the teacher agent's dial-out
// websocket client (not part of this repository); here the server accepts
// rather than dials.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wsusd/wsusd/internal/logging"
	"github.com/wsusd/wsusd/internal/offering"
	"github.com/wsusd/wsusd/internal/workerpool"
)

var log = logging.L("websocket")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Admin clients are expected to be operator tooling, not browser
	// pages; same-origin checks aren't meaningful here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventMessage is the wire shape of one pushed UnapprovedEvent.
type eventMessage struct {
	Type       string   `json:"type"`
	Phase      string   `json:"phase"`
	Identities []string `json:"identities"`
}

// EventServer accepts WebSocket upgrades for the admin event stream and
// fans offering.Bus events out to every connected subscriber. A bounded
// workerpool.Pool guards against one slow subscriber stalling the
// offering engine's Publish call.
type EventServer struct {
	bus  *offering.Bus
	pool *workerpool.Pool

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn     *websocket.Conn
	sendChan chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

// NewEventServer creates an event server fed by bus. fanoutPool bounds the
// number of concurrent per-subscriber sends so a stalled client can't
// block the others or the engine publishing the event.
func NewEventServer(bus *offering.Bus, fanoutPool *workerpool.Pool) *EventServer {
	return &EventServer{
		bus:     bus,
		pool:    fanoutPool,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and streams UnapprovedEvents to it
// until the client disconnects, a write to it fails, or the event
// subscription is closed.
func (s *EventServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("event stream upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &client{
		conn:     conn,
		sendChan: make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	log.Info("admin event stream client connected", "remote", r.RemoteAddr)

	events, cancel := s.bus.Subscribe()
	defer cancel()

	go s.relay(c, events)

	conn.SetReadLimit(maxMessageSize)
	c.writePump()

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	log.Info("admin event stream client disconnected", "remote", r.RemoteAddr)
}

// relay drains events from the subscription and hands each one to the
// fanout pool, which serializes and enqueues it on c.sendChan.
func (s *EventServer) relay(c *client, events <-chan offering.UnapprovedEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.stop()
				return
			}
			if !s.pool.Submit(func() { c.send(ev) }) {
				log.Warn("event stream fanout pool rejected event, subscriber will miss it")
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) send(ev offering.UnapprovedEvent) {
	ids := make([]string, 0, len(ev.Identities))
	for _, id := range ev.Identities {
		ids = append(ids, id.String())
	}
	data, err := json.Marshal(eventMessage{Type: "unapproved", Phase: ev.Phase, Identities: ids})
	if err != nil {
		log.Error("failed to marshal event stream message", "error", err)
		return
	}

	select {
	case c.sendChan <- data:
	case <-c.done:
	default:
		log.Warn("event stream client send buffer full, dropping event")
	}
}

func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// writePump owns the connection's write side: subscriber payloads and
// periodic pings. Runs on the goroutine that called ServeHTTP, returning
// when the connection closes so the handler can clean up.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()
	defer c.stop()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := c.conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case <-readDone:
			return
		case msg := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("event stream write error", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
