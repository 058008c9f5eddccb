package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Envelope is the frame sent to WebSocket clients.
type Envelope struct {
	Type    string          `json:"type"` // "decision", "fill", "alert"
	Pair    string          `json:"pair,omitempty"`
	Seq     int64           `json:"seq"`
	TS      time.Time       `json:"ts"`
	Data    json.RawMessage `json:"data"`
	Initial bool            `json:"initial,omitempty"`
}

// Hub fans bot events out to WebSocket clients. Slow clients drop frames
// rather than block the bot.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	latest  map[string]Envelope // last decision per pair
	seq     int64

	replay *replayBuffer
	now    func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		latest:  make(map[string]Envelope),
		replay:  newReplayBuffer(512),
		now:     time.Now,
	}
}

// Publish broadcasts one event of type kind. data must be valid JSON.
func (h *Hub) Publish(kind, pair string, data []byte) {
	h.mu.Lock()
	h.seq++
	env := Envelope{Type: kind, Pair: pair, Seq: h.seq, TS: h.now().UTC(), Data: data}
	frame, err := json.Marshal(env)
	if err != nil {
		h.mu.Unlock()
		slog.Warn("ws envelope marshal failed", "type", kind, "error", err)
		return
	}
	if kind == "decision" {
		h.latest[pair] = env
	}
	h.replay.push(env.Seq, frame)

	for c := range h.clients {
		if !c.wants(pair) {
			continue
		}
		select {
		case c.send <- frame:
		default:
		}
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection and registers the client. A client
// reconnecting with ?last_seq=N first receives the buffered frames after N;
// a fresh client receives the latest decision of every pair.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade error", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64), hub: h}

	h.mu.Lock()
	if s := r.URL.Query().Get("last_seq"); s != "" {
		if last, err := strconv.ParseInt(s, 10, 64); err == nil {
			for _, frame := range h.replay.after(last) {
				c.queue(frame)
			}
		}
	} else {
		for _, env := range h.latest {
			env.Initial = true
			if frame, err := json.Marshal(env); err == nil {
				c.queue(frame)
			}
		}
	}
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("ws client connected", "clients", count)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
