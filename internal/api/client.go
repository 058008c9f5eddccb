package api

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// client represents a single WebSocket peer.
type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu    sync.RWMutex
	pairs map[string]bool // empty means every pair
}

// queue enqueues a frame without blocking.
func (c *client) queue(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) wants(pair string) bool {
	if pair == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pairs) == 0 || c.pairs[pair]
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// subscribeMsg narrows the frames a client receives:
//
//	{"type":"SUBSCRIBE","pairs":["eth_mxn"]}
//
// An empty list restores every pair.
type subscribeMsg struct {
	Type  string   `json:"type"`
	Pairs []string `json:"pairs"`
	Ping  int64    `json:"ping"`
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		slog.Info("ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch {
		case msg.Type == "SUBSCRIBE":
			pairs := make(map[string]bool, len(msg.Pairs))
			for _, p := range msg.Pairs {
				pairs[strings.ToLower(p)] = true
			}
			c.mu.Lock()
			c.pairs = pairs
			c.mu.Unlock()
			ack, _ := json.Marshal(map[string]any{"type": "subscribed", "pairs": msg.Pairs})
			c.queue(ack)

		case msg.Ping > 0:
			pong, _ := json.Marshal(map[string]any{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.queue(pong)
		}
	}
}
