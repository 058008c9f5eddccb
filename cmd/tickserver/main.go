// cmd/tickserver: simulated Bitso public API for local runs.
// Serves random-walk tickers in the Bitso v3 envelope so the bot can run
// without exchange access (point BITSO_BASE_URL at http://localhost:9001/api/v3).
// Every update is also broadcast over WebSocket.
//
// Config (env vars):
//
//	TICK_SERVER_ADDR  listen address  (default: ":9001")
//	TICK_BOOKS        comma-separated BOOK:START_PRICE (default: "eth_mxn:60000,sol_mxn:3000")
//	TICK_INTERVAL_MS  walk interval milliseconds (default: "1000")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// tickerMsg mirrors the ticker payload of the Bitso API.
type tickerMsg struct {
	Book      string          `json:"book"`
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    decimal.Decimal `json:"volume"`
	VWAP      decimal.Decimal `json:"vwap"`
	CreatedAt string          `json:"created_at"`
}

type envelope struct {
	Success bool        `json:"success"`
	Payload interface{} `json:"payload,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// market holds per-book simulation state.
type market struct {
	book      string
	price     decimal.Decimal
	high, low decimal.Decimal
	volume    decimal.Decimal
}

func (m *market) ticker(now time.Time) tickerMsg {
	spread := m.price.Mul(decimal.NewFromFloat(0.0005)).Round(2)
	return tickerMsg{
		Book:      m.book,
		Last:      m.price,
		Bid:       m.price.Sub(spread),
		Ask:       m.price.Add(spread),
		High:      m.high,
		Low:       m.low,
		Volume:    m.volume,
		VWAP:      m.high.Add(m.low).Div(decimal.NewFromInt(2)).Round(2),
		CreatedAt: now.UTC().Format("2006-01-02T15:04:05-07:00"),
	}
}

// ─── Exchange state ───────────────────────────────────────────────────────────

type exchange struct {
	mu      sync.RWMutex
	markets map[string]*market
	order   []string
	rng     *rand.Rand
}

// walk applies a small random walk (±0.5%) to every book.
func (e *exchange) walk() []tickerMsg {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	out := make([]tickerMsg, 0, len(e.order))
	for _, book := range e.order {
		m := e.markets[book]
		pct := (e.rng.Float64() - 0.5) / 100
		next := m.price.Mul(decimal.NewFromFloat(1 + pct)).Round(2)
		if next.LessThanOrEqual(decimal.Zero) {
			next = decimal.New(1, -2)
		}
		m.price = next
		if next.GreaterThan(m.high) {
			m.high = next
		}
		if next.LessThan(m.low) {
			m.low = next
		}
		m.volume = m.volume.Add(decimal.NewFromFloat(e.rng.Float64()).Round(8))
		out = append(out, m.ticker(now))
	}
	return out
}

func (e *exchange) ticker(book string) (tickerMsg, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.markets[book]
	if !ok {
		return tickerMsg{}, false
	}
	return m.ticker(time.Now()), true
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop update
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[tickserver] upgrade error: %v", err)
			return
		}
		log.Printf("[tickserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[tickserver] client disconnected: %s", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── REST handlers ────────────────────────────────────────────────────────────

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func tickerHandler(e *exchange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		book := strings.ToLower(r.URL.Query().Get("book"))
		t, ok := e.ticker(book)
		if !ok {
			writeEnvelope(w, http.StatusBadRequest, envelope{
				Error: &apiError{Code: "0301", Message: "Unknown OrderBook " + book},
			})
			return
		}
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Payload: t})
	}
}

func booksHandler(e *exchange) http.HandlerFunc {
	type bookInfo struct {
		Book          string `json:"book"`
		MinimumAmount string `json:"minimum_amount"`
		MaximumAmount string `json:"maximum_amount"`
		MinimumPrice  string `json:"minimum_price"`
		MaximumPrice  string `json:"maximum_price"`
		MinimumValue  string `json:"minimum_value"`
		MaximumValue  string `json:"maximum_value"`
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		e.mu.RLock()
		books := make([]bookInfo, 0, len(e.order))
		for _, b := range e.order {
			books = append(books, bookInfo{
				Book:          b,
				MinimumAmount: "0.001",
				MaximumAmount: "5000",
				MinimumPrice:  "0.01",
				MaximumPrice:  "10000000",
				MinimumValue:  "10",
				MaximumValue:  "10000000",
			})
		}
		e.mu.RUnlock()
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Payload: books})
	}
}

func runGenerator(e *exchange, h *hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		for _, t := range e.walk() {
			b, err := json.Marshal(t)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tickserver] starting simulated exchange...")

	addr := envOrDefault("TICK_SERVER_ADDR", ":9001")
	booksEnv := envOrDefault("TICK_BOOKS", "eth_mxn:60000,sol_mxn:3000")
	intervalMs := envIntOrDefault("TICK_INTERVAL_MS", 1000)

	ex := &exchange{
		markets: make(map[string]*market),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, m := range parseMarkets(booksEnv) {
		ex.markets[m.book] = m
		ex.order = append(ex.order, m.book)
	}
	if len(ex.order) == 0 {
		log.Fatalf("[tickserver] no books configured via TICK_BOOKS")
	}
	log.Printf("[tickserver] books: %v, walk interval: %dms", ex.order, intervalMs)

	h := newHub()
	go runGenerator(ex, h, time.Duration(intervalMs)*time.Millisecond)

	http.HandleFunc("/api/v3/ticker", tickerHandler(ex))
	http.HandleFunc("/api/v3/available_books", booksHandler(ex))
	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})

	log.Printf("[tickserver] listening on %s  (REST: http://localhost%s/api/v3)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[tickserver] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseMarkets(s string) []*market {
	var result []*market
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		seg := strings.SplitN(part, ":", 2)
		if len(seg) != 2 {
			log.Printf("[tickserver] skipping invalid book spec: %q", part)
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(seg[1]))
		if err != nil || !price.IsPositive() {
			log.Printf("[tickserver] skipping book with bad price: %q", part)
			continue
		}
		result = append(result, &market{
			book:   strings.ToLower(strings.TrimSpace(seg[0])),
			price:  price,
			high:   price,
			low:    price,
			volume: decimal.Zero,
		})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
