// Package api serves the bot's state over HTTP and streams its decisions
// and fills over WebSocket.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pitrader/internal/engine"
	"pitrader/internal/model"
	"pitrader/internal/portfolio"
)

// Source is the read side of the running bot.
type Source interface {
	Positions() []model.Position
	Trades() []portfolio.Trade
	Stats() portfolio.PerformanceStats
	Summary() portfolio.PnLSummary
	Decisions() []engine.Decision
}

// NewRouter sets up HTTP routes for the API server. A nil hub disables /ws.
func NewRouter(src Source, hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/v1/positions", getOnly(func(w http.ResponseWriter, r *http.Request) {
		open := []model.Position{}
		for _, p := range src.Positions() {
			if p.IsOpen || r.URL.Query().Get("all") == "true" {
				open = append(open, p)
			}
		}
		writeJSON(w, http.StatusOK, open)
	}))

	mux.HandleFunc("/api/v1/trades", getOnly(func(w http.ResponseWriter, r *http.Request) {
		trades := src.Trades()
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			if n < len(trades) {
				trades = trades[len(trades)-n:]
			}
		}
		if trades == nil {
			trades = []portfolio.Trade{}
		}
		writeJSON(w, http.StatusOK, trades)
	}))

	mux.HandleFunc("/api/v1/stats", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.Stats())
	}))

	mux.HandleFunc("/api/v1/summary", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.Summary())
	}))

	mux.HandleFunc("/api/v1/decisions", getOnly(func(w http.ResponseWriter, r *http.Request) {
		decisions := src.Decisions()
		if pair := r.URL.Query().Get("pair"); pair != "" {
			for _, d := range decisions {
				if d.Pair == pair {
					writeJSON(w, http.StatusOK, d)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no decision for " + pair})
			return
		}
		if decisions == nil {
			decisions = []engine.Decision{}
		}
		writeJSON(w, http.StatusOK, decisions)
	}))

	if hub != nil {
		mux.Handle("/ws", hub)
	}
	return mux
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
