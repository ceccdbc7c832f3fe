// Package api provides the HTTP handlers of the bot's dashboard API.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/thibautquentinjacob/trading-bot/internal/execution"
	"github.com/thibautquentinjacob/trading-bot/internal/gateway"
	"github.com/thibautquentinjacob/trading-bot/internal/portfolio"
	"github.com/thibautquentinjacob/trading-bot/internal/trading"
)

// StatusSource reports the trading loop status.
type StatusSource interface {
	Status() trading.Status
}

// AccountSource reports the latest account snapshot.
type AccountSource interface {
	Last() trading.AccountSnapshot
}

// TradeSource lists journaled trades, newest first.
type TradeSource interface {
	GetTrades(limit int) ([]execution.TradeRecord, error)
}

// RiskSource reports the risk manager state.
type RiskSource interface {
	RiskStatus() portfolio.RiskStatus
}

// Deps are the router's data sources. Nil sources disable their routes.
type Deps struct {
	Status  StatusSource
	Account AccountSource
	Trades  TradeSource
	Risk    RiskSource
	Hub     *gateway.Hub
	Health  http.Handler
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

// NewRouter sets up HTTP routes for the API server.
func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			d.Health.ServeHTTP(w, r)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	if d.Status != nil {
		mux.HandleFunc("GET /api/v1/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, d.Status.Status())
		})
	}

	if d.Account != nil {
		mux.HandleFunc("GET /api/v1/account", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, d.Account.Last())
		})
	}

	if d.Risk != nil {
		mux.HandleFunc("GET /api/v1/risk", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, d.Risk.RiskStatus())
		})
	}

	if d.Trades != nil {
		mux.HandleFunc("GET /api/v1/trades", func(w http.ResponseWriter, r *http.Request) {
			limit := 100
			if s := r.URL.Query().Get("limit"); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n <= 0 {
					http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
					return
				}
				limit = min(n, 1000)
			}
			trades, err := d.Trades.GetTrades(limit)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if trades == nil {
				trades = []execution.TradeRecord{}
			}
			writeJSON(w, trades)
		})
	}

	if d.Hub != nil {
		// Envelopes newer than since_seq, for clients catching up over REST.
		mux.HandleFunc("GET /api/v1/events", func(w http.ResponseWriter, r *http.Request) {
			var since int64
			if s := r.URL.Query().Get("since_seq"); s != "" {
				n, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					http.Error(w, "since_seq must be an integer", http.StatusBadRequest)
					return
				}
				since = n
			}
			envs := d.Hub.Replay(since)
			out := make([]json.RawMessage, len(envs))
			for i, e := range envs {
				out[i] = e
			}
			writeJSON(w, map[string]any{"seq": d.Hub.Seq(), "events": out})
		})

		mux.HandleFunc("/ws", d.Hub.HandleWS)
	}

	return mux
}
