package trading

import (
	"sync"
	"time"

	"github.com/thibautquentinjacob/trading-bot/internal/quote"
	"github.com/thibautquentinjacob/trading-bot/internal/strategy"
)

// Session is the per-loop state shared across ticks. Only the tick in
// flight writes to it; status readers take the lock.
type Session struct {
	Quotes *quote.Repository

	mu         sync.RWMutex
	lastTick   time.Time
	lastBuy    strategy.Decision
	lastSell   strategy.Decision
	lastError  string
	marketOpen bool
	trades     int
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{Quotes: quote.NewRepository(512)}
}

func (s *Session) recordDecisions(at time.Time, buy, sell strategy.Decision) {
	s.mu.Lock()
	s.lastTick = at
	s.lastBuy = buy
	s.lastSell = sell
	s.mu.Unlock()
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

func (s *Session) recordTrade() {
	s.mu.Lock()
	s.trades++
	s.mu.Unlock()
}

// setMarketOpen stores the market state and reports whether it changed.
func (s *Session) setMarketOpen(open bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.marketOpen != open
	s.marketOpen = open
	return changed
}

// Status is a point-in-time view of a loop for status endpoints.
type Status struct {
	Symbol     string            `json:"symbol"`
	Strategy   string            `json:"strategy"`
	State      string            `json:"state"`
	MarketOpen bool              `json:"market_open"`
	Quotes     int               `json:"quotes"`
	LastQuote  time.Time         `json:"last_quote"`
	LastTick   time.Time         `json:"last_tick"`
	LastBuy    strategy.Decision `json:"last_buy"`
	LastSell   strategy.Decision `json:"last_sell"`
	LastError  string            `json:"last_error,omitempty"`
	Trades     int               `json:"trades"`
}

func (s *Session) status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		MarketOpen: s.marketOpen,
		Quotes:     s.Quotes.Len(),
		LastTick:   s.lastTick,
		LastBuy:    s.lastBuy,
		LastSell:   s.lastSell,
		LastError:  s.lastError,
		Trades:     s.trades,
	}
	if q, ok := s.Quotes.Last(); ok {
		st.LastQuote = q.Time
	}
	return st
}
