// Package quote keeps the ordered, gap-filled quote history of one symbol.
package quote

import (
	"sync"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Repository is an append-only sequence of quotes in arrival order.
// Stored quotes are never mutated after Append returns; Merge may only
// replace the last quote with a revision of the same bar.
type Repository struct {
	mu     sync.RWMutex
	quotes []model.Quote
}

// NewRepository creates an empty repository with room for capacity quotes.
func NewRepository(capacity int) *Repository {
	return &Repository{quotes: make([]model.Quote, 0, capacity)}
}

// Append stores q. A quote without prices inherits OHLC from the previous
// quote when that one has prices; a leading empty quote is stored as is.
func (r *Repository) Append(q model.Quote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(q)
}

func (r *Repository) append(q model.Quote) {
	if !q.HasPrices() && len(r.quotes) > 0 {
		if prev := r.quotes[len(r.quotes)-1]; prev.HasPrices() {
			q = q.WithPricesFrom(prev)
		}
	}
	r.quotes = append(r.quotes, q)
}

// MergeResult says what Merge did with a quote.
type MergeResult int

const (
	Appended MergeResult = iota // newer than the last stored quote
	Replaced                    // same bar as the last stored quote
	Stale                       // older than the last stored quote, dropped
)

func (m MergeResult) String() string {
	switch m {
	case Appended:
		return "appended"
	case Replaced:
		return "replaced"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// Merge stores a polled quote keyed by its time. A quote for the bar
// already at the tail replaces it, so polling one bar repeatedly leaves
// the sequence unchanged; an older quote is dropped. Quotes without a
// time are appended like Append does.
func (r *Repository) Merge(q model.Quote) MergeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.quotes)
	if n == 0 || q.Time.IsZero() {
		r.append(q)
		return Appended
	}
	last := r.quotes[n-1]
	switch {
	case q.Time.Before(last.Time):
		return Stale
	case q.Time.Equal(last.Time):
		// An empty revision keeps the prices already held for the bar.
		if !q.HasPrices() && last.HasPrices() {
			q = q.WithPricesFrom(last)
		}
		r.quotes[n-1] = q
		return Replaced
	}
	r.append(q)
	return Appended
}

// AppendAll appends each quote in order.
func (r *Repository) AppendAll(qs []model.Quote) {
	for _, q := range qs {
		r.Append(q)
	}
}

// All returns a copy of the full sequence.
func (r *Repository) All() []model.Quote {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Quote, len(r.quotes))
	copy(out, r.quotes)
	return out
}

// Len returns the number of stored quotes.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.quotes)
}

// Last returns the most recent quote, false when empty.
func (r *Repository) Last() (model.Quote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.quotes) == 0 {
		return model.Quote{}, false
	}
	return r.quotes[len(r.quotes)-1], true
}
