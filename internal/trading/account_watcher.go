package trading

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// AccountSnapshot is an account reading with performance since the first
// reading of the session, in percent.
type AccountSnapshot struct {
	At              time.Time     `json:"at"`
	Account         model.Account `json:"account"`
	Assets          float64       `json:"assets"`
	TotalIncrement  float64       `json:"total_increment"`
	AssetsIncrement float64       `json:"assets_increment"`
	CashIncrement   float64       `json:"cash_increment"`
}

// AccountWatcher polls the broker account on its own schedule and
// publishes snapshots as account events.
type AccountWatcher struct {
	broker   model.Broker
	sink     model.Sink
	symbol   string
	interval time.Duration
	log      *slog.Logger

	mu      sync.RWMutex
	initial *model.Account
	last    AccountSnapshot
}

// NewAccountWatcher creates a watcher publishing to sink every interval.
func NewAccountWatcher(broker model.Broker, sink model.Sink, symbol string, interval time.Duration) *AccountWatcher {
	return &AccountWatcher{
		broker:   broker,
		sink:     sink,
		symbol:   symbol,
		interval: interval,
		log:      slog.Default().With(slog.String("component", "account")),
	}
}

// Poll reads the account once and publishes the snapshot.
func (w *AccountWatcher) Poll(ctx context.Context) (AccountSnapshot, error) {
	acct, err := w.broker.Account(ctx)
	if err != nil {
		w.sink.Push(model.Event{Kind: model.EventError, Symbol: w.symbol, Time: time.Now(), Message: (&FetchError{Op: "account", Err: err}).Error()})
		return AccountSnapshot{}, err
	}

	w.mu.Lock()
	if w.initial == nil {
		first := acct
		w.initial = &first
	}
	snap := snapshot(*w.initial, acct, time.Now())
	w.last = snap
	w.mu.Unlock()

	w.sink.Push(model.Event{Kind: model.EventAccount, Symbol: w.symbol, Time: snap.At, Payload: snap})
	return snap, nil
}

// Last returns the most recent snapshot.
func (w *AccountWatcher) Last() AccountSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Run polls immediately, then every interval until ctx is cancelled.
func (w *AccountWatcher) Run(ctx context.Context) {
	if _, err := w.Poll(ctx); err != nil {
		w.log.Warn("account poll failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil {
				w.log.Warn("account poll failed", slog.String("error", err.Error()))
			}
		}
	}
}

func snapshot(initial, cur model.Account, at time.Time) AccountSnapshot {
	assets := cur.PortfolioValue.Sub(cur.Cash)
	initialAssets := initial.PortfolioValue.Sub(initial.Cash)
	return AccountSnapshot{
		At:              at,
		Account:         cur,
		Assets:          assets.InexactFloat64(),
		TotalIncrement:  increment(cur.PortfolioValue, initial.PortfolioValue),
		AssetsIncrement: increment(assets, initialAssets),
		CashIncrement:   increment(cur.Cash, initial.Cash),
	}
}

// increment returns (cur/initial - 1) * 100, zero when initial is zero.
func increment(cur, initial decimal.Decimal) float64 {
	if initial.IsZero() {
		return 0
	}
	return cur.Div(initial).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
