package trading

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
	"github.com/thibautquentinjacob/trading-bot/internal/metrics"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/internal/strategy"
)

var errUpstream = errors.New("upstream 503")

var base = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

func quoteAt(i int, price float64) model.Quote {
	return model.Quote{
		Symbol: "AAPL",
		Time:   base.Add(time.Duration(i) * time.Minute),
		Open:   price, High: price + 1, Low: price - 1, Close: price,
	}
}

// fakeSource serves a fixed history and latest quote. When block is set,
// every fetch waits on it after signalling started.
type fakeSource struct {
	history []model.Quote
	latest  model.Quote
	err     error

	block   chan struct{}
	started chan struct{}
	once    sync.Once

	historyCalls atomic.Int32
	latestCalls  atomic.Int32
}

func (f *fakeSource) wait() {
	if f.block == nil {
		return
	}
	f.once.Do(func() { close(f.started) })
	<-f.block
}

func (f *fakeSource) FetchHistory(ctx context.Context, symbol string) ([]model.Quote, error) {
	f.historyCalls.Add(1)
	f.wait()
	return f.history, f.err
}

func (f *fakeSource) FetchLatest(ctx context.Context, symbol string) (model.Quote, error) {
	f.latestCalls.Add(1)
	f.wait()
	return f.latest, f.err
}

func (f *fakeSource) calls() int32 { return f.historyCalls.Load() + f.latestCalls.Load() }

type fakeClock struct {
	open bool
	err  error
}

func (c fakeClock) IsOpen(ctx context.Context) (bool, error) { return c.open, c.err }

type fakeBroker struct {
	mu      sync.Mutex
	account model.Account
	acctErr error
	failN   int // fail the first failN orders
	orders  []model.TradeIntent
}

func (b *fakeBroker) Account(ctx context.Context) (model.Account, error) {
	return b.account, b.acctErr
}

func (b *fakeBroker) SubmitOrder(ctx context.Context, in model.TradeIntent) (model.OrderAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failN > 0 {
		b.failN--
		return model.OrderAck{}, errors.New("insufficient buying power")
	}
	b.orders = append(b.orders, in)
	return model.OrderAck{OrderID: "ord-1", ClientID: in.ID, Status: "accepted"}, nil
}

func (b *fakeBroker) submitted() []model.TradeIntent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.TradeIntent(nil), b.orders...)
}

// fixedStrategy returns preset decisions and optional indicators.
type fixedStrategy struct {
	buy, sell strategy.Decision
	set       indicator.Set
}

func (s fixedStrategy) Name() string                                   { return "FIXED" }
func (s fixedStrategy) Indicators() indicator.Set                      { return s.set }
func (s fixedStrategy) EvaluateBuy(strategy.Window) strategy.Decision  { return s.buy }
func (s fixedStrategy) EvaluateSell(strategy.Window) strategy.Decision { return s.sell }

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Push(ev model.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds(kind model.EventKind) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	loop   *Loop
	source *fakeSource
	broker *fakeBroker
	sink   *recorder
	m      *metrics.Metrics
}

func newHarness(t *testing.T, s strategy.Strategy, clock model.MarketClock) *harness {
	t.Helper()
	eng, err := strategy.NewEngine(s)
	if err != nil {
		t.Fatalf("strategy.NewEngine: %v", err)
	}
	h := &harness{
		source: &fakeSource{
			history: []model.Quote{quoteAt(0, 100), quoteAt(1, 101)},
			latest:  quoteAt(2, 102),
		},
		broker: &fakeBroker{account: model.Account{
			Cash:      decimal.NewFromInt(30000),
			Positions: map[string]model.Position{},
		}},
		sink: &recorder{},
		m:    metrics.NewTestMetrics(),
	}
	h.loop = NewLoop(Config{
		Symbol:      "AAPL",
		Interval:    10 * time.Millisecond,
		ReserveCash: decimal.NewFromInt(25000),
	}, Deps{
		Source:  h.source,
		Clock:   clock,
		Broker:  h.broker,
		Engine:  eng,
		Metrics: h.m,
		Sink:    h.sink,
	})
	return h
}
