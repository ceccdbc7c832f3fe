package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
	"github.com/thibautquentinjacob/trading-bot/internal/metrics"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/internal/strategy"
)

var (
	buyAll  = strategy.Decision{Act: true, Quantity: strategy.AllAvailable, Price: 100, Reason: "test buy"}
	sellAll = strategy.Decision{Act: true, Quantity: strategy.AllAvailable, Price: 100, Reason: "test sell"}
)

func TestTick_MarketClosedSkipsFetch(t *testing.T) {
	h := newHarness(t, fixedStrategy{}, fakeClock{open: false})

	if err := h.loop.Tick(context.Background()); !errors.Is(err, ErrMarketClosed) {
		t.Fatalf("expected ErrMarketClosed, got %v", err)
	}
	if n := h.source.calls(); n != 0 {
		t.Errorf("expected no fetch while closed, got %d", n)
	}
	if h.loop.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.loop.State())
	}
}

func TestTick_ClockErrorCountsAsClosed(t *testing.T) {
	h := newHarness(t, fixedStrategy{}, fakeClock{err: errUpstream})

	if err := h.loop.Tick(context.Background()); !errors.Is(err, ErrMarketClosed) {
		t.Fatalf("expected ErrMarketClosed, got %v", err)
	}
	if len(h.sink.kinds(model.EventError)) != 1 {
		t.Error("expected the clock error to be reported")
	}
}

func TestTick_ColdStartThenLatest(t *testing.T) {
	h := newHarness(t, fixedStrategy{}, fakeClock{open: true})
	ctx := context.Background()

	if err := h.loop.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if h.source.historyCalls.Load() != 1 || h.source.latestCalls.Load() != 0 {
		t.Fatalf("cold start must fetch history only: history=%d latest=%d",
			h.source.historyCalls.Load(), h.source.latestCalls.Load())
	}
	if n := h.loop.Session().Quotes.Len(); n != 2 {
		t.Fatalf("expected 2 quotes after history, got %d", n)
	}

	if err := h.loop.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if h.source.historyCalls.Load() != 1 || h.source.latestCalls.Load() != 1 {
		t.Errorf("warm tick must fetch latest only: history=%d latest=%d",
			h.source.historyCalls.Load(), h.source.latestCalls.Load())
	}
	if n := h.loop.Session().Quotes.Len(); n != 3 {
		t.Errorf("expected 3 quotes, got %d", n)
	}
	if got := len(h.sink.kinds(model.EventDecision)); got != 4 {
		t.Errorf("expected buy+sell decision per tick, got %d events", got)
	}
}

func TestTick_RepolledBarStoredOnce(t *testing.T) {
	h := newHarness(t, fixedStrategy{}, fakeClock{open: true})
	ctx := context.Background()

	h.loop.Tick(ctx)
	before := h.loop.Session().Quotes.Len()
	for i := 0; i < 10; i++ {
		if err := h.loop.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if n := h.loop.Session().Quotes.Len(); n != before+1 {
		t.Errorf("len = %d, want %d", n, before+1)
	}
	if got := testutil.ToFloat64(h.m.QuotesTotal); got != float64(before+1) {
		t.Errorf("quotes total = %v, want %d", got, before+1)
	}

	h.source.latest = quoteAt(0, 99)
	h.loop.Tick(ctx)
	if last, _ := h.loop.Session().Quotes.Last(); last.Open != 102 {
		t.Errorf("stale quote replaced the tail: open=%v", last.Open)
	}
}

func TestTick_RepolledBarKeepsCrossover(t *testing.T) {
	h := newHarness(t, strategy.NewCrossover("CCI", strategy.Params{}), fakeClock{open: true})
	history := make([]model.Quote, 20)
	for i := range history {
		history[i] = quoteAt(i, float64(200-i))
	}
	h.source.history = history
	h.source.latest = quoteAt(20, 180)
	ctx := context.Background()

	for i := 0; i < 13; i++ {
		h.loop.Tick(ctx)
	}
	if n := h.loop.Session().Quotes.Len(); n != 21 {
		t.Fatalf("len = %d, want 21 distinct bars", n)
	}

	h.source.latest = quoteAt(21, 250)
	h.loop.Tick(ctx)

	buys := 0
	for _, in := range h.broker.submitted() {
		if in.Side == model.SideBuy {
			buys++
		}
	}
	if buys != 1 {
		t.Errorf("expected one buy on the upward cross, got %d", buys)
	}
}

func TestTick_LatestWithoutPricesIsFilled(t *testing.T) {
	h := newHarness(t, fixedStrategy{}, fakeClock{open: true})
	h.source.latest = model.Quote{Symbol: "AAPL", Time: base.Add(2 * time.Minute)}
	ctx := context.Background()

	h.loop.Tick(ctx)
	h.loop.Tick(ctx)

	last, _ := h.loop.Session().Quotes.Last()
	if last.Open != 101 || last.Close != 101 {
		t.Errorf("expected carried prices from 101 quote, got open=%v close=%v", last.Open, last.Close)
	}
	if got := testutil.ToFloat64(h.m.QuotesFilled); got != 1 {
		t.Errorf("filled quotes: got %v, want 1", got)
	}
}

func TestTick_OverlappingTickDropped(t *testing.T) {
	h := newHarness(t, fixedStrategy{}, fakeClock{open: true})
	h.source.block = make(chan struct{})
	h.source.started = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.loop.Tick(context.Background()) }()

	select {
	case <-h.source.started:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fetch to start")
	}
	if h.loop.State() != StateFetching {
		t.Errorf("expected fetching, got %s", h.loop.State())
	}

	if err := h.loop.Tick(context.Background()); !errors.Is(err, ErrTickInFlight) {
		t.Fatalf("expected ErrTickInFlight, got %v", err)
	}
	if n := h.source.calls(); n != 1 {
		t.Errorf("overlapping tick must not fetch: %d calls", n)
	}

	close(h.source.block)
	if err := <-done; err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if got := testutil.ToFloat64(h.m.TicksTotal.WithLabelValues(metrics.TickInFlight)); got != 1 {
		t.Errorf("in-flight drops: got %v, want 1", got)
	}
}

func TestTick_FetchErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t, fixedStrategy{buy: buyAll}, fakeClock{open: true})
	h.source.err = errUpstream

	err := h.loop.Tick(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Op != "history" {
		t.Fatalf("expected history FetchError, got %v", err)
	}
	if !errors.Is(err, errUpstream) {
		t.Errorf("FetchError must wrap the cause")
	}
	if h.loop.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.loop.State())
	}
	if len(h.broker.submitted()) != 0 {
		t.Error("no order may be sent after a failed fetch")
	}

	// Next tick retries the cold start
	h.source.err = nil
	if err := h.loop.Tick(context.Background()); err != nil {
		t.Fatalf("retry tick: %v", err)
	}
	if h.source.historyCalls.Load() != 2 {
		t.Errorf("expected history retried, got %d calls", h.source.historyCalls.Load())
	}
}

func TestTick_BuyAllAvailableAboveReserve(t *testing.T) {
	h := newHarness(t, fixedStrategy{buy: buyAll}, fakeClock{open: true})

	if err := h.loop.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	orders := h.broker.submitted()
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.Side != model.SideBuy || o.Quantity != 50 || o.Symbol != "AAPL" {
		t.Errorf("unexpected intent %+v", o)
	}
	if o.ID == "" || o.Strategy != "FIXED" {
		t.Errorf("intent missing id or strategy: %+v", o)
	}
	if len(h.sink.kinds(model.EventTrade)) != 1 {
		t.Error("expected a trade event")
	}
}

func TestTick_SellAllHeld(t *testing.T) {
	h := newHarness(t, fixedStrategy{sell: sellAll}, fakeClock{open: true})
	h.broker.account.Positions["AAPL"] = model.Position{Symbol: "AAPL", Qty: 42}

	h.loop.Tick(context.Background())

	orders := h.broker.submitted()
	if len(orders) != 1 || orders[0].Side != model.SideSell || orders[0].Quantity != 42 {
		t.Fatalf("expected sell of 42, got %+v", orders)
	}
}

func TestTick_SellSkippedWhenFlat(t *testing.T) {
	h := newHarness(t, fixedStrategy{sell: sellAll}, fakeClock{open: true})

	h.loop.Tick(context.Background())

	if n := len(h.broker.submitted()); n != 0 {
		t.Fatalf("expected no order when flat, got %d", n)
	}
	if got := testutil.ToFloat64(h.m.OrdersTotal.WithLabelValues("sell", "skipped")); got != 1 {
		t.Errorf("skipped sells: got %v, want 1", got)
	}
}

func TestTick_BrokerErrorDoesNotStopLaterTicks(t *testing.T) {
	h := newHarness(t, fixedStrategy{buy: buyAll}, fakeClock{open: true})
	h.broker.failN = 1
	ctx := context.Background()

	if err := h.loop.Tick(ctx); err != nil {
		t.Fatalf("order failure must not fail the tick: %v", err)
	}
	if len(h.sink.kinds(model.EventError)) != 1 {
		t.Error("expected the order failure to be reported")
	}

	if err := h.loop.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if n := len(h.broker.submitted()); n != 1 {
		t.Errorf("expected the next tick to submit, got %d orders", n)
	}
	if st := h.loop.Status(); st.Trades != 1 || st.LastError == "" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestTick_AccountErrorSkipsOrders(t *testing.T) {
	h := newHarness(t, fixedStrategy{buy: buyAll}, fakeClock{open: true})
	h.broker.acctErr = errUpstream

	if err := h.loop.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n := len(h.broker.submitted()); n != 0 {
		t.Errorf("expected no order without account, got %d", n)
	}
}

func TestTick_IndicatorFailureIsolated(t *testing.T) {
	s := fixedStrategy{
		buy: buyAll,
		set: indicator.Set{"bad": {Name: "macd", Params: []float64{9, 3, 2}, Inputs: []indicator.Column{indicator.ColumnOpen}}},
	}
	h := newHarness(t, s, fakeClock{open: true})

	if err := h.loop.Tick(context.Background()); err != nil {
		t.Fatalf("indicator failure must not fail the tick: %v", err)
	}
	if got := testutil.ToFloat64(h.m.IndicatorErrors.WithLabelValues("macd_9_3_2")); got != 1 {
		t.Errorf("indicator errors: got %v, want 1", got)
	}
	if n := len(h.broker.submitted()); n != 1 {
		t.Errorf("decisions still act after indicator failure, got %d orders", n)
	}
}

func TestRun_StopDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t, fixedStrategy{}, fakeClock{open: true})
	h.source.block = make(chan struct{})
	h.source.started = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()

	select {
	case <-h.source.started:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first tick")
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(h.source.block)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := h.loop.Session().Quotes.Len(); n != 0 {
		t.Errorf("late fetch result must be discarded, got %d quotes", n)
	}
	if err := h.loop.Tick(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped after Run returned, got %v", err)
	}
}
