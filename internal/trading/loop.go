// Package trading runs the polling loop that turns quotes into orders.
//
// Each tick walks Idle → Fetching → Evaluating → Acting → Idle. At most
// one tick is in flight; a tick arriving while another runs is dropped.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
	"github.com/thibautquentinjacob/trading-bot/internal/logger"
	"github.com/thibautquentinjacob/trading-bot/internal/metrics"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/internal/quote"
	"github.com/thibautquentinjacob/trading-bot/internal/strategy"
)

// State is the loop's position in the tick cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateEvaluating
	StateActing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateEvaluating:
		return "evaluating"
	case StateActing:
		return "acting"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config holds the loop's trading parameters.
type Config struct {
	Symbol      string
	Interval    time.Duration   // tick period, 1.5s by default
	ReserveCash decimal.Decimal // cash never spent by AllAvailable buys
}

// Deps are the loop's collaborators. Sink, Health and Logger are optional.
type Deps struct {
	Source  model.QuoteSource
	Clock   model.MarketClock
	Broker  model.Broker
	Engine  *strategy.Engine
	Metrics *metrics.Metrics
	Sink    model.Sink
	Health  *metrics.HealthStatus
	Logger  *slog.Logger
}

// DecisionEvent is the payload of decision events.
type DecisionEvent struct {
	Side     model.Side        `json:"side"`
	Strategy string            `json:"strategy"`
	Decision strategy.Decision `json:"decision"`
}

// Loop drives one symbol through the tick cycle.
type Loop struct {
	cfg     Config
	source  model.QuoteSource
	clock   model.MarketClock
	broker  model.Broker
	engine  *strategy.Engine
	metrics *metrics.Metrics
	sink    model.Sink
	health  *metrics.HealthStatus
	log     *slog.Logger
	now     func() time.Time

	session  *Session
	state    atomic.Int32
	inFlight atomic.Bool
	stopped  atomic.Bool
}

// NewLoop creates a loop with an empty session.
func NewLoop(cfg Config, d Deps) *Loop {
	l := &Loop{
		cfg:     cfg,
		source:  d.Source,
		clock:   d.Clock,
		broker:  d.Broker,
		engine:  d.Engine,
		metrics: d.Metrics,
		sink:    d.Sink,
		health:  d.Health,
		log:     d.Logger,
		now:     time.Now,
		session: NewSession(),
	}
	if l.sink == nil {
		l.sink = model.SinkFunc(func(model.Event) {})
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	l.log = l.log.With(slog.String("component", "trading"), slog.String("symbol", cfg.Symbol))
	return l
}

// State returns the current tick state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Session returns the loop's session.
func (l *Loop) Session() *Session { return l.session }

// Status returns a snapshot for status endpoints.
func (l *Loop) Status() Status {
	st := l.session.status()
	st.Symbol = l.cfg.Symbol
	st.Strategy = l.engine.Strategy().Name()
	st.State = l.State().String()
	return st
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// Run ticks every Interval until ctx is cancelled. Each tick runs in its
// own goroutine with a context detached from ctx, so in-flight calls
// resolve; their results are discarded once the loop has stopped.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.cfg.Interval
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tickCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	l.log.Info("trading loop started",
		slog.String("strategy", l.engine.Strategy().Name()),
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			l.stopped.Store(true)
			wg.Wait()
			l.log.Info("trading loop stopped")
			return nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.Tick(tickCtx)
			}()
		}
	}
}

// Tick runs one cycle. It returns ErrTickInFlight when another tick is
// running, ErrMarketClosed when skipped, a *FetchError on transient
// failure and nil otherwise. Indicator and order failures are reported
// to the sink and do not fail the tick.
func (l *Loop) Tick(ctx context.Context) error {
	if l.stopped.Load() {
		l.metrics.TicksTotal.WithLabelValues(metrics.TickStopped).Inc()
		return ErrStopped
	}
	if !l.inFlight.CompareAndSwap(false, true) {
		l.metrics.TicksTotal.WithLabelValues(metrics.TickInFlight).Inc()
		return ErrTickInFlight
	}
	defer l.inFlight.Store(false)
	defer l.setState(StateIdle)

	start := l.now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(l.cfg.Symbol, start))

	if !l.marketOpen(ctx) {
		l.metrics.TicksTotal.WithLabelValues(metrics.TickClosed).Inc()
		return ErrMarketClosed
	}

	l.setState(StateFetching)
	if err := l.fetch(ctx); err != nil {
		if errors.Is(err, ErrStopped) {
			l.metrics.TicksTotal.WithLabelValues(metrics.TickStopped).Inc()
			return err
		}
		l.metrics.TicksTotal.WithLabelValues(metrics.TickFetchError).Inc()
		l.fail(ctx, err)
		return err
	}

	l.setState(StateEvaluating)
	ev := l.evaluate(ctx)

	l.setState(StateActing)
	l.act(ctx, ev)

	l.metrics.TicksTotal.WithLabelValues(metrics.TickCompleted).Inc()
	l.metrics.TickDur.Observe(time.Since(start).Seconds())
	if l.health != nil {
		l.health.SetTick(StateIdle.String(), start)
	}
	return nil
}

// marketOpen asks the clock; a failing clock counts as closed.
func (l *Loop) marketOpen(ctx context.Context) bool {
	t := time.Now()
	open, err := l.clock.IsOpen(ctx)
	l.metrics.FetchDur.WithLabelValues("clock").Observe(time.Since(t).Seconds())
	if err != nil {
		l.metrics.FetchErrors.WithLabelValues("clock").Inc()
		l.fail(ctx, &FetchError{Op: "clock", Err: err})
		open = false
	}

	changed := l.session.setMarketOpen(open)
	l.metrics.SetMarketOpen(open, changed)
	if l.health != nil {
		l.health.SetMarketOpen(open)
	}
	if changed {
		l.log.Info("market status changed", append(logger.LogWithTrace(ctx), slog.Bool("open", open))...)
		l.push(ctx, model.Event{Kind: model.EventMarket, Message: marketMessage(open), Payload: open})
	}
	return open
}

func marketMessage(open bool) string {
	if open {
		return "market opened"
	}
	return "market closed"
}

// fetch loads the full history on a cold start, the latest quote otherwise.
func (l *Loop) fetch(ctx context.Context) error {
	if l.session.Quotes.Len() == 0 {
		t := time.Now()
		quotes, err := l.source.FetchHistory(ctx, l.cfg.Symbol)
		l.metrics.FetchDur.WithLabelValues("history").Observe(time.Since(t).Seconds())
		if err != nil {
			l.metrics.FetchErrors.WithLabelValues("history").Inc()
			return &FetchError{Op: "history", Err: err}
		}
		if l.stopped.Load() {
			return ErrStopped
		}
		for _, q := range quotes {
			l.store(ctx, q)
		}
		l.log.Info("history loaded", append(logger.LogWithTrace(ctx), slog.Int("quotes", len(quotes)))...)
		return nil
	}

	t := time.Now()
	q, err := l.source.FetchLatest(ctx, l.cfg.Symbol)
	l.metrics.FetchDur.WithLabelValues("latest").Observe(time.Since(t).Seconds())
	if err != nil {
		l.metrics.FetchErrors.WithLabelValues("latest").Inc()
		return &FetchError{Op: "latest", Err: err}
	}
	if l.stopped.Load() {
		return ErrStopped
	}
	l.store(ctx, q)
	return nil
}

// store merges q into the history. Polling the same bar again replaces
// it in place; a bar older than the tail is dropped.
func (l *Loop) store(ctx context.Context, q model.Quote) {
	if q.Symbol == "" {
		q.Symbol = l.cfg.Symbol
	}
	res := l.session.Quotes.Merge(q)
	if res == quote.Stale {
		l.log.Debug("stale quote dropped", append(logger.LogWithTrace(ctx), slog.Time("time", q.Time))...)
		return
	}
	if !q.HasPrices() {
		l.metrics.QuotesFilled.Inc()
	}
	if res == quote.Appended {
		l.metrics.QuotesTotal.Inc()
	}
	l.metrics.QuotesHistory.Set(float64(l.session.Quotes.Len()))

	stored, _ := l.session.Quotes.Last()
	if l.health != nil {
		l.health.SetLastQuoteTime(stored.Time)
	}
	l.push(ctx, model.Event{Kind: model.EventQuote, Time: stored.Time, Payload: stored})
}

// evaluate computes indicators and both decisions. Indicator failures are
// reported one by one; the affected rules hold.
func (l *Loop) evaluate(ctx context.Context) strategy.Evaluation {
	t := time.Now()
	ev, err := l.engine.Evaluate(l.session.Quotes.All())
	l.metrics.IndicatorComputeDur.Observe(time.Since(t).Seconds())
	if err != nil {
		for _, e := range splitErrors(err) {
			var ce *indicator.ComputeError
			if errors.As(e, &ce) {
				l.metrics.IndicatorErrors.WithLabelValues(string(ce.Name)).Inc()
			}
			l.fail(ctx, e)
		}
	}

	name := l.engine.Strategy().Name()
	l.session.recordDecisions(l.now(), ev.Buy, ev.Sell)
	for _, d := range []DecisionEvent{
		{Side: model.SideBuy, Strategy: name, Decision: ev.Buy},
		{Side: model.SideSell, Strategy: name, Decision: ev.Sell},
	} {
		l.metrics.DecisionsTotal.WithLabelValues(string(d.Side), fmt.Sprint(d.Decision.Act)).Inc()
		l.push(ctx, model.Event{Kind: model.EventDecision, Message: d.Decision.Reason, Payload: d})
	}
	return ev
}

func splitErrors(err error) []error {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return u.Unwrap()
	}
	return []error{err}
}

// act resolves quantities against the account and submits intents.
func (l *Loop) act(ctx context.Context, ev strategy.Evaluation) {
	if !ev.Buy.Act && !ev.Sell.Act {
		return
	}

	t := time.Now()
	acct, err := l.broker.Account(ctx)
	l.metrics.FetchDur.WithLabelValues("account").Observe(time.Since(t).Seconds())
	if err != nil {
		l.metrics.FetchErrors.WithLabelValues("account").Inc()
		l.fail(ctx, &FetchError{Op: "account", Err: err})
		return
	}

	if ev.Buy.Act {
		l.submit(ctx, model.SideBuy, BuyQuantity(ev.Buy, acct.Cash, l.cfg.ReserveCash), ev.Buy)
	}
	if ev.Sell.Act {
		l.submit(ctx, model.SideSell, SellQuantity(ev.Sell, acct.Held(l.cfg.Symbol)), ev.Sell)
	}
}

func (l *Loop) submit(ctx context.Context, side model.Side, qty int64, d strategy.Decision) {
	if qty <= 0 {
		l.metrics.OrdersTotal.WithLabelValues(string(side), "skipped").Inc()
		l.log.Debug("order skipped, nothing to trade", append(logger.LogWithTrace(ctx), slog.String("side", string(side)))...)
		return
	}

	intent := model.NewTradeIntent(side, l.cfg.Symbol, qty, d.Price, l.now())
	intent.Strategy = l.engine.Strategy().Name()
	intent.Reason = d.Reason

	t := time.Now()
	ack, err := l.broker.SubmitOrder(ctx, intent)
	l.metrics.OrderDur.Observe(time.Since(t).Seconds())
	if err != nil {
		l.metrics.OrdersTotal.WithLabelValues(string(side), "failed").Inc()
		l.fail(ctx, &FetchError{Op: "order", Err: err})
		return
	}

	l.metrics.OrdersTotal.WithLabelValues(string(side), "submitted").Inc()
	l.session.recordTrade()
	msg := fmt.Sprintf("%s %d x %s @ %.2f", side, qty, l.cfg.Symbol, d.Price)
	l.log.Info(msg, append(logger.LogWithTrace(ctx),
		slog.String("order_id", ack.OrderID),
		slog.String("reason", d.Reason),
	)...)
	l.push(ctx, model.Event{Kind: model.EventTrade, Message: msg, Payload: model.Trade{Intent: intent, Ack: ack}})
}

// fail records and publishes a non-fatal error.
func (l *Loop) fail(ctx context.Context, err error) {
	l.session.recordError(err)
	l.log.Warn("tick error", append(logger.LogWithTrace(ctx), slog.String("error", err.Error()))...)
	l.push(ctx, model.Event{Kind: model.EventError, Message: err.Error()})
}

func (l *Loop) push(ctx context.Context, ev model.Event) {
	ev.Symbol = l.cfg.Symbol
	ev.TraceID = logger.TraceID(ctx)
	if ev.Time.IsZero() {
		ev.Time = l.now()
	}
	l.sink.Push(ev)
}
