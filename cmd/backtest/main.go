// cmd/backtest replays archived quotes from SQLite through the trading
// loop with an always-open clock and a paper broker, then prints a
// P&L summary.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=AAPL --strategy=CCI --from=2026-10-19 --speed=0
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/execution"
	"github.com/thibautquentinjacob/trading-bot/internal/logger"
	"github.com/thibautquentinjacob/trading-bot/internal/marketdata"
	"github.com/thibautquentinjacob/trading-bot/internal/markethours"
	"github.com/thibautquentinjacob/trading-bot/internal/metrics"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
	sqlitestore "github.com/thibautquentinjacob/trading-bot/internal/store/sqlite"
	"github.com/thibautquentinjacob/trading-bot/internal/strategy"
	"github.com/thibautquentinjacob/trading-bot/internal/trading"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	dbPath := flag.String("db", "data/quotes.db", "Path to SQLite quote archive")
	symbol := flag.String("symbol", "AAPL", "Symbol to replay")
	stratName := flag.String("strategy", "CCI", "Strategy name")
	stratCfg := flag.String("config", "", "Optional strategy YAML overrides")
	fromStr := flag.String("from", "", "First day to replay, YYYY-MM-DD (empty=all)")
	toStr := flag.String("to", "", "Last day to replay, YYYY-MM-DD (empty=all)")
	warmup := flag.Int("warmup", 30, "Quotes served as the initial history")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	cash := flag.String("cash", "100000", "Initial paper cash")
	reserve := flag.String("reserve", "25000", "Cash never spent by all-available buys")
	slippage := flag.Int64("slippage", 5, "Paper slippage in basis points")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	lg := logger.Init("backtest", logger.ParseLevel(*logLevel))

	from, to, err := parseRange(*fromStr, *toStr)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	initialCash, err := decimal.NewFromString(*cash)
	if err != nil {
		log.Fatalf("[backtest] invalid --cash: %v", err)
	}
	reserveCash, err := decimal.NewFromString(*reserve)
	if err != nil {
		log.Fatalf("[backtest] invalid --reserve: %v", err)
	}

	// Strategy
	overrides, err := strategy.LoadParams(*stratCfg)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	strat, err := strategy.New(*stratName, overrides[*stratName])
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	engine, err := strategy.NewEngine(strat)
	if err != nil {
		log.Fatalf("[backtest] engine init failed: %v", err)
	}

	// Open SQLite
	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	quotes, err := reader.ReadQuotes(*symbol, from, to)
	if err != nil {
		log.Fatalf("[backtest] read quotes: %v", err)
	}
	if len(quotes) == 0 {
		log.Fatalf("[backtest] no archived quotes for %s", *symbol)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := marketdata.NewReplaySource(quotes, *warmup, *speed)
	paper := execution.NewPaperBroker(initialCash, *slippage)

	var trades, failures int
	var quoteTime time.Time
	sink := model.SinkFunc(func(ev model.Event) {
		switch ev.Kind {
		case model.EventQuote:
			if q, ok := ev.Payload.(model.Quote); ok {
				paper.Observe(q)
				quoteTime = q.Time
			}
		case model.EventTrade:
			trades++
			fmt.Printf("  [%s] %s\n", quoteTime.Format("2006-01-02 15:04"), ev.Message)
		case model.EventError:
			if !strings.Contains(ev.Message, marketdata.ErrReplayDone.Error()) {
				failures++
			}
		}
	})

	loop := trading.NewLoop(trading.Config{
		Symbol:      *symbol,
		ReserveCash: reserveCash,
	}, trading.Deps{
		Source:  source,
		Clock:   markethours.AlwaysOpen{},
		Broker:  paper,
		Engine:  engine,
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		Sink:    sink,
		Logger:  lg,
	})

	// Drive ticks serially until the archive is exhausted.
	start := time.Now()
	ticks := 0
	for ctx.Err() == nil {
		err := loop.Tick(ctx)
		ticks++
		if errors.Is(err, marketdata.ErrReplayDone) {
			break
		}
	}

	last := quotes[len(quotes)-1]
	prices := map[string]decimal.Decimal{*symbol: decimal.NewFromFloat(last.Close)}
	sum := paper.PnL().Summary(prices)
	acct, _ := paper.Account(ctx)

	// Print summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║            BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Symbol / strategy: %-20s ║\n", *symbol+" / "+strat.Name())
	fmt.Printf("║  Quotes replayed:   %-20d ║\n", len(quotes))
	fmt.Printf("║  Ticks:             %-20d ║\n", ticks)
	fmt.Printf("║  Trades:            %-20d ║\n", trades)
	fmt.Printf("║  Errors:            %-20d ║\n", failures)
	fmt.Printf("║  Realized PnL:      %-20s ║\n", sum.RealizedPnL.StringFixed(2))
	fmt.Printf("║  Unrealized PnL:    %-20s ║\n", sum.UnrealizedPnL.StringFixed(2))
	fmt.Printf("║  Open positions:    %-20d ║\n", sum.OpenPositions)
	fmt.Printf("║  Final value:       %-20s ║\n", acct.PortfolioValue.StringFixed(2))
	fmt.Printf("║  Elapsed:           %-20s ║\n", time.Since(start).Truncate(time.Millisecond))
	fmt.Println("╚══════════════════════════════════════════╝")
}

// parseRange turns day flags into [from, to) bounds in UTC. An empty to
// leaves the range open.
func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	if fromStr != "" {
		t, err := time.Parse(time.DateOnly, fromStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse(time.DateOnly, toStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to: %w", err)
		}
		to = t.AddDate(0, 0, 1)
	}
	return from, to, nil
}
