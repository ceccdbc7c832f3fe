// cmd/tradebot polls intraday quotes for one symbol, evaluates the
// configured strategy and places orders with a paper or Alpaca broker.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/thibautquentinjacob/trading-bot/config"
	"github.com/thibautquentinjacob/trading-bot/internal/api"
	"github.com/thibautquentinjacob/trading-bot/internal/bus"
	"github.com/thibautquentinjacob/trading-bot/internal/execution"
	"github.com/thibautquentinjacob/trading-bot/internal/gateway"
	"github.com/thibautquentinjacob/trading-bot/internal/logger"
	"github.com/thibautquentinjacob/trading-bot/internal/marketdata"
	"github.com/thibautquentinjacob/trading-bot/internal/markethours"
	"github.com/thibautquentinjacob/trading-bot/internal/metrics"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/internal/notification"
	redisstore "github.com/thibautquentinjacob/trading-bot/internal/store/redis"
	sqlitestore "github.com/thibautquentinjacob/trading-bot/internal/store/sqlite"
	"github.com/thibautquentinjacob/trading-bot/internal/strategy"
	"github.com/thibautquentinjacob/trading-bot/internal/trading"
	"github.com/thibautquentinjacob/trading-bot/pkg/alpaca"
	"github.com/thibautquentinjacob/trading-bot/pkg/iex"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	lg := logger.Init("tradebot", logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		lg.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// ---- Strategy (unknown name is fatal) ----
	overrides, err := strategy.LoadParams(cfg.StrategyConfig)
	if err != nil {
		lg.Error("strategy config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	strat, err := strategy.New(cfg.Strategy, overrides[cfg.Strategy])
	if err != nil {
		lg.Error("strategy", slog.String("error", err.Error()))
		os.Exit(1)
	}
	engine, err := strategy.NewEngine(strat)
	if err != nil {
		lg.Error("indicator set", slog.String("strategy", strat.Name()), slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, reg)
	metricsSrv.Start()

	// ---- Collaborators ----
	source := marketdata.NewIEXSource(iex.New(iex.Config{Token: cfg.IEXToken, BaseURL: cfg.IEXBaseURL}))

	var alpacaClient *alpaca.Client
	if cfg.NeedsAlpaca() {
		alpacaClient = alpaca.New(alpaca.Config{
			KeyID:     cfg.AlpacaKeyID,
			SecretKey: cfg.AlpacaSecret,
			BaseURL:   cfg.AlpacaBaseURL,
		})
	}

	var clock model.MarketClock = markethours.NYSE()
	var poller *markethours.Poller
	if cfg.ClockMode == config.ClockAlpaca {
		poller = markethours.NewPoller(alpacaClient, cfg.MarketStatusUpdateFreq)
		clock = poller
	}

	var (
		paper  *execution.PaperBroker
		broker model.Broker
	)
	initialEquity := cfg.PaperCash
	if cfg.BrokerMode == config.BrokerAlpaca {
		broker = execution.NewAlpacaBroker(alpacaClient)
		acct, err := broker.Account(ctx)
		if err != nil {
			lg.Error("alpaca account", slog.String("error", err.Error()))
			os.Exit(1)
		}
		initialEquity = acct.PortfolioValue
	} else {
		paper = execution.NewPaperBroker(cfg.PaperCash, cfg.SlippageBps)
		broker = paper
	}
	executor := execution.NewExecutor(broker, cfg.Risk, initialEquity)

	// ---- Telemetry fan-out ----
	fanout := bus.New(4096, 1024)
	fanout.OnDrop = func(name string) {
		prom.SinkDropsTotal.WithLabelValues(name).Inc()
	}

	hub := gateway.NewHub(cfg.ReplaySize)
	hubCh := fanout.Subscribe("hub")
	notifyCh := fanout.Subscribe("notify")
	riskCh := fanout.Subscribe("risk")
	var paperCh <-chan model.Event
	if paper != nil {
		paperCh = fanout.Subscribe("paper")
	}

	var journal *execution.Journal
	var journalCh <-chan model.Event
	if cfg.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755); err != nil {
			lg.Error("trade journal directory", slog.String("error", err.Error()))
			os.Exit(1)
		}
		journal, err = execution.NewJournal(cfg.JournalPath)
		if err != nil {
			lg.Error("trade journal", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer journal.Close()
		journalCh = fanout.Subscribe("journal")
	}

	var archive *sqlitestore.Writer
	var archiveCh <-chan model.Event
	if cfg.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			lg.Error("quote archive directory", slog.String("error", err.Error()))
			os.Exit(1)
		}
		archive, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath}, prom)
		if err != nil {
			lg.Error("quote archive", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer archive.Close()
		archiveCh = fanout.Subscribe("sqlite")
	}

	var publisher *redisstore.Publisher
	var redisCh <-chan model.Event
	if cfg.RedisAddr != "" {
		publisher, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, prom)
		if err != nil {
			lg.Warn("redis unavailable, continuing without it", slog.String("error", err.Error()))
			health.SetRedisConnected(false)
		} else {
			defer publisher.Close()
			health.SetRedisConnected(true)
			redisCh = fanout.Subscribe("redis")
		}
	}

	// ---- Periodic liveness checks ----
	redisProbe := publisherClient(publisher)
	if archive != nil {
		health.StartLivenessChecker(ctx, redisProbe, archive.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, redisProbe, nil, 10*time.Second)
	}

	// ---- Trading loop ----
	loop := trading.NewLoop(trading.Config{
		Symbol:      cfg.Symbol,
		Interval:    cfg.StrategyUpdateFreq,
		ReserveCash: cfg.ReserveCash,
	}, trading.Deps{
		Source:  source,
		Clock:   clock,
		Broker:  executor,
		Engine:  engine,
		Metrics: prom,
		Sink:    fanout,
		Health:  health,
		Logger:  lg,
	})
	watcher := trading.NewAccountWatcher(executor, fanout, cfg.Symbol, cfg.AccountMetricsUpdateFreq)

	// ---- API server ----
	deps := api.Deps{
		Status:  loop,
		Account: watcher,
		Risk:    executor,
		Hub:     hub,
		Health:  health,
	}
	if journal != nil {
		deps.Trades = journal
	}
	apiSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { fanout.Run(gctx); return nil })
	g.Go(func() error { hub.Run(gctx, hubCh); return nil })
	g.Go(func() error {
		notification.NewForwarder(buildNotifier(cfg), time.Minute).Run(gctx, notifyCh)
		return nil
	})
	g.Go(func() error { resetRiskOnOpen(gctx, executor, riskCh); return nil })
	if paperCh != nil {
		g.Go(func() error { paper.Run(gctx, paperCh); return nil })
	}
	if journalCh != nil {
		g.Go(func() error { journal.Run(gctx, journalCh); return nil })
	}
	if archiveCh != nil {
		g.Go(func() error { archive.RunEvents(gctx, archiveCh); return nil })
	}
	if redisCh != nil {
		g.Go(func() error { publisher.Run(gctx, redisCh); return nil })
	}
	if poller != nil {
		g.Go(func() error { poller.Run(gctx); return nil })
	}
	g.Go(func() error { watcher.Run(gctx); return nil })
	g.Go(func() error { return loop.Run(gctx) })

	g.Go(func() error {
		lg.Info("api server listening", slog.String("addr", cfg.APIAddr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Stop(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	lg.Info("tradebot started",
		slog.String("symbol", cfg.Symbol),
		slog.String("strategy", strat.Name()),
		slog.String("broker", cfg.BrokerMode),
		slog.String("clock", cfg.ClockMode),
	)

	if err := g.Wait(); err != nil {
		lg.Error("tradebot stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	lg.Info("tradebot stopped")
}
