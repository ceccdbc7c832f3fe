package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick outcomes recorded in TicksTotal.
const (
	TickCompleted  = "completed"
	TickClosed     = "market_closed"
	TickInFlight   = "in_flight"
	TickFetchError = "fetch_error"
	TickStopped    = "stopped"
)

// Metrics holds all Prometheus metrics for the trading bot.
type Metrics struct {
	// Trading loop
	TicksTotal    *prometheus.CounterVec // labels: result
	TickDur       prometheus.Histogram
	FetchDur      *prometheus.HistogramVec // labels: op=history|latest|account|clock
	FetchErrors   *prometheus.CounterVec   // labels: op
	QuotesTotal   prometheus.Counter
	QuotesFilled  prometheus.Counter
	QuotesHistory prometheus.Gauge

	// Indicator engine
	IndicatorComputeDur prometheus.Histogram
	IndicatorErrors     *prometheus.CounterVec // labels: indicator

	// Decisions and orders
	DecisionsTotal *prometheus.CounterVec // labels: side, act
	OrdersTotal    *prometheus.CounterVec // labels: side, status=submitted|skipped|failed
	OrderDur       prometheus.Histogram

	// Backpressure
	SinkDropsTotal *prometheus.CounterVec // labels: subscriber

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisPublishDur          prometheus.Histogram

	// Quote archive
	SQLiteCommitDur prometheus.Histogram

	// Market session
	MarketState        prometheus.Gauge       // 0=closed, 1=open
	SessionTransitions *prometheus.CounterVec // labels: type=open|close
}

// NewMetrics creates all metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_ticks_total",
			Help: "Trading loop ticks by outcome",
		}, []string{"result"}),
		TickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebot_tick_duration_seconds",
			Help:    "Wall time of a completed tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		FetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradebot_fetch_duration_seconds",
			Help:    "Collaborator call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_fetch_errors_total",
			Help: "Transient collaborator failures",
		}, []string{"op"}),
		QuotesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_quotes_total",
			Help: "Quotes appended to the repository",
		}),
		QuotesFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_quotes_filled_total",
			Help: "Quotes received without prices",
		}),
		QuotesHistory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_quotes_history_len",
			Help: "Quotes held in the repository",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebot_indicator_compute_duration_seconds",
			Help:    "Indicator engine compute latency per tick",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		IndicatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_indicator_errors_total",
			Help: "Indicator computations that failed",
		}, []string{"indicator"}),

		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_decisions_total",
			Help: "Strategy decisions by side and outcome",
		}, []string{"side", "act"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_orders_total",
			Help: "Trade intents by side and status",
		}, []string{"side", "status"}),
		OrderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebot_order_submit_duration_seconds",
			Help:    "Broker order submission latency",
			Buckets: prometheus.DefBuckets,
		}),

		SinkDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_sink_drops_total",
			Help: "Events dropped by the FanOut bus per subscriber",
		}, []string{"subscriber"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebot_redis_publish_duration_seconds",
			Help:    "Redis event publish latency",
			Buckets: prometheus.DefBuckets,
		}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebot_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_session_transitions_total",
			Help: "Market session transitions (open, close)",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickDur,
		m.FetchDur,
		m.FetchErrors,
		m.QuotesTotal,
		m.QuotesFilled,
		m.QuotesHistory,
		m.IndicatorComputeDur,
		m.IndicatorErrors,
		m.DecisionsTotal,
		m.OrdersTotal,
		m.OrderDur,
		m.SinkDropsTotal,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisPublishDur,
		m.SQLiteCommitDur,
		m.MarketState,
		m.SessionTransitions,
	)

	return m
}

// NewTestMetrics returns metrics on a private registry.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// SetMarketOpen records the market state and counts transitions.
func (m *Metrics) SetMarketOpen(open, changed bool) {
	if open {
		m.MarketState.Set(1)
	} else {
		m.MarketState.Set(0)
	}
	if !changed {
		return
	}
	if open {
		m.SessionTransitions.WithLabelValues("open").Inc()
	} else {
		m.SessionTransitions.WithLabelValues("close").Inc()
	}
}

// HealthStatus represents the bot's health.
type HealthStatus struct {
	mu sync.RWMutex

	MarketOpen     bool      `json:"market_open"`
	LoopState      string    `json:"loop_state"`
	LastTickTime   time.Time `json:"last_tick_time"`
	LastQuoteTime  time.Time `json:"last_quote_time"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		SQLiteOK:  true,
	}
}

func (h *HealthStatus) SetMarketOpen(v bool) {
	h.mu.Lock()
	h.MarketOpen = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetTick(state string, t time.Time) {
	h.mu.Lock()
	h.LoopState = state
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastQuoteTime(t time.Time) {
	h.mu.Lock()
	h.LastQuoteTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either client may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.RedisEnabled && !h.RedisConnected
	if redisDown || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if redisDown && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		MarketOpen      bool    `json:"market_open"`
		LoopState       string  `json:"loop_state"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		LastQuoteTime   string  `json:"last_quote_time"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		MarketOpen:      h.MarketOpen,
		LoopState:       h.LoopState,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		LastQuoteTime:   h.LastQuoteTime.Format(time.RFC3339),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server serving metrics from gatherer.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
