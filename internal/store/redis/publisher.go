// Package redis publishes trading events to Redis for external
// dashboards and consumers: pub/sub for live fan-out, a capped stream per
// symbol for history, and a latest-value key per event kind.
package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/thibautquentinjacob/trading-bot/internal/metrics"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

const (
	defaultPrefix       = "tradebot"
	defaultStreamMaxLen = 20000 // ~5 trading days of minute quotes plus decisions
	defaultLatestTTL    = 30 * time.Minute
	defaultMaxBuffered  = 10000
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	Prefix       string // key prefix, default "tradebot"
	StreamMaxLen int64
	MaxBuffered  int // events kept while the breaker is open

	// Circuit breaker: consecutive failures before opening, and how long
	// to wait before probing again.
	BreakerFailures int
	BreakerReset    time.Duration
}

// Publisher writes events through a circuit breaker. While the breaker
// is open, events are buffered (dropping the oldest when full) and
// replayed once it closes.
type Publisher struct {
	client  *goredis.Client
	cb      *CircuitBreaker
	metrics *metrics.Metrics
	prefix  string
	maxLen  int64

	mu     sync.Mutex
	buffer []model.Event
	maxBuf int
	flush  chan struct{}
}

// New creates a Publisher and pings the server.
func New(cfg Config, m *metrics.Metrics) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewWithClient(client, cfg, m), nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config, m *metrics.Metrics) *Publisher {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = defaultStreamMaxLen
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = defaultMaxBuffered
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = 10 * time.Second
	}

	p := &Publisher{
		client:  client,
		cb:      NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset),
		metrics: m,
		prefix:  cfg.Prefix,
		maxLen:  cfg.StreamMaxLen,
		buffer:  make([]model.Event, 0, 256),
		maxBuf:  cfg.MaxBuffered,
		flush:   make(chan struct{}, 1),
	}
	p.cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		if m != nil {
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == StateOpen && from == StateClosed {
				m.RedisCircuitBreakerTrips.Inc()
			}
		}
		if to == StateClosed {
			p.requestFlush()
		}
	}
	return p
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the publisher's circuit breaker.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// Run publishes events read from events.
// Blocks until ctx is cancelled or events is closed.
func (p *Publisher) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.flush:
			p.flushBuffer(ctx)
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.Publish(ctx, ev)
		}
	}
}

// Publish writes one event, buffering it if the breaker is open.
func (p *Publisher) Publish(ctx context.Context, ev model.Event) error {
	err := p.cb.Execute(func() error { return p.write(ctx, ev) })
	if err == ErrCircuitOpen {
		p.bufferEvent(ev)
		return nil
	}
	if err != nil {
		log.Printf("[redis] publish %s event failed: %v", ev.Kind, err)
		p.bufferEvent(ev)
		return err
	}
	if p.PendingCount() > 0 {
		p.requestFlush()
	}
	return nil
}

func (p *Publisher) requestFlush() {
	select {
	case p.flush <- struct{}{}:
	default:
	}
}

// StreamKey is the capped stream holding every event for symbol.
func (p *Publisher) StreamKey(symbol string) string { return p.prefix + ":events:" + symbol }

// LatestKey holds the most recent event of one kind for one symbol.
func (p *Publisher) LatestKey(ev model.Event) string {
	return p.prefix + ":latest:" + string(ev.Kind) + ":" + ev.Symbol
}

// Channel is the pub/sub channel for live subscribers.
func (p *Publisher) Channel(ev model.Event) string {
	return p.prefix + ":pub:" + string(ev.Kind) + ":" + ev.Symbol
}

// write pipelines XADD + SET + PUBLISH in one round trip.
func (p *Publisher) write(ctx context.Context, ev model.Event) error {
	start := time.Now()
	data := string(ev.JSON())

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.StreamKey(ev.Symbol),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{"kind": string(ev.Kind), "data": data},
	})
	pipe.Set(ctx, p.LatestKey(ev), data, defaultLatestTTL)
	pipe.Publish(ctx, p.Channel(ev), data)
	_, err := pipe.Exec(ctx)

	if p.metrics != nil {
		p.metrics.RedisPublishDur.Observe(time.Since(start).Seconds())
	}
	return err
}

func (p *Publisher) bufferEvent(ev model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffer) >= p.maxBuf {
		// Buffer full, drop oldest
		p.buffer = p.buffer[1:]
		if p.metrics != nil {
			p.metrics.SinkDropsTotal.WithLabelValues("redis").Inc()
		}
	}
	p.buffer = append(p.buffer, ev)
}

// flushBuffer replays buffered events. Events that fail again go back
// into the buffer through Publish.
func (p *Publisher) flushBuffer(ctx context.Context) {
	p.mu.Lock()
	toFlush := p.buffer
	p.buffer = make([]model.Event, 0, 256)
	p.mu.Unlock()

	if len(toFlush) == 0 {
		return
	}
	for _, ev := range toFlush {
		p.Publish(ctx, ev)
	}
	log.Printf("[redis] flushed %d buffered events", len(toFlush))
}

// PendingCount returns the number of buffered events.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
