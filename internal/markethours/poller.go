package markethours

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Poller caches a remote market clock, refreshing it every interval.
// A failed refresh marks the market closed until the next success.
type Poller struct {
	src      model.MarketClock
	interval time.Duration

	mu      sync.RWMutex
	known   bool
	open    bool
	lastErr error
}

// NewPoller wraps src. interval is typically one minute.
func NewPoller(src model.MarketClock, interval time.Duration) *Poller {
	return &Poller{src: src, interval: interval}
}

// Refresh queries the source once.
func (p *Poller) Refresh(ctx context.Context) (bool, error) {
	open, err := p.src.IsOpen(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.known = true
	p.lastErr = err
	if err != nil {
		p.open = false
		return false, err
	}
	p.open = open
	return open, nil
}

// IsOpen returns the cached state, querying the source on first use.
// The error of the last refresh is reported once per refresh.
func (p *Poller) IsOpen(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if !p.known {
		p.mu.Unlock()
		return p.Refresh(ctx)
	}
	open, err := p.open, p.lastErr
	p.lastErr = nil
	p.mu.Unlock()
	return open, err
}

// Run refreshes every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Refresh(ctx); err != nil {
				log.Printf("[markethours] clock refresh failed: %v", err)
			}
		}
	}
}
