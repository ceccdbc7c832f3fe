package marketdata

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// ErrReplayDone is returned by FetchLatest once every quote was served.
var ErrReplayDone = errors.New("replay exhausted")

// ReplaySource serves archived quotes as if they arrived live: the first
// warmup quotes form the history, then each FetchLatest returns the next.
type ReplaySource struct {
	mu     sync.Mutex
	quotes []model.Quote
	warmup int
	next   int
	prevTS time.Time

	// speed controls pacing: 1.0 = real-time, 10.0 = 10x, 0 = as fast as possible.
	speed float64
}

// NewReplaySource sorts quotes by time. warmup is clamped to [1, len].
func NewReplaySource(quotes []model.Quote, warmup int, speed float64) *ReplaySource {
	qs := make([]model.Quote, len(quotes))
	copy(qs, quotes)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Time.Before(qs[j].Time) })

	warmup = max(warmup, 1)
	warmup = min(warmup, len(qs))
	log.Printf("[replay] loaded %d quotes, warmup=%d, speed=%.1fx", len(qs), warmup, speed)
	return &ReplaySource{quotes: qs, warmup: warmup, speed: speed}
}

// FetchHistory returns the warmup quotes and rewinds the replay to follow them.
func (r *ReplaySource) FetchHistory(_ context.Context, _ string) ([]model.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Quote, r.warmup)
	copy(out, r.quotes[:r.warmup])
	r.next = r.warmup
	if r.warmup > 0 {
		r.prevTS = r.quotes[r.warmup-1].Time
	}
	return out, nil
}

// FetchLatest returns the next quote, sleeping for the scaled gap since
// the previous one when speed > 0.
func (r *ReplaySource) FetchLatest(ctx context.Context, _ string) (model.Quote, error) {
	r.mu.Lock()
	if r.next >= len(r.quotes) {
		r.mu.Unlock()
		return model.Quote{}, ErrReplayDone
	}
	q := r.quotes[r.next]
	r.next++
	prev := r.prevTS
	r.prevTS = q.Time
	r.mu.Unlock()

	// Simulate time gaps between quotes
	if r.speed > 0 && !prev.IsZero() {
		if gap := q.Time.Sub(prev); gap > 0 {
			scaledGap := time.Duration(float64(gap) / r.speed)
			// Cap max sleep to avoid very long waits
			scaledGap = min(scaledGap, 5*time.Second)
			select {
			case <-ctx.Done():
				return model.Quote{}, ctx.Err()
			case <-time.After(scaledGap):
			}
		}
	}
	return q, nil
}

// Remaining returns how many quotes FetchLatest has left to serve.
func (r *ReplaySource) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.quotes) - max(r.next, r.warmup)
}
