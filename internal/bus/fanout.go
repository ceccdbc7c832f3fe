// Package bus fans telemetry events out to independent consumers.
package bus

import (
	"context"
	"log"
	"sync"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// FanOut broadcasts events pushed by the trading loop to N output channels.
// Push never blocks: if the input or an output channel is full, the event
// is dropped for that consumer so a slow consumer cannot stall a tick.
type FanOut struct {
	mu      sync.RWMutex
	input   chan model.Event
	outputs []subscriber
	bufSize int

	// OnDrop is called when an event is dropped. name is the subscriber
	// name, or "input" when the fan-out itself is saturated.
	OnDrop func(name string)
}

type subscriber struct {
	name string
	ch   chan model.Event
}

// New creates a FanOut with the given input and per-subscriber buffer sizes.
func New(inputBufferSize, outputBufferSize int) *FanOut {
	return &FanOut{
		input:   make(chan model.Event, inputBufferSize),
		bufSize: outputBufferSize,
	}
}

// Push enqueues ev for broadcast without blocking.
func (f *FanOut) Push(ev model.Event) {
	select {
	case f.input <- ev:
	default:
		f.drop("input", ev)
	}
}

// Subscribe creates and returns a new named output channel.
// Subscribe before Run starts so no event is missed.
func (f *FanOut) Subscribe(name string) <-chan model.Event {
	ch := make(chan model.Event, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, subscriber{name: name, ch: ch})
	f.mu.Unlock()
	return ch
}

// Run fans out pushed events to all subscribers.
// Blocks until ctx is cancelled, then closes every output channel.
func (f *FanOut) Run(ctx context.Context) {
	defer func() {
		f.mu.RLock()
		for _, s := range f.outputs {
			close(s.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.input:
			f.mu.RLock()
			for _, s := range f.outputs {
				select {
				case s.ch <- ev:
				default:
					f.drop(s.name, ev)
				}
			}
			f.mu.RUnlock()
		}
	}
}

func (f *FanOut) drop(name string, ev model.Event) {
	if f.OnDrop != nil {
		f.OnDrop(name)
		return
	}
	log.Printf("[bus] %s channel full, dropping %s event", name, ev.Kind)
}

// ChannelStat reports (length, capacity) of a subscriber channel.
// Used for reporting channel saturation percentage.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns one stat per subscriber.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, s := range f.outputs {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
