package gateway

import (
	"sort"
	"sync"
)

// replayEntry is one broadcast envelope kept for late joiners.
type replayEntry struct {
	Seq     int64
	Channel string
	Data    []byte // pre-built envelope JSON
}

// ReplayBuffer keeps the most recent envelopes in sequence order.
// Sequence numbers are pushed in increasing order, so lookups by seq
// are a binary search over the retained window.
type ReplayBuffer struct {
	mu      sync.RWMutex
	entries []replayEntry
	max     int
}

// NewReplayBuffer creates a buffer retaining up to capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 256
	}
	return &ReplayBuffer{entries: make([]replayEntry, 0, capacity), max: capacity}
}

// Push appends an envelope, evicting the oldest when full.
func (rb *ReplayBuffer) Push(seq int64, channel string, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(rb.entries) == rb.max {
		copy(rb.entries, rb.entries[1:])
		rb.entries = rb.entries[:rb.max-1]
	}
	rb.entries = append(rb.entries, replayEntry{Seq: seq, Channel: channel, Data: data})
}

// Since returns entries with seq > after whose channel passes match,
// oldest first. A nil match keeps every channel.
func (rb *ReplayBuffer) Since(after int64, match func(channel string) bool) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	i := sort.Search(len(rb.entries), func(i int) bool { return rb.entries[i].Seq > after })
	out := make([]replayEntry, 0, len(rb.entries)-i)
	for _, e := range rb.entries[i:] {
		if match == nil || match(e.Channel) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.entries)
}
