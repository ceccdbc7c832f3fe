// Package gateway streams trading events to dashboard clients over
// WebSocket. New clients receive the most recent events from a replay
// buffer, then live events as the trading loop emits them.
package gateway

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket clients and broadcasts events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Recent envelopes across all channels, sent to new clients
	replay *ReplayBuffer

	Broadcaster *Broadcaster
}

type latestEntry struct {
	Data []byte
	TS   time.Time
	Seq  int64
}

// NewHub creates a Hub that replays the last replaySize envelopes to
// each new client.
func NewHub(replaySize int) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replay:      NewReplayBuffer(replaySize),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Channel names the stream an event belongs to: "event:<kind>:<symbol>".
func Channel(ev model.Event) string {
	return "event:" + string(ev.Kind) + ":" + ev.Symbol
}

// Run broadcasts every event read from events.
// Blocks until ctx is cancelled or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcaster.Broadcast(Channel(ev), ev.JSON())
		}
	}
}

// HandleWS upgrades the request and registers the client. Query
// parameters: kinds=trade,error restricts event kinds; since_seq=N
// replays only envelopes newer than N.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}

	var sinceSeq int64
	if s := r.URL.Query().Get("since_seq"); s != "" {
		sinceSeq, _ = strconv.ParseInt(s, 10, 64)
	}

	client := newClient(conn, h, parseKinds(r.URL.Query().Get("kinds")))
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	client.sendInitialState(sinceSeq)
	go client.writePump()
	go client.readPump()
}

func parseKinds(s string) map[model.EventKind]bool {
	if s == "" {
		return nil
	}
	kinds := make(map[model.EventKind]bool)
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds[model.EventKind(strings.ToLower(k))] = true
		}
	}
	return kinds
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Latest returns the last envelope of every channel.
func (h *Hub) Latest() map[string][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string][]byte, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// Replay returns buffered envelopes with seq greater than sinceSeq, oldest first.
func (h *Hub) Replay(sinceSeq int64) [][]byte {
	entries := h.replay.Since(sinceSeq, nil)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// Seq returns the global sequence number of the last broadcast.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
