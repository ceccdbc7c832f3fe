package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Event kinds the client wants; nil means everything.
	filterMu sync.RWMutex
	kinds    map[model.EventKind]bool
}

// filterMsg updates a client's event filter: {"kinds":["trade","error"]}.
type filterMsg struct {
	Kinds []string `json:"kinds"`
}

func newClient(conn *websocket.Conn, hub *Hub, kinds map[model.EventKind]bool) *Client {
	return &Client{
		conn:  conn,
		send:  make(chan []byte, 256),
		hub:   hub,
		kinds: kinds,
	}
}

func (c *Client) sendInitialState(sinceSeq int64) {
	for _, e := range c.hub.replay.Since(sinceSeq, c.matchesChannel) {
		select {
		case c.send <- e.Data:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: batch queued envelopes into one frame,
			// newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Ping  int64    `json:"ping"`
			Kinds []string `json:"kinds"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		if base.Ping > 0 {
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      base.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			select {
			case c.send <- pong:
			default:
			}
			continue
		}
		if base.Kinds != nil {
			c.setKinds(filterMsg{Kinds: base.Kinds})
		}
	}
}

func (c *Client) setKinds(msg filterMsg) {
	kinds := make(map[model.EventKind]bool, len(msg.Kinds))
	for _, k := range msg.Kinds {
		kinds[model.EventKind(strings.ToLower(k))] = true
	}
	if len(kinds) == 0 {
		kinds = nil
	}
	c.filterMu.Lock()
	c.kinds = kinds
	c.filterMu.Unlock()
}

// matchesChannel reports whether the client wants envelopes on channel.
// Channels that are not event channels are always delivered.
func (c *Client) matchesChannel(channel string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	if c.kinds == nil {
		return true
	}
	kind, ok := parseChannel(channel)
	if !ok {
		return true
	}
	return c.kinds[kind]
}

// parseChannel extracts the kind from "event:<kind>:<symbol>".
func parseChannel(channel string) (model.EventKind, bool) {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) < 2 || parts[0] != "event" {
		return "", false
	}
	return model.EventKind(parts[1]), true
}
