package model

import (
	"encoding/json"
	"time"
)

// EventKind classifies what a telemetry event carries.
type EventKind string

const (
	EventQuote    EventKind = "quote"
	EventDecision EventKind = "decision"
	EventTrade    EventKind = "trade"
	EventError    EventKind = "error"
	EventAccount  EventKind = "account"
	EventMarket   EventKind = "market"
)

// Event is a fire-and-forget notification emitted by the trading loop
// for dashboards, journals and alerting.
type Event struct {
	Kind    EventKind `json:"kind"`
	Symbol  string    `json:"symbol"`
	Time    time.Time `json:"time"`
	TraceID string    `json:"trace_id,omitempty"`
	Message string    `json:"message,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// JSON returns the JSON-encoded event.
func (e *Event) JSON() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		// Payload not encodable, keep the envelope.
		b, _ = json.Marshal(Event{Kind: e.Kind, Symbol: e.Symbol, Time: e.Time, TraceID: e.TraceID, Message: e.Message})
	}
	return b
}
