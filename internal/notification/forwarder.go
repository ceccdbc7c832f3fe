package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Forwarder converts trade, error and market session events into alerts.
// Error alerts are rate limited so a flapping data feed does not flood
// the channel; trades are always sent.
type Forwarder struct {
	notifier Notifier
	errors   *rate.Limiter
	timeout  time.Duration
}

// NewForwarder creates a forwarder allowing at most one error alert per
// errorEvery, with a burst of 3.
func NewForwarder(n Notifier, errorEvery time.Duration) *Forwarder {
	if errorEvery <= 0 {
		errorEvery = time.Minute
	}
	return &Forwarder{
		notifier: n,
		errors:   rate.NewLimiter(rate.Every(errorEvery), 3),
		timeout:  10 * time.Second,
	}
}

// Run forwards alerts until ctx is cancelled or events is closed.
func (f *Forwarder) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			alert, send := f.alertFor(ev)
			if !send {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, f.timeout)
			if err := f.notifier.Send(sendCtx, alert); err != nil {
				log.Printf("[notify] send %q failed: %v", alert.Title, err)
			}
			cancel()
		}
	}
}

func (f *Forwarder) alertFor(ev model.Event) (Alert, bool) {
	switch ev.Kind {
	case model.EventTrade:
		tr, ok := ev.Payload.(model.Trade)
		if !ok {
			return Alert{}, false
		}
		return Alert{
			Level: AlertInfo,
			Title: fmt.Sprintf("%s %d %s", tr.Intent.Side, tr.Intent.Quantity, tr.Intent.Symbol),
			Message: fmt.Sprintf("%s order %s %s at %.2f (ref %.2f): %s",
				tr.Intent.Strategy, tr.Ack.OrderID, tr.Ack.Status, tr.Ack.AvgPrice, tr.Intent.Price, tr.Intent.Reason),
		}, true

	case model.EventError:
		if !f.errors.Allow() {
			return Alert{}, false
		}
		return Alert{Level: AlertWarning, Title: "Trading error " + ev.Symbol, Message: ev.Message}, true

	case model.EventMarket:
		return Alert{Level: AlertInfo, Title: "Market session", Message: ev.Message}, true
	}
	return Alert{}, false
}
