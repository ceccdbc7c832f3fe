package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recorder) Send(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func TestForwarder_AlertsByKind(t *testing.T) {
	rec := &recorder{}
	f := NewForwarder(rec, time.Hour)

	it := model.NewTradeIntent(model.SideBuy, "AAPL", 3, 100, time.Now())
	it.Strategy = "CCI"
	ch := make(chan model.Event, 10)
	ch <- model.Event{Kind: model.EventQuote, Payload: model.Quote{}}
	ch <- model.Event{Kind: model.EventTrade, Payload: model.Trade{Intent: it, Ack: model.OrderAck{OrderID: "PAPER-1", Status: "filled", AvgPrice: 100.1}}}
	for i := 0; i < 5; i++ {
		ch <- model.Event{Kind: model.EventError, Symbol: "AAPL", Message: "feed down"}
	}
	ch <- model.Event{Kind: model.EventMarket, Message: "market opened"}
	close(ch)
	f.Run(context.Background(), ch)

	// 1 trade + 3 errors (burst) + 1 market
	if len(rec.alerts) != 5 {
		t.Fatalf("alerts = %d, want 5: %+v", len(rec.alerts), rec.alerts)
	}
	if rec.alerts[0].Title != "buy 3 AAPL" || !strings.Contains(rec.alerts[0].Message, "PAPER-1") {
		t.Errorf("trade alert = %+v", rec.alerts[0])
	}
	if rec.alerts[1].Level != AlertWarning {
		t.Errorf("error alert level = %s", rec.alerts[1].Level)
	}
	if rec.alerts[4].Message != "market opened" {
		t.Errorf("market alert = %+v", rec.alerts[4])
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Level: AlertCritical, Title: "t", Message: "m"}); err != nil {
		t.Fatal(err)
	}
	if got["level"] != "CRITICAL" || got["title"] != "t" || got["text"] != "[CRITICAL] t: m" {
		t.Errorf("payload = %v", got)
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		text, _ = body["text"].(string)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	if err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "buy 1 AAPL", Message: "at 1.5"}); err != nil {
		t.Fatal(err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if !strings.Contains(text, `at 1\.5`) {
		t.Errorf("text not escaped: %q", text)
	}
}

func TestMulti_FirstError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &recorder{}
	m := Multi{NewWebhookNotifier(srv.URL), rec}
	if err := m.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Error("expected webhook error")
	}
	if len(rec.alerts) != 1 {
		t.Error("later notifier skipped")
	}
}
