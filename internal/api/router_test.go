package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/thibautquentinjacob/trading-bot/internal/execution"
	"github.com/thibautquentinjacob/trading-bot/internal/gateway"
	"github.com/thibautquentinjacob/trading-bot/internal/trading"
)

type fakeStatus struct{ st trading.Status }

func (f fakeStatus) Status() trading.Status { return f.st }

type fakeTrades struct {
	limit int
	err   error
}

func (f *fakeTrades) GetTrades(limit int) ([]execution.TradeRecord, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []execution.TradeRecord{{OrderID: "PAPER-1", Symbol: "AAPL"}}, nil
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthDefault(t *testing.T) {
	rec := get(t, NewRouter(Deps{}), "/api/v1/health")
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"status\":\"ok\"}\n" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestStatus(t *testing.T) {
	mux := NewRouter(Deps{Status: fakeStatus{trading.Status{Symbol: "AAPL", Strategy: "CCI", State: "idle"}}})
	rec := get(t, mux, "/api/v1/status")
	var st trading.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Symbol != "AAPL" || st.Strategy != "CCI" {
		t.Errorf("status = %+v", st)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestTrades(t *testing.T) {
	ft := &fakeTrades{}
	mux := NewRouter(Deps{Trades: ft})

	rec := get(t, mux, "/api/v1/trades?limit=5000")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ft.limit != 1000 {
		t.Errorf("limit = %d, want capped 1000", ft.limit)
	}

	if rec := get(t, mux, "/api/v1/trades?limit=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit code = %d", rec.Code)
	}

	ft.err = errors.New("db closed")
	if rec := get(t, mux, "/api/v1/trades"); rec.Code != http.StatusInternalServerError {
		t.Errorf("error code = %d", rec.Code)
	}
}

func TestEvents(t *testing.T) {
	hub := gateway.NewHub(10)
	hub.Broadcaster.Broadcast("event:quote:AAPL", []byte(`{"kind":"quote"}`))
	hub.Broadcaster.Broadcast("event:trade:AAPL", []byte(`{"kind":"trade"}`))

	rec := get(t, NewRouter(Deps{Hub: hub}), "/api/v1/events?since_seq=1")
	var body struct {
		Seq    int64             `json:"seq"`
		Events []json.RawMessage `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Seq != 2 || len(body.Events) != 1 {
		t.Errorf("seq=%d events=%d, want 2 and 1", body.Seq, len(body.Events))
	}
}

func TestMissingSourcesNotRouted(t *testing.T) {
	if rec := get(t, NewRouter(Deps{}), "/api/v1/status"); rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
}
