package iex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const barsJSON = `[
 {"date":"2026-10-19","minute":"09:30","label":"09:30 AM","open":230.1,"high":230.5,"low":229.9,"close":230.4,"average":230.2,"volume":1200,"notional":276240,"numberOfTrades":31},
 {"date":"2026-10-19","minute":"09:31","label":"09:31 AM","open":null,"high":null,"low":null,"close":null,"average":null,"volume":0,"notional":0,"numberOfTrades":0}
]`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{Token: "tok", BaseURL: srv.URL, RateLimit: 1000, Burst: 100, Location: time.UTC})
}

func TestIntradayPrices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stable/stock/aapl/intraday-prices" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("token") != "tok" {
			t.Errorf("token missing: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Has("chartLast") {
			t.Errorf("unexpected chartLast")
		}
		w.Write([]byte(barsJSON))
	})

	bars, err := c.IntradayPrices(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if bars[0].Open == nil || *bars[0].Open != 230.1 {
		t.Errorf("open = %v", bars[0].Open)
	}
	if bars[1].Open != nil {
		t.Errorf("empty minute open should be nil")
	}

	ts, err := c.Time(bars[1])
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, 10, 19, 9, 31, 0, 0, time.UTC); !ts.Equal(want) {
		t.Errorf("time = %v, want %v", ts, want)
	}
}

func TestLastIntradayPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("chartLast") != "1" {
			t.Errorf("chartLast = %q", r.URL.Query().Get("chartLast"))
		}
		w.Write([]byte(barsJSON))
	})

	bar, err := c.LastIntradayPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if bar.Minute != "09:31" {
		t.Errorf("minute = %s, want last bar", bar.Minute)
	}
}

func TestLastIntradayPrice_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	if _, err := c.LastIntradayPrice(context.Background(), "AAPL"); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte("quota exceeded"))
	})
	_, err := c.IntradayPrices(context.Background(), "AAPL")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("err = %v", err)
	}
}
