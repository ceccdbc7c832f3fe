package strategy

import (
	"testing"
	"time"
)

func TestSession_MinutesToClose(t *testing.T) {
	s := DefaultSession
	if got := s.MinutesToClose(at(21, 50)); got != 10 {
		t.Errorf("21:50: got %v, want 10", got)
	}
	if got := s.MinutesToClose(at(21, 44).Add(30 * time.Second)); got != 15.5 {
		t.Errorf("21:44:30: got %v, want 15.5", got)
	}
}

func TestSession_ConvertsToSessionLocation(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	latest := time.Date(2026, 3, 2, 21, 0, 0, 0, cet)
	if got := DefaultSession.MinutesToClose(latest); got != 60 {
		t.Errorf("got %v, want 60", got)
	}
}

func TestSession_ExchangeTimeBars(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	// IEX bars carry New York wall time; 15:50 there is 21:50 in Paris.
	latest := time.Date(2026, 3, 2, 15, 50, 0, 0, ny)

	s := DefaultSession
	if got := s.MinutesToClose(latest); got != 10 {
		t.Fatalf("minutes to close = %v, want 10", got)
	}
	if s.BuyAllowed(latest) {
		t.Error("buy allowed 10 minutes before close")
	}
	if !s.MustFlatten(latest) {
		t.Error("flatten expected 10 minutes before close")
	}

	exchange := Session{Location: ny, CloseHour: 16, CutoffMinutes: 15}
	if got := exchange.MinutesToClose(latest); got != 10 {
		t.Errorf("exchange session: got %v, want 10", got)
	}
}

func TestCrossover_FlattensExchangeTimeBar(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	s := NewCrossover("CCI", Params{})
	w := window(time.Date(2026, 3, 2, 15, 50, 0, 0, ny), cciSeries(-2.0, 3.5))

	if s.EvaluateBuy(w).Act {
		t.Error("buy must be suppressed near the close")
	}
	if !s.EvaluateSell(w).Act {
		t.Error("sell must be forced near the close")
	}
}

func TestSession_NilLocationUsesSample(t *testing.T) {
	s := Session{CloseHour: 22, CutoffMinutes: 15}
	latest := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	if got := s.MinutesToClose(latest); got != 60 {
		t.Errorf("got %v, want 60", got)
	}
}

func TestSession_AfterClose(t *testing.T) {
	s := DefaultSession
	if s.BuyAllowed(at(22, 30)) {
		t.Error("buy allowed after close")
	}
	if !s.MustFlatten(at(22, 30)) {
		t.Error("flatten expected after close")
	}
}
