package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
)

// at returns a time on a regular session day in the default close zone.
func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, DefaultSession.Location)
}

// window builds a two-sample window ending at latest.
func window(latest time.Time, series indicator.Series) Window {
	return Window{
		Times:      []time.Time{latest.Add(-time.Minute), latest},
		Open:       []float64{100, 101},
		High:       []float64{101, 102},
		Low:        []float64{99, 100},
		Close:      []float64{100.5, 101.5},
		Volume:     []float64{10, 10},
		Indicators: series,
	}
}

func cciSeries(prev, cur float64) indicator.Series {
	return indicator.Series{"cci_10": {"output": {prev, cur}}}
}

func TestCrossover_BuyOnUpwardCross(t *testing.T) {
	s := NewCrossover("CCI", Params{})
	d := s.EvaluateBuy(window(at(16, 0), cciSeries(-2.0, 3.5)))

	if !d.Act {
		t.Fatalf("expected buy, got hold: %s", d.Reason)
	}
	if d.Quantity != AllAvailable {
		t.Errorf("quantity: got %d, want %d", d.Quantity, AllAvailable)
	}
	if d.Price != 101 {
		t.Errorf("price: got %v, want latest open 101", d.Price)
	}
}

func TestCrossover_BuyWithSixteenMinutesLeft(t *testing.T) {
	s := NewCrossover("CCI", Params{})
	if d := s.EvaluateBuy(window(at(21, 44), cciSeries(-2.0, 3.5))); !d.Act {
		t.Fatalf("16 minutes left must allow buy: %s", d.Reason)
	}
}

func TestCrossover_SellOnDownwardCross(t *testing.T) {
	s := NewCrossover("CCI", Params{})
	d := s.EvaluateSell(window(at(16, 0), cciSeries(3.5, -2.0)))

	if !d.Act || d.Quantity != AllAvailable {
		t.Fatalf("expected sell of all, got %+v", d)
	}
	if s.EvaluateBuy(window(at(16, 0), cciSeries(3.5, -2.0))).Act {
		t.Error("downward cross must not buy")
	}
}

func TestCrossover_EndOfSession(t *testing.T) {
	s := NewCrossover("CCI", Params{})
	w := window(at(21, 50), cciSeries(-2.0, 3.5))

	if d := s.EvaluateBuy(w); d.Act {
		t.Error("buy must be suppressed 10 minutes before close")
	}
	d := s.EvaluateSell(w)
	if !d.Act {
		t.Fatal("sell must be forced 10 minutes before close")
	}
	if !strings.Contains(d.Reason, "flattening") {
		t.Errorf("unexpected reason %q", d.Reason)
	}
}

func TestCrossover_ExactlyAtCutoff(t *testing.T) {
	s := NewCrossover("CCI", Params{})
	w := window(at(21, 45), cciSeries(-2.0, 3.5))

	if s.EvaluateBuy(w).Act {
		t.Error("buy must be suppressed at exactly 15 minutes")
	}
	if s.EvaluateSell(w).Act {
		t.Error("flatten must not fire at exactly 15 minutes without a cross")
	}
}

func TestCrossover_FlattenWithoutIndicatorValues(t *testing.T) {
	s := NewCrossover("CCI", Params{})
	w := window(at(21, 55), indicator.Series{})

	if !s.EvaluateSell(w).Act {
		t.Error("flatten is independent of the oscillator")
	}
}

func TestCrossover_WarmingUpHolds(t *testing.T) {
	s := NewCrossover("CCI", Params{})
	w := window(at(16, 0), indicator.Series{"cci_10": {"output": {3.5}}})

	if s.EvaluateBuy(w).Act || s.EvaluateSell(w).Act {
		t.Error("a single value must not produce a decision")
	}
}

func TestCrossover_NoQuotes(t *testing.T) {
	s := NewCrossover("CCI", Params{})
	if s.EvaluateBuy(Window{}).Act || s.EvaluateSell(Window{}).Act {
		t.Error("empty window must hold")
	}
}

func TestCrossover_OverrideOscillator(t *testing.T) {
	s := NewCrossover("CCI", Params{
		Indicators: indicator.Set{"oscillator": {Name: "cci", Params: []float64{20}, Inputs: []indicator.Column{"high", "low", "close"}}},
		Thresholds: map[string]float64{"level": 100},
	})
	set := s.Indicators()
	if got := set["oscillator"].QualifiedName(); got != "cci_20" {
		t.Fatalf("oscillator: got %s, want cci_20", got)
	}
	if got := set["oscillator"].Outputs; len(got) != 1 || got[0] != "output" {
		t.Errorf("default outputs not kept: %v", got)
	}

	w := window(at(16, 0), indicator.Series{"cci_20": {"output": {90, 110}}})
	if !s.EvaluateBuy(w).Act {
		t.Error("expected buy crossing level 100")
	}
}
