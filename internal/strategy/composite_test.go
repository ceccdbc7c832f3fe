package strategy

import (
	"testing"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
)

func compositeSeries(rsi, macdLong float64) indicator.Series {
	return indicator.Series{
		"rsi_7":      {"output": {50, rsi}},
		"macd_1_8_6": {"short": {0, 0}, "long": {0, macdLong}, "signal": {0, 0}},
	}
}

func TestComposite_BuyWhenOversoldInDowntrend(t *testing.T) {
	s := NewComposite("RSI", Params{})
	d := s.EvaluateBuy(window(at(16, 0), compositeSeries(28, -0.5)))

	if !d.Act || d.Quantity != AllAvailable {
		t.Fatalf("expected buy of all, got %+v", d)
	}
}

func TestComposite_NoBuyWithoutTrendConfirmation(t *testing.T) {
	s := NewComposite("RSI", Params{})
	if s.EvaluateBuy(window(at(16, 0), compositeSeries(28, -0.1))).Act {
		t.Error("macd.long above -0.3 must not buy")
	}
}

func TestComposite_BuySuppressedNearClose(t *testing.T) {
	s := NewComposite("RSI", Params{})
	if s.EvaluateBuy(window(at(21, 50), compositeSeries(28, -0.5))).Act {
		t.Error("buy must be suppressed inside the cutoff")
	}
}

func TestComposite_SellWhenOverbought(t *testing.T) {
	s := NewComposite("RSI", Params{})
	if d := s.EvaluateSell(window(at(16, 0), compositeSeries(85, 0.4))); !d.Act {
		t.Fatalf("rsi 85 must sell: %s", d.Reason)
	}
}

func TestComposite_OverboughtSellsWithoutTrend(t *testing.T) {
	s := NewComposite("RSI", Params{})
	w := window(at(16, 0), indicator.Series{"rsi_7": {"output": {70, 85}}})

	if d := s.EvaluateSell(w); !d.Act {
		t.Fatalf("rsi 85 must sell with macd missing: %s", d.Reason)
	}
	w = window(at(16, 0), indicator.Series{"rsi_7": {"output": {50, 65}}})
	if s.EvaluateSell(w).Act {
		t.Error("rsi 65 needs the trend to sell")
	}
	if s.EvaluateBuy(window(at(16, 0), indicator.Series{"rsi_7": {"output": {50, 28}}})).Act {
		t.Error("buy needs the trend")
	}
}

func TestComposite_SellWhenWeakening(t *testing.T) {
	s := NewComposite("RSI", Params{})
	if !s.EvaluateSell(window(at(16, 0), compositeSeries(65, -0.1))).Act {
		t.Error("rsi 65 with negative trend must sell")
	}
	if s.EvaluateSell(window(at(16, 0), compositeSeries(65, 0.1))).Act {
		t.Error("rsi 65 with positive trend must hold")
	}
}

func TestComposite_SellIgnoresCutoff(t *testing.T) {
	s := NewComposite("RSI", Params{})
	if s.EvaluateSell(window(at(21, 55), compositeSeries(50, 0.2))).Act {
		t.Error("composite must not force a sell near close")
	}
}

func TestComposite_DeclaresIndicators(t *testing.T) {
	set := NewComposite("RSI", Params{}).Indicators()
	want := map[string]indicator.QualifiedName{
		"rsi": "rsi_7", "macd": "macd_1_8_6", "sma_fast": "sma_12", "sma_slow": "sma_26",
	}
	for key, name := range want {
		if got := set[key].QualifiedName(); got != name {
			t.Errorf("%s: got %s, want %s", key, got, name)
		}
	}
}
