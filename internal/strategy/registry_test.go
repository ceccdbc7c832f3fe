package strategy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

func TestRegistry_BuiltIns(t *testing.T) {
	for _, name := range []string{"CCI", "rsi"} {
		s, err := New(name, Params{})
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if len(s.Indicators()) == 0 {
			t.Errorf("%s: no indicators declared", name)
		}
	}
}

func TestRegistry_UnknownIsConfigurationError(t *testing.T) {
	_, err := New("MACD_FLIP", Params{})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestLoadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	doc := `
strategies:
  cci:
    close_hour: 16
    cutoff_minutes: 30
    indicators:
      oscillator:
        name: cci
        params: [14]
        inputs: [high, low, close]
  RSI:
    thresholds:
      buy_max: 25
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	params, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	cci := params["CCI"]
	if cci.CloseHour == nil || *cci.CloseHour != 16 || cci.CutoffMinutes == nil || *cci.CutoffMinutes != 30 {
		t.Errorf("session overrides lost: %+v", cci)
	}
	s := NewCrossover("CCI", cci)
	if got := s.Indicators()["oscillator"].QualifiedName(); got != "cci_14" {
		t.Errorf("oscillator: got %s, want cci_14", got)
	}
	if got := params["RSI"].Thresholds["buy_max"]; got != 25 {
		t.Errorf("buy_max: got %v, want 25", got)
	}
}

func TestLoadParams_ExplicitZeroAndTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	doc := `
strategies:
  CCI:
    timezone: America/New_York
    close_hour: 16
    cutoff_minutes: 0
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	params, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}

	sess := params["CCI"].session()
	if sess.CutoffMinutes != 0 {
		t.Errorf("cutoff = %v, want explicit 0", sess.CutoffMinutes)
	}
	if sess.CloseHour != 16 || sess.Location.String() != "America/New_York" {
		t.Errorf("session = %d %s", sess.CloseHour, sess.Location)
	}

	defaults := Params{}.session()
	if defaults.CutoffMinutes != 15 || defaults.CloseHour != 22 {
		t.Errorf("defaults = %+v", defaults)
	}
}

func TestLoadParams_RejectsUnknownTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	doc := "strategies:\n  CCI:\n    timezone: Mars/Olympus\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadParams(path); err == nil {
		t.Fatal("expected an error for an unknown timezone")
	}
}

func TestLoadParams_EmptyPath(t *testing.T) {
	params, err := LoadParams("")
	if err != nil || len(params) != 0 {
		t.Fatalf("expected no overrides, got %v, %v", params, err)
	}
}

func TestEngine_EvaluateOverHistory(t *testing.T) {
	s, _ := New("CCI", Params{})
	e, err := NewEngine(s)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	quotes := make([]model.Quote, 30)
	for i := range quotes {
		p := 100.0 + float64(i)
		quotes[i] = model.Quote{Time: at(15, i), Open: p, High: p + 1, Low: p - 1, Close: p}
	}
	ev, err := e.Evaluate(quotes)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := len(ev.Window.Indicators.Channel("cci_10", "output")); got != 12 {
		t.Errorf("cci values: got %d, want 12", got)
	}
	// Steady uptrend: oscillator stays positive, no cross either way
	if ev.Buy.Act || ev.Sell.Act {
		t.Errorf("unexpected decisions: buy=%+v sell=%+v", ev.Buy, ev.Sell)
	}
}
