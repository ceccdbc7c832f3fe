package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SYMBOL", "STRATEGY", "RESERVE_CASH", "STRATEGY_UPDATE_FREQ", "BROKER_MODE", "MARKET_CLOCK"} {
		t.Setenv(k, "")
	}
	c := Load()

	if c.Symbol != "AAPL" || c.Strategy != "CCI" {
		t.Errorf("symbol/strategy = %s/%s", c.Symbol, c.Strategy)
	}
	if !c.ReserveCash.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("reserve = %s", c.ReserveCash)
	}
	if c.StrategyUpdateFreq != 1500*time.Millisecond {
		t.Errorf("poll = %v", c.StrategyUpdateFreq)
	}
	if c.MarketStatusUpdateFreq != time.Minute || c.AccountMetricsUpdateFreq != 10*time.Second {
		t.Errorf("freqs = %v %v", c.MarketStatusUpdateFreq, c.AccountMetricsUpdateFreq)
	}
	if c.BrokerMode != BrokerPaper || c.ClockMode != ClockCalendar {
		t.Errorf("modes = %s %s", c.BrokerMode, c.ClockMode)
	}
	if !c.Risk.Disabled() {
		t.Errorf("risk limits should default to disabled: %+v", c.Risk)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SYMBOL", "msft")
	t.Setenv("STRATEGY", "rsi")
	t.Setenv("RESERVE_CASH", "1000.50")
	t.Setenv("STRATEGY_UPDATE_FREQ", "250")
	t.Setenv("MAX_POSITION_SIZE", "100")
	t.Setenv("MAX_DRAWDOWN_PCT", "oops")

	c := Load()
	if c.Symbol != "MSFT" || c.Strategy != "RSI" {
		t.Errorf("symbol/strategy = %s/%s", c.Symbol, c.Strategy)
	}
	if !c.ReserveCash.Equal(decimal.RequireFromString("1000.5")) {
		t.Errorf("reserve = %s", c.ReserveCash)
	}
	if c.StrategyUpdateFreq != 250*time.Millisecond {
		t.Errorf("poll = %v", c.StrategyUpdateFreq)
	}
	if c.Risk.MaxPositionSize != 100 || c.Risk.MaxDrawdownPct != 0 {
		t.Errorf("risk = %+v", c.Risk)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Symbol: "AAPL", IEXToken: "tok", BrokerMode: BrokerPaper, ClockMode: ClockCalendar,
			PaperCash: decimal.NewFromInt(1000), ReserveCash: decimal.Zero,
			StrategyUpdateFreq: time.Second, MarketStatusUpdateFreq: time.Second, AccountMetricsUpdateFreq: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no token", func(c *Config) { c.IEXToken = "" }, "IEX_TOKEN"},
		{"bad broker", func(c *Config) { c.BrokerMode = "live" }, "BROKER_MODE"},
		{"alpaca without keys", func(c *Config) { c.BrokerMode = BrokerAlpaca }, "APCA_API_KEY_ID"},
		{"alpaca clock without keys", func(c *Config) { c.ClockMode = ClockAlpaca }, "APCA_API_KEY_ID"},
		{"alpaca with keys", func(c *Config) {
			c.BrokerMode = BrokerAlpaca
			c.AlpacaKeyID, c.AlpacaSecret = "k", "s"
		}, ""},
		{"negative reserve", func(c *Config) { c.ReserveCash = decimal.NewFromInt(-1) }, "RESERVE_CASH"},
		{"half telegram", func(c *Config) { c.TelegramBotToken = "x" }, "TELEGRAM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
