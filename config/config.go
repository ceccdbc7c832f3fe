// Package config loads the bot's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/portfolio"
)

// Broker modes.
const (
	BrokerPaper  = "paper"
	BrokerAlpaca = "alpaca"
)

// Market clock modes.
const (
	ClockCalendar = "calendar"
	ClockAlpaca   = "alpaca"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Trading
	Symbol         string
	Strategy       string
	StrategyConfig string // optional YAML overrides
	ReserveCash    decimal.Decimal

	// Update frequencies
	StrategyUpdateFreq       time.Duration
	MarketStatusUpdateFreq   time.Duration
	AccountMetricsUpdateFreq time.Duration

	// Collaborators
	BrokerMode    string
	ClockMode     string
	PaperCash     decimal.Decimal
	SlippageBps   int64
	IEXToken      string
	IEXBaseURL    string
	AlpacaKeyID   string
	AlpacaSecret  string
	AlpacaBaseURL string

	// Risk limits, zero disables
	Risk portfolio.RiskLimits

	// Infrastructure
	RedisAddr     string // empty disables the publisher
	RedisPassword string
	RedisDB       int
	SQLitePath    string // quote archive, empty disables
	JournalPath   string // trade journal, empty disables
	MetricsAddr   string
	APIAddr       string
	ReplaySize    int
	LogLevel      string

	// Alerts
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is loaded first;
// variables already set take precedence.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Symbol:         strings.ToUpper(getEnv("SYMBOL", "AAPL")),
		Strategy:       strings.ToUpper(getEnv("STRATEGY", "CCI")),
		StrategyConfig: getEnv("STRATEGY_CONFIG", ""),
		ReserveCash:    getDecimal("RESERVE_CASH", decimal.NewFromInt(25000)),

		StrategyUpdateFreq:       getMillis("STRATEGY_UPDATE_FREQ", 1500),
		MarketStatusUpdateFreq:   getMillis("MARKET_STATUS_UPDATE_FREQ", 60000),
		AccountMetricsUpdateFreq: getMillis("ACCOUNT_METRICS_UPDATE_FREQ", 10000),

		BrokerMode:    strings.ToLower(getEnv("BROKER_MODE", BrokerPaper)),
		ClockMode:     strings.ToLower(getEnv("MARKET_CLOCK", ClockCalendar)),
		PaperCash:     getDecimal("PAPER_CASH", decimal.NewFromInt(100000)),
		SlippageBps:   int64(getInt("PAPER_SLIPPAGE_BPS", 5)),
		IEXToken:      getEnv("IEX_TOKEN", ""),
		IEXBaseURL:    getEnv("IEX_BASE_URL", ""),
		AlpacaKeyID:   getEnv("APCA_API_KEY_ID", ""),
		AlpacaSecret:  getEnv("APCA_API_SECRET_KEY", ""),
		AlpacaBaseURL: getEnv("APCA_API_BASE_URL", ""),

		Risk: portfolio.RiskLimits{
			MaxPositionSize:  int64(getInt("MAX_POSITION_SIZE", 0)),
			MaxOpenPositions: getInt("MAX_OPEN_POSITIONS", 0),
			MaxDailyLoss:     getDecimal("MAX_DAILY_LOSS", decimal.Zero),
			MaxExposure:      getDecimal("MAX_EXPOSURE", decimal.Zero),
			MaxDrawdownPct:   getFloat("MAX_DRAWDOWN_PCT", 0),
		},

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/quotes.db"),
		JournalPath:   getEnv("JOURNAL_PATH", "data/trades.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),
		ReplaySize:    getInt("EVENT_REPLAY_SIZE", 256),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("ALERT_WEBHOOK_URL", ""),
	}
}

// Validate checks mode-dependent requirements.
func (c *Config) Validate() error {
	var errs []error
	if c.Symbol == "" {
		errs = append(errs, errors.New("SYMBOL is required"))
	}
	if c.IEXToken == "" {
		errs = append(errs, errors.New("IEX_TOKEN is required"))
	}
	switch c.BrokerMode {
	case BrokerPaper:
		if !c.PaperCash.IsPositive() {
			errs = append(errs, errors.New("PAPER_CASH must be positive"))
		}
	case BrokerAlpaca:
	default:
		errs = append(errs, fmt.Errorf("BROKER_MODE %q: want %s or %s", c.BrokerMode, BrokerPaper, BrokerAlpaca))
	}
	switch c.ClockMode {
	case ClockCalendar, ClockAlpaca:
	default:
		errs = append(errs, fmt.Errorf("MARKET_CLOCK %q: want %s or %s", c.ClockMode, ClockCalendar, ClockAlpaca))
	}
	if c.NeedsAlpaca() && (c.AlpacaKeyID == "" || c.AlpacaSecret == "") {
		errs = append(errs, errors.New("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required for alpaca broker or clock"))
	}
	if c.ReserveCash.IsNegative() {
		errs = append(errs, errors.New("RESERVE_CASH must not be negative"))
	}
	if c.StrategyUpdateFreq <= 0 || c.MarketStatusUpdateFreq <= 0 || c.AccountMetricsUpdateFreq <= 0 {
		errs = append(errs, errors.New("update frequencies must be positive"))
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	return errors.Join(errs...)
}

// NeedsAlpaca reports whether an Alpaca client must be built.
func (c *Config) NeedsAlpaca() bool {
	return c.BrokerMode == BrokerAlpaca || c.ClockMode == ClockAlpaca
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

// getMillis reads a duration given in milliseconds, as the update
// frequencies are.
func getMillis(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback)) * time.Millisecond
}
