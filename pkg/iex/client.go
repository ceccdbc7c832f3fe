// Package iex is a REST client for IEX Cloud intraday stock prices.
package iex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	Token      string
	BaseURL    string        // default: https://cloud.iexapis.com
	Version    string        // default: stable
	Timeout    time.Duration // default: 7s
	RateLimit  float64       // requests per second, default 50
	Burst      int           // default 10
	Location   *time.Location
	Debug      bool
	HTTPClient *http.Client
}

type Client struct {
	token   string
	baseURL string
	version string
	loc     *time.Location
	debug   bool

	httpClient *http.Client
	limiter    *rate.Limiter
}

const DefaultBaseURL = "https://cloud.iexapis.com"

// ErrNoData is returned when the feed has no minute bars yet.
var ErrNoData = errors.New("iex: no intraday data")

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("iex: status %d: %s", e.StatusCode, e.Body)
}

// New initializes the client. Minute bars are interpreted in
// America/New_York unless Location is set.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = "stable"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		cfg.Location = loc
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		token:      cfg.Token,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    strings.Trim(cfg.Version, "/"),
		loc:        cfg.Location,
		debug:      cfg.Debug,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
}

// IntradayPrice is one minute bar. Price fields are null for minutes
// without trades.
type IntradayPrice struct {
	Date           string   `json:"date"`   // 2006-01-02
	Minute         string   `json:"minute"` // 15:04
	Label          string   `json:"label"`
	Open           *float64 `json:"open"`
	High           *float64 `json:"high"`
	Low            *float64 `json:"low"`
	Close          *float64 `json:"close"`
	Average        *float64 `json:"average"`
	Volume         float64  `json:"volume"`
	Notional       float64  `json:"notional"`
	NumberOfTrades int64    `json:"numberOfTrades"`

	MarketOpen     *float64 `json:"marketOpen"`
	MarketHigh     *float64 `json:"marketHigh"`
	MarketLow      *float64 `json:"marketLow"`
	MarketClose    *float64 `json:"marketClose"`
	MarketAverage  *float64 `json:"marketAverage"`
	MarketVolume   float64  `json:"marketVolume"`
	MarketNotional float64  `json:"marketNotional"`
}

// Time returns the bar's start in the client's exchange location.
func (c *Client) Time(p IntradayPrice) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", p.Date+" "+p.Minute, c.loc)
}

// IntradayPrices returns today's minute bars for symbol in time order.
func (c *Client) IntradayPrices(ctx context.Context, symbol string) ([]IntradayPrice, error) {
	return c.intraday(ctx, symbol, 0)
}

// LastIntradayPrice returns the most recent minute bar.
func (c *Client) LastIntradayPrice(ctx context.Context, symbol string) (IntradayPrice, error) {
	bars, err := c.intraday(ctx, symbol, 1)
	if err != nil {
		return IntradayPrice{}, err
	}
	if len(bars) == 0 {
		return IntradayPrice{}, ErrNoData
	}
	return bars[len(bars)-1], nil
}

func (c *Client) intraday(ctx context.Context, symbol string, last int) ([]IntradayPrice, error) {
	q := url.Values{}
	q.Set("token", c.token)
	if last > 0 {
		q.Set("chartLast", strconv.Itoa(last))
	}
	reqURL := fmt.Sprintf("%s/%s/stock/%s/intraday-prices?%s",
		c.baseURL, c.version, url.PathEscape(strings.ToLower(symbol)), q.Encode())

	var out []IntradayPrice
	if err := c.get(ctx, reqURL, &out); err != nil {
		return nil, fmt.Errorf("intraday-prices %s: %w", symbol, err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, reqURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	if c.debug {
		log.Printf("[iex] request: GET %s", req.URL.Path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[iex] HTTP error: GET %s err=%v", req.URL.Path, err)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	return nil
}
