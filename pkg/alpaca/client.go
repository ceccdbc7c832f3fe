// Package alpaca is a small REST client for the Alpaca trading API.
// It covers the routes the bot uses: market clock, account, positions
// and market orders.
//
// Usage example:
//
//	c := alpaca.New(alpaca.Config{KeyID: "PK...", SecretKey: "..."})
//	clock, err := c.Clock(ctx)
//	if err != nil { log.Fatal(err) }
//	fmt.Println("market open:", clock.IsOpen)
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ---- Config & client ----

type Config struct {
	KeyID     string
	SecretKey string

	BaseURL    string        // default: https://paper-api.alpaca.markets
	Version    string        // default: v2
	Timeout    time.Duration // default: 7s
	RateLimit  float64       // requests per second, default 3 (200/min)
	Burst      int           // default 5
	Debug      bool
	HTTPClient *http.Client // optional, for tests
}

type Client struct {
	keyID     string
	secretKey string
	baseURL   string
	version   string
	debug     bool

	httpClient *http.Client
	limiter    *rate.Limiter
}

const (
	DefaultPaperURL = "https://paper-api.alpaca.markets"
	DefaultLiveURL  = "https://api.alpaca.markets"
)

var routes = map[string]string{
	"api.clock":     "/clock",
	"api.account":   "/account",
	"api.positions": "/positions",
	"api.position":  "/positions/",
	"api.orders":    "/orders",
	"api.order":     "/orders/",
	"api.calendar":  "/calendar",
}

// ErrNoPosition is returned by Position when the account holds none.
var ErrNoPosition = errors.New("alpaca: position does not exist")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// New initializes the client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPaperURL
	}
	if cfg.Version == "" {
		cfg.Version = "v2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		keyID:      cfg.KeyID,
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    strings.Trim(cfg.Version, "/"),
		debug:      cfg.Debug,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
}

// ---- Helpers ----

func (c *Client) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("APCA-API-KEY-ID", c.keyID)
	h.Set("APCA-API-SECRET-KEY", c.secretKey)
	return h
}

func (c *Client) buildURL(route, suffix string) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	return c.baseURL + "/" + c.version + uri + url.PathEscape(suffix), nil
}

// do sends one request after waiting on the rate limiter and decodes a
// 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, route, suffix string, query url.Values, body, out any) error {
	reqURL, err := c.buildURL(route, suffix)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", route, err)
		}
		rd = bytes.NewReader(b)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, rd)
	if err != nil {
		return err
	}
	req.Header = c.requestHeaders()

	if c.debug {
		log.Printf("[alpaca] request: %s %s", method, reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[alpaca] HTTP error: %s %s err=%v", method, reqURL, err)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if c.debug {
		log.Printf("[alpaca] response: code=%d body=%s", resp.StatusCode, string(raw))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	return nil
}
