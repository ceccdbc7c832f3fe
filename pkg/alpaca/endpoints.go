package alpaca

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// Clock returns the market clock.
func (c *Client) Clock(ctx context.Context) (Clock, error) {
	var out Clock
	err := c.do(ctx, http.MethodGet, "api.clock", "", nil, nil, &out)
	return out, err
}

// IsOpen reports whether the market is open now.
func (c *Client) IsOpen(ctx context.Context) (bool, error) {
	clock, err := c.Clock(ctx)
	if err != nil {
		return false, err
	}
	return clock.IsOpen, nil
}

// Account returns the trading account.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var out Account
	err := c.do(ctx, http.MethodGet, "api.account", "", nil, nil, &out)
	return out, err
}

// Positions returns all open positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var out []Position
	err := c.do(ctx, http.MethodGet, "api.positions", "", nil, nil, &out)
	return out, err
}

// Position returns the open position in symbol, ErrNoPosition when flat.
func (c *Client) Position(ctx context.Context, symbol string) (Position, error) {
	var out Position
	err := c.do(ctx, http.MethodGet, "api.position", symbol, nil, nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return Position{}, ErrNoPosition
	}
	return out, err
}

// SubmitOrder places a new order.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.Type == "" {
		req.Type = "market"
	}
	if req.TimeInForce == "" {
		req.TimeInForce = "day"
	}
	var out Order
	err := c.do(ctx, http.MethodPost, "api.orders", "", nil, req, &out)
	return out, err
}

// Order returns a single order by id.
func (c *Client) Order(ctx context.Context, id string) (Order, error) {
	var out Order
	err := c.do(ctx, http.MethodGet, "api.order", id, nil, nil, &out)
	return out, err
}

// Orders lists orders with the given status (open, closed, all), newest
// first. The API caps limit at 500.
func (c *Client) Orders(ctx context.Context, status string, limit int) ([]Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("direction", "desc")

	var out []Order
	err := c.do(ctx, http.MethodGet, "api.orders", "", q, nil, &out)
	return out, err
}

// Calendar returns trading days between start and end (YYYY-MM-DD).
func (c *Client) Calendar(ctx context.Context, start, end string) ([]CalendarDay, error) {
	q := url.Values{}
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	var out []CalendarDay
	err := c.do(ctx, http.MethodGet, "api.calendar", "", q, nil, &out)
	return out, err
}
