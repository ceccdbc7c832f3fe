// Package marketdata provides the quote sources the trading loop polls:
// the IEX Cloud REST feed for live trading and an archive replay for
// backtests.
package marketdata

import (
	"context"
	"fmt"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/pkg/iex"
)

// IEXSource adapts the IEX intraday-prices endpoint to model.QuoteSource.
// Minutes without trades come back with zero OHLC; the quote repository
// fills them.
type IEXSource struct {
	client *iex.Client
}

// NewIEXSource creates a source backed by client.
func NewIEXSource(client *iex.Client) *IEXSource {
	return &IEXSource{client: client}
}

// FetchHistory returns today's minute quotes in time order.
func (s *IEXSource) FetchHistory(ctx context.Context, symbol string) ([]model.Quote, error) {
	bars, err := s.client.IntradayPrices(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]model.Quote, 0, len(bars))
	for _, b := range bars {
		q, err := s.toQuote(symbol, b)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// FetchLatest returns the most recent minute quote.
func (s *IEXSource) FetchLatest(ctx context.Context, symbol string) (model.Quote, error) {
	b, err := s.client.LastIntradayPrice(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}
	return s.toQuote(symbol, b)
}

func (s *IEXSource) toQuote(symbol string, b iex.IntradayPrice) (model.Quote, error) {
	ts, err := s.client.Time(b)
	if err != nil {
		return model.Quote{}, fmt.Errorf("bar time %q %q: %w", b.Date, b.Minute, err)
	}
	return model.Quote{
		Symbol:         symbol,
		Time:           ts,
		Open:           val(b.Open),
		High:           val(b.High),
		Low:            val(b.Low),
		Close:          val(b.Close),
		Volume:         b.Volume,
		Average:        val(b.Average),
		Notional:       b.Notional,
		NumberOfTrades: b.NumberOfTrades,
		MarketOpen:     val(b.MarketOpen),
		MarketHigh:     val(b.MarketHigh),
		MarketLow:      val(b.MarketLow),
		MarketClose:    val(b.MarketClose),
		MarketVolume:   b.MarketVolume,
		MarketAverage:  val(b.MarketAverage),
		MarketNotional: b.MarketNotional,
	}, nil
}

func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
