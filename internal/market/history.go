package market

import (
	"context"
	"fmt"
)

// HistorySource adapts a Provider to the closes-only lookups the analysis
// services need.
type HistorySource struct {
	provider Provider
}

// NewHistorySource creates a history source over a provider
func NewHistorySource(p Provider) *HistorySource {
	return &HistorySource{provider: p}
}

// rangeForDays picks the smallest chart range covering the lookback
func rangeForDays(days int) string {
	switch {
	case days <= 22:
		return "1mo"
	case days <= 66:
		return "3mo"
	case days <= 132:
		return "6mo"
	case days <= 260:
		return "1y"
	default:
		return "2y"
	}
}

// DailyCloses returns up to days daily closing prices, oldest first
func (h *HistorySource) DailyCloses(ctx context.Context, symbol string, days int) ([]float64, error) {
	if days <= 0 {
		days = 90
	}
	normalized := NormalizeSymbol(symbol)

	candles, err := h.provider.GetCandles(ctx, normalized, rangeForDays(days), "1d")
	if err != nil {
		return nil, fmt.Errorf("history fetch failed for %s: %w", normalized, err)
	}

	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.Close > 0 {
			closes = append(closes, c.Close)
		}
	}
	if len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	return closes, nil
}

// LatestPrice returns the current quote price for a symbol
func (h *HistorySource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := h.provider.GetQuote(ctx, NormalizeSymbol(symbol))
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}
