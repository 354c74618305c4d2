// Package volatility measures realized volatility, classifies the
// volatility regime and maps volatility into risk scores.
package volatility

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/indicators"
	"github.com/autofinance/autofinance/internal/market"
)

// PriceSource supplies daily closing prices for a symbol
type PriceSource interface {
	DailyCloses(ctx context.Context, symbol string, days int) ([]float64, error)
}

// Service implements the volatility calculations
type Service struct {
	prices PriceSource
	log    zerolog.Logger
}

// NewService creates the volatility service over a price source
func NewService(prices PriceSource) *Service {
	return &Service{
		prices: prices,
		log:    config.NewMCPLogger("volatility"),
	}
}

// volWindow computes annualized volatility over the trailing window, 0 when
// the history is too short
func volWindow(closes []float64, days int) float64 {
	if len(closes) < 2 {
		return 0
	}
	if days > 0 && len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	return indicators.AnnualizedVolatility(closes)
}

// rollingVols slides a window across the series, one volatility per step
func rollingVols(closes []float64, window int) []float64 {
	if len(closes) < window {
		return nil
	}
	vols := make([]float64, 0, len(closes)-window+1)
	for i := window; i <= len(closes); i++ {
		vols = append(vols, indicators.AnnualizedVolatility(closes[i-window:i]))
	}
	return vols
}

// riskBand maps a volatility level to a band and 0..1 risk score. Band
// boundaries belong to the higher band.
func riskBand(vol float64) (string, float64) {
	switch {
	case vol < 0.15:
		return "LOW", vol / 0.15 * 0.3
	case vol < 0.30:
		return "MEDIUM", 0.3 + (vol-0.15)/0.15*0.4
	default:
		return "HIGH", 0.7 + math.Min((vol-0.30)/0.70*0.3, 0.3)
	}
}

// HistoricalVolatility reports realized volatility over standard windows
func (s *Service) HistoricalVolatility(ctx context.Context, symbol string) (map[string]any, error) {
	normalized := market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, normalized, 365)
	if err != nil {
		return nil, err
	}
	if len(closes) < 2 {
		return nil, fmt.Errorf("insufficient price history for %s: %d closes", normalized, len(closes))
	}

	vol30 := volWindow(closes, 30)
	vol60 := volWindow(closes, 60)
	vol90 := volWindow(closes, 90)
	volAll := volWindow(closes, 0)

	current := vol30
	if len(closes) < 30 {
		current = volAll
	}

	return map[string]any{
		"symbol":      normalized,
		"current":     current,
		"vol_30d":     vol30,
		"vol_60d":     vol60,
		"vol_90d":     vol90,
		"vol_all":     volAll,
		"data_points": len(closes),
	}, nil
}

// DetectRegime classifies the current 30-day volatility against a year of
// rolling windows
func (s *Service) DetectRegime(ctx context.Context, symbol string) (map[string]any, error) {
	normalized := market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, normalized, 365)
	if err != nil {
		return nil, err
	}

	history := rollingVols(closes, 30)
	if len(history) == 0 {
		return nil, fmt.Errorf("insufficient price history for %s: %d closes", normalized, len(closes))
	}
	current := history[len(history)-1]
	mean := indicators.Mean(history)

	regime := "NORMAL"
	if current > 1.5*mean {
		regime = "HIGH"
	} else if current < 0.7*mean {
		regime = "LOW"
	}

	below := 0
	for _, v := range history {
		if v <= current {
			below++
		}
	}
	percentile := float64(below) / float64(len(history)) * 100

	return map[string]any{
		"symbol":          normalized,
		"regime":          regime,
		"current_vol":     current,
		"historical_mean": mean,
		"percentile":      percentile,
		"windows":         len(history),
	}, nil
}

// VolatilityScore maps current volatility into a risk band and score
func (s *Service) VolatilityScore(ctx context.Context, symbol string) (map[string]any, error) {
	hist, err := s.HistoricalVolatility(ctx, symbol)
	if err != nil {
		return nil, err
	}

	current := hist["current"].(float64)
	band, score := riskBand(current)

	return map[string]any{
		"symbol":     hist["symbol"],
		"volatility": current,
		"risk_band":  band,
		"risk_score": score,
	}, nil
}

// Compare ranks symbols by current volatility, highest first
func (s *Service) Compare(ctx context.Context, symbols []string) map[string]any {
	rankings := make([]map[string]any, 0, len(symbols))
	for _, sym := range symbols {
		res, err := s.VolatilityScore(ctx, sym)
		if err != nil {
			rankings = append(rankings, map[string]any{
				"symbol": market.NormalizeSymbol(sym),
				"error":  err.Error(),
			})
			continue
		}
		rankings = append(rankings, res)
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		vi, iok := rankings[i]["volatility"].(float64)
		vj, jok := rankings[j]["volatility"].(float64)
		if iok != jok {
			return iok // errored entries sink to the bottom
		}
		return vi > vj
	})

	result := map[string]any{"rankings": rankings}
	if len(rankings) > 0 {
		if _, ok := rankings[0]["volatility"]; ok {
			result["most_volatile"] = rankings[0]["symbol"]
		}
	}
	return result
}

// periodRanges maps the calculate_volatility period argument to a lookback
var periodRanges = map[int]int{30: 30, 60: 60, 90: 90, 180: 180, 365: 365}

// CalculateVolatility is the legacy single-window entry point
func (s *Service) CalculateVolatility(ctx context.Context, symbol string, periodDays int) (map[string]any, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	if _, ok := periodRanges[periodDays]; !ok {
		return nil, fmt.Errorf("unsupported period %d (want 30, 60, 90, 180 or 365)", periodDays)
	}
	normalized := market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, normalized, periodDays)
	if err != nil {
		return nil, err
	}
	if len(closes) < 2 {
		return nil, fmt.Errorf("insufficient price history for %s: %d closes", normalized, len(closes))
	}

	return map[string]any{
		"symbol":      normalized,
		"period_days": periodDays,
		"volatility":  indicators.AnnualizedVolatility(closes),
		"data_points": len(closes),
	}, nil
}
