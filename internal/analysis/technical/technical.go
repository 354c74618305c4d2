// Package technical implements the technical analysis service: indicator
// calculations and the voting-based trade signal.
package technical

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/indicators"
	"github.com/autofinance/autofinance/internal/market"
)

// minCloses is the minimum history required to generate a signal
const minCloses = 50

// PriceSource supplies daily closing prices for a symbol
type PriceSource interface {
	DailyCloses(ctx context.Context, symbol string, days int) ([]float64, error)
}

// Service implements the technical analysis calculations
type Service struct {
	prices PriceSource
	log    zerolog.Logger
}

// NewService creates the technical service over a price source
func NewService(prices PriceSource) *Service {
	return &Service{
		prices: prices,
		log:    config.NewMCPLogger("technical"),
	}
}

// IndicatorSet is the snapshot attached to every signal
type IndicatorSet struct {
	Price     float64 `json:"price"`
	SMA20     float64 `json:"sma_20"`
	SMA50     float64 `json:"sma_50"`
	SMA200    float64 `json:"sma_200"`
	RSI14     float64 `json:"rsi_14"`
	MACD      float64 `json:"macd"`
	MACDSig   float64 `json:"macd_signal"`
	MACDHist  float64 `json:"macd_histogram"`
	BBUpper   float64 `json:"bb_upper"`
	BBMiddle  float64 `json:"bb_middle"`
	BBLower   float64 `json:"bb_lower"`
}

// computeIndicators derives the indicator snapshot from closes
func computeIndicators(closes []float64) IndicatorSet {
	price := closes[len(closes)-1]

	sma20 := indicators.Last(indicators.SMA(closes, 20), price)
	sma50 := indicators.Last(indicators.SMA(closes, 50), price)
	// SMA200 falls back to SMA50 on short histories
	sma200 := indicators.Last(indicators.SMA(closes, 200), sma50)

	rsi := indicators.Last(indicators.RSI(closes, 14), 50)

	macdSeries, sigSeries := indicators.MACD(closes, 12, 26, 9)
	macd := indicators.Last(macdSeries, 0)
	sig := indicators.Last(sigSeries, 0)

	lower, middle, upper := indicators.BollingerBands(closes, 20)

	return IndicatorSet{
		Price:    price,
		SMA20:    sma20,
		SMA50:    sma50,
		SMA200:   sma200,
		RSI14:    rsi,
		MACD:     macd,
		MACDSig:  sig,
		MACDHist: macd - sig,
		BBUpper:  indicators.Last(upper, price),
		BBMiddle: indicators.Last(middle, price),
		BBLower:  indicators.Last(lower, price),
	}
}

// vote tallies bullish and bearish points from the indicator snapshot
func vote(ind IndicatorSet) (bullish, bearish int, reasons []string) {
	// Trend alignment carries double weight
	if ind.Price > ind.SMA20 && ind.SMA20 > ind.SMA50 {
		bullish += 2
		reasons = append(reasons, "Uptrend: price above SMA20 above SMA50")
	} else if ind.Price < ind.SMA20 && ind.SMA20 < ind.SMA50 {
		bearish += 2
		reasons = append(reasons, "Downtrend: price below SMA20 below SMA50")
	}

	// RSI extremes carry double weight
	if ind.RSI14 < 30 {
		bullish += 2
		reasons = append(reasons, fmt.Sprintf("RSI oversold at %.1f", ind.RSI14))
	} else if ind.RSI14 > 70 {
		bearish += 2
		reasons = append(reasons, fmt.Sprintf("RSI overbought at %.1f", ind.RSI14))
	}

	if ind.MACDHist > 0 && ind.MACD > ind.MACDSig {
		bullish++
		reasons = append(reasons, "MACD bullish momentum")
	} else if ind.MACDHist < 0 && ind.MACD < ind.MACDSig {
		bearish++
		reasons = append(reasons, "MACD bearish momentum")
	}

	if ind.Price < ind.BBLower {
		bullish++
		reasons = append(reasons, "Price below lower Bollinger band")
	} else if ind.Price > ind.BBUpper {
		bearish++
		reasons = append(reasons, "Price above upper Bollinger band")
	}

	return bullish, bearish, reasons
}

// decide converts the vote tally into a signal with confidence. A directional
// call needs at least three points and a plurality; everything else holds.
func decide(bullish, bearish int) (string, float64) {
	if bullish >= 3 && bullish > bearish {
		return "BUY", float64(bullish) / 6.0
	}
	if bearish >= 3 && bearish > bullish {
		return "SELL", float64(bearish) / 6.0
	}
	return "HOLD", 0.3 + 0.1*math.Abs(float64(bullish-bearish))
}

// GenerateSignal produces the voted trade signal for a symbol
func (s *Service) GenerateSignal(ctx context.Context, symbol string) (map[string]any, error) {
	normalized := market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, normalized, 250)
	if err != nil {
		return nil, err
	}
	if len(closes) < minCloses {
		return map[string]any{
			"symbol":     normalized,
			"signal":     "HOLD",
			"confidence": 0.0,
			"error":      "Insufficient historical data",
		}, nil
	}

	ind := computeIndicators(closes)
	bullish, bearish, reasons := vote(ind)
	signal, confidence := decide(bullish, bearish)

	s.log.Info().
		Str("symbol", normalized).
		Str("signal", signal).
		Int("bullish", bullish).
		Int("bearish", bearish).
		Float64("confidence", confidence).
		Msg("Signal generated")

	return map[string]any{
		"symbol":     normalized,
		"signal":     signal,
		"confidence": confidence,
		"votes": map[string]any{
			"bullish": bullish,
			"bearish": bearish,
		},
		"reasoning":  reasons,
		"indicators": ind,
	}, nil
}

// CalculateRSI returns the current RSI for a symbol
func (s *Service) CalculateRSI(ctx context.Context, symbol string, period int) (map[string]any, error) {
	if period <= 0 {
		period = 14
	}
	normalized := market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, normalized, period*4+10)
	if err != nil {
		return nil, err
	}
	series := indicators.RSI(closes, period)
	if len(series) == 0 {
		return nil, fmt.Errorf("insufficient data for RSI(%d): have %d closes", period, len(closes))
	}

	value := indicators.Last(series, 50)
	signal := "neutral"
	if value < 30 {
		signal = "oversold"
	} else if value > 70 {
		signal = "overbought"
	}

	return map[string]any{
		"symbol": normalized,
		"period": period,
		"rsi":    value,
		"signal": signal,
	}, nil
}

// CalculateMACD returns the current MACD values for a symbol
func (s *Service) CalculateMACD(ctx context.Context, symbol string, fast, slow, signalPeriod int) (map[string]any, error) {
	if fast <= 0 {
		fast = 12
	}
	if slow <= 0 {
		slow = 26
	}
	if signalPeriod <= 0 {
		signalPeriod = 9
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast period (%d) must be less than slow period (%d)", fast, slow)
	}
	normalized := market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, normalized, (slow+signalPeriod)*3)
	if err != nil {
		return nil, err
	}

	macdSeries, sigSeries := indicators.MACD(closes, fast, slow, signalPeriod)
	if len(macdSeries) == 0 {
		return nil, fmt.Errorf("insufficient data for MACD: have %d closes", len(closes))
	}

	macd := indicators.Last(macdSeries, 0)
	sig := indicators.Last(sigSeries, 0)
	hist := macd - sig

	crossover := "none"
	if len(macdSeries) >= 2 {
		prevHist := macdSeries[len(macdSeries)-2] - sigSeries[len(sigSeries)-2]
		if prevHist <= 0 && hist > 0 {
			crossover = "bullish"
		} else if prevHist >= 0 && hist < 0 {
			crossover = "bearish"
		}
	}

	return map[string]any{
		"symbol":    normalized,
		"macd":      macd,
		"signal":    sig,
		"histogram": hist,
		"crossover": crossover,
	}, nil
}

// CalculateBollingerBands returns the current band values for a symbol
func (s *Service) CalculateBollingerBands(ctx context.Context, symbol string, period int) (map[string]any, error) {
	if period <= 0 {
		period = 20
	}
	normalized := market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, normalized, period*4)
	if err != nil {
		return nil, err
	}

	lower, middle, upper := indicators.BollingerBands(closes, period)
	if len(middle) == 0 {
		return nil, fmt.Errorf("insufficient data for Bollinger bands: have %d closes", len(closes))
	}

	price := closes[len(closes)-1]
	u, m, l := indicators.Last(upper, price), indicators.Last(middle, price), indicators.Last(lower, price)

	position := "inside"
	if price < l {
		position = "below_lower"
	} else if price > u {
		position = "above_upper"
	}

	width := 0.0
	if m != 0 {
		width = (u - l) / m * 100
	}

	return map[string]any{
		"symbol":    normalized,
		"period":    period,
		"upper":     u,
		"middle":    m,
		"lower":     l,
		"width_pct": width,
		"price":     price,
		"position":  position,
	}, nil
}

// CalculateSupportResistance derives support and resistance levels from the
// recent trading window
func (s *Service) CalculateSupportResistance(ctx context.Context, symbol string, lookback int) (map[string]any, error) {
	if lookback <= 0 {
		lookback = 20
	}
	normalized := market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, normalized, lookback)
	if err != nil {
		return nil, err
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no price history for %s", normalized)
	}

	support := closes[0]
	resistance := closes[0]
	for _, c := range closes {
		if c < support {
			support = c
		}
		if c > resistance {
			resistance = c
		}
	}
	price := closes[len(closes)-1]

	toSupport := 0.0
	toResistance := 0.0
	if price != 0 {
		toSupport = (price - support) / price * 100
		toResistance = (resistance - price) / price * 100
	}

	return map[string]any{
		"symbol":                normalized,
		"lookback_days":         lookback,
		"support":               support,
		"resistance":            resistance,
		"current_price":         price,
		"distance_to_support":   toSupport,
		"distance_to_resistance": toResistance,
	}, nil
}
