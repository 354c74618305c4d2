package technical

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrices returns a fixed daily close series
type fakePrices struct {
	closes []float64
	err    error
}

func (f *fakePrices) DailyCloses(ctx context.Context, symbol string, days int) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	closes := f.closes
	if len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	return closes, nil
}

func TestVote(t *testing.T) {
	tests := []struct {
		name    string
		ind     IndicatorSet
		bullish int
		bearish int
	}{
		{
			name: "aligned uptrend with momentum",
			ind: IndicatorSet{
				Price: 110, SMA20: 105, SMA50: 100,
				RSI14: 55, MACD: 2, MACDSig: 1, MACDHist: 1,
				BBLower: 95, BBUpper: 120,
			},
			bullish: 3, bearish: 0,
		},
		{
			name: "aligned downtrend with momentum",
			ind: IndicatorSet{
				Price: 90, SMA20: 95, SMA50: 100,
				RSI14: 45, MACD: -2, MACDSig: -1, MACDHist: -1,
				BBLower: 80, BBUpper: 105,
			},
			bullish: 0, bearish: 3,
		},
		{
			name: "oversold bounce inside downtrend splits votes",
			ind: IndicatorSet{
				Price: 80, SMA20: 90, SMA50: 100,
				RSI14: 25, MACD: -1, MACDSig: -0.5, MACDHist: -0.5,
				BBLower: 82, BBUpper: 105,
			},
			bullish: 3, bearish: 3,
		},
		{
			name: "overbought extension caps an uptrend",
			ind: IndicatorSet{
				Price: 130, SMA20: 110, SMA50: 100,
				RSI14: 78, MACD: 3, MACDSig: 2, MACDHist: 1,
				BBLower: 95, BBUpper: 125,
			},
			bullish: 3, bearish: 3,
		},
		{
			name: "flat market",
			ind: IndicatorSet{
				Price: 100, SMA20: 100, SMA50: 100,
				RSI14: 50, MACD: 0, MACDSig: 0, MACDHist: 0,
				BBLower: 95, BBUpper: 105,
			},
			bullish: 0, bearish: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bullish, bearish, _ := vote(tt.ind)
			assert.Equal(t, tt.bullish, bullish, "bullish")
			assert.Equal(t, tt.bearish, bearish, "bearish")
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		bullish    int
		bearish    int
		signal     string
		confidence float64
	}{
		{3, 0, "BUY", 0.5},
		{4, 1, "BUY", 4.0 / 6.0},
		{6, 0, "BUY", 1.0},
		{0, 3, "SELL", 0.5},
		{1, 5, "SELL", 5.0 / 6.0},
		{2, 1, "HOLD", 0.4},
		{3, 3, "HOLD", 0.3},
		{0, 0, "HOLD", 0.3},
		{2, 2, "HOLD", 0.3},
	}

	for _, tt := range tests {
		signal, conf := decide(tt.bullish, tt.bearish)
		assert.Equal(t, tt.signal, signal, "votes %d/%d", tt.bullish, tt.bearish)
		assert.InDelta(t, tt.confidence, conf, 1e-9, "votes %d/%d", tt.bullish, tt.bearish)
	}
}

func TestGenerateSignalInsufficientData(t *testing.T) {
	svc := NewService(&fakePrices{closes: make([]float64, 30)})

	res, err := svc.GenerateSignal(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "HOLD", res["signal"])
	assert.Equal(t, 0.0, res["confidence"])
	assert.Equal(t, "Insufficient historical data", res["error"])
}

func TestGenerateSignalWellFormed(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/7)
	}
	svc := NewService(&fakePrices{closes: closes})

	res, err := svc.GenerateSignal(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH-USD", res["symbol"])
	assert.Contains(t, []string{"BUY", "SELL", "HOLD"}, res["signal"])
	assert.Greater(t, res["confidence"].(float64), 0.0)

	votes := res["votes"].(map[string]any)
	assert.Contains(t, votes, "bullish")
	assert.Contains(t, votes, "bearish")

	ind := res["indicators"].(IndicatorSet)
	assert.Equal(t, closes[len(closes)-1], ind.Price)
	assert.Greater(t, ind.SMA20, 0.0)
}

func TestGenerateSignalSourceError(t *testing.T) {
	svc := NewService(&fakePrices{err: errors.New("upstream down")})

	_, err := svc.GenerateSignal(context.Background(), "BTC")
	assert.Error(t, err)
}

func TestCalculateRSIBounds(t *testing.T) {
	rising := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	svc := NewService(&fakePrices{closes: rising})

	res, err := svc.CalculateRSI(context.Background(), "BTC", 14)
	require.NoError(t, err)
	assert.Equal(t, 14, res["period"])
	rsi := res["rsi"].(float64)
	assert.Greater(t, rsi, 70.0)
	assert.Equal(t, "overbought", res["signal"])
}

func TestCalculateMACDUptrend(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.01, float64(i))
	}
	svc := NewService(&fakePrices{closes: closes})

	res, err := svc.CalculateMACD(context.Background(), "BTC", 0, 0, 0)
	require.NoError(t, err)
	assert.Greater(t, res["macd"].(float64), 0.0)
}

func TestCalculateMACDInvalidPeriods(t *testing.T) {
	svc := NewService(&fakePrices{closes: make([]float64, 200)})

	_, err := svc.CalculateMACD(context.Background(), "BTC", 26, 12, 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fast period")
}

func TestCalculateBollingerBandsOrdering(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + 3*math.Sin(float64(i)/4)
	}
	svc := NewService(&fakePrices{closes: closes})

	res, err := svc.CalculateBollingerBands(context.Background(), "BTC", 20)
	require.NoError(t, err)
	upper := res["upper"].(float64)
	middle := res["middle"].(float64)
	lower := res["lower"].(float64)
	assert.Greater(t, upper, middle)
	assert.Greater(t, middle, lower)
	assert.Greater(t, res["width_pct"].(float64), 0.0)
}

func TestCalculateSupportResistance(t *testing.T) {
	closes := []float64{100, 95, 110, 90, 105, 100}
	svc := NewService(&fakePrices{closes: closes})

	res, err := svc.CalculateSupportResistance(context.Background(), "SOL", 20)
	require.NoError(t, err)
	assert.Equal(t, 90.0, res["support"])
	assert.Equal(t, 110.0, res["resistance"])
	assert.Equal(t, 100.0, res["current_price"])
	assert.InDelta(t, 10.0, res["distance_to_support"].(float64), 1e-9)
	assert.InDelta(t, 10.0, res["distance_to_resistance"].(float64), 1e-9)
}
