package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	closes map[string][]float64
	err    error
}

func (f *fakePrices) DailyCloses(ctx context.Context, symbol string, days int) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.closes[symbol], nil
}

func TestSimulateTradeBuyExpectancy(t *testing.T) {
	s := NewService(nil)

	res, err := s.SimulateTrade("BTC", "buy", 1, 100, 100000)
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", res["symbol"])
	assert.Equal(t, 100.0, res["trade_value"])

	// 0.2*15 + 0.5*5 + 0.3*(-10) = 2.5
	assert.InDelta(t, 2.5, res["expected_return"].(float64), 1e-9)
	assert.InDelta(t, 0.025, res["expected_return_pct"].(float64), 1e-9)
	assert.InDelta(t, 1.5, res["risk_reward"].(float64), 1e-9)

	scenarios := res["scenarios"].([]map[string]any)
	require.Len(t, scenarios, 3)
	assert.Equal(t, "bull", scenarios[0]["scenario"])
	assert.InDelta(t, 115.0, scenarios[0]["projected_price"].(float64), 1e-9)
	assert.InDelta(t, 15.0, scenarios[0]["pnl"].(float64), 1e-9)

	assert.Empty(t, res["recommendations"])
}

func TestSimulateTradeSellIsDiscouraged(t *testing.T) {
	s := NewService(nil)

	res, err := s.SimulateTrade("BTC", "SELL", 1, 100, 0)
	require.NoError(t, err)

	assert.InDelta(t, -2.5, res["expected_return"].(float64), 1e-9)
	// Best case +10 (bear), worst -15 (bull)
	assert.InDelta(t, 10.0/15.0, res["risk_reward"].(float64), 1e-9)

	recs := res["recommendations"].([]string)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0], "Risk/reward below 1.5")
	assert.Contains(t, recs[1], "not recommended")
}

func TestSimulateTradeOversizedWarning(t *testing.T) {
	s := NewService(nil)

	res, err := s.SimulateTrade("ETH", "BUY", 10, 3000, 100000)
	require.NoError(t, err)

	recs := res["recommendations"].([]string)
	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0], "30.0% of portfolio")
}

func TestSimulateTradeValidation(t *testing.T) {
	s := NewService(nil)

	_, err := s.SimulateTrade("BTC", "SHORT", 1, 100, 0)
	assert.ErrorContains(t, err, "unknown action")

	_, err = s.SimulateTrade("BTC", "BUY", 0, 100, 0)
	assert.ErrorContains(t, err, "must be positive")
}

func TestSimulateRebalance(t *testing.T) {
	s := NewService(nil)

	res, err := s.SimulateRebalance(
		map[string]float64{"BTC-USD": 60000, "ETH-USD": 40000},
		map[string]float64{"BTC-USD": 0.5, "ETH-USD": 0.5},
	)
	require.NoError(t, err)

	changes := res["changes"].([]map[string]any)
	require.Len(t, changes, 2)
	assert.Equal(t, "BTC-USD", changes[0]["symbol"])
	assert.Equal(t, "SELL", changes[0]["action"])
	assert.InDelta(t, 10000.0, changes[0]["value"].(float64), 1e-6)
	assert.Equal(t, "BUY", changes[1]["action"])

	assert.InDelta(t, 10000.0, res["turnover"].(float64), 1e-6)
	assert.InDelta(t, 0.1, res["turnover_pct"].(float64), 1e-9)
	assert.InDelta(t, 20.0, res["estimated_cost"].(float64), 1e-6)
	assert.Equal(t, "APPROVED", res["verdict"])
}

func TestSimulateRebalanceRejectsChurn(t *testing.T) {
	s := NewService(nil)

	res, err := s.SimulateRebalance(
		map[string]float64{"BTC-USD": 100000},
		map[string]float64{"ETH-USD": 1.0},
	)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res["turnover_pct"].(float64), 1e-9)
	assert.Equal(t, "REJECTED", res["verdict"])
}

func TestSimulateRebalanceSkipsSmallDrift(t *testing.T) {
	s := NewService(nil)

	res, err := s.SimulateRebalance(
		map[string]float64{"BTC-USD": 50400, "ETH-USD": 49600},
		map[string]float64{"BTC-USD": 0.5, "ETH-USD": 0.5},
	)
	require.NoError(t, err)
	assert.Empty(t, res["changes"])
	assert.Equal(t, "APPROVED", res["verdict"])
}

func TestSimulateRebalanceValidation(t *testing.T) {
	s := NewService(nil)

	_, err := s.SimulateRebalance(map[string]float64{}, map[string]float64{"BTC": 1})
	assert.ErrorContains(t, err, "empty")

	_, err = s.SimulateRebalance(map[string]float64{"BTC": 100}, map[string]float64{"BTC": 1.5})
	assert.ErrorContains(t, err, "sum to at most 1")
}

func TestBuyAndHoldWholeUnits(t *testing.T) {
	prices := &fakePrices{closes: map[string][]float64{
		"BTC-USD": {100, 110, 121},
	}}
	s := NewService(prices)

	res, err := s.SimulateStrategy(context.Background(), StrategyBuyAndHold, "BTC", 10000, 90)
	require.NoError(t, err)

	assert.Equal(t, true, res["success"])
	assert.Equal(t, false, res["fractional_units"])
	// 100 whole units, fully invested
	assert.InDelta(t, 12100.0, res["final_value"].(float64), 1e-6)
	assert.InDelta(t, 21.0, res["total_return_pct"].(float64), 1e-9)
	assert.InDelta(t, 21.0, res["benchmark_pct"].(float64), 1e-9)
	assert.InDelta(t, 0.0, res["alpha_pct"].(float64), 1e-9)
	assert.InDelta(t, 0.0, res["max_drawdown_pct"].(float64), 1e-9)
	assert.Equal(t, 1, res["num_trades"])
}

func TestBuyAndHoldFractionalUnits(t *testing.T) {
	prices := &fakePrices{closes: map[string][]float64{
		"BTC-USD": {600, 660},
	}}
	s := NewService(prices)

	res, err := s.SimulateStrategy(context.Background(), StrategyBuyAndHold, "BTC", 10000, 90)
	require.NoError(t, err)

	assert.Equal(t, true, res["fractional_units"])
	assert.InDelta(t, 11000.0, res["final_value"].(float64), 1e-6)
}

func TestMomentumEntersUptrend(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	s := NewService(&fakePrices{closes: map[string][]float64{"BTC-USD": closes}})

	res, err := s.SimulateStrategy(context.Background(), StrategyMomentum, "BTC", 10000, 90)
	require.NoError(t, err)

	// Enters at the first average, close 119: 84 units, 4 cash, exits never
	assert.Equal(t, 1, res["num_trades"])
	assert.InDelta(t, 84*139+4, res["final_value"].(float64), 1e-6)
	assert.Greater(t, res["sharpe_ratio"].(float64), 0.0)
	assert.InDelta(t, 0.0, res["max_drawdown_pct"].(float64), 1e-9)
}

func TestMomentumStaysOutOfDowntrend(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	s := NewService(&fakePrices{closes: map[string][]float64{"BTC-USD": closes}})

	res, err := s.SimulateStrategy(context.Background(), StrategyMomentum, "BTC", 10000, 90)
	require.NoError(t, err)

	assert.Equal(t, 0, res["num_trades"])
	assert.InDelta(t, 10000.0, res["final_value"].(float64), 1e-6)
	assert.Less(t, res["benchmark_pct"].(float64), 0.0)
	assert.Greater(t, res["alpha_pct"].(float64), 0.0)
}

func TestMeanReversionFlatSeriesNeverTrades(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	s := NewService(&fakePrices{closes: map[string][]float64{"BTC-USD": closes}})

	res, err := s.SimulateStrategy(context.Background(), StrategyMeanReversion, "BTC", 10000, 90)
	require.NoError(t, err)
	assert.Equal(t, 0, res["num_trades"])
	assert.InDelta(t, 10000.0, res["final_value"].(float64), 1e-6)
}

func TestMeanReversionBuysCapitulation(t *testing.T) {
	// Oscillating base, a violent dip, then a recovery well above the mean
	closes := []float64{}
	for i := 0; i < 12; i++ {
		closes = append(closes, 100, 102)
	}
	closes = append(closes, 70, 130, 130, 130, 130, 130)
	s := NewService(&fakePrices{closes: map[string][]float64{"BTC-USD": closes}})

	res, err := s.SimulateStrategy(context.Background(), StrategyMeanReversion, "BTC", 10000, 90)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res["num_trades"].(int), 1)
	assert.Greater(t, res["total_return_pct"].(float64), 0.0)
}

func TestStrategyInsufficientData(t *testing.T) {
	s := NewService(&fakePrices{closes: map[string][]float64{"BTC-USD": {100, 101, 102}}})

	res, err := s.SimulateStrategy(context.Background(), StrategyMomentum, "BTC", 10000, 90)
	require.NoError(t, err)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "Insufficient historical data", res["reason"])
}

func TestStrategyErrors(t *testing.T) {
	s := NewService(&fakePrices{err: assert.AnError})
	_, err := s.SimulateStrategy(context.Background(), StrategyBuyAndHold, "BTC", 10000, 90)
	assert.ErrorContains(t, err, "history unavailable")

	s = NewService(&fakePrices{closes: map[string][]float64{"BTC-USD": {100, 101, 102}}})
	_, err = s.SimulateStrategy(context.Background(), "martingale", "BTC", 10000, 90)
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestPositionSize(t *testing.T) {
	s := NewService(nil)

	res, err := s.PositionSize(100000, 0.02, 100, 90)
	require.NoError(t, err)

	assert.InDelta(t, 2000.0, res["risk_amount"].(float64), 1e-9)
	assert.InDelta(t, 10.0, res["risk_per_unit"].(float64), 1e-9)
	assert.InDelta(t, 200.0, res["quantity"].(float64), 1e-9)
	assert.InDelta(t, 20000.0, res["position_value"].(float64), 1e-9)
	assert.InDelta(t, 120.0, res["target_price"].(float64), 1e-9)
	assert.Equal(t, 2.0, res["risk_reward"])
	assert.Empty(t, res["warnings"])
}

func TestPositionSizeWarnsOversized(t *testing.T) {
	s := NewService(nil)

	res, err := s.PositionSize(100000, 0.02, 100, 99)
	require.NoError(t, err)

	warnings := res["warnings"].([]string)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "above the 25% guideline")
}

func TestPositionSizeValidation(t *testing.T) {
	s := NewService(nil)

	_, err := s.PositionSize(100000, 0.02, 90, 100)
	assert.ErrorContains(t, err, "below entry_price")

	_, err = s.PositionSize(100000, 0.2, 100, 90)
	assert.ErrorContains(t, err, "ceiling")

	_, err = s.PositionSize(0, 0.02, 100, 90)
	assert.ErrorContains(t, err, "account_value")
}
