package fundamental

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BTC", "BTC"},
		{"BTCUSDT", "BTC"},
		{"BTC-USD", "BTC"},
		{" eth ", "ETH"},
		{"SOLUSDT", "SOL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, baseTicker(tt.input), "input %s", tt.input)
	}
}

func TestScoreMajors(t *testing.T) {
	tests := []struct {
		symbol    string
		valuation float64
		quality   float64
		growth    float64
		overall   float64
	}{
		// 940e9 cap: low valuation base plus half the growth rate
		{"BTC", 0.375, 0.95, 0.3, 0.5825},
		{"ETH", 0.425, 0.92, 0.5, 0.6455},
		// 45e9 cap gets the small-cap valuation base
		{"SOL", 0.9, 0.75, 0.8, 0.81},
		// Unknown assets fall back to the altcoin defaults
		{"PEPE", 0.8, 0.6, 0.4, 0.6},
	}

	svc := NewService()
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			sc := score(svc.metricsFor(tt.symbol))
			assert.InDelta(t, tt.valuation, sc.Valuation, 1e-9)
			assert.InDelta(t, tt.quality, sc.Quality, 1e-9)
			assert.InDelta(t, tt.growth, sc.Growth, 1e-9)
			assert.InDelta(t, tt.overall, sc.Overall, 1e-9)
		})
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		overall    float64
		rec        string
		confidence float64
	}{
		{0.81, "BUY", 0.81},
		{0.71, "BUY", 0.71},
		{0.7, "HOLD", 0.6},
		{0.5, "HOLD", 0.6},
		{0.4, "HOLD", 0.6},
		{0.35, "SELL", 0.65},
	}
	for _, tt := range tests {
		rec, conf := recommend(tt.overall)
		assert.Equal(t, tt.rec, rec, "overall %v", tt.overall)
		assert.InDelta(t, tt.confidence, conf, 1e-9, "overall %v", tt.overall)
	}
}

func TestAnalyze(t *testing.T) {
	svc := NewService()

	res := svc.Analyze("SOLUSDT")
	assert.Equal(t, "SOL-USD", res["symbol"])
	assert.Equal(t, "Layer 1", res["category"])
	assert.Equal(t, "BUY", res["recommendation"])
	assert.InDelta(t, 0.81, res["confidence"].(float64), 1e-9)
}

func TestCompareRanksByOverall(t *testing.T) {
	svc := NewService()

	res := svc.Compare([]string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})
	rankings := res["rankings"].([]map[string]any)
	require.Len(t, rankings, 3)
	assert.Equal(t, "SOL-USD", rankings[0]["symbol"])
	assert.Equal(t, "ETH-USD", rankings[1]["symbol"])
	assert.Equal(t, "BTC-USD", rankings[2]["symbol"])
	assert.Equal(t, "SOL-USD", res["top_pick"])
}

func TestCompareEmpty(t *testing.T) {
	svc := NewService()

	res := svc.Compare(nil)
	assert.Empty(t, res["rankings"])
	assert.NotContains(t, res, "top_pick")
}

func TestInvestmentThesis(t *testing.T) {
	svc := NewService()

	res := svc.InvestmentThesis("SOL")
	assert.Equal(t, "BUY", res["recommendation"])
	assert.Len(t, res["strengths"].([]string), 3)
	assert.Empty(t, res["weaknesses"])
	assert.Equal(t, "Long-term (6-12 months)", res["horizon"])
}

func TestSimulationOverrideAndClear(t *testing.T) {
	svc := NewService()

	svc.SetSimulationMetrics("BTCUSDT", Metrics{
		MarketCap:     1e9,
		AdoptionScore: 0.3,
		NetworkGrowth: 0.05,
	})

	res := svc.Analyze("BTC")
	assert.Equal(t, "SELL", res["recommendation"])
	// Category is preserved from the baseline when not overridden
	assert.Equal(t, "Store of Value", res["category"])

	cleared := svc.ClearSimulationMode()
	assert.Equal(t, 1, cleared)

	res = svc.Analyze("BTC")
	assert.Equal(t, "HOLD", res["recommendation"])
}
