package supervisor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofinance/autofinance/internal/rpc/rpctest"
)

// scriptTradePeers wires a full happy path: BUY signal, positive sentiment,
// medium volatility, approving risk desk and a succeeding execution.
func scriptTradePeers(fake *rpctest.FakeCaller) {
	fake.Respond("compliance", "log_event", map[string]any{"success": true})
	fake.Respond("market", "get_live_price", map[string]any{
		"symbol": "BTC-USD", "price": 50000.0,
	})
	fake.Respond("technical", "generate_signal", map[string]any{
		"symbol": "BTC-USD", "signal": "BUY", "confidence": 0.8,
	})
	fake.Respond("volatility", "get_volatility_score", map[string]any{
		"symbol": "BTC-USD", "volatility": 0.45, "risk_band": "MEDIUM", "risk_score": 0.4,
	})
	fake.Respond("news", "analyze_sentiment", map[string]any{
		"symbol": "BTC-USD", "sentiment": "POSITIVE", "confidence": 0.7,
	})
	fake.Respond("execution", "get_portfolio_state", map[string]any{
		"total_value": 100000.0, "cash": 60000.0,
	})
	fake.Respond("risk", "validate_trade", map[string]any{
		"approved": true, "risk_score": 0.2, "violations": []any{},
	})
	fake.Respond("execution", "execute_trade", map[string]any{
		"success": true, "symbol": "BTC-USD", "cash_after": 35000.0,
	})
}

func auditEventTypes(fake *rpctest.FakeCaller) []string {
	var types []string
	for _, c := range fake.CallsTo("compliance", "log_event") {
		types = append(types, c.Args["event_type"].(string))
	}
	return types
}

func TestTradePipelineApprovesAndExecutes(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptTradePeers(fake)
	trader := NewTrader(fake)

	res, err := trader.ProcessTradeRequest(context.Background(), "btc", 0.5)
	require.NoError(t, err)

	assert.Equal(t, true, res["success"])
	assert.Equal(t, "BTC-USD", res["symbol"])
	assert.Equal(t, "BUY", res["action"])
	assert.Equal(t, true, res["approved"])
	assert.Equal(t, true, res["executed"])

	tradeID := res["trade_id"].(string)
	assert.True(t, strings.HasPrefix(tradeID, "TRD_"))
	assert.Len(t, tradeID, 12)

	// 0.4*0.8 + 0.3*0.7 + 0.3*(1-0.4)
	assert.InDelta(t, 0.71, res["confidence"].(float64), 1e-9)

	signals := res["signals"].(map[string]any)
	assert.Contains(t, signals, "technical")
	assert.Contains(t, signals, "volatility")
	assert.Contains(t, signals, "sentiment")

	validations := fake.CallsTo("risk", "validate_trade")
	require.Len(t, validations, 1)
	args := validations[0].Args
	assert.Equal(t, tradeID, args["trade_id"])
	assert.Equal(t, 0.45, args["volatility"])
	portfolio := args["portfolio"].(map[string]any)
	assert.Equal(t, 100000.0, portfolio["total_value"])
	assert.Equal(t, 40000.0, portfolio["invested_value"])

	executions := fake.CallsTo("execution", "execute_trade")
	require.Len(t, executions, 1)
	assert.Equal(t, tradeID, executions[0].Args["trade_id"])
	assert.Equal(t, 50000.0, executions[0].Args["price"])
	assert.Equal(t, true, executions[0].Args["approved"])
	assert.NotNil(t, executions[0].Args["risk_validation"])

	assert.Equal(t, []string{"proposal", "risk_decision", "execution"}, auditEventTypes(fake))
}

func TestTradePipelineRiskRejection(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptTradePeers(fake)
	fake.Respond("risk", "validate_trade", map[string]any{
		"approved": false, "risk_score": 0.9,
		"violations": []any{"Position size 25.0% exceeds maximum 15.0%"},
	})
	trader := NewTrader(fake)

	res, err := trader.ProcessTradeRequest(context.Background(), "BTC-USD", 0.5)
	require.NoError(t, err)

	assert.Equal(t, true, res["success"])
	assert.Equal(t, false, res["approved"])
	assert.Equal(t, false, res["executed"])
	assert.Empty(t, fake.CallsTo("execution", "execute_trade"))

	audits := fake.CallsTo("compliance", "log_event")
	require.Len(t, audits, 2)
	assert.Equal(t, "warning", audits[1].Args["severity"])
}

func TestTradePipelineHoldsOnSplitVote(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptTradePeers(fake)
	fake.Respond("news", "analyze_sentiment", map[string]any{
		"sentiment": "NEGATIVE", "confidence": 0.6,
	})
	trader := NewTrader(fake)

	res, err := trader.ProcessTradeRequest(context.Background(), "BTC-USD", 0.5)
	require.NoError(t, err)

	assert.Equal(t, "HOLD", res["action"])
	assert.Equal(t, false, res["executed"])

	// A hold never reaches the risk desk or the portfolio
	assert.Empty(t, fake.CallsTo("risk", "validate_trade"))
	assert.Empty(t, fake.CallsTo("execution", "get_portfolio_state"))
	assert.Equal(t, []string{"proposal", "system"}, auditEventTypes(fake))
}

func TestTradePipelinePeerFailureShortCircuits(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptTradePeers(fake)
	fake.Fail("volatility", "get_volatility_score", assert.AnError)
	trader := NewTrader(fake)

	res, err := trader.ProcessTradeRequest(context.Background(), "BTC-USD", 0.5)
	require.NoError(t, err)

	assert.Equal(t, false, res["success"])
	assert.Contains(t, res["reason"], "gather_signals failed")
	assert.Empty(t, fake.CallsTo("risk", "validate_trade"))
	assert.Contains(t, auditEventTypes(fake), "error")
}

func TestTradePipelinePriceFetchFailure(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptTradePeers(fake)
	fake.Respond("market", "get_live_price", map[string]any{"symbol": "BTC-USD", "price": 0.0})
	trader := NewTrader(fake)

	res, err := trader.ProcessTradeRequest(context.Background(), "BTC-USD", 0.5)
	require.NoError(t, err)

	assert.Equal(t, false, res["success"])
	assert.Contains(t, res["reason"], "fetch_price failed")
	assert.Empty(t, fake.CallsTo("technical", "generate_signal"))
}

func TestTradePipelineExecutionRefusal(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptTradePeers(fake)
	fake.Respond("execution", "execute_trade", map[string]any{
		"success": false, "reason": "Insufficient cash",
	})
	trader := NewTrader(fake)

	res, err := trader.ProcessTradeRequest(context.Background(), "BTC-USD", 0.5)
	require.NoError(t, err)

	assert.Equal(t, true, res["approved"])
	assert.Equal(t, false, res["executed"])
	assert.Equal(t, "Insufficient cash", res["reason"])
}

func TestTradePipelineRejectsBadQuantity(t *testing.T) {
	trader := NewTrader(rpctest.NewFakeCaller())
	_, err := trader.ProcessTradeRequest(context.Background(), "BTC-USD", 0)
	assert.ErrorContains(t, err, "must be positive")
}

func TestVoteAction(t *testing.T) {
	tests := []struct {
		technical string
		sentiment string
		want      string
	}{
		{"BUY", "POSITIVE", "BUY"},
		{"BUY", "NEUTRAL", "BUY"},
		{"SELL", "NEGATIVE", "SELL"},
		{"HOLD", "NEGATIVE", "SELL"},
		{"BUY", "NEGATIVE", "HOLD"},
		{"SELL", "POSITIVE", "HOLD"},
		{"HOLD", "NEUTRAL", "HOLD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, voteAction(tt.technical, tt.sentiment),
			"technical=%s sentiment=%s", tt.technical, tt.sentiment)
	}
}
