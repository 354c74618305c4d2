package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofinance/autofinance/internal/rpc/rpctest"
)

// scriptReviewPeers wires a two-position portfolio, an aggressive macro
// stance and a proposal that sells BTC to buy ETH.
func scriptReviewPeers(fake *rpctest.FakeCaller) {
	fake.Respond("compliance", "log_event", map[string]any{"success": true})
	fake.Respond("execution", "get_portfolio_state", map[string]any{
		"total_value": 100000.0,
		"cash":        30000.0,
		"positions": map[string]any{
			"BTC-USD": map[string]any{"quantity": 1.0, "current_price": 50000.0},
			"ETH-USD": map[string]any{"quantity": 5.0, "current_price": 4000.0},
		},
	})
	fake.Respond("portfolio-analytics", "evaluate_portfolio", map[string]any{
		"health_score": 0.68, "rating": "GOOD",
	})
	fake.Respond("macro", "analyze_macro", map[string]any{
		"market_regime": "CONSOLIDATION", "stance": "AGGRESSIVE", "confidence": 0.8,
	})
	fake.Respond("fundamental", "analyze_fundamentals", map[string]any{
		"recommendation": "HOLD", "overall_score": 0.6,
	})
	fake.Respond("portfolio-analytics", "calculate_rebalance_proposal", map[string]any{
		"target_invested": 0.80,
		"changes": []any{
			map[string]any{"symbol": "BTC-USD", "action": "SELL", "quantity": 0.2, "price": 50000.0, "value": -10000.0},
			map[string]any{"symbol": "ETH-USD", "action": "BUY", "quantity": 5.0, "price": 4000.0, "value": 20000.0},
		},
	})
	fake.Respond("risk", "validate_rebalance", map[string]any{
		"approved": true, "risk_score": 0.15, "violations": []any{},
	})
	fake.Respond("execution", "apply_rebalance", map[string]any{
		"success": true, "trades_applied": 2,
	})
}

func TestInvestmentReviewRebalances(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptReviewPeers(fake)
	investor := NewInvestor(fake)

	res, err := investor.ProcessInvestmentReview(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, true, res["success"])
	assert.Equal(t, "REBALANCED", res["status"])
	assert.Equal(t, "manual", res["review_type"])
	assert.Equal(t, "AGGRESSIVE", res["stance"])
	assert.Equal(t, 0.80, res["target_invested"])

	reviewID := res["review_id"].(string)
	assert.Regexp(t, `^REV_[0-9a-f]{8}$`, reviewID)

	// One fundamentals call per holding, in symbol order
	funds := fake.CallsTo("fundamental", "analyze_fundamentals")
	require.Len(t, funds, 2)
	assert.Equal(t, "BTC-USD", funds[0].Args["symbol"])
	assert.Equal(t, "ETH-USD", funds[1].Args["symbol"])

	proposals := fake.CallsTo("portfolio-analytics", "calculate_rebalance_proposal")
	require.Len(t, proposals, 1)
	assert.Equal(t, 0.80, proposals[0].Args["target_invested"])

	validations := fake.CallsTo("risk", "validate_rebalance")
	require.Len(t, validations, 1)
	assert.Equal(t, 0.30, validations[0].Args["max_turnover"])
	assert.Equal(t, 100000.0, validations[0].Args["total_value"])
	legs := validations[0].Args["changes"].([]map[string]any)
	require.Len(t, legs, 2)
	assert.Equal(t, -10000.0, legs[0]["value"])

	applies := fake.CallsTo("execution", "apply_rebalance")
	require.Len(t, applies, 1)
	assert.Equal(t, reviewID, applies[0].Args["rebalance_id"])
	assert.Equal(t, true, applies[0].Args["approved"])
	assert.NotNil(t, applies[0].Args["risk_validation"])
	applyLegs := applies[0].Args["changes"].([]map[string]any)
	require.Len(t, applyLegs, 2)
	assert.Equal(t, 0.2, applyLegs[0]["quantity"])
	assert.Equal(t, 50000.0, applyLegs[0]["price"])

	assert.Equal(t, []string{"proposal", "risk_decision", "execution"}, auditEventTypes(fake))
}

func TestInvestmentReviewNoRebalance(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptReviewPeers(fake)
	fake.Respond("portfolio-analytics", "calculate_rebalance_proposal", map[string]any{
		"target_invested": 0.80, "changes": []any{},
	})
	investor := NewInvestor(fake)

	res, err := investor.ProcessInvestmentReview(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "NO_REBALANCE", res["status"])
	assert.Equal(t, "scheduled", res["review_type"])
	assert.Empty(t, fake.CallsTo("risk", "validate_rebalance"))
	assert.Empty(t, fake.CallsTo("execution", "apply_rebalance"))
	assert.Equal(t, []string{"proposal", "system"}, auditEventTypes(fake))
}

func TestInvestmentReviewRiskRejection(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptReviewPeers(fake)
	fake.Respond("risk", "validate_rebalance", map[string]any{
		"approved": false, "risk_score": 0.9,
		"violations": []any{"Rebalance turnover 45.0% exceeds maximum 30.0%"},
	})
	investor := NewInvestor(fake)

	res, err := investor.ProcessInvestmentReview(context.Background(), "scheduled")
	require.NoError(t, err)

	assert.Equal(t, "REJECTED", res["status"])
	assert.Empty(t, fake.CallsTo("execution", "apply_rebalance"))

	audits := fake.CallsTo("compliance", "log_event")
	require.Len(t, audits, 2)
	assert.Equal(t, "warning", audits[1].Args["severity"])
}

func TestInvestmentReviewUnknownStanceDefaultsBalanced(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptReviewPeers(fake)
	fake.Respond("macro", "analyze_macro", map[string]any{"stance": "YOLO"})
	investor := NewInvestor(fake)

	res, err := investor.ProcessInvestmentReview(context.Background(), "scheduled")
	require.NoError(t, err)

	assert.Equal(t, "BALANCED", res["stance"])
	assert.Equal(t, 0.70, res["target_invested"])
	proposals := fake.CallsTo("portfolio-analytics", "calculate_rebalance_proposal")
	require.Len(t, proposals, 1)
	assert.Equal(t, 0.70, proposals[0].Args["target_invested"])
}

func TestInvestmentReviewPeerFailureShortCircuits(t *testing.T) {
	fake := rpctest.NewFakeCaller()
	scriptReviewPeers(fake)
	fake.Fail("macro", "analyze_macro", assert.AnError)
	investor := NewInvestor(fake)

	res, err := investor.ProcessInvestmentReview(context.Background(), "scheduled")
	require.NoError(t, err)

	assert.Equal(t, false, res["success"])
	assert.Contains(t, res["reason"], "analyze_macro failed")
	assert.Empty(t, fake.CallsTo("fundamental", "analyze_fundamentals"))
	assert.Contains(t, auditEventTypes(fake), "error")
}
