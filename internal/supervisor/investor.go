package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// maxReviewTurnover caps the turnover fraction a review may propose
const maxReviewTurnover = 0.30

// stanceInvested maps the macro stance to the target invested fraction
var stanceInvested = map[string]float64{
	"AGGRESSIVE": 0.80,
	"BALANCED":   0.70,
	"DEFENSIVE":  0.50,
}

// Investor runs the periodic portfolio review pipeline
type Investor struct {
	caller rpc.Caller
	log    zerolog.Logger
}

// NewInvestor creates the investment supervisor over a peer caller
func NewInvestor(caller rpc.Caller) *Investor {
	return &Investor{
		caller: caller,
		log:    config.NewSupervisorLogger("investor"),
	}
}

func (v *Investor) audit(ctx context.Context, eventType, action string, details map[string]any, severity string) {
	audit(ctx, v.caller, v.log, "investor-supervisor", eventType, action, details, severity)
}

// rebalanceLeg mirrors the analytics proposal change shape
type rebalanceLeg struct {
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
}

func decodeLegs(raw any) ([]rebalanceLeg, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var legs []rebalanceLeg
	if err := json.Unmarshal(data, &legs); err != nil {
		return nil, err
	}
	return legs, nil
}

// heldSymbols extracts the position symbols from a portfolio snapshot
func heldSymbols(snapshot map[string]any) []string {
	positions, _ := snapshot["positions"].(map[string]any)
	symbols := make([]string, 0, len(positions))
	for sym := range positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// ProcessInvestmentReview runs a full portfolio review: health check, macro
// stance, per-holding fundamentals, then a validated equal-weight rebalance.
// State is only ever changed through the execution service.
func (v *Investor) ProcessInvestmentReview(ctx context.Context, reviewType string) (map[string]any, error) {
	if reviewType == "" {
		reviewType = "scheduled"
	}
	reviewID := newPipelineID("REV")

	v.audit(ctx, "proposal", "process_investment_review", map[string]any{
		"review_id": reviewID, "review_type": reviewType,
	}, "info")

	fail := func(stage string, err error) (map[string]any, error) {
		v.audit(ctx, "error", stage, map[string]any{
			"review_id": reviewID, "error": err.Error(),
		}, "error")
		return map[string]any{
			"success":   false,
			"review_id": reviewID,
			"reason":    fmt.Sprintf("%s failed: %v", stage, err),
		}, nil
	}

	snapshot, err := v.caller.Call(ctx, "execution", "get_portfolio_state", nil)
	if err != nil {
		return fail("portfolio_snapshot", err)
	}
	totalValue := num(snapshot, "total_value")

	health, err := v.caller.Call(ctx, "portfolio-analytics", "evaluate_portfolio", nil)
	if err != nil {
		return fail("evaluate_portfolio", err)
	}

	macro, err := v.caller.Call(ctx, "macro", "analyze_macro", nil)
	if err != nil {
		return fail("analyze_macro", err)
	}
	stance := str(macro, "stance")
	targetInvested, ok := stanceInvested[stance]
	if !ok {
		stance = "BALANCED"
		targetInvested = stanceInvested[stance]
	}

	fundamentals := map[string]any{}
	for _, sym := range heldSymbols(snapshot) {
		res, err := v.caller.Call(ctx, "fundamental", "analyze_fundamentals", map[string]any{"symbol": sym})
		if err != nil {
			return fail("analyze_fundamentals", err)
		}
		fundamentals[sym] = res
	}

	proposal, err := v.caller.Call(ctx, "portfolio-analytics", "calculate_rebalance_proposal", map[string]any{
		"target_invested": targetInvested,
	})
	if err != nil {
		return fail("rebalance_proposal", err)
	}
	legs, err := decodeLegs(proposal["changes"])
	if err != nil {
		return fail("rebalance_proposal", err)
	}

	result := map[string]any{
		"success":         true,
		"review_id":       reviewID,
		"review_type":     reviewType,
		"stance":          stance,
		"target_invested": targetInvested,
		"total_value":     totalValue,
		"health":          health,
		"macro":           macro,
		"fundamentals":    fundamentals,
		"proposal":        proposal,
	}

	if len(legs) == 0 {
		v.audit(ctx, "system", "no_rebalance", map[string]any{
			"review_id": reviewID, "stance": stance, "target_invested": targetInvested,
		}, "info")
		result["status"] = "NO_REBALANCE"
		return result, nil
	}

	riskChanges := make([]map[string]any, len(legs))
	for i, leg := range legs {
		riskChanges[i] = map[string]any{
			"symbol": leg.Symbol,
			"action": leg.Action,
			"value":  leg.Value,
		}
	}
	decision, err := v.caller.Call(ctx, "risk", "validate_rebalance", map[string]any{
		"changes":      riskChanges,
		"total_value":  totalValue,
		"max_turnover": maxReviewTurnover,
	})
	if err != nil {
		return fail("validate_rebalance", err)
	}
	approved := boolean(decision, "approved")

	severity := "info"
	if !approved {
		severity = "warning"
	}
	v.audit(ctx, "risk_decision", "validate_rebalance", map[string]any{
		"review_id": reviewID, "approved": approved,
		"risk_score": num(decision, "risk_score"),
		"violations": decision["violations"],
		"num_legs":   len(legs),
	}, severity)

	result["risk"] = decision
	if !approved {
		result["status"] = "REJECTED"
		return result, nil
	}

	applyChanges := make([]map[string]any, len(legs))
	for i, leg := range legs {
		applyChanges[i] = map[string]any{
			"symbol":   leg.Symbol,
			"action":   leg.Action,
			"quantity": leg.Quantity,
			"price":    leg.Price,
		}
	}
	applied, err := v.caller.Call(ctx, "execution", "apply_rebalance", map[string]any{
		"rebalance_id":    reviewID,
		"changes":         applyChanges,
		"approved":        true,
		"risk_validation": decision,
	})
	if err != nil {
		return fail("apply_rebalance", err)
	}

	v.audit(ctx, "execution", "apply_rebalance", map[string]any{
		"review_id": reviewID, "num_legs": len(legs),
		"success": boolean(applied, "success"),
	}, "info")

	result["status"] = "REBALANCED"
	result["applied"] = applied
	return result, nil
}
