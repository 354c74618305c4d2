// Package supervisor contains the orchestration pipelines that turn
// analytical signals into validated, executed portfolio changes.
package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/market"
	"github.com/autofinance/autofinance/internal/rpc"
)

// newPipelineID mints a short collision-resistant identifier
func newPipelineID(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func num(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// audit emits a compliance event. Failures are logged, never fatal: the
// pipeline outcome must not depend on the audit trail being reachable.
func audit(ctx context.Context, caller rpc.Caller, log zerolog.Logger, agent, eventType, action string, details map[string]any, severity string) {
	_, err := caller.Call(ctx, "compliance", "log_event", map[string]any{
		"event_type": eventType,
		"agent_name": agent,
		"action":     action,
		"details":    details,
		"severity":   severity,
	})
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Audit emit failed")
	}
}

// Trader runs the trade proposal pipeline
type Trader struct {
	caller rpc.Caller
	log    zerolog.Logger
}

// NewTrader creates the trade supervisor over a peer caller
func NewTrader(caller rpc.Caller) *Trader {
	return &Trader{
		caller: caller,
		log:    config.NewSupervisorLogger("trader"),
	}
}

func (t *Trader) audit(ctx context.Context, eventType, action string, details map[string]any, severity string) {
	audit(ctx, t.caller, t.log, "trader-supervisor", eventType, action, details, severity)
}

// voteAction tallies signal sources into an action. Technical BUY and
// positive sentiment each count for, their opposites against; ties hold.
func voteAction(technicalSignal, sentiment string) string {
	score := 0
	switch technicalSignal {
	case "BUY":
		score++
	case "SELL":
		score--
	}
	switch sentiment {
	case "POSITIVE":
		score++
	case "NEGATIVE":
		score--
	}
	switch {
	case score > 0:
		return "BUY"
	case score < 0:
		return "SELL"
	}
	return "HOLD"
}

// aggregateConfidence blends the source confidences
func aggregateConfidence(technical, sentiment, volatilityRisk float64) float64 {
	return 0.4*technical + 0.3*sentiment + 0.3*(1-volatilityRisk)
}

// ProcessTradeRequest runs the full propose-validate-execute pipeline for
// one symbol. Every step is audited; any peer failure short-circuits.
func (t *Trader) ProcessTradeRequest(ctx context.Context, symbol string, quantity float64) (map[string]any, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	symbol = market.NormalizeSymbol(symbol)
	tradeID := newPipelineID("TRD")

	t.audit(ctx, "proposal", "process_trade_request", map[string]any{
		"trade_id": tradeID, "symbol": symbol, "quantity": quantity,
	}, "info")

	fail := func(stage string, err error) (map[string]any, error) {
		t.audit(ctx, "error", stage, map[string]any{
			"trade_id": tradeID, "symbol": symbol, "error": err.Error(),
		}, "error")
		return map[string]any{
			"success":  false,
			"trade_id": tradeID,
			"symbol":   symbol,
			"reason":   fmt.Sprintf("%s failed: %v", stage, err),
		}, nil
	}

	quote, err := t.caller.Call(ctx, "market", "get_live_price", map[string]any{"symbol": symbol})
	if err != nil {
		return fail("fetch_price", err)
	}
	price := num(quote, "price")
	if price <= 0 {
		return fail("fetch_price", fmt.Errorf("no usable price for %s", symbol))
	}

	var technical, volatility, sentiment map[string]any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		technical, err = t.caller.Call(gctx, "technical", "generate_signal", map[string]any{"symbol": symbol})
		return err
	})
	g.Go(func() error {
		var err error
		volatility, err = t.caller.Call(gctx, "volatility", "get_volatility_score", map[string]any{"symbol": symbol})
		return err
	})
	g.Go(func() error {
		var err error
		sentiment, err = t.caller.Call(gctx, "news", "analyze_sentiment", map[string]any{"symbol": symbol})
		return err
	})
	if err := g.Wait(); err != nil {
		return fail("gather_signals", err)
	}

	action := voteAction(str(technical, "signal"), str(sentiment, "sentiment"))
	confidence := aggregateConfidence(
		num(technical, "confidence"),
		num(sentiment, "confidence"),
		num(volatility, "risk_score"),
	)

	signals := map[string]any{
		"technical":  technical,
		"volatility": volatility,
		"sentiment":  sentiment,
	}

	if action == "HOLD" {
		t.audit(ctx, "system", "hold_decision", map[string]any{
			"trade_id": tradeID, "symbol": symbol, "confidence": confidence,
		}, "info")
		return map[string]any{
			"success":    true,
			"trade_id":   tradeID,
			"symbol":     symbol,
			"action":     "HOLD",
			"confidence": confidence,
			"executed":   false,
			"signals":    signals,
		}, nil
	}

	snapshot, err := t.caller.Call(ctx, "execution", "get_portfolio_state", nil)
	if err != nil {
		return fail("portfolio_snapshot", err)
	}
	totalValue := num(snapshot, "total_value")
	cash := num(snapshot, "cash")

	decision, err := t.caller.Call(ctx, "risk", "validate_trade", map[string]any{
		"trade_id":   tradeID,
		"symbol":     symbol,
		"action":     action,
		"quantity":   quantity,
		"price":      price,
		"confidence": confidence,
		"volatility": num(volatility, "volatility"),
		"portfolio": map[string]any{
			"total_value":    totalValue,
			"cash":           cash,
			"invested_value": totalValue - cash,
		},
	})
	if err != nil {
		return fail("validate_trade", err)
	}
	approved := boolean(decision, "approved")

	severity := "info"
	if !approved {
		severity = "warning"
	}
	t.audit(ctx, "risk_decision", "validate_trade", map[string]any{
		"trade_id": tradeID, "symbol": symbol, "action": action,
		"approved": approved, "risk_score": num(decision, "risk_score"),
		"violations": decision["violations"],
	}, severity)

	result := map[string]any{
		"success":    true,
		"trade_id":   tradeID,
		"symbol":     symbol,
		"action":     action,
		"quantity":   quantity,
		"price":      price,
		"confidence": confidence,
		"approved":   approved,
		"executed":   false,
		"risk":       decision,
		"signals":    signals,
	}
	if !approved {
		return result, nil
	}

	execution, err := t.caller.Call(ctx, "execution", "execute_trade", map[string]any{
		"trade_id":        tradeID,
		"symbol":          symbol,
		"action":          action,
		"quantity":        quantity,
		"price":           price,
		"approved":        true,
		"risk_validation": decision,
	})
	if err != nil {
		return fail("execute_trade", err)
	}

	executed := boolean(execution, "success")
	severity = "info"
	if !executed {
		severity = "warning"
	}
	t.audit(ctx, "execution", "execute_trade", map[string]any{
		"trade_id": tradeID, "symbol": symbol, "action": action,
		"success": executed, "reason": str(execution, "reason"),
	}, severity)

	result["executed"] = executed
	result["execution"] = execution
	if !executed && strings.TrimSpace(str(execution, "reason")) != "" {
		result["reason"] = str(execution, "reason")
	}
	return result, nil
}
