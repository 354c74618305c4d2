// Package risk enforces the trading policy: per-trade limits, portfolio
// exposure caps and rebalance turnover bounds.
package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/metrics"
)

// TradeProposal is a trade submitted for validation
type TradeProposal struct {
	TradeID    string  `json:"trade_id,omitempty"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"` // "BUY" or "SELL"
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Value      float64 `json:"value,omitempty"` // quantity*price when zero
	Confidence float64 `json:"confidence"`
	Volatility float64 `json:"volatility"`
}

// PortfolioContext is the portfolio state the trade lands in
type PortfolioContext struct {
	TotalValue    float64 `json:"total_value"`
	Cash          float64 `json:"cash"`
	InvestedValue float64 `json:"invested_value"`
}

// Decision is the validation outcome
type Decision struct {
	Approved     bool     `json:"approved"`
	RiskScore    float64  `json:"risk_score"`
	Violations   []string `json:"violations"`
	Reason       string   `json:"reason"`
	ProposalType string   `json:"proposal_type"`

	// Echoed trade figures
	TradeValue       float64 `json:"trade_value,omitempty"`
	PositionFraction float64 `json:"position_fraction,omitempty"`

	// Echoed rebalance figures
	TotalTurnover float64 `json:"total_turnover,omitempty"`
	TurnoverPct   float64 `json:"turnover_pct,omitempty"`
}

func decisionReason(approved bool, kind string, violations int) string {
	if approved {
		return "Approved - " + kind + " within policy bounds"
	}
	return fmt.Sprintf("Rejected - %d violations", violations)
}

// RebalanceChange is one leg of a proposed rebalance
type RebalanceChange struct {
	Symbol string  `json:"symbol"`
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

// Validator applies the configured policy
type Validator struct {
	policy config.RiskConfig
	log    zerolog.Logger
}

// NewValidator creates a validator with the given policy
func NewValidator(policy config.RiskConfig) *Validator {
	return &Validator{
		policy: policy,
		log:    config.NewMCPLogger("risk"),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

// riskScore averages the clamped component risks
func (v *Validator) riskScore(trade TradeProposal, positionFraction float64) float64 {
	components := []float64{
		clamp01(trade.Volatility / v.policy.MaxVolatility),
		clamp01(1 - trade.Confidence),
		clamp01(positionFraction / v.policy.MaxPositionFraction),
	}
	sum := 0.0
	for _, c := range components {
		sum += c
	}
	return sum / float64(len(components))
}

// ValidateTrade checks a trade proposal against the policy. Approved is true
// exactly when no violations were found.
func (v *Validator) ValidateTrade(trade TradeProposal, portfolio PortfolioContext) Decision {
	value := trade.Value
	if value == 0 {
		value = trade.Quantity * trade.Price
	}

	violations := []string{}

	if trade.Confidence < v.policy.MinConfidence {
		violations = append(violations, fmt.Sprintf(
			"Confidence %.2f below minimum %.2f", trade.Confidence, v.policy.MinConfidence))
	}
	if trade.Volatility > v.policy.MaxVolatility {
		violations = append(violations, fmt.Sprintf(
			"Volatility %.2f above maximum %.2f", trade.Volatility, v.policy.MaxVolatility))
	}
	if value > v.policy.MaxSingleTradeValue {
		violations = append(violations, fmt.Sprintf(
			"Trade value %.2f exceeds maximum %.2f", value, v.policy.MaxSingleTradeValue))
	}

	positionFraction := 0.0
	if portfolio.TotalValue > 0 {
		positionFraction = value / portfolio.TotalValue
		if positionFraction > v.policy.MaxPositionFraction {
			violations = append(violations, fmt.Sprintf(
				"Position size %.1f%% exceeds maximum %.1f%% of portfolio",
				positionFraction*100, v.policy.MaxPositionFraction*100))
		}
	}

	decision := Decision{
		Approved:         len(violations) == 0,
		RiskScore:        v.riskScore(trade, positionFraction),
		Violations:       violations,
		ProposalType:     "trade",
		TradeValue:       value,
		PositionFraction: positionFraction,
	}
	decision.Reason = decisionReason(decision.Approved, "trade", len(violations))

	metrics.RecordRiskDecision(decision.Approved)
	v.log.Info().
		Str("symbol", trade.Symbol).
		Str("action", trade.Action).
		Bool("approved", decision.Approved).
		Float64("risk_score", decision.RiskScore).
		Int("violations", len(violations)).
		Msg("Trade validated")

	return decision
}

// ValidateRebalance checks a rebalance proposal: total turnover against the
// caller's cap and each leg against the position limit.
func (v *Validator) ValidateRebalance(changes []RebalanceChange, totalValue, maxTurnover float64) Decision {
	if maxTurnover <= 0 {
		maxTurnover = v.policy.MaxRebalanceTurnoverFrac
	}

	violations := []string{}

	if totalValue <= 0 {
		violations = append(violations, "Portfolio total value must be positive")
		return Decision{
			Approved:     false,
			RiskScore:    1,
			Violations:   violations,
			Reason:       decisionReason(false, "rebalance", len(violations)),
			ProposalType: "rebalance",
		}
	}

	turnoverValue := 0.0
	for _, change := range changes {
		abs := math.Abs(change.Value)
		turnoverValue += abs

		fraction := abs / totalValue
		if fraction > v.policy.MaxPositionFraction {
			violations = append(violations, fmt.Sprintf(
				"Change for %s is %.1f%% of portfolio, above the %.1f%% limit",
				change.Symbol, fraction*100, v.policy.MaxPositionFraction*100))
		}
	}

	turnover := turnoverValue / totalValue
	if turnover > maxTurnover {
		violations = append(violations, fmt.Sprintf(
			"Turnover %.1f%% exceeds maximum %.1f%%", turnover*100, maxTurnover*100))
	}

	decision := Decision{
		Approved:      len(violations) == 0,
		RiskScore:     clamp01(turnover / math.Max(maxTurnover, 1e-9) * 0.5),
		Violations:    violations,
		ProposalType:  "rebalance",
		TotalTurnover: turnoverValue,
		TurnoverPct:   turnover,
	}
	decision.Reason = decisionReason(decision.Approved, "rebalance", len(violations))

	metrics.RecordRiskDecision(decision.Approved)
	v.log.Info().
		Int("changes", len(changes)).
		Float64("turnover", turnover).
		Bool("approved", decision.Approved).
		Msg("Rebalance validated")

	return decision
}

// Policy returns the active policy limits
func (v *Validator) Policy() map[string]any {
	return map[string]any{
		"max_position_fraction":        v.policy.MaxPositionFraction,
		"max_volatility":               v.policy.MaxVolatility,
		"min_confidence":               v.policy.MinConfidence,
		"max_single_trade_value":       v.policy.MaxSingleTradeValue,
		"max_portfolio_invested_frac":  v.policy.MaxPortfolioInvestedFrac,
		"max_rebalance_turnover_frac":  v.policy.MaxRebalanceTurnoverFrac,
	}
}
