// Package simulation provides what-if trade analysis and strategy
// back-testing over historical daily series.
package simulation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/indicators"
	"github.com/autofinance/autofinance/internal/market"
)

// PriceSource supplies historical daily closes
type PriceSource interface {
	DailyCloses(ctx context.Context, symbol string, days int) ([]float64, error)
}

// Service runs simulations over a price source
type Service struct {
	prices PriceSource
	log    zerolog.Logger
}

// NewService creates the simulation service
func NewService(prices PriceSource) *Service {
	return &Service{
		prices: prices,
		log:    config.NewMCPLogger("simulation"),
	}
}

// scenario is one branch of the trade outcome tree
type scenario struct {
	Name        string
	Probability float64
	Move        float64
}

var tradeScenarios = []scenario{
	{"bull", 0.20, 0.15},
	{"base", 0.50, 0.05},
	{"bear", 0.30, -0.10},
}

// fractionalUnits reports whether an instrument trades in fractions.
// Expensive instruments do, cheap ones round down to whole units.
func fractionalUnits(startClose float64) bool {
	return startClose > 500
}

func sizeUnits(cash, price float64, fractional bool) float64 {
	units := cash / price
	if !fractional {
		units = math.Floor(units)
	}
	return units
}

// SimulateTrade projects a proposed trade through the scenario tree
func (s *Service) SimulateTrade(symbol, action string, quantity, entryPrice, portfolioValue float64) (map[string]any, error) {
	action = strings.ToUpper(action)
	if action != "BUY" && action != "SELL" {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	if quantity <= 0 || entryPrice <= 0 {
		return nil, fmt.Errorf("quantity and entry_price must be positive")
	}

	symbol = market.NormalizeSymbol(symbol)
	value := quantity * entryPrice
	direction := 1.0
	if action == "SELL" {
		direction = -1
	}

	outcomes := []map[string]any{}
	expected := 0.0
	best, worst := math.Inf(-1), math.Inf(1)
	for _, sc := range tradeScenarios {
		pnl := value * sc.Move * direction
		expected += sc.Probability * pnl
		best = math.Max(best, pnl)
		worst = math.Min(worst, pnl)
		outcomes = append(outcomes, map[string]any{
			"scenario":        sc.Name,
			"probability":     sc.Probability,
			"price_move_pct":  sc.Move * 100,
			"projected_price": entryPrice * (1 + sc.Move),
			"pnl":             pnl,
		})
	}

	expectedPct := expected / value
	riskReward := 0.0
	if worst != 0 {
		riskReward = math.Abs(best / worst)
	}

	recommendations := []string{}
	if portfolioValue > 0 && value > 0.20*portfolioValue {
		recommendations = append(recommendations,
			fmt.Sprintf("Trade is %.1f%% of portfolio, above the 20%% guideline", value/portfolioValue*100))
	}
	if riskReward < 1.5 {
		recommendations = append(recommendations, "Risk/reward below 1.5, consider a tighter stop or smaller size")
	}
	if expected < 0 {
		recommendations = append(recommendations, "Negative expected return, trade not recommended")
	}
	if expectedPct > 0.05 && riskReward > 2 {
		recommendations = append(recommendations, "Favorable setup: positive expectancy with strong risk/reward")
	}

	return map[string]any{
		"symbol":              symbol,
		"action":              action,
		"quantity":            quantity,
		"entry_price":         entryPrice,
		"trade_value":         value,
		"scenarios":           outcomes,
		"expected_return":     expected,
		"expected_return_pct": expectedPct,
		"risk_reward":         riskReward,
		"recommendations":     recommendations,
	}, nil
}

// rebalanceCostRate is the assumed round-trip cost per traded dollar
const rebalanceCostRate = 0.001

// rebalanceDriftThreshold suppresses changes below 1% of total value
const rebalanceDriftThreshold = 0.01

// maxSimTurnover rejects proposals that would churn over half the book
const maxSimTurnover = 0.50

// SimulateRebalance projects the trades and cost of moving the current
// position values onto the target allocation weights.
func (s *Service) SimulateRebalance(current map[string]float64, target map[string]float64) (map[string]any, error) {
	total := 0.0
	for _, v := range current {
		if v < 0 {
			return nil, fmt.Errorf("position values must be non-negative")
		}
		total += v
	}
	if total <= 0 {
		return nil, fmt.Errorf("current positions are empty")
	}

	targetSum := 0.0
	for _, w := range target {
		if w < 0 {
			return nil, fmt.Errorf("target weights must be non-negative")
		}
		targetSum += w
	}
	if targetSum <= 0 || targetSum > 1.000001 {
		return nil, fmt.Errorf("target weights must sum to at most 1, got %.4f", targetSum)
	}

	symbols := map[string]bool{}
	for sym := range current {
		symbols[market.NormalizeSymbol(sym)] = true
	}
	for sym := range target {
		symbols[market.NormalizeSymbol(sym)] = true
	}

	normalized := func(m map[string]float64) map[string]float64 {
		out := map[string]float64{}
		for sym, v := range m {
			out[market.NormalizeSymbol(sym)] += v
		}
		return out
	}
	cur := normalized(current)
	tgt := normalized(target)

	ordered := make([]string, 0, len(symbols))
	for sym := range symbols {
		ordered = append(ordered, sym)
	}
	sort.Strings(ordered)

	changes := []map[string]any{}
	gross := 0.0
	for _, sym := range ordered {
		currentWeight := cur[sym] / total
		diff := tgt[sym] - currentWeight
		if math.Abs(diff) < rebalanceDriftThreshold {
			continue
		}
		value := diff * total
		action := "BUY"
		if value < 0 {
			action = "SELL"
		}
		changes = append(changes, map[string]any{
			"symbol":         sym,
			"action":         action,
			"value":          math.Abs(value),
			"current_weight": currentWeight,
			"target_weight":  tgt[sym],
		})
		gross += math.Abs(value)
	}

	turnover := gross / 2
	turnoverPct := turnover / total
	cost := gross * rebalanceCostRate

	verdict := "APPROVED"
	if turnoverPct >= maxSimTurnover {
		verdict = "REJECTED"
	}

	return map[string]any{
		"total_value":    total,
		"changes":        changes,
		"turnover":       turnover,
		"turnover_pct":   turnoverPct,
		"estimated_cost": cost,
		"verdict":        verdict,
	}, nil
}

// Strategy names accepted by SimulateStrategy
const (
	StrategyBuyAndHold    = "buy_and_hold"
	StrategyMomentum      = "momentum"
	StrategyMeanReversion = "mean_reversion"
)

const lookback = 20

// SimulateStrategy back-tests a strategy over the instrument's history
func (s *Service) SimulateStrategy(ctx context.Context, strategy, symbol string, initialCapital float64, timeframeDays int) (map[string]any, error) {
	if initialCapital <= 0 {
		initialCapital = 10000
	}
	if timeframeDays <= 0 {
		timeframeDays = 365
	}
	symbol = market.NormalizeSymbol(symbol)

	closes, err := s.prices.DailyCloses(ctx, symbol, timeframeDays)
	if err != nil {
		return nil, fmt.Errorf("history unavailable for %s: %w", symbol, err)
	}
	minCloses := 2
	if strategy != StrategyBuyAndHold {
		minCloses = lookback + 2
	}
	if len(closes) < minCloses {
		return map[string]any{
			"success": false,
			"reason":  "Insufficient historical data",
			"symbol":  symbol,
		}, nil
	}

	fractional := fractionalUnits(closes[0])

	var equity []float64
	var trades int
	switch strategy {
	case StrategyBuyAndHold:
		equity, trades = runBuyAndHold(closes, initialCapital, fractional)
	case StrategyMomentum:
		equity, trades = runMomentum(closes, initialCapital, fractional)
	case StrategyMeanReversion:
		equity, trades = runMeanReversion(closes, initialCapital, fractional)
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}

	final := equity[len(equity)-1]
	totalReturn := final/initialCapital - 1
	benchmark := closes[len(closes)-1]/closes[0] - 1

	dailyReturns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			dailyReturns = append(dailyReturns, equity[i]/equity[i-1]-1)
		}
	}

	return map[string]any{
		"success":          true,
		"strategy":         strategy,
		"symbol":           symbol,
		"initial_capital":  initialCapital,
		"final_value":      final,
		"total_return_pct": totalReturn * 100,
		"benchmark_pct":    benchmark * 100,
		"alpha_pct":        (totalReturn - benchmark) * 100,
		"sharpe_ratio":     indicators.SharpeRatio(dailyReturns),
		"max_drawdown_pct": indicators.MaxDrawdown(equity) * 100,
		"num_trades":       trades,
		"days":             len(closes),
		"fractional_units": fractional,
	}, nil
}

func runBuyAndHold(closes []float64, capital float64, fractional bool) ([]float64, int) {
	units := sizeUnits(capital, closes[0], fractional)
	cash := capital - units*closes[0]

	equity := make([]float64, len(closes))
	for i, price := range closes {
		equity[i] = cash + units*price
	}
	trades := 0
	if units > 0 {
		trades = 1
	}
	return equity, trades
}

func runMomentum(closes []float64, capital float64, fractional bool) ([]float64, int) {
	sma := indicators.SMA(closes, lookback)

	cash := capital
	units := 0.0
	trades := 0

	equity := make([]float64, len(closes))
	for i, price := range closes {
		// sma[i-lookback+1] is the average ending at closes[i]
		if i >= lookback-1 {
			avg := sma[i-lookback+1]
			if units == 0 && price > avg {
				units = sizeUnits(cash, price, fractional)
				cash -= units * price
				trades++
			} else if units > 0 && price < avg {
				cash += units * price
				units = 0
				trades++
			}
		}
		equity[i] = cash + units*price
	}
	return equity, trades
}

func runMeanReversion(closes []float64, capital float64, fractional bool) ([]float64, int) {
	sma := indicators.SMA(closes, lookback)

	cash := capital
	units := 0.0
	trades := 0

	equity := make([]float64, len(closes))
	for i, price := range closes {
		if i >= lookback-1 {
			window := closes[i-lookback+1 : i+1]
			returns := make([]float64, 0, lookback-1)
			for j := 1; j < len(window); j++ {
				returns = append(returns, window[j]/window[j-1]-1)
			}
			sigma := indicators.StdDev(returns) * math.Sqrt(lookback)

			avg := sma[i-lookback+1]
			deviation := 0.0
			if avg > 0 {
				deviation = (price - avg) / avg
			}

			if units == 0 && deviation < -0.5*sigma && sigma > 0 {
				units = sizeUnits(cash, price, fractional)
				cash -= units * price
				trades++
			} else if units > 0 && deviation > 0.5*sigma {
				cash += units * price
				units = 0
				trades++
			}
		}
		equity[i] = cash + units*price
	}
	return equity, trades
}

// targetMultiple fixes the reward at twice the risked distance
const targetMultiple = 2.0

// PositionSize computes risk-based sizing for a long entry
func (s *Service) PositionSize(accountValue, riskFraction, entryPrice, stopLoss float64) (map[string]any, error) {
	if accountValue <= 0 {
		return nil, fmt.Errorf("account_value must be positive")
	}
	if entryPrice <= 0 || stopLoss <= 0 {
		return nil, fmt.Errorf("entry_price and stop_loss must be positive")
	}
	if stopLoss >= entryPrice {
		return nil, fmt.Errorf("stop_loss must be below entry_price for a long position")
	}
	if riskFraction <= 0 {
		riskFraction = 0.02
	}
	if riskFraction > 0.1 {
		return nil, fmt.Errorf("risk_fraction %.2f above the 0.10 ceiling", riskFraction)
	}

	riskAmount := accountValue * riskFraction
	riskPerUnit := entryPrice - stopLoss
	quantity := riskAmount / riskPerUnit
	positionValue := quantity * entryPrice
	targetPrice := entryPrice + targetMultiple*riskPerUnit

	warnings := []string{}
	if positionValue > 0.25*accountValue {
		warnings = append(warnings,
			fmt.Sprintf("Position is %.1f%% of account, above the 25%% guideline", positionValue/accountValue*100))
	}

	return map[string]any{
		"quantity":       quantity,
		"position_value": positionValue,
		"risk_amount":    riskAmount,
		"risk_per_unit":  riskPerUnit,
		"entry_price":    entryPrice,
		"stop_loss":      stopLoss,
		"target_price":   targetPrice,
		"risk_reward":    targetMultiple,
		"warnings":       warnings,
	}, nil
}
