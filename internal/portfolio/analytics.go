package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// overexposureThreshold is the per-position weight that counts as overexposed
const overexposureThreshold = 0.20

// rebalanceEmitThreshold suppresses changes smaller than 2% of the portfolio
const rebalanceEmitThreshold = 0.02

// defaultTargetInvested is the invested fraction a rebalance aims for
const defaultTargetInvested = 0.70

// Analytics evaluates portfolio health over live or simulated state
type Analytics struct {
	caller rpc.Caller

	mu  sync.RWMutex
	sim *Snapshot

	log zerolog.Logger
}

// NewAnalytics creates the analytics service over a peer caller
func NewAnalytics(caller rpc.Caller) *Analytics {
	return &Analytics{
		caller: caller,
		log:    config.NewMCPLogger("portfolio-analytics"),
	}
}

// snapshot returns the simulated portfolio when set, the live one otherwise
func (a *Analytics) snapshot(ctx context.Context) (Snapshot, error) {
	a.mu.RLock()
	sim := a.sim
	a.mu.RUnlock()
	if sim != nil {
		return *sim, nil
	}

	raw, err := a.caller.Call(ctx, "execution", "get_portfolio_state", nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("portfolio state unavailable: %w", err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("malformed portfolio state: %w", err)
	}
	return snap, nil
}

// weightedPosition carries a position's share of total portfolio value
type weightedPosition struct {
	Symbol      string
	Value       float64
	TotalWeight float64 // share of total portfolio value
	Position    Position
}

func weights(snap Snapshot) []weightedPosition {
	out := make([]weightedPosition, 0, len(snap.Positions))
	for sym, pos := range snap.Positions {
		w := weightedPosition{Symbol: sym, Value: pos.Value(), Position: pos}
		if snap.TotalValue > 0 {
			w.TotalWeight = w.Value / snap.TotalValue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// herfindahl is the concentration index: the sum of squared position weights
func herfindahl(positions []weightedPosition) float64 {
	h := 0.0
	for _, p := range positions {
		h += p.TotalWeight * p.TotalWeight
	}
	return h
}

// diversificationScore is 1 minus the Herfindahl index; a single position
// scores zero
func diversificationScore(positions []weightedPosition) float64 {
	if len(positions) <= 1 {
		return 0
	}
	return 1 - herfindahl(positions)
}

// cashHealthScore rewards a 20-40% cash buffer
func cashHealthScore(cashFraction float64) float64 {
	switch {
	case cashFraction >= 0.2 && cashFraction <= 0.4:
		return 1.0
	case cashFraction < 0.1 || cashFraction > 0.5:
		return 0.3
	default:
		return 0.7
	}
}

// healthBand maps the composite score to a label
func healthBand(score float64) string {
	switch {
	case score > 0.75:
		return "EXCELLENT"
	case score > 0.60:
		return "GOOD"
	case score > 0.45:
		return "FAIR"
	default:
		return "POOR"
	}
}

// Evaluate scores the portfolio's overall health
func (a *Analytics) Evaluate(ctx context.Context) (map[string]any, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	positions := weights(snap)
	diversification := diversificationScore(positions)

	cashFraction := 0.0
	if snap.TotalValue > 0 {
		cashFraction = snap.Cash / snap.TotalValue
	}
	cashHealth := cashHealthScore(cashFraction)

	concentration := herfindahl(positions)

	health := (diversification + cashHealth + (1 - concentration)) / 3

	return map[string]any{
		"health_score": health,
		"health_band":  healthBand(health),
		"components": map[string]any{
			"diversification": diversification,
			"cash_health":     cashHealth,
			"concentration":   concentration,
		},
		"cash_fraction": cashFraction,
		"num_positions": len(positions),
		"total_value":   snap.TotalValue,
	}, nil
}

// CheckOverexposure lists positions above the 20% weight threshold
func (a *Analytics) CheckOverexposure(ctx context.Context) (map[string]any, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	overexposed := []map[string]any{}
	for _, p := range weights(snap) {
		if p.TotalWeight > overexposureThreshold {
			overexposed = append(overexposed, map[string]any{
				"symbol":        p.Symbol,
				"weight":        p.TotalWeight,
				"excess_weight": p.TotalWeight - overexposureThreshold,
				"excess_value":  (p.TotalWeight - overexposureThreshold) * snap.TotalValue,
			})
		}
	}

	return map[string]any{
		"threshold":   overexposureThreshold,
		"overexposed": overexposed,
		"count":       len(overexposed),
	}, nil
}

// ProposedChange is one leg of a rebalance proposal
type ProposedChange struct {
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"` // signed: positive buys, negative sells
}

// livePrice fetches a quote for a symbol the portfolio does not hold.
// Returns 0 when no usable price is available.
func (a *Analytics) livePrice(ctx context.Context, symbol string) float64 {
	raw, err := a.caller.Call(ctx, "market", "get_live_price", map[string]any{"symbol": symbol})
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Price fetch for rebalance target failed")
		return 0
	}
	price, _ := raw["price"].(float64)
	return price
}

// RebalanceProposal computes the trades that move the portfolio toward the
// target allocation (per-symbol weights of total value). When no allocation
// is given, targetInvested (default 70%) is spread equally across current
// positions.
func (a *Analytics) RebalanceProposal(ctx context.Context, targetInvested float64, targetAllocation map[string]float64) (map[string]any, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if targetInvested <= 0 || targetInvested > 1 {
		targetInvested = defaultTargetInvested
	}

	positions := weights(snap)
	if snap.TotalValue <= 0 || (len(positions) == 0 && len(targetAllocation) == 0) {
		return map[string]any{
			"changes":      []ProposedChange{},
			"buys":         []ProposedChange{},
			"sells":        []ProposedChange{},
			"turnover":     0.0,
			"turnover_pct": 0.0,
			"impact":       "LOW",
			"reason":       "no positions to rebalance",
		}, nil
	}

	result := map[string]any{"target_invested": targetInvested}
	if len(targetAllocation) == 0 {
		perPosition := targetInvested / float64(len(positions))
		targetAllocation = make(map[string]float64, len(positions))
		for _, p := range positions {
			targetAllocation[p.Symbol] = perPosition
		}
		result["target_per_position"] = snap.TotalValue * perPosition
	}
	result["target_allocation"] = targetAllocation

	held := make(map[string]weightedPosition, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p
	}
	symbols := make([]string, 0, len(targetAllocation))
	for sym := range targetAllocation {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var changes, buys, sells []ProposedChange
	grossTraded := 0.0
	for _, sym := range symbols {
		diff := targetAllocation[sym]*snap.TotalValue - held[sym].Value
		if math.Abs(diff) <= rebalanceEmitThreshold*snap.TotalValue {
			continue
		}
		price := held[sym].Position.CurrentPrice
		if price == 0 {
			price = held[sym].Position.AvgPrice
		}
		if price <= 0 {
			price = a.livePrice(ctx, sym)
		}
		if price <= 0 {
			continue
		}

		change := ProposedChange{
			Symbol:   sym,
			Quantity: math.Abs(diff) / price,
			Price:    price,
			Value:    diff,
		}
		if diff > 0 {
			change.Action = "BUY"
			buys = append(buys, change)
		} else {
			change.Action = "SELL"
			sells = append(sells, change)
		}
		changes = append(changes, change)
		grossTraded += math.Abs(diff)
	}

	turnover := grossTraded / 2
	turnoverPct := turnover / snap.TotalValue

	impact := "HIGH"
	if turnoverPct < 0.2 {
		impact = "LOW"
	} else if turnoverPct < 0.4 {
		impact = "MEDIUM"
	}

	result["changes"] = changes
	result["buys"] = buys
	result["sells"] = sells
	result["turnover"] = turnover
	result["turnover_pct"] = turnoverPct
	result["impact"] = impact
	return result, nil
}

// AllocationSummary lists the cash row plus positions sorted by weight
func (a *Analytics) AllocationSummary(ctx context.Context) (map[string]any, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	rows := []map[string]any{}
	cashWeight := 0.0
	if snap.TotalValue > 0 {
		cashWeight = snap.Cash / snap.TotalValue
	}
	rows = append(rows, map[string]any{
		"symbol": "CASH",
		"value":  snap.Cash,
		"weight": cashWeight,
	})

	positions := weights(snap)
	for _, p := range positions {
		rows = append(rows, map[string]any{
			"symbol":   p.Symbol,
			"value":    p.Value,
			"weight":   p.TotalWeight,
			"quantity": p.Position.Quantity,
		})
	}

	result := map[string]any{
		"total_value": snap.TotalValue,
		"allocation":  rows,
	}
	if len(positions) > 0 {
		result["largest_position"] = positions[0].Symbol
	}
	return result, nil
}

// SetSimulationPortfolio pins a synthetic portfolio for analysis
func (a *Analytics) SetSimulationPortfolio(cash float64, positions []Position) {
	snap := Snapshot{
		Cash:      cash,
		Positions: make(map[string]Position, len(positions)),
	}
	invested := 0.0
	for _, p := range positions {
		snap.Positions[p.Symbol] = p
		invested += p.Value()
	}
	snap.TotalValue = cash + invested
	snap.NumPositions = len(snap.Positions)
	if snap.TotalValue > 0 {
		snap.CashPct = cash / snap.TotalValue * 100
		snap.InvestedPct = invested / snap.TotalValue * 100
	}

	a.mu.Lock()
	a.sim = &snap
	a.mu.Unlock()

	a.log.Info().Int("positions", len(positions)).Msg("Simulation portfolio set")
}

// ClearSimulationMode reverts to the live portfolio
func (a *Analytics) ClearSimulationMode() bool {
	a.mu.Lock()
	had := a.sim != nil
	a.sim = nil
	a.mu.Unlock()
	return had
}
