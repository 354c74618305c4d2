// Package portfolio holds the paper-trading ledger: cash, positions and the
// transaction log, plus the analytics computed over them.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/events"
	"github.com/autofinance/autofinance/internal/market"
	"github.com/autofinance/autofinance/internal/metrics"
)

// DefaultInitialCash seeds a fresh portfolio
const DefaultInitialCash = 100000.0

// Position is a held asset
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
}

// Value prices the position at the freshest known price
func (p Position) Value() float64 {
	price := p.CurrentPrice
	if price == 0 {
		price = p.AvgPrice
	}
	return p.Quantity * price
}

// TransactionRecord is one executed or refused trade
type TransactionRecord struct {
	TradeID   string    `json:"trade_id"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Value     float64   `json:"value"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeResult is returned from ExecuteTrade
type TradeResult struct {
	Success  bool    `json:"success"`
	Reason   string  `json:"reason,omitempty"`
	TradeID  string  `json:"trade_id"`
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
	Cash     float64 `json:"cash_after"`
}

// Engine is the single-writer portfolio ledger
type Engine struct {
	mu           sync.Mutex
	cash         float64
	positions    map[string]*Position
	transactions []TransactionRecord
	lastUpdated  time.Time

	bus *events.Bus
	log zerolog.Logger
}

// NewEngine creates a ledger seeded with initialCash. bus may be nil.
func NewEngine(initialCash float64, bus *events.Bus) *Engine {
	if initialCash <= 0 {
		initialCash = DefaultInitialCash
	}
	return &Engine{
		cash:        initialCash,
		positions:   make(map[string]*Position),
		lastUpdated: time.Now().UTC(),
		bus:         bus,
		log:         config.NewMCPLogger("execution"),
	}
}

// ExecuteTrade applies a BUY or SELL to the ledger. Business refusals come
// back with Success=false, never as an error.
func (e *Engine) ExecuteTrade(tradeID, symbol, action string, quantity, price float64) TradeResult {
	normalized := market.NormalizeSymbol(symbol)
	value := quantity * price

	e.mu.Lock()
	defer e.mu.Unlock()

	result := TradeResult{
		TradeID:  tradeID,
		Symbol:   normalized,
		Action:   action,
		Quantity: quantity,
		Price:    price,
		Value:    value,
	}

	switch action {
	case "BUY":
		result = e.buyLocked(result)
	case "SELL":
		result = e.sellLocked(result)
	default:
		result.Reason = fmt.Sprintf("Unknown action %q, want BUY or SELL", action)
	}
	result.Cash = e.cash

	e.transactions = append(e.transactions, TransactionRecord{
		TradeID:   tradeID,
		Symbol:    normalized,
		Action:    action,
		Quantity:  quantity,
		Price:     price,
		Value:     value,
		Success:   result.Success,
		Reason:    result.Reason,
		Timestamp: time.Now().UTC(),
	})
	e.lastUpdated = time.Now().UTC()

	metrics.RecordTrade(action, result.Success)
	e.updateGaugesLocked()

	if result.Success {
		e.log.Info().
			Str("trade_id", tradeID).
			Str("symbol", normalized).
			Str("action", action).
			Float64("quantity", quantity).
			Float64("price", price).
			Msg("Trade executed")
		e.publishLocked(tradeID, normalized, action, quantity, price, value)
	} else {
		e.log.Warn().
			Str("trade_id", tradeID).
			Str("symbol", normalized).
			Str("reason", result.Reason).
			Msg("Trade refused")
	}

	return result
}

func (e *Engine) buyLocked(r TradeResult) TradeResult {
	if quantityInvalid(r.Quantity) || r.Price <= 0 {
		r.Reason = "Quantity and price must be positive"
		return r
	}
	if e.cash < r.Value {
		r.Reason = fmt.Sprintf("Insufficient cash: have %.2f, need %.2f", e.cash, r.Value)
		return r
	}

	e.cash -= r.Value
	pos, ok := e.positions[r.Symbol]
	if !ok {
		e.positions[r.Symbol] = &Position{
			Symbol:       r.Symbol,
			Quantity:     r.Quantity,
			AvgPrice:     r.Price,
			CurrentPrice: r.Price,
		}
	} else {
		newQty := pos.Quantity + r.Quantity
		pos.AvgPrice = (pos.AvgPrice*pos.Quantity + r.Value) / newQty
		pos.Quantity = newQty
		pos.CurrentPrice = r.Price
	}

	r.Success = true
	return r
}

func (e *Engine) sellLocked(r TradeResult) TradeResult {
	if quantityInvalid(r.Quantity) || r.Price <= 0 {
		r.Reason = "Quantity and price must be positive"
		return r
	}

	pos, ok := e.positions[r.Symbol]
	if !ok {
		r.Reason = fmt.Sprintf("No position in %s", r.Symbol)
		return r
	}
	if pos.Quantity < r.Quantity {
		r.Reason = fmt.Sprintf("Insufficient quantity: have %.8f, need %.8f", pos.Quantity, r.Quantity)
		return r
	}

	e.cash += r.Value
	pos.Quantity -= r.Quantity
	pos.CurrentPrice = r.Price
	if pos.Quantity == 0 {
		delete(e.positions, r.Symbol)
	}

	r.Success = true
	return r
}

func quantityInvalid(q float64) bool { return q <= 0 }

// RebalanceChange is one leg of an ApplyRebalance call
type RebalanceChange struct {
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// ApplyRebalance executes the changes in order. A failed leg is reported and
// skipped; earlier legs are not rolled back.
func (e *Engine) ApplyRebalance(rebalanceID string, changes []RebalanceChange) map[string]any {
	results := make([]TradeResult, 0, len(changes))
	applied := 0
	for _, change := range changes {
		tradeID := fmt.Sprintf("%s_%s", rebalanceID, market.NormalizeSymbol(change.Symbol))
		res := e.ExecuteTrade(tradeID, change.Symbol, change.Action, change.Quantity, change.Price)
		if res.Success {
			applied++
		}
		results = append(results, res)
	}

	status := "complete"
	if applied < len(changes) {
		status = "partial"
	}
	metrics.RebalancesApplied.WithLabelValues(status).Inc()
	e.log.Info().
		Str("rebalance_id", rebalanceID).
		Int("applied", applied).
		Int("total", len(changes)).
		Msg("Rebalance applied")

	return map[string]any{
		"rebalance_id": rebalanceID,
		"applied":      applied,
		"total":        len(changes),
		"results":      results,
	}
}

// UpdatePositionPrices refreshes current prices; unknown symbols are ignored
func (e *Engine) UpdatePositionPrices(prices map[string]float64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	updated := 0
	for symbol, price := range prices {
		if price <= 0 {
			continue
		}
		if pos, ok := e.positions[market.NormalizeSymbol(symbol)]; ok {
			pos.CurrentPrice = price
			updated++
		}
	}
	if updated > 0 {
		e.lastUpdated = time.Now().UTC()
		e.updateGaugesLocked()
	}
	return updated
}

// Reset clears the ledger back to initialCash
func (e *Engine) Reset(initialCash float64) {
	if initialCash <= 0 {
		initialCash = DefaultInitialCash
	}

	e.mu.Lock()
	e.cash = initialCash
	e.positions = make(map[string]*Position)
	e.transactions = nil
	e.lastUpdated = time.Now().UTC()
	e.updateGaugesLocked()
	e.mu.Unlock()

	e.log.Info().Float64("initial_cash", initialCash).Msg("Portfolio reset")
}

// Snapshot is the full portfolio state
type Snapshot struct {
	Cash             float64             `json:"cash"`
	Positions        map[string]Position `json:"positions"`
	TotalValue       float64             `json:"total_value"`
	NumPositions     int                 `json:"num_positions"`
	CashPct          float64             `json:"cash_pct"`
	InvestedPct      float64             `json:"invested_pct"`
	LastUpdated      time.Time           `json:"last_updated"`
	TransactionCount int                 `json:"transaction_count"`
}

// State returns a copy of the current portfolio state
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions := make(map[string]Position, len(e.positions))
	invested := 0.0
	for sym, pos := range e.positions {
		positions[sym] = *pos
		invested += pos.Value()
	}

	total := e.cash + invested
	snap := Snapshot{
		Cash:             e.cash,
		Positions:        positions,
		TotalValue:       total,
		NumPositions:     len(positions),
		LastUpdated:      e.lastUpdated,
		TransactionCount: len(e.transactions),
	}
	if total > 0 {
		snap.CashPct = e.cash / total * 100
		snap.InvestedPct = invested / total * 100
	}
	return snap
}

// Transactions returns a copy of the transaction log, newest last
func (e *Engine) Transactions(limit int) []TransactionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	records := e.transactions
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]TransactionRecord, len(records))
	copy(out, records)
	return out
}

func (e *Engine) publishLocked(tradeID, symbol, action string, quantity, price, value float64) {
	if e.bus == nil {
		return
	}
	if err := e.bus.PublishTradeExecuted(events.TradeExecuted{
		TradeID:   tradeID,
		Symbol:    symbol,
		Action:    action,
		Quantity:  quantity,
		Price:     price,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		e.log.Warn().Err(err).Str("trade_id", tradeID).Msg("Trade event publish failed")
	}
}

func (e *Engine) updateGaugesLocked() {
	invested := 0.0
	for sym, pos := range e.positions {
		v := pos.Value()
		invested += v
		metrics.UpdatePositionValue(sym, v)
	}
	metrics.UpdatePortfolio(e.cash, e.cash+invested, len(e.positions))
}
