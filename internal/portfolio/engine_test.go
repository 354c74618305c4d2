package portfolio

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofinance/autofinance/internal/events"
)

func TestBuyUpdatesCashAndPosition(t *testing.T) {
	e := NewEngine(100000, nil)

	res := e.ExecuteTrade("TRD_1", "BTCUSDT", "BUY", 0.5, 60000)
	require.True(t, res.Success)
	assert.Equal(t, "BTC-USD", res.Symbol)
	assert.Equal(t, 30000.0, res.Value)
	assert.Equal(t, 70000.0, res.Cash)

	snap := e.State()
	pos := snap.Positions["BTC-USD"]
	assert.Equal(t, 0.5, pos.Quantity)
	assert.Equal(t, 60000.0, pos.AvgPrice)
	assert.Equal(t, 100000.0, snap.TotalValue)
	assert.Equal(t, 1, snap.TransactionCount)
}

func TestBuyAveragesEntryPrice(t *testing.T) {
	e := NewEngine(100000, nil)

	require.True(t, e.ExecuteTrade("TRD_1", "BTC", "BUY", 1, 30000).Success)
	require.True(t, e.ExecuteTrade("TRD_2", "BTC", "BUY", 1, 40000).Success)

	pos := e.State().Positions["BTC-USD"]
	assert.Equal(t, 2.0, pos.Quantity)
	assert.Equal(t, 35000.0, pos.AvgPrice)
}

func TestBuyInsufficientCashRefused(t *testing.T) {
	e := NewEngine(1000, nil)

	res := e.ExecuteTrade("TRD_1", "BTC", "BUY", 1, 60000)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "Insufficient cash")

	// Refusal leaves the ledger untouched but is logged
	snap := e.State()
	assert.Equal(t, 1000.0, snap.Cash)
	assert.Empty(t, snap.Positions)
	assert.Equal(t, 1, snap.TransactionCount)
}

func TestSellClosesPosition(t *testing.T) {
	e := NewEngine(100000, nil)
	require.True(t, e.ExecuteTrade("TRD_1", "ETH", "BUY", 10, 3000).Success)

	res := e.ExecuteTrade("TRD_2", "ETH", "SELL", 10, 3500)
	require.True(t, res.Success)

	snap := e.State()
	assert.Empty(t, snap.Positions)
	assert.Equal(t, 105000.0, snap.Cash)
}

func TestSellPartial(t *testing.T) {
	e := NewEngine(100000, nil)
	require.True(t, e.ExecuteTrade("TRD_1", "ETH", "BUY", 10, 3000).Success)

	res := e.ExecuteTrade("TRD_2", "ETH", "SELL", 4, 3500)
	require.True(t, res.Success)

	pos := e.State().Positions["ETH-USD"]
	assert.Equal(t, 6.0, pos.Quantity)
	assert.Equal(t, 3000.0, pos.AvgPrice)
}

func TestSellRefusals(t *testing.T) {
	e := NewEngine(100000, nil)
	require.True(t, e.ExecuteTrade("TRD_1", "ETH", "BUY", 2, 3000).Success)

	res := e.ExecuteTrade("TRD_2", "BTC", "SELL", 1, 60000)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "No position in BTC-USD")

	res = e.ExecuteTrade("TRD_3", "ETH", "SELL", 5, 3000)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "Insufficient quantity")
}

func TestInvalidInputsRefused(t *testing.T) {
	e := NewEngine(100000, nil)

	assert.False(t, e.ExecuteTrade("TRD_1", "BTC", "BUY", -1, 60000).Success)
	assert.False(t, e.ExecuteTrade("TRD_2", "BTC", "BUY", 1, 0).Success)
	res := e.ExecuteTrade("TRD_3", "BTC", "SHORT", 1, 60000)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "Unknown action")
}

func TestApplyRebalanceSequentialNoRollback(t *testing.T) {
	e := NewEngine(100000, nil)
	require.True(t, e.ExecuteTrade("TRD_1", "BTC", "BUY", 1, 50000).Success)

	res := e.ApplyRebalance("REB_1", []RebalanceChange{
		{Symbol: "BTC", Action: "SELL", Quantity: 0.5, Price: 50000},
		{Symbol: "ETH", Action: "BUY", Quantity: 5, Price: 3000},
		{Symbol: "SOL", Action: "SELL", Quantity: 10, Price: 150}, // no position, fails
	})

	assert.Equal(t, 2, res["applied"])
	assert.Equal(t, 3, res["total"])

	results := res["results"].([]TradeResult)
	require.Len(t, results, 3)
	assert.Equal(t, "REB_1_BTC-USD", results[0].TradeID)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.False(t, results[2].Success)

	// Successful legs stay applied
	snap := e.State()
	assert.Equal(t, 0.5, snap.Positions["BTC-USD"].Quantity)
	assert.Equal(t, 5.0, snap.Positions["ETH-USD"].Quantity)
}

func TestUpdatePositionPrices(t *testing.T) {
	e := NewEngine(100000, nil)
	require.True(t, e.ExecuteTrade("TRD_1", "BTC", "BUY", 1, 50000).Success)

	updated := e.UpdatePositionPrices(map[string]float64{
		"BTCUSDT": 55000,
		"ETH":     3000, // not held
		"DOGE":    -1,   // invalid
	})
	assert.Equal(t, 1, updated)

	snap := e.State()
	assert.Equal(t, 55000.0, snap.Positions["BTC-USD"].CurrentPrice)
	assert.Equal(t, 105000.0, snap.TotalValue)
}

func TestStatePercentages(t *testing.T) {
	e := NewEngine(100000, nil)
	require.True(t, e.ExecuteTrade("TRD_1", "BTC", "BUY", 1, 40000).Success)

	snap := e.State()
	assert.Equal(t, 60000.0, snap.Cash)
	assert.InDelta(t, 60.0, snap.CashPct, 1e-9)
	assert.InDelta(t, 40.0, snap.InvestedPct, 1e-9)
	assert.Equal(t, 1, snap.NumPositions)
	assert.False(t, snap.LastUpdated.IsZero())
}

func TestReset(t *testing.T) {
	e := NewEngine(100000, nil)
	require.True(t, e.ExecuteTrade("TRD_1", "BTC", "BUY", 1, 40000).Success)

	e.Reset(0)

	snap := e.State()
	assert.Equal(t, DefaultInitialCash, snap.Cash)
	assert.Empty(t, snap.Positions)
	assert.Equal(t, 0, snap.TransactionCount)
}

func TestTransactionsLimit(t *testing.T) {
	e := NewEngine(100000, nil)
	for i := 0; i < 5; i++ {
		e.ExecuteTrade("TRD", "BTC", "BUY", 0.01, 50000)
	}

	records := e.Transactions(3)
	assert.Len(t, records, 3)

	all := e.Transactions(0)
	assert.Len(t, all, 5)
}

func TestTradeEventPublished(t *testing.T) {
	opts := &natsserver.Options{Port: -1}
	ns, err := natsserver.NewServer(opts)
	require.NoError(t, err)
	go ns.Start()
	defer ns.Shutdown()
	require.True(t, ns.ReadyForConnections(5*time.Second))

	bus, err := events.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan events.TradeExecuted, 1)
	_, err = bus.SubscribeTradeExecuted(func(ev events.TradeExecuted) {
		received <- ev
	})
	require.NoError(t, err)

	e := NewEngine(100000, bus)
	require.True(t, e.ExecuteTrade("TRD_EV", "BTC", "BUY", 0.1, 50000).Success)

	select {
	case ev := <-received:
		assert.Equal(t, "TRD_EV", ev.TradeID)
		assert.Equal(t, "BTC-USD", ev.Symbol)
		assert.Equal(t, "BUY", ev.Action)
		assert.Equal(t, 5000.0, ev.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("trade event not received")
	}
}
