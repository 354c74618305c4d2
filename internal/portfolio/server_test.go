package portfolio

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofinance/autofinance/internal/rpc"
)

// executionClient spins up the execution tools over HTTP and returns a pool
// wired to them.
func executionClient(t *testing.T, initialCash float64) *rpc.Pool {
	t.Helper()

	srv := rpc.NewServer("execution", 0)
	NewEngine(initialCash, nil).Register(srv)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	pool := rpc.NewPoolWithEndpoints("test-client", map[string]string{"execution": ts.URL + "/mcp"})
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestExecuteTradeRefusesUnapproved(t *testing.T) {
	pool := executionClient(t, 100000)
	ctx := context.Background()

	res, err := pool.Call(ctx, "execution", "execute_trade", map[string]any{
		"trade_id": "TRD_refused",
		"symbol":   "BTC-USD",
		"action":   "BUY",
		"quantity": 0.002,
		"price":    50000.0,
		"approved": false,
		"risk_validation": map[string]any{
			"approved": false, "risk_score": 0.9,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "Trade not approved by risk server", res["reason"])

	// The ledger must be untouched: full cash, no position, no transaction
	state, err := pool.Call(ctx, "execution", "get_portfolio_state", nil)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, state["cash"])
	assert.Equal(t, 0.0, state["transaction_count"])
	assert.Empty(t, state["positions"])
}

func TestExecuteTradeApprovedMutatesLedger(t *testing.T) {
	pool := executionClient(t, 100000)
	ctx := context.Background()

	res, err := pool.Call(ctx, "execution", "execute_trade", map[string]any{
		"trade_id": "TRD_approved",
		"symbol":   "BTC-USD",
		"action":   "BUY",
		"quantity": 0.1,
		"price":    50000.0,
		"approved": true,
		"risk_validation": map[string]any{
			"approved": true, "risk_score": 0.2,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, 95000.0, res["cash_after"])
}

func TestApplyRebalanceRefusesUnapproved(t *testing.T) {
	pool := executionClient(t, 100000)
	ctx := context.Background()

	res, err := pool.Call(ctx, "execution", "apply_rebalance", map[string]any{
		"rebalance_id": "REV_refused",
		"changes": []any{
			map[string]any{"symbol": "BTC-USD", "action": "BUY", "quantity": 0.1, "price": 50000.0},
		},
		"approved": false,
	})
	require.NoError(t, err)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "Rebalance not approved by risk server", res["reason"])

	state, err := pool.Call(ctx, "execution", "get_portfolio_state", nil)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, state["cash"])
	assert.Equal(t, 0.0, state["transaction_count"])
}
