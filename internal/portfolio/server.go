package portfolio

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/events"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the execution tools to a serving harness
func (e *Engine) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "execute_trade",
		Description: "Execute a risk-approved BUY or SELL against the portfolio ledger",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"trade_id":        rpc.String("Caller-assigned trade identifier"),
			"symbol":          rpc.String("Ticker symbol"),
			"action":          rpc.String("BUY or SELL"),
			"quantity":        rpc.Number("Units to trade"),
			"price":           rpc.Number("Execution price"),
			"approved":        rpc.Boolean("Risk approval flag; false refuses without touching the ledger"),
			"risk_validation": {Type: "object", Description: "Risk verdict the approval came from"},
		}, "trade_id", "symbol", "action", "quantity", "price", "approved"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			TradeID        string         `json:"trade_id"`
			Symbol         string         `json:"symbol"`
			Action         string         `json:"action"`
			Quantity       float64        `json:"quantity"`
			Price          float64        `json:"price"`
			Approved       bool           `json:"approved"`
			RiskValidation map[string]any `json:"risk_validation"`
		}](req)
		if err != nil {
			return nil, err
		}
		if !args.Approved {
			return map[string]any{
				"success":  false,
				"trade_id": args.TradeID,
				"symbol":   args.Symbol,
				"reason":   "Trade not approved by risk server",
			}, nil
		}
		return e.ExecuteTrade(args.TradeID, args.Symbol, args.Action, args.Quantity, args.Price), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "apply_rebalance",
		Description: "Execute a risk-approved sequence of rebalance trades; failed legs are skipped",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"rebalance_id": rpc.String("Rebalance identifier"),
			"changes": rpc.Array("Trades to execute in order", rpc.Object(map[string]*jsonschema.Schema{
				"symbol":   rpc.String("Ticker symbol"),
				"action":   rpc.String("BUY or SELL"),
				"quantity": rpc.Number("Units to trade"),
				"price":    rpc.Number("Execution price"),
			}, "symbol", "action", "quantity", "price")),
			"approved":        rpc.Boolean("Risk approval flag; false refuses without touching the ledger"),
			"risk_validation": {Type: "object", Description: "Risk verdict the approval came from"},
		}, "rebalance_id", "changes", "approved"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			RebalanceID    string            `json:"rebalance_id"`
			Changes        []RebalanceChange `json:"changes"`
			Approved       bool              `json:"approved"`
			RiskValidation map[string]any    `json:"risk_validation"`
		}](req)
		if err != nil {
			return nil, err
		}
		if !args.Approved {
			return map[string]any{
				"success":      false,
				"rebalance_id": args.RebalanceID,
				"reason":       "Rebalance not approved by risk server",
			}, nil
		}
		return e.ApplyRebalance(args.RebalanceID, args.Changes), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "update_position_prices",
		Description: "Refresh current prices on open positions",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"prices": {
				Type:        "object",
				Description: "Map of symbol to current price",
			},
		}, "prices"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Prices map[string]float64 `json:"prices"`
		}](req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"updated": e.UpdatePositionPrices(args.Prices)}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_portfolio_state",
		Description: "Get cash, positions and portfolio totals",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return e.State(), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_transaction_history",
		Description: "Get the most recent transactions, oldest first",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"limit": rpc.Integer("Maximum records to return (default 50)"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Limit int `json:"limit"`
		}](req)
		if err != nil {
			return nil, err
		}
		if args.Limit <= 0 {
			args.Limit = 50
		}
		records := e.Transactions(args.Limit)
		return map[string]any{"count": len(records), "transactions": records}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "reset_portfolio",
		Description: "Reset the ledger to its initial cash balance",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"initial_cash": rpc.Number("Starting cash (default 100000)"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			InitialCash float64 `json:"initial_cash"`
		}](req)
		if err != nil {
			return nil, err
		}
		e.Reset(args.InitialCash)
		return map[string]any{"success": true, "state": e.State()}, nil
	})
}

// NewServer builds the ready-to-run execution service harness
func NewServer(cfg *config.Config, bus *events.Bus) *rpc.Server {
	srv := rpc.NewServer("execution", config.GetServicePort("execution"))
	NewEngine(cfg.Portfolio.InitialCash, bus).Register(srv)
	return srv
}
