package simulation

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the simulation tools to a serving harness
func (s *Service) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "simulate_trade",
		Description: "Project a proposed trade through bull/base/bear scenarios",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":          rpc.String("Ticker symbol, e.g. BTC-USD"),
			"action":          rpc.String("BUY or SELL"),
			"quantity":        rpc.Number("Units to trade"),
			"entry_price":     rpc.Number("Assumed entry price"),
			"portfolio_value": rpc.Number("Total portfolio value for sizing checks (optional)"),
		}, "symbol", "action", "quantity", "entry_price"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol         string  `json:"symbol"`
			Action         string  `json:"action"`
			Quantity       float64 `json:"quantity"`
			EntryPrice     float64 `json:"entry_price"`
			PortfolioValue float64 `json:"portfolio_value"`
		}](req)
		if err != nil {
			return nil, err
		}
		res, err := s.SimulateTrade(args.Symbol, args.Action, args.Quantity, args.EntryPrice, args.PortfolioValue)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return res, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "simulate_portfolio_rebalance",
		Description: "Project the trades and cost of moving to a target allocation",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"current_positions": {Type: "object", Description: "Map of symbol to current position value"},
			"target_allocation": {Type: "object", Description: "Map of symbol to target weight (fractions)"},
		}, "current_positions", "target_allocation"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			CurrentPositions map[string]float64 `json:"current_positions"`
			TargetAllocation map[string]float64 `json:"target_allocation"`
		}](req)
		if err != nil {
			return nil, err
		}
		res, err := s.SimulateRebalance(args.CurrentPositions, args.TargetAllocation)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return res, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "simulate_strategy",
		Description: "Back-test a trading strategy over historical closes",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"strategy":        rpc.String("Strategy: buy_and_hold, momentum or mean_reversion"),
			"symbol":          rpc.String("Ticker symbol, e.g. BTC-USD"),
			"initial_capital": rpc.Number("Starting capital (default 10000)"),
			"timeframe_days":  rpc.Integer("History window in days (default 365)"),
		}, "strategy", "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Strategy       string  `json:"strategy"`
			Symbol         string  `json:"symbol"`
			InitialCapital float64 `json:"initial_capital"`
			TimeframeDays  int     `json:"timeframe_days"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.SimulateStrategy(ctx, args.Strategy, args.Symbol, args.InitialCapital, args.TimeframeDays)
	})

	srv.Tool(&mcp.Tool{
		Name:        "calculate_position_size",
		Description: "Size a long position from account risk and stop distance",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"account_value": rpc.Number("Total account value"),
			"risk_fraction": rpc.Number("Fraction of account risked per trade (default 0.02, max 0.10)"),
			"entry_price":   rpc.Number("Planned entry price"),
			"stop_loss":     rpc.Number("Stop loss price, below entry"),
		}, "account_value", "entry_price", "stop_loss"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			AccountValue float64 `json:"account_value"`
			RiskFraction float64 `json:"risk_fraction"`
			EntryPrice   float64 `json:"entry_price"`
			StopLoss     float64 `json:"stop_loss"`
		}](req)
		if err != nil {
			return nil, err
		}
		res, err := s.PositionSize(args.AccountValue, args.RiskFraction, args.EntryPrice, args.StopLoss)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return res, nil
	})
}

// NewServer builds the ready-to-run simulation service harness
func NewServer(prices PriceSource) *rpc.Server {
	srv := rpc.NewServer("simulation", config.GetServicePort("simulation"))
	NewService(prices).Register(srv)
	return srv
}
