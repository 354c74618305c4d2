package portfolio

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the analytics tools to a serving harness
func (a *Analytics) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "evaluate_portfolio",
		Description: "Score portfolio health from diversification, cash buffer and concentration",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return a.Evaluate(ctx)
	})

	srv.Tool(&mcp.Tool{
		Name:        "check_overexposure",
		Description: "List positions above the per-position weight threshold",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return a.CheckOverexposure(ctx)
	})

	srv.Tool(&mcp.Tool{
		Name:        "calculate_rebalance_proposal",
		Description: "Propose rebalance trades toward a per-symbol target allocation or an equal-weight invested fraction",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"target_invested":   rpc.Number("Target invested fraction of total value, spread equally (default 0.70)"),
			"target_allocation": {Type: "object", Description: "Per-symbol target weights of total value; overrides target_invested"},
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			TargetInvested   float64            `json:"target_invested"`
			TargetAllocation map[string]float64 `json:"target_allocation"`
		}](req)
		if err != nil {
			return nil, err
		}
		return a.RebalanceProposal(ctx, args.TargetInvested, args.TargetAllocation)
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_allocation_summary",
		Description: "Get the allocation table including the cash row, sorted by weight",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return a.AllocationSummary(ctx)
	})

	srv.Tool(&mcp.Tool{
		Name:        "set_simulation_portfolio",
		Description: "Pin a synthetic portfolio for analysis (testing)",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"cash": rpc.Number("Cash balance"),
			"positions": rpc.Array("Positions", rpc.Object(map[string]*jsonschema.Schema{
				"symbol":        rpc.String("Ticker symbol"),
				"quantity":      rpc.Number("Units held"),
				"avg_price":     rpc.Number("Average entry price"),
				"current_price": rpc.Number("Current price"),
			}, "symbol", "quantity")),
		}, "cash"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Cash      float64    `json:"cash"`
			Positions []Position `json:"positions"`
		}](req)
		if err != nil {
			return nil, err
		}
		a.SetSimulationPortfolio(args.Cash, args.Positions)
		return map[string]any{"success": true}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "clear_simulation_mode",
		Description: "Revert analysis to the live portfolio",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return map[string]any{"success": true, "was_simulated": a.ClearSimulationMode()}, nil
	})
}

// NewAnalyticsServer builds the ready-to-run analytics service harness
func NewAnalyticsServer(caller rpc.Caller) *rpc.Server {
	srv := rpc.NewServer("portfolio-analytics", config.GetServicePort("portfolio-analytics"))
	NewAnalytics(caller).Register(srv)
	return srv
}
