package supervisor

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the trade pipeline tool to a serving harness
func (t *Trader) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "process_trade_request",
		Description: "Run the full trade pipeline: signals, vote, risk validation and execution",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":   rpc.String("Ticker symbol, e.g. BTC-USD"),
			"quantity": rpc.Number("Units to trade"),
		}, "symbol", "quantity"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol   string  `json:"symbol"`
			Quantity float64 `json:"quantity"`
		}](req)
		if err != nil {
			return nil, err
		}
		res, err := t.ProcessTradeRequest(ctx, args.Symbol, args.Quantity)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return res, nil
	})
}

// Register adds the portfolio review tool to a serving harness
func (v *Investor) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "process_investment_review",
		Description: "Run a portfolio review: health, macro stance, fundamentals and rebalance",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"review_type": rpc.String("Review trigger: scheduled, manual or drift (default scheduled)"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			ReviewType string `json:"review_type"`
		}](req)
		if err != nil {
			return nil, err
		}
		return v.ProcessInvestmentReview(ctx, args.ReviewType)
	})
}

// NewTraderServer builds the ready-to-run trade supervisor harness
func NewTraderServer(caller rpc.Caller) *rpc.Server {
	srv := rpc.NewServer("trader-supervisor", config.GetServicePort("trader-supervisor"))
	NewTrader(caller).Register(srv)
	return srv
}

// NewInvestorServer builds the ready-to-run investment supervisor harness
func NewInvestorServer(caller rpc.Caller) *rpc.Server {
	srv := rpc.NewServer("investor-supervisor", config.GetServicePort("investor-supervisor"))
	NewInvestor(caller).Register(srv)
	return srv
}
