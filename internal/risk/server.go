package risk

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the risk tools to a serving harness
func (v *Validator) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "validate_trade",
		Description: "Validate a trade proposal against the risk policy",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"trade_id":   rpc.String("Caller-assigned trade identifier"),
			"symbol":     rpc.String("Ticker symbol"),
			"action":     rpc.String("BUY or SELL"),
			"quantity":   rpc.Number("Units to trade"),
			"price":      rpc.Number("Execution price"),
			"value":      rpc.Number("Trade value in USD; quantity*price when omitted"),
			"confidence": rpc.Number("Signal confidence, 0 to 1"),
			"volatility": rpc.Number("Annualized volatility of the asset"),
			"portfolio": rpc.Object(map[string]*jsonschema.Schema{
				"total_value":    rpc.Number("Portfolio total value"),
				"cash":           rpc.Number("Available cash"),
				"invested_value": rpc.Number("Value currently invested"),
			}),
		}, "symbol", "action", "confidence"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			TradeProposal
			Portfolio PortfolioContext `json:"portfolio"`
		}](req)
		if err != nil {
			return nil, err
		}
		return v.ValidateTrade(args.TradeProposal, args.Portfolio), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "validate_rebalance",
		Description: "Validate a rebalance proposal against turnover and size limits",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"changes": rpc.Array("Proposed changes", rpc.Object(map[string]*jsonschema.Schema{
				"symbol": rpc.String("Ticker symbol"),
				"action": rpc.String("BUY or SELL"),
				"value":  rpc.Number("Change value in USD, signed"),
			}, "symbol", "value")),
			"total_value":  rpc.Number("Portfolio total value"),
			"max_turnover": rpc.Number("Turnover cap as a fraction; policy default when omitted"),
		}, "changes", "total_value"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Changes     []RebalanceChange `json:"changes"`
			TotalValue  float64           `json:"total_value"`
			MaxTurnover float64           `json:"max_turnover"`
		}](req)
		if err != nil {
			return nil, err
		}
		return v.ValidateRebalance(args.Changes, args.TotalValue, args.MaxTurnover), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_risk_policy",
		Description: "Get the active risk policy limits",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return v.Policy(), nil
	})
}

// NewServer builds the ready-to-run risk service harness
func NewServer(cfg *config.Config) *rpc.Server {
	srv := rpc.NewServer("risk", config.GetServicePort("risk"))
	NewValidator(cfg.Risk).Register(srv)
	return srv
}
