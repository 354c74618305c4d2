package macro

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the macro analysis tools to a serving harness
func (s *Service) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "analyze_macro",
		Description: "Assess the macro backdrop: regime, risk environment and stance",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return s.Analyze(), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_macro_indicators",
		Description: "Get the raw macro indicators with interpretation",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return s.GetIndicators(), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_sector_outlook",
		Description: "Get the macro outlook for a crypto sector",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"sector": rpc.String("Sector name: DeFi, Layer1, NFT or Gaming"),
		}, "sector"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Sector string `json:"sector"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.SectorOutlook(args.Sector), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "assess_portfolio_timing",
		Description: "Rate the current moment for portfolio rebalancing",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return s.AssessTiming(), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_correlation_analysis",
		Description: "Get crypto-to-equities correlation and diversification benefit",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return s.CorrelationAnalysis(), nil
	})
}

// NewServer builds the ready-to-run macro service harness
func NewServer() *rpc.Server {
	srv := rpc.NewServer("macro", config.GetServicePort("macro"))
	NewService().Register(srv)
	return srv
}
