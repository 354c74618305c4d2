package fundamental

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the fundamental analysis tools to a serving harness
func (s *Service) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "analyze_fundamentals",
		Description: "Score an asset on valuation, quality and growth fundamentals",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol": rpc.String("Ticker symbol, e.g. BTCUSDT"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.Analyze(args.Symbol), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "compare_fundamentals",
		Description: "Rank multiple assets by overall fundamental score",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbols": rpc.StringArray("Ticker symbols to compare"),
		}, "symbols"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbols []string `json:"symbols"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.Compare(args.Symbols), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_investment_thesis",
		Description: "Build an investment thesis with strengths and weaknesses for an asset",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol": rpc.String("Ticker symbol"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.InvestmentThesis(args.Symbol), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "set_simulation_fundamentals",
		Description: "Override the fundamental metrics for a symbol (testing)",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":         rpc.String("Ticker symbol"),
			"market_cap":     rpc.Number("Simulated market cap in USD"),
			"adoption_score": rpc.Number("Simulated adoption score, 0 to 1"),
			"network_growth": rpc.Number("Simulated network growth rate"),
			"category":       rpc.String("Asset category label"),
		}, "symbol", "market_cap", "adoption_score", "network_growth"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol        string  `json:"symbol"`
			MarketCap     float64 `json:"market_cap"`
			AdoptionScore float64 `json:"adoption_score"`
			NetworkGrowth float64 `json:"network_growth"`
			Category      string  `json:"category"`
		}](req)
		if err != nil {
			return nil, err
		}
		s.SetSimulationMetrics(args.Symbol, Metrics{
			MarketCap:     args.MarketCap,
			AdoptionScore: args.AdoptionScore,
			NetworkGrowth: args.NetworkGrowth,
			Category:      args.Category,
		})
		return map[string]any{"success": true, "symbol": baseTicker(args.Symbol)}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "clear_simulation_mode",
		Description: "Remove all simulated fundamental overrides",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return map[string]any{"success": true, "cleared": s.ClearSimulationMode()}, nil
	})
}

// NewServer builds the ready-to-run fundamental service harness
func NewServer() *rpc.Server {
	srv := rpc.NewServer("fundamental", config.GetServicePort("fundamental"))
	NewService().Register(srv)
	return srv
}
