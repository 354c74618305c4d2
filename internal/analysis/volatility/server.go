package volatility

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the volatility tools to a serving harness
func (s *Service) Register(srv *rpc.Server) {
	symbolOnly := rpc.Object(map[string]*jsonschema.Schema{
		"symbol": rpc.String("Ticker symbol"),
	}, "symbol")

	srv.Tool(&mcp.Tool{
		Name:        "calculate_historical_volatility",
		Description: "Calculate annualized realized volatility over 30/60/90-day windows",
		InputSchema: symbolOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.HistoricalVolatility(ctx, args.Symbol)
	})

	srv.Tool(&mcp.Tool{
		Name:        "detect_volatility_regime",
		Description: "Classify current volatility against a year of rolling windows",
		InputSchema: symbolOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.DetectRegime(ctx, args.Symbol)
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_volatility_score",
		Description: "Map current volatility into a LOW/MEDIUM/HIGH risk band with score",
		InputSchema: symbolOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.VolatilityScore(ctx, args.Symbol)
	})

	srv.Tool(&mcp.Tool{
		Name:        "compare_volatility",
		Description: "Rank symbols by current volatility, highest first",
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
		return s.Compare(ctx, args.Symbols), nil
	})

	// calculate_volatility is a legacy alias taking a single window
	srv.Tool(&mcp.Tool{
		Name:        "calculate_volatility",
		Description: "Calculate annualized volatility over a single lookback window",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol": rpc.String("Ticker symbol"),
			"period": rpc.Integer("Lookback in days: 30, 60, 90, 180 or 365 (default 30)"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
			Period int    `json:"period"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.CalculateVolatility(ctx, args.Symbol, args.Period)
	})
}

// NewServer builds the ready-to-run volatility service harness
func NewServer(prices PriceSource) *rpc.Server {
	srv := rpc.NewServer("volatility", config.GetServicePort("volatility"))
	NewService(prices).Register(srv)
	return srv
}
