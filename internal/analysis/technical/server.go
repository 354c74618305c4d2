package technical

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

type symbolArgs struct {
	Symbol string `json:"symbol"`
}

// Register adds the technical analysis tools to a serving harness
func (s *Service) Register(srv *rpc.Server) {
	signalHandler := func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[symbolArgs](req)
		if err != nil {
			return nil, err
		}
		return s.GenerateSignal(ctx, args.Symbol)
	}

	signalSchema := rpc.Object(map[string]*jsonschema.Schema{
		"symbol": rpc.String("Ticker symbol, e.g. BTCUSDT"),
	}, "symbol")

	srv.Tool(&mcp.Tool{
		Name:        "generate_signal",
		Description: "Generate a BUY/SELL/HOLD signal from technical indicator voting",
		InputSchema: signalSchema,
	}, signalHandler)

	// analyze_trend is a legacy alias for generate_signal
	srv.Tool(&mcp.Tool{
		Name:        "analyze_trend",
		Description: "Analyze price trend and generate a trade signal",
		InputSchema: signalSchema,
	}, signalHandler)

	srv.Tool(&mcp.Tool{
		Name:        "calculate_rsi",
		Description: "Calculate the Relative Strength Index for a symbol",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol": rpc.String("Ticker symbol"),
			"period": rpc.Integer("RSI period (default 14)"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
			Period int    `json:"period"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.CalculateRSI(ctx, args.Symbol, args.Period)
	})

	srv.Tool(&mcp.Tool{
		Name:        "calculate_macd",
		Description: "Calculate MACD, signal line and histogram for a symbol",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":        rpc.String("Ticker symbol"),
			"fast_period":   rpc.Integer("Fast EMA period (default 12)"),
			"slow_period":   rpc.Integer("Slow EMA period (default 26)"),
			"signal_period": rpc.Integer("Signal EMA period (default 9)"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol       string `json:"symbol"`
			FastPeriod   int    `json:"fast_period"`
			SlowPeriod   int    `json:"slow_period"`
			SignalPeriod int    `json:"signal_period"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.CalculateMACD(ctx, args.Symbol, args.FastPeriod, args.SlowPeriod, args.SignalPeriod)
	})

	srv.Tool(&mcp.Tool{
		Name:        "calculate_bollinger_bands",
		Description: "Calculate Bollinger bands and price position for a symbol",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol": rpc.String("Ticker symbol"),
			"period": rpc.Integer("Band period (default 20)"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
			Period int    `json:"period"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.CalculateBollingerBands(ctx, args.Symbol, args.Period)
	})

	srHandler := func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol   string `json:"symbol"`
			Lookback int    `json:"lookback"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.CalculateSupportResistance(ctx, args.Symbol, args.Lookback)
	}

	srSchema := rpc.Object(map[string]*jsonschema.Schema{
		"symbol":   rpc.String("Ticker symbol"),
		"lookback": rpc.Integer("Lookback window in days (default 20)"),
	}, "symbol")

	srv.Tool(&mcp.Tool{
		Name:        "calculate_support_resistance",
		Description: "Derive support and resistance levels from recent prices",
		InputSchema: srSchema,
	}, srHandler)

	// get_support_resistance is a legacy alias
	srv.Tool(&mcp.Tool{
		Name:        "get_support_resistance",
		Description: "Get support and resistance levels for a symbol",
		InputSchema: srSchema,
	}, srHandler)
}

// NewServer builds the ready-to-run technical service harness
func NewServer(prices PriceSource) *rpc.Server {
	srv := rpc.NewServer("technical", config.GetServicePort("technical"))
	NewService(prices).Register(srv)
	return srv
}
