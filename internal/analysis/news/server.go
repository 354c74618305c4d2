package news

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/llm"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the sentiment tools to a serving harness
func (s *Service) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "analyze_sentiment",
		Description: "Score market sentiment for a symbol from supplied headlines",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":    rpc.String("Ticker symbol"),
			"headlines": rpc.StringArray("Headlines to score"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol    string   `json:"symbol"`
			Headlines []string `json:"headlines"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.AnalyzeSentiment(ctx, args.Symbol, args.Headlines), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_market_sentiment",
		Description: "Score the current headline feed sentiment for a symbol",
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
		return s.GetMarketSentiment(ctx, args.Symbol), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "analyze_custom_headline",
		Description: "Score the sentiment of a single headline",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"headline": rpc.String("Headline text"),
		}, "headline"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Headline string `json:"headline"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.AnalyzeCustomHeadline(ctx, args.Headline), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "set_simulation_sentiment",
		Description: "Pin the sentiment reported for a symbol (testing)",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":     rpc.String("Ticker symbol"),
			"sentiment":  rpc.String("POSITIVE, NEGATIVE or NEUTRAL"),
			"score":      rpc.Number("Pinned score, 0 to 1"),
			"confidence": rpc.Number("Pinned confidence, 0 to 1"),
		}, "symbol", "sentiment"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol     string  `json:"symbol"`
			Sentiment  string  `json:"sentiment"`
			Score      float64 `json:"score"`
			Confidence float64 `json:"confidence"`
		}](req)
		if err != nil {
			return nil, err
		}
		if args.Confidence == 0 {
			args.Confidence = 0.9
		}
		s.SetSimulationSentiment(args.Symbol, args.Sentiment, args.Score, args.Confidence)
		return map[string]any{"success": true}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "clear_simulation_mode",
		Description: "Remove all pinned sentiments",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return map[string]any{"success": true, "cleared": s.ClearSimulationMode()}, nil
	})
}

// NewServer builds the ready-to-run news service harness. The LLM client is
// only wired when an API key is configured.
func NewServer(cfg *config.Config) *rpc.Server {
	var completer llm.Completer
	if cfg.LLM.APIKey != "" {
		completer = llm.NewFallbackClient(cfg.LLM)
	}

	srv := rpc.NewServer("news", config.GetServicePort("news"))
	NewService(completer).Register(srv)
	return srv
}
