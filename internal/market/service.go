package market

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/indicators"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Service implements the market data service
type Service struct {
	provider Provider
	cache    *QuoteCache
	log      zerolog.Logger
}

// NewService wires the provider chain and cache from configuration.
// redisClient may be nil; quotes then skip the cache.
func NewService(cfg *config.Config, redisClient *redis.Client) *Service {
	chart := NewChartProvider(cfg.Market.ChartBaseURL, cfg.Market.RequestsPerMinute)
	binance := NewBinanceProvider(cfg.Market.BinanceAPIKey, cfg.Market.BinanceSecretKey)

	return &Service{
		provider: NewFallbackProvider(chart, binance),
		cache:    NewQuoteCache(redisClient, cfg.Market.CacheTTLSeconds),
		log:      config.NewMCPLogger("market"),
	}
}

// NewServiceWithProvider builds a service around an explicit provider (tests)
func NewServiceWithProvider(p Provider, cache *QuoteCache) *Service {
	return &Service{
		provider: p,
		cache:    cache,
		log:      config.NewMCPLogger("market"),
	}
}

// GetLivePrice returns the current quote for a symbol, cache first
func (s *Service) GetLivePrice(ctx context.Context, symbol string) (*Quote, error) {
	normalized := NormalizeSymbol(symbol)

	if q, ok := s.cache.Get(ctx, normalized); ok {
		return q, nil
	}

	q, err := s.provider.GetQuote(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, q)
	}
	return q, nil
}

// GetCandles returns OHLCV bars for a supported interval
func (s *Service) GetCandles(ctx context.Context, symbol, interval string) ([]Candle, error) {
	spec, ok := intervalMap[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q (want 1m, 5m, 15m, 1h or 1d)", interval)
	}
	return s.provider.GetCandles(ctx, NormalizeSymbol(symbol), spec.Range, spec.Interval)
}

// volatilityRanges maps lookback days to chart ranges
var volatilityRanges = map[int]string{
	30:  "1mo",
	60:  "3mo",
	90:  "6mo",
	180: "1y",
	365: "2y",
}

// CalculateVolatility computes annualized realized volatility over the
// requested daily lookback
func (s *Service) CalculateVolatility(ctx context.Context, symbol string, periodDays int) (map[string]any, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	rng, ok := volatilityRanges[periodDays]
	if !ok {
		rng = "1y"
	}

	normalized := NormalizeSymbol(symbol)
	candles, err := s.provider.GetCandles(ctx, normalized, rng, "1d")
	if err != nil {
		return nil, err
	}

	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		closes = append(closes, c.Close)
	}
	if len(closes) > periodDays {
		closes = closes[len(closes)-periodDays:]
	}

	vol := indicators.AnnualizedVolatility(closes)
	return map[string]any{
		"symbol":      normalized,
		"period_days": periodDays,
		"volatility":  vol,
		"risk_level":  volatilityRiskLevel(vol),
		"data_points": len(closes),
		"timestamp":   nowUTC(),
	}, nil
}

// volatilityRiskLevel bands annualized volatility: LOW under 15%, MEDIUM
// under 30%, HIGH at or above
func volatilityRiskLevel(vol float64) string {
	switch {
	case vol < 0.15:
		return "LOW"
	case vol < 0.30:
		return "MEDIUM"
	default:
		return "HIGH"
	}
}

// GetMarketOverview reports the reference indices with their trend
func (s *Service) GetMarketOverview(ctx context.Context) map[string]any {
	indices := make([]map[string]any, 0, len(overviewSymbols))
	for _, ref := range overviewSymbols {
		q, err := s.provider.GetQuote(ctx, ref.Symbol)
		if err != nil {
			indices = append(indices, map[string]any{
				"symbol": ref.Symbol,
				"name":   ref.Name,
				"error":  err.Error(),
			})
			continue
		}
		trend := "UP"
		if q.Change24hPct < 0 {
			trend = "DOWN"
		}
		indices = append(indices, map[string]any{
			"symbol":         ref.Symbol,
			"name":           ref.Name,
			"price":          q.Price,
			"change_24h_pct": q.Change24hPct,
			"trend":          trend,
		})
	}
	return map[string]any{
		"timestamp": nowUTC(),
		"indices":   indices,
	}
}

// Register adds the market tools to a serving harness
func (s *Service) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "get_live_price",
		Description: "Get the current price and 24h stats for a symbol",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol": rpc.String("Ticker symbol, e.g. BTCUSDT or AAPL"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol string `json:"symbol"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.GetLivePrice(ctx, args.Symbol)
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_candles",
		Description: "Get OHLCV candles for a symbol at a given interval",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":   rpc.String("Ticker symbol"),
			"interval": rpc.String("Candle interval: 1m, 5m, 15m, 1h or 1d (default 1d)"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol   string `json:"symbol"`
			Interval string `json:"interval"`
		}](req)
		if err != nil {
			return nil, err
		}
		if args.Interval == "" {
			args.Interval = "1d"
		}
		candles, err := s.GetCandles(ctx, args.Symbol, args.Interval)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"symbol":   NormalizeSymbol(args.Symbol),
			"interval": args.Interval,
			"count":    len(candles),
			"candles":  candles,
		}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "calculate_volatility",
		Description: "Calculate annualized realized volatility over a daily lookback",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":      rpc.String("Ticker symbol"),
			"period_days": rpc.Integer("Lookback in days: 30, 60, 90, 180 or 365 (default 30)"),
		}, "symbol"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol     string `json:"symbol"`
			PeriodDays int    `json:"period_days"`
		}](req)
		if err != nil {
			return nil, err
		}
		return s.CalculateVolatility(ctx, args.Symbol, args.PeriodDays)
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_market_overview",
		Description: "Get current prices and trend for the reference market indices",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return s.GetMarketOverview(ctx), nil
	})
}

// NewServer builds the ready-to-run market service harness
func NewServer(cfg *config.Config, redisClient *redis.Client) *rpc.Server {
	srv := rpc.NewServer("market", config.GetServicePort("market"))
	NewService(cfg, redisClient).Register(srv)
	return srv
}
