package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
)

// BinanceProvider serves crypto quotes and candles from Binance. Only
// symbols with a USDT pair are supported; equities and indices fall through
// to the chart provider.
type BinanceProvider struct {
	client *binance.Client
}

// NewBinanceProvider creates a Binance-backed provider. Public market data
// endpoints work without credentials.
func NewBinanceProvider(apiKey, secretKey string) *BinanceProvider {
	return &BinanceProvider{client: binance.NewClient(apiKey, secretKey)}
}

// Name implements Provider
func (p *BinanceProvider) Name() string { return "binance" }

// GetQuote implements Provider
func (p *BinanceProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	pair := BinancePair(symbol)
	if pair == "" {
		return nil, fmt.Errorf("binance cannot serve symbol %s", symbol)
	}

	stats, err := p.client.NewListPriceChangeStatsService().Symbol(pair).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance ticker stats failed for %s: %w", pair, err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("binance returned no stats for %s", pair)
	}
	s := stats[0]

	parse := func(v string) float64 {
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}

	return &Quote{
		Symbol:       symbol,
		Price:        parse(s.LastPrice),
		Timestamp:    nowUTC(),
		Volume24h:    parse(s.QuoteVolume),
		Change24h:    parse(s.PriceChange),
		Change24hPct: parse(s.PriceChangePercent),
		High24h:      parse(s.HighPrice),
		Low24h:       parse(s.LowPrice),
		Source:       p.Name(),
	}, nil
}

// rangeLimits maps chart ranges to kline counts
var rangeLimits = map[string]int{
	"1d":  500,
	"5d":  500,
	"1mo": 720,
	"3mo": 90,
	"6mo": 180,
	"1y":  365,
	"2y":  730,
}

// GetCandles implements Provider
func (p *BinanceProvider) GetCandles(ctx context.Context, symbol, rng, interval string) ([]Candle, error) {
	pair := BinancePair(symbol)
	if pair == "" {
		return nil, fmt.Errorf("binance cannot serve symbol %s", symbol)
	}

	limit, ok := rangeLimits[rng]
	if !ok {
		limit = 500
	}

	klines, err := p.client.NewKlinesService().
		Symbol(pair).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines failed for %s: %w", pair, err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("binance returned no klines for %s", pair)
	}

	parse := func(v string) float64 {
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}

	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, Candle{
			Timestamp: time.UnixMilli(k.OpenTime).UTC().Format(time.RFC3339),
			Open:      parse(k.Open),
			High:      parse(k.High),
			Low:       parse(k.Low),
			Close:     parse(k.Close),
			Volume:    parse(k.Volume),
		})
	}
	return candles, nil
}
