package market

import "context"

// Provider serves quotes and candles for normalized symbols
type Provider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetCandles(ctx context.Context, symbol, rng, interval string) ([]Candle, error)
}
