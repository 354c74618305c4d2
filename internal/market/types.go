// Package market provides live quotes, candles and the market data service.
// Quotes flow through a provider chain (chart API first, Binance second),
// each wrapped in a circuit breaker, with a short-TTL redis cache in front.
package market

import "time"

// Quote is a normalized live quote
type Quote struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	Timestamp    string  `json:"timestamp"`
	MarketCap    float64 `json:"market_cap"`
	Volume24h    float64 `json:"volume_24h"`
	Change24h    float64 `json:"change_24h"`
	Change24hPct float64 `json:"change_24h_pct"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
	Source       string  `json:"source"`
}

// Candle is one OHLCV bar
type Candle struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// intervalSpec maps a caller interval to the provider range/interval pair
type intervalSpec struct {
	Range    string
	Interval string
}

// intervalMap defines the supported candle intervals
var intervalMap = map[string]intervalSpec{
	"1m":  {Range: "1d", Interval: "1m"},
	"5m":  {Range: "5d", Interval: "5m"},
	"15m": {Range: "5d", Interval: "15m"},
	"1h":  {Range: "1mo", Interval: "1h"},
	"1d":  {Range: "1y", Interval: "1d"},
}

// overviewSymbols are the reference indices reported by get_market_overview
var overviewSymbols = []struct {
	Symbol string
	Name   string
}{
	{"^GSPC", "S&P 500"},
	{"^DJI", "Dow Jones Industrial Average"},
	{"^IXIC", "NASDAQ Composite"},
	{"BTC-USD", "Bitcoin"},
	{"ETH-USD", "Ethereum"},
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
