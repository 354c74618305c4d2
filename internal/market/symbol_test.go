package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"known ticker", "BTC", "BTC-USD"},
		{"known ticker lowercase", "eth", "ETH-USD"},
		{"usdt pair", "BTCUSDT", "BTC-USD"},
		{"usdt pair unknown base", "PEPEUSDT", "PEPE"},
		{"usdt pair equity base", "TSLAUSDT", "TSLA"},
		{"already normalized", "SOL-USD", "SOL-USD"},
		{"equity passthrough", "AAPL", "AAPL"},
		{"index passthrough", "^GSPC", "^GSPC"},
		{"whitespace trimmed", "  doge  ", "DOGE-USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSymbol(tt.input))
		})
	}
}

func TestNormalizeSymbolIdempotent(t *testing.T) {
	for _, input := range []string{"BTC", "BTCUSDT", "ETH-USD", "AAPL", "^DJI", "FILUSDT"} {
		once := NormalizeSymbol(input)
		assert.Equal(t, once, NormalizeSymbol(once), "normalization must be idempotent for %s", input)
	}
}

func TestCryptoMapComplete(t *testing.T) {
	assert.Len(t, cryptoMap, 20)
	for ticker, mapped := range cryptoMap {
		assert.Equal(t, ticker+"-USD", mapped)
	}
}

func TestBinancePair(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BTC-USD", "BTCUSDT"},
		{"ETHUSDT", "ETHUSDT"},
		{"^GSPC", ""},
		{"AAPL", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, BinancePair(tt.input), "input %s", tt.input)
	}
}
