package market

import "strings"

// cryptoMap maps common crypto tickers to their chart provider symbols
var cryptoMap = map[string]string{
	"BTC":   "BTC-USD",
	"ETH":   "ETH-USD",
	"SOL":   "SOL-USD",
	"BNB":   "BNB-USD",
	"XRP":   "XRP-USD",
	"DOGE":  "DOGE-USD",
	"ADA":   "ADA-USD",
	"AVAX":  "AVAX-USD",
	"DOT":   "DOT-USD",
	"MATIC": "MATIC-USD",
	"LINK":  "LINK-USD",
	"UNI":   "UNI-USD",
	"LTC":   "LTC-USD",
	"BCH":   "BCH-USD",
	"ALGO":  "ALGO-USD",
	"XLM":   "XLM-USD",
	"NEAR":  "NEAR-USD",
	"ATOM":  "ATOM-USD",
	"ICP":   "ICP-USD",
	"FIL":   "FIL-USD",
}

// NormalizeSymbol converts caller symbols into provider symbols.
// Resolution order: known ticker, USDT-suffixed ticker, already-normalized
// -USD pair, then pass-through (equities stay as-is). A USDT pair with an
// unknown base is treated as a stock ticker, not a crypto pair.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	if mapped, ok := cryptoMap[s]; ok {
		return mapped
	}
	if strings.HasSuffix(s, "USDT") {
		base := strings.TrimSuffix(s, "USDT")
		if mapped, ok := cryptoMap[base]; ok {
			return mapped
		}
		return base
	}
	if strings.HasSuffix(s, "-USD") {
		return s
	}
	return s
}

// BinancePair converts a normalized -USD symbol back into a Binance USDT
// pair. Returns "" for symbols Binance cannot serve (equity tickers,
// indices).
func BinancePair(normalized string) string {
	s := strings.ToUpper(strings.TrimSpace(normalized))
	if strings.HasPrefix(s, "^") {
		return ""
	}
	if base, ok := strings.CutSuffix(s, "-USD"); ok {
		return base + "USDT"
	}
	if strings.HasSuffix(s, "USDT") {
		return s
	}
	return ""
}
