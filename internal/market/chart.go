package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// ChartProvider fetches quotes and candles from a Yahoo-compatible chart API
type ChartProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewChartProvider creates a chart provider with a per-minute rate limit
func NewChartProvider(baseURL string, requestsPerMinute int) *ChartProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 120
	}
	return &ChartProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute),
	}
}

// Name implements Provider
func (p *ChartProvider) Name() string { return "chart" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  float64 `json:"regularMarketVolume"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *ChartProvider) fetch(ctx context.Context, symbol, rng, interval string) (*chartResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		p.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart request: %w", err)
	}
	req.Header.Set("User-Agent", "autofinance/"+"1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart request returned status %d", resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %s", payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart API returned no result for %s", symbol)
	}
	return &payload, nil
}

// GetQuote implements Provider
func (p *ChartProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	payload, err := p.fetch(ctx, symbol, "1d", "1m")
	if err != nil {
		return nil, err
	}

	meta := payload.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("chart API returned no price for %s", symbol)
	}

	change := meta.RegularMarketPrice - meta.ChartPreviousClose
	changePct := 0.0
	if meta.ChartPreviousClose != 0 {
		changePct = change / meta.ChartPreviousClose * 100
	}

	return &Quote{
		Symbol:       symbol,
		Price:        meta.RegularMarketPrice,
		Timestamp:    nowUTC(),
		Volume24h:    meta.RegularMarketVolume,
		Change24h:    change,
		Change24hPct: changePct,
		High24h:      meta.RegularMarketDayHigh,
		Low24h:       meta.RegularMarketDayLow,
		Source:       p.Name(),
	}, nil
}

// GetCandles implements Provider
func (p *ChartProvider) GetCandles(ctx context.Context, symbol, rng, interval string) ([]Candle, error) {
	payload, err := p.fetch(ctx, symbol, rng, interval)
	if err != nil {
		return nil, err
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart API returned no bars for %s", symbol)
	}
	bars := result.Indicators.Quote[0]

	deref := func(vals []*float64, i int) (float64, bool) {
		if i >= len(vals) || vals[i] == nil {
			return 0, false
		}
		return *vals[i], true
	}

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Bars with missing closes are holes in the chart feed
		closeVal, ok := deref(bars.Close, i)
		if !ok {
			continue
		}
		openVal, _ := deref(bars.Open, i)
		highVal, _ := deref(bars.High, i)
		lowVal, _ := deref(bars.Low, i)
		volVal, _ := deref(bars.Volume, i)

		candles = append(candles, Candle{
			Timestamp: time.Unix(ts, 0).UTC().Format(time.RFC3339),
			Open:      openVal,
			High:      highVal,
			Low:       lowVal,
			Close:     closeVal,
			Volume:    volVal,
		})
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("chart API returned no usable bars for %s", symbol)
	}
	return candles, nil
}
