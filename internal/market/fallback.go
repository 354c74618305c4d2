package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/metrics"
)

// FallbackProvider tries providers in order, each behind its own circuit
// breaker. A tripped breaker skips straight to the next provider.
type FallbackProvider struct {
	providers []Provider
	breakers  map[string]*gobreaker.CircuitBreaker
	log       zerolog.Logger
}

// NewFallbackProvider chains the given providers
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	log := config.NewLogger("market_fallback")
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(providers))
	for _, p := range providers {
		name := p.Name()
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("provider", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Provider circuit breaker state changed")
			},
		})
	}
	return &FallbackProvider{providers: providers, breakers: breakers, log: log}
}

// Name implements Provider
func (f *FallbackProvider) Name() string { return "fallback" }

func (f *FallbackProvider) execute(p Provider, fn func() (any, error)) (any, error) {
	start := time.Now()
	out, err := f.breakers[p.Name()].Execute(fn)
	metrics.RecordProviderRequest(p.Name(), float64(time.Since(start).Milliseconds()), err)
	return out, err
}

// GetQuote implements Provider
func (f *FallbackProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var errs []string
	for _, p := range f.providers {
		out, err := f.execute(p, func() (any, error) {
			return p.GetQuote(ctx, symbol)
		})
		if err == nil {
			return out.(*Quote), nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", p.Name(), err))
		f.log.Debug().Str("provider", p.Name()).Err(err).Str("symbol", symbol).Msg("Provider quote failed")
	}
	return nil, fmt.Errorf("all providers failed for %s: %s", symbol, strings.Join(errs, "; "))
}

// GetCandles implements Provider
func (f *FallbackProvider) GetCandles(ctx context.Context, symbol, rng, interval string) ([]Candle, error) {
	var errs []string
	for _, p := range f.providers {
		out, err := f.execute(p, func() (any, error) {
			return p.GetCandles(ctx, symbol, rng, interval)
		})
		if err == nil {
			return out.([]Candle), nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", p.Name(), err))
		f.log.Debug().Str("provider", p.Name()).Err(err).Str("symbol", symbol).Msg("Provider candles failed")
	}
	return nil, fmt.Errorf("all providers failed for %s: %s", symbol, strings.Join(errs, "; "))
}
