// Package indicators wraps the cinar/indicator kernels behind slice-based
// helpers shared by the technical, volatility and simulation services.
//
// All series are right-aligned: the last output value corresponds to the
// last input price. Outputs are shorter than inputs by the warmup period.
package indicators

import (
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
)

func channelOf(values []float64) chan float64 {
	ch := make(chan float64, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}

func collect(ch <-chan float64) []float64 {
	var out []float64
	for v := range ch {
		out = append(out, v)
	}
	return out
}

// SMA returns the simple moving average series
func SMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return nil
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return collect(sma.Compute(channelOf(prices)))
}

// EMA returns the exponential moving average series
func EMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return nil
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	return collect(ema.Compute(channelOf(prices)))
}

// RSI returns the relative strength index series
func RSI(prices []float64, period int) []float64 {
	if period < 1 || len(prices) <= period {
		return nil
	}
	rsi := momentum.NewRsiWithPeriod[float64](period)
	return collect(rsi.Compute(channelOf(prices)))
}

// MACD returns the MACD and signal line series
func MACD(prices []float64, fast, slow, signal int) (macd, sig []float64) {
	if fast < 1 || slow <= fast || signal < 1 || len(prices) < slow+signal {
		return nil, nil
	}
	ind := trend.NewMacdWithPeriod[float64](fast, slow, signal)
	macdChan, sigChan := ind.Compute(channelOf(prices))

	for {
		m, mok := <-macdChan
		s, sok := <-sigChan
		if !mok || !sok {
			break
		}
		macd = append(macd, m)
		sig = append(sig, s)
	}
	return macd, sig
}

// BollingerBands returns the lower, middle and upper band series.
// cinar's implementation uses the standard 2 standard deviation width.
func BollingerBands(prices []float64, period int) (lower, middle, upper []float64) {
	if period < 2 || len(prices) < period {
		return nil, nil, nil
	}
	bb := volatility.NewBollingerBandsWithPeriod[float64](period)
	lowerChan, middleChan, upperChan := bb.Compute(channelOf(prices))

	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lower = append(lower, l)
		middle = append(middle, m)
		upper = append(upper, u)
	}
	return lower, middle, upper
}

// Last returns the final value of a series, or fallback when empty
func Last(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}
