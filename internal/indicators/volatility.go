package indicators

import "math"

// TradingDaysPerYear is the annualization base for daily series
const TradingDaysPerYear = 252

// Mean returns the arithmetic mean
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}

// LogReturns returns the log return series of consecutive closes.
// Non-positive closes are skipped.
func LogReturns(closes []float64) []float64 {
	var returns []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	return returns
}

// AnnualizedVolatility computes realized volatility from daily closes:
// population standard deviation of log returns scaled by sqrt(252).
// Returns 0 when fewer than two usable closes exist.
func AnnualizedVolatility(closes []float64) float64 {
	returns := LogReturns(closes)
	if len(returns) == 0 {
		return 0
	}
	return StdDev(returns) * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown returns the largest peak-to-trough decline of an equity
// series as a positive fraction.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// SharpeRatio computes the annualized Sharpe ratio of daily returns with a
// zero risk-free rate.
func SharpeRatio(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	sd := StdDev(dailyReturns)
	if sd == 0 {
		return 0
	}
	return Mean(dailyReturns) / sd * math.Sqrt(TradingDaysPerYear)
}
