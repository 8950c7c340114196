package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

// DailyReturns returns p[i]/p[i-1] - 1 for i >= 1. The first observation has no return.
func DailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = prices[i]/prices[i-1] - 1
	}
	return returns
}

// SimpleMovingAverage computes the trailing mean over window observations.
// Positions with fewer than window prices are left invalid.
func SimpleMovingAverage(prices []decimal.Decimal, window int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(prices))
	if window <= 0 {
		return out
	}
	n := decimal.NewFromInt(int64(window))
	sum := decimal.Zero
	for i, p := range prices {
		sum = sum.Add(p)
		if i >= window {
			sum = sum.Sub(prices[i-window])
		}
		if i >= window-1 {
			out[i] = decimal.NullDecimal{Decimal: sum.Div(n), Valid: true}
		}
	}
	return out
}

// Mean returns the arithmetic mean, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev returns the N-1 standard deviation, or 0 with fewer than two values
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// AnnualizedSharpe returns mean/stddev scaled by sqrt(tradingDays).
// A zero standard deviation yields 0 instead of a division error.
func AnnualizedSharpe(returns []float64, tradingDays float64) float64 {
	std := SampleStdDev(returns)
	if std == 0 {
		return 0
	}
	sharpe := Mean(returns) / std * math.Sqrt(tradingDays)
	if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) {
		return 0
	}
	return sharpe
}
