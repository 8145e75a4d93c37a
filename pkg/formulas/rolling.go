package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RollingVolatility computes the annualized volatility of periodic returns
// over a sliding window. Positions before the window fills are NaN.
func RollingVolatility(returns []float64, window int, periodsPerYear float64) []float64 {
	if window < 2 || len(returns) < window {
		return nil
	}

	// go-talib StdDev uses population deviation; nbDev 1 leaves it unscaled.
	raw := talib.StdDev(returns, window, 1.0)

	out := make([]float64, len(raw))
	scale := math.Sqrt(periodsPerYear)
	for i, v := range raw {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = v * scale
	}
	return out
}

// RollingMean computes the simple moving average of a series. Positions
// before the window fills are NaN.
func RollingMean(series []float64, window int) []float64 {
	if window < 1 || len(series) < window {
		return nil
	}

	raw := talib.Sma(series, window)

	out := make([]float64, len(raw))
	for i, v := range raw {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}
