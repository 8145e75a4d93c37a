package formulas

import (
	"math"
)

// SharpeRatio computes the risk-adjusted return
//
//	Sharpe = (Annualized Return - Risk-free Rate) / Annualized Volatility
//
// Returns nil when volatility is zero: the ratio is undefined there and must
// not be silently clamped to a number.
func SharpeRatio(annualizedReturn, annualizedVolatility, riskFreeRate float64) *float64 {
	if annualizedVolatility == 0 {
		return nil
	}

	sharpe := (annualizedReturn - riskFreeRate) / annualizedVolatility
	return &sharpe
}

// SortinoRatio computes the downside-deviation variant of the Sharpe ratio
// from periodic returns. Only returns below the periodic risk-free rate count
// toward risk.
//
// Returns nil with fewer than 2 observations or when there is no downside.
func SortinoRatio(returns []float64, riskFreeRate float64, periodsPerYear float64) *float64 {
	if len(returns) < 2 {
		return nil
	}

	periodicRiskFree := riskFreeRate / periodsPerYear

	var downsideSquaredSum float64
	downsideCount := 0
	for _, ret := range returns {
		if ret < periodicRiskFree {
			deviation := ret - periodicRiskFree
			downsideSquaredSum += deviation * deviation
			downsideCount++
		}
	}

	if downsideCount == 0 {
		return nil
	}

	downsideDeviation := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downsideDeviation == 0 {
		return nil
	}

	sortino := (Mean(returns) - periodicRiskFree) / downsideDeviation
	annualized := sortino * math.Sqrt(periodsPerYear)

	return &annualized
}
