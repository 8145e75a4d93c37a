package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// CalculateReturns converts a price or value series to simple periodic returns
// Returns[i] = (Series[i+1] - Series[i]) / Series[i]
func CalculateReturns(series []float64) []float64 {
	if len(series) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] != 0 {
			returns[i-1] = (series[i] - series[i-1]) / series[i-1]
		}
	}

	return returns
}

// AnnualizedVolatility scales the sample standard deviation of periodic
// returns by the square root of the number of periods per year.
func AnnualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return StdDev(returns) * math.Sqrt(periodsPerYear)
}

// AnnualizedReturn compounds a total return over numValues observations into
// a one-year-equivalent rate:
//
//	(1 + total) ^ (periodsPerYear / numValues) - 1
func AnnualizedReturn(totalReturn, periodsPerYear float64, numValues int) float64 {
	if numValues <= 0 {
		return 0
	}
	return math.Pow(1+totalReturn, periodsPerYear/float64(numValues)) - 1
}
