package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateReturns(t *testing.T) {
	prices := []float64{100, 110, 121}

	returns := CalculateReturns(prices)

	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, 0.10, returns[1], 1e-12)
}

func TestCalculateReturns_TooShort(t *testing.T) {
	assert.Empty(t, CalculateReturns([]float64{100}))
	assert.Empty(t, CalculateReturns(nil))
}

func TestMeanAndStdDev(t *testing.T) {
	data := []float64{2, 4, 6, 8}

	assert.InDelta(t, 5.0, Mean(data), 1e-12)
	// Sample variance: ((3)^2+(1)^2+(1)^2+(3)^2)/3 = 20/3
	assert.InDelta(t, 20.0/3.0, Variance(data), 1e-12)
	assert.InDelta(t, math.Sqrt(20.0/3.0), StdDev(data), 1e-12)
}

func TestMeanEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev([]float64{1}))
}

func TestAnnualizedVolatility(t *testing.T) {
	returns := []float64{0.1, 0.2}

	// Sample std of {0.1, 0.2} is sqrt(0.005).
	expected := math.Sqrt(0.005) * math.Sqrt(252)
	assert.InDelta(t, expected, AnnualizedVolatility(returns, 252), 1e-12)
}

func TestAnnualizedVolatility_Flat(t *testing.T) {
	returns := []float64{0.01, 0.01, 0.01}
	assert.Equal(t, 0.0, AnnualizedVolatility(returns, 252))
}

func TestAnnualizedReturn(t *testing.T) {
	// A 10% total return over exactly one year of daily observations stays 10%.
	got := AnnualizedReturn(0.10, 252, 252)
	assert.InDelta(t, 0.10, got, 1e-12)

	// Half a year of observations doubles the compounding.
	got = AnnualizedReturn(0.10, 252, 126)
	assert.InDelta(t, math.Pow(1.10, 2)-1, got, 1e-12)
}
