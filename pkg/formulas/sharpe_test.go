package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharpeRatio(t *testing.T) {
	sharpe := SharpeRatio(0.12, 0.20, 0.02)

	require.NotNil(t, sharpe)
	assert.InDelta(t, 0.5, *sharpe, 1e-12)
}

func TestSharpeRatio_ZeroVolatilityUndefined(t *testing.T) {
	assert.Nil(t, SharpeRatio(0.12, 0.0, 0.02))
}

func TestSortinoRatio(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.03, -0.02, 0.01}

	sortino := SortinoRatio(returns, 0.0, 252)

	require.NotNil(t, sortino)
	// Mean return is positive and there is downside, so the ratio is positive.
	assert.Greater(t, *sortino, 0.0)
}

func TestSortinoRatio_NoDownside(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03}
	assert.Nil(t, SortinoRatio(returns, 0.0, 252))
}

func TestSortinoRatio_TooFewObservations(t *testing.T) {
	assert.Nil(t, SortinoRatio([]float64{0.01}, 0.0, 252))
}
