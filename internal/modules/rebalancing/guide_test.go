package rebalancing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGuideBalancedPortfolioNeedsNoTrades(t *testing.T) {
	holdings := map[string]float64{"AAA": 50, "BBB": 50}
	targets := map[string]float64{"AAA": 0.5, "BBB": 0.5}
	prices := map[string]float64{"AAA": 100, "BBB": 100}

	guide, err := BuildGuide(holdings, targets, prices, defaultCostRate)
	require.NoError(t, err)

	assert.Equal(t, 10000.0, guide.PortfolioValue)
	assert.Equal(t, 0.0, guide.CashNeeded)
	assert.Equal(t, 0, guide.Buys)
	assert.Equal(t, 0, guide.Sells)
	assert.Equal(t, 0.0, guide.EstimatedCost)

	require.Len(t, guide.Lines, 2)
	for _, line := range guide.Lines {
		assert.Equal(t, int64(0), line.SharesToTrade)
		assert.Equal(t, line.CurrentWeight, line.TargetWeight)
	}
}

func TestBuildGuideShiftsDriftedPortfolio(t *testing.T) {
	// 60/40 drifted portfolio back to 50/50: move $1000 from AAA to BBB
	holdings := map[string]float64{"AAA": 60, "BBB": 80}
	targets := map[string]float64{"AAA": 0.5, "BBB": 0.5}
	prices := map[string]float64{"AAA": 100, "BBB": 50}

	guide, err := BuildGuide(holdings, targets, prices, defaultCostRate)
	require.NoError(t, err)

	assert.Equal(t, 10000.0, guide.PortfolioValue)

	require.Len(t, guide.Lines, 2)
	aaa, bbb := guide.Lines[0], guide.Lines[1]
	require.Equal(t, "AAA", aaa.Symbol)
	require.Equal(t, "BBB", bbb.Symbol)

	assert.Equal(t, 0.6, aaa.CurrentWeight)
	assert.Equal(t, int64(-10), aaa.SharesToTrade)
	assert.Equal(t, int64(50), aaa.TargetShares)
	assert.Equal(t, 1000.0, aaa.TradeValue)

	assert.Equal(t, int64(20), bbb.SharesToTrade)
	assert.Equal(t, int64(100), bbb.TargetShares)
	assert.Equal(t, 1000.0, bbb.TradeValue)

	assert.Equal(t, 1000.0, guide.CashNeeded)
	assert.Equal(t, 1, guide.Buys)
	assert.Equal(t, 1, guide.Sells)

	// $2000 two-way volume, one leg each at 0.1%
	assert.InDelta(t, 1.0, guide.EstimatedCost, 1e-9)
}

func TestBuildGuideNormalizesRawScores(t *testing.T) {
	holdings := map[string]float64{"AAA": 100}
	targets := map[string]float64{"AAA": 3, "BBB": 1}
	prices := map[string]float64{"AAA": 100, "BBB": 100}

	guide, err := BuildGuide(holdings, targets, prices, 0)
	require.NoError(t, err)

	require.Len(t, guide.Lines, 2)
	assert.Equal(t, 0.75, guide.Lines[0].TargetWeight)
	assert.Equal(t, 0.25, guide.Lines[1].TargetWeight)

	// BBB is not held yet: a quarter of the book gets bought in
	assert.Equal(t, int64(25), guide.Lines[1].SharesToTrade)
	assert.Equal(t, 2500.0, guide.CashNeeded)
}

func TestBuildGuideHoldingOutsideTargetsIsSoldDown(t *testing.T) {
	holdings := map[string]float64{"AAA": 50, "OLD": 10}
	targets := map[string]float64{"AAA": 1}
	prices := map[string]float64{"AAA": 100, "OLD": 100}

	guide, err := BuildGuide(holdings, targets, prices, defaultCostRate)
	require.NoError(t, err)

	require.Len(t, guide.Lines, 2)
	old := guide.Lines[1]
	require.Equal(t, "OLD", old.Symbol)

	assert.Equal(t, 0.0, old.TargetWeight)
	assert.Equal(t, int64(-10), old.SharesToTrade)
	assert.Equal(t, int64(0), old.TargetShares)
	assert.Equal(t, 1, guide.Sells)
}

func TestBuildGuideRoundsToWholeShares(t *testing.T) {
	// $1000 of drift at a $70 price is 14.29 shares
	holdings := map[string]float64{"AAA": 41, "BBB": 30}
	targets := map[string]float64{"AAA": 0.5, "BBB": 0.5}
	prices := map[string]float64{"AAA": 100, "BBB": 70}

	guide, err := BuildGuide(holdings, targets, prices, defaultCostRate)
	require.NoError(t, err)

	bbb := guide.Lines[1]
	require.Equal(t, "BBB", bbb.Symbol)
	assert.Equal(t, int64(14), bbb.SharesToTrade)
	assert.Equal(t, int64(44), bbb.TargetShares)

	// Trade value reflects the exact drift, not the rounded shares
	assert.InDelta(t, 1000.0, bbb.TradeValue, 1e-9)
}

func TestBuildGuideValidation(t *testing.T) {
	holdings := map[string]float64{"AAA": 10}
	prices := map[string]float64{"AAA": 100, "BBB": 100}

	_, err := BuildGuide(holdings, nil, prices, defaultCostRate)
	assert.Error(t, err)

	_, err = BuildGuide(holdings, map[string]float64{"AAA": -0.5, "BBB": 1.5}, prices, defaultCostRate)
	assert.Error(t, err)

	_, err = BuildGuide(holdings, map[string]float64{"AAA": 0}, prices, defaultCostRate)
	assert.Error(t, err)

	_, err = BuildGuide(holdings, map[string]float64{"AAA": 1}, prices, -0.01)
	assert.Error(t, err)

	_, err = BuildGuide(map[string]float64{"AAA": -5}, map[string]float64{"AAA": 1}, prices, defaultCostRate)
	assert.Error(t, err)

	_, err = BuildGuide(holdings, map[string]float64{"CCC": 1}, prices, defaultCostRate)
	assert.Error(t, err, "missing price for CCC")

	_, err = BuildGuide(map[string]float64{}, map[string]float64{"AAA": 1}, prices, defaultCostRate)
	assert.Error(t, err, "empty portfolio cannot be valued")
}
