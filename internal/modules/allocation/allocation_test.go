package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

func TestGreedyExactFit(t *testing.T) {
	weights := domain.WeightVector{"AAA": 0.6, "BBB": 0.4}
	prices := map[string]float64{"AAA": 100, "BBB": 50}

	alloc, err := Greedy(weights, prices, 10000)
	require.NoError(t, err)

	require.Len(t, alloc.Positions, 2)
	assert.Equal(t, "AAA", alloc.Positions[0].Symbol)
	assert.Equal(t, int64(60), alloc.Positions[0].Shares)
	assert.Equal(t, "BBB", alloc.Positions[1].Symbol)
	assert.Equal(t, int64(80), alloc.Positions[1].Shares)

	assert.Equal(t, 10000.0, alloc.Invested)
	assert.Equal(t, 0.0, alloc.Leftover)
	assert.Equal(t, 0.6, alloc.Positions[0].Weight)
}

func TestGreedyReportsLeftover(t *testing.T) {
	weights := domain.WeightVector{"AAA": 0.5, "BBB": 0.5}
	prices := map[string]float64{"AAA": 333, "BBB": 100}

	alloc, err := Greedy(weights, prices, 10000)
	require.NoError(t, err)

	require.Len(t, alloc.Positions, 2)
	assert.Equal(t, int64(15), alloc.Positions[0].Shares)
	assert.Equal(t, int64(50), alloc.Positions[1].Shares)

	// 15*333 + 50*100 leaves $5, less than any single share
	assert.Equal(t, 9995.0, alloc.Invested)
	assert.Equal(t, 5.0, alloc.Leftover)
}

func TestGreedyTopUpBuysMostUnderweight(t *testing.T) {
	weights := domain.WeightVector{"AAA": 0.6, "BBB": 0.4}
	prices := map[string]float64{"AAA": 10, "BBB": 10}

	alloc, err := Greedy(weights, prices, 95)
	require.NoError(t, err)

	// Floor pass gives 5 and 3 shares with $15 spare; BBB sits furthest
	// below target so the spare dime buys one more BBB share
	require.Len(t, alloc.Positions, 2)
	assert.Equal(t, int64(5), alloc.Positions[0].Shares)
	assert.Equal(t, int64(4), alloc.Positions[1].Shares)
	assert.Equal(t, 5.0, alloc.Leftover)
}

func TestGreedyTopUpSkipsUnaffordable(t *testing.T) {
	weights := domain.WeightVector{"AAA": 0.5, "BBB": 0.5}
	prices := map[string]float64{"AAA": 300, "BBB": 90}

	alloc, err := Greedy(weights, prices, 1000)
	require.NoError(t, err)

	// AAA is underweight after the floor pass but its share price
	// exceeds the remaining cash, so the top-up keeps buying BBB
	require.Len(t, alloc.Positions, 2)
	assert.Equal(t, int64(1), alloc.Positions[0].Shares)
	assert.Equal(t, int64(7), alloc.Positions[1].Shares)
	assert.Equal(t, 930.0, alloc.Invested)
	assert.Equal(t, 70.0, alloc.Leftover)
}

func TestGreedyCapitalBelowCheapestShare(t *testing.T) {
	alloc, err := Greedy(domain.WeightVector{"AAA": 1}, map[string]float64{"AAA": 500}, 100)
	require.NoError(t, err)

	assert.Empty(t, alloc.Positions)
	assert.Equal(t, 0.0, alloc.Invested)
	assert.Equal(t, 100.0, alloc.Leftover)
}

func TestGreedyNormalizesAndSkipsZeroWeights(t *testing.T) {
	// Raw scores normalize to 0.75/0.25; the zero-weight symbol needs
	// no price at all
	weights := domain.WeightVector{"AAA": 3, "BBB": 1, "ZZZ": 0}
	prices := map[string]float64{"AAA": 100, "BBB": 100}

	alloc, err := Greedy(weights, prices, 10000)
	require.NoError(t, err)

	require.Len(t, alloc.Positions, 2)
	assert.Equal(t, int64(75), alloc.Positions[0].Shares)
	assert.Equal(t, int64(25), alloc.Positions[1].Shares)
}

func TestGreedyValidation(t *testing.T) {
	prices := map[string]float64{"AAA": 100}

	_, err := Greedy(domain.WeightVector{"AAA": 1}, prices, 0)
	assert.Error(t, err)

	_, err = Greedy(domain.WeightVector{"AAA": 1}, prices, -5000)
	assert.Error(t, err)

	_, err = Greedy(domain.WeightVector{}, prices, 10000)
	assert.Error(t, err)

	_, err = Greedy(domain.WeightVector{"AAA": -0.2, "BBB": 1.2}, prices, 10000)
	assert.Error(t, err)

	_, err = Greedy(domain.WeightVector{"AAA": 0}, prices, 10000)
	assert.Error(t, err)

	_, err = Greedy(domain.WeightVector{"CCC": 1}, prices, 10000)
	assert.Error(t, err, "missing price for CCC")
}
