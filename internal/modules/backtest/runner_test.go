package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareRunsVariantsInOrder(t *testing.T) {
	dates := []time.Time{
		mdate(2024, time.January, 30),
		mdate(2024, time.January, 31),
		mdate(2024, time.February, 1),
		mdate(2024, time.February, 2),
	}
	matrix := buildMatrix(t, dates, map[string][]float64{
		"AAA": {100, 101, 102, 103},
		"BBB": {100, 99, 101, 100},
	})

	runner := NewRunner(newTestSimulator(), 0, quietLog())
	variants := []CompareVariant{
		{Objective: "equal_weight", Frequency: "none"},
		{Objective: "equal_weight", Frequency: "monthly"},
		{Label: "calm", Objective: "min_volatility", Frequency: "none"},
	}

	results := runner.Compare(matrix, variants, 10000, SimOptions{})
	require.Len(t, results, 3)

	assert.Equal(t, "equal_weight/none", results[0].Label)
	assert.Equal(t, "equal_weight/monthly", results[1].Label)
	assert.Equal(t, "calm", results[2].Label)

	for _, res := range results {
		assert.Empty(t, res.Error)
		require.NotNil(t, res.Report)
		assert.Equal(t, 10000.0, res.Report.InitialValue)
		assert.Equal(t, 4, res.Report.Periods)
	}

	// Monthly adds a January 31 rebalance on top of the initial one
	assert.Equal(t, 1, results[0].Rebalances)
	assert.Equal(t, 2, results[1].Rebalances)
}

func TestCompareIsolatesVariantFailures(t *testing.T) {
	matrix := buildMatrix(t, janDates(2, 3, 4), map[string][]float64{
		"AAA": {100, 101, 102},
		"BBB": {100, 99, 98},
	})

	runner := NewRunner(newTestSimulator(), 0, quietLog())
	variants := []CompareVariant{
		{Objective: "equal_weight", Frequency: "none"},
		{Objective: "momentum", Frequency: "none"},
		{Objective: "min_volatility", Frequency: "weekly"},
	}

	results := runner.Compare(matrix, variants, 10000, SimOptions{})
	require.Len(t, results, 3)

	assert.Empty(t, results[0].Error)
	require.NotNil(t, results[0].Report)

	assert.NotEmpty(t, results[1].Error)
	assert.Nil(t, results[1].Report)

	assert.NotEmpty(t, results[2].Error)
	assert.Nil(t, results[2].Report)
}

func TestCompareSimulationErrorFillsSlot(t *testing.T) {
	matrix := buildMatrix(t, janDates(2, 3, 4), map[string][]float64{
		"AAA": {100, 101, 102},
	})

	runner := NewRunner(newTestSimulator(), 0, quietLog())
	variants := []CompareVariant{
		{Objective: "min_volatility", Frequency: "none"},
	}

	results := runner.Compare(matrix, variants, 10000, SimOptions{MinLookback: 90})
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "insufficient data")
	assert.Nil(t, results[0].Report)
}

func TestCompareEmptyVariants(t *testing.T) {
	matrix := buildMatrix(t, janDates(2, 3), map[string][]float64{
		"AAA": {100, 101},
	})

	runner := NewRunner(newTestSimulator(), 0, quietLog())
	results := runner.Compare(matrix, nil, 10000, SimOptions{})
	assert.Empty(t, results)
}
