package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

func trajectoryOf(values ...float64) []domain.ValuePoint {
	points := make([]domain.ValuePoint, len(values))
	for i, v := range values {
		points[i] = domain.ValuePoint{
			Date:  time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC),
			Value: v,
		}
	}
	return points
}

func TestAnalyzeCoreMetrics(t *testing.T) {
	report, err := Analyze(trajectoryOf(10000, 11000, 10450), domain.PeriodicityDaily, 0)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02", report.StartDate)
	assert.Equal(t, "2024-01-04", report.EndDate)
	assert.Equal(t, 3, report.Periods)
	assert.Equal(t, 10000.0, report.InitialValue)
	assert.Equal(t, 10450.0, report.FinalValue)

	assert.InDelta(t, 0.045, report.TotalReturn, 1e-9)
	assert.InDelta(t, math.Pow(1.045, 252.0/3)-1, report.AnnualizedReturn, 1e-9)

	// Returns are {+0.10, -0.05}: sample std 0.075*sqrt(2), annualized
	vol := math.Sqrt(0.01125) * math.Sqrt(252)
	assert.InDelta(t, vol, report.AnnualizedVolatility, 1e-9)

	require.NotNil(t, report.SharpeRatio)
	assert.InDelta(t, report.AnnualizedReturn/vol, *report.SharpeRatio, 1e-9)

	// Single downside return of -0.05 against rf 0
	require.NotNil(t, report.SortinoRatio)
	assert.InDelta(t, 0.025/0.05*math.Sqrt(252), *report.SortinoRatio, 1e-9)
}

func TestAnalyzeMonotonicTrajectoryHasZeroDrawdown(t *testing.T) {
	report, err := Analyze(trajectoryOf(100, 105, 110, 120, 130), domain.PeriodicityDaily, 0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.MaxDrawdown)
	for _, dd := range report.Drawdowns {
		assert.Equal(t, 0.0, dd)
	}
}

func TestAnalyzeDrawdownDepthAndDates(t *testing.T) {
	report, err := Analyze(trajectoryOf(100, 120, 90, 95, 130), domain.PeriodicityDaily, 0)
	require.NoError(t, err)

	assert.InDelta(t, -0.25, report.MaxDrawdown, 1e-9)
	assert.Equal(t, "2024-01-03", report.MaxDrawdownPeak)
	assert.Equal(t, "2024-01-04", report.MaxDrawdownTrough)

	require.Len(t, report.Drawdowns, 5)
	assert.InDelta(t, 0.0, report.Drawdowns[1], 1e-9)
	assert.InDelta(t, -0.25, report.Drawdowns[2], 1e-9)
	assert.InDelta(t, 95.0/120.0-1, report.Drawdowns[3], 1e-9)
	assert.InDelta(t, 0.0, report.Drawdowns[4], 1e-9)
}

func TestAnalyzeSharpeNilAtZeroVolatility(t *testing.T) {
	report, err := Analyze(trajectoryOf(100, 100, 100, 100), domain.PeriodicityDaily, 0.02)
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.AnnualizedVolatility)
	assert.Nil(t, report.SharpeRatio)
	assert.Nil(t, report.SortinoRatio)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	_, err := Analyze(trajectoryOf(100), domain.PeriodicityDaily, 0)
	require.Error(t, err)

	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Need)
	assert.Equal(t, 1, insufficient.Got)
}

func TestAnalyzeRollingVolatilityWarmup(t *testing.T) {
	values := make([]float64, 30)
	values[0] = 100
	for i := 1; i < len(values); i++ {
		move := 1.01
		if i%2 == 0 {
			move = 0.99
		}
		values[i] = values[i-1] * move
	}

	report, err := Analyze(trajectoryOf(values...), domain.PeriodicityDaily, 0)
	require.NoError(t, err)

	require.Len(t, report.RollingVolatility, 29)
	for i := 0; i < rollingWindow-1; i++ {
		assert.Nil(t, report.RollingVolatility[i])
	}
	for i := rollingWindow - 1; i < len(report.RollingVolatility); i++ {
		require.NotNil(t, report.RollingVolatility[i])
		assert.Greater(t, *report.RollingVolatility[i], 0.0)
	}
}

func TestAnalyzeShortTrajectoryOmitsRollingVolatility(t *testing.T) {
	report, err := Analyze(trajectoryOf(100, 101, 102), domain.PeriodicityDaily, 0)
	require.NoError(t, err)
	assert.Nil(t, report.RollingVolatility)
}
