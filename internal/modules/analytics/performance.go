package analytics

import (
	"fmt"
	"math"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/pkg/formulas"
)

// rollingWindow is one trading month of periodic returns
const rollingWindow = 21

// Analyze derives a PerformanceReport from a daily value trajectory.
// Pure: the trajectory is not mutated and identical inputs produce
// identical reports.
//
// The annualized return compounds the total return with exponent
// periodsPerYear / len(trajectory).
func Analyze(trajectory []domain.ValuePoint, periodicity domain.Periodicity, riskFreeRate float64) (*PerformanceReport, error) {
	if len(trajectory) < 2 {
		return nil, &domain.InsufficientDataError{
			Need:   2,
			Got:    len(trajectory),
			Window: trajectoryWindow(trajectory),
		}
	}

	values := make([]float64, len(trajectory))
	for i, point := range trajectory {
		values[i] = point.Value
	}
	if values[0] <= 0 {
		return nil, fmt.Errorf("trajectory must start at a positive value, got %v", values[0])
	}

	periodsPerYear := periodicity.PeriodsPerYear()
	returns := formulas.CalculateReturns(values)

	totalReturn := values[len(values)-1]/values[0] - 1
	annReturn := formulas.AnnualizedReturn(totalReturn, periodsPerYear, len(values))
	annVolatility := formulas.AnnualizedVolatility(returns, periodsPerYear)

	drawdown := formulas.MaxDrawdown(values)

	return &PerformanceReport{
		StartDate:    trajectory[0].Date.Format(domain.DateFormat),
		EndDate:      trajectory[len(trajectory)-1].Date.Format(domain.DateFormat),
		Periods:      len(trajectory),
		InitialValue: values[0],
		FinalValue:   values[len(values)-1],

		TotalReturn:          totalReturn,
		AnnualizedReturn:     annReturn,
		AnnualizedVolatility: annVolatility,
		SharpeRatio:          formulas.SharpeRatio(annReturn, annVolatility, riskFreeRate),
		SortinoRatio:         formulas.SortinoRatio(returns, riskFreeRate, periodsPerYear),

		MaxDrawdown:       drawdown.Depth,
		MaxDrawdownPeak:   trajectory[drawdown.PeakIndex].Date.Format(domain.DateFormat),
		MaxDrawdownTrough: trajectory[drawdown.TroughIndex].Date.Format(domain.DateFormat),
		Drawdowns:         formulas.DrawdownSeries(values),

		RollingVolatility: nullableSeries(formulas.RollingVolatility(returns, rollingWindow, periodsPerYear)),
	}, nil
}

// nullableSeries maps NaN warmup positions to nulls so the series
// survives JSON encoding
func nullableSeries(series []float64) []*float64 {
	if series == nil {
		return nil
	}
	out := make([]*float64, len(series))
	for i := range series {
		if !math.IsNaN(series[i]) {
			v := series[i]
			out[i] = &v
		}
	}
	return out
}

func trajectoryWindow(trajectory []domain.ValuePoint) string {
	if len(trajectory) == 0 {
		return ""
	}
	first := trajectory[0].Date.Format(domain.DateFormat)
	last := trajectory[len(trajectory)-1].Date.Format(domain.DateFormat)
	return fmt.Sprintf("%s..%s", first, last)
}
