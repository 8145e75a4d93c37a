package backtest

import (
	"time"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// rebalanceIndexes marks the date indexes at which the simulator
// reallocates: always index 0, plus the last trading date of each
// calendar period implied by the frequency. The terminal date is never
// marked, the run ends mark-to-market with no forced event.
func rebalanceIndexes(matrix *domain.PriceMatrix, frequency domain.Frequency) map[int]bool {
	marks := map[int]bool{0: true}
	if frequency == domain.FrequencyNone {
		return marks
	}

	last := matrix.NumDates() - 1
	for i := 0; i < last; i++ {
		if periodKey(matrix.Dates[i], frequency) != periodKey(matrix.Dates[i+1], frequency) {
			marks[i] = true
		}
	}
	return marks
}

// periodKey buckets a date into its calendar period. A date is the last
// trading date of its period when its successor lands in a different
// bucket.
func periodKey(date time.Time, frequency domain.Frequency) int {
	switch frequency {
	case domain.FrequencyMonthly:
		return date.Year()*100 + int(date.Month())
	case domain.FrequencyQuarterly:
		return date.Year()*10 + (int(date.Month())-1)/3
	case domain.FrequencyYearly:
		return date.Year()
	default:
		return 0
	}
}
