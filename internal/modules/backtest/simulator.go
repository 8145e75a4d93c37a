package backtest

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/optimization"
)

// Simulator drives the rebalancing state machine over a price matrix:
// hold fixed share counts and mark to market daily, reallocate when a
// rebalance date is reached.
type Simulator struct {
	optimizer *optimization.Optimizer
	log       zerolog.Logger
}

// NewSimulator creates a simulator around the given optimizer.
func NewSimulator(optimizer *optimization.Optimizer, log zerolog.Logger) *Simulator {
	return &Simulator{
		optimizer: optimizer,
		log:       log.With().Str("component", "simulator").Logger(),
	}
}

// Simulate re-optimizes the allocation at each rebalance date and holds
// it in share terms in between. The initial solve uses the full matrix;
// later solves use the trailing window up to the rebalance date. Solver
// and data errors surface annotated with the triggering rebalance date.
func (s *Simulator) Simulate(matrix *domain.PriceMatrix, objective domain.Objective, frequency domain.Frequency, startCapital float64, opts SimOptions) (*SimulationResult, error) {
	minLookback := opts.MinLookback
	if minLookback < 2 {
		minLookback = 2
	}
	periodicity := opts.Periodicity
	if periodicity == "" {
		periodicity = domain.PeriodicityDaily
	}

	s.log.Info().
		Str("objective", string(objective)).
		Str("frequency", string(frequency)).
		Int("dates", matrix.NumDates()).
		Int("assets", matrix.NumAssets()).
		Float64("start_capital", startCapital).
		Msg("Starting backtest simulation")

	return s.run(matrix, frequency, startCapital, func(i int) (domain.WeightVector, error) {
		// The first solve sees the whole run window; later solves only
		// the history up to their rebalance date
		window := matrix
		if i > 0 {
			window = matrix.Window(i + 1)
		}
		if window.NumDates() < minLookback {
			return nil, &domain.InsufficientDataError{
				Need:   minLookback,
				Got:    window.NumDates(),
				Window: windowLabel(window),
			}
		}

		stats, err := optimization.ComputeStatistics(window, periodicity, opts.Statistics)
		if err != nil {
			return nil, err
		}

		result, err := s.optimizer.Optimize(stats, objective, opts.Constraints)
		if err != nil {
			return nil, err
		}

		s.log.Debug().
			Str("date", matrix.Dates[i].Format(domain.DateFormat)).
			Int("window", window.NumDates()).
			Msg("Rebalanced")
		return result.Weights, nil
	})
}

// SimulateFixed replays a constant target allocation: every rebalance
// resets holdings to the given weights instead of re-optimizing.
// Weights for symbols absent from the matrix are dropped and the rest
// renormalized.
func (s *Simulator) SimulateFixed(matrix *domain.PriceMatrix, weights domain.WeightVector, frequency domain.Frequency, startCapital float64) (*SimulationResult, error) {
	kept := make(domain.WeightVector)
	for _, sym := range matrix.Symbols {
		if w, ok := weights[sym]; ok {
			if w < 0 {
				return nil, fmt.Errorf("negative weight %v for %s", w, sym)
			}
			if w > 0 {
				kept[sym] = w
			}
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no weights overlap the price data")
	}

	target := kept.Normalized()
	if len(kept) < len(weights) {
		s.log.Warn().
			Int("given", len(weights)).
			Int("kept", len(kept)).
			Msg("Dropped weights without price data, renormalized the rest")
	}

	return s.run(matrix, frequency, startCapital, func(int) (domain.WeightVector, error) {
		return target, nil
	})
}

// run is the state machine shared by both simulation modes: an explicit
// loop over matrix dates with a share-count accumulator.
func (s *Simulator) run(matrix *domain.PriceMatrix, frequency domain.Frequency, startCapital float64, allocate func(dateIdx int) (domain.WeightVector, error)) (*SimulationResult, error) {
	if startCapital <= 0 {
		return nil, fmt.Errorf("start capital must be positive, got %v", startCapital)
	}

	marks := rebalanceIndexes(matrix, frequency)
	shares := make(map[string]float64)
	value := startCapital

	holdings := make([]domain.Holding, 0, len(marks))
	trajectory := make([]domain.ValuePoint, 0, matrix.NumDates())

	for i, date := range matrix.Dates {
		prices := matrix.PricesAt(i)
		if i > 0 {
			value = markToMarket(shares, prices)
		}

		if marks[i] {
			weights, err := allocate(i)
			if err != nil {
				return nil, domain.AnnotateRebalance(date, err)
			}
			shares = sharesFor(value, weights, prices)
			holdings = append(holdings, domain.Holding{Date: date, Weights: weights, Value: value})
		}

		trajectory = append(trajectory, domain.ValuePoint{Date: date, Value: value})
	}

	return &SimulationResult{Holdings: holdings, Trajectory: trajectory}, nil
}

func markToMarket(shares map[string]float64, prices map[string]float64) float64 {
	total := 0.0
	for sym, qty := range shares {
		total += qty * prices[sym]
	}
	return total
}

// sharesFor converts a weight allocation into share counts at current
// prices. Shares are fractional, discrete lots are the allocation
// module's concern.
func sharesFor(value float64, weights domain.WeightVector, prices map[string]float64) map[string]float64 {
	shares := make(map[string]float64, len(weights))
	for sym, w := range weights {
		if price := prices[sym]; price > 0 {
			shares[sym] = value * w / price
		}
	}
	return shares
}

func windowLabel(matrix *domain.PriceMatrix) string {
	if matrix.NumDates() == 0 {
		return ""
	}
	first := matrix.Dates[0].Format(domain.DateFormat)
	last := matrix.Dates[matrix.NumDates()-1].Format(domain.DateFormat)
	return fmt.Sprintf("%s..%s", first, last)
}
