package backtest

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/analytics"
)

// CompareVariant names one simulation in a batch comparison.
type CompareVariant struct {
	Label     string `json:"label,omitempty"`
	Objective string `json:"objective"`
	Frequency string `json:"frequency"`
}

// CompareResult is one variant's outcome. A failed variant carries its
// error without aborting the siblings.
type CompareResult struct {
	Label      string                       `json:"label"`
	Objective  string                       `json:"objective"`
	Frequency  string                       `json:"frequency"`
	Report     *analytics.PerformanceReport `json:"report,omitempty"`
	Rebalances int                          `json:"rebalances,omitempty"`
	Error      string                       `json:"error,omitempty"`
}

// Runner fans independent simulations out in parallel. Each variant
// owns its own solver invocations and writes to its own result slot;
// the price matrix is shared read-only.
type Runner struct {
	simulator    *Simulator
	riskFreeRate float64
	log          zerolog.Logger
}

// NewRunner creates a batch comparison runner. riskFreeRate feeds the
// per-variant performance reports.
func NewRunner(simulator *Simulator, riskFreeRate float64, log zerolog.Logger) *Runner {
	return &Runner{
		simulator:    simulator,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "backtest_runner").Logger(),
	}
}

// Compare runs every variant over the same matrix and reports them in
// input order.
func (r *Runner) Compare(matrix *domain.PriceMatrix, variants []CompareVariant, startCapital float64, opts SimOptions) []CompareResult {
	results := make([]CompareResult, len(variants))

	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(slot int, v CompareVariant) {
			defer wg.Done()
			results[slot] = r.runVariant(matrix, v, startCapital, opts)
		}(i, variant)
	}
	wg.Wait()

	return results
}

func (r *Runner) runVariant(matrix *domain.PriceMatrix, v CompareVariant, startCapital float64, opts SimOptions) CompareResult {
	out := CompareResult{Label: v.Label, Objective: v.Objective, Frequency: v.Frequency}
	if out.Label == "" {
		out.Label = v.Objective + "/" + v.Frequency
	}

	objective, err := domain.ParseObjective(v.Objective)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	frequency, err := domain.ParseFrequency(v.Frequency)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	sim, err := r.simulator.Simulate(matrix, objective, frequency, startCapital, opts)
	if err != nil {
		r.log.Warn().Err(err).Str("label", out.Label).Msg("Comparison variant failed")
		out.Error = err.Error()
		return out
	}

	periodicity := opts.Periodicity
	if periodicity == "" {
		periodicity = domain.PeriodicityDaily
	}
	report, err := analytics.Analyze(sim.Trajectory, periodicity, r.riskFreeRate)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Report = report
	out.Rebalances = len(sim.Holdings)
	return out
}
