package backtest

import (
	"time"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/analytics"
	"github.com/leenamkee/quant-portfolio/internal/modules/optimization"
)

// defaultStartCapital is used when a request does not name one
const defaultStartCapital = 10000.0

// SimOptions tune a simulation beyond the core parameters.
type SimOptions struct {
	// MinLookback is the minimum number of observations a solve window
	// must hold; windows below max(2, MinLookback) fail the run
	MinLookback int `json:"min_lookback,omitempty"`
	// Periodicity annualizes the statistics fed to the optimizer
	Periodicity domain.Periodicity             `json:"periodicity,omitempty"`
	Constraints optimization.Constraints       `json:"constraints,omitempty"`
	Statistics  optimization.StatisticsOptions `json:"statistics,omitempty"`
}

// SimulationResult pairs the rebalance snapshots with the daily
// mark-to-market value trajectory covering every matrix date.
type SimulationResult struct {
	Holdings   []domain.Holding    `json:"holdings"`
	Trajectory []domain.ValuePoint `json:"trajectory"`
}

// RunKind distinguishes optimizer-driven runs from fixed-weight ones.
const (
	RunKindOptimized = "optimized"
	RunKindCustom    = "custom"
)

// RunParams captures the inputs of a persisted run.
type RunParams struct {
	Symbols      []string           `json:"symbols"`
	Start        string             `json:"start"`
	End          string             `json:"end"`
	Objective    string             `json:"objective,omitempty"`
	Frequency    string             `json:"frequency"`
	StartCapital float64            `json:"start_capital"`
	RiskFreeRate float64            `json:"risk_free_rate"`
	Weights      map[string]float64 `json:"weights,omitempty"`
}

// Run is a completed backtest: parameters, summary report and the full
// holding/trajectory sequences.
type Run struct {
	ID         string                       `json:"id"`
	CreatedAt  time.Time                    `json:"created_at"`
	Kind       string                       `json:"kind"`
	Params     RunParams                    `json:"params"`
	Report     *analytics.PerformanceReport `json:"report"`
	Holdings   []domain.Holding             `json:"holdings"`
	Trajectory []domain.ValuePoint          `json:"trajectory"`
}

// RunSummary is the list-view projection of a persisted run.
type RunSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Kind        string    `json:"kind"`
	Params      RunParams `json:"params"`
	TotalReturn float64   `json:"total_return"`
	SharpeRatio *float64  `json:"sharpe_ratio"`
	MaxDrawdown float64   `json:"max_drawdown"`
	FinalValue  float64   `json:"final_value"`
}

// BacktestRequest is the payload for POST /api/backtest.
type BacktestRequest struct {
	Symbols       []string                  `json:"symbols"`
	Start         string                    `json:"start,omitempty"`
	End           string                    `json:"end,omitempty"`
	Objective     string                    `json:"objective"`
	Frequency     string                    `json:"frequency"`
	StartCapital  float64                   `json:"start_capital,omitempty"`
	RiskFreeRate  *float64                  `json:"risk_free_rate,omitempty"`
	MinLookback   int                       `json:"min_lookback,omitempty"`
	Periodicity   string                    `json:"periodicity,omitempty"`
	UseLogReturns bool                      `json:"use_log_returns,omitempty"`
	LedoitWolf    bool                      `json:"ledoit_wolf,omitempty"`
	Constraints   *optimization.Constraints `json:"constraints,omitempty"`
}

// CustomBacktestRequest is the payload for POST /api/backtest/custom:
// a fixed target allocation replayed at the chosen frequency.
type CustomBacktestRequest struct {
	Weights      map[string]float64 `json:"weights"`
	Start        string             `json:"start,omitempty"`
	End          string             `json:"end,omitempty"`
	Frequency    string             `json:"frequency"`
	StartCapital float64            `json:"start_capital,omitempty"`
	RiskFreeRate *float64           `json:"risk_free_rate,omitempty"`
	Periodicity  string             `json:"periodicity,omitempty"`
}

// CompareRequest is the payload for POST /api/backtest/compare: the
// same window run under several objective/frequency variants.
type CompareRequest struct {
	Symbols      []string         `json:"symbols"`
	Start        string           `json:"start,omitempty"`
	End          string           `json:"end,omitempty"`
	Variants     []CompareVariant `json:"variants"`
	StartCapital float64          `json:"start_capital,omitempty"`
	RiskFreeRate *float64         `json:"risk_free_rate,omitempty"`
	MinLookback  int              `json:"min_lookback,omitempty"`
	Periodicity  string           `json:"periodicity,omitempty"`
}

// BacktestResponse carries a completed run back to the caller.
type BacktestResponse struct {
	RunID      string                       `json:"run_id,omitempty"`
	Kind       string                       `json:"kind"`
	Params     RunParams                    `json:"params"`
	Report     *analytics.PerformanceReport `json:"report"`
	Rebalances int                          `json:"rebalances"`
	Holdings   []domain.Holding             `json:"holdings"`
	Trajectory []domain.ValuePoint          `json:"trajectory"`
}
