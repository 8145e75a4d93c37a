package optimization

import (
	"fmt"
	"math"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// Constraints bound the feasible weight region. Zero-value MaxWeight is
// treated as 1.0 so the empty struct means plain long-only.
type Constraints struct {
	MinWeight  float64               `json:"min_weight"`
	MaxWeight  float64               `json:"max_weight"`
	Bounds     map[string][2]float64 `json:"bounds,omitempty"`
	AllowShort bool                  `json:"allow_short"`
}

// DefaultConstraints returns the long-only fully-invested defaults
func DefaultConstraints() Constraints {
	return Constraints{MinWeight: 0.0, MaxWeight: 1.0}
}

// resolveBounds expands the constraint set into per-symbol [lower, upper]
// pairs aligned with the symbol ordering
func (c Constraints) resolveBounds(symbols []string) [][2]float64 {
	lo := c.MinWeight
	hi := c.MaxWeight
	if hi == 0 {
		hi = 1.0
	}
	if c.AllowShort && lo == 0 {
		lo = -1.0
	}

	bounds := make([][2]float64, len(symbols))
	for i, sym := range symbols {
		bounds[i] = [2]float64{lo, hi}
		if override, ok := c.Bounds[sym]; ok {
			bounds[i] = override
		}
	}
	return bounds
}

// Validate checks that the constraint set admits at least one fully
// invested weight vector. Returns domain.InfeasibleConstraintsError
// when it does not.
func (c Constraints) Validate(symbols []string) error {
	bounds := c.resolveBounds(symbols)

	sumLower, sumUpper := 0.0, 0.0
	for i, b := range bounds {
		if b[0] > b[1] {
			return &domain.InfeasibleConstraintsError{
				Reason: fmt.Sprintf("lower bound %.4f exceeds upper bound %.4f for %s", b[0], b[1], symbols[i]),
			}
		}
		sumLower += b[0]
		sumUpper += b[1]
	}

	if sumLower > 1.0+domain.WeightSumTolerance {
		return &domain.InfeasibleConstraintsError{
			Reason: fmt.Sprintf("lower bounds sum to %.4f, weights cannot sum to 1", sumLower),
		}
	}
	if sumUpper < 1.0-domain.WeightSumTolerance {
		return &domain.InfeasibleConstraintsError{
			Reason: fmt.Sprintf("upper bounds sum to %.4f, weights cannot sum to 1", sumUpper),
		}
	}

	return nil
}

// StatisticsOptions tune how return statistics are derived from prices
type StatisticsOptions struct {
	// UseLogReturns switches from simple to logarithmic period returns
	UseLogReturns bool `json:"use_log_returns"`
	// LedoitWolf applies constant-correlation shrinkage to the sample
	// covariance matrix
	LedoitWolf bool `json:"ledoit_wolf"`
}

// Result is the outcome of a single optimization run. ExpectedReturn,
// Volatility and SharpeRatio are annualized; SharpeRatio is nil when
// the portfolio volatility is zero.
type Result struct {
	Objective      domain.Objective    `json:"objective"`
	Weights        domain.WeightVector `json:"weights"`
	ExpectedReturn *float64            `json:"expected_return,omitempty"`
	Volatility     *float64            `json:"volatility,omitempty"`
	SharpeRatio    *float64            `json:"sharpe_ratio,omitempty"`
	// RidgeApplied is the diagonal shrinkage factor used to recover a
	// near-singular covariance matrix, 0 when none was needed
	RidgeApplied float64 `json:"ridge_applied,omitempty"`
}

// CorrelationPair flags two assets whose return correlation exceeds the
// diagnostic threshold
type CorrelationPair struct {
	Symbol1     string  `json:"symbol1"`
	Symbol2     string  `json:"symbol2"`
	Correlation float64 `json:"correlation"`
}

// roundWeight trims solver noise from reported weights
func roundWeight(w float64) float64 {
	return math.Round(w*1e6) / 1e6
}
