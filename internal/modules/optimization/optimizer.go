package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/pkg/formulas"
)

const (
	// penaltyWeight scales the quadratic penalty that enforces the
	// fully-invested constraint inside the unconstrained solver
	penaltyWeight = 1000.0

	// conditionThreshold is the covariance condition number above which
	// diagonal shrinkage kicks in
	conditionThreshold = 1e10

	// baseRidge and maxRidge are the shrinkage factors tried in order,
	// each scaled by the mean diagonal variance
	baseRidge = 1e-6
	maxRidge  = 1e-4

	// solverIterationBudget bounds each solver attempt
	solverIterationBudget = 2000
)

// Optimizer solves for portfolio weights under a selectable objective.
// Deterministic: identical inputs and tolerances produce identical
// weights.
type Optimizer struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewOptimizer creates a new optimizer. riskFreeRate is annualized and
// only enters the MaxSharpe objective and reported Sharpe ratios.
func NewOptimizer(riskFreeRate float64, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize solves for the weight vector that optimizes the objective
// over the assets in stats, subject to the constraint set.
//
// EqualWeight is closed-form (1/n each), never invokes the solver and
// ignores both the statistics and the constraint bounds. The other
// objectives run a penalty-method formulation through BFGS with a
// NelderMead fallback; a near-singular covariance matrix is recovered
// internally via diagonal shrinkage and reported in RidgeApplied.
func (o *Optimizer) Optimize(stats *ReturnStatistics, objective domain.Objective, constraints Constraints) (*Result, error) {
	n := len(stats.Symbols)
	if n == 0 {
		return nil, fmt.Errorf("no assets to optimize")
	}

	if objective == domain.ObjectiveEqualWeight {
		aligned := make([]float64, n)
		for i := range aligned {
			aligned[i] = 1.0 / float64(n)
		}
		return o.buildResult(stats, objective, aligned, 0), nil
	}

	if err := constraints.Validate(stats.Symbols); err != nil {
		return nil, err
	}

	if n == 1 {
		// Full allocation is the only fully invested point
		return o.buildResult(stats, objective, []float64{1.0}, 0), nil
	}

	sigma, ridge := o.conditionCovariance(stats.Covariance, n)
	bounds := constraints.resolveBounds(stats.Symbols)

	var problem optimize.Problem
	switch objective {
	case domain.ObjectiveMinVolatility:
		problem = minVolatilityProblem(sigma, bounds)
	case domain.ObjectiveMaxSharpe:
		problem = maxSharpeProblem(stats.MeanReturns, sigma, o.riskFreeRate, bounds)
	default:
		return nil, fmt.Errorf("unknown objective %q", objective)
	}

	x, err := solve(problem, n, objective)
	if err != nil {
		return nil, err
	}

	aligned := finalizeWeights(x, bounds, constraints.AllowShort)
	if aligned == nil {
		return nil, &domain.SolverDivergenceError{Objective: objective, Iterations: solverIterationBudget}
	}

	return o.buildResult(stats, objective, aligned, ridge), nil
}

// buildResult assembles the result with annualized portfolio metrics
func (o *Optimizer) buildResult(stats *ReturnStatistics, objective domain.Objective, aligned []float64, ridge float64) *Result {
	weights := make(domain.WeightVector, len(aligned))
	for i, sym := range stats.Symbols {
		weights[sym] = aligned[i]
	}

	expReturn := stats.PortfolioReturn(aligned)
	volatility := math.Sqrt(math.Max(stats.PortfolioVariance(aligned), 0))

	return &Result{
		Objective:      objective,
		Weights:        weights,
		ExpectedReturn: &expReturn,
		Volatility:     &volatility,
		SharpeRatio:    formulas.SharpeRatio(expReturn, volatility, o.riskFreeRate),
		RidgeApplied:   ridge,
	}
}

// conditionCovariance returns the covariance matrix to solve against,
// applying diagonal shrinkage when the condition number exceeds the
// threshold. Shrinkage adds ridge*mean(diag) to each diagonal entry.
func (o *Optimizer) conditionCovariance(cov *mat.SymDense, n int) (*mat.SymDense, float64) {
	if conditionNumber(cov) <= conditionThreshold {
		return cov, 0
	}

	meanDiag := 0.0
	for i := 0; i < n; i++ {
		meanDiag += cov.At(i, i)
	}
	meanDiag /= float64(n)
	if meanDiag <= 0 {
		meanDiag = 1.0
	}

	for _, ridge := range []float64{baseRidge, maxRidge} {
		shrunk := mat.NewSymDense(n, nil)
		shrunk.CopySym(cov)
		for i := 0; i < n; i++ {
			shrunk.SetSym(i, i, cov.At(i, i)+ridge*meanDiag)
		}

		if conditionNumber(shrunk) <= conditionThreshold || ridge == maxRidge {
			o.log.Warn().
				Float64("ridge", ridge).
				Msg("Applied diagonal shrinkage to near-singular covariance")
			return shrunk, ridge
		}
	}

	return cov, 0
}

// conditionNumber estimates the spectral condition number via the
// eigenvalue spread. A failed factorization or non-positive smallest
// eigenvalue reads as infinite.
func conditionNumber(cov *mat.SymDense) float64 {
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return math.Inf(1)
	}

	values := eig.Values(nil)
	smallest, largest := values[0], values[0]
	for _, v := range values {
		if v < smallest {
			smallest = v
		}
		if v > largest {
			largest = v
		}
	}

	if smallest <= 0 {
		return math.Inf(1)
	}
	return largest / smallest
}

// minVolatilityProblem minimizes wᵗΣw with a quadratic penalty on the
// fully-invested constraint
func minVolatilityProblem(sigma *mat.SymDense, bounds [][2]float64) optimize.Problem {
	n := len(bounds)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			xp := projectToBounds(x, bounds)

			var variance float64
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					variance += xp[i] * xp[j] * sigma.At(i, j)
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xp[i]
			}

			return variance + penaltyWeight*(sum-1.0)*(sum-1.0)
		},
		Grad: func(grad, x []float64) {
			xp := projectToBounds(x, bounds)

			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * xp[j]
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xp[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}
}

// maxSharpeProblem maximizes (w·μ − r_f) / sqrt(wᵗΣw) with a quadratic
// penalty on the fully-invested constraint
func maxSharpeProblem(mu []float64, sigma *mat.SymDense, riskFreeRate float64, bounds [][2]float64) optimize.Problem {
	n := len(bounds)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			xp := projectToBounds(x, bounds)

			var excessReturn, variance float64
			for i := 0; i < n; i++ {
				excessReturn += mu[i] * xp[i]
				for j := 0; j < n; j++ {
					variance += xp[i] * xp[j] * sigma.At(i, j)
				}
			}
			excessReturn -= riskFreeRate
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xp[i]
			}

			return -excessReturn/stdDev + penaltyWeight*(sum-1.0)*(sum-1.0)
		},
		Grad: func(grad, x []float64) {
			xp := projectToBounds(x, bounds)

			var excessReturn, variance float64
			for i := 0; i < n; i++ {
				excessReturn += mu[i] * xp[i]
				for j := 0; j < n; j++ {
					variance += xp[i] * xp[j] * sigma.At(i, j)
				}
			}
			excessReturn -= riskFreeRate
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * xp[j]
				}
				grad[i] = -mu[i]/stdDev + excessReturn*dVariance/(2*stdDev*stdDev*stdDev)
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xp[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}
}

// solve runs the penalty problem through BFGS, falling back to
// NelderMead when BFGS fails or stalls. Exhausting both yields a
// domain.SolverDivergenceError.
func solve(problem optimize.Problem, n int, objective domain.Objective) ([]float64, error) {
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	settings := &optimize.Settings{MajorIterations: solverIterationBudget}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err == nil && converged(result) {
		return result.X, nil
	}

	result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err == nil && converged(result) {
		return result.X, nil
	}

	return nil, &domain.SolverDivergenceError{Objective: objective, Iterations: solverIterationBudget}
}

// converged accepts the statuses that indicate a usable minimum
func converged(result *optimize.Result) bool {
	if result == nil {
		return false
	}
	switch result.Status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	default:
		return false
	}
}

// projectToBounds clamps each coordinate to its [lower, upper] bound
func projectToBounds(x []float64, bounds [][2]float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(bounds[i][0], math.Min(bounds[i][1], x[i]))
	}
	return proj
}

// finalizeWeights projects the solver output to bounds, clamps stray
// negatives for long-only runs, renormalizes to sum 1 and trims solver
// noise. Returns nil when the weights collapse to a zero vector.
func finalizeWeights(x []float64, bounds [][2]float64, allowShort bool) []float64 {
	xp := projectToBounds(x, bounds)

	if !allowShort {
		for i := range xp {
			if xp[i] < 0 {
				xp[i] = 0
			}
		}
	}

	sum := 0.0
	for _, w := range xp {
		sum += w
	}
	if math.Abs(sum) < 1e-10 {
		return nil
	}

	for i := range xp {
		xp[i] = roundWeight(xp[i] / sum)
	}
	return xp
}
