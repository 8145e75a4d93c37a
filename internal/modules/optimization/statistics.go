package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// ReturnStatistics carries the annualized expected-return vector and
// covariance matrix derived from a price window. Both are indexed by
// the same symbol ordering as the source matrix and never mutated
// after construction.
type ReturnStatistics struct {
	Symbols        []string
	MeanReturns    []float64
	Covariance     *mat.SymDense
	PeriodsPerYear float64
	Observations   int
}

// ComputeStatistics derives per-asset expected returns and the sample
// covariance matrix from a price matrix, annualized by the periods per
// year implied by the periodicity. Fewer than two dates yields a
// domain.InsufficientDataError.
func ComputeStatistics(matrix *domain.PriceMatrix, periodicity domain.Periodicity, opts StatisticsOptions) (*ReturnStatistics, error) {
	numDates := matrix.NumDates()
	if numDates < 2 {
		return nil, &domain.InsufficientDataError{
			Need:   2,
			Got:    numDates,
			Window: windowLabel(matrix),
		}
	}

	periodsPerYear := periodicity.PeriodsPerYear()
	n := matrix.NumAssets()

	returns := make([][]float64, n)
	means := make([]float64, n)
	for i, sym := range matrix.Symbols {
		series, _ := matrix.Series(sym)
		r := periodReturns(series, opts.UseLogReturns)
		returns[i] = r
		means[i] = stat.Mean(r, nil) * periodsPerYear
	}

	sample := sampleCovariance(returns)
	if opts.LedoitWolf {
		sample = ledoitWolfShrinkage(sample)
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, sample[i][j]*periodsPerYear)
		}
	}

	return &ReturnStatistics{
		Symbols:        matrix.Symbols,
		MeanReturns:    means,
		Covariance:     cov,
		PeriodsPerYear: periodsPerYear,
		Observations:   numDates - 1,
	}, nil
}

// PortfolioReturn computes w·μ for weights aligned with Symbols
func (rs *ReturnStatistics) PortfolioReturn(weights []float64) float64 {
	total := 0.0
	for i, w := range weights {
		total += w * rs.MeanReturns[i]
	}
	return total
}

// PortfolioVariance computes wᵗΣw for weights aligned with Symbols
func (rs *ReturnStatistics) PortfolioVariance(weights []float64) float64 {
	total := 0.0
	n := len(weights)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += weights[i] * weights[j] * rs.Covariance.At(i, j)
		}
	}
	return total
}

// VarianceOf computes the portfolio variance of a weight vector keyed
// by symbol
func (rs *ReturnStatistics) VarianceOf(weights domain.WeightVector) float64 {
	aligned := make([]float64, len(rs.Symbols))
	for i, sym := range rs.Symbols {
		aligned[i] = weights[sym]
	}
	return rs.PortfolioVariance(aligned)
}

// CorrelationMatrix derives the correlation matrix from the covariance
// matrix. Assets with zero variance correlate 0 with everything.
func (rs *ReturnStatistics) CorrelationMatrix() *mat.SymDense {
	n := len(rs.Symbols)
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			vi, vj := rs.Covariance.At(i, i), rs.Covariance.At(j, j)
			if vi > 0 && vj > 0 {
				corr.SetSym(i, j, rs.Covariance.At(i, j)/math.Sqrt(vi*vj))
			}
		}
	}
	return corr
}

// HighCorrelations lists asset pairs whose absolute correlation meets
// the threshold
func (rs *ReturnStatistics) HighCorrelations(threshold float64) []CorrelationPair {
	n := len(rs.Symbols)
	pairs := make([]CorrelationPair, 0)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			vi, vj := rs.Covariance.At(i, i), rs.Covariance.At(j, j)
			if vi <= 0 || vj <= 0 {
				continue
			}
			corr := rs.Covariance.At(i, j) / math.Sqrt(vi*vj)
			if math.Abs(corr) >= threshold {
				pairs = append(pairs, CorrelationPair{
					Symbol1:     rs.Symbols[i],
					Symbol2:     rs.Symbols[j],
					Correlation: corr,
				})
			}
		}
	}
	return pairs
}

// periodReturns converts a price series into period-over-period simple
// or logarithmic returns
func periodReturns(prices []float64, useLog bool) []float64 {
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if useLog {
			returns[i-1] = math.Log(prices[i] / prices[i-1])
		} else {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return returns
}

// sampleCovariance builds the symmetric sample covariance matrix
// (N-1 denominator) across the per-asset return series
func sampleCovariance(returns [][]float64) [][]float64 {
	n := len(returns)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(returns[i], returns[j], nil)
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov
}

// ledoitWolfShrinkage blends the sample covariance matrix towards a
// constant-correlation target to improve conditioning with short
// samples.
//
// Reference: Ledoit, O., & Wolf, M. (2004). "A well-conditioned
// estimator for large-dimensional covariance matrices"
func ledoitWolfShrinkage(sample [][]float64) [][]float64 {
	n := len(sample)
	if n < 2 {
		return sample
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample[i][i]
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample[i][j]
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))

	target := make([][]float64, n)
	for i := range target {
		target[i] = make([]float64, n)
		for j := range target[i] {
			if i == j {
				target[i][j] = avgVar
			} else {
				target[i][j] = avgCov
			}
		}
	}

	// Shrinkage intensity from the dispersion of the sample around the
	// target, capped at 0.5
	shrinkage := 0.2
	var sumSqDiff, sumSq, mean float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := sample[i][j] - target[i][j]
			sumSqDiff += diff * diff
			mean += sample[i][j]
			sumSq += sample[i][j] * sample[i][j]
		}
	}
	count := float64(n * n)
	meanSqDiff := sumSqDiff / count
	mean /= count
	varSample := sumSq/count - mean*mean
	if varSample > 0 && meanSqDiff > 0 {
		shrinkage = math.Min(0.5, math.Max(0.0, varSample/(varSample+meanSqDiff)))
	}

	shrunk := make([][]float64, n)
	for i := range shrunk {
		shrunk[i] = make([]float64, n)
		for j := range shrunk[i] {
			shrunk[i][j] = (1-shrinkage)*sample[i][j] + shrinkage*target[i][j]
		}
	}
	return shrunk
}

func windowLabel(matrix *domain.PriceMatrix) string {
	if matrix.NumDates() == 0 {
		return ""
	}
	first := matrix.Dates[0].Format(domain.DateFormat)
	last := matrix.Dates[matrix.NumDates()-1].Format(domain.DateFormat)
	return fmt.Sprintf("%s..%s", first, last)
}
