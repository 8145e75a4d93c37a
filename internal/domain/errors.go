package domain

import (
	"fmt"
	"time"
)

// InsufficientDataError reports that a price window holds fewer observations
// than an operation requires.
type InsufficientDataError struct {
	Need int
	Got  int
	// Window describes the requested window, e.g. "2020-01-01..2020-06-30".
	Window string
}

func (e *InsufficientDataError) Error() string {
	if e.Window != "" {
		return fmt.Sprintf("insufficient data: need %d observations, got %d (window %s)", e.Need, e.Got, e.Window)
	}
	return fmt.Sprintf("insufficient data: need %d observations, got %d", e.Need, e.Got)
}

// InfeasibleConstraintsError reports a constraint set that admits no valid
// weight vector.
type InfeasibleConstraintsError struct {
	Reason string
}

func (e *InfeasibleConstraintsError) Error() string {
	return "infeasible constraints: " + e.Reason
}

// SolverDivergenceError reports that the iterative solver exhausted its
// iteration budget without converging to a usable weight vector.
type SolverDivergenceError struct {
	Objective  Objective
	Iterations int
}

func (e *SolverDivergenceError) Error() string {
	return fmt.Sprintf("solver failed to converge for objective %s within %d iterations", e.Objective, e.Iterations)
}

// DataUnavailableError reports that the market-data collaborator could not
// supply prices for a symbol.
type DataUnavailableError struct {
	Symbol string
	Reason string
}

func (e *DataUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no price data available for %s: %s", e.Symbol, e.Reason)
	}
	return fmt.Sprintf("no price data available for %s", e.Symbol)
}

// AnnotateRebalance wraps err with the rebalance date that triggered it,
// preserving the wrapped type for errors.As.
func AnnotateRebalance(date time.Time, err error) error {
	return fmt.Errorf("rebalance on %s: %w", date.Format(DateFormat), err)
}
