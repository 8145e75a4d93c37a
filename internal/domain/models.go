package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DateFormat is the canonical date layout used across the system.
const DateFormat = "2006-01-02"

// WeightSumTolerance is the accepted deviation of a weight vector sum from 1.0.
const WeightSumTolerance = 1e-4

// Objective selects the optimization target for a weight allocation.
type Objective string

const (
	ObjectiveMaxSharpe     Objective = "max_sharpe"
	ObjectiveMinVolatility Objective = "min_volatility"
	ObjectiveEqualWeight   Objective = "equal_weight"
)

// ParseObjective maps a user-supplied string to an Objective.
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "max_sharpe", "sharpe":
		return ObjectiveMaxSharpe, nil
	case "min_volatility", "min_vol":
		return ObjectiveMinVolatility, nil
	case "equal_weight", "equal":
		return ObjectiveEqualWeight, nil
	default:
		return "", fmt.Errorf("unknown objective %q", s)
	}
}

// Frequency is the calendar cadence at which a backtest rebalances.
// FrequencyNone keeps the initial allocation for the whole run (buy and hold).
type Frequency string

const (
	FrequencyNone      Frequency = "none"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ParseFrequency maps a user-supplied string to a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "never":
		return FrequencyNone, nil
	case "monthly", "month":
		return FrequencyMonthly, nil
	case "quarterly", "quarter":
		return FrequencyQuarterly, nil
	case "yearly", "year", "annual":
		return FrequencyYearly, nil
	default:
		return "", fmt.Errorf("unknown rebalance frequency %q", s)
	}
}

// Periodicity describes the sampling interval of a price or value series.
// It determines the periods-per-year factor used for annualization.
type Periodicity string

const (
	PeriodicityDaily   Periodicity = "daily"
	PeriodicityWeekly  Periodicity = "weekly"
	PeriodicityMonthly Periodicity = "monthly"
)

// PeriodsPerYear returns the annualization factor for the periodicity.
func (p Periodicity) PeriodsPerYear() float64 {
	switch p {
	case PeriodicityWeekly:
		return 52
	case PeriodicityMonthly:
		return 12
	default:
		return 252
	}
}

// ParsePeriodicity maps a user-supplied string to a Periodicity.
func ParsePeriodicity(s string) (Periodicity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "":
		return PeriodicityDaily, nil
	case "weekly", "week":
		return PeriodicityWeekly, nil
	case "monthly", "month":
		return PeriodicityMonthly, nil
	default:
		return "", fmt.Errorf("unknown periodicity %q", s)
	}
}

// WeightVector maps asset symbols to portfolio weights.
// Weights are non-negative (unless shorting is enabled) and sum to 1.0
// within WeightSumTolerance.
type WeightVector map[string]float64

// Sum returns the total of all weights.
func (w WeightVector) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Normalized returns a copy of the vector scaled so its weights sum to 1.0.
// A zero-sum vector is returned unchanged.
func (w WeightVector) Normalized() WeightVector {
	total := w.Sum()
	out := make(WeightVector, len(w))
	if total == 0 {
		for k, v := range w {
			out[k] = v
		}
		return out
	}
	for k, v := range w {
		out[k] = v / total
	}
	return out
}

// Symbols returns the vector's symbols in sorted order.
func (w WeightVector) Symbols() []string {
	symbols := make([]string, 0, len(w))
	for k := range w {
		symbols = append(symbols, k)
	}
	sort.Strings(symbols)
	return symbols
}

// Holding is a snapshot of the portfolio taken at a rebalance event.
// The chronological sequence of Holdings is the authoritative state of a
// backtest run.
type Holding struct {
	Date    time.Time    `json:"date"`
	Weights WeightVector `json:"weights"`
	Value   float64      `json:"value"`
}

// ValuePoint is one mark-to-market observation of total portfolio value.
type ValuePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// PriceMatrix is an aligned table of closing prices: a strictly increasing
// sequence of trading dates crossed with a fixed set of asset symbols.
// Every symbol has a positive price on every date. Gap handling happens
// before construction (forward-fill then back-fill, see marketdata);
// the constructor rejects anything that still violates the invariants.
// A PriceMatrix is never mutated after construction.
type PriceMatrix struct {
	Dates   []time.Time          `json:"dates"`
	Symbols []string             `json:"symbols"`
	Prices  map[string][]float64 `json:"prices"`
}

// NewPriceMatrix validates and assembles a PriceMatrix. Symbols are kept in
// the order given; dates must be strictly increasing; every series must be
// aligned with the dates and contain only positive, finite prices.
func NewPriceMatrix(dates []time.Time, symbols []string, prices map[string][]float64) (*PriceMatrix, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("price matrix requires at least one date")
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("price matrix requires at least one symbol")
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("dates must be strictly increasing: %s followed by %s",
				dates[i-1].Format(DateFormat), dates[i].Format(DateFormat))
		}
	}
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		if seen[sym] {
			return nil, fmt.Errorf("duplicate symbol %q", sym)
		}
		seen[sym] = true

		series, ok := prices[sym]
		if !ok {
			return nil, fmt.Errorf("missing price series for %q", sym)
		}
		if len(series) != len(dates) {
			return nil, fmt.Errorf("price series for %q has %d points, expected %d", sym, len(series), len(dates))
		}
		for i, p := range series {
			if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, fmt.Errorf("invalid price for %q on %s: %v", sym, dates[i].Format(DateFormat), p)
			}
		}
	}

	return &PriceMatrix{Dates: dates, Symbols: symbols, Prices: prices}, nil
}

// NumDates returns the number of trading dates in the matrix.
func (m *PriceMatrix) NumDates() int { return len(m.Dates) }

// NumAssets returns the number of assets in the matrix.
func (m *PriceMatrix) NumAssets() int { return len(m.Symbols) }

// Series returns the full price series for a symbol. Callers must treat the
// slice as read-only.
func (m *PriceMatrix) Series(symbol string) ([]float64, bool) {
	s, ok := m.Prices[symbol]
	return s, ok
}

// PriceAt returns the price of symbol at date index i.
func (m *PriceMatrix) PriceAt(symbol string, i int) float64 {
	return m.Prices[symbol][i]
}

// PricesAt returns all prices at date index i keyed by symbol.
func (m *PriceMatrix) PricesAt(i int) map[string]float64 {
	out := make(map[string]float64, len(m.Symbols))
	for _, sym := range m.Symbols {
		out[sym] = m.Prices[sym][i]
	}
	return out
}

// Window returns the sub-matrix covering date indexes [0, end). The returned
// matrix shares backing arrays with the original and follows the same
// read-only convention.
func (m *PriceMatrix) Window(end int) *PriceMatrix {
	if end > len(m.Dates) {
		end = len(m.Dates)
	}
	prices := make(map[string][]float64, len(m.Symbols))
	for _, sym := range m.Symbols {
		prices[sym] = m.Prices[sym][:end]
	}
	return &PriceMatrix{Dates: m.Dates[:end], Symbols: m.Symbols, Prices: prices}
}
